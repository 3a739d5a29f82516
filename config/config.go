package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Operating modes.
const (
	ModeLive      = "live"
	ModeMockHuman = "mock_human"
)

// Config holds all configuration values.
type Config struct {
	AppPort  string `mapstructure:"APP_PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Operating mode: "live" dials real providers, "mock_human" routes every
	// call to the configured target numbers round-robin.
	Mode string `mapstructure:"NEXUS_MODE"`

	// Data stores.
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisLockDB   int    `mapstructure:"REDIS_LOCK_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Swarm limits.
	MaxCallAgents     int `mapstructure:"MAX_CALL_AGENTS"`
	MockHumanMaxCalls int `mapstructure:"MOCK_HUMAN_MAX_CALLS"`

	// Telephony (ElevenLabs outbound via Twilio).
	ElevenLabsAPIKey        string `mapstructure:"ELEVENLABS_API_KEY"`
	ElevenLabsAgentID       string `mapstructure:"ELEVENLABS_AGENT_ID"`
	ElevenLabsAgentPhoneID  string `mapstructure:"ELEVENLABS_AGENT_PHONE_NUMBER_ID"`

	// Mock-human target numbers, comma separated.
	TargetPhoneNumbers string `mapstructure:"TARGET_PHONE_NUMBERS"`

	// Distance reference point for provider lookups.
	DefaultOriginLat float64 `mapstructure:"DEFAULT_ORIGIN_LAT"`
	DefaultOriginLng float64 `mapstructure:"DEFAULT_ORIGIN_LNG"`

	// Google APIs (Calendar).
	GoogleAPIKey     string `mapstructure:"GOOGLE_API_KEY"`
	GoogleOAuthToken string `mapstructure:"GOOGLE_OAUTH_TOKEN"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("NEXUS_MODE", "live")
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_LOCK_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("MAX_CALL_AGENTS", 15)
	viper.SetDefault("MOCK_HUMAN_MAX_CALLS", 3)
	viper.SetDefault("DEFAULT_ORIGIN_LAT", 37.7749)
	viper.SetDefault("DEFAULT_ORIGIN_LNG", -122.4194)
	viper.SetDefault("GOOGLE_API_KEY", "")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

// TargetPhones returns the mock-human dial list, in configured order.
func (c Config) TargetPhones() []string {
	var out []string
	for _, s := range strings.Split(c.TargetPhoneNumbers, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
