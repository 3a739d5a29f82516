package utils

import (
	"context"
	"fmt"
	"time"

	"nexus/config"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
)

// NewLockClient connects the Redis client used for holds, booking locks and
// the kill channels. The caller owns the client's lifecycle.
func NewLockClient(cfg config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisLockDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis (locks): %w", err)
	}
	return client, nil
}

// QueueRedisOpt returns the asynq connection options for the task queue
// (campaign dispatch, calendar sync). Kept on a separate Redis DB from the
// lock keyspace.
func QueueRedisOpt(cfg config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisQueueDB,
	}
}
