// File: nexus/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nexus/config"
	"nexus/cron"
	"nexus/database"
	appointmentRepo "nexus/database/repository/appointment"
	callTaskRepo "nexus/database/repository/calltask"
	campaignRepo "nexus/database/repository/campaign"
	"nexus/models"
	"nexus/services/calendar"
	"nexus/services/campaign"
	"nexus/services/coordination"
	"nexus/services/directory"
	"nexus/services/swarm"
	"nexus/services/tasks"
	"nexus/services/telephony"
	"nexus/utils"

	"github.com/hibiken/asynq"
)

// main runs the coordination engine daemon: the stale campaign reaper and the
// queue worker (campaign intake, calendar sync follow-ups), on top of a fully
// wired coordinator. The request surface (HTTP campaign intake, speech-agent
// tool webhooks) lives in a separate process that imports the service
// packages and enqueues onto the same queues.
func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	mongoClient, err := database.NewMongoClient(config.AppConfig.DatabaseURL)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.Sugar().Errorf("main: failed to disconnect MongoDB: %v", err)
		}
	}()

	lockClient, err := utils.NewLockClient(config.AppConfig)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to connect to Redis: %v", err)
	}
	defer lockClient.Close()

	// Repositories.
	campaigns := campaignRepo.NewMongoCampaignRepo(mongoClient)
	callTasks := callTaskRepo.NewMongoCallTaskRepo(mongoClient)
	appointments := appointmentRepo.NewMongoAppointmentRepo(mongoClient)

	if err := campaigns.EnsureIndexes(); err != nil {
		logger.Sugar().Fatalf("main: failed to ensure campaign indexes: %v", err)
	}
	if err := callTasks.EnsureIndexes(); err != nil {
		logger.Sugar().Fatalf("main: failed to ensure call task indexes: %v", err)
	}
	if err := appointments.EnsureIndexes(); err != nil {
		logger.Sugar().Fatalf("main: failed to ensure appointment indexes: %v", err)
	}

	// Collaborators and services.
	googleCalendar := calendar.NewGoogleCalendar(calendar.StaticTokenSource(config.AppConfig.GoogleOAuthToken))

	queueOpt := utils.QueueRedisOpt(config.AppConfig)
	asynqClient := asynq.NewClient(queueOpt)
	defer asynqClient.Close()

	lockStore := coordination.NewRedisLockStore(lockClient)
	coordinator := &coordination.DefaultSlotCoordinator{
		Locks:        lockStore,
		Campaigns:    campaigns,
		Tasks:        callTasks,
		Appointments: appointments,
		Calendar:     googleCalendar,
		Sync:         tasks.NewAsynqSyncScheduler(asynqClient),
	}

	origin := models.GeoPoint{Lat: config.AppConfig.DefaultOriginLat, Lng: config.AppConfig.DefaultOriginLng}
	providerDirectory := directory.NewDirectoryWithFallback(
		directory.NewPlacesDirectory(config.AppConfig.GoogleAPIKey, origin),
		directory.NewFallbackDirectory(),
	)
	dispatcher := swarm.NewDispatcher(
		config.AppConfig,
		campaigns,
		callTasks,
		campaign.NewService(campaigns),
		providerDirectory,
		telephony.NewElevenLabsDialer(config.AppConfig),
		lockStore,
	)

	// Background components.
	reaper := cron.NewReaper(campaigns, callTasks, coordinator)
	reaperCron, err := reaper.Start()
	if err != nil {
		logger.Sugar().Fatalf("main: failed to start reaper: %v", err)
	}

	queueWorker := cron.InitQueueWorker(queueOpt, dispatcher, appointments, googleCalendar)

	logger.Sugar().Infof("Coordination engine running (mode=%s)", config.AppConfig.Mode)

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: engine is shutting down...")

	reaperCtx := reaperCron.Stop()
	queueWorker.Shutdown()
	select {
	case <-reaperCtx.Done():
	case <-time.After(5 * time.Second):
		logger.Sugar().Warn("main: reaper did not drain in time")
	}

	logger.Sugar().Info("main: engine stopped gracefully")
}
