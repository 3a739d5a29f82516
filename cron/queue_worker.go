package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appointmentRepo "nexus/database/repository/appointment"
	"nexus/models"
	"nexus/services/calendar"
	"nexus/services/swarm"
	"nexus/services/tasks"
	"nexus/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// InitQueueWorker runs the async worker consuming the engine's two queues:
// campaign intake (launches swarms) and calendar sync follow-ups. The
// returned server is shut down by the process entry point.
func InitQueueWorker(redisOpt asynq.RedisClientOpt, dispatcher *swarm.Dispatcher, appointments appointmentRepo.AppointmentRepository, cal calendar.Service) *asynq.Server {
	logger := utils.GetLogger()

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeCampaignDispatch, handleCampaignDispatchTask(dispatcher))
	mux.HandleFunc(tasks.TypeCalendarSync, handleCalendarSyncTask(appointments, cal))

	go func() {
		logger.Info("Starting queue worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				logger.Error("Queue worker failed to start",
					zap.Int("attempt", attempts), zap.Int("maxAttempts", maxAttempts), zap.Error(err))
				if attempts == maxAttempts {
					logger.Fatal("Queue worker exhausted start attempts")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()

	return srv
}

func handleCampaignDispatchTask(dispatcher *swarm.Dispatcher) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p models.CampaignDispatchPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			utils.GetLogger().Error("Invalid campaign dispatch payload", zap.Error(err))
			return err
		}

		plan, err := dispatcher.Dispatch(ctx, p.UserID, p.Request)
		if err != nil {
			// No retry: Dispatch already failed the campaign durably.
			utils.GetLogger().Error("Campaign dispatch failed",
				zap.String("userID", p.UserID), zap.Error(err))
			return nil
		}
		utils.GetLogger().Info("Campaign dispatched from queue",
			zap.String("campaignID", plan.CampaignID), zap.Int("agents", len(plan.TaskIDs)))
		return nil
	}
}

func handleCalendarSyncTask(appointments appointmentRepo.AppointmentRepository, cal calendar.Service) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		logger := utils.GetLogger()

		var p models.CalendarSyncPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("Invalid calendar sync payload", zap.Error(err))
			return err
		}

		appt, err := appointments.GetByID(ctx, p.AppointmentID)
		if err != nil {
			return fmt.Errorf("error loading appointment %s for calendar sync: %w", p.AppointmentID, err)
		}
		// Retried deliveries after a crash land here.
		if appt.CalendarSynced {
			return nil
		}

		eventID, err := cal.CreateEvent(ctx, calendar.EventRequest{
			UserID:      appt.UserID,
			Summary:     fmt.Sprintf("Appointment at %s", appt.ProviderName),
			Description: buildEventDescription(appt),
			Date:        appt.AppointmentDate,
			Time:        appt.AppointmentTime,
			DurationMin: appt.DurationMin,
		})
		if err != nil {
			// Returning the error lets asynq retry with backoff.
			return fmt.Errorf("error creating calendar event for appointment %s: %w", p.AppointmentID, err)
		}

		if err := appointments.MarkCalendarSynced(ctx, appt.ID, eventID); err != nil {
			return fmt.Errorf("error marking appointment %s calendar-synced: %w", appt.ID, err)
		}

		logger.Info("Appointment synced to calendar",
			zap.String("appointmentID", appt.ID),
			zap.String("eventID", eventID))
		return nil
	}
}

func buildEventDescription(appt *models.Appointment) string {
	desc := fmt.Sprintf("Booked by phone with %s (%s).", appt.ProviderName, appt.ProviderPhone)
	if appt.DoctorName != "" {
		desc += " With " + appt.DoctorName + "."
	}
	if appt.ProviderAddress != "" {
		desc += " Address: " + appt.ProviderAddress
	}
	return desc
}
