package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nexus/models"

	"github.com/hibiken/asynq"
)

const TypeCalendarSync = "calendar:sync"

// NewCalendarSyncTask builds the queued follow-up that pushes a confirmed
// appointment into the user's calendar.
func NewCalendarSyncTask(payload models.CalendarSyncPayload) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeCalendarSync, b)
	opts := []asynq.Option{asynq.MaxRetry(5), asynq.Timeout(30 * time.Second)}

	return task, opts, nil
}

// AsynqSyncScheduler enqueues calendar sync follow-ups on an asynq client.
type AsynqSyncScheduler struct {
	client *asynq.Client
}

// NewAsynqSyncScheduler wraps an already-connected asynq client. The caller
// owns the client's lifecycle.
func NewAsynqSyncScheduler(client *asynq.Client) *AsynqSyncScheduler {
	return &AsynqSyncScheduler{client: client}
}

func (s *AsynqSyncScheduler) ScheduleCalendarSync(ctx context.Context, appointmentID, userID string) error {
	task, opts, err := NewCalendarSyncTask(models.CalendarSyncPayload{
		AppointmentID: appointmentID,
		UserID:        userID,
	})
	if err != nil {
		return fmt.Errorf("error building calendar sync task: %w", err)
	}
	if _, err := s.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("error enqueueing calendar sync for appointment %s: %w", appointmentID, err)
	}
	return nil
}
