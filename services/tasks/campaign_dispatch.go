package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"nexus/models"

	"github.com/hibiken/asynq"
)

const TypeCampaignDispatch = "campaign:dispatch"

// NewCampaignDispatchTask builds the queued intake task that launches a
// swarm. Dispatch is not retried: a half-launched swarm re-running would
// double-dial providers.
func NewCampaignDispatchTask(payload models.CampaignDispatchPayload) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeCampaignDispatch, b)
	opts := []asynq.Option{asynq.MaxRetry(0)}

	return task, opts, nil
}

// AsynqCampaignQueue is the producer side of the campaign intake, used by the
// request surface.
type AsynqCampaignQueue struct {
	client *asynq.Client
}

func NewAsynqCampaignQueue(client *asynq.Client) *AsynqCampaignQueue {
	return &AsynqCampaignQueue{client: client}
}

func (q *AsynqCampaignQueue) EnqueueCampaign(ctx context.Context, userID string, req models.CampaignRequest) error {
	task, opts, err := NewCampaignDispatchTask(models.CampaignDispatchPayload{UserID: userID, Request: req})
	if err != nil {
		return fmt.Errorf("error building campaign dispatch task: %w", err)
	}
	if _, err := q.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("error enqueueing campaign dispatch: %w", err)
	}
	return nil
}
