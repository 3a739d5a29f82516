package callTaskRepo

import (
	"context"
	"time"

	"nexus/models"
)

// CallTaskRepository persists call tasks. Tasks are never deleted; terminal
// tasks remain as the campaign's audit trail.
type CallTaskRepository interface {
	CreateMany(ctx context.Context, tasks []models.CallTask) error
	GetByID(ctx context.Context, id string) (*models.CallTask, error)
	GetByCampaign(ctx context.Context, campaignID string) ([]models.CallTask, error)

	// MarkStarted sets the task ringing and records started_at.
	MarkStarted(ctx context.Context, id string) error

	UpdateStatus(ctx context.Context, id string, status models.CallTaskStatus) error

	// RecordOffer stores the offered slot and its match score, and moves the
	// task to slot_offered.
	RecordOffer(ctx context.Context, id string, offer models.SlotOffer, score float64) error

	// AppendHoldKey adds a lock key to the task's ordered cleanup list. This
	// write is separate from the lock acquisition and is best-effort; a lost
	// append only delays cleanup until the hold's TTL expires.
	AppendHoldKey(ctx context.Context, id, holdKey string) error

	// MarkEnded sets a terminal status, ended_at and an optional error message.
	MarkEnded(ctx context.Context, id string, status models.CallTaskStatus, errorMessage string, endedAt time.Time) error
}
