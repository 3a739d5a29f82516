package campaignRepo

import (
	"context"
	"time"

	"nexus/models"
)

// CampaignRepository persists campaigns. Status is only ever mutated through
// TransitionStatus, which applies a compare-and-swap against the current
// status, so concurrent workers can race on transitions safely.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	GetByID(ctx context.Context, id string) (*models.Campaign, error)

	// TransitionStatus sets the status to newStatus only if the current status
	// is in allowedCurrent (unconditionally when allowedCurrent is empty).
	// Returns whether the write took effect.
	TransitionStatus(ctx context.Context, id string, newStatus models.CampaignStatus, allowedCurrent []models.CampaignStatus) (bool, error)

	// MarkDialing moves the campaign to dialing and records the resolved
	// service type in the same write.
	MarkDialing(ctx context.Context, id, serviceType string) error

	// FindStale returns campaigns whose status is in statuses and whose
	// updated_at is older than before.
	FindStale(ctx context.Context, statuses []models.CampaignStatus, before time.Time) ([]models.Campaign, error)

	// Touch bumps updated_at so a swept campaign is not re-selected.
	Touch(ctx context.Context, id string) error
}
