package campaign

import (
	"fmt"

	"nexus/models"
)

// The campaign state machine:
//
//	created -> provider_lookup -> dialing -> negotiating -> ranking
//	                                   \________\__________/
//	                                              v
//	                            confirmed | failed | cancelled
//
// Any number of call tasks may race to push the same forward transition; the
// compare-and-swap guard in the repository makes the race idempotent (first
// writer wins, the rest are no-ops).

var knownStatuses = map[models.CampaignStatus]struct{}{
	models.CampaignCreated:        {},
	models.CampaignProviderLookup: {},
	models.CampaignDialing:        {},
	models.CampaignNegotiating:    {},
	models.CampaignRanking:        {},
	models.CampaignConfirmed:      {},
	models.CampaignFailed:         {},
	models.CampaignCancelled:      {},
}

// ParseStatus validates a raw status string.
func ParseStatus(s string) (models.CampaignStatus, error) {
	status := models.CampaignStatus(s)
	if _, ok := knownStatuses[status]; !ok {
		return "", fmt.Errorf("unknown campaign status %q", s)
	}
	return status, nil
}

// ActiveStatuses are the states a campaign can be stuck in; the stale reaper
// only ever sweeps these.
func ActiveStatuses() []models.CampaignStatus {
	return []models.CampaignStatus{models.CampaignDialing, models.CampaignNegotiating}
}
