package campaign

import (
	"context"
	"fmt"

	campaignRepo "nexus/database/repository/campaign"
	"nexus/models"
	"nexus/utils"

	"go.uber.org/zap"
)

// Service owns campaign lifecycle transitions. All writes go through the
// repository's guarded update so concurrent agents can never revert a
// terminal state.
type Service struct {
	Repo campaignRepo.CampaignRepository
}

func NewService(repo campaignRepo.CampaignRepository) *Service {
	return &Service{Repo: repo}
}

// Advance moves the campaign to newStatus if its current status is one of
// allowedCurrent. Returns false when another writer got there first or the
// campaign is already past that point.
func (s *Service) Advance(ctx context.Context, campaignID string, newStatus models.CampaignStatus, allowedCurrent ...models.CampaignStatus) (bool, error) {
	if _, err := ParseStatus(string(newStatus)); err != nil {
		return false, fmt.Errorf("error advancing campaign %s: %w", campaignID, err)
	}
	ok, err := s.Repo.TransitionStatus(ctx, campaignID, newStatus, allowedCurrent)
	if err != nil {
		return false, fmt.Errorf("error advancing campaign %s to %s: %w", campaignID, newStatus, err)
	}
	if !ok {
		utils.GetLogger().Debug("Campaign transition skipped, guard did not match",
			zap.String("campaignID", campaignID),
			zap.String("newStatus", string(newStatus)))
	}
	return ok, nil
}

// MarkNegotiating is the per-call-task hop from dialing. Agents already in
// negotiating keep it there, so both states are accepted as current.
func (s *Service) MarkNegotiating(ctx context.Context, campaignID string) (bool, error) {
	return s.Advance(ctx, campaignID, models.CampaignNegotiating, models.CampaignDialing, models.CampaignNegotiating)
}

// MarkRanking records that at least one slot offer landed.
func (s *Service) MarkRanking(ctx context.Context, campaignID string) (bool, error) {
	return s.Advance(ctx, campaignID, models.CampaignRanking, models.CampaignDialing, models.CampaignNegotiating, models.CampaignRanking)
}

// Fail pushes a stuck campaign to failed. Terminal campaigns are left alone.
func (s *Service) Fail(ctx context.Context, campaignID string) (bool, error) {
	return s.Advance(ctx, campaignID, models.CampaignFailed,
		models.CampaignCreated, models.CampaignProviderLookup,
		models.CampaignDialing, models.CampaignNegotiating, models.CampaignRanking)
}
