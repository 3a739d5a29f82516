package cron

import (
	"context"
	"fmt"
	"time"

	callTaskRepo "nexus/database/repository/calltask"
	campaignRepo "nexus/database/repository/campaign"
	"nexus/models"
	"nexus/services/campaign"
	"nexus/services/coordination"
	"nexus/utils"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	// staleThreshold is how long a campaign may sit in an active status
	// without progress before the reaper fails it.
	staleThreshold = 5 * time.Minute

	reapSchedule = "@every 60s"
	sweepTimeout = 30 * time.Second
)

// Reaper fails campaigns whose swarm died mid-flight (process crash, wedged
// agents) and releases the holds they left behind. It observes only the
// durable store and reuses the coordinator's release path, so it can run in
// any process.
type Reaper struct {
	Campaigns   campaignRepo.CampaignRepository
	Tasks       callTaskRepo.CallTaskRepository
	Coordinator coordination.SlotCoordinator
}

func NewReaper(campaigns campaignRepo.CampaignRepository, tasks callTaskRepo.CallTaskRepository, coordinator coordination.SlotCoordinator) *Reaper {
	return &Reaper{Campaigns: campaigns, Tasks: tasks, Coordinator: coordinator}
}

// Start schedules the periodic sweep. The returned scheduler is stopped by
// the process entry point.
func (r *Reaper) Start() (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(reapSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if err := r.SweepOnce(ctx); err != nil {
			utils.GetLogger().Error("Stale campaign sweep failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("error scheduling stale campaign sweep: %w", err)
	}
	c.Start()
	utils.GetLogger().Info("Stale campaign reaper started", zap.String("schedule", reapSchedule))
	return c, nil
}

// SweepOnce runs a single sweep. One campaign's cleanup failing never aborts
// the sweep for the rest.
func (r *Reaper) SweepOnce(ctx context.Context) error {
	logger := utils.GetLogger()

	before := time.Now().UTC().Add(-staleThreshold)
	stale, err := r.Campaigns.FindStale(ctx, campaign.ActiveStatuses(), before)
	if err != nil {
		return fmt.Errorf("error finding stale campaigns: %w", err)
	}

	for i := range stale {
		if err := r.reapCampaign(ctx, &stale[i]); err != nil {
			logger.Error("Failed to reap stale campaign",
				zap.String("campaignID", stale[i].ID), zap.Error(err))
		}
	}
	return nil
}

func (r *Reaper) reapCampaign(ctx context.Context, camp *models.Campaign) error {
	logger := utils.GetLogger().With(zap.String("campaignID", camp.ID))

	// Guarded: a campaign that got confirmed or cancelled between the query
	// and this write is left untouched.
	applied, err := r.Campaigns.TransitionStatus(ctx, camp.ID, models.CampaignFailed, campaign.ActiveStatuses())
	if err != nil {
		return fmt.Errorf("error failing campaign: %w", err)
	}
	if !applied {
		logger.Debug("Stale campaign resolved concurrently, skipping")
		return nil
	}

	tasks, err := r.Tasks.GetByCampaign(ctx, camp.ID)
	if err != nil {
		return fmt.Errorf("error loading call tasks for cleanup: %w", err)
	}
	var keys []string
	for _, t := range tasks {
		keys = append(keys, t.HoldKeys...)
	}
	released := r.Coordinator.ReleaseHolds(ctx, keys)

	if err := r.Campaigns.Touch(ctx, camp.ID); err != nil {
		logger.Warn("Failed to touch reaped campaign", zap.Error(err))
	}

	logger.Info("Reaped stale campaign",
		zap.String("lastStatus", string(camp.Status)),
		zap.Int("holdsReleased", released))
	return nil
}
