package swarm

import (
	"context"
	"time"

	"nexus/models"
	"nexus/services/coordination"
	"nexus/services/telephony"
	"nexus/utils"

	"go.uber.org/zap"
)

// runAgent is one call agent's lifecycle: place the outbound call, mark the
// task ringing, nudge the campaign to negotiating, then sit on the campaign's
// kill channel until the campaign resolves or the agent's lifetime expires.
//
// The worker deliberately detaches from the dispatch request context; the
// swarm outlives the request that launched it. Offers flow back through the
// tool layer, not through this goroutine.
func (d *Dispatcher) runAgent(camp *models.Campaign, task models.CallTask) {
	logger := utils.GetLogger().With(
		zap.String("campaignID", camp.ID),
		zap.String("callTaskID", task.ID),
		zap.String("provider", task.ProviderName))

	ctx, cancel := context.WithTimeout(context.Background(), agentLifetime)
	defer cancel()

	// Subscribe before dialing so a near-instant confirm cannot slip past us.
	kills, stopKills := d.Locks.Subscribe(ctx, coordination.KillChannel(camp.ID))
	defer stopKills()

	if err := d.dialLimiter.Wait(ctx); err != nil {
		logger.Warn("Agent gave up waiting for dial slot", zap.Error(err))
		return
	}

	err := d.Dialer.PlaceCall(ctx, telephony.DialRequest{
		CampaignID:  camp.ID,
		CallTaskID:  task.ID,
		UserID:      camp.UserID,
		ToNumber:    task.ProviderPhone,
		ServiceType: camp.ServiceType,
		TargetDate:  camp.PreferredDate,
		TargetTime:  camp.PreferredTime,
	})
	if err != nil {
		logger.Warn("Outbound dial failed", zap.Error(err))
		if merr := d.Tasks.MarkEnded(ctx, task.ID, models.CallTaskError, err.Error(), time.Now().UTC()); merr != nil {
			logger.Error("Failed to record dial failure", zap.Error(merr))
		}
		return
	}

	if err := d.Tasks.MarkStarted(ctx, task.ID); err != nil {
		logger.Error("Failed to mark call task ringing", zap.Error(err))
	}
	if _, err := d.States.MarkNegotiating(ctx, camp.ID); err != nil {
		logger.Warn("Failed to advance campaign to negotiating", zap.Error(err))
	}

	select {
	case msg, ok := <-kills:
		if ok {
			d.stopAgent(ctx, logger, camp.ID, task.ID, msg)
		}
	case <-ctx.Done():
		logger.Debug("Agent lifetime expired without a campaign resolution")
	}
}

// stopAgent handles a kill broadcast: losing tasks are marked cancelled and
// their holds released. The winning task is already terminal by the time the
// confirm broadcast goes out, so the terminal check makes this a no-op for it.
func (d *Dispatcher) stopAgent(ctx context.Context, logger *zap.Logger, campaignID, taskID, signal string) {
	logger.Info("Agent received kill signal", zap.String("signal", signal))

	task, err := d.Tasks.GetByID(ctx, taskID)
	if err != nil {
		logger.Error("Failed to load call task during kill handling", zap.Error(err))
		return
	}
	if task.Status.Terminal() {
		return
	}

	for _, key := range task.HoldKeys {
		if err := d.Locks.Release(ctx, key); err != nil {
			logger.Warn("Failed to release hold during kill handling",
				zap.String("holdKey", key), zap.Error(err))
		}
	}
	if err := d.Tasks.MarkEnded(ctx, taskID, models.CallTaskCancelled, "campaign resolved: "+signal, time.Now().UTC()); err != nil {
		logger.Error("Failed to cancel call task after kill signal", zap.Error(err))
	}
}
