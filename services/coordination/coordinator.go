package coordination

import (
	"context"
	"errors"
	"fmt"
	"time"

	appointmentRepo "nexus/database/repository/appointment"
	callTaskRepo "nexus/database/repository/calltask"
	campaignRepo "nexus/database/repository/campaign"
	"nexus/models"
	"nexus/services/calendar"
	"nexus/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HoldStatus is the outcome of a CheckAndHold call.
type HoldStatus string

const (
	StatusHeld         HoldStatus = "held"
	StatusConflict     HoldStatus = "conflict"
	StatusSoftConflict HoldStatus = "soft_conflict"
)

// HoldRequest asks for a soft hold on one (user, date, time) slot on behalf
// of a call task.
type HoldRequest struct {
	UserID      string
	CampaignID  string
	CallTaskID  string
	Date        string // flexible; normalized before validation
	Time        string // flexible; normalized before validation
	DurationMin int
}

// HoldResult reports the outcome of a hold attempt.
type HoldResult struct {
	Status        HoldStatus
	Conflicts     []string      // hard-conflict event names, when Status == conflict
	HeldBy        string        // holding campaign id, when Status == soft_conflict
	HoldKey       string        // set when Status == held; caller keeps it for cleanup
	HoldExpiresIn time.Duration // set when Status == held
}

// BookingRequest finalizes a negotiated slot for a campaign.
type BookingRequest struct {
	CampaignID      string
	CallTaskID      string
	UserID          string
	ProviderID      string
	ProviderName    string
	ProviderPhone   string
	ProviderAddress string
	Date            string
	Time            string
	DurationMin     int
	DoctorName      string
	ReleaseKeys     []string // every hold key the swarm accumulated for this campaign
}

// BookingResult reports a successful booking. Failures are typed errors.
type BookingResult struct {
	Booked             bool
	AppointmentID      string
	CalendarSyncQueued bool
}

// SyncScheduler enqueues the post-booking calendar follow-up. Optional; a nil
// scheduler skips the sync without affecting the booking.
type SyncScheduler interface {
	ScheduleCalendarSync(ctx context.Context, appointmentID, userID string) error
}

// SlotCoordinator arbitrates concurrent slot claims across a campaign's
// swarm: soft holds while negotiation is in flight, one hard booking lock
// gating the single durable write, and the kill broadcast that stops the
// losers.
type SlotCoordinator interface {
	CheckAndHold(ctx context.Context, req HoldRequest) (*HoldResult, error)
	ConfirmAndBook(ctx context.Context, req BookingRequest) (*BookingResult, error)
	ReleaseHolds(ctx context.Context, keys []string) int
	CancelCampaign(ctx context.Context, campaignID string) (bool, error)
	EndCall(ctx context.Context, campaignID, callTaskID string, status models.CallTaskStatus, holdKeys []string) error
}

// DefaultSlotCoordinator implements SlotCoordinator.
type DefaultSlotCoordinator struct {
	Locks        LockStore
	Campaigns    campaignRepo.CampaignRepository
	Tasks        callTaskRepo.CallTaskRepository
	Appointments appointmentRepo.AppointmentRepository
	Calendar     calendar.Service
	Sync         SyncScheduler
}

// CheckAndHold runs the conflict-check sequence and, when the slot is free,
// places a TTL-bounded hold on it. The hard checks (calendar, confirmed
// appointments) guard against confirmed reality; the hold only prevents two
// campaigns from both believing they can offer the same slot while
// negotiation is still in flight.
func (c *DefaultSlotCoordinator) CheckAndHold(ctx context.Context, req HoldRequest) (*HoldResult, error) {
	log := utils.GetLogger().With(
		zap.String("campaignId", req.CampaignID),
		zap.String("callTaskId", req.CallTaskID),
	)

	date := utils.NormalizeDate(req.Date)
	timeOfDay := utils.NormalizeTime(req.Time)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", req.Date)}
	}
	if _, err := time.Parse("15:04", timeOfDay); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("invalid time %q, expected HH:MM", req.Time)}
	}
	duration := req.DurationMin
	if duration <= 0 {
		duration = 30
	}

	// Hard check 1: the user's calendar. A failed check degrades to
	// not-busy; the durable store and the hold still protect the slot.
	busy, conflicts, err := c.Calendar.IsBusy(ctx, req.UserID, date, timeOfDay, duration)
	if err != nil {
		log.Warn("calendar busy check failed", zap.Error(err))
		busy = false
	}
	if busy && len(conflicts) > 0 {
		log.Info("slot conflicts with calendar", zap.Strings("conflicts", conflicts))
		return &HoldResult{Status: StatusConflict, Conflicts: conflicts}, nil
	}

	// Hard check 2: an already-confirmed appointment at the exact tuple.
	existing, err := c.Appointments.FindConfirmed(ctx, req.UserID, date, timeOfDay)
	if err != nil {
		return nil, fmt.Errorf("confirmed appointment lookup failed: %w", err)
	}
	if existing != nil {
		return &HoldResult{
			Status:    StatusConflict,
			Conflicts: []string{"Appointment at " + existing.ProviderName},
		}, nil
	}

	// Soft hold: atomic set-if-absent with TTL.
	key := HoldKey(req.UserID, date, timeOfDay)
	acquired, err := c.Locks.TryAcquire(ctx, key, HoldValue(req.CampaignID, req.CallTaskID), HoldTTL)
	if err != nil {
		return nil, err
	}
	if acquired {
		// Recording the key on the task is a separate write and best-effort:
		// if it is lost, the hold still expires via TTL.
		if err := c.Tasks.AppendHoldKey(ctx, req.CallTaskID, key); err != nil {
			log.Warn("failed to record hold key on call task", zap.String("holdKey", key), zap.Error(err))
		}
		log.Info("slot held", zap.String("holdKey", key))
		return &HoldResult{Status: StatusHeld, HoldKey: key, HoldExpiresIn: HoldTTL}, nil
	}

	val, err := c.Locks.Read(ctx, key)
	if err != nil && !errors.Is(err, ErrKeyAbsent) {
		return nil, err
	}
	heldBy := HolderCampaign(val)
	log.Info("slot already held", zap.String("heldBy", heldBy))
	return &HoldResult{Status: StatusSoftConflict, HeldBy: heldBy}, nil
}

// ConfirmAndBook finalizes the booking: acquire the campaign's booking lock,
// persist the appointment and campaign confirmation in one transaction,
// release the swarm's holds and broadcast the kill signal. The booking lock
// is deliberately left to expire on success.
func (c *DefaultSlotCoordinator) ConfirmAndBook(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	log := utils.GetLogger().With(
		zap.String("campaignId", req.CampaignID),
		zap.String("callTaskId", req.CallTaskID),
	)

	// Malformed ids are the most common caller mistake; reject before any
	// lock is touched.
	if _, err := uuid.Parse(req.CampaignID); err != nil {
		return nil, &ValidationError{Reason: "campaign_id must be the campaign UUID issued at call start"}
	}
	if _, err := uuid.Parse(req.CallTaskID); err != nil {
		return nil, &ValidationError{Reason: "call_task_id must be the call task UUID issued at call start"}
	}
	date := utils.NormalizeDate(req.Date)
	timeOfDay := utils.NormalizeTime(req.Time)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", req.Date)}
	}
	if _, err := time.Parse("15:04", timeOfDay); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("invalid time %q, expected HH:MM", req.Time)}
	}
	duration := req.DurationMin
	if duration <= 0 {
		duration = 30
	}

	// Re-check the calendar right before committing.
	busy, conflicts, err := c.Calendar.IsBusy(ctx, req.UserID, date, timeOfDay, duration)
	if err != nil {
		log.Warn("calendar busy re-check failed", zap.Error(err))
	} else if busy && len(conflicts) > 0 {
		return nil, &ConflictError{Conflicts: conflicts}
	}

	// The booking lock is the actual mutual-exclusion gate across the swarm.
	lockKey := BookingLockKey(req.CampaignID)
	acquired, err := c.Locks.TryAcquire(ctx, lockKey, req.CallTaskID, BookingLockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		log.Warn("booking lock already held")
		return nil, ErrLockContention
	}

	appointment := &models.Appointment{
		ID:              uuid.New().String(),
		CampaignID:      req.CampaignID,
		CallTaskID:      req.CallTaskID,
		UserID:          req.UserID,
		ProviderID:      req.ProviderID,
		ProviderName:    req.ProviderName,
		ProviderPhone:   req.ProviderPhone,
		ProviderAddress: req.ProviderAddress,
		AppointmentDate: date,
		AppointmentTime: timeOfDay,
		DurationMin:     duration,
		DoctorName:      req.DoctorName,
	}

	if err := c.Appointments.BookTransactionally(ctx, appointment); err != nil {
		// The lock must not outlive a failed write, or the campaign would be
		// stuck until the TTL.
		if relErr := c.Locks.Release(ctx, lockKey); relErr != nil {
			log.Error("failed to release booking lock after persist failure", zap.Error(relErr))
		}
		switch {
		case errors.Is(err, appointmentRepo.ErrDuplicateSlot):
			return nil, &ConflictError{Conflicts: []string{"slot already booked for this user"}}
		case errors.Is(err, appointmentRepo.ErrCampaignNotBookable):
			return nil, &ConflictError{Conflicts: []string{"campaign already concluded"}}
		default:
			return nil, &PersistError{Err: err}
		}
	}

	result := &BookingResult{Booked: true, AppointmentID: appointment.ID}

	// Calendar sync runs as an async follow-up; its failure never unwinds
	// the booking.
	if c.Sync != nil {
		if err := c.Sync.ScheduleCalendarSync(ctx, appointment.ID, req.UserID); err != nil {
			log.Warn("failed to enqueue calendar sync", zap.Error(err))
		} else {
			result.CalendarSyncQueued = true
		}
	}

	released := c.ReleaseHolds(ctx, req.ReleaseKeys)
	log.Info("booking confirmed",
		zap.String("appointmentId", appointment.ID),
		zap.Int("holdsReleased", released),
	)

	if err := c.Locks.Publish(ctx, KillChannel(req.CampaignID), KillConfirm); err != nil {
		log.Warn("failed to publish kill signal", zap.Error(err))
	}
	return result, nil
}

// ReleaseHolds deletes the given hold keys, best effort. Returns how many
// deletes succeeded; failures are logged and skipped, the TTL cleans up the
// rest.
func (c *DefaultSlotCoordinator) ReleaseHolds(ctx context.Context, keys []string) int {
	released := 0
	for _, key := range keys {
		if err := c.Locks.Release(ctx, key); err != nil {
			utils.GetLogger().Warn("failed to release hold", zap.String("holdKey", key), zap.Error(err))
			continue
		}
		released++
	}
	return released
}

// CancelCampaign moves a campaign to cancelled (guarded so a concurrent
// confirmation wins), releases every hold its tasks accumulated and
// broadcasts the cancel signal. Returns whether the cancellation applied.
func (c *DefaultSlotCoordinator) CancelCampaign(ctx context.Context, campaignID string) (bool, error) {
	log := utils.GetLogger().With(zap.String("campaignId", campaignID))

	applied, err := c.Campaigns.TransitionStatus(ctx, campaignID, models.CampaignCancelled, []models.CampaignStatus{
		models.CampaignCreated,
		models.CampaignProviderLookup,
		models.CampaignDialing,
		models.CampaignNegotiating,
		models.CampaignRanking,
	})
	if err != nil {
		return false, fmt.Errorf("cancel transition failed: %w", err)
	}
	if !applied {
		log.Info("cancel skipped, campaign already terminal")
		return false, nil
	}

	tasks, err := c.Tasks.GetByCampaign(ctx, campaignID)
	if err != nil {
		log.Warn("failed to load call tasks for cancel cleanup", zap.Error(err))
	}
	var keys []string
	for _, t := range tasks {
		keys = append(keys, t.HoldKeys...)
	}
	released := c.ReleaseHolds(ctx, keys)

	if err := c.Locks.Publish(ctx, KillChannel(campaignID), KillCancel); err != nil {
		log.Warn("failed to publish cancel signal", zap.Error(err))
	}
	log.Info("campaign cancelled", zap.Int("holdsReleased", released))
	return true, nil
}

// EndCall records a call task's terminal outcome and releases the holds it
// reported. Cleanup is bounded; a slow store cannot wedge call teardown.
func (c *DefaultSlotCoordinator) EndCall(ctx context.Context, campaignID, callTaskID string, status models.CallTaskStatus, holdKeys []string) error {
	if callTaskID == "" {
		return &ValidationError{Reason: "call_task_id is required"}
	}
	if status == "" {
		status = models.CallTaskCompleted
	}
	if !status.Terminal() {
		return &ValidationError{Reason: fmt.Sprintf("status %q is not a terminal call outcome", status)}
	}

	if err := c.Tasks.MarkEnded(ctx, callTaskID, status, "", time.Now()); err != nil {
		return fmt.Errorf("end call update failed: %w", err)
	}

	releaseCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	c.ReleaseHolds(releaseCtx, holdKeys)
	utils.GetLogger().Info("call ended",
		zap.String("campaignId", campaignID),
		zap.String("callTaskId", callTaskID),
		zap.String("status", string(status)),
	)
	return nil
}
