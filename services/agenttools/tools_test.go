package agenttools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"nexus/models"
	"nexus/services/campaign"
	"nexus/services/coordination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCoordinator records what the tool layer asks of it and answers with
// canned results.
type fakeCoordinator struct {
	holdResult *coordination.HoldResult
	holdErr    error
	bookResult *coordination.BookingResult
	bookErr    error

	bookReq  *coordination.BookingRequest
	endCalls []struct {
		campaignID string
		callTaskID string
		status     models.CallTaskStatus
		holdKeys   []string
	}
}

func (f *fakeCoordinator) CheckAndHold(_ context.Context, _ coordination.HoldRequest) (*coordination.HoldResult, error) {
	return f.holdResult, f.holdErr
}

func (f *fakeCoordinator) ConfirmAndBook(_ context.Context, req coordination.BookingRequest) (*coordination.BookingResult, error) {
	f.bookReq = &req
	return f.bookResult, f.bookErr
}

func (f *fakeCoordinator) ReleaseHolds(context.Context, []string) int { return 0 }

func (f *fakeCoordinator) CancelCampaign(context.Context, string) (bool, error) { return false, nil }

func (f *fakeCoordinator) EndCall(_ context.Context, campaignID, callTaskID string, status models.CallTaskStatus, holdKeys []string) error {
	f.endCalls = append(f.endCalls, struct {
		campaignID string
		callTaskID string
		status     models.CallTaskStatus
		holdKeys   []string
	}{campaignID, callTaskID, status, holdKeys})
	return nil
}

type fakeTaskStore struct {
	tasks  map[string]*models.CallTask
	offers map[string]models.SlotOffer
	scores map[string]float64
}

func newFakeTaskStore(tasks ...*models.CallTask) *fakeTaskStore {
	f := &fakeTaskStore{
		tasks:  make(map[string]*models.CallTask),
		offers: make(map[string]models.SlotOffer),
		scores: make(map[string]float64),
	}
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
	return f
}

func (f *fakeTaskStore) CreateMany(context.Context, []models.CallTask) error { return nil }

func (f *fakeTaskStore) GetByID(_ context.Context, id string) (*models.CallTask, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, fmt.Errorf("call task %s not found", id)
	}
	return t, nil
}

func (f *fakeTaskStore) GetByCampaign(_ context.Context, campaignID string) ([]models.CallTask, error) {
	var out []models.CallTask
	for _, t := range f.tasks {
		if t.CampaignID == campaignID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) MarkStarted(context.Context, string) error { return nil }

func (f *fakeTaskStore) UpdateStatus(_ context.Context, id string, status models.CallTaskStatus) error {
	f.tasks[id].Status = status
	return nil
}

func (f *fakeTaskStore) RecordOffer(_ context.Context, id string, offer models.SlotOffer, score float64) error {
	f.offers[id] = offer
	f.scores[id] = score
	f.tasks[id].Status = models.CallTaskSlotOffered
	return nil
}

func (f *fakeTaskStore) AppendHoldKey(_ context.Context, id, holdKey string) error {
	f.tasks[id].HoldKeys = append(f.tasks[id].HoldKeys, holdKey)
	return nil
}

func (f *fakeTaskStore) MarkEnded(_ context.Context, id string, status models.CallTaskStatus, _ string, _ time.Time) error {
	f.tasks[id].Status = status
	return nil
}

type fakeCampaignStore struct {
	campaigns map[string]*models.Campaign
}

func newFakeCampaignStore(campaigns ...*models.Campaign) *fakeCampaignStore {
	f := &fakeCampaignStore{campaigns: make(map[string]*models.Campaign)}
	for _, c := range campaigns {
		f.campaigns[c.ID] = c
	}
	return f
}

func (f *fakeCampaignStore) Create(context.Context, *models.Campaign) error { return nil }

func (f *fakeCampaignStore) GetByID(_ context.Context, id string) (*models.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %s not found", id)
	}
	return c, nil
}

func (f *fakeCampaignStore) TransitionStatus(_ context.Context, id string, newStatus models.CampaignStatus, allowedCurrent []models.CampaignStatus) (bool, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return false, nil
	}
	for _, s := range allowedCurrent {
		if s == c.Status {
			c.Status = newStatus
			return true, nil
		}
	}
	return len(allowedCurrent) == 0, nil
}

func (f *fakeCampaignStore) MarkDialing(context.Context, string, string) error { return nil }

func (f *fakeCampaignStore) FindStale(context.Context, []models.CampaignStatus, time.Time) ([]models.Campaign, error) {
	return nil, nil
}

func (f *fakeCampaignStore) Touch(context.Context, string) error { return nil }

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestDispatchToolCallUnknownTool(t *testing.T) {
	h := NewHandler(&fakeCoordinator{}, newFakeCampaignStore(), newFakeTaskStore(), campaign.NewService(newFakeCampaignStore()))
	_, err := h.DispatchToolCall(context.Background(), "teleport_user", nil)
	assert.Error(t, err)
}

func TestCheckAvailabilityHeld(t *testing.T) {
	coord := &fakeCoordinator{holdResult: &coordination.HoldResult{
		Status:        coordination.StatusHeld,
		HoldKey:       "hold:u1:2026-02-11:10:00",
		HoldExpiresIn: coordination.HoldTTL,
	}}
	h := NewHandler(coord, newFakeCampaignStore(), newFakeTaskStore(), campaign.NewService(newFakeCampaignStore()))

	raw, err := h.DispatchToolCall(context.Background(), ToolCheckAvailability, map[string]any{
		"user_id": "u1", "campaign_id": "c1", "call_task_id": "t1",
		"date": "2026-02-11", "time": "10:00",
	})
	require.NoError(t, err)

	got := decode(t, raw)
	assert.Equal(t, "available", got["status"])
	assert.Equal(t, "hold:u1:2026-02-11:10:00", got["hold_key"])
	assert.Equal(t, float64(180), got["hold_expires_in_seconds"])
}

func TestCheckAvailabilitySoftConflict(t *testing.T) {
	coord := &fakeCoordinator{holdResult: &coordination.HoldResult{
		Status: coordination.StatusSoftConflict,
		HeldBy: "other-campaign",
	}}
	h := NewHandler(coord, newFakeCampaignStore(), newFakeTaskStore(), campaign.NewService(newFakeCampaignStore()))

	raw, err := h.DispatchToolCall(context.Background(), ToolCheckAvailability, map[string]any{})
	require.NoError(t, err)

	got := decode(t, raw)
	assert.Equal(t, "soft_conflict", got["status"])
	assert.Equal(t, "other-campaign", got["held_by"])
}

func TestCheckAvailabilityFlattensValidationError(t *testing.T) {
	coord := &fakeCoordinator{holdErr: &coordination.ValidationError{Reason: "invalid date"}}
	h := NewHandler(coord, newFakeCampaignStore(), newFakeTaskStore(), campaign.NewService(newFakeCampaignStore()))

	raw, err := h.DispatchToolCall(context.Background(), ToolCheckAvailability, map[string]any{})
	require.NoError(t, err, "engine failures must come back as JSON, not errors")

	got := decode(t, raw)
	assert.Equal(t, "error", got["status"])
	assert.Equal(t, "invalid date", got["reason"])
}

func TestReportSlotOfferScoresAndAdvancesCampaign(t *testing.T) {
	camp := &models.Campaign{ID: "c1", Status: models.CampaignNegotiating}
	task := &models.CallTask{ID: "t1", CampaignID: "c1", ProviderRating: 4.5, DistanceKm: 3}
	campaigns := newFakeCampaignStore(camp)
	tasks := newFakeTaskStore(task)
	h := NewHandler(&fakeCoordinator{}, campaigns, tasks, campaign.NewService(campaigns))

	raw, err := h.DispatchToolCall(context.Background(), ToolReportSlotOffer, map[string]any{
		"campaign_id": "c1", "call_task_id": "t1",
		"date": "friday", "time": "10 AM", "duration_min": float64(45), "doctor": "Dr. Vermeer",
	})
	require.NoError(t, err)

	got := decode(t, raw)
	assert.Equal(t, "recorded", got["status"])

	offer := tasks.offers["t1"]
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, offer.Date)
	assert.Equal(t, "10:00", offer.Time)
	assert.Equal(t, 45, offer.DurationMin)
	assert.Equal(t, "Dr. Vermeer", offer.Doctor)

	score := tasks.scores["t1"]
	assert.Greater(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
	assert.Equal(t, models.CallTaskSlotOffered, task.Status)
	assert.Equal(t, models.CampaignRanking, camp.Status)
}

func TestBookSlotReleasesEveryHoldInTheSwarm(t *testing.T) {
	winner := &models.CallTask{ID: "t1", CampaignID: "c1", ProviderID: "p1", ProviderName: "Clinic A", HoldKeys: []string{"hold:u1:a"}}
	loser := &models.CallTask{ID: "t2", CampaignID: "c1", HoldKeys: []string{"hold:u1:b", "hold:u1:c"}}
	coord := &fakeCoordinator{bookResult: &coordination.BookingResult{
		Booked: true, AppointmentID: "appt-1", CalendarSyncQueued: true,
	}}
	campaigns := newFakeCampaignStore()
	h := NewHandler(coord, campaigns, newFakeTaskStore(winner, loser), campaign.NewService(campaigns))

	raw, err := h.DispatchToolCall(context.Background(), ToolBookSlot, map[string]any{
		"campaign_id": "c1", "call_task_id": "t1", "user_id": "u1",
		"date": "2026-02-11", "time": "10:00",
	})
	require.NoError(t, err)

	got := decode(t, raw)
	assert.Equal(t, "booked", got["status"])
	assert.Equal(t, "appt-1", got["appointment_id"])
	assert.Equal(t, true, got["calendar_sync_queued"])

	require.NotNil(t, coord.bookReq)
	assert.Equal(t, "Clinic A", coord.bookReq.ProviderName)
	assert.ElementsMatch(t, []string{"hold:u1:a", "hold:u1:b", "hold:u1:c"}, coord.bookReq.ReleaseKeys)

	require.Len(t, coord.endCalls, 1)
	assert.Equal(t, models.CallTaskCompleted, coord.endCalls[0].status)
}

func TestBookSlotFlattensLockContention(t *testing.T) {
	task := &models.CallTask{ID: "t1", CampaignID: "c1"}
	coord := &fakeCoordinator{bookErr: coordination.ErrLockContention}
	campaigns := newFakeCampaignStore()
	h := NewHandler(coord, campaigns, newFakeTaskStore(task), campaign.NewService(campaigns))

	raw, err := h.DispatchToolCall(context.Background(), ToolBookSlot, map[string]any{
		"campaign_id": "c1", "call_task_id": "t1",
	})
	require.NoError(t, err)

	got := decode(t, raw)
	assert.Equal(t, "error", got["status"])
	assert.Contains(t, got["reason"], "already in progress")
	assert.Empty(t, coord.endCalls, "a failed booking must not close the call task")
}

func TestEndCallPassesTaskHoldKeys(t *testing.T) {
	task := &models.CallTask{ID: "t1", CampaignID: "c1", HoldKeys: []string{"hold:u1:a"}}
	coord := &fakeCoordinator{}
	campaigns := newFakeCampaignStore()
	h := NewHandler(coord, campaigns, newFakeTaskStore(task), campaign.NewService(campaigns))

	raw, err := h.DispatchToolCall(context.Background(), ToolEndCall, map[string]any{
		"campaign_id": "c1", "call_task_id": "t1", "outcome": "no_answer",
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", decode(t, raw)["status"])

	require.Len(t, coord.endCalls, 1)
	assert.Equal(t, models.CallTaskNoAnswer, coord.endCalls[0].status)
	assert.Equal(t, []string{"hold:u1:a"}, coord.endCalls[0].holdKeys)
}

func TestGetDistance(t *testing.T) {
	task := &models.CallTask{ID: "t1", CampaignID: "c1", DistanceKm: 4.2, TravelTimeMin: 12}
	campaigns := newFakeCampaignStore()
	h := NewHandler(&fakeCoordinator{}, campaigns, newFakeTaskStore(task), campaign.NewService(campaigns))

	raw, err := h.DispatchToolCall(context.Background(), ToolGetDistance, map[string]any{"call_task_id": "t1"})
	require.NoError(t, err)

	got := decode(t, raw)
	assert.Equal(t, 4.2, got["distance_km"])
	assert.Equal(t, float64(12), got["travel_time_min"])
}
