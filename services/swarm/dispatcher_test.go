package swarm

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"nexus/config"
	"nexus/models"
	"nexus/services/campaign"
	"nexus/services/telephony"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes -----------------------------------------------------------------

type fakeCampaigns struct {
	mu        sync.Mutex
	campaigns map[string]*models.Campaign
}

func newFakeCampaigns() *fakeCampaigns {
	return &fakeCampaigns{campaigns: make(map[string]*models.Campaign)}
}

func (f *fakeCampaigns) Create(_ context.Context, c *models.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.campaigns[c.ID] = &cp
	return nil
}

func (f *fakeCampaigns) GetByID(_ context.Context, id string) (*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %s not found", id)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaigns) TransitionStatus(_ context.Context, id string, newStatus models.CampaignStatus, allowedCurrent []models.CampaignStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return false, nil
	}
	if len(allowedCurrent) > 0 {
		matched := false
		for _, s := range allowedCurrent {
			if s == c.Status {
				matched = true
			}
		}
		if !matched {
			return false, nil
		}
	}
	c.Status = newStatus
	return true, nil
}

func (f *fakeCampaigns) MarkDialing(_ context.Context, id, serviceType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.campaigns[id]; ok {
		c.Status = models.CampaignDialing
		c.ServiceType = serviceType
	}
	return nil
}

func (f *fakeCampaigns) FindStale(context.Context, []models.CampaignStatus, time.Time) ([]models.Campaign, error) {
	return nil, nil
}

func (f *fakeCampaigns) Touch(context.Context, string) error { return nil }

type fakeTasks struct {
	mu    sync.Mutex
	tasks map[string]*models.CallTask
}

func newFakeTasks() *fakeTasks { return &fakeTasks{tasks: make(map[string]*models.CallTask)} }

func (f *fakeTasks) CreateMany(_ context.Context, tasks []models.CallTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range tasks {
		cp := tasks[i]
		f.tasks[cp.ID] = &cp
	}
	return nil
}

func (f *fakeTasks) GetByID(_ context.Context, id string) (*models.CallTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, fmt.Errorf("call task %s not found", id)
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) GetByCampaign(_ context.Context, campaignID string) ([]models.CallTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CallTask
	for _, t := range f.tasks {
		if t.CampaignID == campaignID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTasks) MarkStarted(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tasks[id]; ok {
		now := time.Now().UTC()
		t.Status = models.CallTaskRinging
		t.StartedAt = &now
	}
	return nil
}

func (f *fakeTasks) UpdateStatus(_ context.Context, id string, status models.CallTaskStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tasks[id]; ok {
		t.Status = status
	}
	return nil
}

func (f *fakeTasks) RecordOffer(_ context.Context, id string, offer models.SlotOffer, score float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tasks[id]; ok {
		t.Offer = &offer
		t.Score = score
		t.Status = models.CallTaskSlotOffered
	}
	return nil
}

func (f *fakeTasks) AppendHoldKey(_ context.Context, id, holdKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tasks[id]; ok {
		t.HoldKeys = append(t.HoldKeys, holdKey)
	}
	return nil
}

func (f *fakeTasks) MarkEnded(_ context.Context, id string, status models.CallTaskStatus, errorMessage string, endedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tasks[id]; ok {
		t.Status = status
		t.ErrorMessage = errorMessage
		t.EndedAt = &endedAt
	}
	return nil
}

// fakeLocks is an in-memory LockStore whose Publish fans out to live
// subscribers on the same channel.
type fakeLocks struct {
	mu   sync.Mutex
	keys map[string]string
	subs map[string][]chan string
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{keys: make(map[string]string), subs: make(map[string][]chan string)}
}

func (f *fakeLocks) TryAcquire(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, held := f.keys[key]; held {
		return false, nil
	}
	f.keys[key] = value
	return true, nil
}

func (f *fakeLocks) Read(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[key], nil
}

func (f *fakeLocks) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	return nil
}

func (f *fakeLocks) Publish(_ context.Context, channel, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs[channel] {
		select {
		case ch <- message:
		default:
		}
	}
	return nil
}

func (f *fakeLocks) Subscribe(_ context.Context, channel string) (<-chan string, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan string, 4)
	f.subs[channel] = append(f.subs[channel], ch)
	return ch, func() {}
}

type fakeDirectory struct {
	providers []models.Provider
	err       error
}

func (f *fakeDirectory) Search(context.Context, string, string, int) ([]models.Provider, error) {
	return f.providers, f.err
}

type fakeDialer struct {
	mu    sync.Mutex
	calls []telephony.DialRequest
	err   error
}

func (f *fakeDialer) PlaceCall(_ context.Context, req telephony.DialRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.err
}

func (f *fakeDialer) dialed() []telephony.DialRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]telephony.DialRequest, len(f.calls))
	copy(out, f.calls)
	return out
}

// --- tests -----------------------------------------------------------------

func testProviders(n int) []models.Provider {
	out := make([]models.Provider, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Provider{
			ID:         fmt.Sprintf("prov-%d", i),
			Name:       fmt.Sprintf("Clinic %d", i),
			Phone:      fmt.Sprintf("+3160000000%d", i),
			Rating:     4.0,
			DistanceKm: float64(i + 1),
		})
	}
	return out
}

func newTestDispatcher(cfg config.Config, campaigns *fakeCampaigns, tasks *fakeTasks, dir *fakeDirectory, dialer *fakeDialer, locks *fakeLocks) *Dispatcher {
	return NewDispatcher(cfg, campaigns, tasks, campaign.NewService(campaigns), dir, dialer, locks)
}

func TestDispatchLaunchesOneAgentPerProvider(t *testing.T) {
	campaigns := newFakeCampaigns()
	tasks := newFakeTasks()
	dialer := &fakeDialer{}
	dir := &fakeDirectory{providers: testProviders(4)}
	cfg := config.Config{Mode: config.ModeLive, MaxCallAgents: 15}

	d := newTestDispatcher(cfg, campaigns, tasks, dir, dialer, newFakeLocks())
	plan, err := d.Dispatch(context.Background(), "user-1", models.CampaignRequest{Prompt: "book me a dentist"})
	require.NoError(t, err)

	assert.Len(t, plan.Providers, 4)
	assert.Len(t, plan.TaskIDs, 4)

	created, err := tasks.GetByCampaign(context.Background(), plan.CampaignID)
	require.NoError(t, err)
	assert.Len(t, created, 4)

	camp, err := campaigns.GetByID(context.Background(), plan.CampaignID)
	require.NoError(t, err)
	assert.Equal(t, "dentist", camp.ServiceType)

	// Workers dial asynchronously; wait for all four to go out and the
	// campaign to reach negotiating.
	require.Eventually(t, func() bool { return len(dialer.dialed()) == 4 }, 10*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		c, err := campaigns.GetByID(context.Background(), plan.CampaignID)
		return err == nil && c.Status == models.CampaignNegotiating
	}, 10*time.Second, 20*time.Millisecond)
}

func TestDispatchCapsSwarmAtMaxAgents(t *testing.T) {
	cfg := config.Config{Mode: config.ModeLive, MaxCallAgents: 5}
	d := newTestDispatcher(cfg, newFakeCampaigns(), newFakeTasks(), &fakeDirectory{providers: testProviders(9)}, &fakeDialer{}, newFakeLocks())

	plan, err := d.Dispatch(context.Background(), "user-1", models.CampaignRequest{ServiceType: "dentist"})
	require.NoError(t, err)
	assert.Len(t, plan.TaskIDs, 5)
}

func TestDispatchMockHumanRewritesPhonesRoundRobin(t *testing.T) {
	cfg := config.Config{
		Mode:               config.ModeMockHuman,
		MaxCallAgents:      15,
		MockHumanMaxCalls:  3,
		TargetPhoneNumbers: "+31611111111, +31622222222",
	}
	d := newTestDispatcher(cfg, newFakeCampaigns(), newFakeTasks(), &fakeDirectory{providers: testProviders(8)}, &fakeDialer{}, newFakeLocks())

	plan, err := d.Dispatch(context.Background(), "user-1", models.CampaignRequest{ServiceType: "dentist"})
	require.NoError(t, err)
	require.Len(t, plan.Providers, 3)
	assert.Equal(t, "+31611111111", plan.Providers[0].Phone)
	assert.Equal(t, "+31622222222", plan.Providers[1].Phone)
	assert.Equal(t, "+31611111111", plan.Providers[2].Phone)
}

func TestDispatchFailsCampaignWhenNoProviders(t *testing.T) {
	campaigns := newFakeCampaigns()
	cfg := config.Config{Mode: config.ModeLive, MaxCallAgents: 15}
	d := newTestDispatcher(cfg, campaigns, newFakeTasks(), &fakeDirectory{}, &fakeDialer{}, newFakeLocks())

	_, err := d.Dispatch(context.Background(), "user-1", models.CampaignRequest{ServiceType: "dentist"})
	require.Error(t, err)

	var failed bool
	campaigns.mu.Lock()
	for _, c := range campaigns.campaigns {
		failed = c.Status == models.CampaignFailed
	}
	campaigns.mu.Unlock()
	assert.True(t, failed, "campaign should be marked failed when provider lookup comes back empty")
}

func TestDispatchRejectsBlankRequest(t *testing.T) {
	cfg := config.Config{Mode: config.ModeLive, MaxCallAgents: 15}
	d := newTestDispatcher(cfg, newFakeCampaigns(), newFakeTasks(), &fakeDirectory{}, &fakeDialer{}, newFakeLocks())

	_, err := d.Dispatch(context.Background(), "", models.CampaignRequest{ServiceType: "dentist"})
	assert.Error(t, err)

	_, err = d.Dispatch(context.Background(), "user-1", models.CampaignRequest{})
	assert.Error(t, err)
}

func TestAgentDialFailureMarksTaskErrored(t *testing.T) {
	campaigns := newFakeCampaigns()
	tasks := newFakeTasks()
	dialer := &fakeDialer{err: fmt.Errorf("trunk unavailable")}
	cfg := config.Config{Mode: config.ModeLive, MaxCallAgents: 15}
	d := newTestDispatcher(cfg, campaigns, tasks, &fakeDirectory{providers: testProviders(1)}, dialer, newFakeLocks())

	plan, err := d.Dispatch(context.Background(), "user-1", models.CampaignRequest{ServiceType: "dentist"})
	require.NoError(t, err)
	require.Len(t, plan.TaskIDs, 1)

	require.Eventually(t, func() bool {
		task, err := tasks.GetByID(context.Background(), plan.TaskIDs[0])
		return err == nil && task.Status == models.CallTaskError
	}, 10*time.Second, 20*time.Millisecond)
}

func TestKillSignalCancelsAgentsAndReleasesHolds(t *testing.T) {
	campaigns := newFakeCampaigns()
	tasks := newFakeTasks()
	dialer := &fakeDialer{}
	locks := newFakeLocks()
	cfg := config.Config{Mode: config.ModeLive, MaxCallAgents: 15}
	d := newTestDispatcher(cfg, campaigns, tasks, &fakeDirectory{providers: testProviders(2)}, dialer, locks)

	plan, err := d.Dispatch(context.Background(), "user-1", models.CampaignRequest{ServiceType: "dentist"})
	require.NoError(t, err)

	// Wait for both agents to be on the air before broadcasting.
	require.Eventually(t, func() bool { return len(dialer.dialed()) == 2 }, 10*time.Second, 20*time.Millisecond)

	holdKey := "hold:user-1:2026-02-11:10:00"
	_, err = locks.TryAcquire(context.Background(), holdKey, plan.CampaignID+":"+plan.TaskIDs[0], time.Minute)
	require.NoError(t, err)
	require.NoError(t, tasks.AppendHoldKey(context.Background(), plan.TaskIDs[0], holdKey))

	require.NoError(t, locks.Publish(context.Background(), "kill:"+plan.CampaignID, "cancel"))

	require.Eventually(t, func() bool {
		for _, id := range plan.TaskIDs {
			task, err := tasks.GetByID(context.Background(), id)
			if err != nil || task.Status != models.CallTaskCancelled {
				return false
			}
		}
		return true
	}, 10*time.Second, 20*time.Millisecond)

	val, err := locks.Read(context.Background(), holdKey)
	require.NoError(t, err)
	assert.Empty(t, val, "hold should have been released during kill handling")
}

func TestResolveServiceType(t *testing.T) {
	cases := []struct {
		req  models.CampaignRequest
		want string
	}{
		{models.CampaignRequest{ServiceType: "Mechanic"}, "mechanic"},
		{models.CampaignRequest{Prompt: "I chipped a tooth, need someone today"}, "dentist"},
		{models.CampaignRequest{Prompt: "my car makes a weird noise"}, "mechanic"},
		{models.CampaignRequest{Prompt: "need a haircut friday"}, "hair salon"},
		{models.CampaignRequest{Prompt: "book me something"}, "dentist"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, resolveServiceType(tc.req))
	}
}
