package campaign

import (
	"context"
	"sync"
	"testing"
	"time"

	"nexus/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCampaignRepo mimics the guarded Mongo update in memory.
type fakeCampaignRepo struct {
	mu       sync.Mutex
	statuses map[string]models.CampaignStatus
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{statuses: make(map[string]models.CampaignStatus)}
}

func (f *fakeCampaignRepo) Create(_ context.Context, c *models.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[c.ID] = c.Status
	return nil
}

func (f *fakeCampaignRepo) GetByID(_ context.Context, id string) (*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.Campaign{ID: id, Status: f.statuses[id]}, nil
}

func (f *fakeCampaignRepo) TransitionStatus(_ context.Context, id string, newStatus models.CampaignStatus, allowedCurrent []models.CampaignStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.statuses[id]
	if !ok {
		return false, nil
	}
	if len(allowedCurrent) > 0 {
		matched := false
		for _, s := range allowedCurrent {
			if s == current {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	f.statuses[id] = newStatus
	return true, nil
}

func (f *fakeCampaignRepo) MarkDialing(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = models.CampaignDialing
	return nil
}

func (f *fakeCampaignRepo) FindStale(_ context.Context, _ []models.CampaignStatus, _ time.Time) ([]models.Campaign, error) {
	return nil, nil
}

func (f *fakeCampaignRepo) Touch(_ context.Context, _ string) error { return nil }

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus("negotiating")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignNegotiating, status)

	_, err = ParseStatus("teleporting")
	assert.Error(t, err)
}

func TestAdvanceRejectsUnknownStatus(t *testing.T) {
	svc := NewService(newFakeCampaignRepo())
	_, err := svc.Advance(context.Background(), "c1", models.CampaignStatus("bogus"))
	assert.Error(t, err)
}

func TestConcurrentConfirmExactlyOneWins(t *testing.T) {
	repo := newFakeCampaignRepo()
	require.NoError(t, repo.Create(context.Background(), &models.Campaign{ID: "c1", Status: models.CampaignRanking}))
	svc := NewService(repo)

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := svc.Advance(context.Background(), "c1", models.CampaignConfirmed, models.CampaignRanking)
			require.NoError(t, err)
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	assert.Equal(t, 1, won, "exactly one worker should win the confirm transition")

	got, err := repo.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignConfirmed, got.Status)
}

func TestFailNeverRevertsTerminal(t *testing.T) {
	repo := newFakeCampaignRepo()
	svc := NewService(repo)

	for _, terminal := range []models.CampaignStatus{models.CampaignConfirmed, models.CampaignCancelled, models.CampaignFailed} {
		id := "c-" + string(terminal)
		require.NoError(t, repo.Create(context.Background(), &models.Campaign{ID: id, Status: terminal}))

		ok, err := svc.Fail(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, terminal, got.Status)
	}
}

func TestMarkNegotiatingIdempotentAcrossAgents(t *testing.T) {
	repo := newFakeCampaignRepo()
	require.NoError(t, repo.Create(context.Background(), &models.Campaign{ID: "c1", Status: models.CampaignDialing}))
	svc := NewService(repo)

	for i := 0; i < 3; i++ {
		ok, err := svc.MarkNegotiating(context.Background(), "c1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	got, err := repo.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignNegotiating, got.Status)
}
