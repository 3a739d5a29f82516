package swarm

import (
	"testing"
	"time"

	"nexus/models"

	"github.com/stretchr/testify/assert"
)

var scoreNow = time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

func offerAt(date, timeOfDay string) models.SlotOffer {
	return models.SlotOffer{Date: date, Time: timeOfDay, DurationMin: 30}
}

func TestMatchScoreEarlierSlotScoresHigher(t *testing.T) {
	soon := MatchScore(offerAt("2026-02-10", "09:00"), 4.0, 5, DefaultWeights, scoreNow)
	later := MatchScore(offerAt("2026-02-12", "09:00"), 4.0, 5, DefaultWeights, scoreNow)
	assert.Greater(t, soon, later)
}

func TestMatchScoreHigherRatingScoresHigher(t *testing.T) {
	offer := offerAt("2026-02-11", "10:00")
	better := MatchScore(offer, 4.8, 5, DefaultWeights, scoreNow)
	worse := MatchScore(offer, 3.1, 5, DefaultWeights, scoreNow)
	assert.Greater(t, better, worse)
}

func TestMatchScoreNearerProviderScoresHigher(t *testing.T) {
	offer := offerAt("2026-02-11", "10:00")
	near := MatchScore(offer, 4.0, 2, DefaultWeights, scoreNow)
	far := MatchScore(offer, 4.0, 25, DefaultWeights, scoreNow)
	assert.Greater(t, near, far)
}

func TestMatchScoreHorizonFloor(t *testing.T) {
	// Both offers are past the 14-day horizon; the earliest component floors
	// out so only rating/proximity could differ.
	a := MatchScore(offerAt("2026-03-10", "09:00"), 4.0, 5, DefaultWeights, scoreNow)
	b := MatchScore(offerAt("2026-06-01", "09:00"), 4.0, 5, DefaultWeights, scoreNow)
	assert.InDelta(t, a, b, 1e-9)
}

func TestMatchScoreUnparseableSlotIsNeutral(t *testing.T) {
	got := MatchScore(offerAt("whenever", "soonish"), 0, refMaxKm, DefaultWeights, scoreNow)
	// rating and proximity both zero, so the only contribution is the
	// neutral earliest component.
	assert.InDelta(t, DefaultWeights.Earliest*neutralEarliest, got, 1e-9)
}

func TestMatchScoreBounds(t *testing.T) {
	best := MatchScore(offerAt("2026-02-10", "08:00"), 5.0, 0, DefaultWeights, scoreNow)
	worst := MatchScore(offerAt("2027-01-01", "08:00"), 0, 100, DefaultWeights, scoreNow)
	assert.InDelta(t, 1.0, best, 1e-9)
	assert.InDelta(t, 0.0, worst, 1e-9)
	assert.GreaterOrEqual(t, best, worst)
}

func TestMatchScoreDistancePastReferenceFloors(t *testing.T) {
	offer := offerAt("2026-02-11", "10:00")
	atRef := MatchScore(offer, 4.0, refMaxKm, DefaultWeights, scoreNow)
	wayPast := MatchScore(offer, 4.0, 500, DefaultWeights, scoreNow)
	assert.InDelta(t, atRef, wayPast, 1e-9)
}

func TestCampaignWeightsFallsBackToDefaults(t *testing.T) {
	assert.Equal(t, DefaultWeights, CampaignWeights(nil))
	assert.Equal(t, DefaultWeights, CampaignWeights(&models.Campaign{}))

	custom := &models.Campaign{WeightTime: 0.2, WeightRating: 0.2, WeightDistance: 0.6}
	assert.Equal(t, Weights{Earliest: 0.2, Rating: 0.2, Proximity: 0.6}, CampaignWeights(custom))
}
