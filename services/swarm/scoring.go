package swarm

import (
	"time"

	"nexus/models"
)

const (
	// scoreHorizonHours caps how far out a slot can be before it scores the
	// floor on the earliest component (14 days).
	scoreHorizonHours = 336.0

	// refMaxKm is the distance at which proximity bottoms out.
	refMaxKm = 30.0

	neutralEarliest = 0.5
	maxRating       = 5.0
)

// Weights balance the three score components. They should sum to 1.0 but
// nothing enforces that; callers get out what they put in.
type Weights struct {
	Earliest  float64
	Rating    float64
	Proximity float64
}

// DefaultWeights is the stock earliest-heavy ranking.
var DefaultWeights = Weights{Earliest: 0.5, Rating: 0.3, Proximity: 0.2}

// CampaignWeights reads per-campaign overrides, falling back to the defaults
// when the campaign carries none.
func CampaignWeights(c *models.Campaign) Weights {
	if c == nil || c.WeightTime+c.WeightRating+c.WeightDistance == 0 {
		return DefaultWeights
	}
	return Weights{Earliest: c.WeightTime, Rating: c.WeightRating, Proximity: c.WeightDistance}
}

// MatchScore ranks a slot offer against competitors. Pure function of its
// inputs; now is passed in so rankings are reproducible.
//
// Components, each in [0,1]:
//   - earliest: sooner slots score higher, hitting the floor at the horizon.
//     An unparseable date/time scores a neutral 0.5 instead of failing the
//     call that produced it.
//   - rating: provider rating scaled from the 0..5 range.
//   - proximity: nearer providers score higher, flooring at refMaxKm.
func MatchScore(offer models.SlotOffer, rating, distanceKm float64, w Weights, now time.Time) float64 {
	earliest := neutralEarliest
	if slot, err := time.ParseInLocation("2006-01-02 15:04", offer.Date+" "+offer.Time, now.Location()); err == nil {
		hoursUntil := clamp(slot.Sub(now).Hours(), 0, scoreHorizonHours)
		earliest = 1 - hoursUntil/scoreHorizonHours
	}

	ratingNorm := clamp(rating, 0, maxRating) / maxRating
	proximity := 1 - clamp(distanceKm/refMaxKm, 0, 1)

	return w.Earliest*earliest + w.Rating*ratingNorm + w.Proximity*proximity
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
