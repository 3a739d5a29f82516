package models

import "time"

// CampaignStatus is the lifecycle state of a booking campaign.
type CampaignStatus string

const (
	CampaignCreated        CampaignStatus = "created"
	CampaignProviderLookup CampaignStatus = "provider_lookup"
	CampaignDialing        CampaignStatus = "dialing"
	CampaignNegotiating    CampaignStatus = "negotiating"
	CampaignRanking        CampaignStatus = "ranking"
	CampaignConfirmed      CampaignStatus = "confirmed"
	CampaignFailed         CampaignStatus = "failed"
	CampaignCancelled      CampaignStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s CampaignStatus) Terminal() bool {
	return s == CampaignConfirmed || s == CampaignFailed || s == CampaignCancelled
}

// Campaign represents one booking request driven by a swarm of call agents.
// Once the status reaches a terminal value the row is immutable.
type Campaign struct {
	ID              string         `bson:"id" json:"id"`                   // Unique campaign identifier (UUID)
	UserID          string         `bson:"user_id" json:"user_id"`         // Owning user
	Status          CampaignStatus `bson:"status" json:"status"`           // See CampaignStatus constants
	ServiceType     string         `bson:"service_type" json:"service_type"` // e.g. "dentist", "mechanic"
	QueryText       string         `bson:"query_text" json:"query_text"`   // Free-text request from the user
	LocationLat     float64        `bson:"location_lat" json:"location_lat"`
	LocationLng     float64        `bson:"location_lng" json:"location_lng"`
	MaxRadiusKm     float64        `bson:"max_radius_km" json:"max_radius_km"`
	PreferredDate   string         `bson:"preferred_date,omitempty" json:"preferred_date,omitempty"` // "YYYY-MM-DD" target date, if any
	PreferredTime   string         `bson:"preferred_time,omitempty" json:"preferred_time,omitempty"` // Target time window or HH:MM
	WeightTime      float64        `bson:"weight_time" json:"weight_time"`         // Scoring weight: earliest slot
	WeightRating    float64        `bson:"weight_rating" json:"weight_rating"`     // Scoring weight: provider rating
	WeightDistance  float64        `bson:"weight_distance" json:"weight_distance"` // Scoring weight: proximity
	ConfirmedTaskID string         `bson:"confirmed_call_task_id,omitempty" json:"confirmed_call_task_id,omitempty"` // Set exactly once, on booking
	CreatedAt       time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `bson:"updated_at" json:"updated_at"`
}
