package models

import "time"

// CallTaskStatus is the lifecycle state of a single call agent's attempt.
type CallTaskStatus string

const (
	CallTaskPending     CallTaskStatus = "pending"
	CallTaskRinging     CallTaskStatus = "ringing"
	CallTaskConnected   CallTaskStatus = "connected"
	CallTaskNegotiating CallTaskStatus = "negotiating"
	CallTaskSlotOffered CallTaskStatus = "slot_offered"
	CallTaskCompleted   CallTaskStatus = "completed"
	CallTaskNoAnswer    CallTaskStatus = "no_answer"
	CallTaskRejected    CallTaskStatus = "rejected"
	CallTaskError       CallTaskStatus = "error"
	CallTaskCancelled   CallTaskStatus = "cancelled"
)

// Terminal reports whether the call task has finished, successfully or not.
func (s CallTaskStatus) Terminal() bool {
	switch s {
	case CallTaskCompleted, CallTaskNoAnswer, CallTaskRejected, CallTaskError, CallTaskCancelled:
		return true
	}
	return false
}

// CallTask is one worker's attempt against one candidate provider. Rows are
// never deleted; losing tasks are kept as the campaign's audit trail.
type CallTask struct {
	ID             string         `bson:"id" json:"id"`                         // Unique task identifier (UUID)
	CampaignID     string         `bson:"campaign_id" json:"campaign_id"`       // Owning campaign
	ProviderID     string         `bson:"provider_id" json:"provider_id"`
	ProviderName   string         `bson:"provider_name" json:"provider_name"`
	ProviderPhone  string         `bson:"provider_phone" json:"provider_phone"` // Number actually dialed
	ProviderRating float64        `bson:"provider_rating,omitempty" json:"provider_rating,omitempty"`
	DistanceKm     float64        `bson:"distance_km,omitempty" json:"distance_km,omitempty"`
	TravelTimeMin  int            `bson:"travel_time_min,omitempty" json:"travel_time_min,omitempty"`
	Status         CallTaskStatus `bson:"status" json:"status"`
	Offer          *SlotOffer     `bson:"offer,omitempty" json:"offer,omitempty"` // Set when the agent reports an offer
	Score          float64        `bson:"score,omitempty" json:"score,omitempty"` // Match quality of the offer, 0..1
	HoldKeys       []string       `bson:"hold_keys" json:"hold_keys"`             // Ordered list of lock keys held, for cleanup
	StartedAt      *time.Time     `bson:"started_at,omitempty" json:"started_at,omitempty"`
	EndedAt        *time.Time     `bson:"ended_at,omitempty" json:"ended_at,omitempty"`
	ErrorMessage   string         `bson:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt      time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `bson:"updated_at" json:"updated_at"`
}

// SlotOffer is the slot a receptionist offered during negotiation.
type SlotOffer struct {
	Date        string `bson:"date" json:"date"` // "YYYY-MM-DD"
	Time        string `bson:"time" json:"time"` // "HH:MM" 24h
	DurationMin int    `bson:"duration_min" json:"duration_min"`
	Doctor      string `bson:"doctor,omitempty" json:"doctor,omitempty"` // Professional named by the receptionist
}
