package models

import "time"

const AppointmentConfirmed = "confirmed"

// Appointment is the single durable record of a finalized booking. A unique
// index on (user_id, appointment_date, appointment_time) makes double-booking
// structurally impossible at the storage layer. Immutable after creation
// except for the calendar sync fields, set by an asynchronous follow-up.
type Appointment struct {
	ID              string    `bson:"id" json:"id"` // Unique appointment identifier (UUID)
	CampaignID      string    `bson:"campaign_id" json:"campaign_id"`
	CallTaskID      string    `bson:"call_task_id" json:"call_task_id"`
	UserID          string    `bson:"user_id" json:"user_id"`
	ProviderID      string    `bson:"provider_id" json:"provider_id"`
	ProviderName    string    `bson:"provider_name" json:"provider_name"`
	ProviderPhone   string    `bson:"provider_phone" json:"provider_phone"`
	ProviderAddress string    `bson:"provider_address,omitempty" json:"provider_address,omitempty"`
	AppointmentDate string    `bson:"appointment_date" json:"appointment_date"` // "YYYY-MM-DD"
	AppointmentTime string    `bson:"appointment_time" json:"appointment_time"` // "HH:MM" 24h
	DurationMin     int       `bson:"duration_min" json:"duration_min"`
	DoctorName      string    `bson:"doctor_name,omitempty" json:"doctor_name,omitempty"`
	GoogleEventID   string    `bson:"google_event_id,omitempty" json:"google_event_id,omitempty"`
	CalendarSynced  bool      `bson:"calendar_synced" json:"calendar_synced"`
	Status          string    `bson:"status" json:"status"` // "confirmed", "cancelled" or "rescheduled"
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}
