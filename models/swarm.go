package models

// CampaignRequest is the plain-data input that starts a campaign.
type CampaignRequest struct {
	Prompt       string `json:"prompt"`        // Free-text booking request
	UserLocation string `json:"user_location"` // City/area the user is in, for "near me"
	ServiceType  string `json:"service_type,omitempty"`
	TargetDate   string `json:"target_date,omitempty"` // "YYYY-MM-DD", optional
	TargetTime   string `json:"target_time,omitempty"` // "HH:MM" or a window like "morning"
}

// SwarmPlan is returned as soon as the swarm is launched. Campaign progress is
// observed afterwards by reading the durable store.
type SwarmPlan struct {
	CampaignID string     `json:"campaign_id"`
	Providers  []Provider `json:"providers"` // The candidates actually dialed, in order
	TaskIDs    []string   `json:"task_ids"`  // One call task per provider, same order
}

// CampaignDispatchPayload is the queued intake for a new campaign. The
// request surface enqueues it; the engine worker launches the swarm.
type CampaignDispatchPayload struct {
	UserID  string          `json:"user_id"`
	Request CampaignRequest `json:"request"`
}

// CalendarSyncPayload is the asynq task payload for the post-booking calendar
// follow-up.
type CalendarSyncPayload struct {
	AppointmentID string `json:"appointment_id"`
	UserID        string `json:"user_id"`
}
