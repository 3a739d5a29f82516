package telephony

import "context"

// DialRequest carries everything the outbound call needs. The ids travel as
// dynamic variables so the speech agent can echo them back through the tool
// layer.
type DialRequest struct {
	CampaignID  string
	CallTaskID  string
	UserID      string
	ToNumber    string
	ServiceType string
	TargetDate  string // "YYYY-MM-DD"; defaults to tomorrow when empty
	TargetTime  string // "HH:MM" or a window like "morning"
	Timezone    string
}

// Dialer places the outbound call. Fire-and-forget from the swarm's point of
// view: a dial failure is logged by the worker, not fatal to the campaign.
type Dialer interface {
	PlaceCall(ctx context.Context, req DialRequest) error
}
