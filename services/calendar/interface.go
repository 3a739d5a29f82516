package calendar

import "context"

// Service is the calendar-busy / event-creation collaborator. The engine
// treats it as advisory: busy checks gate a hold, event creation is
// best-effort telemetry after a booking.
type Service interface {
	// IsBusy reports whether the user has a confirmed event overlapping the
	// slot, with the conflicting event summaries.
	IsBusy(ctx context.Context, userID, date, timeOfDay string, durationMin int) (bool, []string, error)

	// CreateEvent inserts the booked appointment into the user's calendar and
	// returns the external event id.
	CreateEvent(ctx context.Context, req EventRequest) (string, error)
}

// EventRequest describes the calendar event for a confirmed appointment.
type EventRequest struct {
	UserID      string
	Summary     string
	Description string
	Date        string // "YYYY-MM-DD"
	Time        string // "HH:MM"
	DurationMin int
}
