package appointmentRepo

import (
	"context"
	"errors"

	"nexus/models"
)

// ErrDuplicateSlot is returned when the unique (user, date, time) index
// rejects the appointment insert. It is the storage-layer backstop against
// double booking if two processes ever both pass the booking lock.
var ErrDuplicateSlot = errors.New("an appointment already exists for this user, date and time")

// ErrCampaignNotBookable is returned when the campaign could not be moved to
// confirmed inside the booking transaction (already terminal or missing).
var ErrCampaignNotBookable = errors.New("campaign is not in a bookable state")

// AppointmentRepository persists finalized bookings.
type AppointmentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Appointment, error)

	// FindConfirmed returns the confirmed appointment at the exact
	// (user, date, time) tuple, or nil when there is none.
	FindConfirmed(ctx context.Context, userID, date, timeOfDay string) (*models.Appointment, error)

	// BookTransactionally inserts the appointment and moves its campaign to
	// confirmed (recording the winning call task) in one transaction. Either
	// both writes land or neither does.
	BookTransactionally(ctx context.Context, appointment *models.Appointment) error

	// MarkCalendarSynced records the external calendar event id set by the
	// asynchronous follow-up.
	MarkCalendarSynced(ctx context.Context, id, eventID string) error
}
