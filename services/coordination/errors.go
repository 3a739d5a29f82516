package coordination

import (
	"errors"
	"fmt"
	"strings"
)

// Failure taxonomy for the coordination paths. Callers branch on these with
// errors.Is / errors.As; the agent tool layer flattens them into the reason
// strings sent back to the speech agent.

// ErrLockContention is returned when another call task already holds the
// campaign's booking lock. Retrying within the same campaign without new
// information will not help.
var ErrLockContention = errors.New("booking already in progress by another call task")

// ErrStoreTimeout is returned when the ephemeral store did not answer within
// the operation timeout. Recoverable: surface "service unavailable", never
// crash.
var ErrStoreTimeout = errors.New("lock store operation timed out")

// ErrKeyAbsent is returned by LockStore.Read when the key does not exist.
// Distinct from transport failures so callers can tell "no holder" from
// "store unreachable".
var ErrKeyAbsent = errors.New("key absent")

// ValidationError rejects malformed identifiers, dates or times before any
// lock is touched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// ConflictError is a hard conflict against confirmed reality (an existing
// appointment or a busy calendar window). No lock side effects.
type ConflictError struct {
	Conflicts []string
}

func (e *ConflictError) Error() string {
	return "slot conflict: " + strings.Join(e.Conflicts, ", ")
}

// SoftConflictError means another campaign currently holds the slot. The
// hold expires on its own; informational, not fatal.
type SoftConflictError struct {
	HeldBy string
}

func (e *SoftConflictError) Error() string {
	return fmt.Sprintf("slot held by campaign %s", e.HeldBy)
}

// PersistError wraps a durable-store write failure that happened after the
// booking lock was acquired. The coordinator rolls back and releases the
// lock before returning it.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return "booking persist failed: " + e.Err.Error()
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// FailureReason flattens a coordination error into a user-facing reason
// string, distinguishing "already booked by someone else" from "system
// unavailable".
func FailureReason(err error) string {
	var vErr *ValidationError
	var cErr *ConflictError
	var sErr *SoftConflictError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &vErr):
		return vErr.Reason
	case errors.As(err, &cErr):
		return "Slot unavailable: " + strings.Join(cErr.Conflicts, ", ")
	case errors.As(err, &sErr):
		return "Slot is currently held by another campaign"
	case errors.Is(err, ErrLockContention):
		return "Booking already in progress by another call"
	case errors.Is(err, ErrStoreTimeout):
		return "Service temporarily unavailable, please retry"
	default:
		return err.Error()
	}
}
