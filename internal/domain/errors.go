package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrWeddingNotFound     = errors.New("wedding not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrIdentityExists      = errors.New("identity already registered")
	ErrNotConfigured       = errors.New("required dependency is not configured")
	ErrInviteInvalid       = errors.New("credential invite is invalid or expired")
)

// FieldError is an input validation failure scoped to one request field.
// Its message is safe to show to the user verbatim.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConflictReason distinguishes who currently holds a slug.
type ConflictReason string

const (
	// ConflictTaken means a finalized wedding owns the slug. Permanent.
	ConflictTaken ConflictReason = "taken"
	// ConflictReserved means another signup in flight holds the slug until
	// it completes or its reservation expires.
	ConflictReserved ConflictReason = "reserved"
)

// SlugConflictError is returned when a slug is already claimed.
type SlugConflictError struct {
	Slug   string
	Reason ConflictReason
}

func (e *SlugConflictError) Error() string {
	if e.Reason == ConflictReserved {
		return fmt.Sprintf("slug %q is reserved by another signup", e.Slug)
	}
	return fmt.Sprintf("slug %q is already in use", e.Slug)
}

// Permanent reports whether retrying the same slug can never succeed.
func (e *SlugConflictError) Permanent() bool {
	return e.Reason != ConflictReserved
}

// TransitionError is returned when a state transition is not allowed.
type TransitionError struct {
	Event   string
	Current string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

// CompensationError reports a provisioning step that failed after an earlier
// step committed, together with the failure of the undo action. When Undo is
// nil the compensation succeeded.
type CompensationError struct {
	Step       string
	IdentityID string
	Cause      error
	Undo       error
}

func (e *CompensationError) Error() string {
	if e.Undo != nil {
		return fmt.Sprintf("%s failed (%v) and identity %s could not be removed: %v", e.Step, e.Cause, e.IdentityID, e.Undo)
	}
	return fmt.Sprintf("%s failed, identity %s removed: %v", e.Step, e.IdentityID, e.Cause)
}

func (e *CompensationError) Unwrap() []error {
	if e.Undo != nil {
		return []error{e.Cause, e.Undo}
	}
	return []error{e.Cause}
}

// Orphaned reports whether the undo action failed, leaving an identity
// without a wedding.
func (e *CompensationError) Orphaned() bool {
	return e.Undo != nil
}
