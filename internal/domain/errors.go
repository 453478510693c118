package domain

import "errors"

// Typed failures surfaced by the registration subsystem. Handlers map these
// to HTTP statuses with errors.Is; none are retried or auto-recovered.
var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrRegistrationNotFound is returned when a registration cannot be located.
	ErrRegistrationNotFound = errors.New("registration not found")
	// ErrNotificationNotFound is returned when a notification does not exist
	// or does not belong to the caller.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrForbidden is returned when the caller is not staff of the owning club.
	ErrForbidden = errors.New("caller is not club staff")
	// ErrInvalidInput is returned for missing or malformed fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidTransition is returned for any status change other than the
	// legal ones (published -> cancelled, registered -> checked_in).
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrRegistrationClosed is returned when the activity is cancelled or has
	// already started.
	ErrRegistrationClosed = errors.New("registration closed")
	// ErrAlreadyRegistered is returned when a live registration row already
	// exists for the (activity, user) pair.
	ErrAlreadyRegistered = errors.New("already registered")
	// ErrPermanentlyLocked is returned when the pair's lifetime row is
	// cancelled; a cancelled registration can never be re-created.
	ErrPermanentlyLocked = errors.New("registration permanently locked after cancellation")
	// ErrActivityFull is returned when active registrations have reached capacity.
	ErrActivityFull = errors.New("activity is full")
)
