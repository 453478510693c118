package domain

import "time"

// RegistrationStatus is the state of a user's registration for an activity.
//
// registered -> checked_in and registered -> cancelled are the only legal
// transitions; both targets are terminal. A cancelled registration also
// permanently blocks the (activity, user) pair from registering again.
type RegistrationStatus string

const (
	RegistrationStatusRegistered RegistrationStatus = "registered"
	RegistrationStatusCheckedIn  RegistrationStatus = "checked_in"
	RegistrationStatusCancelled  RegistrationStatus = "cancelled"
)

// Valid reports whether the status is one of the known registration states.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationStatusRegistered, RegistrationStatusCheckedIn, RegistrationStatusCancelled:
		return true
	}
	return false
}

// Active reports whether the registration counts against capacity.
func (s RegistrationStatus) Active() bool {
	return s != RegistrationStatusCancelled
}

// Registration records one user's lifetime relationship to one activity.
// At most one row ever exists per (activity, user) pair, in any state.
type Registration struct {
	ID          string
	ActivityID  string
	UserID      string
	Status      RegistrationStatus
	CheckinAt   *time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
}
