package domain

import "time"

// ActivityStatus is the lifecycle state of an activity. The only legal
// transition is published -> cancelled; cancelled is terminal.
type ActivityStatus string

const (
	ActivityStatusPublished ActivityStatus = "published"
	ActivityStatusCancelled ActivityStatus = "cancelled"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s ActivityStatus) Valid() bool {
	switch s {
	case ActivityStatusPublished, ActivityStatusCancelled:
		return true
	}
	return false
}

// Activity is a club-run event with a capacity-limited registration list.
type Activity struct {
	ID          string
	ClubID      string
	Title       string
	Subtitle    string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     *time.Time
	Capacity    int
	Images      []string
	Status      ActivityStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RegistrationOpen reports whether the activity accepts registrations at the
// given instant: it must still be published and must not have started.
func (a Activity) RegistrationOpen(now time.Time) bool {
	return a.Status == ActivityStatusPublished && now.Before(a.StartTime)
}
