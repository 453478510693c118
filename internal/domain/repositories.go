package domain

import (
	"context"
	"time"
)

// ActivityRepository captures persistence operations for activities.
// Get returns (nil, nil) when the activity does not exist.
type ActivityRepository interface {
	Create(ctx context.Context, activity Activity) error
	Get(ctx context.Context, activityID string) (*Activity, error)
	Update(ctx context.Context, activity Activity) error
	// SetStatus flips the status only when the stored status equals from;
	// it returns ErrInvalidTransition when the row exists in another state
	// and ErrActivityNotFound when it does not exist.
	SetStatus(ctx context.Context, activityID string, from, to ActivityStatus, at time.Time) error
	ListByClub(ctx context.Context, clubID string) ([]Activity, error)
}

// RegistrationRepository persists the registration ledger. Implementations
// must enforce the (activity_id, user_id) lifetime uniqueness and the
// capacity bound atomically; callers' pre-checks are an optimization only.
type RegistrationRepository interface {
	// CreateAdmitting inserts the row only while the count of active
	// (non-cancelled) registrations for the activity is below capacity, as
	// one atomic operation with respect to concurrent callers. It returns
	// ErrActivityFull when capacity is reached and ErrAlreadyRegistered when
	// a row for the pair already exists.
	CreateAdmitting(ctx context.Context, reg Registration, capacity int) error
	// FindByPair returns the lifetime row for the pair in any state, or
	// (nil, nil) when none exists.
	FindByPair(ctx context.Context, activityID, userID string) (*Registration, error)
	Get(ctx context.Context, regID string) (*Registration, error)
	// Cancel marks the user's active row cancelled; ErrRegistrationNotFound
	// when the user has no active row for the activity.
	Cancel(ctx context.Context, activityID, userID string, at time.Time) (*Registration, error)
	// CheckIn transitions registered -> checked_in. ErrInvalidTransition when
	// the row exists in another state, ErrRegistrationNotFound when absent.
	CheckIn(ctx context.Context, regID string, at time.Time) (*Registration, error)
	CountActive(ctx context.Context, activityID string) (int, error)
	ListByActivity(ctx context.Context, activityID string) ([]Registration, error)
}

// NotificationRepository persists notification rows for their recipients.
type NotificationRepository interface {
	Create(ctx context.Context, notification Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error)
	// MarkRead flips is_read for the recipient's own row only;
	// ErrNotificationNotFound otherwise.
	MarkRead(ctx context.Context, notificationID, userID string) error
	CountUnread(ctx context.Context, userID string) (int, error)
}

// ClubDirectory resolves club staffing facts the subsystem consumes but does
// not own. IsClubStaff is true for the club leader and co-leaders.
type ClubDirectory interface {
	IsClubStaff(ctx context.Context, userID, clubID string) (bool, error)
	LeaderUserID(ctx context.Context, clubID string) (string, error)
	ListFollowers(ctx context.Context, clubID string) ([]Follower, error)
	// UserEmail returns the user's address, or "" when none is known.
	UserEmail(ctx context.Context, userID string) (string, error)
}

// Notifier delivers notifications produced by business operations. Delivery
// failures never propagate back into the triggering mutation.
type Notifier interface {
	SendToUser(ctx context.Context, userID string, input NotificationInput) error
	BroadcastToFollowers(ctx context.Context, clubID string, input NotificationInput)
}
