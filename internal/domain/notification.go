package domain

import "time"

// Notification types emitted by the registration subsystem.
const (
	NotificationTypeActivityPublished = "activity.published"
	NotificationTypeActivityCancelled = "activity.cancelled"
	NotificationTypeNewRegistration   = "registration.created"
)

// Notification is the persisted, authoritative record of a message to a user.
// Realtime push and email are best-effort copies of the same payload.
type Notification struct {
	ID        string
	UserID    string
	Type      string
	Title     string
	Body      string
	LinkURL   string
	IsRead    bool
	CreatedAt time.Time
}

// NotificationInput is the payload handed to the dispatcher; the dispatcher
// assigns identity and recipient.
type NotificationInput struct {
	Type    string
	Title   string
	Body    string
	LinkURL string
}

// Follower is one recipient of a club broadcast, as reported by the
// club directory.
type Follower struct {
	UserID string
	Email  string
	Role   string
}
