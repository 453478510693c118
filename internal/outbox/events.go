package outbox

import "time"

// Topic carries every activity lifecycle and registration event. Partition
// keys keep per-club and per-activity ordering.
const Topic = "club_activity_events"

// Event types stored in outbox rows and stamped on Kafka headers.
const (
	EventActivityPublished   = "activity.published"
	EventActivityCancelled   = "activity.cancelled"
	EventRegistrationCreated = "registration.created"
)

// ActivityPublished is emitted when a club publishes a new activity.
type ActivityPublished struct {
	ActivityID string    `json:"activity_id"`
	ClubID     string    `json:"club_id"`
	Title      string    `json:"title"`
	StartTime  time.Time `json:"start_time"`
	Capacity   int       `json:"capacity"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActivityCancelled is emitted on the published -> cancelled transition.
type ActivityCancelled struct {
	ActivityID string    `json:"activity_id"`
	ClubID     string    `json:"club_id"`
	Title      string    `json:"title"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RegistrationCreated is emitted when a registration is admitted.
type RegistrationCreated struct {
	RegistrationID string    `json:"registration_id"`
	ActivityID     string    `json:"activity_id"`
	UserID         string    `json:"user_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}
