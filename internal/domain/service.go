// Package domain defines the business logic for the club activity service.
package domain

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service orchestrates activity lifecycle, registration, and check-in
// workflows on top of the persistence ports.
type Service struct {
	activities ActivityRepository
	regs       RegistrationRepository
	clubs      ClubDirectory
	notifier   Notifier
}

// NewService constructs a Service.
func NewService(activities ActivityRepository, regs RegistrationRepository, clubs ClubDirectory, notifier Notifier) *Service {
	return &Service{activities: activities, regs: regs, clubs: clubs, notifier: notifier}
}

// CreateActivityInput captures the payload from the API layer.
type CreateActivityInput struct {
	Title       string
	Subtitle    string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     *time.Time
	Capacity    int
	Images      []string
}

// ActivityPatch carries a partial update; nil fields are left untouched.
// Images are appended to the stored list, never replaced.
type ActivityPatch struct {
	Title       *string
	Subtitle    *string
	Description *string
	Location    *string
	StartTime   *time.Time
	EndTime     *time.Time
	Capacity    *int
	Images      []string
}

// ManageView is the staff-facing snapshot of an activity and its ledger.
// ActiveCount counts non-cancelled rows only.
type ManageView struct {
	Activity      Activity
	ActiveCount   int
	Registrations []Registration
}

// CreateActivity publishes a new activity for the club and announces it to
// the club's followers.
func (s *Service) CreateActivity(ctx context.Context, staffUserID, clubID string, input CreateActivityInput) (*Activity, error) {
	if err := s.requireStaff(ctx, staffUserID, clubID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if input.StartTime.IsZero() {
		return nil, fmt.Errorf("%w: start_time is required", ErrInvalidInput)
	}
	if input.Capacity < 1 {
		return nil, fmt.Errorf("%w: capacity must be >= 1", ErrInvalidInput)
	}
	if input.EndTime != nil && input.EndTime.Before(input.StartTime) {
		return nil, fmt.Errorf("%w: end_time must not precede start_time", ErrInvalidInput)
	}

	now := time.Now().UTC()
	activity := Activity{
		ID:          uuid.NewString(),
		ClubID:      clubID,
		Title:       input.Title,
		Subtitle:    input.Subtitle,
		Description: input.Description,
		Location:    input.Location,
		StartTime:   input.StartTime.UTC(),
		EndTime:     input.EndTime,
		Capacity:    input.Capacity,
		Images:      append([]string(nil), input.Images...),
		Status:      ActivityStatusPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.activities.Create(ctx, activity); err != nil {
		return nil, err
	}

	go s.notifier.BroadcastToFollowers(context.WithoutCancel(ctx), clubID, NotificationInput{
		Type:    NotificationTypeActivityPublished,
		Title:   "New activity: " + activity.Title,
		Body:    activity.Subtitle,
		LinkURL: activityLink(activity.ID),
	})

	return &activity, nil
}

// PatchActivity merges the non-nil fields of the patch into the stored
// activity. Detail edits are deliberately not announced to followers.
func (s *Service) PatchActivity(ctx context.Context, activityID, staffUserID string, patch ActivityPatch) (*Activity, error) {
	activity, err := s.activities.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	if err := s.requireStaff(ctx, staffUserID, activity.ClubID); err != nil {
		return nil, err
	}

	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
		}
		activity.Title = *patch.Title
	}
	if patch.Subtitle != nil {
		activity.Subtitle = *patch.Subtitle
	}
	if patch.Description != nil {
		activity.Description = *patch.Description
	}
	if patch.Location != nil {
		activity.Location = *patch.Location
	}
	if patch.StartTime != nil {
		activity.StartTime = patch.StartTime.UTC()
	}
	if patch.EndTime != nil {
		activity.EndTime = patch.EndTime
	}
	if patch.Capacity != nil {
		if *patch.Capacity < 1 {
			return nil, fmt.Errorf("%w: capacity must be >= 1", ErrInvalidInput)
		}
		activity.Capacity = *patch.Capacity
	}
	if activity.EndTime != nil && activity.EndTime.Before(activity.StartTime) {
		return nil, fmt.Errorf("%w: end_time must not precede start_time", ErrInvalidInput)
	}
	activity.Images = append(activity.Images, patch.Images...)
	activity.UpdatedAt = time.Now().UTC()

	if err := s.activities.Update(ctx, *activity); err != nil {
		return nil, err
	}
	return activity, nil
}

// SetActivityStatus applies a lifecycle transition. Only
// published -> cancelled is legal; cancellation is announced to followers
// and is irreversible.
func (s *Service) SetActivityStatus(ctx context.Context, activityID, staffUserID string, status ActivityStatus) (*Activity, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	activity, err := s.activities.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	if err := s.requireStaff(ctx, staffUserID, activity.ClubID); err != nil {
		return nil, err
	}
	if status != ActivityStatusCancelled {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, activity.Status, status)
	}

	now := time.Now().UTC()
	if err := s.activities.SetStatus(ctx, activityID, ActivityStatusPublished, ActivityStatusCancelled, now); err != nil {
		return nil, err
	}
	activity.Status = ActivityStatusCancelled
	activity.UpdatedAt = now

	go s.notifier.BroadcastToFollowers(context.WithoutCancel(ctx), activity.ClubID, NotificationInput{
		Type:    NotificationTypeActivityCancelled,
		Title:   "Activity cancelled: " + activity.Title,
		LinkURL: activityLink(activity.ID),
	})

	return activity, nil
}

// GetActivity fetches by ID.
func (s *Service) GetActivity(ctx context.Context, activityID string) (*Activity, error) {
	activity, err := s.activities.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// ListClubActivities returns a club's activities, newest start first.
func (s *Service) ListClubActivities(ctx context.Context, clubID string) ([]Activity, error) {
	return s.activities.ListByClub(ctx, clubID)
}

// Register admits the user to the activity subject to the registration
// window, the lifetime one-row-per-pair rule, and the capacity bound. The
// capacity check and the insert happen as one atomic storage operation.
func (s *Service) Register(ctx context.Context, userID, activityID string) (*Registration, error) {
	activity, err := s.activities.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}

	now := time.Now().UTC()
	if !activity.RegistrationOpen(now) {
		return nil, ErrRegistrationClosed
	}

	// Pre-check of the lifetime row so cancelled pairs surface as
	// permanently locked instead of a bare uniqueness violation. The unique
	// constraint remains the safety net under races.
	existing, err := s.regs.FindByPair(ctx, activityID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == RegistrationStatusCancelled {
			return nil, ErrPermanentlyLocked
		}
		return nil, ErrAlreadyRegistered
	}

	reg := Registration{
		ID:         uuid.NewString(),
		ActivityID: activityID,
		UserID:     userID,
		Status:     RegistrationStatusRegistered,
		CreatedAt:  now,
	}
	if err := s.regs.CreateAdmitting(ctx, reg, activity.Capacity); err != nil {
		return nil, err
	}

	s.notifyLeader(ctx, activity, userID)
	return &reg, nil
}

// Unregister cancels the caller's active registration. Cancellation is
// terminal: the pair can never register again.
func (s *Service) Unregister(ctx context.Context, userID, activityID string) (*Registration, error) {
	activity, err := s.activities.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return s.regs.Cancel(ctx, activityID, userID, time.Now().UTC())
}

// CheckIn marks a registered attendee present. Check-in is restricted to
// registered -> checked_in: cancelled or already-checked-in rows are
// rejected with ErrInvalidTransition.
func (s *Service) CheckIn(ctx context.Context, regID, staffUserID string) (*Registration, error) {
	reg, err := s.regs.Get(ctx, regID)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, ErrRegistrationNotFound
	}

	activity, err := s.activities.Get(ctx, reg.ActivityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	if err := s.requireStaff(ctx, staffUserID, activity.ClubID); err != nil {
		return nil, err
	}

	return s.regs.CheckIn(ctx, regID, time.Now().UTC())
}

// ManageActivity returns the staff view: the activity, the active
// registration count, and the per-student ledger rows.
func (s *Service) ManageActivity(ctx context.Context, activityID, staffUserID string) (*ManageView, error) {
	activity, err := s.activities.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	if err := s.requireStaff(ctx, staffUserID, activity.ClubID); err != nil {
		return nil, err
	}

	count, err := s.regs.CountActive(ctx, activityID)
	if err != nil {
		return nil, err
	}
	rows, err := s.regs.ListByActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}

	return &ManageView{Activity: *activity, ActiveCount: count, Registrations: rows}, nil
}

func (s *Service) requireStaff(ctx context.Context, userID, clubID string) error {
	ok, err := s.clubs.IsClubStaff(ctx, userID, clubID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// notifyLeader informs the club leader of a new registration. Best effort:
// failures are logged and never fail the registration.
func (s *Service) notifyLeader(ctx context.Context, activity *Activity, registrantID string) {
	leaderID, err := s.clubs.LeaderUserID(ctx, activity.ClubID)
	if err != nil || leaderID == "" {
		log.Printf("register: leader lookup for club %s failed: %v", activity.ClubID, err)
		return
	}
	if err := s.notifier.SendToUser(ctx, leaderID, NotificationInput{
		Type:    NotificationTypeNewRegistration,
		Title:   "New registration: " + activity.Title,
		Body:    "User " + registrantID + " registered.",
		LinkURL: activityLink(activity.ID) + "/manage",
	}); err != nil {
		log.Printf("register: leader notification for activity %s failed: %v", activity.ID, err)
	}
}

func activityLink(activityID string) string {
	return "/activities/" + activityID
}
