// Package memory provides an in-memory implementation of the persistence
// ports for unit tests and local development. The same typed errors and the
// same atomicity guarantees apply: the store's mutex is held across the
// capacity check and the insert.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"example.com/clubhub/internal/domain"
)

// Store holds all tables behind one mutex. The typed repositories returned
// by its accessor methods implement the domain ports.
type Store struct {
	mu            sync.RWMutex
	activities    map[string]domain.Activity
	registrations map[string]domain.Registration
	notifications map[string]domain.Notification
	clubs         map[string]Club
	emails        map[string]string
}

// Club seeds the directory tables the subsystem consumes.
type Club struct {
	ID           string
	LeaderUserID string
	Followers    []domain.Follower
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		activities:    make(map[string]domain.Activity),
		registrations: make(map[string]domain.Registration),
		notifications: make(map[string]domain.Notification),
		clubs:         make(map[string]Club),
		emails:        make(map[string]string),
	}
}

// SeedClub registers a club with its leader and followers.
func (s *Store) SeedClub(club Club) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clubs[club.ID] = club
}

// SeedEmail records a user's email address.
func (s *Store) SeedEmail(userID, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails[userID] = email
}

// Activities returns the domain.ActivityRepository view of the store.
func (s *Store) Activities() *ActivityRepo { return &ActivityRepo{store: s} }

// Registrations returns the domain.RegistrationRepository view of the store.
func (s *Store) Registrations() *RegistrationRepo { return &RegistrationRepo{store: s} }

// Notifications returns the domain.NotificationRepository view of the store.
func (s *Store) Notifications() *NotificationRepo { return &NotificationRepo{store: s} }

// Directory returns the domain.ClubDirectory view of the store.
func (s *Store) Directory() *Directory { return &Directory{store: s} }

// ActivityRepo implements domain.ActivityRepository.
type ActivityRepo struct {
	store *Store
}

func (r *ActivityRepo) Create(ctx context.Context, activity domain.Activity) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	activity.Images = append([]string(nil), activity.Images...)
	r.store.activities[activity.ID] = activity
	return nil
}

func (r *ActivityRepo) Get(ctx context.Context, activityID string) (*domain.Activity, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	activity, ok := r.store.activities[activityID]
	if !ok {
		return nil, nil
	}
	activity.Images = append([]string(nil), activity.Images...)
	return &activity, nil
}

func (r *ActivityRepo) Update(ctx context.Context, activity domain.Activity) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.activities[activity.ID]; !ok {
		return domain.ErrActivityNotFound
	}
	activity.Images = append([]string(nil), activity.Images...)
	r.store.activities[activity.ID] = activity
	return nil
}

func (r *ActivityRepo) SetStatus(ctx context.Context, activityID string, from, to domain.ActivityStatus, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	activity, ok := r.store.activities[activityID]
	if !ok {
		return domain.ErrActivityNotFound
	}
	if activity.Status != from {
		return domain.ErrInvalidTransition
	}
	activity.Status = to
	activity.UpdatedAt = at
	r.store.activities[activityID] = activity
	return nil
}

func (r *ActivityRepo) ListByClub(ctx context.Context, clubID string) ([]domain.Activity, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.Activity
	for _, activity := range r.store.activities {
		if activity.ClubID == clubID {
			result = append(result, activity)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.After(result[j].StartTime)
	})
	return result, nil
}

// RegistrationRepo implements domain.RegistrationRepository.
type RegistrationRepo struct {
	store *Store
}

// CreateAdmitting checks the pair constraint and capacity and inserts, all
// under one lock acquisition.
func (r *RegistrationRepo) CreateAdmitting(ctx context.Context, reg domain.Registration, capacity int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	active := 0
	for _, existing := range r.store.registrations {
		if existing.ActivityID != reg.ActivityID {
			continue
		}
		if existing.UserID == reg.UserID {
			return domain.ErrAlreadyRegistered
		}
		if existing.Status.Active() {
			active++
		}
	}
	if active >= capacity {
		return domain.ErrActivityFull
	}

	r.store.registrations[reg.ID] = reg
	return nil
}

func (r *RegistrationRepo) FindByPair(ctx context.Context, activityID, userID string) (*domain.Registration, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, reg := range r.store.registrations {
		if reg.ActivityID == activityID && reg.UserID == userID {
			found := reg
			return &found, nil
		}
	}
	return nil, nil
}

func (r *RegistrationRepo) Get(ctx context.Context, regID string) (*domain.Registration, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	reg, ok := r.store.registrations[regID]
	if !ok {
		return nil, nil
	}
	return &reg, nil
}

func (r *RegistrationRepo) Cancel(ctx context.Context, activityID, userID string, at time.Time) (*domain.Registration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, reg := range r.store.registrations {
		if reg.ActivityID == activityID && reg.UserID == userID && reg.Status == domain.RegistrationStatusRegistered {
			reg.Status = domain.RegistrationStatusCancelled
			cancelled := at
			reg.CancelledAt = &cancelled
			r.store.registrations[id] = reg
			return &reg, nil
		}
	}
	return nil, domain.ErrRegistrationNotFound
}

func (r *RegistrationRepo) CheckIn(ctx context.Context, regID string, at time.Time) (*domain.Registration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	reg, ok := r.store.registrations[regID]
	if !ok {
		return nil, domain.ErrRegistrationNotFound
	}
	if reg.Status != domain.RegistrationStatusRegistered {
		return nil, domain.ErrInvalidTransition
	}
	reg.Status = domain.RegistrationStatusCheckedIn
	checkin := at
	reg.CheckinAt = &checkin
	r.store.registrations[regID] = reg
	return &reg, nil
}

func (r *RegistrationRepo) CountActive(ctx context.Context, activityID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	count := 0
	for _, reg := range r.store.registrations {
		if reg.ActivityID == activityID && reg.Status.Active() {
			count++
		}
	}
	return count, nil
}

func (r *RegistrationRepo) ListByActivity(ctx context.Context, activityID string) ([]domain.Registration, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.Registration
	for _, reg := range r.store.registrations {
		if reg.ActivityID == activityID {
			result = append(result, reg)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// NotificationRepo implements domain.NotificationRepository.
type NotificationRepo struct {
	store *Store
}

func (r *NotificationRepo) Create(ctx context.Context, n domain.Notification) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.notifications[n.ID] = n
	return nil
}

func (r *NotificationRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []domain.Notification
	for _, n := range r.store.notifications {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID, userID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n, ok := r.store.notifications[notificationID]
	if !ok || n.UserID != userID {
		return domain.ErrNotificationNotFound
	}
	n.IsRead = true
	r.store.notifications[notificationID] = n
	return nil
}

func (r *NotificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	count := 0
	for _, n := range r.store.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

// Directory implements domain.ClubDirectory.
type Directory struct {
	store *Store
}

func (d *Directory) IsClubStaff(ctx context.Context, userID, clubID string) (bool, error) {
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()
	club, ok := d.store.clubs[clubID]
	if !ok {
		return false, nil
	}
	if club.LeaderUserID == userID {
		return true, nil
	}
	for _, f := range club.Followers {
		if f.UserID == userID && f.Role == "co-leader" {
			return true, nil
		}
	}
	return false, nil
}

func (d *Directory) LeaderUserID(ctx context.Context, clubID string) (string, error) {
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()
	return d.store.clubs[clubID].LeaderUserID, nil
}

func (d *Directory) ListFollowers(ctx context.Context, clubID string) ([]domain.Follower, error) {
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()
	club, ok := d.store.clubs[clubID]
	if !ok {
		return nil, nil
	}
	return append([]domain.Follower(nil), club.Followers...), nil
}

func (d *Directory) UserEmail(ctx context.Context, userID string) (string, error) {
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()
	return d.store.emails[userID], nil
}
