// Package notify implements the notification fan-out: a durable row per
// recipient, plus best-effort realtime push and email hand-off.
package notify

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"example.com/clubhub/internal/domain"
	"example.com/clubhub/internal/email"
	"example.com/clubhub/internal/observability"
)

// RealtimePublisher pushes a notification to a user's live connections. The
// call must never block; delivery is not guaranteed.
type RealtimePublisher interface {
	Publish(userID string, n domain.Notification)
}

// EmailQueue hands an email job to the asynchronous transport.
type EmailQueue interface {
	Enqueue(ctx context.Context, job email.Job) error
}

// DefaultWorkers caps concurrent recipients during a follower broadcast.
const DefaultWorkers = 8

// Dispatcher fans notifications out to one user or to every follower of a
// club. Only the durable persist can fail the caller; realtime and email are
// logged and swallowed.
type Dispatcher struct {
	store     domain.NotificationRepository
	realtime  RealtimePublisher
	emails    EmailQueue
	directory domain.ClubDirectory
	workers   int
}

// NewDispatcher constructs a Dispatcher. workers <= 0 falls back to
// DefaultWorkers.
func NewDispatcher(store domain.NotificationRepository, realtime RealtimePublisher, emails EmailQueue, directory domain.ClubDirectory, workers int) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Dispatcher{
		store:     store,
		realtime:  realtime,
		emails:    emails,
		directory: directory,
		workers:   workers,
	}
}

// SendToUser persists the notification, then attempts the best-effort
// channels. The three steps are deliberately not transactional: the row is
// authoritative and must not be rolled back by push or email failures.
func (d *Dispatcher) SendToUser(ctx context.Context, userID string, input domain.NotificationInput) error {
	n := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      input.Type,
		Title:     input.Title,
		Body:      input.Body,
		LinkURL:   input.LinkURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.store.Create(ctx, n); err != nil {
		return err
	}
	observability.RecordNotificationPersisted()

	d.realtime.Publish(userID, n)

	if d.emails != nil {
		go d.enqueueEmail(context.WithoutCancel(ctx), n)
	}
	return nil
}

// BroadcastToFollowers delivers the notification to every follower of the
// club through a bounded worker pool. One recipient's failure never blocks
// or fails the rest; the aggregate outcome is only logged and counted.
func (d *Dispatcher) BroadcastToFollowers(ctx context.Context, clubID string, input domain.NotificationInput) {
	start := time.Now()

	followers, err := d.directory.ListFollowers(ctx, clubID)
	if err != nil {
		log.Printf("broadcast: follower listing for club %s failed: %v", clubID, err)
		return
	}
	if len(followers) == 0 {
		return
	}

	jobs := make(chan domain.Follower)
	var wg sync.WaitGroup
	var failures atomic.Int64

	workers := d.workers
	if workers > len(followers) {
		workers = len(followers)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for follower := range jobs {
				if err := d.SendToUser(ctx, follower.UserID, input); err != nil {
					failures.Add(1)
					log.Printf("broadcast: delivery to user %s failed: %v", follower.UserID, err)
				}
			}
		}()
	}
	for _, follower := range followers {
		jobs <- follower
	}
	close(jobs)
	wg.Wait()

	if n := failures.Load(); n > 0 {
		log.Printf("broadcast: club %s: %d of %d deliveries failed", clubID, n, len(followers))
	}
	observability.ObserveBroadcast(time.Since(start))
}

func (d *Dispatcher) enqueueEmail(ctx context.Context, n domain.Notification) {
	address, err := d.directory.UserEmail(ctx, n.UserID)
	if err != nil {
		observability.RecordEmailEnqueueFailure()
		log.Printf("notify: email lookup for user %s failed: %v", n.UserID, err)
		return
	}
	if address == "" {
		return
	}
	if err := d.emails.Enqueue(ctx, email.Job{To: address, Subject: n.Title, Body: n.Body}); err != nil {
		observability.RecordEmailEnqueueFailure()
		log.Printf("notify: email enqueue for user %s failed: %v", n.UserID, err)
	}
}
