// Package postgres provides pgx-backed persistence for activities,
// registrations, notifications, and the club directory.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/clubhub/internal/domain"
	"example.com/clubhub/internal/outbox"
)

// ActivityRepository stores activities and records lifecycle events in the
// outbox within the same transaction.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

const activityColumns = `activity_id, club_id, title, subtitle, description, location,
        start_time, end_time, capacity, images, status, created_at, updated_at`

// Create persists the activity and an activity.published outbox event.
func (r *ActivityRepository) Create(ctx context.Context, activity domain.Activity) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO activities (` + activityColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

	_, err = tx.Exec(ctx, stmt,
		activity.ID,
		activity.ClubID,
		activity.Title,
		nullIfEmpty(activity.Subtitle),
		nullIfEmpty(activity.Description),
		nullIfEmpty(activity.Location),
		activity.StartTime,
		activity.EndTime,
		activity.Capacity,
		activity.Images,
		activity.Status,
		activity.CreatedAt,
		activity.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if err = insertOutbox(ctx, tx, "activity", activity.ID, outbox.EventActivityPublished, activity.ClubID, outbox.ActivityPublished{
		ActivityID: activity.ID,
		ClubID:     activity.ClubID,
		Title:      activity.Title,
		StartTime:  activity.StartTime,
		Capacity:   activity.Capacity,
		OccurredAt: activity.CreatedAt,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Get retrieves an activity by ID, returning (nil, nil) when absent.
func (r *ActivityRepository) Get(ctx context.Context, activityID string) (*domain.Activity, error) {
	const query = `SELECT ` + activityColumns + ` FROM activities WHERE activity_id=$1`

	row := r.pool.QueryRow(ctx, query, activityID)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return activity, nil
}

// Update rewrites the mutable fields of the activity row.
func (r *ActivityRepository) Update(ctx context.Context, activity domain.Activity) error {
	const stmt = `UPDATE activities
        SET title=$2, subtitle=$3, description=$4, location=$5, start_time=$6,
            end_time=$7, capacity=$8, images=$9, updated_at=$10
        WHERE activity_id=$1`

	tag, err := r.pool.Exec(ctx, stmt,
		activity.ID,
		activity.Title,
		nullIfEmpty(activity.Subtitle),
		nullIfEmpty(activity.Description),
		nullIfEmpty(activity.Location),
		activity.StartTime,
		activity.EndTime,
		activity.Capacity,
		activity.Images,
		activity.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

// SetStatus flips the lifecycle status only when the stored status matches
// from, and records the cancellation event in the outbox atomically.
func (r *ActivityRepository) SetStatus(ctx context.Context, activityID string, from, to domain.ActivityStatus, at time.Time) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const stmt = `UPDATE activities SET status=$3, updated_at=$4
        WHERE activity_id=$1 AND status=$2 RETURNING club_id, title`

	var clubID, title string
	if err = tx.QueryRow(ctx, stmt, activityID, from, to, at).Scan(&clubID, &title); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing row from one in the wrong state.
			var exists bool
			if probeErr := r.pool.QueryRow(ctx, `SELECT true FROM activities WHERE activity_id=$1`, activityID).Scan(&exists); probeErr == nil {
				return domain.ErrInvalidTransition
			}
			return domain.ErrActivityNotFound
		}
		return err
	}

	if to == domain.ActivityStatusCancelled {
		if err = insertOutbox(ctx, tx, "activity", activityID, outbox.EventActivityCancelled, clubID, outbox.ActivityCancelled{
			ActivityID: activityID,
			ClubID:     clubID,
			Title:      title,
			OccurredAt: at,
		}); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ListByClub returns the club's activities ordered by start time, newest first.
func (r *ActivityRepository) ListByClub(ctx context.Context, clubID string) ([]domain.Activity, error) {
	const query = `SELECT ` + activityColumns + ` FROM activities
        WHERE club_id=$1 ORDER BY start_time DESC, activity_id DESC`

	rows, err := r.pool.Query(ctx, query, clubID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Activity
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *activity)
	}
	return results, rows.Err()
}

func scanActivity(row pgx.Row) (*domain.Activity, error) {
	var (
		activity                        domain.Activity
		subtitle, description, location *string
	)
	if err := row.Scan(
		&activity.ID,
		&activity.ClubID,
		&activity.Title,
		&subtitle,
		&description,
		&location,
		&activity.StartTime,
		&activity.EndTime,
		&activity.Capacity,
		&activity.Images,
		&activity.Status,
		&activity.CreatedAt,
		&activity.UpdatedAt,
	); err != nil {
		return nil, err
	}
	activity.Subtitle = deref(subtitle)
	activity.Description = deref(description)
	activity.Location = deref(location)
	return &activity, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
