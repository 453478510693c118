package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/clubhub/internal/domain"
	"example.com/clubhub/internal/observability"
	"example.com/clubhub/internal/outbox"
)

const uniqueViolation = "23505"

// RegistrationRepository stores the registration ledger. Capacity is a hard
// invariant here: the count and the insert run in one transaction that locks
// the activity row, and UNIQUE(activity_id, user_id) backstops duplicates.
type RegistrationRepository struct {
	pool *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(pool *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{pool: pool}
}

const registrationColumns = `registration_id, activity_id, user_id, status, checkin_at, cancelled_at, created_at`

// CreateAdmitting inserts the registration only while the number of active
// rows is below capacity. The FOR UPDATE lock on the activity row serializes
// concurrent admissions for the same activity; capacity is re-read under the
// lock so the stored value, not the caller's snapshot, decides.
func (r *RegistrationRepository) CreateAdmitting(ctx context.Context, reg domain.Registration, capacity int) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var stored int
	err = tx.QueryRow(ctx, `SELECT capacity FROM activities WHERE activity_id=$1 FOR UPDATE`, reg.ActivityID).Scan(&stored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrActivityNotFound
		}
		return err
	}
	if stored > 0 {
		capacity = stored
	}

	var active int
	err = tx.QueryRow(ctx,
		`SELECT count(*) FROM activity_registrations WHERE activity_id=$1 AND status <> 'cancelled'`,
		reg.ActivityID).Scan(&active)
	if err != nil {
		return err
	}
	if active >= capacity {
		observability.RecordRegistrationRejected("full")
		return domain.ErrActivityFull
	}

	const stmt = `INSERT INTO activity_registrations (` + registrationColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err = tx.Exec(ctx, stmt,
		reg.ID,
		reg.ActivityID,
		reg.UserID,
		reg.Status,
		reg.CheckinAt,
		reg.CancelledAt,
		reg.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			observability.RecordRegistrationRejected("duplicate")
			return domain.ErrAlreadyRegistered
		}
		return err
	}

	if err = insertOutbox(ctx, tx, "registration", reg.ID, outbox.EventRegistrationCreated, reg.ActivityID, outbox.RegistrationCreated{
		RegistrationID: reg.ID,
		ActivityID:     reg.ActivityID,
		UserID:         reg.UserID,
		OccurredAt:     reg.CreatedAt,
	}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordRegistrationAdmitted()
	return nil
}

// FindByPair returns the lifetime row for the pair in any state.
func (r *RegistrationRepository) FindByPair(ctx context.Context, activityID, userID string) (*domain.Registration, error) {
	const query = `SELECT ` + registrationColumns + ` FROM activity_registrations
        WHERE activity_id=$1 AND user_id=$2`

	reg, err := scanRegistration(r.pool.QueryRow(ctx, query, activityID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return reg, nil
}

// Get retrieves a registration by ID, returning (nil, nil) when absent.
func (r *RegistrationRepository) Get(ctx context.Context, regID string) (*domain.Registration, error) {
	const query = `SELECT ` + registrationColumns + ` FROM activity_registrations WHERE registration_id=$1`

	reg, err := scanRegistration(r.pool.QueryRow(ctx, query, regID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return reg, nil
}

// Cancel marks the user's active row cancelled. The state guard lives in the
// WHERE clause so a concurrent check-in or cancel cannot be overwritten.
func (r *RegistrationRepository) Cancel(ctx context.Context, activityID, userID string, at time.Time) (*domain.Registration, error) {
	const stmt = `UPDATE activity_registrations
        SET status='cancelled', cancelled_at=$3
        WHERE activity_id=$1 AND user_id=$2 AND status='registered'
        RETURNING ` + registrationColumns

	reg, err := scanRegistration(r.pool.QueryRow(ctx, stmt, activityID, userID, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRegistrationNotFound
		}
		return nil, err
	}
	return reg, nil
}

// CheckIn transitions registered -> checked_in. Rows in any other state are
// rejected with ErrInvalidTransition.
func (r *RegistrationRepository) CheckIn(ctx context.Context, regID string, at time.Time) (*domain.Registration, error) {
	const stmt = `UPDATE activity_registrations
        SET status='checked_in', checkin_at=$2
        WHERE registration_id=$1 AND status='registered'
        RETURNING ` + registrationColumns

	reg, err := scanRegistration(r.pool.QueryRow(ctx, stmt, regID, at))
	if err == nil {
		return reg, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var exists bool
	if probeErr := r.pool.QueryRow(ctx, `SELECT true FROM activity_registrations WHERE registration_id=$1`, regID).Scan(&exists); probeErr == nil {
		return nil, domain.ErrInvalidTransition
	}
	return nil, domain.ErrRegistrationNotFound
}

// CountActive counts the rows that hold a capacity slot.
func (r *RegistrationRepository) CountActive(ctx context.Context, activityID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM activity_registrations WHERE activity_id=$1 AND status <> 'cancelled'`,
		activityID).Scan(&count)
	return count, err
}

// ListByActivity returns every ledger row for the activity, oldest first.
func (r *RegistrationRepository) ListByActivity(ctx context.Context, activityID string) ([]domain.Registration, error) {
	const query = `SELECT ` + registrationColumns + ` FROM activity_registrations
        WHERE activity_id=$1 ORDER BY created_at, registration_id`

	rows, err := r.pool.Query(ctx, query, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *reg)
	}
	return results, rows.Err()
}

func scanRegistration(row pgx.Row) (*domain.Registration, error) {
	var reg domain.Registration
	if err := row.Scan(
		&reg.ID,
		&reg.ActivityID,
		&reg.UserID,
		&reg.Status,
		&reg.CheckinAt,
		&reg.CancelledAt,
		&reg.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &reg, nil
}
