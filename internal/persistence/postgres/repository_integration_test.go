//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/clubhub/internal/domain"
)

func TestRegistrationCapacityUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	pool := startDatabase(t, ctx)

	activities := NewActivityRepository(pool)
	regs := NewRegistrationRepository(pool)

	const capacity = 3
	const callers = 10

	clubID := seedClub(t, ctx, pool, callers)
	activity := seedActivity(t, ctx, activities, clubID, capacity)

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			errs <- regs.CreateAdmitting(ctx, domain.Registration{
				ID:         uuid.NewString(),
				ActivityID: activity.ID,
				UserID:     userID,
				Status:     domain.RegistrationStatusRegistered,
				CreatedAt:  time.Now().UTC(),
			}, capacity)
		}(fmt.Sprintf("user-%d", i))
	}
	wg.Wait()
	close(errs)

	admitted, full := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			admitted++
		case errors.Is(err, domain.ErrActivityFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, capacity, admitted)
	require.Equal(t, callers-capacity, full)

	count, err := regs.CountActive(ctx, activity.ID)
	require.NoError(t, err)
	require.Equal(t, capacity, count)
}

func TestRegistrationPairLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := startDatabase(t, ctx)

	activities := NewActivityRepository(pool)
	regs := NewRegistrationRepository(pool)

	clubID := seedClub(t, ctx, pool, 3)
	activity := seedActivity(t, ctx, activities, clubID, 10)

	reg := domain.Registration{
		ID:         uuid.NewString(),
		ActivityID: activity.ID,
		UserID:     "user-0",
		Status:     domain.RegistrationStatusRegistered,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, regs.CreateAdmitting(ctx, reg, 10))

	// The unique pair constraint rejects a second row even with slack.
	dup := reg
	dup.ID = uuid.NewString()
	err := regs.CreateAdmitting(ctx, dup, 10)
	require.ErrorIs(t, err, domain.ErrAlreadyRegistered)

	cancelled, err := regs.Cancel(ctx, activity.ID, "user-0", time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, domain.RegistrationStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	// The cancelled row still exists, so re-insert is blocked for good.
	relock := reg
	relock.ID = uuid.NewString()
	err = regs.CreateAdmitting(ctx, relock, 10)
	require.ErrorIs(t, err, domain.ErrAlreadyRegistered)

	// Cancelled rows cannot be checked in.
	_, err = regs.CheckIn(ctx, reg.ID, time.Now().UTC())
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	// A different user still gets a slot.
	other := domain.Registration{
		ID:         uuid.NewString(),
		ActivityID: activity.ID,
		UserID:     "user-1",
		Status:     domain.RegistrationStatusRegistered,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, regs.CreateAdmitting(ctx, other, 10))

	checked, err := regs.CheckIn(ctx, other.ID, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, domain.RegistrationStatusCheckedIn, checked.Status)
	require.NotNil(t, checked.CheckinAt)
}

func TestActivityStatusTransitionAndOutbox(t *testing.T) {
	ctx := context.Background()
	pool := startDatabase(t, ctx)

	activities := NewActivityRepository(pool)
	clubID := seedClub(t, ctx, pool, 1)
	activity := seedActivity(t, ctx, activities, clubID, 5)

	err := activities.SetStatus(ctx, activity.ID, domain.ActivityStatusPublished, domain.ActivityStatusCancelled, time.Now().UTC())
	require.NoError(t, err)

	// Terminal: the published -> cancelled guard no longer matches.
	err = activities.SetStatus(ctx, activity.ID, domain.ActivityStatusPublished, domain.ActivityStatusCancelled, time.Now().UTC())
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	stored, err := activities.Get(ctx, activity.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ActivityStatusCancelled, stored.Status)

	var outboxEvents int
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND published_at IS NULL`,
		activity.ID).Scan(&outboxEvents)
	require.NoError(t, err)
	require.Equal(t, 2, outboxEvents, "expected published and cancelled events")
}

func TestClubDirectoryQueries(t *testing.T) {
	ctx := context.Background()
	pool := startDatabase(t, ctx)

	clubID := seedClub(t, ctx, pool, 3)
	directory := NewClubDirectory(pool)

	leader, err := directory.LeaderUserID(ctx, clubID)
	require.NoError(t, err)
	require.Equal(t, "leader", leader)

	ok, err := directory.IsClubStaff(ctx, "leader", clubID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = directory.IsClubStaff(ctx, "user-0", clubID)
	require.NoError(t, err)
	require.False(t, ok)

	followers, err := directory.ListFollowers(ctx, clubID)
	require.NoError(t, err)
	require.Len(t, followers, 3)
}

func seedClub(t *testing.T, ctx context.Context, pool *pgxpool.Pool, followerCount int) string {
	t.Helper()
	clubID := uuid.NewString()

	_, err := pool.Exec(ctx, `INSERT INTO users (user_id, email) VALUES ('leader', 'leader@campus.example')
        ON CONFLICT DO NOTHING`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx,
		`INSERT INTO clubs (club_id, name, leader_user_id) VALUES ($1, 'Chess club', 'leader')`, clubID)
	require.NoError(t, err)

	for i := 0; i < followerCount; i++ {
		userID := fmt.Sprintf("user-%d", i)
		_, err = pool.Exec(ctx, `INSERT INTO users (user_id, email) VALUES ($1, $2)
            ON CONFLICT DO NOTHING`, userID, userID+"@campus.example")
		require.NoError(t, err)
		_, err = pool.Exec(ctx,
			`INSERT INTO club_followers (club_id, user_id, role_at_club) VALUES ($1, $2, 'member')`,
			clubID, userID)
		require.NoError(t, err)
	}
	return clubID
}

func seedActivity(t *testing.T, ctx context.Context, repo *ActivityRepository, clubID string, capacity int) domain.Activity {
	t.Helper()
	now := time.Now().UTC()
	activity := domain.Activity{
		ID:        uuid.NewString(),
		ClubID:    clubID,
		Title:     "Integration night",
		StartTime: now.Add(2 * time.Hour),
		Capacity:  capacity,
		Status:    domain.ActivityStatusPublished,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Create(ctx, activity))
	return activity
}

func startDatabase(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("clubhub"),
		postgrescontainer.WithUsername("clubhub"),
		postgrescontainer.WithPassword("clubhub"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	t.Helper()

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	path := resolvePath(t, "../../../db/postgres/migrations/0001_init.up.sql")
	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, string(contents))
	require.NoError(t, err)
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
