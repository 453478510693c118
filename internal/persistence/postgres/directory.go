package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/clubhub/internal/domain"
)

// ClubDirectory reads the club and follower tables owned by the directory
// service. The registration subsystem only consumes them.
type ClubDirectory struct {
	pool *pgxpool.Pool
}

// NewClubDirectory constructs a ClubDirectory.
func NewClubDirectory(pool *pgxpool.Pool) *ClubDirectory {
	return &ClubDirectory{pool: pool}
}

// IsClubStaff reports whether the user is the club's leader or a co-leader.
func (d *ClubDirectory) IsClubStaff(ctx context.Context, userID, clubID string) (bool, error) {
	const query = `SELECT EXISTS (
            SELECT 1 FROM clubs WHERE club_id=$1 AND leader_user_id=$2
            UNION ALL
            SELECT 1 FROM club_followers WHERE club_id=$1 AND user_id=$2 AND role_at_club='co-leader'
        )`

	var ok bool
	err := d.pool.QueryRow(ctx, query, clubID, userID).Scan(&ok)
	return ok, err
}

// LeaderUserID returns the club's leader, or "" when the club is unknown.
func (d *ClubDirectory) LeaderUserID(ctx context.Context, clubID string) (string, error) {
	var leaderID string
	err := d.pool.QueryRow(ctx, `SELECT leader_user_id FROM clubs WHERE club_id=$1`, clubID).Scan(&leaderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return leaderID, err
}

// ListFollowers returns every follower relation of the club, with the email
// on file for each user when one exists.
func (d *ClubDirectory) ListFollowers(ctx context.Context, clubID string) ([]domain.Follower, error) {
	const query = `SELECT f.user_id, COALESCE(u.email, ''), f.role_at_club
        FROM club_followers f
        LEFT JOIN users u ON u.user_id = f.user_id
        WHERE f.club_id=$1
        ORDER BY f.user_id`

	rows, err := d.pool.Query(ctx, query, clubID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var followers []domain.Follower
	for rows.Next() {
		var f domain.Follower
		if err := rows.Scan(&f.UserID, &f.Email, &f.Role); err != nil {
			return nil, err
		}
		followers = append(followers, f)
	}
	return followers, rows.Err()
}

// UserEmail returns the user's address, or "" when none is known.
func (d *ClubDirectory) UserEmail(ctx context.Context, userID string) (string, error) {
	var email *string
	err := d.pool.QueryRow(ctx, `SELECT email FROM users WHERE user_id=$1`, userID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return deref(email), nil
}
