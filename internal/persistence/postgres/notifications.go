package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/clubhub/internal/domain"
)

// NotificationRepository stores the durable notification rows.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create persists a notification row.
func (r *NotificationRepository) Create(ctx context.Context, n domain.Notification) error {
	const stmt = `INSERT INTO notifications (notification_id, user_id, type, title, body, link_url, is_read, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err := r.pool.Exec(ctx, stmt,
		n.ID,
		n.UserID,
		n.Type,
		n.Title,
		nullIfEmpty(n.Body),
		nullIfEmpty(n.LinkURL),
		n.IsRead,
		n.CreatedAt,
	)
	return err
}

// ListByUser returns the recipient's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	const query = `SELECT notification_id, user_id, type, title, body, link_url, is_read, created_at
        FROM notifications WHERE user_id=$1 ORDER BY created_at DESC, notification_id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Notification
	for rows.Next() {
		var (
			n             domain.Notification
			body, linkURL *string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &body, &linkURL, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Body = deref(body)
		n.LinkURL = deref(linkURL)
		results = append(results, n)
	}
	return results, rows.Err()
}

// MarkRead flips is_read on the recipient's own row only.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID, userID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read=true WHERE notification_id=$1 AND user_id=$2`,
		notificationID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

// CountUnread counts the recipient's unread notifications.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE user_id=$1 AND NOT is_read`,
		userID).Scan(&count)
	return count, err
}
