package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ NotificationStore = (*PostgresStore)(nil)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id           UUID PRIMARY KEY,
	user_id      TEXT NOT NULL,
	title        TEXT NOT NULL,
	message      TEXT NOT NULL,
	is_read      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	redirect_url TEXT,
	metadata     JSONB
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_created
	ON notifications (user_id, created_at DESC, id DESC);

CREATE INDEX IF NOT EXISTS idx_notifications_user_unread
	ON notifications (user_id) WHERE NOT is_read;
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, userID string, opts ListOptions) (Page, error) {
	totalUnread, err := s.CountUnread(ctx, userID)
	if err != nil {
		return Page{}, err
	}

	query := `
		SELECT id, user_id, title, message, is_read, created_at, COALESCE(redirect_url, ''), metadata
		FROM notifications
		WHERE user_id = $1 AND ($2::boolean = FALSE OR NOT is_read)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, query, userID, opts.UnreadOnly, limit, opts.Offset)
	if err != nil {
		return Page{}, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]Notification, 0, limit)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt, &n.RedirectURL, &n.Metadata); err != nil {
			return Page{}, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("failed to read notifications: %w", err)
	}

	return Page{
		Data:        notifications,
		TotalUnread: totalUnread,
		ServerTime:  time.Now(),
	}, nil
}

func (s *PostgresStore) Create(ctx context.Context, n Notification) (Notification, error) {
	query := `
		INSERT INTO notifications (id, user_id, title, message, is_read, created_at, redirect_url, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		RETURNING id, created_at`

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	row := s.pool.QueryRow(ctx, query,
		n.ID, n.UserID, n.Title, n.Message, n.IsRead, n.CreatedAt, n.RedirectURL, n.Metadata)
	if err := row.Scan(&n.ID, &n.CreatedAt); err != nil {
		return Notification{}, fmt.Errorf("failed to insert notification: %w", err)
	}

	return n, nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND id = $2`,
		userID, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAllRead(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`,
		userID)
	if err != nil {
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notifications WHERE user_id = $1 AND id = $2`,
		userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`,
		userID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
