package storage

import (
	"context"
	"errors"
	"time"

	go_json "github.com/goccy/go-json"
)

var ErrNotFound = errors.New("notification not found")

// Notification is the authoritative persisted record. The push path only
// ever carries a read-only projection of it; all mutations go through the
// store first.
type Notification struct {
	ID          string             `json:"id"`
	UserID      string             `json:"userId"`
	Title       string             `json:"title"`
	Message     string             `json:"message"`
	IsRead      bool               `json:"isRead"`
	CreatedAt   time.Time          `json:"createdAt"`
	RedirectURL string             `json:"redirectUrl,omitempty"`
	Metadata    go_json.RawMessage `json:"metadata,omitempty"`
}

type ListOptions struct {
	Limit      int
	Offset     int
	UnreadOnly bool
}

// Page is one fetch result. TotalUnread is the authoritative unread count
// for the user at the time of the query, regardless of paging.
type Page struct {
	Data        []Notification `json:"data"`
	TotalUnread int            `json:"totalUnread"`
	ServerTime  time.Time      `json:"serverTime"`
}

type NotificationStore interface {
	// List returns notifications for userID ordered by createdAt descending,
	// id as tiebreak.
	List(ctx context.Context, userID string, opts ListOptions) (Page, error)

	Create(ctx context.Context, n Notification) (Notification, error)

	// MarkRead is idempotent: marking an already-read notification succeeds.
	// Returns ErrNotFound if the notification does not exist for userID.
	MarkRead(ctx context.Context, userID, id string) error

	MarkAllRead(ctx context.Context, userID string) error

	// Delete is a hard removal. Returns ErrNotFound if absent.
	Delete(ctx context.Context, userID, id string) error

	CountUnread(ctx context.Context, userID string) (int, error)

	Close() error

	Ping(ctx context.Context) error
}
