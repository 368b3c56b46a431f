package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ NotificationStore = (*MemoryStore)(nil)

// MemoryStore is the development and test backend. It holds every
// notification in a per-user slice guarded by one mutex; fine for a single
// process, never for production.
type MemoryStore struct {
	mu     sync.RWMutex
	byUser map[string][]Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byUser: make(map[string][]Notification),
	}
}

func (m *MemoryStore) List(_ context.Context, userID string, opts ListOptions) (Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.byUser[userID]

	sorted := make([]Notification, len(all))
	copy(sorted, all)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID > sorted[j].ID
	})

	totalUnread := 0
	for _, n := range sorted {
		if !n.IsRead {
			totalUnread++
		}
	}

	if opts.UnreadOnly {
		unread := sorted[:0]
		for _, n := range sorted {
			if !n.IsRead {
				unread = append(unread, n)
			}
		}
		sorted = unread
	}

	offset := opts.Offset
	if offset > len(sorted) {
		offset = len(sorted)
	}
	sorted = sorted[offset:]

	if opts.Limit > 0 && opts.Limit < len(sorted) {
		sorted = sorted[:opts.Limit]
	}

	return Page{
		Data:        sorted,
		TotalUnread: totalUnread,
		ServerTime:  time.Now(),
	}, nil
}

func (m *MemoryStore) Create(_ context.Context, n Notification) (Notification, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	m.mu.Lock()
	m.byUser[n.UserID] = append(m.byUser[n.UserID], n)
	m.mu.Unlock()

	return n, nil
}

func (m *MemoryStore) MarkRead(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, n := range m.byUser[userID] {
		if n.ID == id {
			m.byUser[userID][i].IsRead = true
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) MarkAllRead(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.byUser[userID] {
		m.byUser[userID][i].IsRead = true
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.byUser[userID]
	for i, n := range list {
		if n.ID == id {
			m.byUser[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) CountUnread(_ context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, n := range m.byUser[userID] {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Ping(_ context.Context) error { return nil }
