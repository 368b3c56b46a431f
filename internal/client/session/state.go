package session

import (
	"sort"
	"time"

	"github.com/bellhop-dev/bellhop/internal/storage"
)

// DefaultDropdownLimit caps the quick-glance view.
const DefaultDropdownLimit = 10

// State holds the session's local view of notification data: the bounded
// dropdown, the optional full list, and the unread counter. The counter is
// a cache of the store's authoritative count — event applications adjust
// it for responsiveness, and every reconciliation fetch overwrites it.
//
// State is not goroutine safe; the session serializes all access.
type State struct {
	dropdownLimit int
	trackFull     bool

	dropdown    []storage.Notification
	full        []storage.Notification
	unreadCount int
	lastSyncAt  time.Time
}

func NewState(dropdownLimit int, trackFull bool) *State {
	if dropdownLimit <= 0 {
		dropdownLimit = DefaultDropdownLimit
	}
	return &State{
		dropdownLimit: dropdownLimit,
		trackFull:     trackFull,
	}
}

// ApplyNew merges a pushed notification. An id already present replaces
// the stored copy rather than duplicating it.
func (s *State) ApplyNew(n storage.Notification) {
	existing := findByID(s.dropdown, n.ID)
	if existing == nil {
		existing = findByID(s.full, n.ID)
	}

	switch {
	case existing == nil && !n.IsRead:
		s.unreadCount++
	case existing != nil && existing.IsRead != n.IsRead:
		if n.IsRead {
			s.decUnread()
		} else {
			s.unreadCount++
		}
	}

	s.dropdown = upsert(s.dropdown, n)
	if s.trackFull {
		s.full = upsert(s.full, n)
	}
	s.trim()
}

// ApplyRead marks one notification read. Applying it twice, or for an id
// this client never saw, is a no-op; the triggered fetch corrects any
// counting the push alone cannot.
func (s *State) ApplyRead(id string) {
	marked := false
	if n := findByID(s.dropdown, id); n != nil && !n.IsRead {
		n.IsRead = true
		marked = true
	}
	if n := findByID(s.full, id); n != nil && !n.IsRead {
		n.IsRead = true
		marked = true
	}
	if marked {
		s.decUnread()
	}
}

func (s *State) ApplyAllRead() {
	for i := range s.dropdown {
		s.dropdown[i].IsRead = true
	}
	for i := range s.full {
		s.full[i].IsRead = true
	}
	s.unreadCount = 0
}

// ApplyDeleted removes the notification everywhere. Absence is not an
// error.
func (s *State) ApplyDeleted(id string) {
	wasUnread := false
	if n := findByID(s.dropdown, id); n != nil && !n.IsRead {
		wasUnread = true
	}
	if n := findByID(s.full, id); n != nil && !n.IsRead {
		wasUnread = true
	}

	s.dropdown = removeByID(s.dropdown, id)
	s.full = removeByID(s.full, id)
	if wasUnread {
		s.decUnread()
	}
}

// ReplaceDropdown overwrites the dropdown view and the unread counter
// with an authoritative fetch result.
func (s *State) ReplaceDropdown(page storage.Page, at time.Time) {
	s.dropdown = append([]storage.Notification(nil), page.Data...)
	s.trim()
	s.unreadCount = page.TotalUnread
	s.lastSyncAt = at
}

// ReplaceFull overwrites the full list view.
func (s *State) ReplaceFull(page storage.Page, at time.Time) {
	if !s.trackFull {
		return
	}
	s.full = append([]storage.Notification(nil), page.Data...)
	sortDesc(s.full)
	s.unreadCount = page.TotalUnread
	s.lastSyncAt = at
}

// Clear wipes all local state. Called on logout and before the rebuild
// that follows a reconnect.
func (s *State) Clear() {
	s.dropdown = nil
	s.full = nil
	s.unreadCount = 0
	s.lastSyncAt = time.Time{}
}

func (s *State) Dropdown() []storage.Notification {
	return append([]storage.Notification(nil), s.dropdown...)
}

func (s *State) Full() []storage.Notification {
	return append([]storage.Notification(nil), s.full...)
}

func (s *State) UnreadCount() int { return s.unreadCount }

func (s *State) LastSyncAt() time.Time { return s.lastSyncAt }

func (s *State) TracksFull() bool { return s.trackFull }

func (s *State) decUnread() {
	if s.unreadCount > 0 {
		s.unreadCount--
	}
}

// trim re-sorts the dropdown most-recent-first and enforces its cap.
func (s *State) trim() {
	sortDesc(s.dropdown)
	if len(s.dropdown) > s.dropdownLimit {
		s.dropdown = s.dropdown[:s.dropdownLimit]
	}
	if s.trackFull {
		sortDesc(s.full)
	}
}

func sortDesc(list []storage.Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}

func findByID(list []storage.Notification, id string) *storage.Notification {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}

func upsert(list []storage.Notification, n storage.Notification) []storage.Notification {
	for i := range list {
		if list[i].ID == n.ID {
			list[i] = n
			return list
		}
	}
	return append(list, n)
}

func removeByID(list []storage.Notification, id string) []storage.Notification {
	for i := range list {
		if list[i].ID == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
