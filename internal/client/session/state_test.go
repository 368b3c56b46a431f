package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bellhop-dev/bellhop/internal/storage"
)

func note(id string, at time.Time, read bool) storage.Notification {
	return storage.Notification{
		ID:        id,
		UserID:    "u1",
		Title:     "title " + id,
		Message:   "message " + id,
		IsRead:    read,
		CreatedAt: at,
	}
}

func TestApplyNewCountsAndOrders(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewState(DefaultDropdownLimit, false)

	s.ApplyNew(note("n1", base, false))
	s.ApplyNew(note("n2", base.Add(time.Minute), false))
	s.ApplyNew(note("n3", base.Add(2*time.Minute), true))

	if got, want := s.UnreadCount(), 2; got != want {
		t.Fatalf("unread count = %d, want %d", got, want)
	}

	var ids []string
	for _, n := range s.Dropdown() {
		ids = append(ids, n.ID)
	}
	if diff := cmp.Diff([]string{"n3", "n2", "n1"}, ids); diff != "" {
		t.Fatalf("dropdown order mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyNewReplacesExistingID(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewState(DefaultDropdownLimit, false)

	s.ApplyNew(note("n1", base, false))
	// Redelivery of the same id must not duplicate or double count.
	s.ApplyNew(note("n1", base, false))

	if got := len(s.Dropdown()); got != 1 {
		t.Fatalf("dropdown length = %d, want 1", got)
	}
	if got := s.UnreadCount(); got != 1 {
		t.Fatalf("unread count = %d, want 1", got)
	}

	// A replacement carrying a newer read flag adjusts the counter.
	s.ApplyNew(note("n1", base, true))
	if got := s.UnreadCount(); got != 0 {
		t.Fatalf("unread count after read replacement = %d, want 0", got)
	}
}

func TestDropdownHoldsMostRecentTen(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewState(DefaultDropdownLimit, false)

	for i := 0; i < 15; i++ {
		s.ApplyNew(note(fmt.Sprintf("n%02d", i), base.Add(time.Duration(i)*time.Minute), false))
	}

	dropdown := s.Dropdown()
	if got := len(dropdown); got != DefaultDropdownLimit {
		t.Fatalf("dropdown length = %d, want %d", got, DefaultDropdownLimit)
	}
	if got, want := dropdown[0].ID, "n14"; got != want {
		t.Fatalf("newest = %q, want %q", got, want)
	}
	if got, want := dropdown[9].ID, "n05"; got != want {
		t.Fatalf("oldest retained = %q, want %q", got, want)
	}
	// The counter tracks all unread, not just what the dropdown holds.
	if got := s.UnreadCount(); got != 15 {
		t.Fatalf("unread count = %d, want 15", got)
	}
}

func TestApplyReadIsIdempotent(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewState(DefaultDropdownLimit, false)
	s.ApplyNew(note("n1", base, false))

	s.ApplyRead("n1")
	if got := s.UnreadCount(); got != 0 {
		t.Fatalf("unread count = %d, want 0", got)
	}
	if !s.Dropdown()[0].IsRead {
		t.Fatal("notification not marked read")
	}

	// A redelivered read event and one for an unknown id are no-ops.
	s.ApplyRead("n1")
	s.ApplyRead("never-seen")
	if got := s.UnreadCount(); got != 0 {
		t.Fatalf("unread count after duplicates = %d, want 0", got)
	}
}

func TestApplyAllRead(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewState(DefaultDropdownLimit, false)
	s.ApplyNew(note("n1", base, false))
	s.ApplyNew(note("n2", base.Add(time.Minute), false))

	s.ApplyAllRead()

	if got := s.UnreadCount(); got != 0 {
		t.Fatalf("unread count = %d, want 0", got)
	}
	for _, n := range s.Dropdown() {
		if !n.IsRead {
			t.Fatalf("notification %s not marked read", n.ID)
		}
	}
}

func TestApplyDeleted(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewState(DefaultDropdownLimit, false)
	s.ApplyNew(note("n1", base, false))
	s.ApplyNew(note("n2", base.Add(time.Minute), true))

	s.ApplyDeleted("n1")
	if got := len(s.Dropdown()); got != 1 {
		t.Fatalf("dropdown length = %d, want 1", got)
	}
	if got := s.UnreadCount(); got != 0 {
		t.Fatalf("unread count = %d, want 0", got)
	}

	// Deleting a read or unknown notification leaves the counter alone.
	s.ApplyDeleted("n2")
	s.ApplyDeleted("never-seen")
	if got := s.UnreadCount(); got != 0 {
		t.Fatalf("unread count = %d, want 0", got)
	}
}

func TestCounterNeverGoesNegative(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewState(DefaultDropdownLimit, false)
	s.ApplyNew(note("n1", base, false))

	s.ApplyRead("n1")
	s.ApplyDeleted("n1")
	if got := s.UnreadCount(); got != 0 {
		t.Fatalf("unread count = %d, want 0", got)
	}
}

func TestReplaceDropdownIsAuthoritative(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewState(DefaultDropdownLimit, false)
	s.ApplyNew(note("stale", base, false))

	at := base.Add(time.Hour)
	s.ReplaceDropdown(storage.Page{
		Data:        []storage.Notification{note("n9", base.Add(time.Minute), false)},
		TotalUnread: 7,
	}, at)

	dropdown := s.Dropdown()
	if got := len(dropdown); got != 1 {
		t.Fatalf("dropdown length = %d, want 1", got)
	}
	if got, want := dropdown[0].ID, "n9"; got != want {
		t.Fatalf("dropdown[0] = %q, want %q", got, want)
	}
	if got := s.UnreadCount(); got != 7 {
		t.Fatalf("unread count = %d, want 7", got)
	}
	if !s.LastSyncAt().Equal(at) {
		t.Fatalf("lastSyncAt = %v, want %v", s.LastSyncAt(), at)
	}
}

func TestClear(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewState(DefaultDropdownLimit, true)
	s.ApplyNew(note("n1", base, false))
	s.ReplaceFull(storage.Page{Data: []storage.Notification{note("n1", base, false)}, TotalUnread: 1}, base)

	s.Clear()

	if len(s.Dropdown()) != 0 || len(s.Full()) != 0 || s.UnreadCount() != 0 || !s.LastSyncAt().IsZero() {
		t.Fatal("state not fully cleared")
	}
}
