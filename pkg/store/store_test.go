package store

import (
	"testing"
	"time"

	"m5chat/pkg/models"
)

func openTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), ttl)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAssignsIdentityAndExpiry(t *testing.T) {
	s := openTestStore(t, 5*time.Minute)

	before := time.Now().UTC().UnixNano()
	m, err := s.AppendMessage(AppendParams{Room: "lobby", Username: "alice", Content: "hi"})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	after := time.Now().UTC().UnixNano()

	if m.ID == "" {
		t.Fatalf("expected non-empty message id")
	}
	if m.TS < before || m.TS > after {
		t.Fatalf("creation timestamp %d outside [%d, %d]", m.TS, before, after)
	}
	if got, want := m.ExpiresAt, m.TS+(5*time.Minute).Nanoseconds(); got != want {
		t.Fatalf("expiry = %d; want creation + TTL = %d", got, want)
	}
	if m.Type != models.TypeText {
		t.Fatalf("default variant = %q; want %q", m.Type, models.TypeText)
	}
}

func TestListLiveFiltersAndOrders(t *testing.T) {
	s := openTestStore(t, 5*time.Minute)

	first, err := s.AppendMessage(AppendParams{Room: "lobby", Username: "alice", Content: "one"})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	second, err := s.AppendMessage(AppendParams{Room: "lobby", Username: "bob", Content: "two"})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if _, err := s.AppendMessage(AppendParams{Room: "other", Username: "carol", Content: "elsewhere"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	msgs, err := s.ListLive("lobby", time.Now())
	if err != nil {
		t.Fatalf("ListLive: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d live messages; want 2", len(msgs))
	}
	if msgs[0].ID != first.ID || msgs[1].ID != second.ID {
		t.Fatalf("messages out of creation order: %q then %q", msgs[0].Content, msgs[1].Content)
	}

	// A message is live iff now < expiry, so exactly at expiry it is gone.
	msgs, err = s.ListLive("lobby", time.Unix(0, second.ExpiresAt))
	if err != nil {
		t.Fatalf("ListLive: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("got %d messages at expiry instant; want 0", len(msgs))
	}
}

func TestSweepExpiredRemovesRowsAndReturnsPaths(t *testing.T) {
	s := openTestStore(t, time.Minute)

	m1, err := s.AppendMessage(AppendParams{Room: "lobby", Username: "alice", Content: "hi"})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if _, err := s.AppendMessage(AppendParams{
		Room: "pics", Username: "bob", Type: models.TypeImage,
		ImageURL: "/uploads/a.png", StoragePath: "/tmp/a.png",
	}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	// Nothing is due yet.
	paths, n, err := s.SweepExpired(time.Now())
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 0 || len(paths) != 0 {
		t.Fatalf("premature sweep removed %d rows, paths %v", n, paths)
	}

	// Everything is due once the clock passes the newest expiry.
	after := time.Unix(0, m1.ExpiresAt).Add(2 * time.Minute)
	paths, n, err = s.SweepExpired(after)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 2 {
		t.Fatalf("swept %d rows; want 2", n)
	}
	if len(paths) != 1 || paths[0] != "/tmp/a.png" {
		t.Fatalf("returned paths %v; want [/tmp/a.png]", paths)
	}

	for _, room := range []string{"lobby", "pics"} {
		msgs, err := s.ListLive(room, after)
		if err != nil {
			t.Fatalf("ListLive(%s): %v", room, err)
		}
		if len(msgs) != 0 {
			t.Fatalf("room %s still has %d messages after sweep", room, len(msgs))
		}
	}

	// Sweeping again finds nothing.
	if _, n, err = s.SweepExpired(after); err != nil || n != 0 {
		t.Fatalf("second sweep: n=%d err=%v", n, err)
	}
}

func TestActiveRoomsRequiresLiveMessage(t *testing.T) {
	s := openTestStore(t, time.Minute)

	if err := s.EnsureRoom("empty", time.Now()); err != nil {
		t.Fatalf("EnsureRoom: %v", err)
	}
	if err := s.EnsureRoom("lobby", time.Now()); err != nil {
		t.Fatalf("EnsureRoom: %v", err)
	}
	// idempotent
	if err := s.EnsureRoom("lobby", time.Now()); err != nil {
		t.Fatalf("EnsureRoom twice: %v", err)
	}

	m, err := s.AppendMessage(AppendParams{Room: "lobby", Username: "alice", Content: "hi"})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	rooms, err := s.ActiveRooms(time.Now())
	if err != nil {
		t.Fatalf("ActiveRooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].Name != "lobby" {
		t.Fatalf("active rooms = %+v; want [lobby]", rooms)
	}

	// Once the only message expires the room goes dormant.
	rooms, err = s.ActiveRooms(time.Unix(0, m.ExpiresAt))
	if err != nil {
		t.Fatalf("ActiveRooms: %v", err)
	}
	if len(rooms) != 0 {
		t.Fatalf("active rooms after expiry = %+v; want none", rooms)
	}
}

func TestActiveRoomsOrderedByCreationDesc(t *testing.T) {
	s := openTestStore(t, time.Minute)

	base := time.Now()
	if err := s.EnsureRoom("older", base.Add(-time.Hour)); err != nil {
		t.Fatalf("EnsureRoom: %v", err)
	}
	if err := s.EnsureRoom("newer", base); err != nil {
		t.Fatalf("EnsureRoom: %v", err)
	}
	for _, room := range []string{"older", "newer"} {
		if _, err := s.AppendMessage(AppendParams{Room: room, Username: "alice", Content: "hi"}); err != nil {
			t.Fatalf("AppendMessage(%s): %v", room, err)
		}
	}

	rooms, err := s.ActiveRooms(time.Now())
	if err != nil {
		t.Fatalf("ActiveRooms: %v", err)
	}
	if len(rooms) != 2 || rooms[0].Name != "newer" || rooms[1].Name != "older" {
		t.Fatalf("active rooms = %+v; want newest first", rooms)
	}
}
