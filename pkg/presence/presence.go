// Package presence tracks which connection is in which room under which
// identity. It is the single source of truth used to build occupant lists;
// message history lives in the store, not here.
package presence

import (
	"errors"
	"sort"
	"sync"
	"time"

	"m5chat/pkg/models"
)

// ErrDuplicateSession is returned by Open when the connection already has a
// session. Callers close the prior session before reopening.
var ErrDuplicateSession = errors.New("connection already has an open session")

// Tracker maps connection IDs to sessions and keeps a forward index of
// room -> connection set. Both structures are updated under one lock so a
// session and its membership entry can never disagree.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	rooms    map[string]map[string]struct{} // room -> set of connIDs
}

func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string]models.Session),
		rooms:    make(map[string]map[string]struct{}),
	}
}

// Open creates a session binding connID to (username, room). It fails with
// ErrDuplicateSession if the connection already has one.
func (t *Tracker) Open(connID, username, room string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[connID]; ok {
		return ErrDuplicateSession
	}
	t.sessions[connID] = models.Session{
		ConnID:   connID,
		Username: username,
		Room:     room,
		JoinedTS: time.Now().UTC().UnixNano(),
	}
	if t.rooms[room] == nil {
		t.rooms[room] = make(map[string]struct{})
	}
	t.rooms[room][connID] = struct{}{}
	return nil
}

// Close removes and returns the session for connID if present. Closing a
// connection without a session is a no-op, not an error; disconnects can
// race with explicit leaves.
func (t *Tracker) Close(connID string) (models.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[connID]
	if !ok {
		return models.Session{}, false
	}
	delete(t.sessions, connID)
	if members, ok := t.rooms[sess.Room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(t.rooms, sess.Room)
		}
	}
	return sess, true
}

// Get returns the session for connID, if any.
func (t *Tracker) Get(connID string) (models.Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sess, ok := t.sessions[connID]
	return sess, ok
}

// UsersInRoom returns a snapshot of the room's occupant usernames in join
// order. Two connections sharing a username yield two entries; occupancy is
// per connection, not per name.
func (t *Tracker) UsersInRoom(room string) []string {
	sessions := t.sessionsInRoom(room)
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Username)
	}
	return out
}

// ConnsInRoom returns the connection IDs currently in the room, in join order.
func (t *Tracker) ConnsInRoom(room string) []string {
	sessions := t.sessionsInRoom(room)
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ConnID)
	}
	return out
}

// Len returns the number of open sessions.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

func (t *Tracker) sessionsInRoom(room string) []models.Session {
	t.mu.RLock()
	members := t.rooms[room]
	out := make([]models.Session, 0, len(members))
	for connID := range members {
		if s, ok := t.sessions[connID]; ok {
			out = append(out, s)
		}
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedTS != out[j].JoinedTS {
			return out[i].JoinedTS < out[j].JoinedTS
		}
		return out[i].ConnID < out[j].ConnID
	})
	return out
}
