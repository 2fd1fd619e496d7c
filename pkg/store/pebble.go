package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"m5chat/pkg/logger"
	"m5chat/pkg/models"
)

// Store persists messages and room metadata in a Pebble database.
//
// Keyspace:
//
//	room:<name>:msg:<unix_nano_padded>-<seq>  message (models.StoredMessage)
//	room:<name>:meta                          room metadata (models.Room)
//	exp:<expiry_nano_padded>-<seq>            expiry index (expEntry)
//
// Message keys sort by insertion time, so a prefix scan yields a room's
// messages in creation order. The exp: index sorts by expiry so the sweeper
// can range-scan everything due without touching live rows. Room names must
// not contain ':'; callers validate at the boundary.
type Store struct {
	db  *pebble.DB
	ttl time.Duration

	// mu serializes EnsureRoom so concurrent first joins agree on created_ts.
	mu sync.Mutex

	// seq reduces key collisions when multiple messages share the same
	// nanosecond timestamp.
	seq uint64
}

// expEntry is the value stored under an exp: index key.
type expEntry struct {
	Key         string `json:"key"`
	Room        string `json:"room"`
	StoragePath string `json:"storage_path,omitempty"`
}

var errNotOpened = fmt.Errorf("pebble not opened; call store.Open first")

// Open opens (or creates) a Pebble database at the given path. Messages
// appended through the returned Store expire ttl after creation.
func Open(path string, ttl time.Duration) (*Store, error) {
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	logger.Info("pebble_opened", "path", path, "ttl", ttl.String())
	return &Store{db: db, ttl: ttl}, nil
}

// Close closes the underlying pebble DB if present.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	s.db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func (s *Store) Ready() bool {
	return s != nil && s.db != nil
}

// TTL returns the configured message lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// AppendParams carries the caller-supplied fields of a new message. Callers
// validate; AppendMessage only assigns identity and timestamps.
type AppendParams struct {
	Room        string
	Username    string
	Content     string
	Type        string
	ImageURL    string
	VoiceURL    string
	StoragePath string
}

// AppendMessage inserts a message with a fresh ID, creation timestamp and
// expiry (creation + TTL). The message row and its expiry index entry are
// written in a single batch so the index never dangles.
func (s *Store) AppendMessage(p AppendParams) (models.Message, error) {
	if s.db == nil {
		return models.Message{}, errNotOpened
	}
	ts := time.Now().UTC().UnixNano()
	n := atomic.AddUint64(&s.seq, 1)
	m := models.Message{
		ID:        uuid.NewString(),
		Username:  p.Username,
		Content:   p.Content,
		Room:      p.Room,
		TS:        ts,
		ExpiresAt: ts + s.ttl.Nanoseconds(),
		Type:      p.Type,
		ImageURL:  p.ImageURL,
		VoiceURL:  p.VoiceURL,
	}
	if m.Type == "" {
		m.Type = models.TypeText
	}

	key := msgKey(p.Room, ts, n)
	data, err := json.Marshal(models.StoredMessage{Message: m, StoragePath: p.StoragePath})
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to marshal message: %w", err)
	}
	idx, err := json.Marshal(expEntry{Key: key, Room: p.Room, StoragePath: p.StoragePath})
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to marshal expiry entry: %w", err)
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set([]byte(key), data, nil); err != nil {
		return models.Message{}, err
	}
	if err := b.Set([]byte(expKey(m.ExpiresAt, n)), idx, nil); err != nil {
		return models.Message{}, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("append_message_failed", "room", p.Room, "key", key, "error", err)
		return models.Message{}, err
	}
	messagesAppended.Inc()
	logger.Debug("message_appended", "room", p.Room, "id", m.ID, "type", m.Type)
	return m, nil
}

// ListLive returns the room's messages with expiry > now, in creation order.
func (s *Store) ListLive(room string, now time.Time) ([]models.Message, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	prefix := []byte("room:" + room + ":msg:")
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	cutoff := now.UTC().UnixNano()
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var sm models.StoredMessage
		if err := json.Unmarshal(iter.Value(), &sm); err != nil {
			logger.Error("listlive_invalid_message_json", "key", string(iter.Key()), "error", err)
			return nil, fmt.Errorf("invalid message JSON: %w", err)
		}
		if sm.ExpiresAt > cutoff {
			out = append(out, sm.Message)
		}
	}
	return out, iter.Error()
}

// SweepExpired atomically removes every message with expiry <= now across all
// rooms and returns the attachment storage paths of the removed rows, plus
// the number of messages deleted. Rows and index entries are deleted in one
// batch; file deletion is the caller's job.
func (s *Store) SweepExpired(now time.Time) ([]string, int, error) {
	if s.db == nil {
		return nil, 0, errNotOpened
	}
	prefix := []byte("exp:")
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, 0, err
	}
	defer iter.Close()

	cutoff := now.UTC().UnixNano()
	b := s.db.NewBatch()
	defer b.Close()

	var paths []string
	count := 0
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		k := iter.Key()
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		exp, perr := expiryFromKey(k)
		if perr != nil {
			logger.Error("sweep_bad_index_key", "key", string(k), "error", perr)
			continue
		}
		if exp > cutoff {
			break
		}
		var e expEntry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			logger.Error("sweep_invalid_index_json", "key", string(k), "error", err)
			continue
		}
		if err := b.Delete([]byte(e.Key), nil); err != nil {
			return nil, 0, err
		}
		if err := b.Delete(append([]byte(nil), k...), nil); err != nil {
			return nil, 0, err
		}
		if e.StoragePath != "" {
			paths = append(paths, e.StoragePath)
		}
		count++
	}
	if err := iter.Error(); err != nil {
		return nil, 0, err
	}
	if count == 0 {
		return nil, 0, nil
	}
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("sweep_commit_failed", "error", err)
		return nil, 0, err
	}
	messagesSwept.Add(float64(count))
	return paths, count, nil
}

// EnsureRoom idempotently records the room's first-seen timestamp. Calling
// it again for an existing room is a no-op.
func (s *Store) EnsureRoom(room string, now time.Time) error {
	if s.db == nil {
		return errNotOpened
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := []byte("room:" + room + ":meta")
	_, closer, err := s.db.Get(key)
	if err == nil {
		closer.Close()
		return nil
	}
	if err != pebble.ErrNotFound {
		return err
	}
	data, err := json.Marshal(models.Room{Name: room, CreatedTS: now.UTC().UnixNano()})
	if err != nil {
		return err
	}
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		logger.Error("ensure_room_failed", "room", room, "error", err)
		return err
	}
	logger.Info("room_created", "room", room)
	return nil
}

// ActiveRooms returns rooms with at least one live message at now, ordered
// by creation time descending. Rooms whose messages have all expired are
// dormant: their metadata stays but they drop out of this listing.
func (s *Store) ActiveRooms(now time.Time) ([]models.Room, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	prefix := []byte("room:")
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []models.Room
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		k := iter.Key()
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		if !bytes.HasSuffix(k, []byte(":meta")) {
			continue
		}
		var r models.Room
		if err := json.Unmarshal(iter.Value(), &r); err != nil {
			logger.Error("activerooms_invalid_room_json", "key", string(k), "error", err)
			continue
		}
		live, lerr := s.roomHasLive(r.Name, now)
		if lerr != nil {
			return nil, lerr
		}
		if live {
			out = append(out, r)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedTS > out[j].CreatedTS })
	return out, nil
}

// roomHasLive reports whether the room has at least one message with
// expiry > now.
func (s *Store) roomHasLive(room string, now time.Time) (bool, error) {
	prefix := []byte("room:" + room + ":msg:")
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return false, err
	}
	defer iter.Close()

	cutoff := now.UTC().UnixNano()
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var sm models.StoredMessage
		if err := json.Unmarshal(iter.Value(), &sm); err != nil {
			continue
		}
		if sm.ExpiresAt > cutoff {
			return true, nil
		}
	}
	return false, iter.Error()
}

func msgKey(room string, ts int64, seq uint64) string {
	return fmt.Sprintf("room:%s:msg:%020d-%06d", room, ts, seq)
}

func expKey(expiry int64, seq uint64) string {
	return fmt.Sprintf("exp:%020d-%06d", expiry, seq)
}

// expiryFromKey parses the padded expiry timestamp out of an exp: index key.
func expiryFromKey(k []byte) (int64, error) {
	s := string(k)
	if len(s) < len("exp:")+20 {
		return 0, fmt.Errorf("short expiry key %q", s)
	}
	return strconv.ParseInt(s[len("exp:"):len("exp:")+20], 10, 64)
}
