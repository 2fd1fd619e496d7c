// Package gateway is the connection-event dispatcher: it routes inbound
// client events to the store and presence tracker and fans outbound events
// to the right recipient set (one connection, a whole room, or a room minus
// the sender).
package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"m5chat/pkg/logger"
	"m5chat/pkg/models"
	"m5chat/pkg/presence"
	"m5chat/pkg/store"
)

// Options configures a Gateway.
type Options struct {
	Greeting       string
	RPS            float64 // per-connection inbound event rate
	Burst          int
	AllowedOrigins []string // empty allows any origin
}

// Gateway owns the set of live websocket clients. Room membership and
// identity live in the presence tracker; the clients map only resolves a
// connection ID to its transport handle.
type Gateway struct {
	store   *store.Store
	tracker *presence.Tracker
	opts    Options

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
}

func New(st *store.Store, tr *presence.Tracker, opts Options) *Gateway {
	if opts.RPS <= 0 {
		opts.RPS = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 10
	}
	g := &Gateway{
		store:   st,
		tracker: tr,
		opts:    opts,
		clients: make(map[string]*client),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range g.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// HandleWS upgrades the request, registers the connection and starts its
// pumps. The connected acknowledgment is queued before any other event can
// reach the client.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws_upgrade_failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &client{
		id:      uuid.NewString(),
		gw:      g,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: rate.NewLimiter(rate.Limit(g.opts.RPS), g.opts.Burst),
	}

	g.mu.Lock()
	g.clients[c.id] = c
	g.mu.Unlock()
	clientsConnected.Inc()
	logger.Info("client_connected", "conn", c.id, "remote", r.RemoteAddr)

	c.enqueue(encodeEvent(evtConnected, connectedPayload{Message: g.opts.Greeting}))

	go c.writePump()
	go c.readPump()
}

// dispatch routes one inbound frame from the connection's read pump.
func (g *Gateway) dispatch(c *client, raw []byte) {
	if !c.limiter.Allow() {
		c.enqueue(encodeEvent(evtError, errorPayload{Message: "rate limit exceeded"}))
		return
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.enqueue(encodeEvent(evtError, errorPayload{Message: "malformed event"}))
		return
	}
	eventsDispatched.WithLabelValues(env.Event).Inc()
	switch env.Event {
	case evtJoin:
		g.handleJoin(c, env.Data)
	case evtLeave:
		g.handleLeave(c, env.Data)
	case evtSend:
		g.handleSend(c, env.Data)
	default:
		c.enqueue(encodeEvent(evtError, errorPayload{Message: "unknown event " + env.Event}))
	}
}

func (g *Gateway) handleJoin(c *client, data json.RawMessage) {
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.enqueue(encodeEvent(evtError, errorPayload{Message: "malformed join payload"}))
		return
	}
	if p.Room == "" || p.Username == "" {
		c.enqueue(encodeEvent(evtError, errorPayload{Message: "room and username required"}))
		return
	}
	// room names become store key components
	if strings.Contains(p.Room, ":") {
		c.enqueue(encodeEvent(evtError, errorPayload{Message: "room name must not contain ':'"}))
		return
	}

	now := time.Now()
	if err := g.store.EnsureRoom(p.Room, now); err != nil {
		logger.Error("ensure_room_failed", "conn", c.id, "room", p.Room, "error", err)
		c.enqueue(encodeEvent(evtError, errorPayload{Message: "internal error"}))
		return
	}

	if err := g.tracker.Open(c.id, p.Username, p.Room); err == presence.ErrDuplicateSession {
		// joining a new room supersedes the old session
		if prior, ok := g.tracker.Close(c.id); ok {
			g.notifyLeft(prior.Room, prior.Username, nil)
		}
		if err := g.tracker.Open(c.id, p.Username, p.Room); err != nil {
			logger.Error("session_reopen_failed", "conn", c.id, "error", err)
			c.enqueue(encodeEvent(evtError, errorPayload{Message: "internal error"}))
			return
		}
	}

	msgs, err := g.store.ListLive(p.Room, now)
	if err != nil {
		logger.Error("list_live_failed", "conn", c.id, "room", p.Room, "error", err)
		g.tracker.Close(c.id)
		c.enqueue(encodeEvent(evtError, errorPayload{Message: "internal error"}))
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	users := g.tracker.UsersInRoom(p.Room)

	// history goes to the joiner before anyone hears about the join
	c.enqueue(encodeEvent(evtRoomHistory, historyPayload{Messages: msgs, ActiveUsers: users}))
	g.broadcastExcept(p.Room, c.id, encodeEvent(evtUserJoined, presencePayload{
		Username: p.Username, Room: p.Room, ActiveUsers: users,
	}))
	logger.Info("client_joined", "conn", c.id, "room", p.Room, "username", p.Username)
}

func (g *Gateway) handleLeave(c *client, data json.RawMessage) {
	var p leavePayload
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		return
	}
	// a leave only applies to the room the session actually occupies;
	// anything else is a stale or confused client and a no-op
	sess, ok := g.tracker.Get(c.id)
	if !ok || sess.Room != p.Room {
		return
	}
	g.tracker.Close(c.id)
	// the leaver still gets the notification; the transport persists for a
	// possible rejoin
	g.notifyLeft(p.Room, sess.Username, []string{c.id})
	logger.Info("client_left", "conn", c.id, "room", p.Room, "username", sess.Username)
}

func (g *Gateway) handleSend(c *client, data json.RawMessage) {
	var p sendPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.enqueue(encodeEvent(evtError, errorPayload{Message: "malformed send payload"}))
		return
	}
	if p.Room == "" || p.Username == "" {
		c.enqueue(encodeEvent(evtError, errorPayload{Message: "room and username required"}))
		return
	}
	if p.Type == "" {
		p.Type = models.TypeText
	}
	if !models.ValidType(p.Type) {
		c.enqueue(encodeEvent(evtError, errorPayload{Message: "unknown message_type " + p.Type}))
		return
	}
	if strings.Contains(p.Room, ":") {
		c.enqueue(encodeEvent(evtError, errorPayload{Message: "room name must not contain ':'"}))
		return
	}

	m, err := g.store.AppendMessage(store.AppendParams{
		Room:     p.Room,
		Username: p.Username,
		Content:  p.Content,
		Type:     p.Type,
		ImageURL: p.ImageURL,
		VoiceURL: p.VoiceURL,
	})
	if err != nil {
		logger.Error("append_message_failed", "conn", c.id, "room", p.Room, "error", err)
		c.enqueue(encodeEvent(evtError, errorPayload{Message: "internal error"}))
		return
	}
	// the sender receives its own echo; that is how clients confirm
	// persistence
	g.broadcastRoom(p.Room, encodeEvent(evtNewMessage, m))
}

// PostAttachment appends an already-stored upload as a message and
// broadcasts it to the room, exactly like a send with the matching variant.
// The gateway never inspects file bytes; validation and storage happened
// upstream.
func (g *Gateway) PostAttachment(room, username, kind, url, storagePath string) (models.Message, error) {
	p := store.AppendParams{Room: room, Username: username, Type: kind, StoragePath: storagePath}
	switch kind {
	case models.TypeImage:
		p.ImageURL = url
	case models.TypeVoice:
		p.VoiceURL = url
	}
	now := time.Now()
	if err := g.store.EnsureRoom(room, now); err != nil {
		return models.Message{}, err
	}
	m, err := g.store.AppendMessage(p)
	if err != nil {
		return models.Message{}, err
	}
	g.broadcastRoom(room, encodeEvent(evtNewMessage, m))
	return m, nil
}

// disconnect tears down a connection. It must never fail: presence
// bookkeeping is best-effort and a connection always unwinds cleanly, with
// or without a session.
func (g *Gateway) disconnect(c *client) {
	g.mu.Lock()
	_, present := g.clients[c.id]
	delete(g.clients, c.id)
	g.mu.Unlock()
	if !present {
		return
	}
	c.closeSend()
	clientsConnected.Dec()

	if sess, ok := g.tracker.Close(c.id); ok {
		g.notifyLeft(sess.Room, sess.Username, nil)
	}
	logger.Info("client_disconnected", "conn", c.id)
}

// notifyLeft emits user_left with a fresh occupant snapshot to the room's
// remaining members plus any extra connections (e.g. the leaver itself).
func (g *Gateway) notifyLeft(room, username string, extra []string) {
	frame := encodeEvent(evtUserLeft, presencePayload{
		Username:    username,
		Room:        room,
		ActiveUsers: g.tracker.UsersInRoom(room),
	})
	targets := g.tracker.ConnsInRoom(room)
	targets = append(targets, extra...)
	g.deliver(targets, frame)
}

func (g *Gateway) broadcastRoom(room string, frame []byte) {
	g.deliver(g.tracker.ConnsInRoom(room), frame)
}

func (g *Gateway) broadcastExcept(room, exceptID string, frame []byte) {
	conns := g.tracker.ConnsInRoom(room)
	targets := conns[:0:0]
	for _, id := range conns {
		if id != exceptID {
			targets = append(targets, id)
		}
	}
	g.deliver(targets, frame)
}

// deliver fans a frame out to the given connections. Membership may have
// changed since the recipient set was computed; vanished connections are
// skipped, and a client that cannot keep up is dropped rather than allowed
// to stall the rest of the room.
func (g *Gateway) deliver(connIDs []string, frame []byte) {
	g.mu.RLock()
	targets := make([]*client, 0, len(connIDs))
	for _, id := range connIDs {
		if c, ok := g.clients[id]; ok {
			targets = append(targets, c)
		}
	}
	g.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(frame) {
			logger.Warn("slow_client_dropped", "conn", c.id)
			go func(sc *client) {
				g.disconnect(sc)
				_ = sc.conn.Close()
			}(c)
		}
	}
	broadcastFrames.Add(float64(len(targets)))
}
