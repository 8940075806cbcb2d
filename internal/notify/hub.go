package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	defaultPingEvery = 50 * time.Second
	sendBuffer       = 256
)

// Hub tracks websocket subscribers per session and fans events out to
// them. Each connection gets a single writer goroutine that owns every
// frame sent on it (events, keepalive pings, the close frame), so
// concurrent Broadcast calls never interleave writes on a shared
// connection. A subscriber that cannot keep up is dropped rather than
// blocking the broadcast.
type Hub struct {
	mu       sync.Mutex
	sessions map[int64]map[*websocket.Conn]*subscriber

	// PingEvery overrides the keepalive cadence; zero uses the default.
	// Must stay below the read deadline the connection handler sets.
	PingEvery time.Duration
}

type subscriber struct {
	conn *websocket.Conn
	send chan Event
	done chan struct{}
	once sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[int64]map[*websocket.Conn]*subscriber)}
}

// Register subscribes a connection to a session's events and starts
// its writer.
func (h *Hub) Register(sessionID int64, conn *websocket.Conn) {
	sub := &subscriber{
		conn: conn,
		send: make(chan Event, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*websocket.Conn]*subscriber)
	}
	h.sessions[sessionID][conn] = sub
	h.mu.Unlock()

	pingEvery := h.PingEvery
	if pingEvery <= 0 {
		pingEvery = defaultPingEvery
	}
	go sub.writeLoop(pingEvery)
}

// Unregister removes a connection and stops its writer; safe to call
// twice.
func (h *Hub) Unregister(sessionID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	if sub, ok := conns[conn]; ok {
		delete(conns, conn)
		sub.stop()
	}
	if len(conns) == 0 {
		delete(h.sessions, sessionID)
	}
}

// Broadcast queues the event for every subscriber of the session.
func (h *Hub) Broadcast(sessionID int64, ev Event) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.sessions[sessionID]))
	for _, sub := range h.sessions[sessionID] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.send <- ev:
		default:
			slog.Warn("dropping slow websocket subscriber", "session_id", sessionID)
			h.Unregister(sessionID, sub.conn)
			sub.conn.Close()
		}
	}
}

// SubscriberCount returns the number of live subscribers for a session.
func (h *Hub) SubscriberCount(sessionID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[sessionID])
}

// writeLoop is the connection's only writer. It drains the send queue,
// pings on the keepalive ticker, and emits a close frame when the
// subscriber is unregistered.
func (s *subscriber) writeLoop(pingEvery time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case ev := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(ev); err != nil {
				slog.Warn("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		}
	}
}
