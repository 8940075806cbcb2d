package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// pongWait bounds how long a subscriber may go silent. The hub pings
// every 50 seconds, so a healthy client always answers in time.
const pongWait = 90 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin is enforced by the CORS layer for the REST API; the
	// socket trusts the same edge-injected identity header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleSessionEvents returns the recent event backlog, for clients
// that reconnect and need to catch up.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID, caller, ok := sessionRequest(w, r)
	if !ok {
		return
	}

	allowed, err := s.sessionStanding(sessionID, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowed {
		writeStatus(w, http.StatusForbidden, "not a participant of this session")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events, err := s.Broadcaster.RecentEvents(sessionID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"events": events, "total": len(events)})
}

// handleSessionSocket upgrades to a websocket and subscribes the
// connection to the session's event stream.
func (s *Server) handleSessionSocket(w http.ResponseWriter, r *http.Request) {
	sessionID, caller, ok := sessionRequest(w, r)
	if !ok {
		return
	}

	allowed, err := s.sessionStanding(sessionID, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowed {
		writeStatus(w, http.StatusForbidden, "not a participant of this session")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}

	s.Hub.Register(sessionID, conn)
	slog.Info("websocket subscribed", "session_id", sessionID, "user_id", caller,
		"subscribers", s.Hub.SubscriberCount(sessionID))

	// Reader loop: the client sends nothing meaningful, but reading
	// pumps the pongs answering the hub's keepalive pings and is how we
	// learn the connection died. The deadline must outlast the hub's
	// ping cadence so an idle-but-healthy subscriber is never dropped.
	go func() {
		defer func() {
			s.Hub.Unregister(sessionID, conn)
			conn.Close()
		}()
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// sessionStanding allows the session's DM and accepted participants.
func (s *Server) sessionStanding(sessionID, userID int64) (bool, error) {
	isDM, err := s.Access.IsDM(userID, sessionID)
	if err != nil {
		return false, err
	}
	if isDM {
		return true, nil
	}
	return s.Access.IsAcceptedParticipant(userID, sessionID)
}

func sessionRequest(w http.ResponseWriter, r *http.Request) (sessionID, caller int64, ok bool) {
	sessionID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		writeError(w, validationFailed("session_id", "valid session ID is required"))
		return 0, 0, false
	}
	caller, err = callerID(r)
	if err != nil {
		writeStatus(w, http.StatusUnauthorized, err.Error())
		return 0, 0, false
	}
	return sessionID, caller, true
}
