// Package notify fans session events out to connected clients. Events
// are appended to the session event log and pushed over websockets;
// delivery is best-effort and a failed publish never unwinds the state
// change it describes.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Notifier is the boundary the fog engine publishes through.
type Notifier interface {
	Publish(sessionID int64, eventType string, payload any, actorUserID int64) error
}

// Event is the wire shape delivered to websocket subscribers.
type Event struct {
	ID          string          `json:"event_id"`
	SessionID   int64           `json:"session_id"`
	Type        string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload"`
	ActorUserID int64           `json:"actor_user_id"`
	CreatedAt   string          `json:"created_at"`
}

// Broadcaster persists events and pushes them to the hub.
type Broadcaster struct {
	db  *sqlx.DB
	hub *Hub
}

func NewBroadcaster(db *sqlx.DB, hub *Hub) *Broadcaster {
	return &Broadcaster{db: db, hub: hub}
}

// Publish appends the event to session_events and broadcasts it to
// every client subscribed to the session.
func (b *Broadcaster) Publish(sessionID int64, eventType string, payload any, actorUserID int64) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	ev := Event{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Type:        eventType,
		Payload:     data,
		ActorUserID: actorUserID,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	_, err = b.db.Exec(`
		INSERT INTO session_events (event_uuid, session_id, event_type, event_data, created_by_user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, sessionID, eventType, string(data), actorUserID, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append session event: %w", err)
	}

	if b.hub != nil {
		b.hub.Broadcast(sessionID, ev)
	}
	return nil
}

// RecentEvents returns the most recent events for a session, newest
// first. Clients use it to catch up after a reconnect.
func (b *Broadcaster) RecentEvents(sessionID int64, limit int) ([]Event, error) {
	rows, err := b.db.Queryx(`
		SELECT event_uuid, session_id, event_type, event_data, created_by_user_id, created_at
		FROM session_events WHERE session_id = ?
		ORDER BY event_id DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var data string
		var actor *int64
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Type, &data, &actor, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Payload = json.RawMessage(data)
		if actor != nil {
			ev.ActorUserID = *actor
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
