// Package fog is the hex-map fog-of-war engine: it tracks character
// positions, maintains per-(map, user, hex) visibility, and projects a
// role-sensitive view of the map. All visibility writes are raise-to-max,
// so a hex a player has fully discovered is never demoted by later play.
package fog

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/talgya/hexcrawl/internal/access"
	"github.com/talgya/hexcrawl/internal/hex"
	"github.com/talgya/hexcrawl/internal/notify"
	"github.com/talgya/hexcrawl/internal/store"
)

// MaxRevealHexes caps one reveal so the transaction stays short.
const MaxRevealHexes = 100

// ViewRadius bounds the player read window: visibility never extends
// further than two steps from the current position, whatever the stored
// records say.
const ViewRadius = 2

// Engine wires the store, the access-control boundary, and the realtime
// notifier into the move / reveal / view operations.
type Engine struct {
	Store    *store.Store
	Access   access.Checker
	Notifier notify.Notifier

	// BaseTravelHours is the in-game time for a one-hex step at
	// multiplier 1.0. Zero disables the game clock.
	BaseTravelHours float64
}

// MoveResult reports a completed character move. OldPosition is nil on
// the character's first placement on the map.
type MoveResult struct {
	MapID                int64      `json:"map_id"`
	CharacterID          int64      `json:"character_id"`
	CharacterName        string     `json:"character_name"`
	OldPosition          *hex.Coord `json:"old_position,omitempty"`
	NewPosition          hex.Coord  `json:"new_position"`
	TravelTimeHours      float64    `json:"travel_time_hours"`
	TravelTimeMultiplier float64    `json:"travel_time_multiplier"`
	GameTime             *string    `json:"game_time,omitempty"`
}

// MoveCharacter places or moves a character, advances the owning user's
// fog, and broadcasts the move. The position write and visibility
// advance commit in one transaction; the broadcast happens strictly
// after commit and is best-effort.
func (e *Engine) MoveCharacter(mapID, characterID int64, target hex.Coord, requesterID int64) (*MoveResult, error) {
	auth, err := e.Store.RequireView(mapID, requesterID)
	if err != nil {
		return nil, err
	}

	character, err := e.Store.GetCharacter(characterID)
	if err != nil {
		return nil, err
	}

	canMove := character.UserID == requesterID
	if !canMove {
		canMove, err = e.Store.IsMapDM(auth, requesterID)
		if err != nil {
			return nil, err
		}
	}
	if !canMove {
		return nil, fmt.Errorf("user %d may not move character %d: %w", requesterID, characterID, store.ErrForbidden)
	}

	// An unmapped hex is assumed passable; only an explicit tile can
	// block movement.
	targetTile, err := e.Store.GetTile(mapID, target.Q, target.R)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if targetTile != nil && !targetTile.IsPassable {
		return nil, fmt.Errorf("hex (%d,%d) is impassable: %w", target.Q, target.R, store.ErrInvalid)
	}

	oldPos, err := e.Store.GetPosition(mapID, characterID)
	if err != nil {
		return nil, err
	}

	hours, multiplier := e.travelTime(mapID, oldPos, target, targetTile)

	result := &MoveResult{
		MapID:                mapID,
		CharacterID:          characterID,
		CharacterName:        character.Name,
		NewPosition:          target,
		TravelTimeHours:      hours,
		TravelTimeMultiplier: multiplier,
	}
	if oldPos != nil {
		result.OldPosition = &hex.Coord{Q: oldPos.Q, R: oldPos.R}
	}

	tx, err := e.Store.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := store.SetPositionTx(tx, mapID, characterID, target); err != nil {
		return nil, fmt.Errorf("set position: %w", err)
	}

	// Fog advances for the character's owner, not the requester: a DM
	// dragging a player's token still reveals the map to that player.
	if err := advanceTx(tx, mapID, character.UserID, target); err != nil {
		return nil, fmt.Errorf("advance visibility: %w", err)
	}

	if gameTime, ok := e.advanceClock(tx, mapID, hours); ok {
		result.GameTime = &gameTime
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if auth.SessionID != nil {
		e.publish(*auth.SessionID, "hex_map_player_moved", result, requesterID)
	}
	return result, nil
}

// advanceTx raises the center hex to Full and its six neighbors to
// Partial. Idempotent beyond timestamp refresh: a hex already Full stays
// Full when it is later only a neighbor of the new position.
func advanceTx(tx *sqlx.Tx, mapID, userID int64, center hex.Coord) error {
	if err := store.RaiseVisibilityTx(tx, mapID, userID, center, store.VisibilityFull); err != nil {
		return err
	}
	for _, n := range center.Neighbors() {
		if err := store.RaiseVisibilityTx(tx, mapID, userID, n, store.VisibilityPartial); err != nil {
			return err
		}
	}
	return nil
}

// travelTime computes the in-game cost of the step. Only a move between
// adjacent hexes costs time; longer jumps are DM repositioning.
func (e *Engine) travelTime(mapID int64, oldPos *store.Position, target hex.Coord, targetTile *store.Tile) (hours, multiplier float64) {
	multiplier = 1.0
	if e.BaseTravelHours <= 0 || oldPos == nil {
		return 0, multiplier
	}
	from := hex.Coord{Q: oldPos.Q, R: oldPos.R}
	edge := from.EdgeIndex(target)
	if edge < 0 {
		return 0, multiplier
	}

	fromTile, err := e.Store.GetTile(mapID, from.Q, from.R)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Warn("travel time lookup failed", "map_id", mapID, "error", err)
		return 0, multiplier
	}

	switch {
	case fromTile != nil && edgeActive(fromTile.Roads, edge):
		multiplier = roadMultiplier
	case fromTile != nil && edgeActive(fromTile.Paths, edge):
		multiplier = pathMultiplier
	case targetTile != nil:
		multiplier = terrainMultiplier(targetTile.TerrainType)
	}
	return e.BaseTravelHours * multiplier, multiplier
}

// advanceClock moves the map's game clock forward by the travel time.
func (e *Engine) advanceClock(tx *sqlx.Tx, mapID int64, hours float64) (string, bool) {
	if e.BaseTravelHours <= 0 || hours <= 0 {
		return "", false
	}

	m, err := e.Store.GetMapUnchecked(mapID)
	if err != nil {
		slog.Warn("game clock read failed", "map_id", mapID, "error", err)
		return "", false
	}

	clock := time.Now().UTC()
	if m.GameTime != nil {
		if parsed, err := time.Parse(time.RFC3339, *m.GameTime); err == nil {
			clock = parsed
		}
	}
	clock = clock.Add(time.Duration(hours * float64(time.Hour)))

	gameTime := clock.Format(time.RFC3339)
	if err := store.SetGameTimeTx(tx, mapID, gameTime); err != nil {
		slog.Warn("game clock update failed", "map_id", mapID, "error", err)
		return "", false
	}
	return gameTime, true
}

// RevealResult reports a completed DM reveal.
type RevealResult struct {
	MapID         int64       `json:"map_id"`
	Hexes         []hex.Coord `json:"hexes"`
	TargetUserIDs []int64     `json:"target_user_ids"`
	RevealedCount int         `json:"revealed_count"`
}

// RevealHexes raises up to MaxRevealHexes hexes to Full for the target
// users, or for every accepted participant of the map's session when no
// targets are given. DM-only; does not require any target to have a
// position on the map.
func (e *Engine) RevealHexes(mapID int64, hexes []hex.Coord, targetUserIDs []int64, requesterID int64) (*RevealResult, error) {
	auth, err := e.Store.RequireManage(mapID, requesterID)
	if err != nil {
		return nil, err
	}

	if len(hexes) == 0 {
		return nil, fmt.Errorf("at least one hex is required: %w", store.ErrInvalid)
	}
	if len(hexes) > MaxRevealHexes {
		return nil, fmt.Errorf("maximum %d hexes per reveal operation: %w", MaxRevealHexes, store.ErrInvalid)
	}

	targets := targetUserIDs
	if len(targets) == 0 {
		if auth.SessionID == nil {
			return nil, fmt.Errorf("map has no linked session and no target users were given: %w", store.ErrInvalid)
		}
		targets, err = e.Access.AcceptedParticipants(*auth.SessionID)
		if err != nil {
			return nil, err
		}
		if len(targets) == 0 {
			return nil, fmt.Errorf("session has no accepted participants: %w", store.ErrInvalid)
		}
	}

	tx, err := e.Store.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, c := range hexes {
		for _, userID := range targets {
			if err := store.RaiseVisibilityTx(tx, mapID, userID, c, store.VisibilityFull); err != nil {
				return nil, fmt.Errorf("reveal (%d,%d) for user %d: %w", c.Q, c.R, userID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	result := &RevealResult{
		MapID:         mapID,
		Hexes:         hexes,
		TargetUserIDs: targets,
		RevealedCount: len(hexes),
	}

	if auth.SessionID != nil {
		e.publish(*auth.SessionID, "hex_map_hexes_revealed", result, requesterID)
	}
	return result, nil
}

// publish fans an event out after commit. Failures are logged, never
// surfaced: the committed state is the source of truth and a missed
// notification must not undo it.
func (e *Engine) publish(sessionID int64, eventType string, payload any, actorUserID int64) {
	if e.Notifier == nil {
		return
	}
	if err := e.Notifier.Publish(sessionID, eventType, payload, actorUserID); err != nil {
		slog.Error("event publish failed", "session_id", sessionID, "event_type", eventType, "error", err)
	}
}
