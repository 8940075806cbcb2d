package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Marker is a DM annotation at one coordinate. Its player visibility is
// an explicit flag, independent of the fog state at that hex.
type Marker struct {
	ID               int64   `db:"marker_id" json:"marker_id"`
	MapID            int64   `db:"map_id" json:"map_id"`
	Q                int     `db:"q" json:"q"`
	R                int     `db:"r" json:"r"`
	Type             string  `db:"marker_type" json:"marker_type"`
	Name             *string `db:"marker_name" json:"marker_name,omitempty"`
	Description      *string `db:"marker_description" json:"marker_description,omitempty"`
	Icon             string  `db:"marker_icon" json:"marker_icon"`
	Color            string  `db:"marker_color" json:"marker_color"`
	VisibleToPlayers bool    `db:"is_visible_to_players" json:"is_visible_to_players"`
	CreatedAt        string  `db:"created_at" json:"created_at"`
	UpdatedAt        string  `db:"updated_at" json:"updated_at"`
}

// MarkerUpsert describes a marker write. One marker per (map, q, r):
// writing to an occupied coordinate replaces that marker.
type MarkerUpsert struct {
	Q                int     `json:"q"`
	R                int     `json:"r"`
	Type             string  `json:"marker_type"`
	Name             *string `json:"marker_name"`
	Description      *string `json:"marker_description"`
	Icon             string  `json:"marker_icon"`
	Color            string  `json:"marker_color"`
	VisibleToPlayers bool    `json:"is_visible_to_players"`
}

// defaultMarkerStyles maps marker types to their fallback icon and
// color when the caller supplies none.
var defaultMarkerStyles = map[string][2]string{
	"town":     {"\U0001F3D8", "#c8a165"},
	"city":     {"\U0001F3F0", "#b08030"},
	"dungeon":  {"⚔", "#8b0000"},
	"camp":     {"⛺", "#4a7023"},
	"quest":    {"❗", "#d4af37"},
	"danger":   {"☠", "#cc0000"},
	"treasure": {"\U0001F4B0", "#ffd700"},
}

// UpsertMarker creates or replaces the marker at (q, r). Requires
// creator or session-DM standing.
func (s *Store) UpsertMarker(mapID int64, up MarkerUpsert, callerID int64) (*Marker, error) {
	if _, err := s.RequireManage(mapID, callerID); err != nil {
		return nil, err
	}
	if up.Type == "" {
		return nil, validationError("marker_type", "marker type is required")
	}
	if up.Icon == "" || up.Color == "" {
		style, ok := defaultMarkerStyles[up.Type]
		if !ok {
			style = [2]string{"\U0001F4CD", "#888888"}
		}
		if up.Icon == "" {
			up.Icon = style[0]
		}
		if up.Color == "" {
			up.Color = style[1]
		}
	}

	ts := now()
	_, err := s.db.Exec(`
		INSERT INTO hex_map_markers (
			map_id, q, r, marker_type, marker_name, marker_description,
			marker_icon, marker_color, is_visible_to_players, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (map_id, q, r) DO UPDATE SET
			marker_type = excluded.marker_type,
			marker_name = excluded.marker_name,
			marker_description = excluded.marker_description,
			marker_icon = excluded.marker_icon,
			marker_color = excluded.marker_color,
			is_visible_to_players = excluded.is_visible_to_players,
			updated_at = excluded.updated_at`,
		mapID, up.Q, up.R, up.Type, up.Name, up.Description,
		up.Icon, up.Color, up.VisibleToPlayers, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("upsert marker: %w", err)
	}

	var m Marker
	if err := s.db.Get(&m,
		"SELECT * FROM hex_map_markers WHERE map_id = ? AND q = ? AND r = ?",
		mapID, up.Q, up.R); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMarkers returns the map's markers. Callers without DM standing
// only see markers flagged visible to players, regardless of fog state.
func (s *Store) ListMarkers(mapID, callerID int64) ([]Marker, error) {
	auth, err := s.RequireView(mapID, callerID)
	if err != nil {
		return nil, err
	}
	isDM, err := s.IsMapDM(auth, callerID)
	if err != nil {
		return nil, err
	}

	query := "SELECT * FROM hex_map_markers WHERE map_id = ?"
	if !isDM {
		query += " AND is_visible_to_players = 1"
	}
	query += " ORDER BY r, q"

	var markers []Marker
	err = s.db.Select(&markers, query, mapID)
	return markers, err
}

// DeleteMarker removes a marker by id; ErrNotFound if absent.
func (s *Store) DeleteMarker(mapID, markerID, callerID int64) error {
	if _, err := s.RequireManage(mapID, callerID); err != nil {
		return err
	}
	var exists int
	err := s.db.Get(&exists,
		"SELECT COUNT(*) FROM hex_map_markers WHERE marker_id = ? AND map_id = ?",
		markerID, mapID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("marker %d on map %d: %w", markerID, mapID, ErrNotFound)
	}
	_, err = s.db.Exec("DELETE FROM hex_map_markers WHERE marker_id = ?", markerID)
	return err
}
