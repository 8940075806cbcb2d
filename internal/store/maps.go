package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Map is the root entity; tiles, positions, visibility, and markers are
// cascade-deleted with it.
type Map struct {
	ID                 int64    `db:"map_id" json:"map_id"`
	Name               string   `db:"map_name" json:"map_name"`
	Description        *string  `db:"map_description" json:"map_description,omitempty"`
	CreatedByUserID    int64    `db:"created_by_user_id" json:"created_by_user_id"`
	SessionID          *int64   `db:"session_id" json:"session_id,omitempty"`
	WidthHexes         int      `db:"width_hexes" json:"width_hexes"`
	HeightHexes        int      `db:"height_hexes" json:"height_hexes"`
	HexSizePixels      int      `db:"hex_size_pixels" json:"hex_size_pixels"`
	HexScaleKm         *float64 `db:"hex_scale_km" json:"hex_scale_km,omitempty"`
	BackgroundImageURL *string  `db:"background_image_url" json:"background_image_url,omitempty"`
	IsActive           bool     `db:"is_active" json:"is_active"`
	GameTime           *string  `db:"game_time" json:"game_time,omitempty"`
	CreatedAt          string   `db:"created_at" json:"created_at"`
	UpdatedAt          string   `db:"updated_at" json:"updated_at"`
}

// MapSpec describes a map to create. Zero dimensions fall back to the
// defaults (20x20 hexes at 50 pixels).
type MapSpec struct {
	Name               string
	Description        string
	SessionID          *int64
	WidthHexes         int
	HeightHexes        int
	HexSizePixels      int
	HexScaleKm         *float64
	BackgroundImageURL string
}

// MapUpdate applies only the supplied fields.
type MapUpdate struct {
	Name               *string
	Description        *string
	SessionID          *int64
	WidthHexes         *int
	HeightHexes        *int
	HexSizePixels      *int
	HexScaleKm         *float64
	BackgroundImageURL *string
	IsActive           *bool
}

// MapAuth carries the columns needed for standing checks.
type MapAuth struct {
	ID              int64  `db:"map_id"`
	CreatedByUserID int64  `db:"created_by_user_id"`
	SessionID       *int64 `db:"session_id"`
}

func (s *Store) loadMapAuth(mapID int64) (*MapAuth, error) {
	var m MapAuth
	err := s.db.Get(&m,
		"SELECT map_id, created_by_user_id, session_id FROM hex_maps WHERE map_id = ?", mapID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("hex map %d: %w", mapID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// canManage reports whether the user is the map creator or the DM of
// its linked session.
func (s *Store) canManage(m *MapAuth, userID int64) (bool, error) {
	if m.CreatedByUserID == userID {
		return true, nil
	}
	if m.SessionID != nil {
		return s.access.IsDM(userID, *m.SessionID)
	}
	return false, nil
}

// canView extends canManage with accepted session participants.
func (s *Store) canView(m *MapAuth, userID int64) (bool, error) {
	ok, err := s.canManage(m, userID)
	if ok || err != nil {
		return ok, err
	}
	if m.SessionID != nil {
		return s.access.IsAcceptedParticipant(userID, *m.SessionID)
	}
	return false, nil
}

// RequireManage resolves the map and returns ErrForbidden unless the
// caller may mutate it.
func (s *Store) RequireManage(mapID, userID int64) (*MapAuth, error) {
	m, err := s.loadMapAuth(mapID)
	if err != nil {
		return nil, err
	}
	ok, err := s.canManage(m, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("user %d may not edit map %d: %w", userID, mapID, ErrForbidden)
	}
	return m, nil
}

// RequireView resolves the map and returns ErrForbidden unless the
// caller has any standing on it.
func (s *Store) RequireView(mapID, userID int64) (*MapAuth, error) {
	m, err := s.loadMapAuth(mapID)
	if err != nil {
		return nil, err
	}
	ok, err := s.canView(m, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("user %d has no access to map %d: %w", userID, mapID, ErrForbidden)
	}
	return m, nil
}

// IsMapDM reports whether the user sees the map with DM omniscience:
// map creator or DM of the linked session.
func (s *Store) IsMapDM(m *MapAuth, userID int64) (bool, error) {
	return s.canManage(m, userID)
}

func validateMapBounds(width, height, hexSize int) map[string]string {
	errs := make(map[string]string)
	if width < 1 || width > 200 {
		errs["width_hexes"] = "width must be between 1 and 200 hexes"
	}
	if height < 1 || height > 200 {
		errs["height_hexes"] = "height must be between 1 and 200 hexes"
	}
	if hexSize < 10 || hexSize > 200 {
		errs["hex_size_pixels"] = "hex size must be between 10 and 200 pixels"
	}
	return errs
}

// CreateMap validates the spec and inserts a new map owned by the
// creator. Linking a session requires the creator to be that session's
// DM.
func (s *Store) CreateMap(spec MapSpec, creatorID int64) (*Map, error) {
	if spec.WidthHexes == 0 {
		spec.WidthHexes = 20
	}
	if spec.HeightHexes == 0 {
		spec.HeightHexes = 20
	}
	if spec.HexSizePixels == 0 {
		spec.HexSizePixels = 50
	}

	errs := validateMapBounds(spec.WidthHexes, spec.HeightHexes, spec.HexSizePixels)
	if len(spec.Name) < 3 || len(spec.Name) > 100 {
		errs["map_name"] = "map name must be between 3 and 100 characters"
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	if spec.SessionID != nil {
		isDM, err := s.access.IsDM(creatorID, *spec.SessionID)
		if err != nil {
			return nil, err
		}
		if !isDM {
			return nil, fmt.Errorf("user %d is not the DM of session %d: %w", creatorID, *spec.SessionID, ErrForbidden)
		}
	}

	ts := now()
	res, err := s.db.Exec(`
		INSERT INTO hex_maps (
			map_name, map_description, created_by_user_id, session_id,
			width_hexes, height_hexes, hex_size_pixels, hex_scale_km,
			background_image_url, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		spec.Name, nullableString(spec.Description), creatorID, spec.SessionID,
		spec.WidthHexes, spec.HeightHexes, spec.HexSizePixels, spec.HexScaleKm,
		nullableString(spec.BackgroundImageURL), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert map: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.getMap(id)
}

// GetMap returns the map if the caller is its creator, the session DM,
// or an accepted participant.
func (s *Store) GetMap(mapID, callerID int64) (*Map, error) {
	if _, err := s.RequireView(mapID, callerID); err != nil {
		return nil, err
	}
	return s.getMap(mapID)
}

// GetMapUnchecked loads a map without a standing check, for engine
// internals that have already authorized the caller.
func (s *Store) GetMapUnchecked(mapID int64) (*Map, error) {
	return s.getMap(mapID)
}

func (s *Store) getMap(mapID int64) (*Map, error) {
	var m Map
	err := s.db.Get(&m, "SELECT * FROM hex_maps WHERE map_id = ?", mapID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("hex map %d: %w", mapID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMaps returns every map the caller has standing on.
func (s *Store) ListMaps(callerID int64) ([]Map, error) {
	var maps []Map
	err := s.db.Select(&maps, `
		SELECT DISTINCT hm.* FROM hex_maps hm
		LEFT JOIN game_sessions gs ON hm.session_id = gs.session_id
		LEFT JOIN session_players sp ON hm.session_id = sp.session_id
			AND sp.user_id = ? AND sp.status = 'accepted'
		WHERE hm.created_by_user_id = ?
			OR gs.dm_user_id = ?
			OR sp.user_id IS NOT NULL
		ORDER BY hm.map_id`,
		callerID, callerID, callerID,
	)
	return maps, err
}

// UpdateMap applies only the supplied fields. Requires creator or
// session-DM standing; linking a new session requires DM standing on
// that session.
func (s *Store) UpdateMap(mapID int64, upd MapUpdate, callerID int64) (*Map, error) {
	if _, err := s.RequireManage(mapID, callerID); err != nil {
		return nil, err
	}

	cur, err := s.getMap(mapID)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		cur.Name = *upd.Name
	}
	if upd.Description != nil {
		cur.Description = upd.Description
	}
	if upd.SessionID != nil {
		isDM, err := s.access.IsDM(callerID, *upd.SessionID)
		if err != nil {
			return nil, err
		}
		if !isDM {
			return nil, fmt.Errorf("user %d is not the DM of session %d: %w", callerID, *upd.SessionID, ErrForbidden)
		}
		cur.SessionID = upd.SessionID
	}
	if upd.WidthHexes != nil {
		cur.WidthHexes = *upd.WidthHexes
	}
	if upd.HeightHexes != nil {
		cur.HeightHexes = *upd.HeightHexes
	}
	if upd.HexSizePixels != nil {
		cur.HexSizePixels = *upd.HexSizePixels
	}
	if upd.HexScaleKm != nil {
		cur.HexScaleKm = upd.HexScaleKm
	}
	if upd.BackgroundImageURL != nil {
		cur.BackgroundImageURL = upd.BackgroundImageURL
	}
	if upd.IsActive != nil {
		cur.IsActive = *upd.IsActive
	}

	errs := validateMapBounds(cur.WidthHexes, cur.HeightHexes, cur.HexSizePixels)
	if len(cur.Name) < 3 || len(cur.Name) > 100 {
		errs["map_name"] = "map name must be between 3 and 100 characters"
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	_, err = s.db.Exec(`
		UPDATE hex_maps SET
			map_name = ?, map_description = ?, session_id = ?,
			width_hexes = ?, height_hexes = ?, hex_size_pixels = ?,
			hex_scale_km = ?, background_image_url = ?, is_active = ?,
			updated_at = ?
		WHERE map_id = ?`,
		cur.Name, cur.Description, cur.SessionID,
		cur.WidthHexes, cur.HeightHexes, cur.HexSizePixels,
		cur.HexScaleKm, cur.BackgroundImageURL, cur.IsActive,
		now(), mapID,
	)
	if err != nil {
		return nil, fmt.Errorf("update map: %w", err)
	}
	return s.getMap(mapID)
}

// DeleteMap removes the map and, via foreign keys, all of its tiles,
// positions, visibility records, and markers.
func (s *Store) DeleteMap(mapID, callerID int64) error {
	if _, err := s.RequireManage(mapID, callerID); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM hex_maps WHERE map_id = ?", mapID)
	return err
}

// SetGameTime stores the map's in-game clock (RFC3339).
func (s *Store) SetGameTime(mapID int64, gameTime string) error {
	_, err := s.db.Exec("UPDATE hex_maps SET game_time = ?, updated_at = ? WHERE map_id = ?",
		gameTime, now(), mapID)
	return err
}

// SetGameTimeTx is SetGameTime inside an open transaction, so a move
// and its clock advance commit together.
func SetGameTimeTx(tx *sqlx.Tx, mapID int64, gameTime string) error {
	_, err := tx.Exec("UPDATE hex_maps SET game_time = ?, updated_at = ? WHERE map_id = ?",
		gameTime, now(), mapID)
	return err
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
