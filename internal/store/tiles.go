package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// DefaultTerrain is applied when a new tile is created without an
// explicit terrain classification.
const DefaultTerrain = "plains"

// MaxBatchTiles caps a batch upsert so the transaction stays short.
const MaxBatchTiles = 1000

// Tile belongs to exactly one map, keyed by axial coordinate. The edge
// overlays (borders, roads, paths, rivers) are sparse JSON maps from
// edge index 0-5 to an opaque annotation.
type Tile struct {
	ID           int64           `json:"tile_id"`
	MapID        int64           `json:"map_id"`
	Q            int             `json:"q"`
	R            int             `json:"r"`
	TerrainType  string          `json:"terrain_type"`
	TerrainName  *string         `json:"terrain_name,omitempty"`
	Description  *string         `json:"description,omitempty"`
	Notes        *string         `json:"notes,omitempty"`
	ImageURL     *string         `json:"image_url,omitempty"`
	Elevation    int             `json:"elevation"`
	IsPassable   bool            `json:"is_passable"`
	MovementCost int             `json:"movement_cost"`
	Borders      json.RawMessage `json:"borders,omitempty"`
	Roads        json.RawMessage `json:"roads,omitempty"`
	Paths        json.RawMessage `json:"paths,omitempty"`
	Rivers       json.RawMessage `json:"rivers,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

// tileRow is the scan target for tile queries. The overlay columns are
// nullable TEXT: the sqlite driver hands NULL back as nil, which cannot
// be scanned into raw JSON directly, so they go through *string and are
// converted afterward.
type tileRow struct {
	ID           int64   `db:"tile_id"`
	MapID        int64   `db:"map_id"`
	Q            int     `db:"q"`
	R            int     `db:"r"`
	TerrainType  string  `db:"terrain_type"`
	TerrainName  *string `db:"terrain_name"`
	Description  *string `db:"description"`
	Notes        *string `db:"notes"`
	ImageURL     *string `db:"image_url"`
	Elevation    int     `db:"elevation"`
	IsPassable   bool    `db:"is_passable"`
	MovementCost int     `db:"movement_cost"`
	Borders      *string `db:"borders"`
	Roads        *string `db:"roads"`
	Paths        *string `db:"paths"`
	Rivers       *string `db:"rivers"`
	CreatedAt    string  `db:"created_at"`
	UpdatedAt    string  `db:"updated_at"`
}

func (r *tileRow) tile() *Tile {
	return &Tile{
		ID:           r.ID,
		MapID:        r.MapID,
		Q:            r.Q,
		R:            r.R,
		TerrainType:  r.TerrainType,
		TerrainName:  r.TerrainName,
		Description:  r.Description,
		Notes:        r.Notes,
		ImageURL:     r.ImageURL,
		Elevation:    r.Elevation,
		IsPassable:   r.IsPassable,
		MovementCost: r.MovementCost,
		Borders:      rawOverlay(r.Borders),
		Roads:        rawOverlay(r.Roads),
		Paths:        rawOverlay(r.Paths),
		Rivers:       rawOverlay(r.Rivers),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func rawOverlay(s *string) json.RawMessage {
	if s == nil {
		return nil
	}
	return json.RawMessage(*s)
}

// TileUpsert carries the fields of a tile write. Nil fields leave the
// existing value untouched on update and take the column default on
// create. An overlay of JSON null clears that overlay.
type TileUpsert struct {
	Q            int             `json:"q"`
	R            int             `json:"r"`
	TerrainType  *string         `json:"terrain_type"`
	TerrainName  *string         `json:"terrain_name"`
	Description  *string         `json:"description"`
	Notes        *string         `json:"notes"`
	ImageURL     *string         `json:"image_url"`
	Elevation    *int            `json:"elevation"`
	IsPassable   *bool           `json:"is_passable"`
	MovementCost *int            `json:"movement_cost"`
	Borders      json.RawMessage `json:"borders,omitempty"`
	Roads        json.RawMessage `json:"roads,omitempty"`
	Paths        json.RawMessage `json:"paths,omitempty"`
	Rivers       json.RawMessage `json:"rivers,omitempty"`
}

// BatchResult reports a transactional batch upsert.
type BatchResult struct {
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Tiles   []Tile `json:"tiles"`
}

// UpsertTile creates or updates the tile at (q, r). Requires creator or
// session-DM standing on the map.
func (s *Store) UpsertTile(mapID int64, up TileUpsert, callerID int64) (*Tile, bool, error) {
	if _, err := s.RequireManage(mapID, callerID); err != nil {
		return nil, false, err
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	tile, created, err := upsertTileTx(tx, mapID, up)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return tile, created, nil
}

// BatchUpsertTiles applies up to MaxBatchTiles upserts in one
// transaction: either every tile commits or none do.
func (s *Store) BatchUpsertTiles(mapID int64, ups []TileUpsert, callerID int64) (*BatchResult, error) {
	if _, err := s.RequireManage(mapID, callerID); err != nil {
		return nil, err
	}
	if len(ups) == 0 {
		return nil, validationError("tiles", "at least one tile is required")
	}
	if len(ups) > MaxBatchTiles {
		return nil, validationError("tiles", fmt.Sprintf("maximum %d tiles per batch operation", MaxBatchTiles))
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result := &BatchResult{Tiles: make([]Tile, 0, len(ups))}
	for i, up := range ups {
		tile, created, err := upsertTileTx(tx, mapID, up)
		if err != nil {
			return nil, fmt.Errorf("tile %d (%d,%d): %w", i, up.Q, up.R, err)
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
		result.Tiles = append(result.Tiles, *tile)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// upsertTileTx is the shared single-tile write. The terrain-preservation
// rule lives here: an omitted terrain type keeps the existing tile's
// terrain, so a caller can paint roads or borders without a terrain
// round-trip.
func upsertTileTx(tx *sqlx.Tx, mapID int64, up TileUpsert) (*Tile, bool, error) {
	for _, ov := range []struct {
		name string
		raw  json.RawMessage
	}{
		{"borders", up.Borders}, {"roads", up.Roads}, {"paths", up.Paths}, {"rivers", up.Rivers},
	} {
		if len(ov.raw) > 0 && !json.Valid(ov.raw) {
			return nil, false, validationError(ov.name, "must be valid JSON")
		}
	}

	var row tileRow
	err := tx.Get(&row,
		"SELECT * FROM hex_tiles WHERE map_id = ? AND q = ? AND r = ?",
		mapID, up.Q, up.R)
	switch {
	case err == nil:
		existing := *row.tile()
		merged := existing
		if up.TerrainType != nil {
			merged.TerrainType = *up.TerrainType
		}
		if up.TerrainName != nil {
			merged.TerrainName = up.TerrainName
		}
		if up.Description != nil {
			merged.Description = up.Description
		}
		if up.Notes != nil {
			merged.Notes = up.Notes
		}
		if up.ImageURL != nil {
			merged.ImageURL = up.ImageURL
		}
		if up.Elevation != nil {
			merged.Elevation = *up.Elevation
		}
		if up.IsPassable != nil {
			merged.IsPassable = *up.IsPassable
		}
		if up.MovementCost != nil {
			merged.MovementCost = *up.MovementCost
		}
		merged.Borders = mergeOverlay(existing.Borders, up.Borders)
		merged.Roads = mergeOverlay(existing.Roads, up.Roads)
		merged.Paths = mergeOverlay(existing.Paths, up.Paths)
		merged.Rivers = mergeOverlay(existing.Rivers, up.Rivers)
		if merged.MovementCost < 1 {
			merged.MovementCost = 1
		}

		_, err = tx.Exec(`
			UPDATE hex_tiles SET
				terrain_type = ?, terrain_name = ?, description = ?, notes = ?,
				image_url = ?, elevation = ?, is_passable = ?, movement_cost = ?,
				borders = ?, roads = ?, paths = ?, rivers = ?, updated_at = ?
			WHERE tile_id = ?`,
			merged.TerrainType, merged.TerrainName, merged.Description, merged.Notes,
			merged.ImageURL, merged.Elevation, merged.IsPassable, merged.MovementCost,
			overlayParam(merged.Borders), overlayParam(merged.Roads),
			overlayParam(merged.Paths), overlayParam(merged.Rivers),
			now(), existing.ID,
		)
		if err != nil {
			return nil, false, fmt.Errorf("update tile: %w", err)
		}
		tile, err := getTileTx(tx, existing.ID)
		return tile, false, err

	case errors.Is(err, sql.ErrNoRows):
		terrain := DefaultTerrain
		if up.TerrainType != nil {
			terrain = *up.TerrainType
		}
		elevation := 0
		if up.Elevation != nil {
			elevation = *up.Elevation
		}
		passable := true
		if up.IsPassable != nil {
			passable = *up.IsPassable
		}
		cost := 1
		if up.MovementCost != nil && *up.MovementCost > 1 {
			cost = *up.MovementCost
		}

		ts := now()
		res, err := tx.Exec(`
			INSERT INTO hex_tiles (
				map_id, q, r, terrain_type, terrain_name, description, notes,
				image_url, elevation, is_passable, movement_cost,
				borders, roads, paths, rivers, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			mapID, up.Q, up.R, terrain, up.TerrainName, up.Description, up.Notes,
			up.ImageURL, elevation, passable, cost,
			overlayParam(up.Borders), overlayParam(up.Roads),
			overlayParam(up.Paths), overlayParam(up.Rivers),
			ts, ts,
		)
		if err != nil {
			return nil, false, fmt.Errorf("insert tile: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, false, err
		}
		tile, err := getTileTx(tx, id)
		return tile, true, err

	default:
		return nil, false, err
	}
}

// mergeOverlay applies an overlay write on top of the stored value:
// absent leaves the stored overlay, JSON null clears it, anything else
// replaces it.
func mergeOverlay(stored, incoming json.RawMessage) json.RawMessage {
	if len(incoming) == 0 {
		return stored
	}
	if string(incoming) == "null" {
		return nil
	}
	return incoming
}

// overlayParam converts an overlay to a TEXT bind parameter, keeping
// NULL for cleared overlays.
func overlayParam(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}

func getTileTx(tx *sqlx.Tx, tileID int64) (*Tile, error) {
	var row tileRow
	if err := tx.Get(&row, "SELECT * FROM hex_tiles WHERE tile_id = ?", tileID); err != nil {
		return nil, err
	}
	return row.tile(), nil
}

// GetTile returns the tile at (q, r), or ErrNotFound.
func (s *Store) GetTile(mapID int64, q, r int) (*Tile, error) {
	var row tileRow
	err := s.db.Get(&row,
		"SELECT * FROM hex_tiles WHERE map_id = ? AND q = ? AND r = ?", mapID, q, r)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tile (%d,%d) on map %d: %w", q, r, mapID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.tile(), nil
}

// ListTiles returns every tile on the map ordered by (r, q).
func (s *Store) ListTiles(mapID int64) ([]Tile, error) {
	var rows []tileRow
	err := s.db.Select(&rows,
		"SELECT * FROM hex_tiles WHERE map_id = ? ORDER BY r, q", mapID)
	if err != nil {
		return nil, err
	}
	return tilesFromRows(rows), nil
}

// TilesWithin returns tiles within the given hex distance of a center.
// The SQL prefilter uses the axial distance identity
// (|dq| + |dr| + |dq+dr|) / 2 so the scan stays bounded on large maps.
func (s *Store) TilesWithin(mapID int64, q, r, radius int) ([]Tile, error) {
	var rows []tileRow
	err := s.db.Select(&rows, `
		SELECT * FROM hex_tiles
		WHERE map_id = ?
		AND ABS(q - ?) + ABS(r - ?) + ABS(q + r - ? - ?) <= ?
		ORDER BY r, q`,
		mapID, q, r, q, r, 2*radius)
	if err != nil {
		return nil, err
	}
	return tilesFromRows(rows), nil
}

func tilesFromRows(rows []tileRow) []Tile {
	tiles := make([]Tile, len(rows))
	for i := range rows {
		tiles[i] = *rows[i].tile()
	}
	return tiles
}

// DeleteTile removes the tile at (q, r); ErrNotFound if absent.
func (s *Store) DeleteTile(mapID int64, q, r int, callerID int64) error {
	if _, err := s.RequireManage(mapID, callerID); err != nil {
		return err
	}
	res, err := s.db.Exec(
		"DELETE FROM hex_tiles WHERE map_id = ? AND q = ? AND r = ?", mapID, q, r)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("tile (%d,%d) on map %d: %w", q, r, mapID, ErrNotFound)
	}
	return nil
}
