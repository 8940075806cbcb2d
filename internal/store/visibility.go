package store

import (
	"github.com/jmoiron/sqlx"

	"github.com/talgya/hexcrawl/internal/hex"
)

// Visibility levels. Absence of a record means Hidden; explicit Hidden
// rows are never stored.
const (
	VisibilityHidden  = 0
	VisibilityPartial = 1
	VisibilityFull    = 2
)

// VisibilityRecord is the per-(map, user, hex) fog state. The level is
// monotonically non-decreasing under normal play: every write goes
// through RaiseVisibilityTx's max-merge, never a blind overwrite.
type VisibilityRecord struct {
	MapID        int64   `db:"map_id" json:"map_id"`
	UserID       int64   `db:"user_id" json:"user_id"`
	Q            int     `db:"q" json:"q"`
	R            int     `db:"r" json:"r"`
	Level        int     `db:"visibility_level" json:"visibility_level"`
	DiscoveredAt *string `db:"discovered_at" json:"discovered_at,omitempty"`
	LastViewedAt *string `db:"last_viewed_at" json:"last_viewed_at,omitempty"`
}

// RaiseVisibilityTx sets the record to max(existing, level), stamping
// discovered_at on the first transition away from Hidden and refreshing
// last_viewed_at on every touch. Two raises for the same key commute,
// so concurrent Advance and Reveal calls are order-independent.
func RaiseVisibilityTx(tx *sqlx.Tx, mapID, userID int64, c hex.Coord, level int) error {
	ts := now()
	_, err := tx.Exec(`
		INSERT INTO hex_visibility (map_id, user_id, q, r, visibility_level, discovered_at, last_viewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (map_id, user_id, q, r) DO UPDATE SET
			visibility_level = MAX(visibility_level, excluded.visibility_level),
			discovered_at = COALESCE(discovered_at, excluded.discovered_at),
			last_viewed_at = excluded.last_viewed_at`,
		mapID, userID, c.Q, c.R, level, ts, ts)
	return err
}

// VisibilityFor returns the user's fog state for a map as a coordinate
// lookup. Missing coordinates are Hidden.
func (s *Store) VisibilityFor(mapID, userID int64) (map[hex.Coord]int, error) {
	var records []VisibilityRecord
	err := s.db.Select(&records,
		"SELECT * FROM hex_visibility WHERE map_id = ? AND user_id = ?",
		mapID, userID)
	if err != nil {
		return nil, err
	}
	levels := make(map[hex.Coord]int, len(records))
	for _, rec := range records {
		levels[hex.Coord{Q: rec.Q, R: rec.R}] = rec.Level
	}
	return levels, nil
}
