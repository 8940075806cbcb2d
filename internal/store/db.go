// Package store provides SQLite-based persistence for hex maps, tiles,
// character positions, per-user visibility, and markers.
package store

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/hexcrawl/internal/access"
)

// Connect opens or creates a SQLite database at the given path and
// applies the schema. Foreign keys are enabled on every connection so
// deleting a map cascades to its tiles, positions, visibility, and
// markers.
func Connect(path string) (*sqlx.DB, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

func migrate(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS game_sessions (
		session_id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_name TEXT NOT NULL,
		dm_user_id INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_players (
		session_id INTEGER NOT NULL REFERENCES game_sessions(session_id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'invited',
		PRIMARY KEY (session_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS characters (
		character_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		session_id INTEGER REFERENCES game_sessions(session_id) ON DELETE SET NULL,
		character_name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS hex_maps (
		map_id INTEGER PRIMARY KEY AUTOINCREMENT,
		map_name TEXT NOT NULL,
		map_description TEXT,
		created_by_user_id INTEGER NOT NULL,
		session_id INTEGER REFERENCES game_sessions(session_id) ON DELETE SET NULL,
		width_hexes INTEGER NOT NULL,
		height_hexes INTEGER NOT NULL,
		hex_size_pixels INTEGER NOT NULL,
		hex_scale_km REAL,
		background_image_url TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		game_time TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS hex_tiles (
		tile_id INTEGER PRIMARY KEY AUTOINCREMENT,
		map_id INTEGER NOT NULL REFERENCES hex_maps(map_id) ON DELETE CASCADE,
		q INTEGER NOT NULL,
		r INTEGER NOT NULL,
		terrain_type TEXT NOT NULL DEFAULT 'plains',
		terrain_name TEXT,
		description TEXT,
		notes TEXT,
		image_url TEXT,
		elevation INTEGER NOT NULL DEFAULT 0,
		is_passable INTEGER NOT NULL DEFAULT 1,
		movement_cost INTEGER NOT NULL DEFAULT 1,
		borders TEXT,
		roads TEXT,
		paths TEXT,
		rivers TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (map_id, q, r)
	);

	CREATE TABLE IF NOT EXISTS hex_player_positions (
		map_id INTEGER NOT NULL REFERENCES hex_maps(map_id) ON DELETE CASCADE,
		character_id INTEGER NOT NULL REFERENCES characters(character_id) ON DELETE CASCADE,
		q INTEGER NOT NULL,
		r INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (map_id, character_id)
	);

	CREATE TABLE IF NOT EXISTS hex_visibility (
		map_id INTEGER NOT NULL REFERENCES hex_maps(map_id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL,
		q INTEGER NOT NULL,
		r INTEGER NOT NULL,
		visibility_level INTEGER NOT NULL DEFAULT 0,
		discovered_at TEXT,
		last_viewed_at TEXT,
		PRIMARY KEY (map_id, user_id, q, r)
	);

	CREATE TABLE IF NOT EXISTS hex_map_markers (
		marker_id INTEGER PRIMARY KEY AUTOINCREMENT,
		map_id INTEGER NOT NULL REFERENCES hex_maps(map_id) ON DELETE CASCADE,
		q INTEGER NOT NULL,
		r INTEGER NOT NULL,
		marker_type TEXT NOT NULL,
		marker_name TEXT,
		marker_description TEXT,
		marker_icon TEXT NOT NULL,
		marker_color TEXT NOT NULL,
		is_visible_to_players INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (map_id, q, r)
	);

	CREATE TABLE IF NOT EXISTS session_events (
		event_id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_uuid TEXT NOT NULL,
		session_id INTEGER NOT NULL REFERENCES game_sessions(session_id) ON DELETE CASCADE,
		event_type TEXT NOT NULL,
		event_data TEXT NOT NULL,
		created_by_user_id INTEGER,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tiles_map ON hex_tiles(map_id);
	CREATE INDEX IF NOT EXISTS idx_visibility_map_user ON hex_visibility(map_id, user_id);
	CREATE INDEX IF NOT EXISTS idx_positions_map ON hex_player_positions(map_id);
	CREATE INDEX IF NOT EXISTS idx_markers_map ON hex_map_markers(map_id);
	CREATE INDEX IF NOT EXISTS idx_events_session ON session_events(session_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Store wraps the database connection and the access-control boundary.
// Every mutating and reading operation checks standing through the
// access checker; the store never implements session membership itself.
type Store struct {
	db     *sqlx.DB
	access access.Checker
}

// New creates a Store over an open connection.
func New(db *sqlx.DB, checker access.Checker) *Store {
	return &Store{db: db, access: checker}
}

// Beginx starts a transaction. Exposed so the fog engine can combine
// position and visibility writes into one atomic unit.
func (s *Store) Beginx() (*sqlx.Tx, error) {
	return s.db.Beginx()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
