package store

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/talgya/hexcrawl/internal/hex"
)

// Position is the single live row per (map, character): the hex the
// character currently occupies. Updated in place on every move.
type Position struct {
	MapID       int64  `db:"map_id" json:"map_id"`
	CharacterID int64  `db:"character_id" json:"character_id"`
	Q           int    `db:"q" json:"q"`
	R           int    `db:"r" json:"r"`
	UpdatedAt   string `db:"updated_at" json:"updated_at"`
}

// GetPosition returns the character's position on the map, or nil if
// the character has never been placed there.
func (s *Store) GetPosition(mapID, characterID int64) (*Position, error) {
	return getPosition(s.db, mapID, characterID)
}

// GetPositionTx is GetPosition inside an open transaction.
func GetPositionTx(tx *sqlx.Tx, mapID, characterID int64) (*Position, error) {
	return getPosition(tx, mapID, characterID)
}

func getPosition(q sqlx.Queryer, mapID, characterID int64) (*Position, error) {
	var p Position
	err := sqlx.Get(q, &p,
		"SELECT * FROM hex_player_positions WHERE map_id = ? AND character_id = ?",
		mapID, characterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetPositionTx creates or moves the character's position row inside an
// open transaction. Passability is the caller's concern; this only
// writes the row.
func SetPositionTx(tx *sqlx.Tx, mapID, characterID int64, target hex.Coord) error {
	_, err := tx.Exec(`
		INSERT INTO hex_player_positions (map_id, character_id, q, r, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (map_id, character_id) DO UPDATE SET
			q = excluded.q, r = excluded.r, updated_at = excluded.updated_at`,
		mapID, characterID, target.Q, target.R, now())
	return err
}

// CharacterAt pairs a position with its character's display name, for
// the DM view.
type CharacterAt struct {
	CharacterID   int64  `db:"character_id" json:"character_id"`
	CharacterName string `db:"character_name" json:"character_name"`
	Q             int    `db:"q" json:"-"`
	R             int    `db:"r" json:"-"`
}

// CharactersOn returns every character currently placed on the map.
func (s *Store) CharactersOn(mapID int64) ([]CharacterAt, error) {
	var chars []CharacterAt
	err := s.db.Select(&chars, `
		SELECT c.character_id, c.character_name, hpp.q, hpp.r
		FROM hex_player_positions hpp
		JOIN characters c ON hpp.character_id = c.character_id
		WHERE hpp.map_id = ?
		ORDER BY c.character_id`,
		mapID)
	return chars, err
}
