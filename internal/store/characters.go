package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Character is owned by the surrounding application; the engine only
// reads it to resolve ownership and display names, and never deletes
// one.
type Character struct {
	ID        int64  `db:"character_id" json:"character_id"`
	UserID    int64  `db:"user_id" json:"user_id"`
	SessionID *int64 `db:"session_id" json:"session_id,omitempty"`
	Name      string `db:"character_name" json:"character_name"`
}

// GetCharacter returns the character, or ErrNotFound.
func (s *Store) GetCharacter(characterID int64) (*Character, error) {
	var c Character
	err := s.db.Get(&c, "SELECT * FROM characters WHERE character_id = ?", characterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("character %d: %w", characterID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CharacterForUser returns the user's most recent character in a
// session, or nil if they have none. Used to resolve a player's view
// when no character id is supplied.
func (s *Store) CharacterForUser(userID, sessionID int64) (*Character, error) {
	var c Character
	err := s.db.Get(&c, `
		SELECT * FROM characters
		WHERE user_id = ? AND session_id = ?
		ORDER BY character_id DESC LIMIT 1`,
		userID, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
