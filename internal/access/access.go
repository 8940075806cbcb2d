// Package access answers session-standing questions for the hex map
// engine. Identity and session membership are owned by the surrounding
// application; this package only reads its tables.
package access

import "github.com/jmoiron/sqlx"

// Checker is the access-control boundary consumed by the store and the
// fog engine. AcceptedParticipants exists so a reveal with no explicit
// target list can resolve its audience.
type Checker interface {
	IsDM(userID, sessionID int64) (bool, error)
	IsAcceptedParticipant(userID, sessionID int64) (bool, error)
	AcceptedParticipants(sessionID int64) ([]int64, error)
}

// SQL implements Checker against the game_sessions and session_players
// tables.
type SQL struct {
	db *sqlx.DB
}

func NewSQL(db *sqlx.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) IsDM(userID, sessionID int64) (bool, error) {
	var n int
	err := s.db.Get(&n,
		"SELECT COUNT(*) FROM game_sessions WHERE session_id = ? AND dm_user_id = ?",
		sessionID, userID,
	)
	return n > 0, err
}

func (s *SQL) IsAcceptedParticipant(userID, sessionID int64) (bool, error) {
	var n int
	err := s.db.Get(&n,
		"SELECT COUNT(*) FROM session_players WHERE session_id = ? AND user_id = ? AND status = 'accepted'",
		sessionID, userID,
	)
	return n > 0, err
}

func (s *SQL) AcceptedParticipants(sessionID int64) ([]int64, error) {
	var ids []int64
	err := s.db.Select(&ids,
		"SELECT user_id FROM session_players WHERE session_id = ? AND status = 'accepted' ORDER BY user_id",
		sessionID,
	)
	return ids, err
}
