package store

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/talgya/hexcrawl/internal/access"
)

// testStore opens a throwaway database with the real access checker.
func testStore(t *testing.T) (*Store, *sqlx.DB) {
	t.Helper()
	db, err := Connect(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, access.NewSQL(db)), db
}

func seedSession(t *testing.T, db *sqlx.DB, dmUserID int64) int64 {
	t.Helper()
	res, err := db.Exec(
		"INSERT INTO game_sessions (session_name, dm_user_id) VALUES (?, ?)",
		"Test Campaign", dmUserID)
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func seedPlayer(t *testing.T, db *sqlx.DB, sessionID, userID int64, status string) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO session_players (session_id, user_id, status) VALUES (?, ?, ?)",
		sessionID, userID, status)
	if err != nil {
		t.Fatalf("seed player: %v", err)
	}
}

func seedCharacter(t *testing.T, db *sqlx.DB, userID, sessionID int64, name string) int64 {
	t.Helper()
	res, err := db.Exec(
		"INSERT INTO characters (user_id, session_id, character_name) VALUES (?, ?, ?)",
		userID, sessionID, name)
	if err != nil {
		t.Fatalf("seed character: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func strptr(s string) *string { return &s }
func intptr(n int) *int       { return &n }
func boolptr(b bool) *bool    { return &b }
