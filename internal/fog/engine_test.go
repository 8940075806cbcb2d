package fog

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/talgya/hexcrawl/internal/access"
	"github.com/talgya/hexcrawl/internal/hex"
	"github.com/talgya/hexcrawl/internal/store"
)

type recordedEvent struct {
	SessionID   int64
	EventType   string
	Payload     any
	ActorUserID int64
}

type fakeNotifier struct {
	events []recordedEvent
}

func (f *fakeNotifier) Publish(sessionID int64, eventType string, payload any, actorUserID int64) error {
	f.events = append(f.events, recordedEvent{sessionID, eventType, payload, actorUserID})
	return nil
}

// testEngine seeds a session with DM user 1 and accepted players 2 and
// 3, and a character for user 2.
func testEngine(t *testing.T) (*Engine, *fakeNotifier, *sqlx.DB, int64) {
	t.Helper()
	db, err := store.Connect(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	res, err := db.Exec("INSERT INTO game_sessions (session_name, dm_user_id) VALUES ('Test Campaign', 1)")
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	sessionID, _ := res.LastInsertId()
	for _, userID := range []int64{2, 3} {
		if _, err := db.Exec(
			"INSERT INTO session_players (session_id, user_id, status) VALUES (?, ?, 'accepted')",
			sessionID, userID); err != nil {
			t.Fatalf("seed player: %v", err)
		}
	}

	checker := access.NewSQL(db)
	notifier := &fakeNotifier{}
	engine := &Engine{
		Store:           store.New(db, checker),
		Access:          checker,
		Notifier:        notifier,
		BaseTravelHours: 1.0,
	}
	return engine, notifier, db, sessionID
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

func sessionMap(t *testing.T, e *Engine, sessionID int64) int64 {
	t.Helper()
	m, err := e.Store.CreateMap(store.MapSpec{Name: "Campaign Map", SessionID: &sessionID}, 1)
	if err != nil {
		t.Fatalf("CreateMap: %v", err)
	}
	return m.ID
}

func TestMoveRevealsWindow(t *testing.T) {
	e, notifier, db, sessionID := testEngine(t)
	mapID := sessionMap(t, e, sessionID)
	charID := seedCharacter(t, db, 2, sessionID, "Mira")

	result, err := e.MoveCharacter(mapID, charID, hex.Coord{Q: 5, R: 5}, 2)
	if err != nil {
		t.Fatalf("MoveCharacter: %v", err)
	}
	if result.OldPosition != nil {
		t.Errorf("old position = %v, want nil on first placement", result.OldPosition)
	}
	if result.TravelTimeHours != 0 {
		t.Errorf("travel hours = %v, want 0 on first placement", result.TravelTimeHours)
	}

	// Even on a map with no tiles the player sees their discovered
	// window: the standing hex at Full and its six neighbors at Partial.
	view, err := e.GetVisibleHexes(mapID, 2, charID)
	if err != nil {
		t.Fatalf("GetVisibleHexes: %v", err)
	}
	if len(view.Hexes) != 7 {
		t.Fatalf("hexes = %d, want 7", len(view.Hexes))
	}
	for _, hv := range view.Hexes {
		c := hex.Coord{Q: hv.Q, R: hv.R}
		switch hex.Distance(hex.Coord{Q: 5, R: 5}, c) {
		case 0:
			if hv.VisibilityLevel != store.VisibilityFull {
				t.Errorf("center level = %d, want Full", hv.VisibilityLevel)
			}
		case 1:
			if hv.VisibilityLevel != store.VisibilityPartial {
				t.Errorf("neighbor %v level = %d, want Partial", c, hv.VisibilityLevel)
			}
		default:
			t.Errorf("unexpected hex %v in view", c)
		}
	}
	if view.PlayerPosition == nil || (*view.PlayerPosition != hex.Coord{Q: 5, R: 5}) {
		t.Errorf("player position = %v, want (5,5)", view.PlayerPosition)
	}

	if len(notifier.events) != 1 || notifier.events[0].EventType != "hex_map_player_moved" {
		t.Errorf("events = %v, want one hex_map_player_moved", notifier.events)
	}
}

func TestMoveKeepsEarlierDiscoveries(t *testing.T) {
	e, _, db, sessionID := testEngine(t)
	mapID := sessionMap(t, e, sessionID)
	charID := seedCharacter(t, db, 2, sessionID, "Mira")

	for _, target := range []hex.Coord{{Q: 0, R: 0}, {Q: 1, R: 0}, {Q: 2, R: 0}, {Q: 3, R: 0}} {
		if _, err := e.MoveCharacter(mapID, charID, target, 2); err != nil {
			t.Fatalf("move to %v: %v", target, err)
		}
	}

	// (0,0) has dropped out of the distance-2 window but its record
	// keeps the Full level it earned.
	levels, err := e.Store.VisibilityFor(mapID, 2)
	if err != nil {
		t.Fatalf("VisibilityFor: %v", err)
	}
	if levels[hex.Coord{Q: 0, R: 0}] != store.VisibilityFull {
		t.Errorf("(0,0) level = %d, want Full retained", levels[hex.Coord{Q: 0, R: 0}])
	}

	view, err := e.GetVisibleHexes(mapID, 2, charID)
	if err != nil {
		t.Fatalf("GetVisibleHexes: %v", err)
	}
	for _, hv := range view.Hexes {
		if hv.Q == 0 && hv.R == 0 {
			t.Error("(0,0) is outside the view window and must not be listed")
		}
	}
}

func TestMoveImpassable(t *testing.T) {
	e, _, db, sessionID := testEngine(t)
	mapID := sessionMap(t, e, sessionID)
	charID := seedCharacter(t, db, 2, sessionID, "Mira")

	if _, _, err := e.Store.UpsertTile(mapID, store.TileUpsert{
		Q: 4, R: 4, TerrainType: strptr("mountains"), IsPassable: boolptr(false),
	}, 1); err != nil {
		t.Fatalf("seed tile: %v", err)
	}

	if _, err := e.MoveCharacter(mapID, charID, hex.Coord{Q: 4, R: 4}, 2); !errors.Is(err, store.ErrInvalid) {
		t.Errorf("move onto impassable err = %v, want ErrInvalid", err)
	}
}

func TestMoveStanding(t *testing.T) {
	e, _, db, sessionID := testEngine(t)
	mapID := sessionMap(t, e, sessionID)
	charID := seedCharacter(t, db, 2, sessionID, "Mira")

	// Another player cannot move someone else's character.
	if _, err := e.MoveCharacter(mapID, charID, hex.Coord{Q: 1, R: 1}, 3); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("other player move err = %v, want ErrForbidden", err)
	}

	// The DM can, and the fog advances for the character's owner.
	if _, err := e.MoveCharacter(mapID, charID, hex.Coord{Q: 1, R: 1}, 1); err != nil {
		t.Fatalf("DM move: %v", err)
	}
	ownerLevels, err := e.Store.VisibilityFor(mapID, 2)
	if err != nil {
		t.Fatalf("VisibilityFor owner: %v", err)
	}
	if ownerLevels[hex.Coord{Q: 1, R: 1}] != store.VisibilityFull {
		t.Errorf("owner (1,1) level = %d, want Full", ownerLevels[hex.Coord{Q: 1, R: 1}])
	}
	dmLevels, err := e.Store.VisibilityFor(mapID, 1)
	if err != nil {
		t.Fatalf("VisibilityFor DM: %v", err)
	}
	if len(dmLevels) != 0 {
		t.Errorf("DM gained %v visibility records from dragging a token", dmLevels)
	}
}

func TestTravelTime(t *testing.T) {
	e, _, db, sessionID := testEngine(t)
	mapID := sessionMap(t, e, sessionID)
	charID := seedCharacter(t, db, 2, sessionID, "Mira")

	// Road on edge 0 of (0,0), which points at (1,0); forest at (2,0).
	seedTiles := []store.TileUpsert{
		{Q: 0, R: 0, Roads: json.RawMessage(`{"0": true}`)},
		{Q: 1, R: 0},
		{Q: 2, R: 0, TerrainType: strptr("forest")},
	}
	if _, err := e.Store.BatchUpsertTiles(mapID, seedTiles, 1); err != nil {
		t.Fatalf("seed tiles: %v", err)
	}

	if _, err := e.MoveCharacter(mapID, charID, hex.Coord{Q: 0, R: 0}, 2); err != nil {
		t.Fatalf("placement: %v", err)
	}

	road, err := e.MoveCharacter(mapID, charID, hex.Coord{Q: 1, R: 0}, 2)
	if err != nil {
		t.Fatalf("road step: %v", err)
	}
	if road.TravelTimeMultiplier != 0.5 || road.TravelTimeHours != 0.5 {
		t.Errorf("road step = %v×, %vh; want 0.5×, 0.5h", road.TravelTimeMultiplier, road.TravelTimeHours)
	}
	if road.GameTime == nil {
		t.Error("game clock did not advance on a timed step")
	}

	forest, err := e.MoveCharacter(mapID, charID, hex.Coord{Q: 2, R: 0}, 2)
	if err != nil {
		t.Fatalf("forest step: %v", err)
	}
	if forest.TravelTimeMultiplier != 1.5 {
		t.Errorf("forest multiplier = %v, want 1.5", forest.TravelTimeMultiplier)
	}

	// A non-adjacent jump is repositioning, not travel.
	jump, err := e.MoveCharacter(mapID, charID, hex.Coord{Q: 8, R: 8}, 2)
	if err != nil {
		t.Fatalf("jump: %v", err)
	}
	if jump.TravelTimeHours != 0 {
		t.Errorf("jump hours = %v, want 0", jump.TravelTimeHours)
	}
}

func TestRevealHexes(t *testing.T) {
	e, notifier, _, sessionID := testEngine(t)
	mapID := sessionMap(t, e, sessionID)

	result, err := e.RevealHexes(mapID, []hex.Coord{{Q: 8, R: 8}, {Q: 9, R: 8}}, nil, 1)
	if err != nil {
		t.Fatalf("RevealHexes: %v", err)
	}
	if result.RevealedCount != 2 {
		t.Errorf("revealed = %d, want 2", result.RevealedCount)
	}
	if len(result.TargetUserIDs) != 2 {
		t.Errorf("targets = %v, want both accepted participants", result.TargetUserIDs)
	}

	// Every accepted participant got Full, position or not.
	for _, userID := range []int64{2, 3} {
		levels, err := e.Store.VisibilityFor(mapID, userID)
		if err != nil {
			t.Fatalf("VisibilityFor %d: %v", userID, err)
		}
		if levels[hex.Coord{Q: 8, R: 8}] != store.VisibilityFull {
			t.Errorf("user %d (8,8) level = %d, want Full", userID, levels[hex.Coord{Q: 8, R: 8}])
		}
	}

	if len(notifier.events) != 1 || notifier.events[0].EventType != "hex_map_hexes_revealed" {
		t.Errorf("events = %v, want one hex_map_hexes_revealed", notifier.events)
	}
}

func TestRevealValidation(t *testing.T) {
	e, _, _, sessionID := testEngine(t)
	mapID := sessionMap(t, e, sessionID)

	if _, err := e.RevealHexes(mapID, []hex.Coord{{Q: 0, R: 0}}, nil, 2); !errors.Is(err, store.ErrForbidden) {
		t.Errorf("player reveal err = %v, want ErrForbidden", err)
	}
	if _, err := e.RevealHexes(mapID, nil, nil, 1); !errors.Is(err, store.ErrInvalid) {
		t.Errorf("empty reveal err = %v, want ErrInvalid", err)
	}

	oversize := make([]hex.Coord, MaxRevealHexes+1)
	for i := range oversize {
		oversize[i] = hex.Coord{Q: i, R: 0}
	}
	if _, err := e.RevealHexes(mapID, oversize, nil, 1); !errors.Is(err, store.ErrInvalid) {
		t.Errorf("oversize reveal err = %v, want ErrInvalid", err)
	}

	// A map without a session needs explicit targets.
	solo, err := e.Store.CreateMap(store.MapSpec{Name: "Unlinked Map"}, 1)
	if err != nil {
		t.Fatalf("CreateMap: %v", err)
	}
	if _, err := e.RevealHexes(solo.ID, []hex.Coord{{Q: 0, R: 0}}, nil, 1); !errors.Is(err, store.ErrInvalid) {
		t.Errorf("unlinked reveal err = %v, want ErrInvalid", err)
	}
	if _, err := e.RevealHexes(solo.ID, []hex.Coord{{Q: 0, R: 0}}, []int64{2}, 1); err != nil {
		t.Errorf("unlinked reveal with targets: %v", err)
	}
}

func TestDisclosureLadder(t *testing.T) {
	e, _, db, sessionID := testEngine(t)
	mapID := sessionMap(t, e, sessionID)
	charID := seedCharacter(t, db, 2, sessionID, "Mira")

	seedTiles := []store.TileUpsert{
		{Q: 0, R: 0, TerrainType: strptr("plains"), Description: strptr("A quiet crossroads.")},
		{Q: 1, R: 0, TerrainType: strptr("forest"), Description: strptr("A haunted grove."),
			Borders: json.RawMessage(`{"2": "cliff"}`)},
	}
	if _, err := e.Store.BatchUpsertTiles(mapID, seedTiles, 1); err != nil {
		t.Fatalf("seed tiles: %v", err)
	}
	if _, err := e.MoveCharacter(mapID, charID, hex.Coord{Q: 0, R: 0}, 2); err != nil {
		t.Fatalf("placement: %v", err)
	}

	view, err := e.GetVisibleHexes(mapID, 2, charID)
	if err != nil {
		t.Fatalf("GetVisibleHexes: %v", err)
	}

	byCoord := map[hex.Coord]HexView{}
	for _, hv := range view.Hexes {
		byCoord[hex.Coord{Q: hv.Q, R: hv.R}] = hv
	}

	center := byCoord[hex.Coord{Q: 0, R: 0}]
	if center.VisibilityLevel != store.VisibilityFull {
		t.Fatalf("center level = %d, want Full", center.VisibilityLevel)
	}
	if center.Description == nil || *center.Description != "A quiet crossroads." {
		t.Errorf("center description = %v, want disclosed at Full", center.Description)
	}

	neighbor := byCoord[hex.Coord{Q: 1, R: 0}]
	if neighbor.VisibilityLevel != store.VisibilityPartial {
		t.Fatalf("neighbor level = %d, want Partial", neighbor.VisibilityLevel)
	}
	if neighbor.TerrainType == nil || *neighbor.TerrainType != "forest" {
		t.Errorf("neighbor terrain = %v, want disclosed at Partial", neighbor.TerrainType)
	}
	if neighbor.Description != nil {
		t.Errorf("neighbor description = %q, must stay hidden at Partial", *neighbor.Description)
	}
	if neighbor.Borders != nil {
		t.Errorf("neighbor borders = %s, must stay hidden at Partial", neighbor.Borders)
	}
}

func TestDMViewOmniscient(t *testing.T) {
	e, _, db, sessionID := testEngine(t)
	mapID := sessionMap(t, e, sessionID)
	charID := seedCharacter(t, db, 2, sessionID, "Mira")

	seedTiles := []store.TileUpsert{
		{Q: 0, R: 0, Description: strptr("Start.")},
		{Q: 15, R: 15, Description: strptr("Far corner.")},
	}
	if _, err := e.Store.BatchUpsertTiles(mapID, seedTiles, 1); err != nil {
		t.Fatalf("seed tiles: %v", err)
	}
	if _, err := e.MoveCharacter(mapID, charID, hex.Coord{Q: 0, R: 0}, 2); err != nil {
		t.Fatalf("placement: %v", err)
	}

	view, err := e.GetVisibleHexes(mapID, 1, 0)
	if err != nil {
		t.Fatalf("GetVisibleHexes: %v", err)
	}
	if !view.IsDM {
		t.Error("DM view not flagged")
	}
	if len(view.Hexes) != 2 {
		t.Fatalf("DM hexes = %d, want every tile", len(view.Hexes))
	}
	var sawOccupant bool
	for _, hv := range view.Hexes {
		if hv.VisibilityLevel != store.VisibilityFull {
			t.Errorf("(%d,%d) level = %d, want Full for DM", hv.Q, hv.R, hv.VisibilityLevel)
		}
		if hv.Description == nil {
			t.Errorf("(%d,%d) description hidden from DM", hv.Q, hv.R)
		}
		for _, c := range hv.Characters {
			if c.ID == charID && hv.Q == 0 && hv.R == 0 {
				sawOccupant = true
			}
		}
	}
	if !sawOccupant {
		t.Error("DM view missing the character standing on (0,0)")
	}
}

func TestViewResolvesCallerCharacter(t *testing.T) {
	e, _, db, sessionID := testEngine(t)
	mapID := sessionMap(t, e, sessionID)
	charID := seedCharacter(t, db, 2, sessionID, "Mira")

	if _, err := e.MoveCharacter(mapID, charID, hex.Coord{Q: 3, R: 3}, 2); err != nil {
		t.Fatalf("placement: %v", err)
	}

	view, err := e.GetVisibleHexes(mapID, 2, 0)
	if err != nil {
		t.Fatalf("GetVisibleHexes: %v", err)
	}
	if view.CharacterID == nil || *view.CharacterID != charID {
		t.Errorf("resolved character = %v, want %d", view.CharacterID, charID)
	}

	// A participant with no character gets an empty view, not an error.
	empty, err := e.GetVisibleHexes(mapID, 3, 0)
	if err != nil {
		t.Fatalf("GetVisibleHexes no character: %v", err)
	}
	if len(empty.Hexes) != 0 || empty.CharacterID != nil {
		t.Errorf("characterless view = %+v, want empty", empty)
	}
}

func TestViewIncludesMarkers(t *testing.T) {
	e, _, db, sessionID := testEngine(t)
	mapID := sessionMap(t, e, sessionID)
	charID := seedCharacter(t, db, 2, sessionID, "Mira")

	if _, err := e.Store.UpsertMarker(mapID, store.MarkerUpsert{
		Q: 0, R: 0, Type: "town", VisibleToPlayers: true,
	}, 1); err != nil {
		t.Fatalf("seed marker: %v", err)
	}
	if _, err := e.Store.UpsertMarker(mapID, store.MarkerUpsert{
		Q: 9, R: 9, Type: "treasure",
	}, 1); err != nil {
		t.Fatalf("seed marker: %v", err)
	}
	if _, err := e.MoveCharacter(mapID, charID, hex.Coord{Q: 0, R: 0}, 2); err != nil {
		t.Fatalf("placement: %v", err)
	}

	dmView, err := e.GetVisibleHexes(mapID, 1, 0)
	if err != nil {
		t.Fatalf("DM view: %v", err)
	}
	if len(dmView.Markers) != 2 {
		t.Errorf("DM markers = %d, want 2", len(dmView.Markers))
	}

	playerView, err := e.GetVisibleHexes(mapID, 2, charID)
	if err != nil {
		t.Fatalf("player view: %v", err)
	}
	if len(playerView.Markers) != 1 || playerView.Markers[0].Type != "town" {
		t.Errorf("player markers = %v, want only the town", playerView.Markers)
	}
}

func strptr(s string) *string { return &s }
func boolptr(b bool) *bool    { return &b }
