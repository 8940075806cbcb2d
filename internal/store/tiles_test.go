package store

import (
	"encoding/json"
	"errors"
	"testing"
)

func tileMap(t *testing.T) (*Store, int64) {
	t.Helper()
	st, _ := testStore(t)
	m, err := st.CreateMap(MapSpec{Name: "Tile Testbed"}, 1)
	if err != nil {
		t.Fatalf("CreateMap: %v", err)
	}
	return st, m.ID
}

func TestUpsertTileCreateThenUpdate(t *testing.T) {
	st, mapID := tileMap(t)

	tile, created, err := st.UpsertTile(mapID, TileUpsert{Q: 3, R: 4, TerrainType: strptr("forest")}, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created {
		t.Error("first write should report created")
	}
	if tile.TerrainType != "forest" || !tile.IsPassable || tile.MovementCost != 1 {
		t.Errorf("tile = %+v, want forest/passable/cost 1", tile)
	}

	tile, created, err = st.UpsertTile(mapID, TileUpsert{Q: 3, R: 4, Description: strptr("Dense pines.")}, 1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if created {
		t.Error("second write should report updated")
	}
	if tile.TerrainType != "forest" {
		t.Errorf("terrain = %q, want forest preserved when omitted", tile.TerrainType)
	}
	if tile.Description == nil || *tile.Description != "Dense pines." {
		t.Errorf("description = %v, want Dense pines.", tile.Description)
	}
}

func TestUpsertTileOverlays(t *testing.T) {
	st, mapID := tileMap(t)

	roads := json.RawMessage(`{"0": true, "3": true}`)
	tile, _, err := st.UpsertTile(mapID, TileUpsert{Q: 0, R: 0, Roads: roads}, 1)
	if err != nil {
		t.Fatalf("create with roads: %v", err)
	}
	if string(tile.Roads) != string(roads) {
		t.Errorf("roads = %s, want %s", tile.Roads, roads)
	}

	// Omitted overlay stays; JSON null clears.
	tile, _, err = st.UpsertTile(mapID, TileUpsert{Q: 0, R: 0, Elevation: intptr(100)}, 1)
	if err != nil {
		t.Fatalf("update without roads: %v", err)
	}
	if string(tile.Roads) != string(roads) {
		t.Errorf("roads after omit = %s, want preserved", tile.Roads)
	}

	tile, _, err = st.UpsertTile(mapID, TileUpsert{Q: 0, R: 0, Roads: json.RawMessage("null")}, 1)
	if err != nil {
		t.Fatalf("clear roads: %v", err)
	}
	if len(tile.Roads) != 0 {
		t.Errorf("roads after null = %s, want cleared", tile.Roads)
	}

	if _, _, err := st.UpsertTile(mapID, TileUpsert{Q: 1, R: 1, Borders: json.RawMessage("{broken")}, 1); !errors.Is(err, ErrInvalid) {
		t.Errorf("invalid overlay err = %v, want ErrInvalid", err)
	}
}

func TestTileReadsWithNullOverlays(t *testing.T) {
	st, mapID := tileMap(t)

	// A plain tile stores NULL in all four overlay columns; every read
	// path must handle that, not just tiles that carry overlays.
	if _, _, err := st.UpsertTile(mapID, TileUpsert{Q: 2, R: 3}, 1); err != nil {
		t.Fatalf("create: %v", err)
	}

	tile, err := st.GetTile(mapID, 2, 3)
	if err != nil {
		t.Fatalf("GetTile: %v", err)
	}
	if tile.Borders != nil || tile.Roads != nil || tile.Paths != nil || tile.Rivers != nil {
		t.Errorf("overlays = %s/%s/%s/%s, want all absent",
			tile.Borders, tile.Roads, tile.Paths, tile.Rivers)
	}

	if _, err := st.ListTiles(mapID); err != nil {
		t.Errorf("ListTiles: %v", err)
	}
	if _, err := st.TilesWithin(mapID, 2, 3, 2); err != nil {
		t.Errorf("TilesWithin: %v", err)
	}
	if _, _, err := st.UpsertTile(mapID, TileUpsert{Q: 2, R: 3, Elevation: intptr(50)}, 1); err != nil {
		t.Errorf("update over NULL overlays: %v", err)
	}
}

func TestUpsertTileStanding(t *testing.T) {
	st, mapID := tileMap(t)

	if _, _, err := st.UpsertTile(mapID, TileUpsert{Q: 9, R: 9}, 2); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger upsert err = %v, want ErrForbidden", err)
	}
}

func TestBatchUpsertTiles(t *testing.T) {
	st, mapID := tileMap(t)

	if _, _, err := st.UpsertTile(mapID, TileUpsert{Q: 0, R: 0}, 1); err != nil {
		t.Fatalf("seed tile: %v", err)
	}

	result, err := st.BatchUpsertTiles(mapID, []TileUpsert{
		{Q: 0, R: 0, TerrainType: strptr("hills")},
		{Q: 1, R: 0},
		{Q: 2, R: 0},
	}, 1)
	if err != nil {
		t.Fatalf("BatchUpsertTiles: %v", err)
	}
	if result.Created != 2 || result.Updated != 1 {
		t.Errorf("created/updated = %d/%d, want 2/1", result.Created, result.Updated)
	}
	if len(result.Tiles) != 3 {
		t.Errorf("tiles = %d, want 3", len(result.Tiles))
	}
}

func TestBatchUpsertTilesAtomic(t *testing.T) {
	st, mapID := tileMap(t)

	_, err := st.BatchUpsertTiles(mapID, []TileUpsert{
		{Q: 10, R: 10},
		{Q: 11, R: 10, Rivers: json.RawMessage("{broken")},
	}, 1)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}

	// The valid first tile must not have committed.
	if _, err := st.GetTile(mapID, 10, 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("tile (10,10) err = %v, want ErrNotFound after rollback", err)
	}
}

func TestBatchUpsertTilesLimits(t *testing.T) {
	st, mapID := tileMap(t)

	if _, err := st.BatchUpsertTiles(mapID, nil, 1); !errors.Is(err, ErrInvalid) {
		t.Errorf("empty batch err = %v, want ErrInvalid", err)
	}

	oversize := make([]TileUpsert, MaxBatchTiles+1)
	for i := range oversize {
		oversize[i] = TileUpsert{Q: i, R: 0}
	}
	if _, err := st.BatchUpsertTiles(mapID, oversize, 1); !errors.Is(err, ErrInvalid) {
		t.Errorf("oversize batch err = %v, want ErrInvalid", err)
	}
}

func TestTilesWithin(t *testing.T) {
	st, mapID := tileMap(t)

	for _, c := range []struct{ q, r int }{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {0, 2}, {5, 5}} {
		if _, _, err := st.UpsertTile(mapID, TileUpsert{Q: c.q, R: c.r}, 1); err != nil {
			t.Fatalf("seed (%d,%d): %v", c.q, c.r, err)
		}
	}

	tiles, err := st.TilesWithin(mapID, 0, 0, 2)
	if err != nil {
		t.Fatalf("TilesWithin: %v", err)
	}
	// (3,0) is distance 3 and (5,5) distance 10; the rest are within 2.
	if len(tiles) != 4 {
		t.Errorf("tiles within radius 2 = %d, want 4", len(tiles))
	}
	for _, tile := range tiles {
		if tile.Q == 3 || tile.Q == 5 {
			t.Errorf("tile (%d,%d) outside radius was included", tile.Q, tile.R)
		}
	}
}

func TestDeleteTile(t *testing.T) {
	st, mapID := tileMap(t)

	if _, _, err := st.UpsertTile(mapID, TileUpsert{Q: 7, R: 7}, 1); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := st.DeleteTile(mapID, 7, 7, 1); err != nil {
		t.Fatalf("DeleteTile: %v", err)
	}
	if err := st.DeleteTile(mapID, 7, 7, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("repeat delete err = %v, want ErrNotFound", err)
	}
}
