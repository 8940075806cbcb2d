package fog

import (
	"encoding/json"
	"sort"

	"github.com/talgya/hexcrawl/internal/hex"
	"github.com/talgya/hexcrawl/internal/store"
)

// CharacterRef identifies a character standing on a hex (DM view only).
type CharacterRef struct {
	ID   int64  `json:"character_id"`
	Name string `json:"character_name"`
}

// HexView is one hex of a map view. Which fields are populated depends
// on the visibility level — the disclosure ladder is enforced here, on
// the server, and the zero fields are omitted from the JSON entirely:
//
//	level 0: coordinate and level only
//	level 1: + terrain classification, elevation, passability, movement
//	         cost, rivers
//	level 2: + description, notes, image, borders, roads, paths
type HexView struct {
	Q               int             `json:"q"`
	R               int             `json:"r"`
	TileID          *int64          `json:"tile_id,omitempty"`
	VisibilityLevel int             `json:"visibility_level"`
	Distance        *int            `json:"distance,omitempty"`
	TerrainType     *string         `json:"terrain_type,omitempty"`
	TerrainName     *string         `json:"terrain_name,omitempty"`
	Elevation       *int            `json:"elevation,omitempty"`
	IsPassable      *bool           `json:"is_passable,omitempty"`
	MovementCost    *int            `json:"movement_cost,omitempty"`
	Rivers          json.RawMessage `json:"rivers,omitempty"`
	Description     *string         `json:"description,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	ImageURL        *string         `json:"image_url,omitempty"`
	Borders         json.RawMessage `json:"borders,omitempty"`
	Roads           json.RawMessage `json:"roads,omitempty"`
	Paths           json.RawMessage `json:"paths,omitempty"`
	Characters      []CharacterRef  `json:"characters,omitempty"`
}

// View is the role-sensitive map projection. Markers follow their own
// visibility rule (is_visible_to_players), not the fog ladder.
type View struct {
	MapID          int64          `json:"map_id"`
	IsDM           bool           `json:"is_dm"`
	CharacterID    *int64         `json:"character_id,omitempty"`
	PlayerPosition *hex.Coord     `json:"player_position,omitempty"`
	Hexes          []HexView      `json:"hexes"`
	TotalHexes     int            `json:"total_hexes"`
	Markers        []store.Marker `json:"markers,omitempty"`
}

// GetVisibleHexes assembles the map view for the caller. The map
// creator and the linked session's DM see every tile at Full —
// omniscience is definitional, not read from visibility records.
// Everyone else sees the fog-filtered window around their character;
// characterID 0 resolves the caller's character in the map's session.
func (e *Engine) GetVisibleHexes(mapID, callerID, characterID int64) (*View, error) {
	auth, err := e.Store.RequireView(mapID, callerID)
	if err != nil {
		return nil, err
	}
	isDM, err := e.Store.IsMapDM(auth, callerID)
	if err != nil {
		return nil, err
	}

	var view *View
	if isDM {
		view, err = e.dmView(mapID)
	} else {
		view, err = e.playerView(mapID, callerID, characterID, auth.SessionID)
	}
	if err != nil {
		return nil, err
	}

	markers, err := e.Store.ListMarkers(mapID, callerID)
	if err != nil {
		return nil, err
	}
	view.Markers = markers
	return view, nil
}

func (e *Engine) dmView(mapID int64) (*View, error) {
	tiles, err := e.Store.ListTiles(mapID)
	if err != nil {
		return nil, err
	}
	chars, err := e.Store.CharactersOn(mapID)
	if err != nil {
		return nil, err
	}

	occupants := make(map[hex.Coord][]CharacterRef)
	for _, c := range chars {
		coord := hex.Coord{Q: c.Q, R: c.R}
		occupants[coord] = append(occupants[coord], CharacterRef{ID: c.CharacterID, Name: c.CharacterName})
	}

	view := &View{MapID: mapID, IsDM: true, Hexes: make([]HexView, 0, len(tiles))}
	for i := range tiles {
		t := &tiles[i]
		hv := fullHexView(t)
		hv.Characters = occupants[hex.Coord{Q: t.Q, R: t.R}]
		view.Hexes = append(view.Hexes, hv)
	}
	view.TotalHexes = len(view.Hexes)
	return view, nil
}

func (e *Engine) playerView(mapID, callerID, characterID int64, sessionID *int64) (*View, error) {
	view := &View{MapID: mapID, Hexes: []HexView{}}

	if characterID == 0 && sessionID != nil {
		character, err := e.Store.CharacterForUser(callerID, *sessionID)
		if err != nil {
			return nil, err
		}
		if character != nil {
			characterID = character.ID
		}
	}
	if characterID == 0 {
		return view, nil
	}
	view.CharacterID = &characterID

	pos, err := e.Store.GetPosition(mapID, characterID)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		// Character not yet placed on this map.
		return view, nil
	}
	center := hex.Coord{Q: pos.Q, R: pos.R}
	view.PlayerPosition = &center

	tiles, err := e.Store.TilesWithin(mapID, center.Q, center.R, ViewRadius)
	if err != nil {
		return nil, err
	}
	tileAt := make(map[hex.Coord]*store.Tile, len(tiles))
	for i := range tiles {
		tileAt[hex.Coord{Q: tiles[i].Q, R: tiles[i].R}] = &tiles[i]
	}

	levels, err := e.Store.VisibilityFor(mapID, callerID)
	if err != nil {
		return nil, err
	}

	for _, coord := range hex.Range(center, ViewRadius) {
		tile, hasTile := tileAt[coord]
		level := levels[coord]
		if !hasTile && level == store.VisibilityHidden {
			continue
		}
		hv := ladderHexView(coord, tile, level)
		d := hex.Distance(center, coord)
		hv.Distance = &d
		view.Hexes = append(view.Hexes, hv)
	}

	sort.Slice(view.Hexes, func(i, j int) bool {
		if view.Hexes[i].R != view.Hexes[j].R {
			return view.Hexes[i].R < view.Hexes[j].R
		}
		return view.Hexes[i].Q < view.Hexes[j].Q
	})
	view.TotalHexes = len(view.Hexes)
	return view, nil
}

// ladderHexView builds a player-facing hex, disclosing tile fields
// strictly by level.
func ladderHexView(coord hex.Coord, tile *store.Tile, level int) HexView {
	hv := HexView{Q: coord.Q, R: coord.R, VisibilityLevel: level}
	if tile == nil {
		return hv
	}
	hv.TileID = &tile.ID

	if level >= store.VisibilityPartial {
		hv.TerrainType = &tile.TerrainType
		hv.TerrainName = tile.TerrainName
		hv.Elevation = &tile.Elevation
		hv.IsPassable = &tile.IsPassable
		hv.MovementCost = &tile.MovementCost
		hv.Rivers = tile.Rivers
	}
	if level >= store.VisibilityFull {
		hv.Description = tile.Description
		hv.Notes = tile.Notes
		hv.ImageURL = tile.ImageURL
		hv.Borders = tile.Borders
		hv.Roads = tile.Roads
		hv.Paths = tile.Paths
	}
	return hv
}

// fullHexView builds a DM-facing hex with every field at Full.
func fullHexView(t *store.Tile) HexView {
	return HexView{
		Q:               t.Q,
		R:               t.R,
		TileID:          &t.ID,
		VisibilityLevel: store.VisibilityFull,
		TerrainType:     &t.TerrainType,
		TerrainName:     t.TerrainName,
		Elevation:       &t.Elevation,
		IsPassable:      &t.IsPassable,
		MovementCost:    &t.MovementCost,
		Rivers:          t.Rivers,
		Description:     t.Description,
		Notes:           t.Notes,
		ImageURL:        t.ImageURL,
		Borders:         t.Borders,
		Roads:           t.Roads,
		Paths:           t.Paths,
	}
}
