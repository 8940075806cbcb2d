package fog

import (
	"encoding/json"
	"strconv"
)

// Travel-time multipliers for a one-hex step. A road or path edge
// between the two hexes overrides the destination terrain.
const (
	roadMultiplier = 0.5
	pathMultiplier = 0.75
)

var terrainMultipliers = map[string]float64{
	"plains":    1.0,
	"grassland": 1.0,
	"forest":    1.5,
	"hills":     2.0,
	"mountains": 3.0,
	"swamp":     2.5,
	"desert":    1.5,
	"tundra":    2.0,
	"jungle":    2.5,
}

const defaultTerrainMultiplier = 1.0

// terrainMultiplier returns the step multiplier for a terrain type.
func terrainMultiplier(terrain string) float64 {
	if m, ok := terrainMultipliers[terrain]; ok {
		return m
	}
	return defaultTerrainMultiplier
}

// edgeActive reports whether an edge overlay marks the given edge
// index. Overlays arrive as either a JSON object keyed by edge index or
// a six-element JSON array; a null, false, empty, or zero entry means
// the edge has no feature.
func edgeActive(raw json.RawMessage, idx int) bool {
	if len(raw) == 0 || idx < 0 || idx > 5 {
		return false
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asObject); err == nil {
		return truthyEntry(asObject[strconv.Itoa(idx)])
	}

	var asArray []json.RawMessage
	if err := json.Unmarshal(raw, &asArray); err == nil && idx < len(asArray) {
		return truthyEntry(asArray[idx])
	}
	return false
}

func truthyEntry(entry json.RawMessage) bool {
	switch string(entry) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}
