// Package hex provides axial hex-grid coordinates and the arithmetic the
// fog-of-war engine is built on. Uses axial coordinates (q, r); the third
// cube coordinate s is derived: s = -q - r.
package hex

// Coord represents a position on the hex grid using axial coordinates.
type Coord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (c Coord) S() int {
	return -c.Q - c.R
}

// Directions defines the six neighbor offsets in axial coordinates.
// The index of a direction is also the edge index used by tile edge
// overlays (borders, roads, paths, rivers), so this ordering must not
// change.
var Directions = [6]Coord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Neighbors returns the six adjacent coordinates in edge-index order.
func (c Coord) Neighbors() [6]Coord {
	var result [6]Coord
	for i, dir := range Directions {
		result[i] = Coord{Q: c.Q + dir.Q, R: c.R + dir.R}
	}
	return result
}

// EdgeIndex returns the edge index of neighbor n relative to c, or -1 if
// the two hexes are not adjacent.
func (c Coord) EdgeIndex(n Coord) int {
	for i, dir := range Directions {
		if n.Q == c.Q+dir.Q && n.R == c.R+dir.R {
			return i
		}
	}
	return -1
}

// Distance returns the hex distance between two coordinates:
// (|Δq| + |Δq+Δr| + |Δr|) / 2. The sum is always even, so the
// integer division is exact.
func Distance(a, b Coord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.Q + a.R - b.Q - b.R)
	return (dq + dr + ds) / 2
}

// Range returns every coordinate within the given distance of center,
// including center itself. A radius of n yields 1 + 3n(n+1) coordinates.
func Range(center Coord, radius int) []Coord {
	if radius < 0 {
		return nil
	}
	coords := make([]Coord, 0, 1+3*radius*(radius+1))
	for dq := -radius; dq <= radius; dq++ {
		lo := max(-radius, -dq-radius)
		hi := min(radius, -dq+radius)
		for dr := lo; dr <= hi; dr++ {
			coords = append(coords, Coord{Q: center.Q + dq, R: center.R + dr})
		}
	}
	return coords
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
