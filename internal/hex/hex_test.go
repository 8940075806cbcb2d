package hex

import "testing"

func TestDistanceSymmetry(t *testing.T) {
	coords := []Coord{
		{0, 0}, {1, 0}, {0, 1}, {-3, 2}, {5, -5}, {7, 3}, {-4, -4},
	}
	for _, a := range coords {
		for _, b := range coords {
			if Distance(a, b) != Distance(b, a) {
				t.Errorf("distance not symmetric for %v and %v", a, b)
			}
		}
		if Distance(a, a) != 0 {
			t.Errorf("distance(%v, %v) = %d, want 0", a, a, Distance(a, a))
		}
	}
}

func TestDistanceKnownValues(t *testing.T) {
	cases := []struct {
		a, b Coord
		want int
	}{
		{Coord{0, 0}, Coord{1, 0}, 1},
		{Coord{0, 0}, Coord{1, -1}, 1},
		{Coord{0, 0}, Coord{2, 0}, 2},
		{Coord{0, 0}, Coord{2, -1}, 2},
		{Coord{0, 0}, Coord{-2, 2}, 2},
		{Coord{0, 0}, Coord{3, 3}, 6},
		{Coord{5, 5}, Coord{5, 5}, 0},
		{Coord{-1, -1}, Coord{1, 1}, 4},
	}
	for _, c := range cases {
		if got := Distance(c.a, c.b); got != c.want {
			t.Errorf("Distance(%v, %v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestNeighbors(t *testing.T) {
	h := Coord{Q: 3, R: -2}
	neighbors := h.Neighbors()

	seen := make(map[Coord]bool)
	for _, n := range neighbors {
		if n == h {
			t.Errorf("hex %v is its own neighbor", h)
		}
		if seen[n] {
			t.Errorf("duplicate neighbor %v", n)
		}
		seen[n] = true
		if d := Distance(h, n); d != 1 {
			t.Errorf("neighbor %v at distance %d, want 1", n, d)
		}
	}
	if len(seen) != 6 {
		t.Errorf("expected 6 distinct neighbors, got %d", len(seen))
	}
}

func TestNeighborOrdering(t *testing.T) {
	// Edge overlay indexes depend on this exact order.
	want := [6]Coord{
		{1, 0}, {1, -1}, {0, -1}, {-1, 0}, {-1, 1}, {0, 1},
	}
	got := Coord{0, 0}.Neighbors()
	if got != want {
		t.Errorf("neighbor ordering changed: got %v, want %v", got, want)
	}
}

func TestEdgeIndex(t *testing.T) {
	h := Coord{Q: 2, R: 2}
	for i, n := range h.Neighbors() {
		if got := h.EdgeIndex(n); got != i {
			t.Errorf("EdgeIndex(%v) = %d, want %d", n, got, i)
		}
	}
	if got := h.EdgeIndex(Coord{Q: 9, R: 9}); got != -1 {
		t.Errorf("EdgeIndex for non-neighbor = %d, want -1", got)
	}
}

func TestRange(t *testing.T) {
	center := Coord{Q: 1, R: -1}

	r0 := Range(center, 0)
	if len(r0) != 1 || r0[0] != center {
		t.Errorf("Range(r=0) = %v, want just the center", r0)
	}

	r2 := Range(center, 2)
	if len(r2) != 19 {
		t.Errorf("Range(r=2) has %d coords, want 19", len(r2))
	}
	for _, c := range r2 {
		if d := Distance(center, c); d > 2 {
			t.Errorf("Range(r=2) contains %v at distance %d", c, d)
		}
	}
}
