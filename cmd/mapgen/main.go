// Command mapgen seeds a hex map with procedurally generated terrain
// using layered simplex noise, so a new campaign starts from plausible
// geography instead of a blank grid.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/hexcrawl/internal/access"
	"github.com/talgya/hexcrawl/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		dbPath  = flag.String("db", "data/hexcrawl.db", "sqlite database path")
		name    = flag.String("name", "Generated Wilderness", "map name")
		width   = flag.Int("width", 30, "map width in hexes")
		height  = flag.Int("height", 30, "map height in hexes")
		seed    = flag.Int64("seed", 0, "generation seed (0 = random)")
		userID  = flag.Int64("user", 1, "map creator user ID")
		scaleKm = flag.Float64("scale", 10, "kilometres per hex")
	)
	flag.Parse()

	if *seed == 0 {
		*seed = rand.Int63()
	}

	os.MkdirAll(filepath.Dir(*dbPath), 0755)
	db, err := store.Connect(*dbPath)
	if err != nil {
		slog.Error("failed to open database", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	st := store.New(db, access.NewSQL(db))

	m, err := st.CreateMap(store.MapSpec{
		Name:        *name,
		Description: fmt.Sprintf("Generated terrain, seed %d", *seed),
		WidthHexes:  *width,
		HeightHexes: *height,
		HexScaleKm:  scaleKm,
	}, *userID)
	if err != nil {
		slog.Error("failed to create map", "error", err)
		os.Exit(1)
	}

	start := time.Now()
	tiles := generateTiles(*width, *height, *seed)

	// Batches stay under the store's transactional cap.
	var created int
	for i := 0; i < len(tiles); i += store.MaxBatchTiles {
		end := min(i+store.MaxBatchTiles, len(tiles))
		result, err := st.BatchUpsertTiles(m.ID, tiles[i:end], *userID)
		if err != nil {
			slog.Error("batch write failed", "offset", i, "error", err)
			os.Exit(1)
		}
		created += result.Created
	}

	counts := map[string]int{}
	for _, t := range tiles {
		counts[*t.TerrainType]++
	}
	for terrain, n := range counts {
		slog.Info("terrain", "type", terrain, "count", n)
	}

	fmt.Printf("Map %d (%q): %s tiles written in %s.\n",
		m.ID, m.Name, humanize.Comma(int64(created)), time.Since(start).Round(time.Millisecond))
}

// generateTiles derives a terrain tile for every (q, r) in the map
// rectangle from three independent noise layers.
func generateTiles(width, height int, seed int64) []store.TileUpsert {
	elevNoise := opensimplex.NewNormalized(seed)
	rainNoise := opensimplex.NewNormalized(seed + 1)
	tempNoise := opensimplex.NewNormalized(seed + 2)

	tiles := make([]store.TileUpsert, 0, width*height)
	for r := 0; r < height; r++ {
		for q := 0; q < width; q++ {
			// Axial → cartesian so the noise field is isotropic on the
			// hex grid.
			x := float64(q) + float64(r)*0.5
			y := float64(r) * math.Sqrt(3.0) / 2.0

			elev := octaveNoise(elevNoise, x, y, 4, 0.08, 0.5)
			rain := octaveNoise(rainNoise, x, y, 3, 0.06, 0.5)
			temp := octaveNoise(tempNoise, x, y, 3, 0.05, 0.5)

			terrain := deriveTerrain(elev, rain, temp)
			elevation := int(elev * 3000)
			passable := terrain != "mountains" || elev < 0.9
			cost := movementCost(terrain)

			tiles = append(tiles, store.TileUpsert{
				Q:            q,
				R:            r,
				TerrainType:  &terrain,
				Elevation:    &elevation,
				IsPassable:   &passable,
				MovementCost: &cost,
			})
		}
	}
	return tiles
}

func deriveTerrain(elev, rain, temp float64) string {
	switch {
	case elev > 0.72:
		return "mountains"
	case elev > 0.60:
		return "hills"
	case temp < 0.25:
		return "tundra"
	case rain < 0.25 && temp > 0.5:
		return "desert"
	case rain > 0.7 && elev < 0.45:
		return "swamp"
	case rain > 0.55 && temp > 0.7:
		return "jungle"
	case rain > 0.45:
		return "forest"
	default:
		return "plains"
	}
}

func movementCost(terrain string) int {
	switch terrain {
	case "mountains":
		return 3
	case "hills", "swamp", "jungle", "tundra":
		return 2
	default:
		return 1
	}
}

// octaveNoise layers multiple noise frequencies for natural-looking
// terrain.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}
