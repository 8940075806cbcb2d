// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the hexcrawld runtime settings.
type Config struct {
	Addr            string  // listen address, e.g. ":8080"
	DBPath          string  // sqlite database path
	CORSOrigins     string  // comma-separated extra allowed origins
	BaseTravelHours float64 // game-clock hours per one-hex step; 0 disables the clock
}

// Load reads configuration from the environment. A missing .env file is
// not an error.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}

	cfg := Config{
		Addr:            ":8080",
		DBPath:          "data/hexcrawl.db",
		BaseTravelHours: 1.0,
	}

	if v := os.Getenv("HEXCRAWL_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("HEXCRAWL_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	cfg.CORSOrigins = os.Getenv("CORS_ORIGINS")
	if v := os.Getenv("HEXCRAWL_BASE_TRAVEL_HOURS"); v != "" {
		hours, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Warn("invalid HEXCRAWL_BASE_TRAVEL_HOURS, keeping default", "value", v)
		} else {
			cfg.BaseTravelHours = hours
		}
	}
	return cfg
}
