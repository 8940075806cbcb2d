package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HEXCRAWL_ADDR", "")
	t.Setenv("HEXCRAWL_DB_PATH", "")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("HEXCRAWL_BASE_TRAVEL_HOURS", "")

	cfg := Load()
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.DBPath != "data/hexcrawl.db" {
		t.Errorf("DBPath = %q, want data/hexcrawl.db", cfg.DBPath)
	}
	if cfg.BaseTravelHours != 1.0 {
		t.Errorf("BaseTravelHours = %v, want 1.0", cfg.BaseTravelHours)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HEXCRAWL_ADDR", ":9999")
	t.Setenv("HEXCRAWL_DB_PATH", "/tmp/other.db")
	t.Setenv("CORS_ORIGINS", "https://vtt.example.com")
	t.Setenv("HEXCRAWL_BASE_TRAVEL_HOURS", "4.5")

	cfg := Load()
	if cfg.Addr != ":9999" || cfg.DBPath != "/tmp/other.db" {
		t.Errorf("cfg = %+v, want env overrides applied", cfg)
	}
	if cfg.CORSOrigins != "https://vtt.example.com" {
		t.Errorf("CORSOrigins = %q", cfg.CORSOrigins)
	}
	if cfg.BaseTravelHours != 4.5 {
		t.Errorf("BaseTravelHours = %v, want 4.5", cfg.BaseTravelHours)
	}
}

func TestLoadBadTravelHours(t *testing.T) {
	t.Setenv("HEXCRAWL_BASE_TRAVEL_HOURS", "soon")
	if cfg := Load(); cfg.BaseTravelHours != 1.0 {
		t.Errorf("BaseTravelHours = %v, want default kept on bad input", cfg.BaseTravelHours)
	}
}
