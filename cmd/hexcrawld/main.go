// Command hexcrawld serves the hex map fog-of-war engine.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/hexcrawl/internal/access"
	"github.com/talgya/hexcrawl/internal/api"
	"github.com/talgya/hexcrawl/internal/config"
	"github.com/talgya/hexcrawl/internal/fog"
	"github.com/talgya/hexcrawl/internal/notify"
	"github.com/talgya/hexcrawl/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	db, err := store.Connect(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Engine wiring ────────────────────────────────────────────────
	checker := access.NewSQL(db)
	st := store.New(db, checker)
	hub := notify.NewHub()
	broadcaster := notify.NewBroadcaster(db, hub)

	engine := &fog.Engine{
		Store:           st,
		Access:          checker,
		Notifier:        broadcaster,
		BaseTravelHours: cfg.BaseTravelHours,
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	apiServer := &api.Server{
		Store:       st,
		Engine:      engine,
		Access:      checker,
		Hub:         hub,
		Broadcaster: broadcaster,
		CORSOrigins: cfg.CORSOrigins,
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      apiServer.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		slog.Info("HTTP API starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── Shutdown ─────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
}
