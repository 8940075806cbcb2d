// Package api serves the hex map engine over HTTP. Authentication is
// delegated to the surrounding application: the trusted edge injects the
// caller's identity in the X-User-ID header, and every authorization
// decision happens in the store and fog layers.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/hexcrawl/internal/access"
	"github.com/talgya/hexcrawl/internal/fog"
	"github.com/talgya/hexcrawl/internal/notify"
	"github.com/talgya/hexcrawl/internal/store"
)

// Server exposes the map, tile, marker, and fog operations.
type Server struct {
	Store       *store.Store
	Engine      *fog.Engine
	Access      access.Checker
	Hub         *notify.Hub
	Broadcaster *notify.Broadcaster
	CORSOrigins string // comma-separated extra allowed origins
}

// Handler builds the route table. Bulk tile editing and reveals hit the
// database hardest, so they share a per-client rate limit.
func (s *Server) Handler() http.Handler {
	bulkLimiter := NewRateLimiter(120, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "ok"})
	})

	mux.HandleFunc("POST /api/v1/maps", s.handleCreateMap)
	mux.HandleFunc("GET /api/v1/maps", s.handleListMaps)
	mux.HandleFunc("GET /api/v1/maps/{id}", s.handleGetMap)
	mux.HandleFunc("PATCH /api/v1/maps/{id}", s.handleUpdateMap)
	mux.HandleFunc("DELETE /api/v1/maps/{id}", s.handleDeleteMap)

	mux.HandleFunc("POST /api/v1/maps/{id}/tiles", s.handleUpsertTile)
	mux.HandleFunc("POST /api/v1/maps/{id}/tiles/batch", RateLimitMiddleware(bulkLimiter, s.handleBatchUpsertTiles))
	mux.HandleFunc("DELETE /api/v1/maps/{id}/tiles/{q}/{r}", s.handleDeleteTile)

	mux.HandleFunc("POST /api/v1/maps/{id}/move", s.handleMoveCharacter)
	mux.HandleFunc("POST /api/v1/maps/{id}/reveal", RateLimitMiddleware(bulkLimiter, s.handleRevealHexes))
	mux.HandleFunc("GET /api/v1/maps/{id}/visible", s.handleVisibleHexes)

	mux.HandleFunc("GET /api/v1/maps/{id}/markers", s.handleListMarkers)
	mux.HandleFunc("POST /api/v1/maps/{id}/markers", s.handleUpsertMarker)
	mux.HandleFunc("DELETE /api/v1/maps/{id}/markers/{markerId}", s.handleDeleteMarker)

	mux.HandleFunc("GET /api/v1/sessions/{id}/events", s.handleSessionEvents)
	mux.HandleFunc("GET /ws/sessions/{id}", s.handleSessionSocket)

	return s.corsMiddleware(mux)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed; extend the list with the
// CORS_ORIGINS env var or the CORSOrigins field.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	extra := s.CORSOrigins
	if extra == "" {
		extra = os.Getenv("CORS_ORIGINS")
	}
	for _, origin := range strings.Split(extra, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// callerID extracts the authenticated user injected by the trusted edge.
func callerID(r *http.Request) (int64, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return 0, errors.New("missing X-User-ID header")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid X-User-ID header")
	}
	return id, nil
}

// mapRequest resolves the {id} path segment and the caller identity
// shared by nearly every handler. On failure the response has already
// been written.
func mapRequest(w http.ResponseWriter, r *http.Request) (mapID, caller int64, ok bool) {
	mapID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || mapID <= 0 {
		writeError(w, validationFailed("map_id", "valid map ID is required"))
		return 0, 0, false
	}
	caller, err = callerID(r)
	if err != nil {
		writeStatus(w, http.StatusUnauthorized, err.Error())
		return 0, 0, false
	}
	return mapID, caller, true
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func writeStatus(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"status": "error", "message": message})
}

// writeError maps the store's error taxonomy onto HTTP statuses.
// Validation errors carry their per-field detail so the client can fix
// the request.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := map[string]any{"status": "error", "message": err.Error()}

	var vErr *store.ValidationError
	switch {
	case errors.As(err, &vErr):
		status = http.StatusBadRequest
		body["errors"] = vErr.Fields
	case errors.Is(err, store.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	default:
		slog.Error("request failed", "error", err)
		body["message"] = "internal error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func validationFailed(field, message string) error {
	return &store.ValidationError{Fields: map[string]string{field: message}}
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return validationFailed("body", "invalid JSON: "+err.Error())
	}
	return nil
}
