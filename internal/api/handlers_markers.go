package api

import (
	"net/http"
	"strconv"

	"github.com/talgya/hexcrawl/internal/store"
)

func (s *Server) handleListMarkers(w http.ResponseWriter, r *http.Request) {
	mapID, caller, ok := mapRequest(w, r)
	if !ok {
		return
	}

	markers, err := s.Store.ListMarkers(mapID, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"markers": markers, "total": len(markers)})
}

func (s *Server) handleUpsertMarker(w http.ResponseWriter, r *http.Request) {
	mapID, caller, ok := mapRequest(w, r)
	if !ok {
		return
	}

	var up store.MarkerUpsert
	if err := decodeBody(r, &up); err != nil {
		writeError(w, err)
		return
	}

	marker, err := s.Store.UpsertMarker(mapID, up, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, marker)
}

func (s *Server) handleDeleteMarker(w http.ResponseWriter, r *http.Request) {
	mapID, caller, ok := mapRequest(w, r)
	if !ok {
		return
	}

	markerID, err := strconv.ParseInt(r.PathValue("markerId"), 10, 64)
	if err != nil || markerID <= 0 {
		writeError(w, validationFailed("marker_id", "valid marker ID is required"))
		return
	}

	if err := s.Store.DeleteMarker(mapID, markerID, caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "deleted", "marker_id": markerID})
}
