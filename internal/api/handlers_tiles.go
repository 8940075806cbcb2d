package api

import (
	"net/http"
	"strconv"

	"github.com/talgya/hexcrawl/internal/store"
)

func (s *Server) handleUpsertTile(w http.ResponseWriter, r *http.Request) {
	mapID, caller, ok := mapRequest(w, r)
	if !ok {
		return
	}

	var up store.TileUpsert
	if err := decodeBody(r, &up); err != nil {
		writeError(w, err)
		return
	}

	tile, created, err := s.Store.UpsertTile(mapID, up, caller)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSONStatus(w, status, map[string]any{"tile": tile, "created": created})
}

type batchTilesRequest struct {
	Tiles []store.TileUpsert `json:"tiles"`
}

func (s *Server) handleBatchUpsertTiles(w http.ResponseWriter, r *http.Request) {
	mapID, caller, ok := mapRequest(w, r)
	if !ok {
		return
	}

	var req batchTilesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.Store.BatchUpsertTiles(mapID, req.Tiles, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleDeleteTile(w http.ResponseWriter, r *http.Request) {
	mapID, caller, ok := mapRequest(w, r)
	if !ok {
		return
	}

	q, errQ := strconv.Atoi(r.PathValue("q"))
	hr, errR := strconv.Atoi(r.PathValue("r"))
	if errQ != nil || errR != nil {
		writeError(w, validationFailed("coordinates", "q and r must be integers"))
		return
	}

	if err := s.Store.DeleteTile(mapID, q, hr, caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "deleted", "q": q, "r": hr})
}
