package api

import (
	"net/http"
	"strconv"

	"github.com/talgya/hexcrawl/internal/hex"
)

type moveRequest struct {
	CharacterID int64 `json:"character_id"`
	Q           int   `json:"q"`
	R           int   `json:"r"`
}

func (s *Server) handleMoveCharacter(w http.ResponseWriter, r *http.Request) {
	mapID, caller, ok := mapRequest(w, r)
	if !ok {
		return
	}

	var req moveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.CharacterID <= 0 {
		writeError(w, validationFailed("character_id", "valid character ID is required"))
		return
	}

	result, err := s.Engine.MoveCharacter(mapID, req.CharacterID, hex.Coord{Q: req.Q, R: req.R}, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

type revealRequest struct {
	Hexes         []hex.Coord `json:"hexes"`
	TargetUserIDs []int64     `json:"target_user_ids"`
}

func (s *Server) handleRevealHexes(w http.ResponseWriter, r *http.Request) {
	mapID, caller, ok := mapRequest(w, r)
	if !ok {
		return
	}

	var req revealRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.Engine.RevealHexes(mapID, req.Hexes, req.TargetUserIDs, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleVisibleHexes(w http.ResponseWriter, r *http.Request) {
	mapID, caller, ok := mapRequest(w, r)
	if !ok {
		return
	}

	var characterID int64
	if raw := r.URL.Query().Get("character_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, validationFailed("character_id", "must be a positive integer"))
			return
		}
		characterID = id
	}

	view, err := s.Engine.GetVisibleHexes(mapID, caller, characterID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, view)
}
