package api

import (
	"net/http"

	"github.com/talgya/hexcrawl/internal/store"
)

type createMapRequest struct {
	Name               string   `json:"map_name"`
	Description        string   `json:"map_description"`
	SessionID          *int64   `json:"session_id"`
	WidthHexes         int      `json:"width_hexes"`
	HeightHexes        int      `json:"height_hexes"`
	HexSizePixels      int      `json:"hex_size_pixels"`
	HexScaleKm         *float64 `json:"hex_scale_km"`
	BackgroundImageURL string   `json:"background_image_url"`
}

func (s *Server) handleCreateMap(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeStatus(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req createMapRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	m, err := s.Store.CreateMap(store.MapSpec{
		Name:               req.Name,
		Description:        req.Description,
		SessionID:          req.SessionID,
		WidthHexes:         req.WidthHexes,
		HeightHexes:        req.HeightHexes,
		HexSizePixels:      req.HexSizePixels,
		HexScaleKm:         req.HexScaleKm,
		BackgroundImageURL: req.BackgroundImageURL,
	}, caller)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSONStatus(w, http.StatusCreated, m)
}

func (s *Server) handleListMaps(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeStatus(w, http.StatusUnauthorized, err.Error())
		return
	}

	maps, err := s.Store.ListMaps(caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"maps": maps, "total": len(maps)})
}

func (s *Server) handleGetMap(w http.ResponseWriter, r *http.Request) {
	mapID, caller, ok := mapRequest(w, r)
	if !ok {
		return
	}

	m, err := s.Store.GetMap(mapID, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, m)
}

type updateMapRequest struct {
	Name               *string  `json:"map_name"`
	Description        *string  `json:"map_description"`
	SessionID          *int64   `json:"session_id"`
	WidthHexes         *int     `json:"width_hexes"`
	HeightHexes        *int     `json:"height_hexes"`
	HexSizePixels      *int     `json:"hex_size_pixels"`
	HexScaleKm         *float64 `json:"hex_scale_km"`
	BackgroundImageURL *string  `json:"background_image_url"`
	IsActive           *bool    `json:"is_active"`
}

func (s *Server) handleUpdateMap(w http.ResponseWriter, r *http.Request) {
	mapID, caller, ok := mapRequest(w, r)
	if !ok {
		return
	}

	var req updateMapRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	m, err := s.Store.UpdateMap(mapID, store.MapUpdate{
		Name:               req.Name,
		Description:        req.Description,
		SessionID:          req.SessionID,
		WidthHexes:         req.WidthHexes,
		HeightHexes:        req.HeightHexes,
		HexSizePixels:      req.HexSizePixels,
		HexScaleKm:         req.HexScaleKm,
		BackgroundImageURL: req.BackgroundImageURL,
		IsActive:           req.IsActive,
	}, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, m)
}

func (s *Server) handleDeleteMap(w http.ResponseWriter, r *http.Request) {
	mapID, caller, ok := mapRequest(w, r)
	if !ok {
		return
	}

	if err := s.Store.DeleteMap(mapID, caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "deleted", "map_id": mapID})
}
