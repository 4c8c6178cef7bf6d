package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"zholkomekBack/internal/estimate/route"
)

type routeRequest struct {
	Origin      endpointRef `json:"origin"`
	Destination endpointRef `json:"destination"`
	UseCache    *bool       `json:"use_cache,omitempty"`
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json")
		return
	}

	origin, ok := s.resolvePoint(w, r, req.Origin, "origin")
	if !ok {
		return
	}
	destination, ok := s.resolvePoint(w, r, req.Destination, "destination")
	if !ok {
		return
	}

	useCache := true
	if req.UseCache != nil {
		useCache = *req.UseCache
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	data, err := s.routes.Resolve(ctx, origin, destination, useCache)
	if err != nil {
		s.writeRouteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) writeRouteError(w http.ResponseWriter, err error) {
	if errors.Is(err, route.ErrRouteUnavailable) {
		writeError(w, http.StatusBadGateway, "route_unavailable", "no route between the given points")
		return
	}
	if s.logger != nil {
		s.logger.Errorf("route resolve failed: %v", err)
	}
	writeError(w, http.StatusBadGateway, "route_unavailable", "routing failed")
}
