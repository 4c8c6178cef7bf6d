package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"zholkomekBack/internal/estimate/geo"
	"zholkomekBack/internal/estimate/ratelimit"
)

type geocodeRequest struct {
	Query       string `json:"query"`
	CountryHint string `json:"country_hint,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"`
}

type geocodeResponse struct {
	Query      string              `json:"query"`
	Candidates []geo.LocationPoint `json:"candidates"`
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req geocodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "invalid_query", "query is required")
		return
	}
	hint := req.CountryHint
	if hint == "" {
		hint = s.cfg.CountryHint
	}
	max := req.MaxResults
	if max <= 0 || max > s.cfg.GeocodeMaxResults {
		max = s.cfg.GeocodeMaxResults
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	candidates, err := s.geocoder.Geocode(ctx, req.Query, hint, max)
	if err != nil {
		s.writeGeoError(w, err)
		return
	}
	if len(candidates) == 0 {
		writeError(w, http.StatusNotFound, "no_geocode_match", "no match for address")
		return
	}
	writeJSON(w, http.StatusOK, geocodeResponse{Query: req.Query, Candidates: candidates})
}

// endpointRef names either an exact point or a free-form address to be
// geocoded. Exactly one of the two must be set.
type endpointRef struct {
	Point   *geo.Point `json:"point,omitempty"`
	Address string     `json:"address,omitempty"`
}

type ambiguousPayload struct {
	Address    string              `json:"address"`
	Candidates []geo.LocationPoint `json:"candidates"`
}

// resolvePoint turns an endpoint reference into a single point. Ambiguity
// is never resolved silently: more than one geocode candidate is reported
// back to the caller as a conflict.
func (s *Server) resolvePoint(w http.ResponseWriter, r *http.Request, ref endpointRef, field string) (geo.Point, bool) {
	if ref.Point != nil {
		if !ref.Point.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_input", field+" coordinates out of range")
			return geo.Point{}, false
		}
		return *ref.Point, true
	}
	address := strings.TrimSpace(ref.Address)
	if address == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", field+" requires point or address")
		return geo.Point{}, false
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	candidates, err := s.geocoder.Geocode(ctx, address, s.cfg.CountryHint, s.cfg.GeocodeMaxResults)
	if err != nil {
		s.writeGeoError(w, err)
		return geo.Point{}, false
	}
	switch len(candidates) {
	case 0:
		writeError(w, http.StatusNotFound, "no_geocode_match", "no match for "+field+" address")
		return geo.Point{}, false
	case 1:
		return candidates[0].Point, true
	default:
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":   "ambiguous_geocode",
			"message": field + " address is ambiguous",
			"details": ambiguousPayload{Address: address, Candidates: candidates},
		})
		return geo.Point{}, false
	}
}

func (s *Server) writeGeoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, geo.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
	case ratelimit.IsTransient(err):
		writeError(w, http.StatusBadGateway, "provider_unavailable", "geocoding provider unavailable")
	default:
		if s.logger != nil {
			s.logger.Errorf("geocode failed: %v", err)
		}
		writeError(w, http.StatusBadGateway, "provider_unavailable", "geocoding failed")
	}
}
