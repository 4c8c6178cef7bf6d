package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"zholkomekBack/internal/estimate/pricing"
	"zholkomekBack/internal/estimate/timeutil"
)

type quoteRequest struct {
	Origin      endpointRef `json:"origin"`
	Destination endpointRef `json:"destination"`

	VehicleType      pricing.VehicleType      `json:"vehicle_type"`
	VehicleCondition pricing.VehicleCondition `json:"vehicle_condition"`
	IsLuxury         bool                     `json:"is_luxury"`
	Timing           pricing.Timing           `json:"timing"`
	HasLoad          bool                     `json:"has_load"`
	RequestTime      *time.Time               `json:"request_time,omitempty"`
	UseCache         *bool                    `json:"use_cache,omitempty"`
}

type quoteResponse struct {
	pricing.Estimate
	RecommendedPrice int `json:"recommended_price"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req quoteRequest
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

	rt, err := s.routes.Resolve(ctx, origin, destination, useCache)
	if err != nil {
		s.writeRouteError(w, err)
		return
	}

	cfg, err := s.tariffs.Get(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Errorf("tariff read failed: %v", err)
		}
		writeError(w, http.StatusInternalServerError, "invalid_config", "pricing configuration unavailable")
		return
	}

	requestTime := timeutil.Now()
	if req.RequestTime != nil && !req.RequestTime.IsZero() {
		requestTime = *req.RequestTime
	}
	input := pricing.Input{
		VehicleType:      req.VehicleType,
		VehicleCondition: req.VehicleCondition,
		IsLuxury:         req.IsLuxury,
		Timing:           req.Timing,
		HasLoad:          req.HasLoad,
		RequestTime:      requestTime,
		IsWeekend:        timeutil.IsWeekend(requestTime),
	}

	est, err := pricing.Calculate(input, rt, cfg)
	if err != nil {
		s.writePricingError(w, err)
		return
	}
	est.ID = uuid.NewString()

	writeJSON(w, http.StatusOK, quoteResponse{
		Estimate:         est,
		RecommendedPrice: pricing.RoundDownToStep(est.FinalPrice, s.cfg.PriceStep),
	})
}

func (s *Server) handleQuick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	raw := r.URL.Query().Get("distance_km")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "distance_km is required")
		return
	}
	distance, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid distance_km")
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	cfg, err := s.tariffs.Get(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Errorf("tariff read failed: %v", err)
		}
		writeError(w, http.StatusInternalServerError, "invalid_config", "pricing configuration unavailable")
		return
	}

	minPrice, maxPrice, err := pricing.QuickEstimate(distance, cfg)
	if err != nil {
		s.writePricingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"distance_km": distance,
		"min_price":   minPrice,
		"max_price":   maxPrice,
	})
}

func (s *Server) writePricingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pricing.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, pricing.ErrInvalidConfig):
		writeError(w, http.StatusUnprocessableEntity, "invalid_config", err.Error())
	default:
		if s.logger != nil {
			s.logger.Errorf("estimate failed: %v", err)
		}
		writeError(w, http.StatusInternalServerError, "invalid_input", "estimation failed")
	}
}
