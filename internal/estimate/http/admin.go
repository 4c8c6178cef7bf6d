package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"zholkomekBack/internal/estimate/pricing"
)

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetConfig(w, r)
	case http.MethodPut:
		s.handleUpdateConfig(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	admin := adminFrom(r)
	if admin == "" {
		writeError(w, http.StatusUnauthorized, "invalid_input", "admin authentication required")
		return
	}
	var cfg pricing.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json")
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	updated, err := s.tariffs.Update(ctx, cfg, admin)
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidConfig) {
			writeError(w, http.StatusUnprocessableEntity, "invalid_config", err.Error())
			return
		}
		if s.logger != nil {
			s.logger.Errorf("tariff update failed: %v", err)
		}
		writeError(w, http.StatusInternalServerError, "invalid_config", "tariff update failed")
		return
	}

	if s.logger != nil {
		s.logger.Infof("tariff updated by %s", admin)
	}
	if s.notifier != nil {
		s.notifier.Broadcast("tariff_updated", updated)
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	admin := adminFrom(r)
	if admin == "" {
		writeError(w, http.StatusUnauthorized, "invalid_input", "admin authentication required")
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	if err := s.routes.ClearAll(ctx); err != nil {
		if s.logger != nil {
			s.logger.Errorf("route cache clear failed: %v", err)
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "cache clear failed")
		return
	}
	s.tariffs.Invalidate()

	if s.logger != nil {
		s.logger.Infof("caches cleared by %s", admin)
	}
	if s.notifier != nil {
		s.notifier.Broadcast("cache_cleared", map[string]string{"cleared_by": admin})
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
