package http

import (
	"context"
	"net/http"

	"zholkomekBack/internal/estimate/geo"
	"zholkomekBack/internal/estimate/pricing"
	"zholkomekBack/internal/estimate/route"
)

// Config is the subset of runtime configuration required by the HTTP
// handlers.
type Config struct {
	CountryHint       string
	GeocodeMaxResults int
	PriceStep         int
}

// Logger captures the logging contract required by the server.
type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// Geocoder resolves free-form addresses to coordinate candidates.
type Geocoder interface {
	Geocode(ctx context.Context, query, countryHint string, maxResults int) ([]geo.LocationPoint, error)
}

// RouteResolver produces routes between two points, cache-aware.
type RouteResolver interface {
	Resolve(ctx context.Context, origin, destination geo.Point, useCache bool) (route.RouteData, error)
	ClearAll(ctx context.Context) error
}

// TariffStore reads and writes the pricing configuration.
type TariffStore interface {
	Get(ctx context.Context) (pricing.Config, error)
	Update(ctx context.Context, cfg pricing.Config, updatedBy string) (pricing.Config, error)
	Invalidate()
}

// Notifier pushes admin-facing events; satisfied by the ws hub.
type Notifier interface {
	Broadcast(event string, payload interface{})
}

// WSHandler serves websocket upgrade requests for admin sessions.
type WSHandler interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// Server provides HTTP handlers for the trip estimation domain.
type Server struct {
	cfg      Config
	logger   Logger
	geocoder Geocoder
	routes   RouteResolver
	tariffs  TariffStore
	notifier Notifier
	wsHub    WSHandler
}

// NewServer constructs a Server instance.
func NewServer(cfg Config, logger Logger, geocoder Geocoder, routes RouteResolver, tariffs TariffStore, notifier Notifier, wsHub WSHandler) *Server {
	if cfg.GeocodeMaxResults <= 0 {
		cfg.GeocodeMaxResults = 5
	}
	if cfg.PriceStep <= 0 {
		cfg.PriceStep = 50
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		geocoder: geocoder,
		routes:   routes,
		tariffs:  tariffs,
		notifier: notifier,
		wsHub:    wsHub,
	}
}

// Register mounts estimation routes on the mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/estimate/geocode", s.handleGeocode)
	mux.HandleFunc("/api/v1/estimate/route", s.handleRoute)
	mux.HandleFunc("/api/v1/estimate/quote", s.handleQuote)
	mux.HandleFunc("/api/v1/estimate/quick", s.handleQuick)
	mux.HandleFunc("/api/v1/estimate/config", s.handleConfig)
	mux.HandleFunc("/api/v1/estimate/cache/clear", s.handleClearCache)
	if s.wsHub != nil {
		mux.HandleFunc("/ws/estimate/admin", s.wsHub.ServeWS)
	}
}
