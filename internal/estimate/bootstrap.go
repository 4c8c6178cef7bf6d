package estimate

import (
	"context"
	"net/http"

	"zholkomekBack/internal/estimate/geo"
	estimatehttp "zholkomekBack/internal/estimate/http"
	"zholkomekBack/internal/estimate/pricing"
	"zholkomekBack/internal/estimate/ratelimit"
	"zholkomekBack/internal/estimate/route"
	"zholkomekBack/internal/estimate/ws"
)

type moduleState struct {
	limiter    *ratelimit.Client
	geoClient  *geo.DGISClient
	routeCache *route.RedisCache
	resolver   *route.Resolver
	tariffs    *pricing.ConfigStore
	adminHub   *ws.AdminHub
	server     *estimatehttp.Server
}

func ensureModule(deps *EstimateDeps) (*moduleState, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	if deps.module != nil {
		return deps.module, nil
	}

	limiter := ratelimit.New(ratelimit.Options{
		MaxRetries:  deps.Config.MaxRetries,
		BackoffBase: deps.Config.BackoffBase,
	})
	if err := limiter.Register(geo.ProviderGeocoder, deps.Config.GeocoderInterval); err != nil {
		return nil, err
	}
	if err := limiter.Register(geo.ProviderRouter, deps.Config.RouterInterval); err != nil {
		return nil, err
	}

	geoClient := geo.NewDGISClient(deps.HTTPClient, limiter, deps.Config.DGISAPIKey, deps.Config.DGISRegionID, deps.Config.ProviderTimeout)
	routeCache := route.NewRedisCache(deps.RDB)
	resolver := route.NewResolver(geoClient, routeCache, deps.Logger, deps.Config.ApproxFallback)

	tariffs := pricing.NewConfigStore(deps.DB)
	if err := tariffs.EnsureSchema(context.Background()); err != nil {
		return nil, err
	}

	adminHub := ws.NewAdminHub(deps.Logger)
	server := estimatehttp.NewServer(
		estimatehttp.Config{
			CountryHint:       deps.Config.CountryHint,
			GeocodeMaxResults: deps.Config.GeocodeResults,
			PriceStep:         deps.Config.PriceStep,
		},
		deps.Logger, geoClient, resolver, tariffs, adminHub, adminHub,
	)

	deps.module = &moduleState{
		limiter:    limiter,
		geoClient:  geoClient,
		routeCache: routeCache,
		resolver:   resolver,
		tariffs:    tariffs,
		adminHub:   adminHub,
		server:     server,
	}
	return deps.module, nil
}

// RegisterEstimateRoutes wires HTTP and WebSocket routes into the provided mux.
func RegisterEstimateRoutes(mux *http.ServeMux, deps *EstimateDeps) error {
	module, err := ensureModule(deps)
	if err != nil {
		return err
	}
	module.server.Register(mux)
	return nil
}

// ShutdownEstimateModule stops the provider dispatch workers. Pending
// queued calls fail fast after this.
func ShutdownEstimateModule(deps *EstimateDeps) {
	if deps.module != nil {
		deps.module.limiter.Close()
	}
}
