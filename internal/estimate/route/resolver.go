package route

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"zholkomekBack/internal/estimate/geo"
)

// ErrRouteUnavailable is returned when the routing provider is unreachable
// after the rate-limited client's retry budget.
var ErrRouteUnavailable = errors.New("route: routing provider unavailable")

// Logger is the minimal logger interface required by the resolver.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Provider computes a driving route between two points. Satisfied by
// geo.DGISClient.
type Provider interface {
	Route(ctx context.Context, origin, destination geo.Point) (distanceM, durationS int, geometry []geo.Point, err error)
}

type inflightCall struct {
	done chan struct{}
	data RouteData
	err  error
}

// Resolver returns routes for ordered (origin, destination) pairs,
// consulting the cache before the provider. Concurrent resolves for the
// same key are coalesced into a single provider call.
type Resolver struct {
	provider Provider
	cache    CacheStore
	logger   Logger

	// allowApproximate enables a great-circle fallback when the provider is
	// down. The fallback result is flagged Approximate and never cached.
	allowApproximate bool

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

// NewResolver constructs a Resolver.
func NewResolver(provider Provider, cache CacheStore, logger Logger, allowApproximate bool) *Resolver {
	return &Resolver{
		provider:         provider,
		cache:            cache,
		logger:           logger,
		allowApproximate: allowApproximate,
		inflight:         make(map[string]*inflightCall),
	}
}

// Resolve returns the route from origin to destination. With useCache a live
// cached entry is returned with FromCache set; otherwise the provider is
// called and the cache entry superseded.
func (r *Resolver) Resolve(ctx context.Context, origin, destination geo.Point, useCache bool) (RouteData, error) {
	if !origin.Valid() || !destination.Valid() {
		return RouteData{}, fmt.Errorf("route: coordinates out of range")
	}
	key := CacheKey(origin, destination)

	if useCache {
		data, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Errorf("route: cache read %s: %v", key, err)
		} else if ok {
			data.FromCache = true
			return data, nil
		}
	}

	if !useCache {
		// forced refresh always hits the provider
		return r.fetchAndStore(ctx, key, origin, destination)
	}

	r.mu.Lock()
	if call, ok := r.inflight[key]; ok {
		r.mu.Unlock()
		select {
		case <-call.done:
			return call.data, call.err
		case <-ctx.Done():
			return RouteData{}, ctx.Err()
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	r.inflight[key] = call
	r.mu.Unlock()

	call.data, call.err = r.fetchAndStore(ctx, key, origin, destination)
	close(call.done)

	r.mu.Lock()
	delete(r.inflight, key)
	r.mu.Unlock()

	return call.data, call.err
}

// ClearAll drops every cached route.
func (r *Resolver) ClearAll(ctx context.Context) error {
	return r.cache.DeleteAll(ctx)
}

func (r *Resolver) fetchAndStore(ctx context.Context, key string, origin, destination geo.Point) (RouteData, error) {
	distanceM, durationS, geometry, err := r.provider.Route(ctx, origin, destination)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return RouteData{}, err
		}
		r.logger.Errorf("route: provider failed for %s: %v", key, err)
		if r.allowApproximate {
			return approximateRoute(origin, destination), nil
		}
		return RouteData{}, fmt.Errorf("%s: %w", key, ErrRouteUnavailable)
	}

	data := RouteData{
		DistanceKm:  float64(distanceM) / 1000.0,
		DurationSec: durationS,
		Geometry:    geometry,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.cache.Set(ctx, key, data); err != nil {
		// a failed write costs one extra provider call later, nothing more
		r.logger.Errorf("route: cache write %s: %v", key, err)
	}
	return data, nil
}

// approximateRoute builds a great-circle estimate, clearly flagged so
// callers never mistake it for a road route.
func approximateRoute(origin, destination geo.Point) RouteData {
	const assumedSpeedKmh = 40.0
	km := haversineKm(origin, destination)
	return RouteData{
		DistanceKm:  km,
		DurationSec: int(km / assumedSpeedKmh * 3600),
		Geometry:    []geo.Point{origin, destination},
		Approximate: true,
		CreatedAt:   time.Now().UTC(),
	}
}

// haversineKm returns the great-circle distance between two points in km.
func haversineKm(a, b geo.Point) float64 {
	const earthRadiusKm = 6371.0
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
