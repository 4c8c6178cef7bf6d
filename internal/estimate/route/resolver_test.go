package route

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"zholkomekBack/internal/estimate/geo"
)

type testLogger struct{}

func (testLogger) Infof(string, ...interface{})  {}
func (testLogger) Errorf(string, ...interface{}) {}

type stubProvider struct {
	mu       sync.Mutex
	calls    int32
	distance int
	duration int
	err      error
	block    chan struct{} // when set, Route waits until closed
}

func (s *stubProvider) Route(ctx context.Context, origin, destination geo.Point) (int, int, []geo.Point, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return 0, 0, nil, s.err
	}
	return s.distance, s.duration, []geo.Point{origin, destination}, nil
}

var (
	pointA = geo.Point{Lat: 43.25654, Lon: 76.92848}
	pointB = geo.Point{Lat: 43.23512, Lon: 76.90990}
)

func TestResolveCacheIdempotence(t *testing.T) {
	provider := &stubProvider{distance: 15300, duration: 1260}
	r := NewResolver(provider, NewMemoryCache(), testLogger{}, false)

	first, err := r.Resolve(context.Background(), pointA, pointB, true)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if first.FromCache {
		t.Fatal("first resolve must not come from cache")
	}

	second, err := r.Resolve(context.Background(), pointA, pointB, true)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if !second.FromCache {
		t.Fatal("second resolve must come from cache")
	}
	if second.DistanceKm != first.DistanceKm || second.DurationSec != first.DurationSec {
		t.Fatalf("cached route differs: %+v vs %+v", second, first)
	}
	if got := atomic.LoadInt32(&provider.calls); got != 1 {
		t.Fatalf("expected exactly 1 provider call, got %d", got)
	}
}

func TestResolveDirectional(t *testing.T) {
	provider := &stubProvider{distance: 1000, duration: 100}
	r := NewResolver(provider, NewMemoryCache(), testLogger{}, false)

	if _, err := r.Resolve(context.Background(), pointA, pointB, true); err != nil {
		t.Fatalf("resolve A->B: %v", err)
	}
	back, err := r.Resolve(context.Background(), pointB, pointA, true)
	if err != nil {
		t.Fatalf("resolve B->A: %v", err)
	}
	if back.FromCache {
		t.Fatal("reverse direction must not reuse the forward cache entry")
	}
	if got := atomic.LoadInt32(&provider.calls); got != 2 {
		t.Fatalf("expected 2 provider calls, got %d", got)
	}
}

func TestResolveForcedRefreshSupersedes(t *testing.T) {
	provider := &stubProvider{distance: 1000, duration: 100}
	cache := NewMemoryCache()
	r := NewResolver(provider, cache, testLogger{}, false)

	if _, err := r.Resolve(context.Background(), pointA, pointB, true); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	provider.distance = 2000
	fresh, err := r.Resolve(context.Background(), pointA, pointB, false)
	if err != nil {
		t.Fatalf("forced refresh: %v", err)
	}
	if fresh.FromCache {
		t.Fatal("forced refresh must not be served from cache")
	}
	if fresh.DistanceKm != 2.0 {
		t.Fatalf("expected refreshed distance 2.0, got %v", fresh.DistanceKm)
	}

	cached, err := r.Resolve(context.Background(), pointA, pointB, true)
	if err != nil {
		t.Fatalf("read after refresh: %v", err)
	}
	if !cached.FromCache || cached.DistanceKm != 2.0 {
		t.Fatalf("cache entry was not superseded: %+v", cached)
	}
}

func TestResolveSingleFlight(t *testing.T) {
	provider := &stubProvider{distance: 1000, duration: 100, block: make(chan struct{})}
	r := NewResolver(provider, NewMemoryCache(), testLogger{}, false)

	const concurrent = 8
	var wg sync.WaitGroup
	errs := make([]error, concurrent)
	for i := 0; i < concurrent; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = r.Resolve(context.Background(), pointA, pointB, true)
		}()
	}

	// let all goroutines reach the resolver before releasing the provider;
	// without coalescing each would issue its own call
	for atomic.LoadInt32(&provider.calls) == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	close(provider.block)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&provider.calls); got != 1 {
		t.Fatalf("expected coalesced single provider call, got %d", got)
	}
}

func TestResolveUnavailable(t *testing.T) {
	provider := &stubProvider{err: errors.New("http 503: down")}
	r := NewResolver(provider, NewMemoryCache(), testLogger{}, false)

	_, err := r.Resolve(context.Background(), pointA, pointB, true)
	if !errors.Is(err, ErrRouteUnavailable) {
		t.Fatalf("expected ErrRouteUnavailable, got %v", err)
	}
}

func TestResolveApproximateFallback(t *testing.T) {
	provider := &stubProvider{err: errors.New("http 503: down")}
	cache := NewMemoryCache()
	r := NewResolver(provider, cache, testLogger{}, true)

	data, err := r.Resolve(context.Background(), pointA, pointB, true)
	if err != nil {
		t.Fatalf("resolve with fallback: %v", err)
	}
	if !data.Approximate {
		t.Fatal("fallback route must be flagged approximate")
	}
	if data.FromCache {
		t.Fatal("fallback route must not claim cache origin")
	}
	if data.DistanceKm <= 0 {
		t.Fatalf("expected positive great-circle distance, got %v", data.DistanceKm)
	}

	// approximations must never be cached
	if _, ok, _ := cache.Get(context.Background(), CacheKey(pointA, pointB)); ok {
		t.Fatal("approximate route was written to the cache")
	}
}

func TestResolveInvalidCoordinates(t *testing.T) {
	r := NewResolver(&stubProvider{}, NewMemoryCache(), testLogger{}, false)
	if _, err := r.Resolve(context.Background(), geo.Point{Lat: 91}, pointB, true); err == nil {
		t.Fatal("expected error for invalid origin")
	}
}

func TestClearAll(t *testing.T) {
	provider := &stubProvider{distance: 1000, duration: 100}
	r := NewResolver(provider, NewMemoryCache(), testLogger{}, false)

	if _, err := r.Resolve(context.Background(), pointA, pointB, true); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := r.ClearAll(context.Background()); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	data, err := r.Resolve(context.Background(), pointA, pointB, true)
	if err != nil {
		t.Fatalf("resolve after clear: %v", err)
	}
	if data.FromCache {
		t.Fatal("cache should be empty after ClearAll")
	}
	if got := atomic.LoadInt32(&provider.calls); got != 2 {
		t.Fatalf("expected 2 provider calls, got %d", got)
	}
}

func TestHaversine(t *testing.T) {
	// Almaty to Astana, roughly 970 km great-circle
	almaty := geo.Point{Lat: 43.238949, Lon: 76.889709}
	astana := geo.Point{Lat: 51.169392, Lon: 71.449074}
	km := haversineKm(almaty, astana)
	if km < 940 || km > 1000 {
		t.Fatalf("unexpected great-circle distance: %v km", km)
	}
}
