package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"zholkomekBack/internal/estimate/geo"
)

const cacheKeyPrefix = "est:route:"

// RouteData is the resolved driving route between two points. Never mutated
// after creation; a changed input always produces a new value.
type RouteData struct {
	DistanceKm  float64     `json:"distance_km"`
	DurationSec int         `json:"duration_sec"`
	Geometry    []geo.Point `json:"geometry,omitempty"`
	FromCache   bool        `json:"from_cache"`
	Approximate bool        `json:"approximate,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// CacheStore persists computed routes keyed by a directional coordinate pair.
// Entries have no TTL: road distances rarely change, eviction happens through
// the admin clear action or by superseding on a forced refresh.
type CacheStore interface {
	Get(ctx context.Context, key string) (RouteData, bool, error)
	Set(ctx context.Context, key string, data RouteData) error
	DeleteAll(ctx context.Context) error
}

// CacheKey derives the cache key from origin/destination rounded to five
// decimal places (about one meter). Direction matters: A->B and B->A are
// separate entries since duration differs by direction on real roads.
func CacheKey(origin, destination geo.Point) string {
	return fmt.Sprintf("%s%.5f,%.5f|%.5f,%.5f", cacheKeyPrefix, origin.Lat, origin.Lon, destination.Lat, destination.Lon)
}

// RedisCache stores routes as JSON values in Redis.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache constructs a Redis-backed route cache.
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) (RouteData, bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return RouteData{}, false, nil
		}
		return RouteData{}, false, fmt.Errorf("route cache get: %w", err)
	}
	var data RouteData
	if err := json.Unmarshal(raw, &data); err != nil {
		// a corrupt row behaves like a miss; the next Set overwrites it
		return RouteData{}, false, nil
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, data RouteData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("route cache set: %w", err)
	}
	return c.rdb.Set(ctx, key, raw, 0).Err()
}

// DeleteAll removes every cached route. The effect of the admin
// "clear cache" action.
func (c *RedisCache) DeleteAll(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, cacheKeyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("route cache delete: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("route cache scan: %w", err)
	}
	return nil
}

// MemoryCache is a map-backed CacheStore for tests and single-process runs.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]RouteData
}

// NewMemoryCache constructs an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]RouteData)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (RouteData, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.entries[key]
	return data, ok, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, data RouteData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	return nil
}

func (c *MemoryCache) DeleteAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]RouteData)
	return nil
}
