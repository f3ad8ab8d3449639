package roadsnap

import (
	"context"
	"fmt"
	"sync"

	"livetrack.fleetops.io/internal/models"
)

// DefaultCacheSize bounds the snapped-path cache.
const DefaultCacheSize = 100

// Cache is a bounded path cache with oldest-insertion eviction. Geometry
// between two fixed points does not change, so entries never expire.
type Cache struct {
	mu      sync.Mutex
	max     int
	entries map[string][]models.LatLng
	order   []string
}

// NewCache creates a cache holding at most max paths.
func NewCache(max int) *Cache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &Cache{max: max, entries: make(map[string][]models.LatLng, max)}
}

// CacheKey identifies an endpoint pair with coordinates rounded to five
// decimal places, so near-identical lookups share one entry.
func CacheKey(from, to models.LatLng) string {
	return fmt.Sprintf("%.5f,%.5f-%.5f,%.5f", from.Lat, from.Lon, to.Lat, to.Lon)
}

// Get returns the cached path for the key, if present.
func (c *Cache) Get(key string) ([]models.LatLng, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	path, ok := c.entries[key]
	return path, ok
}

// Put stores a path, evicting the oldest inserted entry once full.
func (c *Cache) Put(key string, path []models.LatLng) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		c.entries[key] = path
		return
	}
	if len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = path
	c.order = append(c.order, key)
}

// Len returns the number of cached paths.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Snapper is the lookup interface the cache wraps.
type Snapper interface {
	SnapPath(ctx context.Context, from, to models.LatLng) ([]models.LatLng, error)
}

// CachingSnapper memoizes successful lookups from an inner Snapper.
// Failures are not cached; a later attempt may succeed.
type CachingSnapper struct {
	inner Snapper
	cache *Cache
}

// NewCachingSnapper wraps a Snapper with a bounded path cache.
func NewCachingSnapper(inner Snapper, cacheSize int) *CachingSnapper {
	return &CachingSnapper{inner: inner, cache: NewCache(cacheSize)}
}

// SnapPath looks up the cache first and falls through to the inner
// snapper, caching any successful result.
func (s *CachingSnapper) SnapPath(ctx context.Context, from, to models.LatLng) ([]models.LatLng, error) {
	key := CacheKey(from, to)
	if path, ok := s.cache.Get(key); ok {
		return path, nil
	}
	path, err := s.inner.SnapPath(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.cache.Put(key, path)
	return path, nil
}
