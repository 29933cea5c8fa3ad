package data

import (
	"fmt"
	"os"
	"sync"
	"time"

	"coin-tracker/internal/model"
)

// CacheEntry represents a cached API response
type CacheEntry struct {
	Metrics   *model.CoinMetrics
	ExpiresAt time.Time
}

// ResponseCache keeps recent metrics responses in memory so repeated requests for
// the same rig inside the TTL do not hit the rate-limited API.
//
// The cache is for local development: NewResponseCache returns nil when
// API_ENV=production. A nil *ResponseCache is valid and never hits.
type ResponseCache struct {
	mu    sync.RWMutex
	store map[string]*CacheEntry
	ttl   time.Duration
	now   func() time.Time
}

// NewResponseCache returns a cache with the given TTL, or nil if ttl <= 0 or the
// process runs in production.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	if ttl <= 0 || os.Getenv("API_ENV") == "production" {
		return nil
	}
	return &ResponseCache{
		store: make(map[string]*CacheEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves a cached response if available and not expired
func (c *ResponseCache) Get(params model.RunParameters) (*model.CoinMetrics, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.store[cacheKey(params)]
	if !exists || c.now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry.Metrics, true
}

// Set stores a response and drops any expired entries.
func (c *ResponseCache) Set(params model.RunParameters, metrics *model.CoinMetrics) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.store {
		if now.After(entry.ExpiresAt) {
			delete(c.store, key)
		}
	}
	c.store[cacheKey(params)] = &CacheEntry{
		Metrics:   metrics,
		ExpiresAt: now.Add(c.ttl),
	}
}

// Clear removes all entries from the cache
func (c *ResponseCache) Clear() {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store = make(map[string]*CacheEntry)
}

func cacheKey(p model.RunParameters) string {
	return fmt.Sprintf("%d:%g:%g", p.Hashrate, p.PowerWatts, p.PowerCostPerKwh)
}
