package enginestatus

import (
	"sync"
	"time"
)

// Cache stores engine status entries with an expiry. Implementations may
// back onto any storage medium; expired entries read as absent.
type Cache interface {
	Get(key string) (Status, bool)
	Set(key string, value Status, ttl time.Duration)
	Invalidate(key string)
}

type cacheEntry struct {
	value  Status
	expiry time.Time
}

// MemoryCache is the in-process Cache used by default.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewMemoryCache constructs an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached status when present and not expired.
func (c *MemoryCache) Get(key string) (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return Status{}, false
	}
	if c.now().After(entry.expiry) {
		delete(c.entries, key)
		return Status{}, false
	}
	return entry.value, true
}

// Set stores a status with the given ttl.
func (c *MemoryCache) Set(key string, value Status, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiry: c.now().Add(ttl)}
}

// Invalidate removes a cached status.
func (c *MemoryCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
