package kdp

import (
	"sync"
	"time"
)

// ResolveResource returns the first resource named name, in the order the
// service listed them.
func ResolveResource(resources []Resource, name string) (Resource, bool) {
	for _, r := range resources {
		if r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}

type cacheEntry struct {
	id        uint32
	updatedAt time.Time
}

// ResourceCache remembers resolved resource ids by name so resource-scoped
// calls keep running when a later resource listing fails. Entries older
// than the TTL are ignored; a zero TTL disables the cache.
//
// ResourceCache is safe for concurrent use.
type ResourceCache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// NewResourceCache creates a cache with the given TTL.
func NewResourceCache(ttl time.Duration) *ResourceCache {
	return &ResourceCache{
		data: make(map[string]cacheEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores or replaces the id for name.
func (c *ResourceCache) Put(name string, id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[name] = cacheEntry{id: id, updatedAt: c.now()}
}

// Get returns the id for name if it was stored within the TTL.
func (c *ResourceCache) Get(name string) (uint32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.data[name]
	if !ok || c.ttl <= 0 || c.now().Sub(e.updatedAt) > c.ttl {
		return 0, false
	}
	return e.id, true
}

// Forget drops the entry for name.
func (c *ResourceCache) Forget(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, name)
}

// Evict removes entries older than now minus TTL and returns how many were removed.
func (c *ResourceCache) Evict(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := now.Add(-c.ttl)
	removed := 0
	for name, e := range c.data {
		if !e.updatedAt.After(cutoff) {
			delete(c.data, name)
			removed++
		}
	}
	return removed
}
