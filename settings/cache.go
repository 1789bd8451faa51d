package settings

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
)

const defaultCacheSize = 1024

type cacheEntry struct {
	resolved *Resolved
	deadline time.Time
}

// Cache holds resolved composites per chain object. Entries expire after the
// configured TTL; writes to a settings record additionally invalidate the
// owning object's entry explicitly. The cache is injected into the Resolver,
// it is not ambient process state.
type Cache struct {
	arc *lru.ARCCache
	ttl time.Duration
	now func() time.Time
}

func NewCache(size int, ttl time.Duration) (*Cache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	arc, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}
	return &Cache{arc: arc, ttl: ttl, now: time.Now}, nil
}

func (c *Cache) Get(key string) (*Resolved, bool) {
	v, ok := c.arc.Get(key)
	if !ok {
		return nil, false
	}
	entry := v.(cacheEntry)
	if c.now().After(entry.deadline) {
		c.arc.Remove(key)
		return nil, false
	}
	return entry.resolved, true
}

func (c *Cache) Put(key string, resolved *Resolved) {
	c.arc.Add(key, cacheEntry{resolved: resolved, deadline: c.now().Add(c.ttl)})
}

func (c *Cache) Invalidate(key string) {
	c.arc.Remove(key)
}

func (c *Cache) Purge() {
	c.arc.Purge()
}
