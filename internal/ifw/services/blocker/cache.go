package blocker

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// engineCache keeps idle engines between acquisitions. Evicting an engine is
// safe because every mutable release persists the table before unlocking.
type engineCache interface {
	Get(pkg string) (*Engine, bool)
	Put(pkg string, e *Engine)
	Remove(pkg string)
	Len() int
	Stats() (hits, misses, evictions uint64)
}

// lruEngineCache is an LRU-backed engineCache with basic metrics.
type lruEngineCache struct {
	lru       *lru.Cache[string, *Engine]
	hits      uint64
	misses    uint64
	evictions uint64
}

// disabledEngineCache always misses; every acquire reloads from the store.
type disabledEngineCache struct{}

// newEngineCache returns an LRU cache of the given capacity, or a disabled
// cache when size <= 0.
func newEngineCache(size int) (engineCache, error) {
	if size <= 0 {
		return disabledEngineCache{}, nil
	}
	var c lruEngineCache
	cache, err := lru.NewWithEvict(size, func(_ string, _ *Engine) {
		atomic.AddUint64(&c.evictions, 1)
	})
	if err != nil {
		return nil, err
	}
	c.lru = cache
	return &c, nil
}

func (c *lruEngineCache) Get(pkg string) (*Engine, bool) {
	if e, ok := c.lru.Get(pkg); ok {
		atomic.AddUint64(&c.hits, 1)
		return e, true
	}
	atomic.AddUint64(&c.misses, 1)
	return nil, false
}

func (c *lruEngineCache) Put(pkg string, e *Engine) { c.lru.Add(pkg, e) }

func (c *lruEngineCache) Remove(pkg string) { c.lru.Remove(pkg) }

func (c *lruEngineCache) Len() int { return c.lru.Len() }

func (c *lruEngineCache) Stats() (hits, misses, evictions uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses), atomic.LoadUint64(&c.evictions)
}

func (disabledEngineCache) Get(string) (*Engine, bool)      { return nil, false }
func (disabledEngineCache) Put(string, *Engine)             {}
func (disabledEngineCache) Remove(string)                   {}
func (disabledEngineCache) Len() int                        { return 0 }
func (disabledEngineCache) Stats() (uint64, uint64, uint64) { return 0, 0, 0 }

var _ engineCache = (*lruEngineCache)(nil)
var _ engineCache = disabledEngineCache{}
