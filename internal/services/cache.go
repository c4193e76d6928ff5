package services

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"xui-fleet/internal/constants"
	"xui-fleet/internal/metrics"
)

// CacheKind names an expensive endpoint whose results are cached per server
type CacheKind string

const (
	KindClients  CacheKind = "clients"
	KindInbounds CacheKind = "inbounds_list"
	KindOnlines  CacheKind = "onlines"
)

// ResponseCache is a time boxed read-through cache keyed by (server, kind)
type ResponseCache struct {
	cache   *cache.Cache
	metrics *metrics.Metrics
	logger  *logrus.Logger

	// generations stop a load that raced with Invalidate from storing its stale result
	mu          sync.Mutex
	generations map[string]uint64
}

// NewResponseCache creates an empty response cache
func NewResponseCache(m *metrics.Metrics, logger *logrus.Logger) *ResponseCache {
	return &ResponseCache{
		cache:       cache.New(cache.NoExpiration, constants.CacheCleanupInterval*time.Minute),
		metrics:     m,
		logger:      logger,
		generations: make(map[string]uint64),
	}
}

func cacheKey(sid string, kind CacheKind) string {
	return string(kind) + ":" + sid
}

// Invalidate drops the (sid, kind) entry. Other servers and kinds are untouched.
func (c *ResponseCache) Invalidate(sid string, kind CacheKind) {
	key := cacheKey(sid, kind)

	c.mu.Lock()
	c.generations[key]++
	c.cache.Delete(key)
	c.mu.Unlock()

	c.logger.Debugf("Invalidated cache entry %s", key)
}

func (c *ResponseCache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key]
}

func (c *ResponseCache) store(key string, gen uint64, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[key] != gen {
		return
	}
	c.cache.Set(key, value, ttl)
}

// Load returns the cached value for (sid, kind) or calls loader on a miss and
// keeps its result for ttl. Errors are never cached; a ttl of zero disables
// caching for the call.
func Load[T any](c *ResponseCache, sid string, kind CacheKind, ttl time.Duration, loader func() (T, error)) (T, error) {
	key := cacheKey(sid, kind)

	if cached, found := c.cache.Get(key); found {
		if value, ok := cached.(T); ok {
			c.metrics.ObserveCache(string(kind), true)
			return value, nil
		}
		c.logger.Warnf("Unexpected type cached under %s, reloading", key)
	}
	c.metrics.ObserveCache(string(kind), false)

	gen := c.generation(key)
	value, err := loader()
	if err != nil {
		var zero T
		return zero, err
	}

	if ttl > 0 {
		c.store(key, gen, value, ttl)
	}
	return value, nil
}
