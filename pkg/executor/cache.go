package executor

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"

	"github.com/graphmind/codegraph/pkg/metrics"
)

// DefaultCacheCapacity is the number of entries retained when no explicit
// capacity is configured.
const DefaultCacheCapacity = 100

// cacheKey identifies one memoized tool call: a project scope, the tool
// name, and the canonical (key-sorted) JSON encoding of its parameters.
type cacheKey struct {
	projectID string
	toolName  string
	paramsKey string
}

// Cache is an LRU memoization layer over tool results, keyed on
// (project_id, tool_name, canonical-json(parameters)).
type Cache struct {
	mu    sync.Mutex
	inner *lru.Cache

	hits      int64
	misses    int64
	evictions int64
}

// NewCache builds a Cache with the given capacity, defaulting to
// DefaultCacheCapacity when capacity <= 0.
func NewCache(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	c := &Cache{}
	inner, err := lru.NewWithEvict(capacity, func(key, value interface{}) {
		atomic.AddInt64(&c.evictions, 1)
		metrics.ToolCacheTotal.WithLabelValues("eviction").Inc()
	})
	if err != nil {
		return nil, err
	}
	c.inner = inner
	return c, nil
}

func canonicalParamsKey(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]any, len(params))
	for _, k := range keys {
		ordered[k] = params[k]
	}
	b, err := json.Marshal(ordered)
	if err != nil {
		return ""
	}
	return string(b)
}

// Get looks up a cached result, recording a hit or miss.
func (c *Cache) Get(projectID, toolName string, params map[string]any) (any, bool) {
	key := cacheKey{projectID: projectID, toolName: toolName, paramsKey: canonicalParamsKey(params)}

	c.mu.Lock()
	v, ok := c.inner.Get(key)
	c.mu.Unlock()

	if ok {
		atomic.AddInt64(&c.hits, 1)
		metrics.ToolCacheTotal.WithLabelValues("hit").Inc()
		return v, true
	}
	atomic.AddInt64(&c.misses, 1)
	metrics.ToolCacheTotal.WithLabelValues("miss").Inc()
	return nil, false
}

// Put stores a result in the cache.
func (c *Cache) Put(projectID, toolName string, params map[string]any, result any) {
	key := cacheKey{projectID: projectID, toolName: toolName, paramsKey: canonicalParamsKey(params)}
	c.mu.Lock()
	c.inner.Add(key, result)
	c.mu.Unlock()
}

// Clear implements clear_cache(): it purges every cached result without
// touching the running hit/miss/eviction counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.inner.Purge()
	c.mu.Unlock()
}

// Stats implements housekeeper.CacheStatsLogger.
func (c *Cache) Stats() (hits, misses, evictions int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses), atomic.LoadInt64(&c.evictions)
}

// HitRate returns hits / (hits + misses), or 0 when there have been no
// lookups yet.
func (c *Cache) HitRate() float64 {
	hits, misses, _ := c.Stats()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Len()
}
