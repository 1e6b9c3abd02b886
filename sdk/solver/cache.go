package solver

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// EvictionPolicy selects how the cache chooses victims at capacity.
type EvictionPolicy uint8

const (
	EvictLRU EvictionPolicy = iota
	EvictLFU
	EvictFIFO
)

func (p EvictionPolicy) String() string {
	switch p {
	case EvictLRU:
		return "lru"
	case EvictLFU:
		return "lfu"
	case EvictFIFO:
		return "fifo"
	default:
		return "unknown"
	}
}

// CacheStats reports hit/miss accounting for a cache instance.
type CacheStats struct {
	Hits         int64
	Misses       int64
	Evictions    int64
	CurrentSize  int
	PeakSize     int
	TotalGetTime time.Duration
	GetCount     int64
}

// HitRate returns hits / (hits + misses), or 0 before any access.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// AverageGetLatency returns the mean wall time of Get calls.
func (s CacheStats) AverageGetLatency() time.Duration {
	if s.GetCount == 0 {
		return 0
	}
	return s.TotalGetTime / time.Duration(s.GetCount)
}

type cacheEntry struct {
	key       string
	rec       *InfoSet
	frequency int64
	elem      *list.Element
}

// Cache fronts the infoset store with a bounded map of hot records. The
// betting tree revisits a small working set of infosets far more often than
// the long tail, so a few thousand slots absorb most lookups.
type Cache struct {
	mu       sync.Mutex
	capacity int
	policy   EvictionPolicy
	entries  map[string]*cacheEntry
	order    *list.List // recency for LRU, insertion for FIFO
	stats    CacheStats
}

// BatchResult reports the outcome of a BatchGet.
type BatchResult struct {
	Found   map[string]*InfoSet
	Missing []string
	HitRate float64
}

// NewCache creates a cache with the given capacity and eviction policy.
func NewCache(capacity int, policy EvictionPolicy) (*Cache, error) {
	if capacity <= 0 {
		return nil, errors.New("cache capacity must be > 0")
	}
	return &Cache{
		capacity: capacity,
		policy:   policy,
		entries:  make(map[string]*cacheEntry, capacity),
		order:    list.New(),
	}, nil
}

// Get returns the cached record for a key, recording the access for the
// eviction ordering.
func (c *Cache) Get(key string) (*InfoSet, bool) {
	start := time.Now()
	c.mu.Lock()
	defer func() {
		c.stats.TotalGetTime += time.Since(start)
		c.stats.GetCount++
		c.mu.Unlock()
	}()

	entry, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	c.touch(entry)
	return entry.rec, true
}

// Put inserts or refreshes a record, evicting per policy at capacity.
func (c *Cache) Put(key string, rec *InfoSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(key, rec)
}

func (c *Cache) put(key string, rec *InfoSet) {
	if entry, ok := c.entries[key]; ok {
		entry.rec = rec
		c.touch(entry)
		return
	}
	if len(c.entries) >= c.capacity {
		c.evict()
	}
	entry := &cacheEntry{key: key, rec: rec, frequency: 1}
	entry.elem = c.order.PushFront(entry)
	c.entries[key] = entry
	if len(c.entries) > c.stats.PeakSize {
		c.stats.PeakSize = len(c.entries)
	}
}

// touch records an access under the active policy.
func (c *Cache) touch(entry *cacheEntry) {
	entry.frequency++
	if c.policy == EvictLRU {
		c.order.MoveToFront(entry.elem)
	}
	// FIFO keeps insertion order; LFU uses the frequency counter.
}

func (c *Cache) evict() {
	var victim *cacheEntry
	switch c.policy {
	case EvictLFU:
		for _, entry := range c.entries {
			if victim == nil || entry.frequency < victim.frequency {
				victim = entry
			}
		}
	default: // LRU and FIFO both evict the back of the list.
		if back := c.order.Back(); back != nil {
			victim = back.Value.(*cacheEntry)
		}
	}
	if victim == nil {
		return
	}
	c.order.Remove(victim.elem)
	delete(c.entries, victim.key)
	c.stats.Evictions++
}

// BatchGet looks up many keys at once and reports the split between found
// and missing along with the batch hit rate.
func (c *Cache) BatchGet(keys []string) BatchResult {
	res := BatchResult{Found: make(map[string]*InfoSet, len(keys))}
	for _, key := range keys {
		if rec, ok := c.Get(key); ok {
			res.Found[key] = rec
		} else {
			res.Missing = append(res.Missing, key)
		}
	}
	if len(keys) > 0 {
		res.HitRate = float64(len(res.Found)) / float64(len(keys))
	}
	return res
}

// BatchPut inserts many records under one lock acquisition.
func (c *Cache) BatchPut(records map[string]*InfoSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, rec := range records {
		c.put(key, rec)
	}
}

// Len returns the live entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a copy of the counters with the current size filled in.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}
