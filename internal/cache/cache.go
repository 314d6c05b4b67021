// Package cache implements the result cache (C8): a TTL'd, upsertable
// store with at-most-one-concurrent-compute per key and a periodic
// sweep for expired entries. Storage and the hit/miss/cost counters
// are delegated to ristretto; every entry is stored at cost 1, so the
// size that Stats reports counts entries, not bytes. Pattern
// invalidation and the sweep need a sidecar index of keys, since
// ristretto does not expose iteration.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"

	"github.com/lakeql/nlsearch/internal/domain"
)

const defaultTTL = 300 * time.Second
const sweepInterval = 30 * time.Second

// Stats mirrors spec's stats() operation.
type Stats struct {
	Hits         int64
	Misses       int64
	Entries      int
	BytesApprox  int64 // ristretto cost added minus evicted; one unit per entry, not bytes
}

// Cache is the result cache. A nil store (ristretto init failure)
// degrades every operation to a no-op per the module's documented
// failure mode.
type Cache struct {
	store *ristretto.Cache
	sf    singleflight.Group

	mu   sync.Mutex
	keys map[string]string // cache key -> normalized query, for pattern invalidation

	defaultTTL time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a Cache bounded at roughly maxEntries items. Construction
// failure degrades to a cache that always misses, never panics.
func New(maxEntries int64) *Cache {
	if maxEntries <= 0 {
		maxEntries = 10_000
	}
	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		store = nil
	}

	c := &Cache{
		store:      store,
		keys:       make(map[string]string),
		defaultTTL: defaultTTL,
		stopCh:     make(chan struct{}),
	}
	c.wg.Add(1)
	go c.sweepLoop()
	return c
}

// Close stops the background sweep goroutine.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// Get returns the cached Result for key, or (zero, false) on miss,
// including an entry whose TTL has lapsed.
func (c *Cache) Get(key string) (domain.Result, bool) {
	entry, ok := c.getEntry(key)
	if !ok {
		return domain.Result{}, false
	}
	return entry.Payload, true
}

func (c *Cache) getEntry(key string) (domain.CacheEntry, bool) {
	if c.store == nil {
		return domain.CacheEntry{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	raw, found := c.store.Get(key)
	if !found {
		return domain.CacheEntry{}, false
	}
	entry := raw.(domain.CacheEntry)
	if !entry.ExpiresAt.After(time.Now()) {
		c.store.Del(key)
		delete(c.keys, key)
		return domain.CacheEntry{}, false
	}

	entry.HitCount++
	entry.LastAccess = time.Now()
	c.store.SetWithTTL(key, entry, 1, time.Until(entry.ExpiresAt))
	return entry, true
}

// Put upserts value under key, either inserting a fresh entry or
// bumping hit_count on an existing one, with the given ttl (zero means
// the cache default).
func (c *Cache) Put(key, normalizedQuery string, value domain.Result, ttl time.Duration) {
	if c.store == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	entry := domain.CacheEntry{
		Key:             key,
		Payload:         value,
		ExpiresAt:       now.Add(ttl),
		CreatedAt:       now,
		LastAccess:      now,
		HitCount:        1,
		TotalRows:       value.RowCount,
		ExecutionTimeMS: value.ExecutionTimeMS,
	}
	if raw, found := c.store.Get(key); found {
		existing := raw.(domain.CacheEntry)
		entry.HitCount = existing.HitCount + 1
		entry.CreatedAt = existing.CreatedAt
	}

	c.store.SetWithTTL(key, entry, 1, ttl)
	c.store.Wait() // ristretto applies sets asynchronously; force visibility before returning.
	c.keys[key] = normalizedQuery
}

// GetOrCompute implements at-most-one-concurrent-compute per key: on a
// miss, exactly one caller runs compute; concurrent callers for the
// same key wait for that result (or their own ctx deadline, whichever
// comes first) and then serve from it.
func (c *Cache) GetOrCompute(ctx context.Context, key, normalizedQuery string, ttl time.Duration, compute func(ctx context.Context) (domain.Result, error)) (domain.Result, bool, error) {
	if result, ok := c.Get(key); ok {
		return result, true, nil
	}

	resCh := c.sf.DoChan(key, func() (any, error) {
		result, err := compute(ctx)
		if err != nil {
			return domain.Result{}, err
		}
		c.Put(key, normalizedQuery, result, ttl)
		return result, nil
	})

	select {
	case <-ctx.Done():
		return domain.Result{}, false, ctx.Err()
	case r := <-resCh:
		if r.Err != nil {
			return domain.Result{}, false, r.Err
		}
		return r.Val.(domain.Result), false, nil
	}
}

// Invalidate removes every entry whose normalized query contains
// pattern as a substring.
func (c *Cache) Invalidate(pattern string) int {
	if c.store == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, nq := range c.keys {
		if strings.Contains(nq, pattern) {
			c.store.Del(key)
			delete(c.keys, key)
			removed++
		}
	}
	return removed
}

// Cleanup removes expired entries, counting those ristretto has already
// dropped on its own TTL. It is safe to call directly (e.g. from a
// test); the background sweep loop calls it on a timer.
func (c *Cache) Cleanup() int {
	if c.store == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := time.Now()
	for key := range c.keys {
		raw, found := c.store.Get(key)
		if !found {
			delete(c.keys, key)
			removed++
			continue
		}
		entry := raw.(domain.CacheEntry)
		if !entry.ExpiresAt.After(now) {
			c.store.Del(key)
			delete(c.keys, key)
			removed++
		}
	}
	return removed
}

// Stats reports hit/miss counters and an approximate size. Hits and
// Misses count every ristretto lookup, including the ones Put and
// Cleanup make internally.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	entries := len(c.keys)
	c.mu.Unlock()

	if c.store == nil {
		return Stats{Entries: entries}
	}
	m := c.store.Metrics
	return Stats{
		Hits:        int64(m.Hits()),
		Misses:      int64(m.Misses()),
		Entries:     entries,
		BytesApprox: int64(m.CostAdded()) - int64(m.CostEvicted()),
	}
}

func (c *Cache) sweepLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.stopCh:
			return
		}
	}
}
