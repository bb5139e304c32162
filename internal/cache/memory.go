package cache

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/actuallystonmai/availability-service/internal/metrics"
)

const (
	DefaultTTL        = 30 * time.Minute
	DefaultMaxEntries = 1000

	// Share of entries dropped, oldest first, when a write hits the cap and
	// purging expired entries did not free a slot.
	evictFraction = 0.2
)

type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

func (e entry[V]) expired(now time.Time) bool {
	return !now.Before(e.storedAt.Add(e.ttl))
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Size       int     `json:"size"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Evictions  int64   `json:"evictions"`
	HitRate    float64 `json:"hit_rate"`
}

// EntryInfo describes one stored entry for diagnostics.
type EntryInfo struct {
	Key       string        `json:"key"`
	StoredAt  time.Time     `json:"stored_at"`
	Age       time.Duration `json:"age"`
	TTL       time.Duration `json:"ttl"`
	ExpiresIn time.Duration `json:"expires_in"`
	Expired   bool          `json:"expired"`
}

type options struct {
	ttl          time.Duration
	maxEntries   int
	now          func() time.Time
	instrumented bool
}

// Option configures a Cache.
type Option func(*options)

// WithTTL sets the TTL used by Set.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithMaxEntries caps the number of stored entries.
func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMetrics reports this cache's hits, misses, evictions and size to Prometheus.
func WithMetrics() Option {
	return func(o *options) { o.instrumented = true }
}

// Cache is a thread-safe, size-bounded, TTL-expiring key/value store.
//
// Expired entries are removed lazily by the Get that finds them, by Sweep, or
// by a write that needs room. Correctness does not depend on Sweep being run.
type Cache[V any] struct {
	mu         sync.RWMutex
	entries    map[string]entry[V]
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	metrics    bool

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

func New[V any](opts ...Option) *Cache[V] {
	o := options{ttl: DefaultTTL, maxEntries: DefaultMaxEntries, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl <= 0 {
		o.ttl = DefaultTTL
	}
	if o.maxEntries <= 0 {
		o.maxEntries = DefaultMaxEntries
	}

	return &Cache[V]{
		entries:    make(map[string]entry[V]),
		ttl:        o.ttl,
		maxEntries: o.maxEntries,
		now:        o.now,
		metrics:    o.instrumented,
	}
}

// Get returns the value for key, or false when the key was never set or its
// entry has expired. An expired entry is deleted by the call that finds it.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.recordMiss()
		return zero, false
	}

	now := c.now()
	if e.expired(now) {
		c.dropIfExpired(key, now)
		c.recordMiss()
		return zero, false
	}

	c.recordHit()
	return e.value, true
}

// dropIfExpired deletes key only if the entry held now is expired. A
// concurrent Set may have replaced the entry since Get's read lock.
func (c *Cache[V]) dropIfExpired(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.entries[key]
	if !ok || !cur.expired(now) {
		return false
	}
	delete(c.entries, key)
	c.recordEviction("expired", 1)
	c.updateSizeLocked()
	return true
}

// Set stores value under key with the cache's default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key. A non-positive ttl uses the default.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.makeRoomLocked(now)
	}

	c.entries[key] = entry[V]{value: value, storedAt: now, ttl: ttl}
	c.updateSizeLocked()
}

// makeRoomLocked frees at least one slot: expired entries go first, then the
// oldest 20% by storedAt.
func (c *Cache[V]) makeRoomLocked(now time.Time) {
	c.purgeExpiredLocked(now)
	if len(c.entries) < c.maxEntries {
		return
	}

	type aged struct {
		key      string
		storedAt time.Time
	}
	byAge := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		byAge = append(byAge, aged{key: k, storedAt: e.storedAt})
	}
	slices.SortFunc(byAge, func(a, b aged) int {
		if byTime := a.storedAt.Compare(b.storedAt); byTime != 0 {
			return byTime
		}
		if a.key < b.key {
			return -1
		}
		if a.key > b.key {
			return 1
		}
		return 0
	})

	n := int(math.Ceil(float64(len(byAge)) * evictFraction))
	n = max(n, len(byAge)-c.maxEntries+1)
	for _, a := range byAge[:n] {
		delete(c.entries, a.key)
	}
	c.recordEviction("capacity", n)
}

func (c *Cache[V]) purgeExpiredLocked(now time.Time) int {
	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	if removed > 0 {
		c.recordEviction("expired", removed)
	}
	return removed
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	c.recordEviction("deleted", 1)
	c.updateSizeLocked()
	return true
}

// Clear removes every entry. Counters are kept.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.entries); n > 0 {
		c.recordEviction("deleted", n)
	}
	c.entries = make(map[string]entry[V])
	c.updateSizeLocked()
}

// Sweep purges expired entries and returns how many were removed.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.purgeExpiredLocked(c.now())
	c.updateSizeLocked()
	return removed
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[V]) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	s := Stats{
		Size:       c.Len(),
		MaxEntries: c.maxEntries,
		Hits:       hits,
		Misses:     misses,
		Evictions:  c.evictions.Load(),
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// Entries lists every stored entry, oldest first. It does not touch counters
// or remove expired entries.
func (c *Cache[V]) Entries() []EntryInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	out := make([]EntryInfo, 0, len(c.entries))
	for k, e := range c.entries {
		expiresAt := e.storedAt.Add(e.ttl)
		out = append(out, EntryInfo{
			Key:       k,
			StoredAt:  e.storedAt,
			Age:       now.Sub(e.storedAt),
			TTL:       e.ttl,
			ExpiresIn: max(expiresAt.Sub(now), 0),
			Expired:   e.expired(now),
		})
	}
	slices.SortFunc(out, func(a, b EntryInfo) int {
		return a.StoredAt.Compare(b.StoredAt)
	})
	return out
}

func (c *Cache[V]) recordHit() {
	c.hits.Add(1)
	if c.metrics {
		metrics.CacheHits.Inc()
	}
}

func (c *Cache[V]) recordMiss() {
	c.misses.Add(1)
	if c.metrics {
		metrics.CacheMisses.Inc()
	}
}

func (c *Cache[V]) recordEviction(reason string, n int) {
	c.evictions.Add(int64(n))
	if c.metrics {
		metrics.CacheEvictions.WithLabelValues(reason).Add(float64(n))
	}
}

func (c *Cache[V]) updateSizeLocked() {
	if c.metrics {
		metrics.CacheEntries.Set(float64(len(c.entries)))
	}
}
