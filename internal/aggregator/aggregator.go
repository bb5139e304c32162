// Package aggregator resolves a title against every configured provider and
// merges the answers into one cached AvailabilityResult.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/actuallystonmai/availability-service/internal/cache"
	"github.com/actuallystonmai/availability-service/internal/domain"
	"github.com/actuallystonmai/availability-service/internal/logging"
	"github.com/actuallystonmai/availability-service/internal/metrics"
	"github.com/actuallystonmai/availability-service/internal/provider"
)

const (
	DefaultProviderTimeout = 4 * time.Second
	DefaultUnavailableTTL  = 2 * time.Minute

	// Slack on top of the per-provider timeout for the whole fan-out.
	overallSlack = 500 * time.Millisecond
)

type Option func(*Aggregator)

// WithRedis adds a shared second cache tier behind the in-memory cache.
func WithRedis(store *cache.RedisStore) Option {
	return func(a *Aggregator) {
		a.redis = store
	}
}

// WithTimeouts sets the per-provider timeout and the bound on the whole
// fan-out. A non-positive overall timeout is derived from the per-provider one.
func WithTimeouts(perProvider, overall time.Duration) Option {
	return func(a *Aggregator) {
		if perProvider > 0 {
			a.providerTimeout = perProvider
		}
		a.overallTimeout = overall
	}
}

// WithTTLs sets how long complete and all-sources-unavailable results are cached.
func WithTTLs(ttl, unavailableTTL time.Duration) Option {
	return func(a *Aggregator) {
		if ttl > 0 {
			a.ttl = ttl
		}
		if unavailableTTL > 0 {
			a.unavailableTTL = unavailableTTL
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

type Aggregator struct {
	providers       []provider.Provider
	cache           *cache.Cache[*domain.AvailabilityResult]
	redis           *cache.RedisStore
	providerTimeout time.Duration
	overallTimeout  time.Duration
	ttl             time.Duration
	unavailableTTL  time.Duration
	now             func() time.Time
	group           singleflight.Group

	// Bumped by Invalidate so a fetch started earlier cannot repopulate
	// the cache with the result it is about to drop.
	mu          sync.Mutex
	generations map[string]uint64
}

func New(providers []provider.Provider, c *cache.Cache[*domain.AvailabilityResult], opts ...Option) *Aggregator {
	a := &Aggregator{
		providers:       providers,
		cache:           c,
		providerTimeout: DefaultProviderTimeout,
		ttl:             cache.DefaultTTL,
		unavailableTTL:  DefaultUnavailableTTL,
		now:             time.Now,
		generations:     make(map[string]uint64),
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.overallTimeout <= 0 {
		a.overallTimeout = a.providerTimeout + overallSlack
	}
	return a
}

// Sources lists the configured providers in merge order.
func (a *Aggregator) Sources() []domain.Source {
	out := make([]domain.Source, 0, len(a.providers))
	for _, p := range a.providers {
		out = append(out, p.Name())
	}
	return out
}

type loaded struct {
	result *domain.AvailabilityResult
	hit    bool
}

// Resolve returns the merged availability for req, from cache when possible.
//
// Concurrent misses for the same title share one fetch. The fetch runs
// detached from ctx: a caller that gives up gets ctx.Err(), while the fetch
// finishes and populates the cache. Callers always receive their own copy.
func (a *Aggregator) Resolve(ctx context.Context, req domain.LookupRequest) (*domain.AvailabilityResult, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := cache.AvailabilityKey(req.MediaKind, req.ContentID)
	if res, ok := a.cache.Get(key); ok {
		out := res.Clone()
		out.CacheHit = true
		return out, nil
	}

	// Don't start upstream work for a caller that is already gone.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := a.group.DoChan(key, func() (any, error) {
		gen := a.generation(key)
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.overallTimeout)
		defer cancel()
		return a.load(fetchCtx, key, gen, req), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		l := r.Val.(loaded)
		out := l.result.Clone()
		out.CacheHit = l.hit
		return out, nil
	}
}

// load reads the redis tier, then fetches from providers, writing through
// both tiers. Nothing is written once key has moved past gen.
func (a *Aggregator) load(ctx context.Context, key string, gen uint64, req domain.LookupRequest) loaded {
	log := logging.Ctx(ctx).With().Str("component", "aggregator").Str("key", key).Logger()

	if a.redis != nil {
		res, found, err := a.redis.Get(ctx, key)
		if err != nil {
			metrics.RedisTierErrors.WithLabelValues("get").Inc()
			log.Warn().Err(err).Msg("redis tier read failed")
		}
		// A shared entry keeps its original expiry, not a fresh TTL.
		if found {
			if remaining := a.remainingTTL(res); remaining > 0 {
				a.remember(key, gen, res, remaining)
				return loaded{result: res, hit: true}
			}
		}
	}

	res := a.fetch(ctx, req)
	ttl := a.ttlFor(res)
	if !a.remember(key, gen, res, ttl) || a.redis == nil {
		return loaded{result: res}
	}

	if err := a.redis.Set(ctx, key, res, ttl); err != nil {
		metrics.RedisTierErrors.WithLabelValues("set").Inc()
		log.Warn().Err(err).Msg("redis tier write failed")
	}
	// Invalidate may have deleted the redis key before the Set above landed.
	if a.generation(key) != gen {
		if err := a.redis.Delete(ctx, key); err != nil {
			metrics.RedisTierErrors.WithLabelValues("delete").Inc()
			log.Warn().Err(err).Msg("redis tier delete failed")
		}
	}
	return loaded{result: res}
}

func (a *Aggregator) ttlFor(res *domain.AvailabilityResult) time.Duration {
	if res.AnySourceAvailable() {
		return a.ttl
	}
	return a.unavailableTTL
}

// remainingTTL is how much of res's TTL is left, measured from FetchedAt.
func (a *Aggregator) remainingTTL(res *domain.AvailabilityResult) time.Duration {
	ttl := a.ttlFor(res)
	remaining := ttl - a.now().Sub(res.FetchedAt)
	if remaining > ttl {
		// FetchedAt ahead of our clock.
		return ttl
	}
	return remaining
}

func (a *Aggregator) generation(key string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generations[key]
}

// remember stores res in the memory tier unless key was invalidated after
// gen was read.
func (a *Aggregator) remember(key string, gen uint64, res *domain.AvailabilityResult, ttl time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generations[key] != gen {
		return false
	}
	a.cache.SetWithTTL(key, res, ttl)
	return true
}

type outcome struct {
	index   int
	entries []domain.PlatformEntry
	err     error
}

// fetch queries every provider concurrently and waits for all of them, or
// until ctx ends; a provider still running by then counts as unavailable.
func (a *Aggregator) fetch(ctx context.Context, req domain.LookupRequest) *domain.AvailabilityResult {
	log := logging.Ctx(ctx).With().
		Str("component", "aggregator").
		Int64("content_id", req.ContentID).
		Str("media_kind", string(req.MediaKind)).
		Logger()

	status := make(map[domain.Source]bool, len(a.providers))
	perProvider := make([][]domain.PlatformEntry, len(a.providers))
	for _, p := range a.providers {
		status[p.Name()] = false
	}

	// Buffered so providers that outlive ctx never block.
	results := make(chan outcome, len(a.providers))
	for i, p := range a.providers {
		go func() {
			entries, err := a.lookup(ctx, p, req)
			results <- outcome{index: i, entries: entries, err: err}
		}()
	}

	pending := len(a.providers)
collect:
	for pending > 0 {
		select {
		case o := <-results:
			pending--
			name := a.providers[o.index].Name()
			if o.err != nil {
				log.Warn().Err(o.err).Str("source", string(name)).Msg("provider unavailable")
				continue
			}
			status[name] = true
			perProvider[o.index] = sanitize(name, o.entries)
		case <-ctx.Done():
			log.Warn().Int("pending", pending).Msg("aggregation timed out waiting for providers")
			break collect
		}
	}

	var all []domain.PlatformEntry
	for _, entries := range perProvider {
		all = append(all, entries...)
	}
	platforms := Merge(all)

	res := &domain.AvailabilityResult{
		ContentID:    req.ContentID,
		Title:        req.Title,
		MediaKind:    req.MediaKind,
		Platforms:    platforms,
		Summary:      domain.Summarize(platforms),
		SourceStatus: status,
		FetchedAt:    a.now(),
	}

	metrics.AggregationsTotal.WithLabelValues(completeness(status)).Inc()
	log.Debug().
		Int("platforms", res.TotalPlatforms).
		Interface("source_status", status).
		Msg("aggregated availability")
	return res
}

// lookup calls one provider under its own timeout. Errors and panics both
// come back as *provider.UnavailableError.
func (a *Aggregator) lookup(ctx context.Context, p provider.Provider, req domain.LookupRequest) (entries []domain.PlatformEntry, err error) {
	defer func() {
		if r := recover(); r != nil {
			entries = nil
			err = provider.Unavailable(p.Name(), provider.ReasonPanic, fmt.Errorf("panic: %v", r))
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, a.providerTimeout)
	defer cancel()

	entries, err = p.Lookup(callCtx, req)
	if err == nil {
		return entries, nil
	}
	if provider.IsUnavailable(err) {
		return nil, err
	}
	reason := provider.ReasonTransport
	if errors.Is(err, context.DeadlineExceeded) {
		reason = provider.ReasonTimeout
	}
	return nil, provider.Unavailable(p.Name(), reason, err)
}

// sanitize drops entries a client failed to normalize and stamps the source.
func sanitize(source domain.Source, entries []domain.PlatformEntry) []domain.PlatformEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if !e.AccessType.Valid() {
			continue
		}
		if e.Source == "" {
			e.Source = source
		}
		out = append(out, e)
	}
	return out
}

func completeness(status map[domain.Source]bool) string {
	ok := 0
	for _, v := range status {
		if v {
			ok++
		}
	}
	switch {
	case ok == 0:
		return "none"
	case ok == len(status):
		return "full"
	}
	return "partial"
}

// Invalidate drops the cached result for one title from both tiers. A fetch
// already in flight for the title still answers its callers but is not cached.
func (a *Aggregator) Invalidate(ctx context.Context, kind domain.MediaKind, contentID int64) bool {
	key := cache.AvailabilityKey(kind, contentID)
	a.mu.Lock()
	a.generations[key]++
	removed := a.cache.Delete(key)
	a.mu.Unlock()
	a.group.Forget(key)

	if a.redis != nil {
		if err := a.redis.Delete(ctx, key); err != nil {
			metrics.RedisTierErrors.WithLabelValues("delete").Inc()
			logging.Ctx(ctx).Warn().Err(err).Str("component", "aggregator").Str("key", key).Msg("redis tier delete failed")
		}
	}
	return removed
}

func (a *Aggregator) CacheStats() cache.Stats {
	return a.cache.Stats()
}

func (a *Aggregator) CacheEntries() []cache.EntryInfo {
	return a.cache.Entries()
}

// Sweep purges expired in-memory entries.
func (a *Aggregator) Sweep() int {
	return a.cache.Sweep()
}
