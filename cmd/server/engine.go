package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/actuallystonmai/availability-service/internal/affiliate"
	"github.com/actuallystonmai/availability-service/internal/aggregator"
	"github.com/actuallystonmai/availability-service/internal/cache"
	"github.com/actuallystonmai/availability-service/internal/config"
	"github.com/actuallystonmai/availability-service/internal/domain"
	"github.com/actuallystonmai/availability-service/internal/logging"
	"github.com/actuallystonmai/availability-service/internal/provider"
	"github.com/actuallystonmai/availability-service/internal/provider/demo"
	"github.com/actuallystonmai/availability-service/internal/provider/streamavail"
	"github.com/actuallystonmai/availability-service/internal/provider/tmdb"
	"github.com/actuallystonmai/availability-service/internal/provider/watchmode"
	"github.com/actuallystonmai/availability-service/internal/repository"
	"github.com/actuallystonmai/availability-service/internal/service"
)

// engine holds the wired components so commands can share one construction path.
type engine struct {
	aggregator *aggregator.Aggregator
	service    *service.Service
	redis      *redis.Client
}

func (e *engine) Close() {
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			logging.Warn().Err(err).Msg("closing redis")
		}
	}
}

// buildEngine wires providers, caches and the service. store may be nil.
func buildEngine(ctx context.Context, cfg *config.Config, store *repository.Repository) (*engine, error) {
	links := affiliate.NewGenerator(affiliate.Config{
		Secret:     cfg.Affiliate.Secret,
		SourceTag:  cfg.Affiliate.SourceTag,
		AmazonTag:  cfg.Affiliate.AmazonTag,
		AppleToken: cfg.Affiliate.AppleToken,
	})

	providers := buildProviders(cfg, links.Supports)

	mem := cache.New[*domain.AvailabilityResult](
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
		cache.WithMetrics(),
	)
	opts := []aggregator.Option{
		aggregator.WithTimeouts(cfg.Provider.Timeout, 0),
		aggregator.WithTTLs(cfg.Cache.TTL, cfg.Cache.UnavailableTTL),
	}

	e := &engine{}
	if cfg.Redis.Enabled {
		rdb, err := openRedis(ctx, cfg.Redis.URL)
		if err != nil {
			logging.Warn().Err(err).Msg("redis unavailable, running with the in-memory cache only")
		} else {
			e.redis = rdb
			opts = append(opts, aggregator.WithRedis(cache.NewRedisStore(rdb)))
		}
	}

	e.aggregator = aggregator.New(providers, mem, opts...)

	// A nil *Repository must not become a non-nil Store interface.
	var st service.Store
	if store != nil {
		st = store
	}
	e.service = service.NewService(e.aggregator, links, st, service.Options{
		BatchConcurrency: cfg.Batch.Concurrency,
		BatchMaxItems:    cfg.Batch.MaxItems,
	})
	return e, nil
}

// buildProviders returns a guarded client per configured upstream. Without
// any API key, two demo sources stand in so the service is usable locally.
func buildProviders(cfg *config.Config, supports provider.AffiliateChecker) []provider.Provider {
	guard := provider.DefaultGuardConfig()
	guard.RatePerSecond = cfg.Provider.RatePerSecond
	guard.RetryAttempts = cfg.Provider.RetryAttempts

	var clients []provider.Provider
	if cfg.TMDB.Enabled() {
		opts := []tmdb.ClientOption{tmdb.WithRegion(cfg.Provider.Region), tmdb.WithAffiliateChecker(supports)}
		if cfg.TMDB.BaseURL != "" {
			opts = append(opts, tmdb.WithBaseURL(cfg.TMDB.BaseURL))
		}
		clients = append(clients, tmdb.NewClient(cfg.TMDB.APIKey, opts...))
	}
	if cfg.Watchmode.Enabled() {
		opts := []watchmode.ClientOption{watchmode.WithRegion(cfg.Provider.Region), watchmode.WithAffiliateChecker(supports)}
		if cfg.Watchmode.BaseURL != "" {
			opts = append(opts, watchmode.WithBaseURL(cfg.Watchmode.BaseURL))
		}
		clients = append(clients, watchmode.NewClient(cfg.Watchmode.APIKey, opts...))
	}
	if cfg.StreamAvail.Enabled() {
		opts := []streamavail.ClientOption{streamavail.WithRegion(cfg.Provider.Region), streamavail.WithAffiliateChecker(supports)}
		if cfg.StreamAvail.BaseURL != "" {
			opts = append(opts, streamavail.WithBaseURL(cfg.StreamAvail.BaseURL))
		}
		clients = append(clients, streamavail.NewClient(cfg.StreamAvail.APIKey, opts...))
	}

	if len(clients) == 0 {
		logging.Warn().Msg("no provider API keys configured, using demo sources")
		for _, name := range []domain.Source{"demo-a", "demo-b"} {
			clients = append(clients, demo.NewClient(name,
				demo.WithFailureRate(cfg.Provider.DemoFailureRate),
				demo.WithAffiliateChecker(supports),
			))
		}
	}

	guarded := make([]provider.Provider, len(clients))
	for i, c := range clients {
		guarded[i] = provider.NewGuard(c, guard)
	}
	return guarded
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}
