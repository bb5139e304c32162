package provider

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/actuallystonmai/availability-service/internal/domain"
	"github.com/actuallystonmai/availability-service/internal/logging"
	"github.com/actuallystonmai/availability-service/internal/metrics"
)

// GuardConfig tunes the resilience wrapper around one provider client.
type GuardConfig struct {
	RatePerSecond float64
	Burst         int
	RetryAttempts uint
	RetryDelay    time.Duration

	// Breaker opens once at least BreakerMinRequests calls in BreakerInterval
	// failed at BreakerFailureRatio or more, and probes again after BreakerTimeout.
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerInterval     time.Duration
	BreakerTimeout      time.Duration
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		RatePerSecond:       10,
		Burst:               5,
		RetryAttempts:       2,
		RetryDelay:          100 * time.Millisecond,
		BreakerMinRequests:  10,
		BreakerFailureRatio: 0.6,
		BreakerInterval:     time.Minute,
		BreakerTimeout:      30 * time.Second,
	}
}

// Guard wraps a Provider with a rate limiter, retry with backoff for
// transient upstream failures, and a circuit breaker. All of it runs inside
// the caller's context, so retries never outlive the per-provider timeout.
type Guard struct {
	next     Provider
	source   domain.Source
	cb       *gobreaker.CircuitBreaker[[]domain.PlatformEntry]
	limiter  *rate.Limiter
	attempts uint
	delay    time.Duration
}

func NewGuard(next Provider, cfg GuardConfig) *Guard {
	source := next.Name()
	name := string(source)

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := max(cfg.Burst, 1)

	minRequests := max(cfg.BreakerMinRequests, 1)
	ratio := cfg.BreakerFailureRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.6
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]domain.PlatformEntry](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("component", "provider").
				Str("source", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
		// A caller giving up says nothing about the upstream's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Guard{
		next:     next,
		source:   source,
		cb:       cb,
		limiter:  rate.NewLimiter(limit, burst),
		attempts: max(cfg.RetryAttempts, 1),
		delay:    cfg.RetryDelay,
	}
}

func (g *Guard) Name() domain.Source {
	return g.source
}

// State exposes the breaker state for diagnostics.
func (g *Guard) State() gobreaker.State {
	return g.cb.State()
}

func (g *Guard) Lookup(ctx context.Context, req domain.LookupRequest) ([]domain.PlatformEntry, error) {
	start := time.Now()
	defer func() {
		metrics.ProviderLatency.WithLabelValues(string(g.source)).Observe(time.Since(start).Seconds())
	}()

	entries, err := g.cb.Execute(func() ([]domain.PlatformEntry, error) {
		var out []domain.PlatformEntry
		err := retry.Do(
			func() error {
				if err := g.limiter.Wait(ctx); err != nil {
					return Unavailable(g.source, ReasonTimeout, err)
				}
				entries, err := g.next.Lookup(ctx, req)
				if err != nil {
					return err
				}
				out = entries
				return nil
			},
			retry.Context(ctx),
			retry.Attempts(g.attempts),
			retry.Delay(g.delay),
			retry.DelayType(retry.BackOffDelay),
			retry.RetryIf(retryable),
			retry.LastErrorOnly(true),
		)
		return out, err
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.ProviderRequests.WithLabelValues(string(g.source), "rejected").Inc()
			return nil, Unavailable(g.source, ReasonCircuitOpen, err)
		}
		metrics.ProviderRequests.WithLabelValues(string(g.source), "unavailable").Inc()
		if !IsUnavailable(err) {
			reason := ReasonTransport
			if ctx.Err() != nil {
				reason = ReasonTimeout
			}
			err = Unavailable(g.source, reason, err)
		}
		return nil, err
	}

	metrics.ProviderRequests.WithLabelValues(string(g.source), "ok").Inc()
	return entries, nil
}

func retryable(err error) bool {
	var ue *UnavailableError
	if !errors.As(err, &ue) {
		return false
	}
	switch ue.Reason {
	case ReasonTransport:
		return true
	case ReasonStatus:
		var se *StatusError
		return errors.As(err, &se) && se.Retryable()
	}
	return false
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}
