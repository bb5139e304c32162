// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "availability_cache_hits_total",
		Help: "Availability cache lookups served from memory",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "availability_cache_misses_total",
		Help: "Availability cache lookups that missed or found an expired entry",
	})
	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_cache_evictions_total",
		Help: "Cache entries removed, by reason",
	}, []string{"reason"}) // expired, capacity, deleted
	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "availability_cache_entries",
		Help: "Current number of entries held in the availability cache",
	})
	RedisTierErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_redis_errors_total",
		Help: "Errors talking to the shared redis cache tier",
	}, []string{"operation"})

	// Provider clients
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_requests_total",
		Help: "Provider lookups by source and outcome",
	}, []string{"source", "outcome"}) // ok, unavailable, rejected
	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "provider_request_duration_seconds",
		Help:    "Provider lookup latency including retries",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 4, 5},
	}, []string{"source"})
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "provider_circuit_breaker_state",
		Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
	}, []string{"source"})

	// Aggregation and batch
	AggregationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_aggregations_total",
		Help: "Fresh aggregations by completeness",
	}, []string{"completeness"}) // full, partial, none
	BatchItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_batch_items_total",
		Help: "Batch items by status",
	}, []string{"status"}) // success, failed, skipped

	// Affiliate links
	AffiliateLinks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "affiliate_links_total",
		Help: "Outbound links built, by kind",
	}, []string{"kind"})
)
