// Package demo provides an offline provider that simulates an upstream with
// latency and occasional failures. It backs local runs with no API keys.
package demo

import (
	"context"
	"errors"
	"hash/fnv"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/actuallystonmai/availability-service/internal/domain"
	"github.com/actuallystonmai/availability-service/internal/provider"
)

var errSimulatedFailure = errors.New("simulated upstream failure")

type offer struct {
	name   string
	access domain.AccessType
	webURL string
}

// The names deliberately use the spellings different real sources use, so
// the merge step has aliases to reconcile.
var catalog = []offer{
	{"Netflix", domain.AccessSubscription, "https://www.netflix.com/search?q="},
	{"Disney+", domain.AccessSubscription, ""},
	{"Amazon Prime Video", domain.AccessSubscription, "https://www.amazon.com/s?i=instant-video&k="},
	{"Prime Video", domain.AccessSubscription, ""},
	{"Max", domain.AccessSubscription, ""},
	{"Hulu", domain.AccessSubscription, "https://www.hulu.com/search?q="},
	{"Tubi TV", domain.AccessFree, "https://tubitv.com/search/"},
	{"Pluto TV", domain.AccessFree, ""},
	{"Apple TV", domain.AccessRent, "https://tv.apple.com/search?term="},
	{"Google Play Movies", domain.AccessBuy, ""},
	{"Crackle", domain.AccessFree, ""},
}

type ClientOption func(*Client)

// WithFailureRate sets the share of lookups that fail, between 0 and 1.
func WithFailureRate(rate float64) ClientOption {
	return func(c *Client) {
		c.failureRate = min(max(rate, 0), 1)
	}
}

// WithLatency sets the simulated response time range.
func WithLatency(lo, hi time.Duration) ClientOption {
	return func(c *Client) {
		c.minLatency = max(lo, 0)
		c.maxLatency = max(hi, c.minLatency)
	}
}

func WithAffiliateChecker(fn provider.AffiliateChecker) ClientOption {
	return func(c *Client) {
		c.affiliate = provider.Checker(fn)
	}
}

type Client struct {
	source      domain.Source
	failureRate float64
	minLatency  time.Duration
	maxLatency  time.Duration
	affiliate   provider.AffiliateChecker
}

// NewClient creates a demo source. Two clients with different names return
// overlapping but different offers for the same title.
func NewClient(source domain.Source, opts ...ClientOption) *Client {
	c := &Client{
		source:      source,
		failureRate: 0.015,
		minLatency:  30 * time.Millisecond,
		maxLatency:  50 * time.Millisecond,
		affiliate:   provider.Checker(nil),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) Name() domain.Source {
	return c.source
}

func (c *Client) Lookup(ctx context.Context, req domain.LookupRequest) ([]domain.PlatformEntry, error) {
	// Set latency
	delay := c.minLatency
	if spread := c.maxLatency - c.minLatency; spread > 0 {
		delay += rand.N(spread + 1)
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, provider.Unavailable(c.source, provider.ReasonTimeout, ctx.Err())
		}
	}

	// Set random fail
	if rand.Float64() < c.failureRate {
		return nil, provider.Unavailable(c.source, provider.ReasonStatus, errSimulatedFailure)
	}

	return c.offersFor(req), nil
}

// offersFor picks a stable subset of the catalog for the title, so repeated
// lookups agree with each other.
func (c *Client) offersFor(req domain.LookupRequest) []domain.PlatformEntry {
	h := fnv.New64a()
	h.Write([]byte(string(c.source)))
	h.Write([]byte(string(req.MediaKind)))
	h.Write([]byte(strconv.FormatInt(req.ContentID, 10)))
	bits := h.Sum64()

	entries := make([]domain.PlatformEntry, 0)
	for i, o := range catalog {
		if bits&(1<<uint(i)) == 0 {
			continue
		}
		entry := domain.PlatformEntry{
			ProviderID:         strings.ToLower(strings.ReplaceAll(o.name, " ", "-")),
			ProviderName:       o.name,
			AccessType:         o.access,
			Source:             c.source,
			AffiliateSupported: c.affiliate(o.name),
		}
		if o.webURL != "" {
			entry.WebURL = o.webURL + strings.ReplaceAll(req.Title, " ", "+")
		}
		if o.access == domain.AccessRent || o.access == domain.AccessBuy {
			price := 3.99 + float64(bits%4)
			entry.Price = &price
			entry.Currency = "USD"
		}
		entries = append(entries, entry)
	}
	return entries
}
