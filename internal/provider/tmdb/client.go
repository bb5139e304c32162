// Package tmdb provides a provider client for TMDB's watch/providers endpoint.
package tmdb

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/actuallystonmai/availability-service/internal/domain"
	"github.com/actuallystonmai/availability-service/internal/provider"
)

const (
	defaultBaseURL = "https://api.themoviedb.org"
	logoBaseURL    = "https://image.tmdb.org/t/p/original"
)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient provider.HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithRegion selects which country's offers are reported.
func WithRegion(region string) ClientOption {
	return func(c *Client) {
		c.region = strings.ToUpper(region)
	}
}

// WithAffiliateChecker marks entries whose service supports tracked links.
func WithAffiliateChecker(fn provider.AffiliateChecker) ClientOption {
	return func(c *Client) {
		c.affiliate = provider.Checker(fn)
	}
}

// Client reads watch providers from the TMDB v3 API.
type Client struct {
	apiKey     string
	baseURL    string
	region     string
	httpClient provider.HTTPClient
	affiliate  provider.AffiliateChecker
}

// NewClient creates a TMDB client authenticating with a v4 read access token.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		region:     "US",
		httpClient: &http.Client{},
		affiliate:  provider.Checker(nil),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) Name() domain.Source {
	return domain.SourceTMDB
}

// Lookup returns the offers TMDB lists for the configured region. A title TMDB
// does not know, or one with no offers in the region, yields no entries.
func (c *Client) Lookup(ctx context.Context, req domain.LookupRequest) ([]domain.PlatformEntry, error) {
	url := fmt.Sprintf("%s/3/%s/%d/watch/providers", c.baseURL, provider.PathKind(req.MediaKind), req.ContentID)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	var response watchProvidersResponse
	if err := provider.GetJSON(ctx, c.httpClient, c.Name(), url, header, &response); err != nil {
		if provider.IsNotFound(err) {
			return []domain.PlatformEntry{}, nil
		}
		return nil, err
	}

	offers, ok := response.Results[c.region]
	if !ok {
		return []domain.PlatformEntry{}, nil
	}
	return c.toEntries(offers), nil
}

func (c *Client) toEntries(offers regionOffers) []domain.PlatformEntry {
	buckets := []struct {
		items  []providerItem
		access domain.AccessType
	}{
		{offers.Flatrate, domain.AccessSubscription},
		{offers.Free, domain.AccessFree},
		{offers.Ads, domain.AccessFree},
		{offers.Rent, domain.AccessRent},
		{offers.Buy, domain.AccessBuy},
	}

	entries := make([]domain.PlatformEntry, 0)
	for _, b := range buckets {
		for _, item := range b.items {
			name := strings.TrimSpace(item.ProviderName)
			if name == "" {
				continue
			}
			entry := domain.PlatformEntry{
				ProviderID:         strconv.FormatInt(item.ProviderID, 10),
				ProviderName:       name,
				AccessType:         b.access,
				Source:             domain.SourceTMDB,
				AffiliateSupported: c.affiliate(name),
			}
			if item.LogoPath != "" {
				entry.LogoRef = logoBaseURL + item.LogoPath
			}
			entries = append(entries, entry)
		}
	}
	return entries
}
