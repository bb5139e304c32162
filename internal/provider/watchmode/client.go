// Package watchmode provides a provider client for the Watchmode title
// sources endpoint.
package watchmode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/actuallystonmai/availability-service/internal/domain"
	"github.com/actuallystonmai/availability-service/internal/provider"
)

const defaultBaseURL = "https://api.watchmode.com"

// Watchmode source types mapped onto the shared access types. Anything not
// listed is skipped.
var accessTypes = map[string]domain.AccessType{
	"sub":      domain.AccessSubscription,
	"tve":      domain.AccessSubscription,
	"rent":     domain.AccessRent,
	"buy":      domain.AccessBuy,
	"purchase": domain.AccessBuy,
	"free":     domain.AccessFree,
}

// ClientOption configures the Client.
type ClientOption func(*Client)

func WithHTTPClient(httpClient provider.HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

func WithRegion(region string) ClientOption {
	return func(c *Client) {
		c.region = strings.ToUpper(region)
	}
}

func WithAffiliateChecker(fn provider.AffiliateChecker) ClientOption {
	return func(c *Client) {
		c.affiliate = provider.Checker(fn)
	}
}

type Client struct {
	apiKey     string
	baseURL    string
	region     string
	httpClient provider.HTTPClient
	affiliate  provider.AffiliateChecker
}

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
	return domain.SourceWatchmode
}

// Lookup resolves the title by its TMDB-style id ("movie-278", "tv-1396").
// Watchmode lists one row per format, so the same service can appear more
// than once; duplicates are left for the aggregator to merge.
func (c *Client) Lookup(ctx context.Context, req domain.LookupRequest) ([]domain.PlatformEntry, error) {
	endpoint := fmt.Sprintf("%s/v1/title/%s-%d/sources/?regions=%s",
		c.baseURL, provider.PathKind(req.MediaKind), req.ContentID, url.QueryEscape(c.region))
	header := http.Header{}
	header.Set("X-API-Key", c.apiKey)

	var sources []source
	if err := provider.GetJSON(ctx, c.httpClient, c.Name(), endpoint, header, &sources); err != nil {
		if provider.IsNotFound(err) {
			return []domain.PlatformEntry{}, nil
		}
		return nil, err
	}

	entries := make([]domain.PlatformEntry, 0, len(sources))
	for _, s := range sources {
		access, ok := accessTypes[strings.ToLower(s.Type)]
		if !ok {
			continue
		}
		if s.Region != "" && !strings.EqualFold(s.Region, c.region) {
			continue
		}
		name := strings.TrimSpace(s.Name)
		if name == "" {
			continue
		}

		entry := domain.PlatformEntry{
			ProviderID:         strconv.FormatInt(s.SourceID, 10),
			ProviderName:       name,
			AccessType:         access,
			Source:             domain.SourceWatchmode,
			AffiliateSupported: c.affiliate(name),
			WebURL:             s.WebURL,
			Price:              s.Price,
		}
		if s.Price != nil {
			entry.Currency = currencyFor(c.region)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Watchmode prices carry no currency; they are quoted in the region's own.
func currencyFor(region string) string {
	switch region {
	case "GB":
		return "GBP"
	case "CA":
		return "CAD"
	case "AU":
		return "AUD"
	case "US":
		return "USD"
	}
	return ""
}
