// Package streamavail provides a provider client for the Streaming
// Availability API on RapidAPI.
package streamavail

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

const (
	defaultBaseURL = "https://streaming-availability.p.rapidapi.com"
	defaultHost    = "streaming-availability.p.rapidapi.com"
)

var accessTypes = map[string]domain.AccessType{
	"subscription": domain.AccessSubscription,
	"addon":        domain.AccessSubscription,
	"rent":         domain.AccessRent,
	"buy":          domain.AccessBuy,
	"free":         domain.AccessFree,
}

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

// WithRegion selects the country; the API keys offers by lowercase code.
func WithRegion(region string) ClientOption {
	return func(c *Client) {
		c.country = strings.ToLower(region)
	}
}

func WithAffiliateChecker(fn provider.AffiliateChecker) ClientOption {
	return func(c *Client) {
		c.affiliate = provider.Checker(fn)
	}
}

type Client struct {
	apiKey     string
	host       string
	baseURL    string
	country    string
	httpClient provider.HTTPClient
	affiliate  provider.AffiliateChecker
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		host:       defaultHost,
		baseURL:    defaultBaseURL,
		country:    "us",
		httpClient: &http.Client{},
		affiliate:  provider.Checker(nil),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) Name() domain.Source {
	return domain.SourceStreamAvail
}

// Lookup prefers the external (IMDb) id when the caller has one, since the
// API resolves it directly; otherwise it falls back to the TMDB-style id.
func (c *Client) Lookup(ctx context.Context, req domain.LookupRequest) ([]domain.PlatformEntry, error) {
	id := fmt.Sprintf("%s/%d", provider.PathKind(req.MediaKind), req.ContentID)
	if req.ExternalID != "" {
		id = url.PathEscape(req.ExternalID)
	}
	endpoint := fmt.Sprintf("%s/shows/%s?country=%s", c.baseURL, id, url.QueryEscape(c.country))

	header := http.Header{}
	header.Set("X-RapidAPI-Key", c.apiKey)
	header.Set("X-RapidAPI-Host", c.host)

	var response show
	if err := provider.GetJSON(ctx, c.httpClient, c.Name(), endpoint, header, &response); err != nil {
		if provider.IsNotFound(err) {
			return []domain.PlatformEntry{}, nil
		}
		return nil, err
	}

	options := response.StreamingOptions[c.country]
	entries := make([]domain.PlatformEntry, 0, len(options))
	for _, opt := range options {
		access, ok := accessTypes[opt.Type]
		if !ok {
			continue
		}
		name := strings.TrimSpace(opt.Service.Name)
		if name == "" {
			continue
		}

		entry := domain.PlatformEntry{
			ProviderID:         opt.Service.ID,
			ProviderName:       name,
			AccessType:         access,
			Source:             domain.SourceStreamAvail,
			AffiliateSupported: c.affiliate(name),
			WebURL:             opt.Link,
			LogoRef:            opt.Service.ImageSet.LightThemeImage,
		}
		if opt.Price != nil {
			if amount, err := strconv.ParseFloat(opt.Price.Amount, 64); err == nil {
				entry.Price = &amount
				entry.Currency = opt.Price.Currency
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
