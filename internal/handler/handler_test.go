package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/actuallystonmai/availability-service/internal/affiliate"
	"github.com/actuallystonmai/availability-service/internal/aggregator"
	"github.com/actuallystonmai/availability-service/internal/cache"
	"github.com/actuallystonmai/availability-service/internal/domain"
	"github.com/actuallystonmai/availability-service/internal/handler"
	"github.com/actuallystonmai/availability-service/internal/provider"
	"github.com/actuallystonmai/availability-service/internal/router"
	"github.com/actuallystonmai/availability-service/internal/service"
)

type fixedSource struct{}

func (fixedSource) Name() domain.Source { return "fixed" }

func (fixedSource) Lookup(ctx context.Context, req domain.LookupRequest) ([]domain.PlatformEntry, error) {
	return []domain.PlatformEntry{
		{ProviderName: "Netflix", AccessType: domain.AccessSubscription},
		{ProviderName: "Amazon Prime Video", AccessType: domain.AccessRent, AffiliateSupported: true},
		{ProviderName: "Tubi", AccessType: domain.AccessFree},
	}, nil
}

type prefStore struct {
	mu     sync.Mutex
	prefs  map[int64]domain.PreferenceSet
	clicks int
}

func (s *prefStore) GetPreferences(ctx context.Context, userID int64) (*domain.PreferenceSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefs[userID]
	if !ok {
		return nil, domain.ErrPreferencesNotFound
	}
	return &p, nil
}

func (s *prefStore) SavePreferences(ctx context.Context, userID int64, prefs domain.PreferenceSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = prefs
	return nil
}

func (s *prefStore) RecordClick(ctx context.Context, ev domain.ClickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks++
	return nil
}

func (s *prefStore) clickCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clicks
}

func newServer(t *testing.T) (*httptest.Server, *prefStore) {
	t.Helper()
	store := &prefStore{prefs: map[int64]domain.PreferenceSet{}}
	agg := aggregator.New([]provider.Provider{fixedSource{}}, cache.New[*domain.AvailabilityResult]())
	links := affiliate.NewGenerator(affiliate.Config{Secret: "s", AmazonTag: "tag-20"})
	svc := service.NewService(agg, links, store, service.Options{BatchMaxItems: 3})

	srv := httptest.NewServer(router.Setup(handler.NewHandler(svc), 5*time.Second))
	t.Cleanup(srv.Close)
	return srv, store
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestGetAvailability(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/titles/movie/100/availability?title=Heat")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get(router.CorrelationHeader) == "" {
		t.Error("expected a correlation id header")
	}

	var body domain.FilteredResult
	decode(t, resp, &body)
	if body.ContentID != 100 || body.TotalPlatforms != 3 {
		t.Errorf("unexpected body: %+v", body)
	}
	if body.PremiumPlatforms != 2 || body.FreePlatforms != 1 || body.AffiliatePlatforms != 1 {
		t.Errorf("unexpected summary: %+v", body.Summary)
	}
}

func TestGetAvailabilityBadRequests(t *testing.T) {
	srv, _ := newServer(t)

	tests := []struct {
		name string
		path string
	}{
		{"unknown kind", "/titles/podcast/100/availability?title=Heat"},
		{"non-numeric id", "/titles/movie/abc/availability?title=Heat"},
		{"zero id", "/titles/movie/0/availability?title=Heat"},
		{"missing title", "/titles/movie/100/availability"},
		{"bad user id", "/titles/movie/100/availability?title=Heat&user_id=x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			var body handler.ErrorResponse
			decode(t, resp, &body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
			if body.Error == "" {
				t.Error("expected an error code")
			}
		})
	}
}

func TestPreferencesRoundTripAndFilter(t *testing.T) {
	srv, _ := newServer(t)

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/users/7/preferences",
		strings.NewReader(`{"subscription_types":["free"]}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on save, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/users/7/preferences")
	if err != nil {
		t.Fatal(err)
	}
	var saved handler.PreferencesResponse
	decode(t, resp, &saved)
	if len(saved.Preferences.SubscriptionTypes) != 1 {
		t.Errorf("expected saved preferences back, got %+v", saved)
	}

	resp, err = http.Get(srv.URL + "/titles/movie/100/availability?title=Heat&user_id=7")
	if err != nil {
		t.Fatal(err)
	}
	var filtered domain.FilteredResult
	decode(t, resp, &filtered)
	if filtered.TotalPlatforms != 1 || filtered.FilteredOutCount != 2 || !filtered.PreferencesApplied {
		t.Errorf("expected only the free entry, got %+v", filtered)
	}
}

func TestPreferencesErrors(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/users/8/preferences")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for missing preferences, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/users/8/preferences",
		strings.NewReader(`{"subscription_types":["lease"]}`))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown access type, got %d", resp.StatusCode)
	}
}

func TestPostBatch(t *testing.T) {
	srv, _ := newServer(t)

	body := `{"items":[
		{"content_id":1,"title":"Heat","media_kind":"movie"},
		{"content_id":2,"title":"","media_kind":"movie"},
		{"content_id":3,"title":"Lost","media_kind":"series"}
	]}`
	resp, err := http.Post(srv.URL+"/availability/batch", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out handler.BatchResponse
	decode(t, resp, &out)
	if out.Summary.Requested != 3 || out.Summary.Succeeded != 2 || out.Summary.Omitted != 1 {
		t.Errorf("unexpected summary: %+v", out.Summary)
	}
	if _, ok := out.Results[2]; ok {
		t.Error("invalid item should be omitted")
	}
	if out.Results[3].MediaKind != domain.MediaSeries {
		t.Errorf("expected series result for item 3, got %+v", out.Results[3])
	}
}

func TestPostBatchRejects(t *testing.T) {
	srv, _ := newServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `items`},
		{"empty", `{"items":[]}`},
		{"too many", `{"items":[{"content_id":1},{"content_id":2},{"content_id":3},{"content_id":4}]}`},
		{"bad preferences", `{"items":[{"content_id":1,"title":"a","media_kind":"movie"}],"preferences":{"subscription_types":["x"]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/availability/batch", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestWatchRedirects(t *testing.T) {
	srv, store := newServer(t)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(srv.URL + "/titles/movie/100/watch?title=Heat&provider=Prime%20Video&user_id=7")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "https://www.amazon.com/") || !strings.Contains(loc, "tag=tag-20") {
		t.Errorf("unexpected redirect target %q", loc)
	}
	if resp.Header.Get("X-Link-Kind") != string(domain.LinkTracked) {
		t.Errorf("expected tracked link, got %q", resp.Header.Get("X-Link-Kind"))
	}
	if n := store.clickCount(); n != 1 {
		t.Errorf("expected 1 recorded click, got %d", n)
	}

	resp, err = client.Get(srv.URL + "/titles/movie/100/watch?title=Heat")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing provider should be 400, got %d", resp.StatusCode)
	}
}

func TestAdminCache(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/titles/movie/100/availability?title=Heat")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/admin/cache/stats")
	if err != nil {
		t.Fatal(err)
	}
	var stats handler.CacheStatsResponse
	decode(t, resp, &stats)
	if stats.Size != 1 || len(stats.Sources) != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	resp, err = http.Get(srv.URL + "/admin/cache/entries")
	if err != nil {
		t.Fatal(err)
	}
	var entries handler.CacheEntriesResponse
	decode(t, resp, &entries)
	if entries.Count != 1 || entries.Entries[0].Key != "avail:movie:100" {
		t.Errorf("unexpected entries: %+v", entries)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/admin/cache/movie/100", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var inv handler.InvalidateResponse
	decode(t, resp, &inv)
	if !inv.Removed {
		t.Error("expected the entry to be removed")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var health handler.HealthResponse
	decode(t, resp, &health)
	if health.Status != "ok" {
		t.Errorf("expected ok, got %q", health.Status)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected metrics endpoint to respond 200, got %d", resp.StatusCode)
	}
}
