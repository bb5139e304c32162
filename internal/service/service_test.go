package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/actuallystonmai/availability-service/internal/affiliate"
	"github.com/actuallystonmai/availability-service/internal/aggregator"
	"github.com/actuallystonmai/availability-service/internal/cache"
	"github.com/actuallystonmai/availability-service/internal/domain"
	"github.com/actuallystonmai/availability-service/internal/provider"
)

// stubSource answers from a fixed table and fails for ids listed in down.
type stubSource struct {
	name    domain.Source
	offers  []domain.PlatformEntry
	down    map[int64]bool
	panicOn int64
	delay   time.Duration
	calls   atomic.Int32
}

func (s *stubSource) Name() domain.Source { return s.name }

func (s *stubSource) Lookup(ctx context.Context, req domain.LookupRequest) ([]domain.PlatformEntry, error) {
	s.calls.Add(1)
	if req.ContentID == s.panicOn {
		panic("bad payload")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.down[req.ContentID] {
		return nil, provider.Unavailable(s.name, provider.ReasonStatus, errors.New("503"))
	}
	return s.offers, nil
}

type memoryStore struct {
	mu      sync.Mutex
	prefs   map[int64]domain.PreferenceSet
	clicks  []domain.ClickEvent
	failGet bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{prefs: map[int64]domain.PreferenceSet{}}
}

func (m *memoryStore) GetPreferences(ctx context.Context, userID int64) (*domain.PreferenceSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errors.New("database is down")
	}
	p, ok := m.prefs[userID]
	if !ok {
		return nil, domain.ErrPreferencesNotFound
	}
	return &p, nil
}

func (m *memoryStore) SavePreferences(ctx context.Context, userID int64, prefs domain.PreferenceSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[userID] = prefs
	return nil
}

func (m *memoryStore) RecordClick(ctx context.Context, ev domain.ClickEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks = append(m.clicks, ev)
	return nil
}

var offersA = []domain.PlatformEntry{
	{ProviderName: "Netflix", AccessType: domain.AccessSubscription},
	{ProviderName: "Disney+", AccessType: domain.AccessSubscription},
}

var offersB = []domain.PlatformEntry{
	{ProviderName: "Netflix", AccessType: domain.AccessSubscription},
	{ProviderName: "Amazon Prime Video", AccessType: domain.AccessSubscription, AffiliateSupported: true},
	{ProviderName: "Tubi", AccessType: domain.AccessFree},
}

func newTestService(store Store, sources ...provider.Provider) *Service {
	agg := aggregator.New(sources, cache.New[*domain.AvailabilityResult](), aggregator.WithTimeouts(200*time.Millisecond, 0))
	links := affiliate.NewGenerator(affiliate.Config{Secret: "s", AmazonTag: "tag-20"})
	return NewService(agg, links, store, Options{BatchConcurrency: 4, BatchMaxItems: 10})
}

func item(id int64, title string) domain.LookupRequest {
	return domain.LookupRequest{ContentID: id, Title: title, MediaKind: domain.MediaMovie}
}

func TestResolveBatchPartialFailure(t *testing.T) {
	down := map[int64]bool{2: true}
	svc := newTestService(nil,
		&stubSource{name: "a", offers: offersA, down: down},
		&stubSource{name: "b", offers: offersB, down: down},
	)

	results, err := svc.ResolveBatch(context.Background(), []domain.LookupRequest{
		item(1, "Heat"), item(2, "Ronin"), item(3, "Thief"),
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[2].TotalPlatforms != 0 {
		t.Errorf("item with all sources down should have 0 platforms, got %d", results[2].TotalPlatforms)
	}
	down2 := results[2]
	if down2.AnySourceAvailable() {
		t.Error("item 2 should report every source unavailable")
	}
	if results[1].TotalPlatforms != 4 || results[3].TotalPlatforms != 4 {
		t.Errorf("healthy items should have 4 platforms, got %d and %d", results[1].TotalPlatforms, results[3].TotalPlatforms)
	}
}

func TestResolveBatchOmitsInvalidItems(t *testing.T) {
	svc := newTestService(nil, &stubSource{name: "a", offers: offersA, panicOn: 4})

	results, err := svc.ResolveBatch(context.Background(), []domain.LookupRequest{
		item(1, "Heat"),
		item(2, ""),
		{ContentID: 3, Title: "Thief", MediaKind: "podcast"},
		item(4, "Collateral"),
		item(5, "Ali"),
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, id := range []int64{2, 3} {
		if _, ok := results[id]; ok {
			t.Errorf("invalid item %d should be omitted", id)
		}
	}
	// The provider panic is absorbed as an unavailable source, not an omission.
	if r, ok := results[4]; !ok || r.TotalPlatforms != 0 {
		t.Errorf("item 4 should be present with no platforms, got %+v", r)
	}
}

func TestResolveBatchAppliesSharedPreferences(t *testing.T) {
	svc := newTestService(nil, &stubSource{name: "b", offers: offersB})

	results, err := svc.ResolveBatch(context.Background(), []domain.LookupRequest{item(1, "Heat"), item(2, "Ronin")},
		&domain.PreferenceSet{SubscriptionTypes: []domain.AccessType{domain.AccessFree}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for id, r := range results {
		if r.TotalPlatforms != 1 || r.Platforms[0].ProviderName != "Tubi" {
			t.Errorf("item %d: expected only Tubi, got %+v", id, r.Platforms)
		}
		if r.FilteredOutCount != 2 {
			t.Errorf("item %d: expected 2 filtered out, got %d", id, r.FilteredOutCount)
		}
	}
}

func TestResolveBatchRejectsOversizedAndInvalidPrefs(t *testing.T) {
	svc := newTestService(nil, &stubSource{name: "a", offers: offersA})

	items := make([]domain.LookupRequest, 11)
	for i := range items {
		items[i] = item(int64(i+1), "t")
	}
	if _, err := svc.ResolveBatch(context.Background(), items, nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("oversized batch should be invalid input, got %v", err)
	}

	bad := &domain.PreferenceSet{SubscriptionTypes: []domain.AccessType{"lease"}}
	if _, err := svc.ResolveBatch(context.Background(), items[:1], bad); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("unknown access type should be invalid input, got %v", err)
	}
}

func TestResolveBatchCanceled(t *testing.T) {
	src := &stubSource{name: "a", offers: offersA}
	svc := newTestService(nil, src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := svc.ResolveBatch(ctx, []domain.LookupRequest{item(1, "a"), item(2, "b"), item(3, "c")}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("no item should run after cancellation, got %d", len(results))
	}
	if src.calls.Load() != 0 {
		t.Errorf("canceled batch should issue no upstream calls, got %d", src.calls.Load())
	}
}

func TestResolveBatchBoundedConcurrency(t *testing.T) {
	var inflight, peak atomic.Int32
	src := &countingSource{inflight: &inflight, peak: &peak}
	agg := aggregator.New([]provider.Provider{src}, cache.New[*domain.AvailabilityResult]())
	svc := NewService(agg, affiliate.NewGenerator(affiliate.Config{Secret: "s"}), nil, Options{BatchConcurrency: 2, BatchMaxItems: 10})

	items := make([]domain.LookupRequest, 8)
	for i := range items {
		items[i] = item(int64(i+1), "t")
	}
	results, err := svc.ResolveBatch(context.Background(), items, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 8 {
		t.Errorf("expected 8 results, got %d", len(results))
	}
	if peak.Load() > 2 {
		t.Errorf("expected at most 2 items in flight, saw %d", peak.Load())
	}
}

type countingSource struct {
	inflight *atomic.Int32
	peak     *atomic.Int32
}

func (c *countingSource) Name() domain.Source { return "counting" }

func (c *countingSource) Lookup(ctx context.Context, req domain.LookupRequest) ([]domain.PlatformEntry, error) {
	n := c.inflight.Add(1)
	defer c.inflight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return offersA, nil
}

func TestResolveForUser(t *testing.T) {
	store := newMemoryStore()
	store.prefs[7] = domain.PreferenceSet{ExcludedPlatforms: []string{"Netflix"}}
	svc := newTestService(store, &stubSource{name: "b", offers: offersB})

	res, err := svc.ResolveForUser(context.Background(), item(1, "Heat"), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.PreferencesApplied || res.TotalPlatforms != 2 {
		t.Errorf("expected saved exclusion to apply, got %+v", res)
	}

	for _, userID := range []int64{0, 8} {
		res, err = svc.ResolveForUser(context.Background(), item(1, "Heat"), userID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.PreferencesApplied || res.FilteredOutCount != 0 || res.TotalPlatforms != 3 {
			t.Errorf("user %d without preferences should see everything, got %+v", userID, res)
		}
	}

	store.failGet = true
	res, err = svc.ResolveForUser(context.Background(), item(1, "Heat"), 7)
	if err != nil {
		t.Fatalf("store failure should degrade, not fail: %v", err)
	}
	if res.TotalPlatforms != 3 {
		t.Errorf("expected unfiltered result on store failure, got %d", res.TotalPlatforms)
	}
}

func TestResolveAvailabilityFilteredInvalid(t *testing.T) {
	svc := newTestService(nil, &stubSource{name: "a", offers: offersA})

	_, err := svc.ResolveAvailabilityFiltered(context.Background(), item(0, "Heat"), nil)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestWatchLinkRecordsClick(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &stubSource{name: "b", offers: offersB})

	link, err := svc.WatchLink(context.Background(), item(100, "Heat"), "prime video", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link.Kind != domain.LinkTracked || link.Token == "" {
		t.Errorf("listed affiliate partner should get a tracked link, got %+v", link)
	}
	link0 := link

	link, err = svc.WatchLink(context.Background(), item(100, "Heat"), "Some Unknown Service", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link.Kind != domain.LinkWebSearch {
		t.Errorf("unknown service should fall back to web search, got %s", link.Kind)
	}

	if len(store.clicks) != 2 {
		t.Fatalf("expected 2 recorded clicks, got %d", len(store.clicks))
	}
	if store.clicks[0].ProviderName != "Amazon Prime Video" || store.clicks[0].ContentID != 100 {
		t.Errorf("unexpected click: %+v", store.clicks[0])
	}
	if store.clicks[0].TrackingToken != link0.Token || store.clicks[0].ID == "" {
		t.Errorf("click should carry an id and token: %+v", store.clicks[0])
	}
}

func TestSavePreferencesValidates(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	err := svc.SavePreferences(context.Background(), 1, domain.PreferenceSet{SubscriptionTypes: []domain.AccessType{"lease"}})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
	if err := svc.SavePreferences(context.Background(), 0, domain.PreferenceSet{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input for user 0, got %v", err)
	}

	want := domain.PreferenceSet{PreferredPlatforms: []string{"Hulu"}}
	if err := svc.SavePreferences(context.Background(), 1, want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := svc.GetPreferences(context.Background(), 1)
	if err != nil || got.PreferredPlatforms[0] != "Hulu" {
		t.Errorf("expected saved preferences back, got %+v, %v", got, err)
	}

	noDB := newTestService(nil)
	if err := noDB.SavePreferences(context.Background(), 1, want); !errors.Is(err, ErrNoStore) {
		t.Errorf("expected ErrNoStore, got %v", err)
	}
}
