// Package service is the engine's entry point for the request layer: single
// and batch resolution, preference filtering, and outbound links.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/actuallystonmai/availability-service/internal/cache"
	"github.com/actuallystonmai/availability-service/internal/domain"
	"github.com/actuallystonmai/availability-service/internal/filter"
	"github.com/actuallystonmai/availability-service/internal/logging"
	"github.com/actuallystonmai/availability-service/internal/validation"
)

const (
	defaultBatchConcurrency = 8
	defaultBatchMaxItems    = 50

	// Click recording runs after the caller may have gone; bound it.
	clickRecordTimeout = 2 * time.Second
)

// Resolver produces merged availability. Implemented by *aggregator.Aggregator.
type Resolver interface {
	Resolve(ctx context.Context, req domain.LookupRequest) (*domain.AvailabilityResult, error)
	Invalidate(ctx context.Context, kind domain.MediaKind, contentID int64) bool
	CacheStats() cache.Stats
	CacheEntries() []cache.EntryInfo
	Sources() []domain.Source
}

// LinkBuilder is implemented by *affiliate.Generator.
type LinkBuilder interface {
	Build(entry domain.PlatformEntry, userID string, contentID int64, title string) domain.AffiliateLink
}

// Store persists preferences and clicks. Implemented by *repository.Repository.
type Store interface {
	GetPreferences(ctx context.Context, userID int64) (*domain.PreferenceSet, error)
	SavePreferences(ctx context.Context, userID int64, prefs domain.PreferenceSet) error
	RecordClick(ctx context.Context, ev domain.ClickEvent) error
}

type Options struct {
	BatchConcurrency int
	BatchMaxItems    int
}

type Service struct {
	resolver Resolver
	links    LinkBuilder
	store    Store

	batchConcurrency int
	batchMaxItems    int
	now              func() time.Time
}

// NewService wires the engine. store may be nil, in which case every user is
// treated as having no saved preferences and clicks are not recorded.
func NewService(resolver Resolver, links LinkBuilder, store Store, opts Options) *Service {
	s := &Service{
		resolver:         resolver,
		links:            links,
		store:            store,
		batchConcurrency: opts.BatchConcurrency,
		batchMaxItems:    opts.BatchMaxItems,
		now:              time.Now,
	}
	if s.batchConcurrency <= 0 {
		s.batchConcurrency = defaultBatchConcurrency
	}
	if s.batchMaxItems <= 0 {
		s.batchMaxItems = defaultBatchMaxItems
	}
	return s
}

func (s *Service) BatchMaxItems() int {
	return s.batchMaxItems
}

// ResolveAvailability returns the merged, cache-aware availability for one title.
func (s *Service) ResolveAvailability(ctx context.Context, req domain.LookupRequest) (*domain.AvailabilityResult, error) {
	return s.resolver.Resolve(ctx, req)
}

// ResolveAvailabilityFiltered narrows the result by prefs; nil prefs is the
// identity.
func (s *Service) ResolveAvailabilityFiltered(ctx context.Context, req domain.LookupRequest, prefs *domain.PreferenceSet) (domain.FilteredResult, error) {
	if err := validatePreferences(prefs); err != nil {
		return domain.FilteredResult{}, err
	}
	return s.resolveFiltered(ctx, req, prefs)
}

func (s *Service) resolveFiltered(ctx context.Context, req domain.LookupRequest, prefs *domain.PreferenceSet) (domain.FilteredResult, error) {
	res, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		return domain.FilteredResult{}, err
	}
	return filter.Apply(res, prefs), nil
}

// ResolveForUser filters by the user's saved preferences. A user without
// saved preferences, or an anonymous one (userID 0), sees everything. A
// failing preference store degrades to the same unfiltered view.
func (s *Service) ResolveForUser(ctx context.Context, req domain.LookupRequest, userID int64) (domain.FilteredResult, error) {
	return s.resolveFiltered(ctx, req, s.preferencesFor(ctx, userID))
}

func (s *Service) preferencesFor(ctx context.Context, userID int64) *domain.PreferenceSet {
	if userID <= 0 || s.store == nil {
		return nil
	}
	prefs, err := s.store.GetPreferences(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrPreferencesNotFound) {
			logging.Ctx(ctx).Warn().Err(err).
				Str("component", "service").
				Int64("user_id", userID).
				Msg("preference lookup failed, serving unfiltered")
		}
		return nil
	}
	return prefs
}

// BuildAffiliateLink builds the outbound link for entry and records the
// click. Recording is best-effort and never affects the returned link.
func (s *Service) BuildAffiliateLink(ctx context.Context, entry domain.PlatformEntry, userID, contentID int64, title string) domain.AffiliateLink {
	link := s.links.Build(entry, userKey(userID), contentID, title)
	s.recordClick(ctx, entry, contentID, link)
	return link
}

// WatchLink resolves the title and builds the link for the named service. A
// service the title is not listed on still gets a search fallback.
func (s *Service) WatchLink(ctx context.Context, req domain.LookupRequest, providerName string, userID int64) (domain.AffiliateLink, error) {
	res, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		return domain.AffiliateLink{}, err
	}

	entry := domain.PlatformEntry{ProviderName: providerName}
	want := domain.NormalizeProviderName(providerName)
	for _, p := range res.Platforms {
		if p.NormalizedName() == want {
			entry = p
			break
		}
	}
	return s.BuildAffiliateLink(ctx, entry, userID, res.ContentID, res.Title), nil
}

func (s *Service) recordClick(ctx context.Context, entry domain.PlatformEntry, contentID int64, link domain.AffiliateLink) {
	if s.store == nil {
		return
	}
	ev := domain.ClickEvent{
		ID:            uuid.NewString(),
		TrackingToken: link.Token,
		ContentID:     contentID,
		ProviderName:  entry.ProviderName,
		LinkKind:      link.Kind,
		CreatedAt:     s.now().UTC(),
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), clickRecordTimeout)
	defer cancel()
	if err := s.store.RecordClick(recordCtx, ev); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("component", "service").
			Int64("content_id", contentID).
			Str("provider", entry.ProviderName).
			Msg("failed to record click")
	}
}

func (s *Service) GetPreferences(ctx context.Context, userID int64) (*domain.PreferenceSet, error) {
	if s.store == nil {
		return nil, domain.ErrPreferencesNotFound
	}
	return s.store.GetPreferences(ctx, userID)
}

func (s *Service) SavePreferences(ctx context.Context, userID int64, prefs domain.PreferenceSet) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user id must be positive", domain.ErrInvalidInput)
	}
	if err := validatePreferences(&prefs); err != nil {
		return err
	}
	if s.store == nil {
		return fmt.Errorf("save preferences: %w", ErrNoStore)
	}
	return s.store.SavePreferences(ctx, userID, prefs)
}

func (s *Service) CacheStats() cache.Stats {
	return s.resolver.CacheStats()
}

func (s *Service) CacheEntries() []cache.EntryInfo {
	return s.resolver.CacheEntries()
}

func (s *Service) Invalidate(ctx context.Context, kind domain.MediaKind, contentID int64) bool {
	return s.resolver.Invalidate(ctx, kind, contentID)
}

func (s *Service) Sources() []domain.Source {
	return s.resolver.Sources()
}

// ErrNoStore is returned by writes when the service runs without a database.
var ErrNoStore = errors.New("no preference store configured")

func validatePreferences(prefs *domain.PreferenceSet) error {
	if prefs == nil {
		return nil
	}
	if err := validation.ValidateStruct(prefs); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

// userKey is the user id as fed into click tokens; anonymous users share "".
func userKey(userID int64) string {
	if userID <= 0 {
		return ""
	}
	return strconv.FormatInt(userID, 10)
}
