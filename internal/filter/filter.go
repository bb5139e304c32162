// Package filter narrows an AvailabilityResult by a viewer's PreferenceSet.
package filter

import (
	"github.com/actuallystonmai/availability-service/internal/domain"
)

// Apply returns result narrowed by prefs. It never mutates result.
//
// The steps run in a fixed order and each only narrows the previous one:
// allowlist, then blocklist (so exclusion wins over inclusion), then access
// types, then affiliate support. Provider names are compared after
// domain.NormalizeProviderName, the same key the merge uses. A nil or empty
// prefs is the identity.
func Apply(result *domain.AvailabilityResult, prefs *domain.PreferenceSet) domain.FilteredResult {
	if result == nil {
		return domain.FilteredResult{AvailabilityResult: domain.AvailabilityResult{Platforms: []domain.PlatformEntry{}}}
	}

	base := result.Clone()
	original := len(base.Platforms)
	if prefs.IsEmpty() {
		base.Summary = domain.Summarize(base.Platforms)
		return domain.FilteredResult{AvailabilityResult: *base}
	}

	kept := base.Platforms

	// Lists whose names all normalize to "" constrain nothing.
	if allowed := nameSet(prefs.PreferredPlatforms); len(allowed) > 0 {
		kept = keep(kept, func(p domain.PlatformEntry) bool {
			_, ok := allowed[p.NormalizedName()]
			return ok
		})
	}

	if blocked := nameSet(prefs.ExcludedPlatforms); len(blocked) > 0 {
		kept = keep(kept, func(p domain.PlatformEntry) bool {
			_, ok := blocked[p.NormalizedName()]
			return !ok
		})
	}

	if len(prefs.SubscriptionTypes) > 0 {
		types := make(map[domain.AccessType]struct{}, len(prefs.SubscriptionTypes))
		for _, t := range prefs.SubscriptionTypes {
			types[t] = struct{}{}
		}
		kept = keep(kept, func(p domain.PlatformEntry) bool {
			_, ok := types[p.AccessType]
			return ok
		})
	}

	if prefs.OnlyAffiliateSupported {
		kept = keep(kept, func(p domain.PlatformEntry) bool {
			return p.AffiliateSupported
		})
	}

	base.Platforms = kept
	base.Summary = domain.Summarize(kept)
	return domain.FilteredResult{
		AvailabilityResult: *base,
		FilteredOutCount:   original - len(kept),
		PreferencesApplied: true,
	}
}

func nameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if key := domain.NormalizeProviderName(n); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

// keep returns the entries matching fn in a new slice, preserving order.
func keep(entries []domain.PlatformEntry, fn func(domain.PlatformEntry) bool) []domain.PlatformEntry {
	out := make([]domain.PlatformEntry, 0, len(entries))
	for _, e := range entries {
		if fn(e) {
			out = append(out, e)
		}
	}
	return out
}
