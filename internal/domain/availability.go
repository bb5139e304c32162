package domain

import (
	"maps"
	"slices"
	"time"
)

type MediaKind string

const (
	MediaMovie  MediaKind = "movie"
	MediaSeries MediaKind = "series"
)

func (k MediaKind) Valid() bool {
	return k == MediaMovie || k == MediaSeries
}

// ParseMediaKind accepts the canonical names plus the "tv"/"show" spellings
// used by upstream catalogs.
func ParseMediaKind(s string) (MediaKind, error) {
	switch s {
	case "movie", "film":
		return MediaMovie, nil
	case "series", "tv", "show":
		return MediaSeries, nil
	}
	return "", ErrUnknownMediaKind
}

// AvailabilityResult is the merged view of where one title can be watched.
type AvailabilityResult struct {
	ContentID int64           `json:"content_id"`
	Title     string          `json:"title"`
	MediaKind MediaKind       `json:"media_kind"`
	Platforms []PlatformEntry `json:"platforms"`
	Summary
	SourceStatus map[Source]bool `json:"source_status"`
	FetchedAt    time.Time       `json:"fetched_at"`
	CacheHit     bool            `json:"cache_hit"`
}

// Clone returns a copy that shares no slices or maps with r.
func (r *AvailabilityResult) Clone() *AvailabilityResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Platforms = slices.Clone(r.Platforms)
	if c.Platforms == nil {
		c.Platforms = []PlatformEntry{}
	}
	c.SourceStatus = maps.Clone(r.SourceStatus)
	return &c
}

// AnySourceAvailable is false when every provider client failed for this title.
func (r *AvailabilityResult) AnySourceAvailable() bool {
	for _, ok := range r.SourceStatus {
		if ok {
			return true
		}
	}
	return false
}

// FilteredResult is an AvailabilityResult narrowed by a PreferenceSet.
type FilteredResult struct {
	AvailabilityResult
	FilteredOutCount   int  `json:"filtered_out_count"`
	PreferencesApplied bool `json:"preferences_applied"`
}
