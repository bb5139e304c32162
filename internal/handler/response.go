package handler

import (
	"time"

	"github.com/actuallystonmai/availability-service/internal/cache"
	"github.com/actuallystonmai/availability-service/internal/domain"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type BatchRequest struct {
	Items       []domain.LookupRequest `json:"items"`
	Preferences *domain.PreferenceSet  `json:"preferences,omitempty"`
}

type BatchResponse struct {
	Results map[int64]domain.FilteredResult `json:"results"`
	Summary BatchSummary                    `json:"summary"`
}

type BatchSummary struct {
	Requested        int   `json:"requested"`
	Succeeded        int   `json:"succeeded"`
	Omitted          int   `json:"omitted"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

type PreferencesResponse struct {
	UserID      int64                `json:"user_id"`
	Preferences domain.PreferenceSet `json:"preferences"`
}

type CacheStatsResponse struct {
	cache.Stats
	Sources []domain.Source `json:"sources"`
}

type CacheEntry struct {
	Key       string `json:"key"`
	StoredAt  string `json:"stored_at"`
	AgeMs     int64  `json:"age_ms"`
	ExpiresMs int64  `json:"expires_in_ms"`
	Expired   bool   `json:"expired"`
}

type CacheEntriesResponse struct {
	Count   int          `json:"count"`
	Entries []CacheEntry `json:"entries"`
}

type InvalidateResponse struct {
	Key     string `json:"key"`
	Removed bool   `json:"removed"`
}

type HealthResponse struct {
	Status  string          `json:"status"`
	Sources []domain.Source `json:"sources"`
	Time    string          `json:"time"`
}

func toCacheEntries(infos []cache.EntryInfo) []CacheEntry {
	out := make([]CacheEntry, len(infos))
	for i, e := range infos {
		out[i] = CacheEntry{
			Key:       e.Key,
			StoredAt:  e.StoredAt.UTC().Format(time.RFC3339),
			AgeMs:     e.Age.Milliseconds(),
			ExpiresMs: e.ExpiresIn.Milliseconds(),
			Expired:   e.Expired,
		}
	}
	return out
}
