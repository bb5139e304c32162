package handler

import (
	"net/http"
	"time"

	"github.com/actuallystonmai/availability-service/internal/cache"
)

// GET /admin/cache/stats
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CacheStatsResponse{
		Stats:   h.service.CacheStats(),
		Sources: h.service.Sources(),
	})
}

// GET /admin/cache/entries
func (h *Handler) CacheEntries(w http.ResponseWriter, r *http.Request) {
	entries := toCacheEntries(h.service.CacheEntries())
	writeJSON(w, http.StatusOK, CacheEntriesResponse{Count: len(entries), Entries: entries})
}

// DELETE /admin/cache/{mediaKind}/{contentID}
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	kind, contentID, ok := titlePath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid media kind or content id")
		return
	}

	removed := h.service.Invalidate(r.Context(), kind, contentID)
	writeJSON(w, http.StatusOK, InvalidateResponse{
		Key:     cache.AvailabilityKey(kind, contentID),
		Removed: removed,
	})
}

// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Sources: h.service.Sources(),
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}
