package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/actuallystonmai/availability-service/internal/domain"
	"github.com/actuallystonmai/availability-service/internal/logging"
)

// POST /availability/batch
func (h *Handler) PostBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var body BatchRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Request body must be a JSON batch")
		return
	}
	if len(body.Items) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_body", "Batch must contain at least one item")
		return
	}
	if limit := h.service.BatchMaxItems(); len(body.Items) > limit {
		writeError(w, http.StatusBadRequest, "batch_too_large",
			fmt.Sprintf("Batch of %d items exceeds the limit of %d", len(body.Items), limit))
		return
	}

	results, err := h.service.ResolveBatch(r.Context(), body.Items, body.Preferences)
	if err != nil && (results == nil || errors.Is(err, domain.ErrInvalidInput)) {
		writeServiceError(w, r, err)
		return
	}
	if err != nil {
		// The caller's deadline cut the batch short; return what finished.
		logging.Ctx(r.Context()).Warn().Err(err).
			Str("component", "handler").
			Int("completed", len(results)).
			Msg("batch returned partially")
	}

	writeJSON(w, http.StatusOK, BatchResponse{
		Results: results,
		Summary: BatchSummary{
			Requested:        len(body.Items),
			Succeeded:        len(results),
			Omitted:          len(body.Items) - len(results),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
	})
}
