// Package handler exposes the availability engine over HTTP. Handlers only
// parse requests and map results; all behavior lives in the service package.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/actuallystonmai/availability-service/internal/domain"
	"github.com/actuallystonmai/availability-service/internal/logging"
	"github.com/actuallystonmai/availability-service/internal/service"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type Handler struct {
	service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// write JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Str("component", "handler").Msg("failed to write response")
	}
}

// writes JSON error response.
func writeError(w http.ResponseWriter, status int, errCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}

// writeServiceError maps engine errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrPreferencesNotFound):
		writeError(w, http.StatusNotFound, "preferences_not_found", "No preferences saved for this user")
	case errors.Is(err, service.ErrNoStore):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "Preference storage is not configured")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request_timeout", "Request timed out, please try again")
	default:
		logging.Ctx(r.Context()).Error().Err(err).
			Str("component", "handler").
			Str("path", r.URL.Path).
			Msg("unexpected error")
		writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// titlePath reads {mediaKind} and {contentID} from the route.
func titlePath(r *http.Request) (domain.MediaKind, int64, bool) {
	kind, err := domain.ParseMediaKind(chi.URLParam(r, "mediaKind"))
	if err != nil {
		return "", 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "contentID"), 10, 64)
	if err != nil || id <= 0 {
		return "", 0, false
	}
	return kind, id, true
}

// optionalUserID parses the user_id query parameter; absent means anonymous.
func optionalUserID(r *http.Request) (int64, bool) {
	s := r.URL.Query().Get("user_id")
	if s == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}
