package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/actuallystonmai/availability-service/internal/domain"
)

// GET /users/{userID}/preferences
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	prefs, err := h.service.GetPreferences(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PreferencesResponse{UserID: userID, Preferences: *prefs})
}

// PUT /users/{userID}/preferences
func (h *Handler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	var prefs domain.PreferenceSet
	if err := decodeJSON(w, r, &prefs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Request body must be a JSON preference set")
		return
	}

	if err := h.service.SavePreferences(r.Context(), userID, prefs); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PreferencesResponse{UserID: userID, Preferences: prefs})
}

func pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid user_id parameter")
		return 0, false
	}
	return userID, true
}
