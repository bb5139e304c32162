package handler

import (
	"net/http"

	"github.com/actuallystonmai/availability-service/internal/domain"
)

// GET /titles/{mediaKind}/{contentID}/availability?title=&external_id=&user_id=
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	req, userID, ok := lookupFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.service.ResolveForUser(r.Context(), req, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /titles/{mediaKind}/{contentID}/watch?provider=&title=&user_id=
//
// Redirects to the outbound link for the named service and records the click.
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	providerName := r.URL.Query().Get("provider")
	if providerName == "" {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Missing provider parameter")
		return
	}
	req, userID, ok := lookupFromRequest(w, r)
	if !ok {
		return
	}

	link, err := h.service.WatchLink(r.Context(), req, providerName, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("X-Link-Kind", string(link.Kind))
	http.Redirect(w, r, link.URL, http.StatusFound)
}

func lookupFromRequest(w http.ResponseWriter, r *http.Request) (domain.LookupRequest, int64, bool) {
	kind, contentID, ok := titlePath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid media kind or content id")
		return domain.LookupRequest{}, 0, false
	}
	userID, ok := optionalUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid user_id parameter")
		return domain.LookupRequest{}, 0, false
	}

	q := r.URL.Query()
	return domain.LookupRequest{
		ContentID:  contentID,
		Title:      q.Get("title"),
		MediaKind:  kind,
		ExternalID: q.Get("external_id"),
	}, userID, true
}
