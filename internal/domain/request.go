package domain

import (
	"fmt"
	"strings"

	"github.com/actuallystonmai/availability-service/internal/validation"
)

// LookupRequest identifies one title to resolve. It doubles as a batch item.
type LookupRequest struct {
	ContentID  int64     `json:"content_id" validate:"gt=0"`
	Title      string    `json:"title" validate:"required"`
	MediaKind  MediaKind `json:"media_kind" validate:"required"`
	ExternalID string    `json:"external_id,omitempty"`
}

// Normalize trims free-text fields and returns the cleaned request.
func (r LookupRequest) Normalize() LookupRequest {
	r.Title = strings.TrimSpace(r.Title)
	r.ExternalID = strings.TrimSpace(r.ExternalID)
	return r
}

// Validate returns an error wrapping ErrInvalidInput when r cannot be
// resolved. An unrecognised media kind also wraps ErrUnknownMediaKind.
func (r LookupRequest) Validate() error {
	if err := validation.ValidateStruct(r.Normalize()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if !r.MediaKind.Valid() {
		return fmt.Errorf("%w: %w %q", ErrInvalidInput, ErrUnknownMediaKind, r.MediaKind)
	}
	return nil
}
