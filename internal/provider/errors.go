package provider

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/actuallystonmai/availability-service/internal/domain"
)

// Reasons attached to UnavailableError.
const (
	ReasonTransport   = "transport"
	ReasonStatus      = "status"
	ReasonMalformed   = "malformed"
	ReasonTimeout     = "timeout"
	ReasonCircuitOpen = "circuit_open"
	ReasonPanic       = "panic"
)

// UnavailableError means a source could not answer for a title. It is never
// fatal to an aggregation.
type UnavailableError struct {
	Source domain.Source
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s unavailable: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("%s unavailable (%s): %v", e.Source, e.Reason, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func Unavailable(source domain.Source, reason string, err error) *UnavailableError {
	return &UnavailableError{Source: source, Reason: reason, Err: err}
}

func IsUnavailable(err error) bool {
	var target *UnavailableError
	return errors.As(err, &target)
}

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}

// Retryable is true for throttling and server-side failures.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsNotFound reports whether err is an upstream 404, which every client treats
// as "no offers" rather than a failure.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}
