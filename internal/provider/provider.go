// Package provider defines the contract every availability source implements
// and the plumbing shared by the concrete clients.
package provider

import (
	"context"

	"github.com/actuallystonmai/availability-service/internal/domain"
)

// Provider looks up where one title can be watched according to one source.
//
// An empty slice with a nil error means the source answered and has no
// offers. Any failure to get an answer is reported as *UnavailableError.
type Provider interface {
	Name() domain.Source
	Lookup(ctx context.Context, req domain.LookupRequest) ([]domain.PlatformEntry, error)
}

// AffiliateChecker reports whether a tracked link can be built for a service.
type AffiliateChecker func(providerName string) bool

func noAffiliates(string) bool { return false }

// Checker returns fn, or a checker that supports nothing when fn is nil.
func Checker(fn AffiliateChecker) AffiliateChecker {
	if fn == nil {
		return noAffiliates
	}
	return fn
}

// PathKind is the "movie"/"tv" segment most upstream APIs use.
func PathKind(kind domain.MediaKind) string {
	if kind == domain.MediaSeries {
		return "tv"
	}
	return "movie"
}
