package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/actuallystonmai/availability-service/internal/domain"
	"github.com/actuallystonmai/availability-service/internal/logging"
	"github.com/actuallystonmai/availability-service/internal/metrics"
)

// ResolveBatch resolves many titles concurrently, bounded by the configured
// batch concurrency, and returns the results keyed by content id.
//
// An item whose sources all failed is still present, with no platforms. An
// item that fails outright (bad input, an unexpected error) is logged and left
// out of the map; it never fails the batch. When ctx ends, items not yet
// started are skipped and the partial map is returned with ctx.Err().
func (s *Service) ResolveBatch(ctx context.Context, items []domain.LookupRequest, prefs *domain.PreferenceSet) (map[int64]domain.FilteredResult, error) {
	if len(items) > s.batchMaxItems {
		return nil, fmt.Errorf("%w: batch of %d items exceeds the limit of %d", domain.ErrInvalidInput, len(items), s.batchMaxItems)
	}
	if err := validatePreferences(prefs); err != nil {
		return nil, err
	}

	batchID := logging.CorrelationIDFromContext(ctx)
	var mu sync.Mutex
	results := make(map[int64]domain.FilteredResult, len(items))

	p := pool.New().WithMaxGoroutines(s.batchConcurrency)
	for i, item := range items {
		p.Go(func() {
			itemCtx := logging.ContextWithCorrelationID(ctx, logging.GenerateCorrelationID())
			log := logging.Ctx(itemCtx).With().
				Str("component", "batch").
				Str("batch_id", batchID).
				Int("item", i).
				Int64("content_id", item.ContentID).
				Logger()

			// The pool re-panics on Wait; one bad item must not take the batch down.
			defer func() {
				if r := recover(); r != nil {
					metrics.BatchItems.WithLabelValues("failed").Inc()
					log.Error().Interface("panic", r).Msg("batch item panicked")
				}
			}()

			if ctx.Err() != nil {
				metrics.BatchItems.WithLabelValues("skipped").Inc()
				return
			}

			res, err := s.resolveFiltered(itemCtx, item, prefs)
			if err != nil {
				metrics.BatchItems.WithLabelValues("failed").Inc()
				log.Warn().Err(err).Msg("batch item omitted")
				return
			}

			mu.Lock()
			results[res.ContentID] = res
			mu.Unlock()
			metrics.BatchItems.WithLabelValues("success").Inc()
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
