package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/actuallystonmai/availability-service/internal/domain"
)

// Record one outbound click
func (r *Repository) RecordClick(ctx context.Context, ev domain.ClickEvent) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO affiliate_clicks (id, tracking_token, content_id, provider_name, link_kind, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.TrackingToken, ev.ContentID, ev.ProviderName, string(ev.LinkKind), ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert click content_id=%d: %w", ev.ContentID, err)
	}
	return nil
}

// ClickCount is the number of clicks for one service on one title.
type ClickCount struct {
	ProviderName string `json:"provider_name"`
	LinkKind     string `json:"link_kind"`
	Clicks       int64  `json:"clicks"`
}

// Count clicks per service for a title since a point in time
func (r *Repository) ClickCounts(ctx context.Context, contentID int64, since time.Time) ([]ClickCount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT provider_name, link_kind, COUNT(*)
		 FROM affiliate_clicks
		 WHERE content_id = $1 AND created_at >= $2
		 GROUP BY provider_name, link_kind
		 ORDER BY COUNT(*) DESC, provider_name`,
		contentID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("query click counts content_id=%d: %w", contentID, err)
	}
	defer rows.Close()

	counts := make([]ClickCount, 0)
	for rows.Next() {
		var c ClickCount
		if err := rows.Scan(&c.ProviderName, &c.LinkKind, &c.Clicks); err != nil {
			return nil, fmt.Errorf("scan click count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate click counts: %w", err)
	}
	return counts, nil
}
