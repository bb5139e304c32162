package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/actuallystonmai/availability-service/internal/domain"
)

// Get a user's saved preferences
func (r *Repository) GetPreferences(ctx context.Context, userID int64) (*domain.PreferenceSet, error) {
	var (
		prefs domain.PreferenceSet
		types []string
	)

	err := r.db.QueryRow(ctx,
		`SELECT preferred_platforms, excluded_platforms, subscription_types, only_affiliate_supported
		 FROM user_preferences WHERE user_id = $1`,
		userID,
	).Scan(&prefs.PreferredPlatforms, &prefs.ExcludedPlatforms, &types, &prefs.OnlyAffiliateSupported)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPreferencesNotFound
		}
		return nil, fmt.Errorf("query preferences user_id=%d: %w", userID, err)
	}

	for _, t := range types {
		prefs.SubscriptionTypes = append(prefs.SubscriptionTypes, domain.AccessType(t))
	}
	return &prefs, nil
}

// Insert or replace a user's preferences
func (r *Repository) SavePreferences(ctx context.Context, userID int64, prefs domain.PreferenceSet) error {
	types := make([]string, 0, len(prefs.SubscriptionTypes))
	for _, t := range prefs.SubscriptionTypes {
		types = append(types, string(t))
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO user_preferences
		   (user_id, preferred_platforms, excluded_platforms, subscription_types, only_affiliate_supported, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
		   preferred_platforms      = EXCLUDED.preferred_platforms,
		   excluded_platforms       = EXCLUDED.excluded_platforms,
		   subscription_types       = EXCLUDED.subscription_types,
		   only_affiliate_supported = EXCLUDED.only_affiliate_supported,
		   updated_at               = EXCLUDED.updated_at`,
		userID, nonNil(prefs.PreferredPlatforms), nonNil(prefs.ExcludedPlatforms), types, prefs.OnlyAffiliateSupported,
	)
	if err != nil {
		return fmt.Errorf("upsert preferences user_id=%d: %w", userID, err)
	}
	return nil
}

// Count stored preference rows, used by the seeder
func (r *Repository) CountPreferences(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM user_preferences`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count preferences: %w", err)
	}
	return total, nil
}

// Columns are NOT NULL; store empty arrays rather than NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
