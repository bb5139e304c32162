package seeds

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/actuallystonmai/availability-service/internal/domain"
	"github.com/actuallystonmai/availability-service/internal/logging"
	"github.com/actuallystonmai/availability-service/internal/repository"
)

// PreferenceWriter is the slice of the repository the seeder needs.
type PreferenceWriter interface {
	SavePreferences(ctx context.Context, userID int64, prefs domain.PreferenceSet) error
}

var platforms = []string{
	"Netflix", "Disney+", "Amazon Prime Video", "Max", "Hulu",
	"Apple TV+", "Peacock", "Paramount+", "Tubi", "Pluto TV",
}

// Setup replaces all saved preferences with n deterministic demo users.
func Setup(ctx context.Context, db repository.Querier, prefs PreferenceWriter, n int) error {
	rng := rand.New(rand.NewSource(42))
	log := logging.WithComponent("seed")

	// Truncate existing data before insert
	log.Info().Msg("truncating existing preferences")
	if _, err := db.Exec(ctx, `TRUNCATE user_preferences`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	log.Info().Int("users", n).Msg("inserting preferences")
	for i := range n {
		userID := int64(i + 1)
		if err := prefs.SavePreferences(ctx, userID, demoPreferences(rng)); err != nil {
			return fmt.Errorf("seed user %d: %w", userID, err)
		}
	}

	log.Info().Msg("seeding complete")
	return nil
}

// demoPreferences draws one user's settings. Roughly a third of users pick
// favorite services, a third exclude some, and the rest only restrict types.
func demoPreferences(rng *rand.Rand) domain.PreferenceSet {
	var p domain.PreferenceSet

	switch weightedChoice(rng, []string{"preferred", "excluded", "types"}, []float64{0.35, 0.35, 0.3}) {
	case "preferred":
		p.PreferredPlatforms = pick(rng, platforms, 1+rng.Intn(3))
	case "excluded":
		p.ExcludedPlatforms = pick(rng, platforms, 1+rng.Intn(2))
	}

	if rng.Float64() < 0.5 {
		types := []domain.AccessType{domain.AccessSubscription, domain.AccessFree}
		if rng.Float64() < 0.3 {
			types = append(types, domain.AccessRent)
		}
		p.SubscriptionTypes = types
	}
	p.OnlyAffiliateSupported = rng.Float64() < 0.1
	return p
}

func pick(rng *rand.Rand, from []string, k int) []string {
	idx := rng.Perm(len(from))[:k]
	out := make([]string, k)
	for i, j := range idx {
		out[i] = from[j]
	}
	return out
}

func weightedChoice(rng *rand.Rand, choices []string, weights []float64) string {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if r <= cumulative {
			return choices[i]
		}
	}
	return choices[len(choices)-1]
}
