package aggregator

import "github.com/actuallystonmai/availability-service/internal/domain"

// Merge deduplicates entries by normalized provider name, keeping the order
// in which each service was first seen.
//
// On a collision the entry with richer metadata wins: a web URL beats a
// price, a price beats neither, and the earlier entry wins a tie. Affiliate
// support is sticky: if any duplicate supports it, the merged entry does.
// Entries whose name normalizes to nothing are dropped.
func Merge(entries []domain.PlatformEntry) []domain.PlatformEntry {
	merged := make([]domain.PlatformEntry, 0, len(entries))
	index := make(map[string]int, len(entries))

	for _, e := range entries {
		key := e.NormalizedName()
		if key == "" {
			continue
		}

		i, seen := index[key]
		if !seen {
			index[key] = len(merged)
			merged = append(merged, e)
			continue
		}

		affiliate := merged[i].AffiliateSupported || e.AffiliateSupported
		if richness(e) > richness(merged[i]) {
			merged[i] = e
		}
		merged[i].AffiliateSupported = affiliate
	}

	return merged
}

func richness(e domain.PlatformEntry) int {
	score := 0
	if e.WebURL != "" {
		score += 2
	}
	if e.Price != nil {
		score++
	}
	return score
}
