package cache

import (
	"fmt"

	"github.com/actuallystonmai/availability-service/internal/domain"
)

// AvailabilityKey is the key shared by the memory and redis tiers.
func AvailabilityKey(kind domain.MediaKind, contentID int64) string {
	return fmt.Sprintf("avail:%s:%d", kind, contentID)
}
