package rerank

import (
	"context"

	"github.com/homepilot/homepilot/internal/domain"
)

// AnalyticsReader reads engagement snapshots for listings. The bool result
// reports whether analytics exist for the listing (new listings have none).
type AnalyticsReader interface {
	Stats(ctx context.Context, listingID string) (domain.EngagementStats, bool, error)
}

// ProfileReader reads user preferences and prior interactions.
type ProfileReader interface {
	Profile(ctx context.Context, userID string) (domain.Profile, bool, error)
}
