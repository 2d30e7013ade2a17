// Package analytics reads per-listing engagement snapshots maintained by an
// external ingestion job.
package analytics

import (
	"context"
	"fmt"
	"strconv"

	"github.com/homepilot/homepilot/internal/domain"
)

const keyPrefix = "homepilot:analytics:"

// store is the consumer interface for analytics reads (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Repo reads engagement snapshots from per-listing hashes.
type Repo struct {
	store store
}

// New creates an analytics repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Stats returns the engagement snapshot for a listing. The bool result is
// false when no snapshot exists yet (new listings).
func (r *Repo) Stats(ctx context.Context, listingID string) (domain.EngagementStats, bool, error) {
	fields, err := r.store.HGetAll(ctx, keyPrefix+listingID)
	if err != nil {
		return domain.EngagementStats{}, false, fmt.Errorf("analytics HGETALL %s: %w", listingID, err)
	}
	if len(fields) == 0 {
		return domain.EngagementStats{}, false, nil
	}

	stats := domain.EngagementStats{
		Views7d:        intField(fields, "views_7d"),
		Inquiries7d:    intField(fields, "inquiries_7d"),
		Favorites7d:    intField(fields, "favorites_7d"),
		Impressions30d: intField(fields, "impressions_30d"),
		Clicks30d:      intField(fields, "clicks_30d"),
	}
	return stats, true, nil
}

// intField tolerates missing or malformed fields: a partially written
// snapshot degrades to zeros rather than failing the rerank.
func intField(fields map[string]string, name string) int {
	v, err := strconv.Atoi(fields[name])
	if err != nil {
		return 0
	}
	return v
}
