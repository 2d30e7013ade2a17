// Package rerank re-orders a retrieval result set using a weighted,
// explainable multi-factor scoring model.
package rerank

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/homepilot/homepilot/internal/domain"
)

// Phase identifies the scoring model version in rerank metadata.
const Phase = "weighted_v1"

// Service computes per-feature scores and the final deterministic ordering.
type Service struct {
	analytics   AnalyticsReader
	profiles    ProfileReader
	weights     domain.Weights
	concurrency int
	logger      *zap.Logger

	now func() time.Time
}

// New creates a re-ranking engine. Weights must already be validated.
func New(analytics AnalyticsReader, profiles ProfileReader, weights domain.Weights, logger *zap.Logger) *Service {
	return &Service{
		analytics:   analytics,
		profiles:    profiles,
		weights:     weights,
		concurrency: 8,
		logger:      logger,
		now:         time.Now,
	}
}

// WithConcurrency bounds the analytics fan-out per request.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type statsEntry struct {
	stats domain.EngagementStats
	ok    bool
}

// Rerank scores every listing and returns them ordered by final score
// descending, ties broken by original retrieval score descending, then by
// listing ID ascending. The output is always a permutation of the input and
// identical inputs yield identical orderings.
func (s *Service) Rerank(
	ctx context.Context, listings []domain.Listing, q domain.Query,
) ([]domain.RankedResult, domain.RerankMetadata, error) {
	start := s.now()

	profile, hasProfile := s.loadProfile(ctx, q.UserID)

	// Analytics lookups fan out concurrently, bounded, into a slice indexed
	// by position so the ordering never depends on completion order.
	stats := make([]statsEntry, len(listings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range listings {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			st, ok, err := s.analytics.Stats(gctx, listings[i].ID)
			if err != nil {
				// A missing snapshot degrades to neutral defaults; only
				// cancellation aborts the pass.
				s.logger.Warn("analytics lookup failed",
					zap.String("listing_id", listings[i].ID),
					zap.Error(err),
				)
				return nil
			}
			stats[i] = statsEntry{stats: st, ok: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.RerankMetadata{}, err
	}

	now := s.now()
	ranked := make([]domain.RankedResult, len(listings))
	for i := range listings {
		l := &listings[i]
		ranked[i] = domain.RankedResult{
			Listing:       *l,
			OriginalScore: l.Score,
			Features:      s.score(l, stats[i], profile, hasProfile, now),
		}
		ranked[i].FinalScore = ranked[i].Features.WeightedTotal
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].FinalScore != ranked[j].FinalScore {
			return ranked[i].FinalScore > ranked[j].FinalScore
		}
		if ranked[i].OriginalScore != ranked[j].OriginalScore {
			return ranked[i].OriginalScore > ranked[j].OriginalScore
		}
		return ranked[i].Listing.ID < ranked[j].Listing.ID
	})

	meta := domain.RerankMetadata{
		Weights:          s.weights,
		ProcessingTimeMs: s.now().Sub(start).Milliseconds(),
		Count:            len(ranked),
		Phase:            Phase,
	}
	return ranked, meta, nil
}

// score computes the five feature scores and their weighted total. When a
// feature is unavailable (no posting timestamp for freshness) its weight is
// redistributed across the remaining features instead of zeroing the score.
func (s *Service) score(
	l *domain.Listing, st statsEntry, profile domain.Profile, hasProfile bool, now time.Time,
) domain.FeatureScores {
	fs := domain.FeatureScores{
		Completeness:     completeness(l),
		SellerReputation: sellerReputation(l),
		Engagement:       engagement(st.stats, st.ok),
		Personalization:  personalization(l, profile, hasProfile),
	}

	type component struct {
		score  float64
		weight float64
	}
	components := []component{
		{fs.Completeness, s.weights.Completeness},
		{fs.SellerReputation, s.weights.SellerReputation},
		{fs.Engagement, s.weights.Engagement},
		{fs.Personalization, s.weights.Personalization},
	}
	if fresh, ok := freshness(l, now); ok {
		fs.Freshness = fresh
		components = append(components, component{fresh, s.weights.Freshness})
	}

	var total, weightSum float64
	for _, c := range components {
		total += c.score * c.weight
		weightSum += c.weight
	}
	if weightSum > 0 {
		fs.WeightedTotal = total / weightSum
	}
	return fs
}

func (s *Service) loadProfile(ctx context.Context, userID string) (domain.Profile, bool) {
	if userID == "" || s.profiles == nil {
		return domain.Profile{}, false
	}
	profile, ok, err := s.profiles.Profile(ctx, userID)
	if err != nil {
		s.logger.Warn("profile lookup failed", zap.String("user_id", userID), zap.Error(err))
		return domain.Profile{}, false
	}
	return profile, ok
}
