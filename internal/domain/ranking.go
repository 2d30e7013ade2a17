package domain

import (
	"fmt"
	"math"
)

// FeatureScores is the per-feature breakdown behind one final score.
// Every component is in [0,1]. Computed fresh per (result, request) pair;
// personalization depends on the requesting user, so scores are never
// cached across requests.
type FeatureScores struct {
	Completeness     float64 `json:"completeness"`
	SellerReputation float64 `json:"seller_reputation"`
	Freshness        float64 `json:"freshness"`
	Engagement       float64 `json:"engagement"`
	Personalization  float64 `json:"personalization"`
	WeightedTotal    float64 `json:"weighted_total"`
}

// RankedResult is a listing with its re-ranking outcome attached.
type RankedResult struct {
	Listing       Listing       `json:"listing"`
	FinalScore    float64       `json:"final_score"`
	OriginalScore float64       `json:"original_score"`
	Features      FeatureScores `json:"features"`
}

// Weights configure the weighted-sum re-ranker. They must sum to 1.0;
// the engine re-normalizes at scoring time when a feature is unavailable
// for a particular listing.
type Weights struct {
	Completeness     float64 `json:"completeness" yaml:"completeness"`
	SellerReputation float64 `json:"seller_reputation" yaml:"seller_reputation"`
	Freshness        float64 `json:"freshness" yaml:"freshness"`
	Engagement       float64 `json:"engagement" yaml:"engagement"`
	Personalization  float64 `json:"personalization" yaml:"personalization"`
}

// DefaultWeights returns the reference weighting: a 60% listing-quality
// bucket (completeness 40% + seller reputation 20%), 15% freshness,
// 15% engagement, 10% personalization.
func DefaultWeights() Weights {
	return Weights{
		Completeness:     0.40,
		SellerReputation: 0.20,
		Freshness:        0.15,
		Engagement:       0.15,
		Personalization:  0.10,
	}
}

// Sum returns the total of all five weights.
func (w Weights) Sum() float64 {
	return w.Completeness + w.SellerReputation + w.Freshness + w.Engagement + w.Personalization
}

// Validate checks that every weight is non-negative and the sum is 1.0.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Completeness, w.SellerReputation, w.Freshness, w.Engagement, w.Personalization} {
		if v < 0 {
			return fmt.Errorf("rerank weight must be non-negative, got %v", v)
		}
	}
	if s := w.Sum(); math.Abs(s-1.0) > 1e-6 {
		return fmt.Errorf("rerank weights must sum to 1.0, got %v", s)
	}
	return nil
}

// RerankMetadata describes one re-ranking pass for the caller.
type RerankMetadata struct {
	Weights          Weights `json:"weights"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`
	Count            int     `json:"count"`
	Phase            string  `json:"phase"`
}
