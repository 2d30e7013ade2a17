package rerank

import (
	"math"
	"time"

	"github.com/homepilot/homepilot/internal/domain"
)

// Neutral values used when a signal is missing rather than zeroing it out.
const (
	neutralScore       = 0.5
	neutralBehavior    = 0.6
	prefMismatchScore  = 0.5
	priceRatioFloor    = 0.3
	interactionClicked = 0.7
)

// Reference engagement rates a listing is capped against.
const (
	refViewsPerDay     = 10.0
	refInquiriesPerDay = 2.0
	refFavoritesPerDay = 1.0
	refCTR             = 0.10
)

// completeness scores the fraction of required fields present (weight 0.7)
// against the fraction of optional fields present (weight 0.3). Missing,
// empty, and empty-list values all count as absent.
func completeness(l *domain.Listing) float64 {
	required := []bool{
		strPresent(l.Title),
		l.Price != nil,
		l.Area != nil,
		l.Bedrooms != nil,
		strPresent(l.District),
		strPresent(l.PropertyType),
		len(l.Images) > 0,
	}
	optional := []bool{
		strPresent(l.Description),
		l.Bathrooms != nil,
		strPresent(l.Address),
		strPresent(l.ContactPhone),
		l.Verified != nil,
	}
	return 0.7*fraction(required) + 0.3*fraction(optional)
}

// sellerReputation folds the seller's rating and verification into one
// quality sub-score. Listings with no seller signal stay neutral.
func sellerReputation(l *domain.Listing) float64 {
	score := neutralScore
	if l.SellerRating != nil {
		score = clamp01(*l.SellerRating / 5.0)
	}
	if l.Verified != nil && *l.Verified {
		score = clamp01(score + 0.2)
	}
	return score
}

// ageDecay is the exponential posting-age decay with a 30-day half-life.
func ageDecay(postedAt, now time.Time) float64 {
	days := now.Sub(postedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Exp2(-days / 30)
}

// freshness blends posting-age decay with a recency-of-update bonus.
// Unavailable when the listing carries no posting timestamp; the caller
// re-normalizes the weight set in that case.
func freshness(l *domain.Listing, now time.Time) (float64, bool) {
	if l.PostedAt == nil {
		return 0, false
	}
	decay := ageDecay(*l.PostedAt, now)

	var bonus float64
	if l.UpdatedAt != nil {
		switch age := now.Sub(*l.UpdatedAt); {
		case age <= 7*24*time.Hour:
			bonus = 0.2
		case age <= 30*24*time.Hour:
			bonus = 0.1
		}
	}
	return clamp01(0.667*decay + 0.333*bonus), true
}

// engagement blends capped per-day behavior rates over a trailing 7-day
// window with a 30-day CTR. New listings without analytics fall back to
// fixed neutral defaults.
func engagement(stats domain.EngagementStats, available bool) float64 {
	behavior := neutralBehavior
	ctr := neutralScore

	if available {
		views := capRatio(float64(stats.Views7d)/7, refViewsPerDay)
		inquiries := capRatio(float64(stats.Inquiries7d)/7, refInquiriesPerDay)
		favorites := capRatio(float64(stats.Favorites7d)/7, refFavoritesPerDay)
		behavior = 0.3*views + 0.4*inquiries + 0.3*favorites

		if stats.Impressions30d > 0 {
			ctr = capRatio(float64(stats.Clicks30d)/float64(stats.Impressions30d), refCTR)
		}
	}

	return clamp01(0.667*behavior + 0.333*ctr)
}

// personalization blends preference match (70%) with the prior-interaction
// signal (30%). Anonymous users score neutral throughout.
func personalization(l *domain.Listing, profile domain.Profile, hasProfile bool) float64 {
	if !hasProfile {
		return neutralScore
	}

	var parts []float64
	if p := priceMatch(l.Price, profile.Preferences); p >= 0 {
		parts = append(parts, p)
	}
	if m := listMatch(l.District, profile.Preferences.Districts); m >= 0 {
		parts = append(parts, m)
	}
	if m := listMatch(l.PropertyType, profile.Preferences.PropertyTypes); m >= 0 {
		parts = append(parts, m)
	}

	prefMatch := neutralScore
	if len(parts) > 0 {
		var sum float64
		for _, p := range parts {
			sum += p
		}
		prefMatch = sum / float64(len(parts))
	}

	var interaction float64
	switch profile.Interactions[l.ID] {
	case domain.InteractionInquired:
		interaction = 0.0 // inquiry already sent: suppress duplicates
	case domain.InteractionFavorited:
		interaction = 1.0
	case domain.InteractionClicked:
		interaction = interactionClicked
	default:
		interaction = neutralScore
	}

	return clamp01(0.7*prefMatch + 0.3*interaction)
}

// priceMatch scores price-range containment with partial credit via ratio
// when outside the range, floored at 0.3. Returns -1 when not applicable.
func priceMatch(price *float64, prefs domain.Preferences) float64 {
	if price == nil || (prefs.MinPrice == nil && prefs.MaxPrice == nil) {
		return -1
	}
	p := *price
	if prefs.MaxPrice != nil && p > *prefs.MaxPrice {
		return math.Max(*prefs.MaxPrice/p, priceRatioFloor)
	}
	if prefs.MinPrice != nil && p < *prefs.MinPrice {
		if *prefs.MinPrice <= 0 {
			return priceRatioFloor
		}
		return math.Max(p / *prefs.MinPrice, priceRatioFloor)
	}
	return 1.0
}

// listMatch scores 1.0 when the value appears in the preference list, a
// neutral default otherwise. Returns -1 when not applicable.
func listMatch(value *string, prefs []string) float64 {
	if value == nil || *value == "" || len(prefs) == 0 {
		return -1
	}
	for _, p := range prefs {
		if p == *value {
			return 1.0
		}
	}
	return prefMismatchScore
}

func strPresent(s *string) bool {
	return s != nil && *s != ""
}

func fraction(checks []bool) float64 {
	if len(checks) == 0 {
		return 0
	}
	var present int
	for _, ok := range checks {
		if ok {
			present++
		}
	}
	return float64(present) / float64(len(checks))
}

func capRatio(rate, reference float64) float64 {
	return math.Min(rate/reference, 1.0)
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
