package domain

import (
	"encoding/json"
	"time"
)

// Listing is one property result returned by a retrieval capability.
// Upstream sources are heterogeneous, so every attribute is optional;
// unrecognized attributes are preserved in Extra for forward compatibility.
type Listing struct {
	ID           string     `json:"id"`
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Price        *float64   `json:"price,omitempty"` // VND
	Area         *float64   `json:"area,omitempty"`  // m2
	Bedrooms     *int       `json:"bedrooms,omitempty"`
	Bathrooms    *int       `json:"bathrooms,omitempty"`
	PropertyType *string    `json:"property_type,omitempty"`
	District     *string    `json:"district,omitempty"`
	City         *string    `json:"city,omitempty"`
	Address      *string    `json:"address,omitempty"`
	Images       []string   `json:"images,omitempty"`
	ContactPhone *string    `json:"contact_phone,omitempty"`
	Verified     *bool      `json:"verified,omitempty"`
	SellerRating *float64   `json:"seller_rating,omitempty"` // 0..5
	PostedAt     *time.Time `json:"posted_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	Score        float64    `json:"score"` // original retrieval score

	Extra map[string]json.RawMessage `json:"extra,omitempty"`
}

// Reply is the JSON envelope every downstream capability answers with.
// Retrieval capabilities fill Results; conversational ones fill ResponseText.
type Reply struct {
	Results      []Listing `json:"results,omitempty"`
	ResponseText string    `json:"response_text,omitempty"`
	TookMs       int64     `json:"took_ms"`
	ServiceUsed  string    `json:"service_used"`
}

// EngagementStats is the trailing-window analytics snapshot for one listing.
type EngagementStats struct {
	Views7d        int `json:"views_7d"`
	Inquiries7d    int `json:"inquiries_7d"`
	Favorites7d    int `json:"favorites_7d"`
	Impressions30d int `json:"impressions_30d"`
	Clicks30d      int `json:"clicks_30d"`
}

// InteractionKind is a user's strongest prior interaction with a listing.
type InteractionKind string

const (
	InteractionNone      InteractionKind = ""
	InteractionClicked   InteractionKind = "clicked"
	InteractionFavorited InteractionKind = "favorited"
	InteractionInquired  InteractionKind = "inquired"
)

// Preferences are a user's saved search preferences.
type Preferences struct {
	MinPrice      *float64 `json:"min_price,omitempty"`
	MaxPrice      *float64 `json:"max_price,omitempty"`
	Districts     []string `json:"districts,omitempty"`
	PropertyTypes []string `json:"property_types,omitempty"`
}

// Profile bundles a user's preferences with their per-listing interactions.
type Profile struct {
	Preferences  Preferences                `json:"preferences"`
	Interactions map[string]InteractionKind `json:"interactions,omitempty"` // listing ID -> kind
}
