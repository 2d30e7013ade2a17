package domain

// KnowledgeExpansion is the output of the knowledge expander: canonicalized
// search terms plus structured filter predicates extracted from free text.
type KnowledgeExpansion struct {
	Terms     []string       `json:"terms"`
	Filters   map[string]any `json:"filters"`
	Reasoning string         `json:"reasoning,omitempty"`
}

// Clarification is one question to ask the user when a query is ambiguous.
type Clarification struct {
	Field    string `json:"field"`
	Question string `json:"question"`
	Priority int    `json:"priority"`
}

// AmbiguityResult reports whether a query is under-specified for its intent.
// IsAmbiguous is true iff Clarifications is non-empty.
type AmbiguityResult struct {
	IsAmbiguous    bool            `json:"is_ambiguous"`
	Clarifications []Clarification `json:"clarifications,omitempty"`
}

// Filter keys produced by the expander and consumed by the ambiguity
// detector and downstream retrieval services.
const (
	FilterPropertyType = "property_type"
	FilterDistrict     = "district"
	FilterCity         = "city"
	FilterBedrooms     = "bedrooms"
	FilterMinPrice     = "min_price"
	FilterMaxPrice     = "max_price"
	FilterAmenities    = "amenities"
)
