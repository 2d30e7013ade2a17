package domain

// Outcome is the caller-visible result of one orchestrated query turn.
type Outcome struct {
	Intent             Intent          `json:"intent"`
	Confidence         float64         `json:"confidence"`
	NeedsClarification bool            `json:"needs_clarification"`
	Clarifications     []Clarification `json:"clarifications,omitempty"`
	ResponseText       string          `json:"response_text,omitempty"`
	Results            []RankedResult  `json:"results,omitempty"`
	ReasoningChain     []ReasoningStep `json:"reasoning_chain"`
	ServiceUsed        string          `json:"service_used,omitempty"`
	TookMs             int64           `json:"took_ms"`
}
