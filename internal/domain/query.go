package domain

import (
	"net"
	"strconv"
	"time"
)

// Query is one incoming user turn. Immutable once constructed.
type Query struct {
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	HasAttachments bool   `json:"has_attachments,omitempty"`
	Language       string `json:"language,omitempty"` // "vi" (default) or "en"
}

// Intent is the classified purpose of a query.
type Intent string

const (
	IntentSearch           Intent = "search"
	IntentCompare          Intent = "compare"
	IntentPriceAnalysis    Intent = "price_analysis"
	IntentInvestmentAdvice Intent = "investment_advice"
	IntentLocationInsights Intent = "location_insights"
	IntentLegalGuidance    Intent = "legal_guidance"
	IntentChat             Intent = "chat"
	IntentUnknown          Intent = "unknown"
)

// BearsResults reports whether the intent produces a listing result set
// (and therefore goes through expansion, ambiguity checks, and re-ranking).
func (i Intent) BearsResults() bool {
	switch i {
	case IntentSearch, IntentCompare, IntentPriceAnalysis, IntentInvestmentAdvice, IntentLocationInsights:
		return true
	}
	return false
}

// RoutingParams carry the rewritten query and extracted filters to a downstream.
type RoutingParams struct {
	Filters       map[string]any `json:"filters,omitempty"`
	RewrittenText string         `json:"rewritten_text,omitempty"`
	Limit         int            `json:"limit,omitempty"`
}

// RouteDecision is produced once per query by the intent router.
type RouteDecision struct {
	Intent           Intent        `json:"intent"`
	TargetCapability string        `json:"target_capability"`
	EndpointPath     string        `json:"endpoint_path"`
	Params           RoutingParams `json:"params"`
	Confidence       float64       `json:"confidence"`
	Reasoning        string        `json:"reasoning,omitempty"`
}

// ReasoningStep records one pipeline stage for the caller-visible audit trail.
type ReasoningStep struct {
	Stage    string        `json:"stage"`
	Input    string        `json:"input,omitempty"`
	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// ReasoningChain is the append-only sequence of steps for one request.
// Owned by the orchestrator for the request's lifetime; never persisted.
type ReasoningChain struct {
	steps []ReasoningStep
}

// Append adds one step to the chain.
func (c *ReasoningChain) Append(stage, input, output string, d time.Duration) {
	c.steps = append(c.steps, ReasoningStep{Stage: stage, Input: input, Output: output, Duration: d})
}

// Steps returns the recorded steps in order.
func (c *ReasoningChain) Steps() []ReasoningStep {
	return c.steps
}

// Endpoint is one live provider of a capability, as resolved by the registry.
type Endpoint struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Version string `json:"version,omitempty"`
}

// Addr returns the host:port key used for breaker and pool bookkeeping.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}
