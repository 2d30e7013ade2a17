package orchestrate

import (
	"context"

	"github.com/homepilot/homepilot/internal/domain"
)

// Router classifies a query into an intent and a target capability.
type Router interface {
	Classify(q domain.Query) (domain.RouteDecision, error)
	Idempotent(intent domain.Intent) bool
}

// Expander extracts filters and expansion terms from the query text.
type Expander interface {
	ExpandLang(text string, intent domain.Intent, language string) (domain.KnowledgeExpansion, error)
}

// Clarifier decides whether the query is too under-specified to dispatch.
type Clarifier interface {
	CheckLang(text string, intent domain.Intent, filters map[string]any, language string) (domain.AmbiguityResult, error)
}

// Resolver looks up the live endpoints serving a capability. An empty list
// means no healthy provider, not an error.
type Resolver interface {
	Resolve(ctx context.Context, capability string) ([]domain.Endpoint, error)
}

// Caller performs one resilient downstream call.
type Caller interface {
	Invoke(ctx context.Context, ep domain.Endpoint, path string, payload any, idempotent bool) (domain.Reply, error)
}

// Reranker re-orders a downstream result set for result-bearing intents.
type Reranker interface {
	Rerank(ctx context.Context, listings []domain.Listing, q domain.Query) ([]domain.RankedResult, domain.RerankMetadata, error)
}

// Logbook appends turns to the external conversation log.
type Logbook interface {
	Append(ctx context.Context, conversationID string, rec domain.TurnRecord) error
}
