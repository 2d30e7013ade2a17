// Package route classifies a query into an intent and a target capability.
package route

import (
	"fmt"
	"strings"

	"github.com/homepilot/homepilot/internal/domain"
	"github.com/homepilot/homepilot/internal/lexicon"
)

// Route maps an intent to the downstream capability that serves it.
type Route struct {
	Capability string
	Path       string
	Idempotent bool
}

// DefaultRoutes is the static intent → capability mapping table.
func DefaultRoutes() map[domain.Intent]Route {
	return map[domain.Intent]Route{
		domain.IntentSearch:           {Capability: "search", Path: "/v1/search", Idempotent: true},
		domain.IntentCompare:          {Capability: "search", Path: "/v1/compare", Idempotent: true},
		domain.IntentPriceAnalysis:    {Capability: "pricing", Path: "/v1/analyze", Idempotent: true},
		domain.IntentInvestmentAdvice: {Capability: "analysis", Path: "/v1/insights", Idempotent: true},
		domain.IntentLocationInsights: {Capability: "analysis", Path: "/v1/insights", Idempotent: true},
		domain.IntentLegalGuidance:    {Capability: "chat", Path: "/v1/chat", Idempotent: false},
		domain.IntentChat:             {Capability: "chat", Path: "/v1/chat", Idempotent: false},
		domain.IntentUnknown:          {Capability: "chat", Path: "/v1/chat", Idempotent: false},
	}
}

// markerOrder fixes the refinement precedence so classification is
// deterministic regardless of map iteration order.
var markerOrder = []domain.Intent{
	domain.IntentCompare,
	domain.IntentPriceAnalysis,
	domain.IntentInvestmentAdvice,
	domain.IntentLocationInsights,
	domain.IntentLegalGuidance,
}

// Service is the keyword-table intent router.
type Service struct {
	lex          *lexicon.Lexicon
	routes       map[domain.Intent]Route
	defaultLimit int
}

// New creates an intent router over the given lexicon.
func New(lex *lexicon.Lexicon, defaultLimit int) *Service {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &Service{lex: lex, routes: DefaultRoutes(), defaultLimit: defaultLimit}
}

// Classify scores the query against the language's keyword tables and
// produces a routing decision. It always returns a usable decision: unknown
// or low-signal queries fall through to the conversational capability.
func (s *Service) Classify(q domain.Query) (domain.RouteDecision, error) {
	lang := s.lex.Language(q.Language)

	if q.HasAttachments {
		// Attachments need multimodal handling, not structured search.
		return s.decision(domain.IntentChat, q, 0.9, "attachments require the conversational capability"), nil
	}

	text := strings.ToLower(q.Text)
	searchScore := scoreTerms(text, lang.SearchTerms)
	chatScore := scoreTerms(text, lang.ChatTerms)

	intent := domain.IntentChat
	if searchScore > 0 && searchScore >= chatScore {
		// Ties favor retrieval: any domain signal means the user likely
		// wants listings, not small talk.
		intent = s.refine(text, lang)
	}

	confidence := 0.5
	if searchScore+chatScore > 0 {
		confidence = 0.9
	}

	reasoning := fmt.Sprintf("search_score=%.1f chat_score=%.1f", searchScore, chatScore)
	return s.decision(intent, q, confidence, reasoning), nil
}

// refine narrows a search-leaning query to a more specific result-bearing
// intent when a marker phrase is present.
func (s *Service) refine(text string, lang lexicon.Language) domain.Intent {
	for _, intent := range markerOrder {
		for _, marker := range lang.IntentMarkers[string(intent)] {
			if strings.Contains(text, marker) {
				return intent
			}
		}
	}
	return domain.IntentSearch
}

func (s *Service) decision(intent domain.Intent, q domain.Query, confidence float64, reasoning string) domain.RouteDecision {
	route, ok := s.routes[intent]
	if !ok {
		route = s.routes[domain.IntentChat]
	}
	return domain.RouteDecision{
		Intent:           intent,
		TargetCapability: route.Capability,
		EndpointPath:     route.Path,
		Params: domain.RoutingParams{
			RewrittenText: q.Text,
			Limit:         s.defaultLimit,
		},
		Confidence: confidence,
		Reasoning:  reasoning,
	}
}

// Idempotent reports whether calls for the intent may be retried.
func (s *Service) Idempotent(intent domain.Intent) bool {
	if route, ok := s.routes[intent]; ok {
		return route.Idempotent
	}
	return false
}

func scoreTerms(text string, terms map[string]float64) float64 {
	var score float64
	for term, weight := range terms {
		if strings.Contains(text, term) {
			score += weight
		}
	}
	return score
}
