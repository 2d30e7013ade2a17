// Package orchestrate sequences one query turn through classification,
// expansion, ambiguity checking, dispatch, and re-ranking, collecting a
// caller-visible reasoning chain along the way.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homepilot/homepilot/internal/domain"
)

// Pipeline stages recorded in the reasoning chain.
const (
	stageReceived    = "received"
	stageClassified  = "classified"
	stageExpanded    = "expanded"
	stageClarifying  = "clarifying"
	stageDispatching = "dispatching"
	stageReranked    = "reranked"
	stageResponded   = "responded"
	stageFailed      = "failed"
)

// User-safe error vocabulary. Nothing downstream-generated reaches the
// caller unless a rejection is explicitly marked safe.
var (
	busyMessages = map[string]string{
		"vi": "Hệ thống đang bận, vui lòng thử lại sau ít phút.",
		"en": "The service is busy right now, please try again shortly.",
	}
	timeoutMessages = map[string]string{
		"vi": "Yêu cầu vượt quá thời gian xử lý sau %ds, vui lòng thử lại.",
		"en": "The request timed out after %ds, please try again.",
	}
	genericMessages = map[string]string{
		"vi": "Đã có lỗi xảy ra, vui lòng thử lại.",
		"en": "Something went wrong, please try again.",
	}
)

// Service is the orchestration controller. One Handle call walks the state
// machine received → classified → expanded → (clarifying | dispatching) →
// (responded | failed) for a single query turn.
type Service struct {
	router    Router
	expander  Expander
	clarifier Clarifier
	resolver  Resolver
	caller    Caller
	reranker  Reranker
	logbook   Logbook
	logger    *zap.Logger

	timeout time.Duration
	now     func() time.Time
}

// Deps bundles the controller's collaborators.
type Deps struct {
	Router    Router
	Expander  Expander
	Clarifier Clarifier
	Resolver  Resolver
	Caller    Caller
	Reranker  Reranker
	Logbook   Logbook
}

// New creates an orchestration controller with a 30s end-to-end deadline.
func New(deps Deps, logger *zap.Logger) *Service {
	return &Service{
		router:    deps.Router,
		expander:  deps.Expander,
		clarifier: deps.Clarifier,
		resolver:  deps.Resolver,
		caller:    deps.Caller,
		reranker:  deps.Reranker,
		logbook:   deps.Logbook,
		logger:    logger,
		timeout:   30 * time.Second,
		now:       time.Now,
	}
}

// WithTimeout overrides the end-to-end request deadline.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// dispatchPayload is the JSON body sent to every downstream capability.
type dispatchPayload struct {
	Text           string         `json:"text"`
	Filters        map[string]any `json:"filters,omitempty"`
	Limit          int            `json:"limit,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Language       string         `json:"language,omitempty"`
}

// Handle runs one query turn. Classification problems fall back to the
// conversational intent and never fail the request; dispatch failures return
// both a sanitized outcome and the underlying sentinel error so the transport
// can map a status code.
func (s *Service) Handle(ctx context.Context, q domain.Query) (domain.Outcome, error) {
	start := s.now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if q.ConversationID == "" {
		q.ConversationID = uuid.NewString()
	}

	chain := &domain.ReasoningChain{}
	chain.Append(stageReceived, summarize(q.Text), "", 0)

	decision := s.classify(q, chain)

	if decision.Intent.BearsResults() {
		s.expand(q, &decision, chain)

		if clarifying := s.checkAmbiguity(q, decision, chain); clarifying != nil {
			out := s.finish(ctx, q, *clarifying, chain, start)
			return out, nil
		}
	}

	reply, err := s.dispatch(ctx, q, decision, chain)
	if err != nil {
		elapsed := s.now().Sub(start)
		chain.Append(stageFailed, decision.TargetCapability, failureKind(err), 0)
		out := domain.Outcome{
			Intent:       decision.Intent,
			Confidence:   decision.Confidence,
			ResponseText: s.safeMessage(err, q.Language, elapsed),
		}
		return s.finish(ctx, q, out, chain, start), err
	}

	out := domain.Outcome{
		Intent:       decision.Intent,
		Confidence:   decision.Confidence,
		ResponseText: reply.ResponseText,
		ServiceUsed:  reply.ServiceUsed,
	}

	if decision.Intent.BearsResults() && len(reply.Results) > 0 {
		out.Results = s.rerank(ctx, q, reply.Results, chain)
	}

	chain.Append(stageResponded, "", fmt.Sprintf("%d results", len(out.Results)), s.now().Sub(start))
	return s.finish(ctx, q, out, chain, start), nil
}

// classify runs the intent router. Router errors are swallowed: the request
// degrades to the conversational capability instead of failing.
func (s *Service) classify(q domain.Query, chain *domain.ReasoningChain) domain.RouteDecision {
	stageStart := s.now()
	decision, err := s.router.Classify(q)
	if err != nil {
		s.logger.Warn("classification failed, falling back to chat",
			zap.String("conversation_id", q.ConversationID),
			zap.Error(err),
		)
		decision = domain.RouteDecision{
			Intent:           domain.IntentChat,
			TargetCapability: "chat",
			EndpointPath:     "/v1/chat",
			Params:           domain.RoutingParams{RewrittenText: q.Text},
			Confidence:       0.5,
			Reasoning:        "classification fallback",
		}
	}
	chain.Append(stageClassified, summarize(q.Text),
		fmt.Sprintf("intent=%s confidence=%.1f", decision.Intent, decision.Confidence),
		s.now().Sub(stageStart))
	return decision
}

// expand enriches the routing params with extracted filters and synonym
// terms. The expander never fails for plain text, but a failure here still
// only costs the expansion, not the request.
func (s *Service) expand(q domain.Query, decision *domain.RouteDecision, chain *domain.ReasoningChain) {
	stageStart := s.now()
	exp, err := s.expander.ExpandLang(q.Text, decision.Intent, q.Language)
	if err != nil {
		s.logger.Warn("expansion failed, dispatching unexpanded",
			zap.String("conversation_id", q.ConversationID),
			zap.Error(err),
		)
		return
	}
	decision.Params.Filters = exp.Filters
	if len(exp.Terms) > 0 {
		decision.Params.RewrittenText = q.Text + " " + strings.Join(exp.Terms, " ")
	}
	chain.Append(stageExpanded, summarize(q.Text),
		fmt.Sprintf("%d filters, %d terms", len(exp.Filters), len(exp.Terms)),
		s.now().Sub(stageStart))
}

// checkAmbiguity returns a clarifying outcome when the query is too vague to
// dispatch, nil otherwise. Clarifier errors fail open: an unverifiable query
// dispatches rather than stalls.
func (s *Service) checkAmbiguity(q domain.Query, decision domain.RouteDecision, chain *domain.ReasoningChain) *domain.Outcome {
	stageStart := s.now()
	amb, err := s.clarifier.CheckLang(q.Text, decision.Intent, decision.Params.Filters, q.Language)
	if err != nil {
		s.logger.Warn("ambiguity check failed, dispatching anyway",
			zap.String("conversation_id", q.ConversationID),
			zap.Error(err),
		)
		return nil
	}
	if !amb.IsAmbiguous {
		return nil
	}
	chain.Append(stageClarifying, summarize(q.Text),
		fmt.Sprintf("%d clarifications", len(amb.Clarifications)),
		s.now().Sub(stageStart))
	return &domain.Outcome{
		Intent:             decision.Intent,
		Confidence:         decision.Confidence,
		NeedsClarification: true,
		Clarifications:     amb.Clarifications,
		ResponseText:       amb.Clarifications[0].Question,
	}
}

// dispatch resolves the capability and calls the first endpoint that
// answers. Unavailable or saturated endpoints are skipped in favor of the
// next provider; any other failure is final.
func (s *Service) dispatch(
	ctx context.Context, q domain.Query, decision domain.RouteDecision, chain *domain.ReasoningChain,
) (domain.Reply, error) {
	stageStart := s.now()

	eps, err := s.resolver.Resolve(ctx, decision.TargetCapability)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("resolve %s: %w", decision.TargetCapability, err)
	}
	if len(eps) == 0 {
		return domain.Reply{}, fmt.Errorf("capability %s has no providers: %w",
			decision.TargetCapability, domain.ErrUnavailable)
	}

	payload := dispatchPayload{
		Text:           decision.Params.RewrittenText,
		Filters:        decision.Params.Filters,
		Limit:          decision.Params.Limit,
		UserID:         q.UserID,
		ConversationID: q.ConversationID,
		Language:       q.Language,
	}
	idempotent := s.router.Idempotent(decision.Intent)

	var lastErr error
	for _, ep := range eps {
		reply, err := s.caller.Invoke(ctx, ep, decision.EndpointPath, payload, idempotent)
		if err == nil {
			chain.Append(stageDispatching, decision.TargetCapability,
				fmt.Sprintf("%d results from %s", len(reply.Results), reply.ServiceUsed),
				s.now().Sub(stageStart))
			return reply, nil
		}
		lastErr = err
		if errors.Is(err, domain.ErrUnavailable) || errors.Is(err, domain.ErrPoolExhausted) {
			s.logger.Info("endpoint unavailable, trying next provider",
				zap.String("capability", decision.TargetCapability),
				zap.String("endpoint", ep.Addr()),
				zap.Error(err),
			)
			continue
		}
		break
	}
	return domain.Reply{}, lastErr
}

// rerank re-orders downstream results. A rerank failure degrades to the
// original downstream ordering instead of failing a request that already has
// results in hand.
func (s *Service) rerank(
	ctx context.Context, q domain.Query, results []domain.Listing, chain *domain.ReasoningChain,
) []domain.RankedResult {
	stageStart := s.now()
	ranked, meta, err := s.reranker.Rerank(ctx, results, q)
	if err != nil {
		s.logger.Warn("rerank failed, keeping downstream order",
			zap.String("conversation_id", q.ConversationID),
			zap.Error(err),
		)
		ranked = make([]domain.RankedResult, len(results))
		for i, l := range results {
			ranked[i] = domain.RankedResult{Listing: l, OriginalScore: l.Score, FinalScore: l.Score}
		}
		return ranked
	}
	chain.Append(stageReranked, fmt.Sprintf("%d results", len(results)),
		fmt.Sprintf("phase=%s", meta.Phase), s.now().Sub(stageStart))
	return ranked
}

// finish stamps the chain and timing onto the outcome and appends the turn
// to the conversation log. Log appends are best-effort and detached from the
// request deadline.
func (s *Service) finish(
	ctx context.Context, q domain.Query, out domain.Outcome, chain *domain.ReasoningChain, start time.Time,
) domain.Outcome {
	out.ReasoningChain = chain.Steps()
	out.TookMs = s.now().Sub(start).Milliseconds()

	if s.logbook != nil {
		logCtx := context.WithoutCancel(ctx)
		now := s.now()
		if err := s.logbook.Append(logCtx, q.ConversationID, domain.TurnRecord{
			Role: domain.RoleUser, Content: q.Text, At: now,
		}); err != nil {
			s.logger.Warn("conversation log append failed", zap.Error(err))
			return out
		}
		meta := map[string]any{
			"intent":              string(out.Intent),
			"needs_clarification": out.NeedsClarification,
			"service_used":        out.ServiceUsed,
		}
		if err := s.logbook.Append(logCtx, q.ConversationID, domain.TurnRecord{
			Role: domain.RoleAssistant, Content: out.ResponseText, Metadata: meta, At: now,
		}); err != nil {
			s.logger.Warn("conversation log append failed", zap.Error(err))
		}
	}
	return out
}

func (s *Service) safeMessage(err error, language string, elapsed time.Duration) string {
	if language != "en" {
		language = "vi"
	}
	var rejected *domain.RejectedError
	switch {
	case errors.As(err, &rejected) && rejected.Safe:
		return rejected.Detail
	case errors.Is(err, domain.ErrTimeout):
		return fmt.Sprintf(timeoutMessages[language], int(elapsed.Seconds()))
	case errors.Is(err, domain.ErrUnavailable), errors.Is(err, domain.ErrPoolExhausted):
		return busyMessages[language]
	}
	return genericMessages[language]
}

// failureKind names the failure class for the reasoning chain without
// leaking downstream detail.
func failureKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrPoolExhausted):
		return "pool_exhausted"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrDownstreamRejected):
		return "rejected"
	}
	return "error"
}

func summarize(text string) string {
	runes := []rune(text)
	if len(runes) <= 80 {
		return text
	}
	return string(runes[:80]) + "…"
}
