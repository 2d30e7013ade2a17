// Package chi exposes the orchestration pipeline over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/homepilot/homepilot/internal/domain"
	healthuc "github.com/homepilot/homepilot/internal/usecase/health"
)

// Orchestrator runs one query turn through the pipeline.
type Orchestrator interface {
	Handle(ctx context.Context, q domain.Query) (domain.Outcome, error)
}

// Reranker re-orders a caller-supplied result set.
type Reranker interface {
	Rerank(ctx context.Context, listings []domain.Listing, q domain.Query) ([]domain.RankedResult, domain.RerankMetadata, error)
}

// Health reports component health.
type Health interface {
	Check(ctx context.Context) healthuc.Report
}

// Server is the HTTP API server.
type Server struct {
	pipeline Orchestrator
	reranker Reranker
	health   Health
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(pipeline Orchestrator, reranker Reranker, health Health, logger *zap.Logger) *Server {
	return &Server{
		pipeline: pipeline,
		reranker: reranker,
		health:   health,
		logger:   logger,
	}
}

// Routes mounts all endpoints on a fresh router. Middleware is attached by
// the caller.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/query", s.handleQuery)
	r.Post("/v1/rerank", s.handleRerank)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleQuery handles POST /v1/query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var q domain.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(q.Text) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "Query text is required")
		return
	}

	out, err := s.pipeline.Handle(r.Context(), q)
	if err != nil {
		// The outcome already carries the sanitized message and the
		// reasoning chain; only the status code depends on the error class.
		s.logger.Warn("query failed", zap.Error(err))
		writeJSON(w, statusFor(err), out)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type rerankRequest struct {
	Query    string           `json:"query"`
	UserID   string           `json:"user_id,omitempty"`
	Language string           `json:"language,omitempty"`
	Results  []domain.Listing `json:"results"`
}

type rerankResponse struct {
	Results  []domain.RankedResult `json:"results"`
	Metadata domain.RerankMetadata `json:"rerank_metadata"`
}

// handleRerank handles POST /v1/rerank.
func (s *Server) handleRerank(w http.ResponseWriter, r *http.Request) {
	var req rerankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	q := domain.Query{Text: req.Query, UserID: req.UserID, Language: req.Language}
	ranked, meta, err := s.reranker.Rerank(r.Context(), req.Results, q)
	if err != nil {
		s.logger.Error("rerank failed", zap.Error(err))
		writeError(w, statusFor(err), "rerank_failed", "Unable to rerank results")
		return
	}
	writeJSON(w, http.StatusOK, rerankResponse{Results: ranked, Metadata: meta})
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// statusFor maps pipeline sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrUnavailable), errors.Is(err, domain.ErrPoolExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrDownstreamRejected):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
