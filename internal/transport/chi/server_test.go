package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/homepilot/homepilot/internal/domain"
	healthuc "github.com/homepilot/homepilot/internal/usecase/health"
)

type mockPipeline struct {
	out domain.Outcome
	err error
	got domain.Query
}

func (m *mockPipeline) Handle(_ context.Context, q domain.Query) (domain.Outcome, error) {
	m.got = q
	return m.out, m.err
}

type mockReranker struct {
	ranked []domain.RankedResult
	meta   domain.RerankMetadata
	err    error
}

func (m *mockReranker) Rerank(
	_ context.Context, _ []domain.Listing, _ domain.Query,
) ([]domain.RankedResult, domain.RerankMetadata, error) {
	return m.ranked, m.meta, m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

func newTestServer(pipeline *mockPipeline, reranker *mockReranker, health *mockHealth) http.Handler {
	if health == nil {
		health = &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}}
	}
	return NewServer(pipeline, reranker, health, zap.NewNop()).Routes()
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestQueryEndpoint(t *testing.T) {
	pipeline := &mockPipeline{out: domain.Outcome{
		Intent:       domain.IntentSearch,
		Confidence:   0.9,
		ResponseText: "Đã tìm thấy 2 căn hộ.",
		ServiceUsed:  "listing-search",
		TookMs:       42,
	}}
	h := newTestServer(pipeline, &mockReranker{}, nil)

	rec := postJSON(t, h, "/v1/query", `{"text":"Tìm căn hộ quận 7","user_id":"u-1","language":"vi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if pipeline.got.Text != "Tìm căn hộ quận 7" || pipeline.got.UserID != "u-1" {
		t.Errorf("pipeline got %+v", pipeline.got)
	}

	var out domain.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Intent != domain.IntentSearch || out.TookMs != 42 {
		t.Errorf("outcome = %+v", out)
	}
}

func TestQueryRejectsEmptyText(t *testing.T) {
	h := newTestServer(&mockPipeline{}, &mockReranker{}, nil)

	for _, body := range []string{`{}`, `{"text":"   "}`, `not json`} {
		rec := postJSON(t, h, "/v1/query", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestQueryErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unavailable", domain.ErrUnavailable, http.StatusServiceUnavailable},
		{"pool exhausted", domain.ErrPoolExhausted, http.StatusServiceUnavailable},
		{"timeout", domain.ErrTimeout, http.StatusGatewayTimeout},
		{"rejected", domain.NewRejected(422, "bad range", false), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline := &mockPipeline{
				out: domain.Outcome{ResponseText: "Hệ thống đang bận, vui lòng thử lại sau ít phút."},
				err: tt.err,
			}
			h := newTestServer(pipeline, &mockReranker{}, nil)

			rec := postJSON(t, h, "/v1/query", `{"text":"tìm nhà"}`)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			// The sanitized outcome still reaches the caller on failure.
			var out domain.Outcome
			if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
				t.Fatal(err)
			}
			if out.ResponseText == "" {
				t.Error("failed responses must carry the sanitized message")
			}
		})
	}
}

func TestRerankEndpoint(t *testing.T) {
	reranker := &mockReranker{
		ranked: []domain.RankedResult{
			{Listing: domain.Listing{ID: "l-2"}, FinalScore: 0.9},
			{Listing: domain.Listing{ID: "l-1"}, FinalScore: 0.7},
		},
		meta: domain.RerankMetadata{Count: 2, Phase: "weighted_v1"},
	}
	h := newTestServer(&mockPipeline{}, reranker, nil)

	body, _ := json.Marshal(rerankRequest{
		Query:   "căn hộ quận 7",
		UserID:  "u-1",
		Results: []domain.Listing{{ID: "l-1"}, {ID: "l-2"}},
	})
	rec := postJSON(t, h, "/v1/rerank", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp rerankResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 || resp.Results[0].Listing.ID != "l-2" {
		t.Errorf("results = %+v", resp.Results)
	}
	if resp.Metadata.Phase != "weighted_v1" {
		t.Errorf("metadata = %+v", resp.Metadata)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestServer(&mockPipeline{}, &mockReranker{}, &mockHealth{
		report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	degraded := newTestServer(&mockPipeline{}, &mockReranker{}, &mockHealth{
		report: healthuc.Report{
			Status: healthuc.Degraded,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckError},
		},
	})
	rec = httptest.NewRecorder()
	degraded.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded status = %d, want 503", rec.Code)
	}
}
