package route

import (
	"strings"
	"testing"

	"github.com/homepilot/homepilot/internal/domain"
	"github.com/homepilot/homepilot/internal/lexicon"
)

func newTestRouter(t *testing.T) *Service {
	t.Helper()
	lex, err := lexicon.Default()
	if err != nil {
		t.Fatalf("lexicon.Default(): %v", err)
	}
	return New(lex, 10)
}

func TestClassifyAttachmentsAlwaysConversational(t *testing.T) {
	s := newTestRouter(t)

	// Even a heavily search-flavored query goes to chat with attachments.
	queries := []string{
		"Tìm căn hộ 2 phòng ngủ quận 7 dưới 3 tỷ",
		"ảnh này là nhà gì vậy",
		"",
	}
	for _, text := range queries {
		d, err := s.Classify(domain.Query{Text: text, HasAttachments: true})
		if err != nil {
			t.Fatalf("Classify(%q): %v", text, err)
		}
		if d.Intent != domain.IntentChat {
			t.Errorf("Classify(%q) intent = %s, want chat", text, d.Intent)
		}
		if d.TargetCapability != "chat" {
			t.Errorf("Classify(%q) capability = %s, want chat", text, d.TargetCapability)
		}
	}
}

func TestClassifySearchQuery(t *testing.T) {
	s := newTestRouter(t)

	d, err := s.Classify(domain.Query{Text: "Tìm căn hộ 2 phòng ngủ Quận 7 dưới 3 tỷ"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Intent != domain.IntentSearch {
		t.Errorf("intent = %s, want search", d.Intent)
	}
	if d.TargetCapability != "search" {
		t.Errorf("capability = %s, want search", d.TargetCapability)
	}
	if d.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", d.Confidence)
	}
	if d.Params.Limit != 10 {
		t.Errorf("limit = %d, want 10", d.Params.Limit)
	}
}

func TestClassifyChatQuery(t *testing.T) {
	s := newTestRouter(t)

	d, err := s.Classify(domain.Query{Text: "Xin chào, bạn là ai?"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Intent != domain.IntentChat {
		t.Errorf("intent = %s, want chat", d.Intent)
	}
	if d.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", d.Confidence)
	}
}

func TestClassifyLowSignalFallsBackWithLowConfidence(t *testing.T) {
	s := newTestRouter(t)

	d, err := s.Classify(domain.Query{Text: "hmmmm ok"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Intent != domain.IntentChat {
		t.Errorf("intent = %s, want chat fallback", d.Intent)
	}
	if d.Confidence != 0.5 {
		t.Errorf("confidence = %v, want flat 0.5 for low-signal queries", d.Confidence)
	}
}

func TestClassifyTieBreakFavorsSearch(t *testing.T) {
	lex := &lexicon.Lexicon{Languages: map[string]lexicon.Language{
		"vi": {
			SearchTerms: map[string]float64{"nhà": 1.0},
			ChatTerms:   map[string]float64{"chào": 1.0},
		},
	}}
	s := New(lex, 10)

	d, err := s.Classify(domain.Query{Text: "chào, nhà"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Intent != domain.IntentSearch {
		t.Errorf("equal scores should favor search, got %s", d.Intent)
	}
}

func TestClassifyRefinesMarkerIntents(t *testing.T) {
	s := newTestRouter(t)

	tests := []struct {
		text string
		want domain.Intent
	}{
		{"so sánh căn hộ quận 2 và quận 7", domain.IntentCompare},
		{"định giá nhà mặt tiền quận 1", domain.IntentPriceAnalysis},
		{"có nên mua đất để đầu tư không", domain.IntentInvestmentAdvice},
		{"pháp lý sổ đỏ căn hộ chung cư", domain.IntentLegalGuidance},
	}
	for _, tt := range tests {
		d, err := s.Classify(domain.Query{Text: tt.text})
		if err != nil {
			t.Fatal(err)
		}
		if d.Intent != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.text, d.Intent, tt.want)
		}
	}
}

func TestClassifyEnglishQuery(t *testing.T) {
	s := newTestRouter(t)

	d, err := s.Classify(domain.Query{Text: "Find a 2 bedroom apartment in District 7", Language: "en"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Intent != domain.IntentSearch {
		t.Errorf("intent = %s, want search", d.Intent)
	}
}

func TestEveryIntentHasARoute(t *testing.T) {
	routes := DefaultRoutes()
	intents := []domain.Intent{
		domain.IntentSearch, domain.IntentCompare, domain.IntentPriceAnalysis,
		domain.IntentInvestmentAdvice, domain.IntentLocationInsights,
		domain.IntentLegalGuidance, domain.IntentChat, domain.IntentUnknown,
	}
	for _, in := range intents {
		r, ok := routes[in]
		if !ok {
			t.Errorf("intent %s has no route", in)
			continue
		}
		if r.Capability == "" || !strings.HasPrefix(r.Path, "/") {
			t.Errorf("intent %s has malformed route %+v", in, r)
		}
	}
}
