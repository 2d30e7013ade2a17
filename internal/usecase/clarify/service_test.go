package clarify

import (
	"testing"

	"github.com/homepilot/homepilot/internal/domain"
	"github.com/homepilot/homepilot/internal/lexicon"
	"github.com/homepilot/homepilot/internal/usecase/expand"
)

func newTestDetector(t *testing.T) (*Service, *expand.Service) {
	t.Helper()
	lex, err := lexicon.Default()
	if err != nil {
		t.Fatalf("lexicon.Default(): %v", err)
	}
	return New(lex, 2), expand.New(lex)
}

// check runs the expander first so filters match what the pipeline produces.
func check(t *testing.T, s *Service, e *expand.Service, text string) domain.AmbiguityResult {
	t.Helper()
	exp, err := e.Expand(text, domain.IntentSearch)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Check(text, domain.IntentSearch, exp.Filters)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestVagueQueryIsAmbiguous(t *testing.T) {
	s, e := newTestDetector(t)

	res := check(t, s, e, "tìm nhà đẹp")
	if !res.IsAmbiguous {
		t.Fatal("vague aesthetic query must be ambiguous")
	}
	if len(res.Clarifications) == 0 {
		t.Fatal("ambiguous result must carry clarifications")
	}
	// The forced vague-term clarification outranks missing-field questions.
	if res.Clarifications[0].Field != "specifics" {
		t.Errorf("top clarification = %s, want specifics", res.Clarifications[0].Field)
	}
	if res.Clarifications[0].Question == "" {
		t.Error("clarification question must come from the lexicon templates")
	}
}

func TestFullySpecifiedQueryIsNotAmbiguous(t *testing.T) {
	s, e := newTestDetector(t)

	res := check(t, s, e, "Tìm căn hộ 2 phòng ngủ quận 7 dưới 3 tỷ")
	if res.IsAmbiguous {
		t.Fatalf("fully specified query flagged ambiguous: %+v", res.Clarifications)
	}
}

func TestVagueTermWithNumericQualifierPasses(t *testing.T) {
	s, e := newTestDetector(t)

	// "đẹp" appears, but price and bedrooms anchor the query.
	res := check(t, s, e, "căn hộ đẹp 2 phòng ngủ quận 7 dưới 3 tỷ")
	if res.IsAmbiguous {
		t.Errorf("qualified vague term should not force clarification: %+v", res.Clarifications)
	}
}

func TestMissingEverythingAsksHighestPriorityFirst(t *testing.T) {
	s, _ := newTestDetector(t)

	res, err := s.Check("cho tôi xem vài lựa chọn", domain.IntentSearch, map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsAmbiguous {
		t.Fatal("query with no resolvable fields must be ambiguous")
	}
	if res.Clarifications[0].Field != "property_type" {
		t.Errorf("first question = %s, want property_type (highest priority)", res.Clarifications[0].Field)
	}
}

func TestClarificationsCappedAtTopK(t *testing.T) {
	lex, err := lexicon.Default()
	if err != nil {
		t.Fatal(err)
	}
	s := New(lex, 1)

	res, err := s.Check("tìm nhà đẹp ơi", domain.IntentSearch, map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Clarifications) != 1 {
		t.Errorf("clarifications = %d, want capped at 1", len(res.Clarifications))
	}
}

func TestChatIntentNeverAmbiguous(t *testing.T) {
	s, _ := newTestDetector(t)

	res, err := s.Check("tìm nhà đẹp", domain.IntentChat, map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsAmbiguous {
		t.Error("non-result-bearing intents skip the ambiguity check")
	}
}

func TestDistrictAloneSatisfiesLocationOrType(t *testing.T) {
	s, _ := newTestDetector(t)

	filters := map[string]any{
		domain.FilterDistrict: "Quận 7",
		domain.FilterBedrooms: 2,
	}
	res, err := s.Check("2 phòng ngủ quận 7", domain.IntentSearch, filters)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsAmbiguous {
		t.Errorf("district + bedrooms should be specific enough: %+v", res.Clarifications)
	}
}
