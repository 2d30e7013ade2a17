package expand

import (
	"testing"

	"github.com/homepilot/homepilot/internal/domain"
	"github.com/homepilot/homepilot/internal/lexicon"
)

func newTestExpander(t *testing.T) *Service {
	t.Helper()
	lex, err := lexicon.Default()
	if err != nil {
		t.Fatalf("lexicon.Default(): %v", err)
	}
	return New(lex)
}

func TestExpandFullVietnameseQuery(t *testing.T) {
	s := newTestExpander(t)

	exp, err := s.Expand("Tìm căn hộ 2 phòng ngủ Quận 7 dưới 3 tỷ", domain.IntentSearch)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	if got := exp.Filters[domain.FilterPropertyType]; got != "apartment" {
		t.Errorf("property_type = %v, want apartment", got)
	}
	if got := exp.Filters[domain.FilterBedrooms]; got != 2 {
		t.Errorf("bedrooms = %v, want 2", got)
	}
	if got := exp.Filters[domain.FilterDistrict]; got != "Quận 7" {
		t.Errorf("district = %v, want Quận 7", got)
	}
	if got := exp.Filters[domain.FilterMaxPrice]; got != 3_000_000_000.0 {
		t.Errorf("max_price = %v, want 3000000000", got)
	}
	if _, ok := exp.Filters[domain.FilterMinPrice]; ok {
		t.Error("min_price should not be set for an upper-bound qualifier")
	}
}

func TestExpandPriceQualifiers(t *testing.T) {
	s := newTestExpander(t)

	tests := []struct {
		name    string
		text    string
		wantKey string
		wantVal float64
	}{
		{"upper bound billions", "căn hộ dưới 3 tỷ", domain.FilterMaxPrice, 3e9},
		{"lower bound billions", "nhà trên 2 tỷ", domain.FilterMinPrice, 2e9},
		{"millions", "phòng trọ dưới 5 triệu", domain.FilterMaxPrice, 5e6},
		{"decimal amount", "nhà dưới 2,5 tỷ", domain.FilterMaxPrice, 2.5e9},
		{"english billion", "villa under 2 billion", domain.FilterMaxPrice, 2e9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lang := "vi"
			if tt.name == "english billion" {
				lang = "en"
			}
			exp, err := s.ExpandLang(tt.text, domain.IntentSearch, lang)
			if err != nil {
				t.Fatal(err)
			}
			got, ok := exp.Filters[tt.wantKey].(float64)
			if !ok || got != tt.wantVal {
				t.Errorf("%s = %v, want %v (filters: %v)", tt.wantKey, exp.Filters[tt.wantKey], tt.wantVal, exp.Filters)
			}
		})
	}
}

func TestExpandBareAmountBecomesBand(t *testing.T) {
	s := newTestExpander(t)

	exp, err := s.Expand("căn hộ khoảng 2 tỷ", domain.IntentSearch)
	if err != nil {
		t.Fatal(err)
	}
	minP, _ := exp.Filters[domain.FilterMinPrice].(float64)
	maxP, _ := exp.Filters[domain.FilterMaxPrice].(float64)
	if minP != 2e9*0.85 || maxP != 2e9*1.15 {
		t.Errorf("band = [%v, %v], want [1.7e9, 2.3e9]", minP, maxP)
	}
}

func TestExpandDistrictAliases(t *testing.T) {
	s := newTestExpander(t)

	tests := []struct {
		text string
		want string
	}{
		{"căn hộ q7", "Quận 7"},
		{"nhà thủ đức", "Thủ Đức"},
		{"nhà bình thạnh", "Bình Thạnh"},
		{"apartment district 2", "Quận 2"},
	}
	for _, tt := range tests {
		exp, err := s.Expand(tt.text, domain.IntentSearch)
		if err != nil {
			t.Fatal(err)
		}
		if got := exp.Filters[domain.FilterDistrict]; got != tt.want {
			t.Errorf("Expand(%q) district = %v, want %s", tt.text, got, tt.want)
		}
	}
}

func TestExpandAmenitySynonyms(t *testing.T) {
	s := newTestExpander(t)

	exp, err := s.Expand("căn hộ có hồ bơi gần trường", domain.IntentSearch)
	if err != nil {
		t.Fatal(err)
	}
	amenities, ok := exp.Filters[domain.FilterAmenities].([]string)
	if !ok {
		t.Fatalf("amenities filter missing: %v", exp.Filters)
	}
	want := map[string]bool{"pool": true, "school": true}
	for _, a := range amenities {
		if !want[a] {
			t.Errorf("unexpected amenity %q", a)
		}
		delete(want, a)
	}
	for a := range want {
		t.Errorf("missing amenity %q", a)
	}
	// Synonyms join the expanded term set.
	found := false
	for _, term := range exp.Terms {
		if term == "bể bơi" {
			found = true
		}
	}
	if !found {
		t.Error("expanded terms should include amenity synonyms")
	}
}

func TestExpandNeverFailsOnPlainText(t *testing.T) {
	s := newTestExpander(t)

	exp, err := s.Expand("cho tôi xem vài lựa chọn", domain.IntentSearch)
	if err != nil {
		t.Fatalf("Expand must not fail: %v", err)
	}
	if len(exp.Filters) != 0 {
		t.Errorf("filters = %v, want empty", exp.Filters)
	}
	if len(exp.Terms) == 0 {
		t.Error("terms should preserve the original query words")
	}
}
