// Package expand rewrites colloquial query terms into canonical filter
// predicates and an expanded search-term set.
package expand

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/homepilot/homepilot/internal/domain"
	"github.com/homepilot/homepilot/internal/lexicon"
)

// Service is the knowledge expander. It never fails the request: when
// nothing can be extracted it returns the original terms and empty filters.
type Service struct {
	lex *lexicon.Lexicon

	bedroomRe  *regexp.Regexp
	districtRe *regexp.Regexp
	priceRes   map[string]*regexp.Regexp // language code -> price pattern
}

// Price qualifiers recognized around a numeric amount.
var (
	maxQualifiers = []string{"dưới", "duoi", "tối đa", "toi da", "under", "below", "max", "up to"}
	minQualifiers = []string{"trên", "tren", "tối thiểu", "toi thieu", "over", "above", "from", "từ", "tu"}
)

// New creates an expander over the given lexicon.
func New(lex *lexicon.Lexicon) *Service {
	s := &Service{
		lex:        lex,
		// \b cannot follow the non-ASCII "ngủ", so the Vietnamese forms
		// carry no boundary and the short ASCII forms keep one.
		bedroomRe:  regexp.MustCompile(`(\d+)\s*(?:phòng ngủ|phong ngu|pn\b|bedrooms?\b|br\b)`),
		districtRe: regexp.MustCompile(`(?:quận|quan|district|q)\s*(\d{1,2})\b`),
		priceRes:   make(map[string]*regexp.Regexp),
	}
	for code, lang := range lex.Languages {
		// Amount followed by a localized magnitude suffix, e.g. "3 tỷ",
		// "500 triệu", "1.2 billion". The suffix must end the word; \b does
		// not work after non-ASCII letters, so check the next rune instead.
		s.priceRes[code] = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(` + lang.MultiplierPattern() + `)(?:$|[^\p{L}])`)
	}
	return s
}

// Expand extracts structured entities and synonym expansions from the query
// text for a result-bearing intent.
func (s *Service) Expand(text string, intent domain.Intent) (domain.KnowledgeExpansion, error) {
	return s.ExpandLang(text, intent, lexicon.DefaultLanguage)
}

// ExpandLang is Expand with an explicit language code.
func (s *Service) ExpandLang(text string, intent domain.Intent, language string) (domain.KnowledgeExpansion, error) {
	lang := s.lex.Language(language)
	lower := strings.ToLower(text)

	filters := make(map[string]any)
	terms := splitTerms(lower)
	var notes []string

	if t, alias, ok := matchLongest(lower, lang.PropertyTypes); ok {
		filters[domain.FilterPropertyType] = t
		notes = append(notes, fmt.Sprintf("%q -> property_type=%s", alias, t))
	}

	if d, alias, ok := s.extractDistrict(lower, lang); ok {
		filters[domain.FilterDistrict] = d
		notes = append(notes, fmt.Sprintf("%q -> district=%s", alias, d))
	}

	if n, ok := s.extractBedrooms(lower); ok {
		filters[domain.FilterBedrooms] = n
		notes = append(notes, fmt.Sprintf("bedrooms=%d", n))
	}

	s.extractPrice(lower, language, lang, filters, &notes)

	if amenities, extra := s.extractAmenities(lower, lang); len(amenities) > 0 {
		filters[domain.FilterAmenities] = amenities
		terms = append(terms, extra...)
		notes = append(notes, fmt.Sprintf("amenities=%s", strings.Join(amenities, ",")))
	}

	reasoning := "no entities found"
	if len(notes) > 0 {
		reasoning = strings.Join(notes, "; ")
	}

	return domain.KnowledgeExpansion{
		Terms:     dedupe(terms),
		Filters:   filters,
		Reasoning: reasoning,
	}, nil
}

func (s *Service) extractBedrooms(lower string) (int, bool) {
	m := s.bedroomRe.FindStringSubmatch(lower)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 || n > 20 {
		return 0, false
	}
	return n, true
}

func (s *Service) extractDistrict(lower string, lang lexicon.Language) (string, string, bool) {
	if d, alias, ok := matchLongest(lower, lang.DistrictAliases); ok {
		return d, alias, true
	}
	if m := s.districtRe.FindStringSubmatch(lower); m != nil {
		return "Quận " + m[1], m[0], true
	}
	return "", "", false
}

// extractPrice normalizes localized magnitude suffixes to VND and assigns
// the amount to min_price/max_price based on the surrounding qualifier.
// A bare amount ("khoảng 3 tỷ") becomes a ±15% band.
func (s *Service) extractPrice(lower, language string, lang lexicon.Language, filters map[string]any, notes *[]string) {
	re, ok := s.priceRes[strings.ToLower(language)]
	if !ok {
		re = s.priceRes[lexicon.DefaultLanguage]
	}

	m := re.FindStringSubmatchIndex(lower)
	if m == nil {
		return
	}
	amountStr := strings.ReplaceAll(lower[m[2]:m[3]], ",", ".")
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return
	}
	mult, ok := lang.Multipliers[lower[m[4]:m[5]]]
	if !ok {
		return
	}
	value := amount * mult

	prefix := lower[:m[0]]
	switch {
	case hasNearSuffix(prefix, maxQualifiers):
		filters[domain.FilterMaxPrice] = value
		*notes = append(*notes, fmt.Sprintf("max_price=%.0f", value))
	case hasNearSuffix(prefix, minQualifiers):
		filters[domain.FilterMinPrice] = value
		*notes = append(*notes, fmt.Sprintf("min_price=%.0f", value))
	default:
		filters[domain.FilterMinPrice] = value * 0.85
		filters[domain.FilterMaxPrice] = value * 1.15
		*notes = append(*notes, fmt.Sprintf("price~=%.0f", value))
	}
}

func (s *Service) extractAmenities(lower string, lang lexicon.Language) ([]string, []string) {
	var canonical, extraTerms []string
	for amenity, synonyms := range lang.Amenities {
		for _, syn := range synonyms {
			if strings.Contains(lower, syn) {
				canonical = append(canonical, amenity)
				extraTerms = append(extraTerms, synonyms...)
				break
			}
		}
	}
	sort.Strings(canonical)
	return canonical, extraTerms
}

// matchLongest finds the longest alias present in the text, so "căn hộ"
// beats "nhà" when both appear in "căn hộ gần nhà thờ".
func matchLongest(lower string, aliases map[string]string) (value, alias string, ok bool) {
	for a, v := range aliases {
		if strings.Contains(lower, a) && len(a) > len(alias) {
			alias, value, ok = a, v, true
		}
	}
	return value, alias, ok
}

// hasNearSuffix reports whether the text ends with one of the qualifier
// words, ignoring trailing spaces (i.e. the qualifier directly precedes the
// matched amount).
func hasNearSuffix(text string, qualifiers []string) bool {
	trimmed := strings.TrimRight(text, " ")
	for _, q := range qualifiers {
		if strings.HasSuffix(trimmed, q) {
			return true
		}
	}
	return false
}

func splitTerms(lower string) []string {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '?' || r == '!'
	})
	return fields
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
