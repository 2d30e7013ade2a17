// Package clarify decides whether a query is under-specified for its intent
// and produces ranked clarification questions instead of dispatching.
package clarify

import (
	"sort"
	"strings"

	"github.com/homepilot/homepilot/internal/domain"
	"github.com/homepilot/homepilot/internal/lexicon"
)

// rule declares one required-field check: satisfied when any of the filter
// keys is present, otherwise it yields a clarification for field.
type rule struct {
	anyOf    []string
	field    string
	priority int
}

// checklists declare the minimal fields each result-bearing intent should
// resolve before dispatch.
var checklists = map[domain.Intent][]rule{
	domain.IntentSearch: {
		{anyOf: []string{domain.FilterPropertyType, domain.FilterDistrict}, field: "property_type", priority: 3},
		{anyOf: []string{domain.FilterMaxPrice, domain.FilterMinPrice, domain.FilterBedrooms}, field: "price", priority: 2},
	},
	domain.IntentCompare: {
		{anyOf: []string{domain.FilterPropertyType, domain.FilterDistrict}, field: "property_type", priority: 3},
		{anyOf: []string{domain.FilterMaxPrice, domain.FilterMinPrice, domain.FilterBedrooms}, field: "price", priority: 2},
	},
	domain.IntentPriceAnalysis: {
		{anyOf: []string{domain.FilterPropertyType}, field: "property_type", priority: 3},
		{anyOf: []string{domain.FilterDistrict}, field: "location", priority: 3},
	},
	domain.IntentInvestmentAdvice: {
		{anyOf: []string{domain.FilterDistrict}, field: "location", priority: 2},
	},
	domain.IntentLocationInsights: {
		{anyOf: []string{domain.FilterDistrict}, field: "location", priority: 3},
	},
}

// priority of the forced clarification for unqualified vague terms.
const vaguePriority = 5

// Service is the ambiguity detector.
type Service struct {
	lex  *lexicon.Lexicon
	topK int
}

// New creates a detector surfacing at most topK questions per turn.
func New(lex *lexicon.Lexicon, topK int) *Service {
	if topK <= 0 {
		topK = 2
	}
	return &Service{lex: lex, topK: topK}
}

// Check inspects the query and its extracted filters for the default language.
func (s *Service) Check(text string, intent domain.Intent, filters map[string]any) (domain.AmbiguityResult, error) {
	return s.CheckLang(text, intent, filters, lexicon.DefaultLanguage)
}

// CheckLang is Check with an explicit language code. IsAmbiguous is true iff
// at least one clarification results; only the top-K by priority are kept.
func (s *Service) CheckLang(text string, intent domain.Intent, filters map[string]any, language string) (domain.AmbiguityResult, error) {
	if !intent.BearsResults() {
		return domain.AmbiguityResult{}, nil
	}

	lang := s.lex.Language(language)
	lower := strings.ToLower(text)

	var clarifications []domain.Clarification

	// Vague aesthetic terms ("đẹp", "nice") cannot map to any filter. They
	// force a clarification turn unless a concrete numeric qualifier pins
	// the query down.
	if s.hasVagueTerm(lower, lang) && !hasConcreteQualifier(lower, filters) {
		clarifications = append(clarifications, domain.Clarification{
			Field:    "specifics",
			Question: lang.Clarifications["specifics"],
			Priority: vaguePriority,
		})
	}

	for _, r := range checklists[intent] {
		if satisfied(r, filters) {
			continue
		}
		clarifications = append(clarifications, domain.Clarification{
			Field:    r.field,
			Question: lang.Clarifications[r.field],
			Priority: r.priority,
		})
	}

	sort.SliceStable(clarifications, func(i, j int) bool {
		return clarifications[i].Priority > clarifications[j].Priority
	})
	if len(clarifications) > s.topK {
		clarifications = clarifications[:s.topK]
	}

	return domain.AmbiguityResult{
		IsAmbiguous:    len(clarifications) > 0,
		Clarifications: clarifications,
	}, nil
}

func (s *Service) hasVagueTerm(lower string, lang lexicon.Language) bool {
	for _, term := range lang.VagueTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// hasConcreteQualifier reports whether the query carries a numeric anchor:
// an extracted price or bedroom filter, or any digit in the raw text.
func hasConcreteQualifier(lower string, filters map[string]any) bool {
	for _, key := range []string{domain.FilterMaxPrice, domain.FilterMinPrice, domain.FilterBedrooms} {
		if _, ok := filters[key]; ok {
			return true
		}
	}
	return strings.ContainsAny(lower, "0123456789")
}

func satisfied(r rule, filters map[string]any) bool {
	for _, key := range r.anyOf {
		if _, ok := filters[key]; ok {
			return true
		}
	}
	return false
}
