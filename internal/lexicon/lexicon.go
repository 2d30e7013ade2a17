// Package lexicon holds the data-driven keyword tables behind intent
// classification, knowledge expansion, and ambiguity detection. Tables are
// loaded once at startup and injected into the components that use them;
// adding a language or keyword is a table edit, not a code change.
package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultData []byte

// Language is the keyword table for one language.
type Language struct {
	// SearchTerms and ChatTerms are disjoint weighted keyword sets used by
	// intent classification.
	SearchTerms map[string]float64 `yaml:"search_terms"`
	ChatTerms   map[string]float64 `yaml:"chat_terms"`

	// IntentMarkers refine a search-leaning query into a more specific
	// result-bearing intent (compare, price_analysis, ...).
	IntentMarkers map[string][]string `yaml:"intent_markers"`

	// VagueTerms are aesthetic words ("nice", "đẹp") that cannot map to a
	// filter and force a clarification turn when unqualified.
	VagueTerms []string `yaml:"vague_terms"`

	// PropertyTypes and DistrictAliases map colloquial names to canonical
	// filter values.
	PropertyTypes   map[string]string `yaml:"property_types"`
	DistrictAliases map[string]string `yaml:"district_aliases"`

	// Amenities maps a canonical amenity to the synonym terms it expands to.
	Amenities map[string][]string `yaml:"amenities"`

	// Multipliers normalize localized numeric suffixes ("tỷ", "triệu") to
	// a VND multiplier.
	Multipliers map[string]float64 `yaml:"multipliers"`

	// Clarifications maps a missing-field name to the question asked for it.
	Clarifications map[string]string `yaml:"clarifications"`
}

// Lexicon is the full multi-language table set.
type Lexicon struct {
	Languages map[string]Language `yaml:"languages"`
}

// DefaultLanguage is used when a query carries no language tag.
const DefaultLanguage = "vi"

// Default returns the embedded lexicon.
func Default() (*Lexicon, error) {
	return parse(defaultData)
}

// Load reads a lexicon from a YAML file.
func Load(path string) (*Lexicon, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	lex, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse lexicon %s: %w", path, err)
	}
	return lex, nil
}

func parse(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	if len(lex.Languages) == 0 {
		return nil, fmt.Errorf("lexicon declares no languages")
	}
	if _, ok := lex.Languages[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("lexicon missing default language %q", DefaultLanguage)
	}
	for code, lang := range lex.Languages {
		for term := range lang.SearchTerms {
			if _, dup := lang.ChatTerms[term]; dup {
				return nil, fmt.Errorf("lexicon %s: term %q appears in both search and chat sets", code, term)
			}
		}
	}
	return &lex, nil
}

// Language returns the table for code, falling back to the default language.
func (l *Lexicon) Language(code string) Language {
	if lang, ok := l.Languages[strings.ToLower(code)]; ok {
		return lang
	}
	return l.Languages[DefaultLanguage]
}

// MultiplierPattern builds a regexp alternation of the language's numeric
// suffixes, longest first so "triệu" wins over a shorter overlapping suffix.
func (lang Language) MultiplierPattern() string {
	keys := make([]string, 0, len(lang.Multipliers))
	for k := range lang.Multipliers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return strings.Join(quoted, "|")
}
