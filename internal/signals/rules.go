package signals

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// PatternRule is one named regular expression with the indicator it raises.
type PatternRule struct {
	Name      string `yaml:"name"`
	Regex     string `yaml:"regex"`
	Indicator string `yaml:"indicator"`

	re *regexp.Regexp
}

// SentimentRules holds the lexicon used by the sentiment extractor.
type SentimentRules struct {
	Negations []string           `yaml:"negations"`
	Boosters  []string           `yaml:"boosters"`
	Lexicon   map[string]float64 `yaml:"lexicon"`
}

// URLRules lists hosts and TLDs treated as suspicious.
type URLRules struct {
	Shorteners     []string `yaml:"shorteners"`
	SuspiciousTLDs []string `yaml:"suspicious_tlds"`
}

// Rules is the static rule set shared by the built-in extractors.
type Rules struct {
	Keywords            []string       `yaml:"keywords"`
	Patterns            []PatternRule  `yaml:"patterns"`
	UrgencyPhrases      []string       `yaml:"urgency_phrases"`
	URL                 URLRules       `yaml:"url"`
	AdvisorNameKeywords []string       `yaml:"advisor_name_keywords"`
	Sentiment           SentimentRules `yaml:"sentiment"`
}

// DefaultRules returns the embedded rule set.
func DefaultRules() *Rules {
	r, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("signals: embedded rules are malformed: %v", err))
	}
	return r
}

// ParseRules decodes and compiles a rule document.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if len(r.Keywords) == 0 {
		return nil, fmt.Errorf("rules: keyword list is empty")
	}

	for i := range r.Keywords {
		r.Keywords[i] = strings.ToLower(r.Keywords[i])
	}
	for i := range r.Patterns {
		re, err := regexp.Compile("(?i)" + r.Patterns[i].Regex)
		if err != nil {
			return nil, fmt.Errorf("rules: pattern %s: %w", r.Patterns[i].Name, err)
		}
		r.Patterns[i].re = re
	}
	return &r, nil
}
