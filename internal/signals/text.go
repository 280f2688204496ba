package signals

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/richxcame/trustx/internal/risk"
)

// KeywordExtractor scores the share of known fraud phrases present.
type KeywordExtractor struct {
	keywords []string
}

func NewKeywordExtractor(rules *Rules) *KeywordExtractor {
	return &KeywordExtractor{keywords: rules.Keywords}
}

func (e *KeywordExtractor) Name() string { return SignalKeyword }

func (e *KeywordExtractor) Extract(_ context.Context, req *Request) (risk.SignalResult, error) {
	text := strings.ToLower(req.Content)
	var (
		matches    int
		indicators []string
	)
	for _, kw := range e.keywords {
		if strings.Contains(text, kw) {
			matches++
			indicators = append(indicators, fmt.Sprintf("Fraud keyword: %q", kw))
		}
	}

	score := math.Min(float64(matches)/float64(len(e.keywords))*2, 1)
	if score > 0.3 {
		indicators = append([]string{"Contains common fraud keywords"}, indicators...)
	}
	return result(e.Name(), score, indicators), nil
}

// PatternExtractor scores the share of suspicious regex rules that match.
type PatternExtractor struct {
	patterns []PatternRule
}

func NewPatternExtractor(rules *Rules) *PatternExtractor {
	return &PatternExtractor{patterns: rules.Patterns}
}

func (e *PatternExtractor) Name() string { return SignalPattern }

func (e *PatternExtractor) Extract(_ context.Context, req *Request) (risk.SignalResult, error) {
	if len(e.patterns) == 0 {
		return result(e.Name(), 0, nil), nil
	}

	var indicators []string
	matched := 0
	for _, p := range e.patterns {
		if p.re.MatchString(req.Content) {
			matched++
			indicators = append(indicators, p.Indicator)
		}
	}

	score := float64(matched) / float64(len(e.patterns))
	if score > 0.5 {
		indicators = append(indicators, "Matches suspicious text patterns")
	}
	return result(e.Name(), score, indicators), nil
}

// UrgencyExtractor scores the share of pressure phrases present.
type UrgencyExtractor struct {
	phrases []string
}

func NewUrgencyExtractor(rules *Rules) *UrgencyExtractor {
	return &UrgencyExtractor{phrases: rules.UrgencyPhrases}
}

func (e *UrgencyExtractor) Name() string { return SignalUrgency }

func (e *UrgencyExtractor) Extract(_ context.Context, req *Request) (risk.SignalResult, error) {
	if len(e.phrases) == 0 {
		return result(e.Name(), 0, nil), nil
	}
	text := strings.ToLower(req.Content)
	found := 0
	for _, p := range e.phrases {
		if strings.Contains(text, p) {
			found++
		}
	}
	return result(e.Name(), float64(found)/float64(len(e.phrases)), nil), nil
}

var (
	tokenPattern = regexp.MustCompile(`[\p{L}\p{N}']+`)
	exclamations = regexp.MustCompile(`!`)
)

const (
	negationScalar   = -0.74
	boosterIncrement = 0.293
	exclaimIncrement = 0.292
	maxExclaims      = 4
	normalizeAlpha   = 15.0
)

// SentimentExtractor computes a lexicon-based compound polarity in [-1,1].
// Strong polarity in either direction is suspicious for investment offers.
type SentimentExtractor struct {
	lexicon   map[string]float64
	negations map[string]struct{}
	boosters  map[string]struct{}
}

func NewSentimentExtractor(rules *Rules) *SentimentExtractor {
	e := &SentimentExtractor{
		lexicon:   rules.Sentiment.Lexicon,
		negations: make(map[string]struct{}),
		boosters:  make(map[string]struct{}),
	}
	for _, w := range rules.Sentiment.Negations {
		e.negations[w] = struct{}{}
	}
	for _, w := range rules.Sentiment.Boosters {
		e.boosters[w] = struct{}{}
	}
	return e
}

func (e *SentimentExtractor) Name() string { return SignalSentiment }

func (e *SentimentExtractor) Extract(_ context.Context, req *Request) (risk.SignalResult, error) {
	compound := e.Compound(req.Content)

	var indicators []string
	if compound > 0.8 {
		indicators = append(indicators, "Extremely positive language (suspicious for investments)")
	}
	return result(e.Name(), math.Min(math.Abs(compound), 1), indicators), nil
}

// Compound returns the normalised polarity of text.
func (e *SentimentExtractor) Compound(text string) float64 {
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)

	var sum float64
	for i, tok := range tokens {
		valence, ok := e.lexicon[tok]
		if !ok {
			continue
		}
		for back := 1; back <= 3 && i-back >= 0; back++ {
			prev := tokens[i-back]
			if _, boost := e.boosters[prev]; boost && back == 1 {
				if valence > 0 {
					valence += boosterIncrement
				} else {
					valence -= boosterIncrement
				}
			}
			if _, neg := e.negations[prev]; neg || strings.HasSuffix(prev, "n't") {
				valence *= negationScalar
				break
			}
		}
		sum += valence
	}

	if sum == 0 {
		return 0
	}

	emphasis := math.Min(float64(len(exclamations.FindAllStringIndex(text, -1))), maxExclaims) * exclaimIncrement
	if sum > 0 {
		sum += emphasis
	} else {
		sum -= emphasis
	}

	return sum / math.Sqrt(sum*sum+normalizeAlpha)
}
