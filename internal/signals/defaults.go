package signals

import "github.com/richxcame/trustx/internal/risk"

// Dependencies are the collaborators of the built-in extractor set.
// Nil collaborators leave the dependent extractors unavailable.
type Dependencies struct {
	Rules         *Rules
	TextTable     risk.Table
	Fetcher       PageFetcher
	Classifier    Extractor
	PageTextLimit int
}

// Build registers every built-in extractor and returns the set together
// with the text scorer shared by the derived-text extractors.
func Build(deps Dependencies) (*Set, *TextScorer) {
	rules := deps.Rules
	if rules == nil {
		rules = DefaultRules()
	}

	set := NewSet(
		NewKeywordExtractor(rules),
		NewPatternExtractor(rules),
		NewSentimentExtractor(rules),
		NewUrgencyExtractor(rules),
	)
	if deps.Classifier != nil {
		set.Add(deps.Classifier)
	} else {
		set.Add(disabled(SignalClassifier))
	}

	scorer := NewTextScorer(deps.TextTable, set)
	heuristics := NewURLHeuristics(rules)

	set.Add(heuristics)
	set.Add(NewPageContentExtractor(deps.Fetcher, scorer, deps.PageTextLimit))
	set.Add(NewOCRTextExtractor(scorer))
	set.Add(NewEmbeddedLinksExtractor(heuristics))
	set.Add(NewQRLinkExtractor(heuristics))
	set.Add(NewQRTextExtractor(scorer))
	set.Add(NewRegistryExtractor())
	set.Add(NewAdvisorNameExtractor(rules))

	return set, scorer
}
