package signals

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/richxcame/trustx/internal/risk"
)

var (
	// ErrExtractorUnavailable means the extractor could not run: model not
	// configured, network unreachable, decode failure. The signal is then
	// missing from aggregation.
	ErrExtractorUnavailable = errors.New("extractor unavailable")
	// ErrNotApplicable means the extractor has nothing to say about this
	// request, e.g. a QR payload that is not a link.
	ErrNotApplicable = errors.New("extractor not applicable")
)

// Signal names of the built-in extractors.
const (
	SignalKeyword       = "keyword"
	SignalPattern       = "pattern"
	SignalSentiment     = "sentiment"
	SignalUrgency       = "urgency"
	SignalClassifier    = "classifier"
	SignalURLHeuristics = "url_heuristics"
	SignalPageContent   = "page_content"
	SignalOCRText       = "ocr_text"
	SignalEmbeddedLinks = "embedded_links"
	SignalQRLink        = "qr_link"
	SignalQRText        = "qr_text"
	SignalRegistry      = "registry"
	SignalAdvisorName   = "advisor_name"
)

// AdvisorStatus is the registry outcome the advisor extractors read.
type AdvisorStatus struct {
	Registered   bool
	Status       string
	RegisteredOn *time.Time
}

// Request is the input to every extractor. The fields after the
// preparation marker are filled in before extractors run.
type Request struct {
	Kind        risk.InputKind
	Content     string
	URL         string
	AdvisorName string
	AdvisorID   string
	Image       []byte
	ImageType   string

	// preparation outputs
	ExtractedText string
	QRPayload     string
	Advisor       *AdvisorStatus
	PrepErr       error
}

// Extractor produces one signal for a request.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, req *Request) (risk.SignalResult, error)
}

// Set is a registry of extractors by signal name.
type Set struct {
	byName map[string]Extractor
}

// NewSet creates a set holding exts. Later duplicates replace earlier ones.
func NewSet(exts ...Extractor) *Set {
	s := &Set{byName: make(map[string]Extractor, len(exts))}
	for _, e := range exts {
		s.Add(e)
	}
	return s
}

// Add registers e under its name.
func (s *Set) Add(e Extractor) {
	if e == nil {
		return
	}
	s.byName[e.Name()] = e
}

// Get returns the extractor for a signal name.
func (s *Set) Get(name string) (Extractor, bool) {
	e, ok := s.byName[name]
	return e, ok
}

// Known reports whether a signal name has a registered extractor.
func (s *Set) Known(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Names returns the registered names, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.byName))
	for n := range s.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// result builds a SignalResult with a rounded, clamped score and a non-nil
// indicator slice.
func result(name string, score float64, indicators []string) risk.SignalResult {
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	if indicators == nil {
		indicators = []string{}
	}
	return risk.SignalResult{Name: name, Score: risk.RoundScore(score), Indicators: indicators}
}
