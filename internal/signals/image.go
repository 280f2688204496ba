package signals

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/richxcame/trustx/internal/risk"
)

// OCR turns an image into text.
type OCR interface {
	ExtractText(ctx context.Context, image []byte, mimeType string) (string, error)
}

// OCRTextExtractor scores text recognised in an uploaded image.
type OCRTextExtractor struct {
	scorer *TextScorer
}

func NewOCRTextExtractor(scorer *TextScorer) *OCRTextExtractor {
	return &OCRTextExtractor{scorer: scorer}
}

func (e *OCRTextExtractor) Name() string { return SignalOCRText }

func (e *OCRTextExtractor) Extract(ctx context.Context, req *Request) (risk.SignalResult, error) {
	if req.PrepErr != nil {
		return risk.SignalResult{}, fmt.Errorf("%w: text recognition failed: %v", ErrExtractorUnavailable, req.PrepErr)
	}
	if strings.TrimSpace(req.ExtractedText) == "" {
		return result(e.Name(), 0, []string{"No readable text found in image"}), nil
	}

	assessment := e.scorer.Score(ctx, req.ExtractedText)
	indicators := assessment.Indicators
	if assessment.RiskScore >= risk.MediumThreshold {
		indicators = append([]string{"Image text contains fraud indicators"}, indicators...)
	}
	return result(e.Name(), assessment.RiskScore, indicators), nil
}

var embeddedURL = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"')\]]+`)

// FindURLs returns the distinct links in text in order of appearance.
// Bare "www." links are given an http scheme.
func FindURLs(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range embeddedURL.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".,;:!?")
		if strings.HasPrefix(strings.ToLower(m), "www.") {
			m = "http://" + m
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// EmbeddedLinksExtractor scores links printed inside an image. The worst
// link determines the score and indicators.
type EmbeddedLinksExtractor struct {
	heuristics *URLHeuristics
}

func NewEmbeddedLinksExtractor(h *URLHeuristics) *EmbeddedLinksExtractor {
	return &EmbeddedLinksExtractor{heuristics: h}
}

func (e *EmbeddedLinksExtractor) Name() string { return SignalEmbeddedLinks }

func (e *EmbeddedLinksExtractor) Extract(_ context.Context, req *Request) (risk.SignalResult, error) {
	if req.PrepErr != nil {
		return risk.SignalResult{}, fmt.Errorf("%w: text recognition failed: %v", ErrExtractorUnavailable, req.PrepErr)
	}
	links := FindURLs(req.ExtractedText)
	if len(links) == 0 {
		return risk.SignalResult{}, ErrNotApplicable
	}

	worst := risk.SignalResult{Score: -1}
	for _, link := range links {
		res, err := e.heuristics.Score(e.Name(), link)
		if err != nil {
			continue
		}
		if res.Score > worst.Score {
			worst = res
		}
	}
	if worst.Score < 0 {
		return risk.SignalResult{}, ErrNotApplicable
	}
	return worst, nil
}
