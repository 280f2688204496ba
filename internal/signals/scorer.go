package signals

import (
	"context"

	"github.com/richxcame/trustx/internal/risk"
)

// TextScorer runs the text weight table over arbitrary text. Extractors
// for derived text (page content, OCR output, QR payloads) delegate to it.
type TextScorer struct {
	table risk.Table
	set   *Set
}

// NewTextScorer binds the text table to the extractors in set.
func NewTextScorer(table risk.Table, set *Set) *TextScorer {
	return &TextScorer{table: table, set: set}
}

// Score aggregates every text signal over text. Failing extractors are
// skipped, in line with aggregation semantics.
func (s *TextScorer) Score(ctx context.Context, text string) risk.Assessment {
	req := &Request{Kind: risk.KindText, Content: text}
	signals := make(map[string]risk.SignalResult, len(s.table.Entries))
	for _, entry := range s.table.Entries {
		ext, ok := s.set.Get(entry.Signal)
		if !ok {
			continue
		}
		res, err := ext.Extract(ctx, req)
		if err != nil {
			continue
		}
		signals[entry.Signal] = res
	}
	return risk.Aggregate(s.table, signals)
}
