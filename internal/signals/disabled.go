package signals

import (
	"context"
	"fmt"

	"github.com/richxcame/trustx/internal/risk"
)

// disabledExtractor keeps a signal name registered while its backend is
// switched off, so weight tables naming it still validate.
type disabledExtractor struct {
	name string
}

func disabled(name string) Extractor {
	return disabledExtractor{name: name}
}

func (d disabledExtractor) Name() string { return d.name }

func (d disabledExtractor) Extract(context.Context, *Request) (risk.SignalResult, error) {
	return risk.SignalResult{}, fmt.Errorf("%w: %s is not configured", ErrExtractorUnavailable, d.name)
}
