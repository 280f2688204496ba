package signals

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/richxcame/trustx/internal/risk"
)

// Registration statuses as published by the regulator.
const (
	StatusActive    = "ACTIVE"
	StatusSuspended = "SUSPENDED"
	StatusCancelled = "CANCELLED"
)

const recentRegistration = 365 * 24 * time.Hour

// RegistryExtractor converts a registry lookup into a signal.
type RegistryExtractor struct {
	now func() time.Time
}

func NewRegistryExtractor() *RegistryExtractor {
	return &RegistryExtractor{now: time.Now}
}

// WithClock overrides the clock used for the recent-registration check.
func (e *RegistryExtractor) WithClock(now func() time.Time) *RegistryExtractor {
	e.now = now
	return e
}

func (e *RegistryExtractor) Name() string { return SignalRegistry }

func (e *RegistryExtractor) Extract(_ context.Context, req *Request) (risk.SignalResult, error) {
	if req.Advisor == nil {
		reason := "registry lookup did not run"
		if req.PrepErr != nil {
			reason = req.PrepErr.Error()
		}
		return risk.SignalResult{}, fmt.Errorf("%w: %s", ErrExtractorUnavailable, reason)
	}

	adv := req.Advisor
	if !adv.Registered {
		return result(e.Name(), 0.9, []string{"Advisor not found in SEBI registry"}), nil
	}

	var (
		score      float64
		indicators []string
	)
	switch strings.ToUpper(adv.Status) {
	case StatusActive:
	case StatusSuspended:
		score = 0.8
		indicators = append(indicators, "Advisor registration is SUSPENDED")
	case StatusCancelled:
		score = 1.0
		indicators = append(indicators, "Advisor registration is CANCELLED")
	default:
		score = 0.5
		indicators = append(indicators, fmt.Sprintf("Advisor registration status is %s", adv.Status))
	}

	if adv.RegisteredOn != nil && e.now().Sub(*adv.RegisteredOn) < recentRegistration {
		score += 0.1
		indicators = append(indicators, "Advisor registered less than a year ago")
	}
	return result(e.Name(), score, indicators), nil
}

var longDigitRun = regexp.MustCompile(`\d{10,}`)

// AdvisorNameExtractor applies naming heuristics to advisors that are not
// in the registry.
type AdvisorNameExtractor struct {
	keywords []string
}

func NewAdvisorNameExtractor(rules *Rules) *AdvisorNameExtractor {
	return &AdvisorNameExtractor{keywords: rules.AdvisorNameKeywords}
}

func (e *AdvisorNameExtractor) Name() string { return SignalAdvisorName }

func (e *AdvisorNameExtractor) Extract(_ context.Context, req *Request) (risk.SignalResult, error) {
	if req.Advisor != nil && req.Advisor.Registered {
		return risk.SignalResult{}, ErrNotApplicable
	}
	name := strings.TrimSpace(req.AdvisorName)
	if name == "" {
		return risk.SignalResult{}, ErrNotApplicable
	}

	var (
		score      float64
		indicators []string
	)
	lower := strings.ToLower(name)
	for _, kw := range e.keywords {
		if strings.Contains(lower, kw) {
			score += 0.25
			indicators = append(indicators, fmt.Sprintf("Suspicious keyword in advisor name: %s", kw))
		}
	}
	if longDigitRun.MatchString(name) {
		score += 0.4
		indicators = append(indicators, "Advisor name contains a phone number")
	}
	if len(strings.Fields(name)) < 2 {
		score += 0.2
		indicators = append(indicators, "Advisor name is a single word")
	}
	return result(e.Name(), score, indicators), nil
}
