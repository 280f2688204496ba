package risk

import (
	"fmt"
	"strings"
)

// InputKind identifies what the caller submitted for analysis.
type InputKind string

const (
	KindText    InputKind = "text"
	KindURL     InputKind = "url"
	KindImage   InputKind = "image"
	KindQR      InputKind = "qr"
	KindAdvisor InputKind = "advisor"
)

// AllKinds lists every input kind in a stable order.
var AllKinds = []InputKind{KindText, KindURL, KindImage, KindQR, KindAdvisor}

// ParseInputKind accepts a kind name case-insensitively.
func ParseInputKind(s string) (InputKind, error) {
	kind := InputKind(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range AllKinds {
		if k == kind {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unrecognized input kind %q", s)
}

// Level is the discretised risk bucket.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// Classification thresholds. Both bounds are inclusive on the upper bucket.
const (
	HighThreshold   = 0.70
	MediumThreshold = 0.40
)

// SignalResult is what one extractor produced for one request.
type SignalResult struct {
	Name       string   `json:"name"`
	Score      float64  `json:"score"`
	Indicators []string `json:"indicators"`
}

// SignalContribution records how one signal entered the weighted sum.
type SignalContribution struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// Assessment is the aggregated outcome of an analysis.
type Assessment struct {
	RiskScore       float64              `json:"risk_score"`
	RiskLevel       Level                `json:"risk_level"`
	Indicators      []string             `json:"indicators"`
	Recommendations []string             `json:"recommendations"`
	Signals         []SignalContribution `json:"signals"`
}
