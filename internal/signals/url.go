package signals

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/richxcame/trustx/internal/risk"
)

// Indicators raised by URL heuristics.
const (
	IndicatorNoHTTPS       = "Website does not use secure HTTPS connection"
	IndicatorShortener     = "URL shortener detected"
	IndicatorSuspiciousTLD = "Suspicious top-level domain"
	IndicatorLongDomain    = "Unusually long domain name"
	IndicatorRawIP         = "URL uses a raw IP address instead of a domain"
	IndicatorUserInfo      = "URL hides its destination behind embedded credentials (@)"
)

const longDomainLength = 30

// URLHeuristics scores a URL from its shape alone, without fetching it.
type URLHeuristics struct {
	shorteners map[string]struct{}
	tlds       []string
}

func NewURLHeuristics(rules *Rules) *URLHeuristics {
	h := &URLHeuristics{
		shorteners: make(map[string]struct{}, len(rules.URL.Shorteners)),
		tlds:       rules.URL.SuspiciousTLDs,
	}
	for _, s := range rules.URL.Shorteners {
		h.shorteners[strings.ToLower(s)] = struct{}{}
	}
	return h
}

func (h *URLHeuristics) Name() string { return SignalURLHeuristics }

func (h *URLHeuristics) Extract(_ context.Context, req *Request) (risk.SignalResult, error) {
	return h.Score(h.Name(), req.URL)
}

// Score evaluates raw and labels the result with name.
func (h *URLHeuristics) Score(name, raw string) (risk.SignalResult, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return risk.SignalResult{}, fmt.Errorf("%w: unparseable url %q", ErrNotApplicable, raw)
	}
	host := strings.ToLower(u.Hostname())

	var (
		score      float64
		indicators []string
	)
	if !strings.EqualFold(u.Scheme, "https") {
		score += 0.2
		indicators = append(indicators, IndicatorNoHTTPS)
	}
	if h.isShortener(host) {
		score += 0.4
		indicators = append(indicators, IndicatorShortener)
	}
	for _, tld := range h.tlds {
		if strings.HasSuffix(host, tld) {
			score += 0.3
			indicators = append(indicators, IndicatorSuspiciousTLD)
			break
		}
	}
	if len(host) > longDomainLength {
		score += 0.2
		indicators = append(indicators, IndicatorLongDomain)
	}
	if net.ParseIP(host) != nil {
		score += 0.3
		indicators = append(indicators, IndicatorRawIP)
	}
	if u.User != nil {
		score += 0.2
		indicators = append(indicators, IndicatorUserInfo)
	}

	return result(name, score, indicators), nil
}

func (h *URLHeuristics) isShortener(host string) bool {
	host = strings.TrimPrefix(host, "www.")
	if _, ok := h.shorteners[host]; ok {
		return true
	}
	for s := range h.shorteners {
		if strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}
