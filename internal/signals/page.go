package signals

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/richxcame/trustx/internal/risk"
	"github.com/richxcame/trustx/pkg/httpclient"
	"github.com/richxcame/trustx/pkg/resilience"
	"github.com/richxcame/trustx/pkg/security"
	"golang.org/x/net/html"
)

// PageFetcher downloads an HTML document.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPPageFetcher fetches pages through the shared HTTP client with retry
// and a circuit breaker.
type HTTPPageFetcher struct {
	client *httpclient.Client
}

// PageFetcherConfig configures outbound page fetches.
type PageFetcherConfig struct {
	Timeout     time.Duration
	UserAgent   string
	MaxBodySize int64
}

// NewHTTPPageFetcher builds a fetcher.
func NewHTTPPageFetcher(cfg PageFetcherConfig) *HTTPPageFetcher {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 2 << 20
	}
	retry := resilience.ConservativeRetryConfig()
	retry.MaxAttempts = 2
	retry.InitialBackoff = 250 * time.Millisecond
	retry.RetryableChecker = httpclient.IsHTTPRetryable

	client := httpclient.NewClient("", cfg.Timeout).Apply(
		httpclient.WithUserAgent(cfg.UserAgent),
		httpclient.WithMaxBodySize(cfg.MaxBodySize),
		httpclient.WithRetry(retry),
		httpclient.WithBreaker(resilience.NewCircuitBreaker(
			resilience.DependencySettings("page-fetch", 30*time.Second, 5), resilience.GracefulDegradation("page-fetch"))),
	)
	return &HTTPPageFetcher{client: client}
}

func (f *HTTPPageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.Do(ctx, http.MethodGet, url, nil, nil, map[string]string{
		"Accept": "text/html,application/xhtml+xml",
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// PageContentExtractor fetches the page and scores its visible text with
// the text table.
type PageContentExtractor struct {
	fetcher PageFetcher
	scorer  *TextScorer
	limit   int
}

func NewPageContentExtractor(fetcher PageFetcher, scorer *TextScorer, textLimit int) *PageContentExtractor {
	if textLimit <= 0 {
		textLimit = 2000
	}
	return &PageContentExtractor{fetcher: fetcher, scorer: scorer, limit: textLimit}
}

func (e *PageContentExtractor) Name() string { return SignalPageContent }

func (e *PageContentExtractor) Extract(ctx context.Context, req *Request) (risk.SignalResult, error) {
	if e.fetcher == nil {
		return risk.SignalResult{}, fmt.Errorf("%w: page fetching disabled", ErrExtractorUnavailable)
	}

	body, err := e.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		return risk.SignalResult{}, fmt.Errorf("%w: fetch %s: %v", ErrExtractorUnavailable, req.URL, err)
	}

	text := security.TruncateString(ExtractVisibleText(body), e.limit)
	if text == "" {
		return result(e.Name(), 0, nil), nil
	}

	assessment := e.scorer.Score(ctx, text)
	indicators := assessment.Indicators
	if assessment.RiskScore >= risk.MediumThreshold {
		indicators = append([]string{"Page content contains fraud indicators"}, indicators...)
	}
	return result(e.Name(), assessment.RiskScore, indicators), nil
}

var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"svg":      true,
}

// ExtractVisibleText returns the human-readable text of an HTML document
// with whitespace collapsed.
func ExtractVisibleText(doc []byte) string {
	z := html.NewTokenizer(bytes.NewReader(doc))
	var (
		sb   strings.Builder
		skip int
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return security.NormalizeWhitespace(sb.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if skippedElements[string(name)] {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if skippedElements[string(name)] && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
				sb.WriteByte(' ')
			}
		}
	}
}
