// Package httpclient is the outbound HTTP client used for page fetches and
// registry lookups. It layers retry and a circuit breaker over net/http.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/richxcame/trustx/pkg/resilience"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxBodySize = 2 << 20
	errorBodyPreview   = 512
)

// HTTPError is returned for responses with status >= 400.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
	Truncated  bool
}

// Client performs requests relative to baseURL. An empty baseURL means every
// path must be an absolute URL.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig *resilience.RetryConfig
	breaker     *resilience.CircuitBreaker
	userAgent   string
	maxBodySize int64
}

// Option configures a Client.
type Option func(*Client)

// NewClient creates a client. The first positive timeout wins; default 30s.
func NewClient(baseURL string, timeout ...time.Duration) *Client {
	t := defaultTimeout
	if len(timeout) > 0 && timeout[0] > 0 {
		t = timeout[0]
	}
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: t},
		maxBodySize: defaultMaxBodySize,
	}
}

// Apply applies options and returns the client for chaining.
func (c *Client) Apply(opts ...Option) *Client {
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithRetry enables retries with cfg.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retryConfig = &cfg
	}
}

// WithDefaultRetry retries transport errors and retryable statuses.
func WithDefaultRetry() Option {
	cfg := resilience.DefaultRetryConfig()
	cfg.RetryableChecker = IsHTTPRetryable
	return WithRetry(cfg)
}

// WithBreaker routes every attempt through breaker.
func WithBreaker(breaker *resilience.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = breaker
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMaxBodySize caps how much of a response body is read.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithTransport replaces the underlying transport, used by tests and tracing.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// Get performs a GET and returns the body.
func (c *Client) Get(ctx context.Context, path string, headers map[string]string) ([]byte, error) {
	resp, err := c.Do(ctx, http.MethodGet, path, nil, nil, headers)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Do performs a request. A non-nil body is encoded as JSON.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body interface{}, headers map[string]string) (*Response, error) {
	target, err := c.resolve(path, query)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("httpclient: encode body: %w", err)
		}
	}

	op := func(ctx context.Context) (interface{}, error) {
		return c.once(ctx, method, target, payload, headers)
	}

	var result interface{}
	switch {
	case c.retryConfig != nil && c.breaker != nil:
		result, err = resilience.RetryWithBreaker(ctx, *c.retryConfig, c.breaker, op)
	case c.retryConfig != nil:
		result, err = resilience.Retry(ctx, *c.retryConfig, op)
	case c.breaker != nil:
		result, err = c.breaker.Execute(ctx, op)
	default:
		result, err = op(ctx)
	}
	if err != nil {
		return nil, err
	}
	return result.(*Response), nil
}

func (c *Client) once(ctx context.Context, method, target string, payload []byte, headers map[string]string) (*Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("httpclient: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}
	truncated := int64(len(data)) > c.maxBodySize
	if truncated {
		data = data[:c.maxBodySize]
	}

	if resp.StatusCode >= http.StatusBadRequest {
		preview := string(data)
		if len(preview) > errorBodyPreview {
			preview = preview[:errorBodyPreview]
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: preview}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		URL:        resp.Request.URL.String(),
		Truncated:  truncated,
	}, nil
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	raw := path
	if c.baseURL != "" && !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		raw = strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("httpclient: invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("httpclient: unsupported scheme %q", u.Scheme)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// IsHTTPRetryable reports whether err is a transient failure worth retrying.
func IsHTTPRetryable(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return resilience.IsRetryableHTTPStatus(httpErr.StatusCode)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	return true
}
