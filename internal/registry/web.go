package registry

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/richxcame/trustx/pkg/httpclient"
	"github.com/richxcame/trustx/pkg/resilience"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/time/rate"
)

const searchPath = "/sebiweb/other/Search"

var registrationDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"02-Jan-2006",
	"Jan 02, 2006",
	"January 2, 2006",
}

// WebSourceConfig configures the regulator web lookup
type WebSourceConfig struct {
	BaseURL        string
	Timeout        time.Duration
	UserAgent      string
	RequestsPerSec float64
}

// WebSource searches the regulator's public register and parses the
// result table
type WebSource struct {
	client  *httpclient.Client
	limiter *rate.Limiter
}

// NewWebSource creates a rate-limited web source
func NewWebSource(cfg WebSourceConfig) *WebSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 1
	}

	retry := resilience.ConservativeRetryConfig()
	retry.RetryableChecker = httpclient.IsHTTPRetryable

	client := httpclient.NewClient(cfg.BaseURL, cfg.Timeout).Apply(
		httpclient.WithUserAgent(cfg.UserAgent),
		httpclient.WithRetry(retry),
		httpclient.WithBreaker(resilience.NewCircuitBreaker(
			resilience.DependencySettings("registry-web", time.Minute, 3),
			resilience.GracefulDegradation("registry-web"),
		)),
	)

	return &WebSource{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
	}
}

// Search returns ErrNotFound when the register has no matching row.
func (w *WebSource) Search(ctx context.Context, name, advisorID string) (*Advisor, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("registry web: %w", err)
	}

	query := url.Values{}
	query.Set("intermediary", "IA")
	if advisorID != "" {
		query.Set("regn_no", advisorID)
		query.Set("name", "")
	} else {
		query.Set("name", name)
		query.Set("regn_no", "")
	}

	resp, err := w.client.Do(ctx, http.MethodGet, searchPath, query, nil, map[string]string{
		"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	})
	if err != nil {
		return nil, fmt.Errorf("registry web: %w", err)
	}

	return ParseSearchResults(resp.Body, name, advisorID)
}

// ParseSearchResults scans the first table with class "data". A row whose
// id equals advisorID wins over any row whose name contains name (ignoring
// case); among name matches the first row wins.
// Rows are name, registration number, registration date, status.
func ParseSearchResults(doc []byte, name, advisorID string) (*Advisor, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("registry web: parse: %w", err)
	}

	table := findTable(root)
	if table == nil {
		return nil, ErrNotFound
	}

	needle := strings.ToLower(strings.TrimSpace(name))
	var nameMatch []string
	for i, row := range rows(table) {
		if i == 0 {
			continue
		}
		cells := cellTexts(row)
		if len(cells) < 4 {
			continue
		}
		if advisorID != "" && strings.EqualFold(advisorID, cells[1]) {
			return advisorFromRow(cells), nil
		}
		if nameMatch == nil && needle != "" && strings.Contains(strings.ToLower(cells[0]), needle) {
			nameMatch = cells
		}
	}
	if nameMatch == nil {
		return nil, ErrNotFound
	}
	return advisorFromRow(nameMatch), nil
}

func advisorFromRow(cells []string) *Advisor {
	a := &Advisor{
		AdvisorID:          cells[1],
		Name:               cells[0],
		RegistrationNumber: cells[1],
		Status:             normalizeStatus(cells[3]),
		Verified:           true,
	}
	if t, ok := parseRegistrationDate(cells[2]); ok {
		a.RegisteredOn = &t
	}
	return a
}

// normalizeStatus maps the register's status wording onto the stored
// statuses. A listed row with unrecognised wording counts as active.
func normalizeStatus(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "SUSPEND"):
		return StatusSuspended
	case strings.Contains(s, "CANCEL"), strings.Contains(s, "REVOK"),
		strings.Contains(s, "SURRENDER"), strings.Contains(s, "EXPIRED"),
		strings.Contains(s, "INACTIVE"):
		return StatusCancelled
	default:
		return StatusActive
	}
}

func findTable(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Table && hasClass(n, "data") {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTable(c); t != nil {
			return t
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			for _, c := range strings.Fields(attr.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

// rows returns the tr elements of a table, looking through thead/tbody.
func rows(table *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Tr:
				out = append(out, c)
			case atom.Thead, atom.Tbody, atom.Tfoot:
				walk(c)
			}
		}
	}
	walk(table)
	return out
}

func cellTexts(row *html.Node) []string {
	var cells []string
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			cells = append(cells, strings.Join(strings.Fields(textOf(c)), " "))
		}
	}
	return cells
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textOf(c))
		sb.WriteByte(' ')
	}
	return sb.String()
}

func parseRegistrationDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range registrationDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
