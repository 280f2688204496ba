package security

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonAlnum      = regexp.MustCompile(`[^A-Z0-9]`)
)

// SanitizeString trims the input and drops control characters other than
// newlines and tabs. Content is otherwise preserved so analyzers see the
// message as the user received it.
func SanitizeString(input string) string {
	return strings.TrimSpace(removeControlCharacters(input))
}

// NormalizeWhitespace collapses every whitespace run to a single space.
func NormalizeWhitespace(input string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(input, " "))
}

// TruncateString cuts input to at most maxRunes runes.
func TruncateString(input string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(input) <= maxRunes {
		return input
	}
	runes := []rune(input)
	return string(runes[:maxRunes])
}

// SanitizeInput cleans free text and caps its length. A maxRunes of zero
// disables the cap.
func SanitizeInput(input string, maxRunes int) string {
	out := SanitizeString(input)
	if maxRunes > 0 {
		out = TruncateString(out, maxRunes)
	}
	return out
}

// SanitizeIdentifier upper-cases a registration number and strips
// separators, e.g. "ina-0000 01234" becomes "INA000001234".
func SanitizeIdentifier(input string) string {
	return nonAlnum.ReplaceAllString(strings.ToUpper(strings.TrimSpace(input)), "")
}

// SanitizeURL trims the input and returns it when it parses as an absolute
// http(s) URL with a host; otherwise it returns "".
func SanitizeURL(input string) string {
	clean := strings.TrimSpace(removeControlCharacters(input))
	u, err := url.Parse(clean)
	if err != nil || u.Host == "" {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return clean
	}
	return ""
}

func removeControlCharacters(input string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
}
