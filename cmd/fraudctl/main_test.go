package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/richxcame/trustx/internal/fingerprint"
	"github.com/richxcame/trustx/internal/risk"
	"github.com/richxcame/trustx/internal/signals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// ========================================
// SCORE TESTS
// ========================================

func TestScoreURL_InsecureShortener(t *testing.T) {
	out, err := execute(t, "score", "url", "http://bit.ly/free-money", "--json")
	require.NoError(t, err)

	var a risk.Assessment
	require.NoError(t, json.Unmarshal([]byte(out), &a))
	assert.Contains(t, a.Indicators, signals.IndicatorNoHTTPS)
	assert.Contains(t, a.Indicators, signals.IndicatorShortener)
	require.NotEmpty(t, a.Signals)
	assert.Equal(t, signals.SignalURLHeuristics, a.Signals[0].Name)
	assert.GreaterOrEqual(t, a.Signals[0].Score, 0.4)
}

func TestScoreText_BenignMessageIsLow(t *testing.T) {
	out, err := execute(t, "score", "text", "Team", "lunch", "moved", "to", "Friday")
	require.NoError(t, err)

	assert.Contains(t, out, "Risk level: LOW")
	assert.Contains(t, out, "Recommendations:")
}

func TestScoreText_RequiresContent(t *testing.T) {
	_, err := execute(t, "score", "text")
	assert.Error(t, err)
}

func TestScoreText_InvalidWeightsFile(t *testing.T) {
	path := writeFile(t, "weights.yaml", "text:\n  - signal: keyword\n    weight: 0.5\n")

	_, err := execute(t, "score", "text", "hello", "--weights", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, risk.ErrInvalidWeights)
}

// ========================================
// WEIGHTS TESTS
// ========================================

func TestWeightsValidate(t *testing.T) {
	path := writeFile(t, "weights.yaml", `text:
  - signal: keyword
    weight: 0.5
  - signal: pattern
    weight: 0.5
`)

	out, err := execute(t, "weights", "validate", path)
	require.NoError(t, err)
	for _, kind := range risk.AllKinds {
		assert.Contains(t, out, string(kind))
	}
}

func TestWeightsValidate_UnknownSignal(t *testing.T) {
	path := writeFile(t, "weights.yaml", `url:
  - signal: astrology
    weight: 1.0
`)

	_, err := execute(t, "weights", "validate", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, risk.ErrInvalidWeights)
}

func TestWeightsValidate_MissingFile(t *testing.T) {
	_, err := execute(t, "weights", "validate", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWeightsShow(t *testing.T) {
	out, err := execute(t, "weights", "show")
	require.NoError(t, err)

	parsed, err := risk.ParseWeights([]byte(out))
	require.NoError(t, err)
	assert.NoError(t, parsed.Validate(nil))
}

// ========================================
// FINGERPRINT TESTS
// ========================================

func TestFingerprint_ReproducesStoredHash(t *testing.T) {
	path := writeFile(t, "report.json",
		`{"risk_score": 0.82, "input_type": "text", "indicators": ["Guaranteed returns"], "note": "x"}`)
	at := time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC)

	out, err := execute(t, "fingerprint", path, "--at", at.Format(time.RFC3339Nano))
	require.NoError(t, err)

	var got fingerprintOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	contentHash, err := fingerprint.ContentHash(map[string]interface{}{
		"risk_score": 0.82, "input_type": "text", "indicators": []interface{}{"Guaranteed returns"}, "note": "x",
	})
	require.NoError(t, err)
	want, err := fingerprint.TransactionHash(contentHash, 82, "text", []string{"Guaranteed returns"}, at)
	require.NoError(t, err)

	assert.Equal(t, contentHash, got.ContentHash)
	assert.Equal(t, 82, got.ScoreInt)
	assert.Equal(t, "text", got.InputKind)
	assert.Equal(t, want, got.TransactionHash)
	assert.True(t, got.AboveThreshold)
}

func TestFingerprint_BelowThreshold(t *testing.T) {
	path := writeFile(t, "report.json", `{"risk_score": 0.699999}`)

	out, err := execute(t, "fingerprint", path)
	require.NoError(t, err)

	var got fingerprintOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.False(t, got.AboveThreshold)
	assert.Equal(t, "unknown", got.InputKind)
	assert.Empty(t, got.Indicators)
}

func TestFingerprint_InvalidReport(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "risk"},
		{"missing score", `{"input_type": "text"}`},
		{"score out of range", `{"risk_score": 1.5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "report.json", tt.content)
			_, err := execute(t, "fingerprint", path)
			assert.Error(t, err)
		})
	}
}

func TestFingerprint_InvalidTimestamp(t *testing.T) {
	path := writeFile(t, "report.json", `{"risk_score": 0.9}`)

	_, err := execute(t, "fingerprint", path, "--at", "yesterday")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "--at"))
}
