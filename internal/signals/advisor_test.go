package signals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/richxcame/trustx/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func advisorRequest(name string, status *AdvisorStatus) *Request {
	return &Request{Kind: risk.KindAdvisor, AdvisorName: name, Advisor: status}
}

func TestRegistryExtractor(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	old := now.AddDate(-5, 0, 0)
	recent := now.AddDate(0, -2, 0)
	ext := NewRegistryExtractor().WithClock(func() time.Time { return now })

	tests := []struct {
		name       string
		status     *AdvisorStatus
		score      float64
		indicators []string
	}{
		{"active", &AdvisorStatus{Registered: true, Status: StatusActive, RegisteredOn: &old}, 0, []string{}},
		{"active but recent", &AdvisorStatus{Registered: true, Status: StatusActive, RegisteredOn: &recent}, 0.1,
			[]string{"Advisor registered less than a year ago"}},
		{"suspended", &AdvisorStatus{Registered: true, Status: StatusSuspended}, 0.8,
			[]string{"Advisor registration is SUSPENDED"}},
		{"cancelled and recent", &AdvisorStatus{Registered: true, Status: StatusCancelled, RegisteredOn: &recent}, 1.0,
			[]string{"Advisor registration is CANCELLED", "Advisor registered less than a year ago"}},
		{"unknown status", &AdvisorStatus{Registered: true, Status: "UNDER_REVIEW"}, 0.5,
			[]string{"Advisor registration status is UNDER_REVIEW"}},
		{"not registered", &AdvisorStatus{Registered: false}, 0.9,
			[]string{"Advisor not found in SEBI registry"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ext.Extract(context.Background(), advisorRequest("Ravi Kumar", tt.status))
			require.NoError(t, err)
			assert.Equal(t, tt.score, res.Score)
			assert.Equal(t, tt.indicators, res.Indicators)
		})
	}
}

func TestRegistryExtractor_LookupFailed(t *testing.T) {
	req := advisorRequest("Ravi Kumar", nil)
	req.PrepErr = errors.New("registry unreachable")

	_, err := NewRegistryExtractor().Extract(context.Background(), req)
	assert.ErrorIs(t, err, ErrExtractorUnavailable)
	assert.Contains(t, err.Error(), "registry unreachable")
}

func TestAdvisorNameExtractor(t *testing.T) {
	ext := NewAdvisorNameExtractor(DefaultRules())
	unregistered := &AdvisorStatus{Registered: false}

	res, err := ext.Extract(context.Background(), advisorRequest("Profit Guru Master", unregistered))
	require.NoError(t, err)
	assert.Equal(t, 0.75, res.Score)
	assert.Equal(t, []string{
		"Suspicious keyword in advisor name: profit",
		"Suspicious keyword in advisor name: guru",
		"Suspicious keyword in advisor name: master",
	}, res.Indicators)

	res, err = ext.Extract(context.Background(), advisorRequest("9876543210", unregistered))
	require.NoError(t, err)
	assert.Equal(t, 0.6, res.Score)
	assert.Equal(t, []string{"Advisor name contains a phone number", "Advisor name is a single word"}, res.Indicators)
}

func TestAdvisorNameExtractor_NotApplicable(t *testing.T) {
	ext := NewAdvisorNameExtractor(DefaultRules())

	_, err := ext.Extract(context.Background(), advisorRequest("Wealth Guru", &AdvisorStatus{Registered: true, Status: StatusActive}))
	assert.ErrorIs(t, err, ErrNotApplicable)

	_, err = ext.Extract(context.Background(), advisorRequest("  ", nil))
	assert.ErrorIs(t, err, ErrNotApplicable)
}
