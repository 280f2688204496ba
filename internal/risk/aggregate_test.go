package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textTable(t *testing.T) Table {
	t.Helper()
	table, ok := DefaultWeights().For(KindText)
	require.True(t, ok)
	return table
}

// =============================================================================
// Classification
// =============================================================================

func TestClassifyRisk_Boundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  Level
	}{
		{0.0, LevelLow},
		{0.39, LevelLow},
		{0.399999, LevelLow},
		{0.40, LevelMedium},
		{0.69, LevelMedium},
		{0.699999, LevelMedium},
		{0.70, LevelHigh},
		{1.0, LevelHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyRisk(tt.score), "score %v", tt.score)
	}
}

func TestRoundScore(t *testing.T) {
	assert.Equal(t, 0.7, RoundScore(0.7000000000000001))
	assert.Equal(t, 0.699999, RoundScore(0.6999994))
	assert.Equal(t, 0.7, RoundScore(0.6999996))
}

// =============================================================================
// Aggregation
// =============================================================================

func TestAggregate_GuaranteedReturnsScenario(t *testing.T) {
	signals := map[string]SignalResult{
		"keyword":   {Name: "keyword", Score: 0.6, Indicators: []string{"Contains common fraud keywords"}},
		"pattern":   {Name: "pattern", Score: 1.0, Indicators: []string{"Matches suspicious text patterns"}},
		"sentiment": {Name: "sentiment", Score: 0.9, Indicators: []string{"Extremely positive language (suspicious for investments)"}},
		"urgency":   {Name: "urgency", Score: 1.0},
	}

	got := Aggregate(textTable(t), signals)

	assert.Equal(t, 0.82, got.RiskScore)
	assert.Equal(t, LevelHigh, got.RiskLevel)
	assert.Equal(t, []string{
		"Contains common fraud keywords",
		"Matches suspicious text patterns",
		"Extremely positive language (suspicious for investments)",
	}, got.Indicators)
	assert.Equal(t, "DO NOT INVEST - High fraud risk detected", got.Recommendations[0])
	require.Len(t, got.Signals, 4)
	assert.Equal(t, "keyword", got.Signals[0].Name)
	assert.Equal(t, 0.4, got.Signals[0].Weight)
}

func TestAggregate_EmptySignals(t *testing.T) {
	got := Aggregate(textTable(t), nil)

	assert.Equal(t, 0.0, got.RiskScore)
	assert.Equal(t, LevelLow, got.RiskLevel)
	assert.NotNil(t, got.Indicators)
	assert.Empty(t, got.Indicators)
	assert.NotEmpty(t, got.Recommendations)
}

func TestAggregate_MissingSignalCountsAsZero(t *testing.T) {
	signals := map[string]SignalResult{
		"keyword": {Name: "keyword", Score: 1.0},
		"pattern": {Name: "pattern", Score: 1.0},
	}

	got := Aggregate(textTable(t), signals)

	assert.Equal(t, 0.7, got.RiskScore)
	assert.Equal(t, LevelHigh, got.RiskLevel)
}

func TestAggregate_DeduplicatesIndicatorsInTableOrder(t *testing.T) {
	table := Table{Kind: KindText, Entries: []Weight{{Signal: "a", Weight: 0.5}, {Signal: "b", Weight: 0.5}}}
	signals := map[string]SignalResult{
		"b": {Name: "b", Score: 0.2, Indicators: []string{"y", "z"}},
		"a": {Name: "a", Score: 0.2, Indicators: []string{"x", "y"}},
	}

	got := Aggregate(table, signals)

	assert.Equal(t, []string{"x", "y", "z"}, got.Indicators)
}

func TestAggregate_ClampsOutOfRangeScores(t *testing.T) {
	table := Table{Kind: KindURL, Entries: []Weight{{Signal: "a", Weight: 0.5}, {Signal: "b", Weight: 0.5}}}
	signals := map[string]SignalResult{
		"a": {Name: "a", Score: 3.5},
		"b": {Name: "b", Score: math.NaN()},
	}

	got := Aggregate(table, signals)

	assert.Equal(t, 0.5, got.RiskScore)
	assert.Equal(t, LevelMedium, got.RiskLevel)
}

func TestAggregate_IgnoresUnknownSignals(t *testing.T) {
	got := Aggregate(textTable(t), map[string]SignalResult{
		"not_in_table": {Name: "not_in_table", Score: 1.0, Indicators: []string{"ignored"}},
	})

	assert.Equal(t, 0.0, got.RiskScore)
	assert.Empty(t, got.Indicators)
}

func TestAggregate_Deterministic(t *testing.T) {
	signals := map[string]SignalResult{
		"keyword":   {Name: "keyword", Score: 0.13, Indicators: []string{"k1", "k2"}},
		"pattern":   {Name: "pattern", Score: 0.5, Indicators: []string{"p1", "k1"}},
		"sentiment": {Name: "sentiment", Score: 0.77, Indicators: []string{"s1"}},
	}
	first := Aggregate(textTable(t), signals)

	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Aggregate(textTable(t), signals))
	}
}

// =============================================================================
// Recommendations
// =============================================================================

func TestRecommendations(t *testing.T) {
	for _, level := range []Level{LevelLow, LevelMedium, LevelHigh} {
		assert.NotEmpty(t, Recommendations(level), level)
	}
	assert.Equal(t, "Exercise caution before investing", Recommendations(LevelMedium)[0])
	assert.Equal(t, Recommendations(LevelLow), Recommendations(Level("UNKNOWN")))
}

func TestRecommendations_ReturnsCopy(t *testing.T) {
	list := Recommendations(LevelHigh)
	list[0] = "mutated"

	assert.Equal(t, "DO NOT INVEST - High fraud risk detected", Recommendations(LevelHigh)[0])
}

func TestParseInputKind(t *testing.T) {
	kind, err := ParseInputKind(" URL ")
	require.NoError(t, err)
	assert.Equal(t, KindURL, kind)

	_, err = ParseInputKind("announcement")
	assert.Error(t, err)
}
