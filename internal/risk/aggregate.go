package risk

import "math"

// scorePrecision is the number of decimals kept before classification.
const scorePrecision = 1e6

// Aggregate combines signals into an Assessment using the kind's weight
// table. Signals missing from the map count as 0 and weights are not
// renormalised. Signals whose names are not in the table are ignored.
// The result depends only on its inputs.
func Aggregate(table Table, signals map[string]SignalResult) Assessment {
	var (
		sum           float64
		indicators    = make([]string, 0)
		contributions = make([]SignalContribution, 0, len(table.Entries))
		seen          = make(map[string]struct{})
	)

	for _, entry := range table.Entries {
		result, ok := signals[entry.Signal]
		if !ok {
			continue
		}
		score := clamp(result.Score)
		sum += entry.Weight * score
		contributions = append(contributions, SignalContribution{
			Name:   entry.Signal,
			Score:  score,
			Weight: entry.Weight,
		})

		for _, ind := range result.Indicators {
			if _, dup := seen[ind]; dup {
				continue
			}
			seen[ind] = struct{}{}
			indicators = append(indicators, ind)
		}
	}

	score := RoundScore(clamp(sum))
	level := ClassifyRisk(score)

	return Assessment{
		RiskScore:       score,
		RiskLevel:       level,
		Indicators:      indicators,
		Recommendations: Recommendations(level),
		Signals:         contributions,
	}
}

// ClassifyRisk maps a score to its bucket.
func ClassifyRisk(score float64) Level {
	switch {
	case score >= HighThreshold:
		return LevelHigh
	case score >= MediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// RoundScore rounds to six decimal places.
func RoundScore(score float64) float64 {
	return math.Round(score*scorePrecision) / scorePrecision
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
