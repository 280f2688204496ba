package risk

var recommendations = map[Level][]string{
	LevelHigh: {
		"DO NOT INVEST - High fraud risk detected",
		"Report this content to SEBI",
		"Verify advisor registration independently",
		"Consult with verified financial advisors",
	},
	LevelMedium: {
		"Exercise caution before investing",
		"Verify all claims independently",
		"Check SEBI registration of advisors",
		"Seek second opinion from certified advisors",
	},
	LevelLow: {
		"Low risk detected, but always verify investment opportunities",
		"Ensure advisor is SEBI registered",
		"Read all terms and conditions carefully",
	},
}

// Recommendations returns the advisory messages for a level, most urgent
// first. Unknown levels get the LOW list. The returned slice is a copy.
func Recommendations(level Level) []string {
	list, ok := recommendations[level]
	if !ok {
		list = recommendations[LevelLow]
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}
