package analysis

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"time"
)

// Export formats accepted by GET /stats/dashboard/export.
const (
	ExportJSON = "json"
	ExportCSV  = "csv"
)

var csvHeader = []string{"section", "metric", "value"}

// WriteCSV flattens the dashboard into section,metric,value rows.
func (d *Dashboard) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	rows := [][]string{csvHeader}

	rows = append(rows,
		[]string{"overview", "total_analyses", itoa(d.Overview.TotalAnalyses)},
		[]string{"overview", "analyses_today", itoa(d.Overview.AnalysesToday)},
		[]string{"overview", "analyses_this_week", itoa(d.Overview.AnalysesThisWeek)},
		[]string{"overview", "analyses_this_month", itoa(d.Overview.AnalysesThisMonth)},
		[]string{"overview", "high_risk_percentage", strconv.FormatFloat(d.Overview.HighRiskPercentage, 'f', 2, 64)},
	)
	rows = appendCounts(rows, "risk_breakdown", d.RiskBreakdown)
	rows = appendCounts(rows, "input_type_breakdown", d.InputTypeBreakdown)
	for _, p := range d.Trends.HighRisk7Days {
		rows = append(rows, []string{"high_risk_trend", p.Date, itoa(p.HighRiskCount)})
	}
	for _, ind := range d.TopIndicators {
		rows = append(rows, []string{"top_fraud_patterns", ind.Pattern, itoa(ind.Count)})
	}
	if d.Fingerprints != nil {
		rows = append(rows, []string{"blockchain", "total", itoa(d.Fingerprints.Total)})
		rows = appendCounts(rows, "blockchain_by_status", d.Fingerprints.ByStatus)
		rows = appendCounts(rows, "blockchain_by_input_kind", d.Fingerprints.ByKind)
	}
	if r := d.Registry; r != nil {
		rows = append(rows,
			[]string{"sebi_verification", "total_advisors", itoa(r.TotalAdvisors)},
			[]string{"sebi_verification", "active_advisors", itoa(r.ActiveAdvisors)},
			[]string{"sebi_verification", "suspended_advisors", itoa(r.SuspendedAdvisors)},
			[]string{"sebi_verification", "cancelled_advisors", itoa(r.CancelledAdvisors)},
			[]string{"sebi_verification", "verifications", itoa(r.Verifications)},
		)
	}
	for _, a := range d.Alerts {
		rows = append(rows, []string{"alert", a.Type, a.Message})
	}
	rows = append(rows, []string{"meta", "last_updated", d.LastUpdated.UTC().Format(time.RFC3339)})

	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// appendCounts emits map entries in key order so exports diff cleanly.
func appendCounts(rows [][]string, section string, counts map[string]int64) [][]string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rows = append(rows, []string{section, k, itoa(counts[k])})
	}
	return rows
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
