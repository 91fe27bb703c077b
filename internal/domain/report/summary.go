package report

import (
	"sort"

	"github.com/okian/quotaboard/internal/domain/dashboard"
)

// DefaultInsightSize is how many rows each insight panel lists.
const DefaultInsightSize = 5

// Summary holds the headline totals across all rows.
type Summary struct {
	AECount        int     `json:"ae_count"`
	TotalQuota     float64 `json:"total_quota"`
	TotalForecast  float64 `json:"total_forecast"`
	PercentToQuota float64 `json:"percent_to_quota"`
	TotalClosedWon float64 `json:"total_closed_won"`
	TotalPipeline  float64 `json:"total_pipeline"`
	TotalGap       float64 `json:"total_pipeline_gap"`
}

// Summarize totals rows. The aggregate percent to quota is 0 without quota.
func Summarize(rows []dashboard.Row) Summary {
	s := Summary{AECount: len(rows)}
	for _, r := range rows {
		s.TotalQuota += r.QuotaAmount
		s.TotalForecast += r.ForecastAmount
		s.TotalClosedWon += r.ClosedWon
		s.TotalPipeline += r.OpenPipeline
		s.TotalGap += r.PipelineGap
	}
	if s.TotalQuota > 0 {
		s.PercentToQuota = s.TotalForecast / s.TotalQuota * 100
	}
	return s
}

// Insights lists top performers and the largest pipeline gaps.
type Insights struct {
	TopPerformers []dashboard.Row `json:"top_performers"`
	LargestGaps   []dashboard.Row `json:"largest_pipeline_gaps"`
}

// BuildInsights ranks rows by percent to quota and by pipeline gap, both
// descending, keeping at most n of each. Ties keep roster order.
func BuildInsights(rows []dashboard.Row, n int) Insights {
	if n <= 0 {
		n = DefaultInsightSize
	}
	return Insights{
		TopPerformers: topN(rows, n, func(r dashboard.Row) float64 { return r.PercentToQuota }),
		LargestGaps:   topN(rows, n, func(r dashboard.Row) float64 { return r.PipelineGap }),
	}
}

func topN(rows []dashboard.Row, n int, key func(dashboard.Row) float64) []dashboard.Row {
	sorted := make([]dashboard.Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return key(sorted[i]) > key(sorted[j])
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
