// Package report shapes dashboard rows for presentation: the column
// contract, cell formatting, filtering, summary totals, insights and CSV.
package report

import (
	"fmt"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/okian/quotaboard/internal/domain/dashboard"
)

// Kind selects how a column is formatted.
type Kind int

// Column kinds.
const (
	KindText Kind = iota
	KindCurrency
	KindPercent
	KindRatio
	KindCount
)

// Column describes one dashboard column.
type Column struct {
	Name  string // contract name, also the CSV header
	Label string // short table header
	Group string // super-header group
	Kind  Kind
	Help  string
	// Highlight marks columns whose negative values render as shortfalls.
	Highlight bool
}

// Super-header groups.
const (
	GroupAE       = "AE"
	GroupQuota    = "Quota"
	GroupPipeline = "Pipeline"
	GroupActivity = "Activity"
	GroupMeetings = "Meetings"
)

// Columns is the ordered display contract.
var Columns = []Column{
	{Name: "AE Name", Label: "AE Name", Group: GroupAE, Kind: KindText},
	{Name: "Manager Name", Label: "Manager", Group: GroupAE, Kind: KindText},
	{Name: "Forecast Amount", Label: "Forecast", Group: GroupQuota, Kind: KindCurrency},
	{Name: "Quota Amount", Label: "Quota Amt", Group: GroupQuota, Kind: KindCurrency},
	{Name: "Percent to Quota (%)", Label: "% to Quota", Group: GroupQuota, Kind: KindPercent},
	{Name: "Closed Won", Label: "Closed Won", Group: GroupQuota, Kind: KindCurrency},
	{Name: "Remainder", Label: "Remainder", Group: GroupQuota, Kind: KindCurrency},
	{Name: "Pipeline Coverage Ratio", Label: "Ratio (6mo avg)", Group: GroupPipeline, Kind: KindRatio},
	{Name: "Pipeline You Should Have", Label: "Should Have", Group: GroupPipeline, Kind: KindCurrency},
	{Name: "Open Pipeline with CW Date in Month", Label: "Open Pipeline", Group: GroupPipeline, Kind: KindCurrency},
	{Name: "Pipeline Gap", Label: "Pipeline Gap", Group: GroupPipeline, Kind: KindCurrency, Help: "Negative = shortfall", Highlight: true},
	{Name: "Activity Email", Label: "Email", Group: GroupActivity, Kind: KindCount},
	{Name: "Activity Phone", Label: "Phone", Group: GroupActivity, Kind: KindCount},
	{Name: "Activity Total", Label: "Total", Group: GroupActivity, Kind: KindCount},
	{Name: "Meetings Needed", Label: "Needed", Group: GroupMeetings, Kind: KindCount},
	{Name: "Meetings Scheduled", Label: "Scheduled", Group: GroupMeetings, Kind: KindCount},
	{Name: "Meeting Gap", Label: "Meeting Gap", Group: GroupMeetings, Kind: KindCount, Help: "Negative = shortfall", Highlight: true},
}

// Values returns the row's fields in column order, as string or number.
func Values(r dashboard.Row) []any {
	return []any{
		r.AEName,
		r.ManagerName,
		r.ForecastAmount,
		r.QuotaAmount,
		r.PercentToQuota,
		r.ClosedWon,
		r.Remainder,
		r.PipelineCoverageRatio,
		r.PipelineShouldHave,
		r.OpenPipeline,
		r.PipelineGap,
		r.ActivityEmail,
		r.ActivityPhone,
		r.ActivityTotal,
		r.MeetingsNeeded,
		r.MeetingsScheduled,
		r.MeetingGap,
	}
}

// Cell is a formatted value ready for rendering.
type Cell struct {
	Column   Column
	Text     string
	Negative bool
}

// Cells formats every field of r in column order.
func Cells(r dashboard.Row) []Cell {
	values := Values(r)
	cells := make([]Cell, len(Columns))
	for i, col := range Columns {
		cells[i] = Cell{
			Column:   col,
			Text:     FormatValue(col.Kind, values[i]),
			Negative: col.Highlight && isNegative(values[i]),
		}
	}
	return cells
}

// FormatValue renders v according to kind.
func FormatValue(kind Kind, v any) string {
	switch kind {
	case KindCurrency:
		return Currency(toFloat(v))
	case KindPercent:
		return fmt.Sprintf("%.1f%%", toFloat(v))
	case KindRatio:
		f := toFloat(v)
		if f == dashboard.NoHistoricData {
			return "-"
		}
		return fmt.Sprintf("%.1fx", f)
	case KindCount:
		return strconv.FormatInt(int64(math.Round(toFloat(v))), 10)
	default:
		return fmt.Sprint(v)
	}
}

// Currency renders whole dollars with thousands separators, e.g. -$75,000.
func Currency(v float64) string {
	whole := int64(math.Round(v))
	if whole < 0 {
		return "-$" + humanize.Comma(-whole)
	}
	return "$" + humanize.Comma(whole)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func isNegative(v any) bool {
	switch v.(type) {
	case float64, int:
		return toFloat(v) < 0
	default:
		return false
	}
}
