package api

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	service "github.com/okian/quotaboard/internal/app"
	"github.com/okian/quotaboard/internal/domain/dashboard"
	"github.com/okian/quotaboard/internal/domain/report"
)

var groupClasses = map[string]string{
	report.GroupAE:       "grp-ae",
	report.GroupQuota:    "grp-quota",
	report.GroupPipeline: "grp-pipe",
	report.GroupActivity: "grp-act",
	report.GroupMeetings: "grp-meet",
}

type pageData struct {
	Configured    bool
	Authenticated bool
	Notice        string
	Error         string

	Year     int
	Month    int
	Years    []int
	Months   []monthOption
	Period   string
	Range    string
	LoadTime string
	BuiltAt  string

	Summary  []metricView
	Groups   []groupView
	Columns  []report.Column
	Rows     [][]report.Cell
	Shown    int
	Total    int
	Managers []optionView
	AEs      []optionView
	Filters  []string
	Warnings []string

	TopPerformers []insightView
	LargestGaps   []insightView

	CSVURL string
}

type monthOption struct {
	Value    int
	Name     string
	Selected bool
}

type metricView struct {
	Label    string
	Value    string
	Detail   string
	Negative bool
}

type groupView struct {
	Name  string
	Class string
	Span  int
}

type optionView struct {
	Value    string
	Selected bool
}

type insightView struct {
	Name    string
	Primary string
	Extra   string
}

func newPage(configured bool, year int, month time.Month, now time.Time) pageData {
	p := pageData{
		Configured: configured,
		Year:       year,
		Month:      int(month),
		Years:      yearOptions(now),
		Period:     fmt.Sprintf("%s %d", month, year),
	}
	for m := time.January; m <= time.December; m++ {
		p.Months = append(p.Months, monthOption{Value: int(m), Name: m.String(), Selected: m == month})
	}
	return p
}

// fill renders a built report narrowed by f.
func (p *pageData) fill(rep service.Report, f report.Filter, q url.Values) {
	rows := f.Apply(rep.Rows)

	p.Authenticated = true
	p.Range = rep.Range.String()
	p.LoadTime = fmt.Sprintf("%.1fs", rep.LoadTime.Seconds())
	p.BuiltAt = rep.BuiltAt.Format("2006-01-02 15:04:05")
	p.Warnings = rep.WarningMessages()
	p.Filters = f.Describe()
	p.Shown = len(rows)
	p.Total = len(rep.Rows)
	p.Columns = report.Columns
	p.Groups = groups(report.Columns)
	p.Managers = options(report.ManagerNames(rep.Rows), f.Managers)
	p.AEs = options(report.AENames(rep.Rows), f.AEs)

	sum := report.Summarize(rows)
	p.Summary = []metricView{
		{Label: "Total Quota", Value: report.Currency(sum.TotalQuota)},
		{Label: "Total Forecast", Value: report.Currency(sum.TotalForecast), Detail: fmt.Sprintf("%.1f%% to quota", sum.PercentToQuota)},
		{Label: "Total Closed Won", Value: report.Currency(sum.TotalClosedWon)},
		{Label: "Total Pipeline", Value: report.Currency(sum.TotalPipeline)},
		{Label: "Total Pipeline Gap", Value: report.Currency(sum.TotalGap), Negative: sum.TotalGap < 0},
	}

	p.Rows = make([][]report.Cell, 0, len(rows))
	for _, r := range rows {
		p.Rows = append(p.Rows, report.Cells(r))
	}

	ins := report.BuildInsights(rows, report.DefaultInsightSize)
	for _, r := range ins.TopPerformers {
		p.TopPerformers = append(p.TopPerformers, insightView{
			Name:    r.AEName,
			Primary: fmt.Sprintf("%.1f%%", r.PercentToQuota),
			Extra:   report.Currency(r.ForecastAmount),
		})
	}
	for _, r := range ins.LargestGaps {
		p.LargestGaps = append(p.LargestGaps, insightView{
			Name:    r.AEName,
			Primary: report.Currency(r.PipelineGap),
			Extra:   strconv.Itoa(r.MeetingsNeeded) + " meetings needed",
		})
	}

	csv := url.Values{}
	for k, v := range q {
		csv[k] = v
	}
	csv.Set("year", strconv.Itoa(rep.Year))
	csv.Set("month", strconv.Itoa(int(rep.Month)))
	p.CSVURL = "/api/dashboard.csv?" + csv.Encode()
}

func groups(cols []report.Column) []groupView {
	var out []groupView
	for _, c := range cols {
		if n := len(out); n > 0 && out[n-1].Name == c.Group {
			out[n-1].Span++
			continue
		}
		out = append(out, groupView{Name: c.Group, Class: groupClasses[c.Group], Span: 1})
	}
	return out
}

func options(values, selected []string) []optionView {
	chosen := make(map[string]bool, len(selected))
	for _, s := range selected {
		chosen[s] = true
	}
	out := make([]optionView, len(values))
	for i, v := range values {
		out[i] = optionView{Value: v, Selected: selected == nil || chosen[v]}
	}
	return out
}

// dashboardResponse is the JSON shape of GET /api/dashboard.
type dashboardResponse struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Start      string          `json:"start"`
	End        string          `json:"end"`
	Rows       []dashboard.Row `json:"rows"`
	Total      int             `json:"total"`
	Summary    report.Summary  `json:"summary"`
	Insights   report.Insights `json:"insights"`
	Filters    []string        `json:"filters"`
	Partial    bool            `json:"partial"`
	Warnings   []string        `json:"warnings"`
	LoadTimeMs int64           `json:"load_time_ms"`
	BuiltAt    time.Time       `json:"built_at"`
	SnapshotID string          `json:"snapshot_id,omitempty"`
}

func newDashboardResponse(rep service.Report, f report.Filter) dashboardResponse {
	rows := f.Apply(rep.Rows)
	filters := f.Describe()
	if filters == nil {
		filters = []string{}
	}
	return dashboardResponse{
		Year:       rep.Year,
		Month:      int(rep.Month),
		Start:      rep.Range.StartDate(),
		End:        rep.Range.EndDate(),
		Rows:       rows,
		Total:      len(rep.Rows),
		Summary:    report.Summarize(rows),
		Insights:   report.BuildInsights(rows, report.DefaultInsightSize),
		Filters:    filters,
		Partial:    rep.Partial(),
		Warnings:   rep.WarningMessages(),
		LoadTimeMs: rep.LoadTime.Milliseconds(),
		BuiltAt:    rep.BuiltAt,
		SnapshotID: rep.SnapshotID,
	}
}
