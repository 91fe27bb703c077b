// Package dashboard derives the per-salesperson dashboard rows from the
// owner-keyed metric mappings fetched from the CRM.
package dashboard

// NoHistoricData marks a salesperson without six months of pipeline history.
// It is only ever reported in Row.PipelineCoverageRatio and never used in
// arithmetic.
const NoHistoricData = -99.0

// DefaultManagerName is reported when a salesperson has no manager on record.
const DefaultManagerName = "N/A"

// Business defaults used when no option overrides them.
const (
	DefaultAvgDealSize           = 5000.0
	DefaultWinRate               = 0.20
	DefaultFallbackCoverageRatio = 5.0
)

// Salesperson is an account executive from the roster.
type Salesperson struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ManagerName string `json:"manager_name,omitempty"`
}

// Amounts maps an owner id to a money amount.
type Amounts map[string]float64

// Get returns the amount for id, or 0 when absent.
func (a Amounts) Get(id string) float64 {
	return a[id]
}

// Counts maps an owner id to a count of activities or meetings.
type Counts map[string]int

// Get returns the count for id, or 0 when absent.
func (c Counts) Get(id string) int {
	return c[id]
}

// Ratios maps an owner id to a historic pipeline coverage ratio.
type Ratios map[string]float64

// Get returns the ratio for id, or NoHistoricData when absent.
func (r Ratios) Get(id string) float64 {
	v, ok := r[id]
	if !ok {
		return NoHistoricData
	}
	return v
}

// Metrics bundles every mapping the Row Builder looks up. Any mapping may be
// nil; lookups on a nil map yield the documented default.
type Metrics struct {
	ClosedWon     Amounts
	OpenPipeline  Amounts
	Meetings      Counts
	EmailActivity Counts
	PhoneActivity Counts
	Forecast      Amounts
	Quota         Amounts
	HistoricRatio Ratios
}

// Row is one line of the dashboard. Field order is the display contract.
type Row struct {
	AEName                string  `json:"ae_name"`
	ManagerName           string  `json:"manager_name"`
	ForecastAmount        float64 `json:"forecast_amount"`
	QuotaAmount           float64 `json:"quota_amount"`
	PercentToQuota        float64 `json:"percent_to_quota"`
	ClosedWon             float64 `json:"closed_won"`
	Remainder             float64 `json:"remainder"`
	PipelineCoverageRatio float64 `json:"pipeline_coverage_ratio"`
	PipelineShouldHave    float64 `json:"pipeline_should_have"`
	OpenPipeline          float64 `json:"open_pipeline"`
	PipelineGap           float64 `json:"pipeline_gap"`
	ActivityEmail         int     `json:"activity_email"`
	ActivityPhone         int     `json:"activity_phone"`
	ActivityTotal         int     `json:"activity_total"`
	MeetingsNeeded        int     `json:"meetings_needed"`
	MeetingsScheduled     int     `json:"meetings_scheduled"`
	MeetingGap            int     `json:"meeting_gap"`
}

// HasHistoricRatio reports whether the coverage ratio came from history
// rather than the sentinel.
func (r Row) HasHistoricRatio() bool {
	return r.PipelineCoverageRatio != NoHistoricData
}
