package dashboard

// Builder turns a roster and its metric mappings into dashboard rows.
// A Builder holds only immutable parameters and is safe for concurrent use.
type Builder struct {
	avgDealSize   float64
	winRate       float64
	fallbackRatio float64
}

// NewBuilder creates a Builder with the business defaults, adjusted by opts.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		avgDealSize:   DefaultAvgDealSize,
		winRate:       DefaultWinRate,
		fallbackRatio: DefaultFallbackCoverageRatio,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AvgDealSize returns the configured average deal size.
func (b *Builder) AvgDealSize() float64 { return b.avgDealSize }

// WinRate returns the configured win rate.
func (b *Builder) WinRate() float64 { return b.winRate }

// FallbackCoverageRatio returns the multiplier used when history is missing.
func (b *Builder) FallbackCoverageRatio() float64 { return b.fallbackRatio }

// Build emits exactly one row per roster entry, in roster order. The roster
// decides which rows exist; mappings are only looked up.
func (b *Builder) Build(roster []Salesperson, m Metrics) []Row {
	rows := make([]Row, 0, len(roster))
	for _, ae := range roster {
		rows = append(rows, b.row(ae, m))
	}
	return rows
}

func (b *Builder) row(ae Salesperson, m Metrics) Row {
	closedWon := m.ClosedWon.Get(ae.ID)
	openPipeline := m.OpenPipeline.Get(ae.ID)
	meetingsScheduled := m.Meetings.Get(ae.ID)
	email := m.EmailActivity.Get(ae.ID)
	phone := m.PhoneActivity.Get(ae.ID)
	forecast := m.Forecast.Get(ae.ID)
	quota := m.Quota.Get(ae.ID)
	ratio := m.HistoricRatio.Get(ae.ID)

	percentToQuota := 0.0
	if quota > 0 {
		percentToQuota = forecast / quota * 100
	}

	// The sentinel is display-only; arithmetic uses the fallback.
	effectiveRatio := ratio
	if ratio == NoHistoricData {
		effectiveRatio = b.fallbackRatio
	}

	remainder := quota - closedWon
	shouldHave := remainder * effectiveRatio
	meetingsNeeded := MeetingsNeeded(remainder, b.avgDealSize, b.winRate)

	manager := ae.ManagerName
	if manager == "" {
		manager = DefaultManagerName
	}

	return Row{
		AEName:                ae.Name,
		ManagerName:           manager,
		ForecastAmount:        forecast,
		QuotaAmount:           quota,
		PercentToQuota:        percentToQuota,
		ClosedWon:             closedWon,
		Remainder:             remainder,
		PipelineCoverageRatio: ratio,
		PipelineShouldHave:    shouldHave,
		OpenPipeline:          openPipeline,
		PipelineGap:           openPipeline - shouldHave,
		ActivityEmail:         email,
		ActivityPhone:         phone,
		ActivityTotal:         email + phone,
		MeetingsNeeded:        meetingsNeeded,
		MeetingsScheduled:     meetingsScheduled,
		MeetingGap:            meetingsScheduled - meetingsNeeded,
	}
}

// BuildRows builds rows with the given deal size and win rate and the
// default fallback coverage ratio.
func BuildRows(roster []Salesperson, m Metrics, avgDealSize, winRate float64) []Row {
	return NewBuilder(WithAvgDealSize(avgDealSize), WithWinRate(winRate)).Build(roster, m)
}
