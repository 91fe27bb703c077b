// Package salesforce loads dashboard inputs from the Salesforce REST API.
package salesforce

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/quotaboard/internal/domain/dashboard"
	"github.com/okian/quotaboard/internal/domain/period"
	"github.com/okian/quotaboard/pkg/logger"
	"github.com/okian/quotaboard/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Source names, used for warnings and metric labels.
const (
	SourceClosedWon         = "closed_won"
	SourceOpenPipeline      = "open_pipeline"
	SourceRoster            = "roster"
	SourceMeetings          = "meetings"
	SourceEmail             = "activity_email"
	SourceCalls             = "activity_calls"
	SourceEvents            = "activity_events"
	SourceForecast          = "forecast"
	SourceQuota             = "quota"
	SourceHistoricPipeline  = "historic_pipeline"
	SourceHistoricClosedWon = "historic_closed_won"
)

// Dataset is everything the Row Builder needs for one month.
type Dataset struct {
	Year     int
	Month    time.Month
	Range    period.Range
	Roster   []dashboard.Salesperson
	Metrics  dashboard.Metrics
	Warnings []SourceError
}

// Partial reports whether any optional source failed.
func (d Dataset) Partial() bool { return len(d.Warnings) > 0 }

// Loader assembles a Dataset from a Querier.
type Loader struct {
	querier       Querier
	queries       Queries
	historyMonths int
	concurrency   int
	logger        logger.Logger
}

// NewLoader returns a Loader reading through q.
func NewLoader(q Querier, opts ...Option) *Loader {
	l := defaultLoader(q)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches the month's data. Opportunity aggregates and the roster are
// required and fail the load. Other sources fail soft: they are reported in
// Dataset.Warnings and their mappings stay empty. An unauthorized response
// from any source fails the load.
func (l *Loader) Load(ctx context.Context, year int, month time.Month) (Dataset, error) {
	rng, err := period.MonthRange(year, month)
	if err != nil {
		return Dataset{}, err
	}
	ds := Dataset{Year: year, Month: month, Range: rng}

	if err := l.loadOpportunities(ctx, &ds); err != nil {
		return Dataset{}, err
	}

	owners := ownerIDs(ds.Metrics.ClosedWon, ds.Metrics.OpenPipeline)
	if len(owners) == 0 {
		l.logger.Info(ctx, "no opportunity owners in period", logger.String("range", rng.String()))
		return ds, nil
	}

	records, err := l.query(ctx, SourceRoster, l.queries.Roster(owners))
	if err != nil {
		return Dataset{}, fmt.Errorf("load %s: %w", SourceRoster, err)
	}
	ds.Roster = roster(records)
	if len(ds.Roster) == 0 {
		return ds, nil
	}

	if err := l.loadOptional(ctx, &ds, year, month); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

func (l *Loader) loadOpportunities(ctx context.Context, ds *Dataset) error {
	var closed, open []Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		closed, err = l.query(gctx, SourceClosedWon, l.queries.ClosedWon(ds.Range))
		if err != nil {
			return fmt.Errorf("load %s: %w", SourceClosedWon, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		open, err = l.query(gctx, SourceOpenPipeline, l.queries.OpenPipeline(ds.Range))
		if err != nil {
			return fmt.Errorf("load %s: %w", SourceOpenPipeline, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	ds.Metrics.ClosedWon = amountsByOwner(closed, fieldOwnerID, aliasAmount)
	ds.Metrics.OpenPipeline = amountsByOwner(open, fieldOwnerID, aliasAmount)
	return nil
}

type optionalSource struct {
	name  string
	soql  string
	apply func([]Record)
}

func (l *Loader) loadOptional(ctx context.Context, ds *Dataset, year int, month time.Month) error {
	ids := make([]string, len(ds.Roster))
	for i, sp := range ds.Roster {
		ids[i] = sp.ID
	}

	var (
		calls, events   dashboard.Counts
		histPipe, histW dashboard.Amounts
	)
	q, rng, m := l.queries, ds.Range, &ds.Metrics
	sources := []optionalSource{
		{SourceMeetings, q.Meetings(ids, rng), func(r []Record) { m.Meetings = countsByOwner(r, fieldOwnerID, aliasCount) }},
		{SourceEmail, q.EmailTasks(ids, rng), func(r []Record) { m.EmailActivity = countsByOwner(r, fieldOwnerID, aliasCount) }},
		{SourceCalls, q.CallTasks(ids, rng), func(r []Record) { calls = countsByOwner(r, fieldOwnerID, aliasCount) }},
		{SourceEvents, q.Events(ids, rng), func(r []Record) { events = countsByOwner(r, fieldOwnerID, aliasCount) }},
		{SourceForecast, q.Forecast(ids, rng), func(r []Record) { m.Forecast = amountsByOwner(r, fieldOwnerID, aliasForecast) }},
		{SourceQuota, q.Quota(ids, rng), func(r []Record) { m.Quota = amountsByOwner(r, fieldQuotaOwnerID, aliasQuota) }},
	}

	window, err := period.HistoricWindow(year, month, l.historyMonths)
	if err != nil {
		return err
	}
	sources = append(sources,
		optionalSource{SourceHistoricPipeline, q.HistoricPipeline(ids, window), func(r []Record) { histPipe = amountsByOwner(r, fieldOwnerID, aliasAmount) }},
		optionalSource{SourceHistoricClosedWon, q.HistoricClosedWon(ids, window), func(r []Record) { histW = amountsByOwner(r, fieldOwnerID, aliasAmount) }},
	)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for _, src := range sources {
		g.Go(func() error {
			records, err := l.query(gctx, src.name, src.soql)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, ErrUnauthorized) || gctx.Err() != nil {
					return fmt.Errorf("load %s: %w", src.name, err)
				}
				l.logger.Warn(ctx, "optional source failed",
					logger.String("source", src.name), logger.Error(err))
				metrics.RecordSourceWarning(src.name)
				ds.Warnings = append(ds.Warnings, SourceError{Source: src.name, Err: err})
				return nil
			}
			src.apply(records)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	sort.Slice(ds.Warnings, func(i, j int) bool { return ds.Warnings[i].Source < ds.Warnings[j].Source })
	m.PhoneActivity = mergeCounts(calls, events)
	m.HistoricRatio = dashboard.HistoricRatios(histPipe, histW)
	return nil
}

func (l *Loader) query(ctx context.Context, source, soql string) ([]Record, error) {
	start := time.Now()
	records, err := l.querier.Query(ctx, soql)
	metrics.RecordSourceQueryLatency(source, float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordSourceQueryError(source)
		return nil, err
	}
	return records, nil
}

func roster(records []Record) []dashboard.Salesperson {
	out := make([]dashboard.Salesperson, 0, len(records))
	for _, r := range records {
		id := r.String("Id")
		if id == "" {
			continue
		}
		out = append(out, dashboard.Salesperson{
			ID:          id,
			Name:        r.String("Name"),
			ManagerName: r.String("Manager_Name__c"),
		})
	}
	return out
}

// ownerIDs returns the sorted union of keys.
func ownerIDs(sets ...dashboard.Amounts) []string {
	seen := make(map[string]struct{})
	for _, s := range sets {
		for id := range s {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func mergeCounts(sets ...dashboard.Counts) dashboard.Counts {
	out := make(dashboard.Counts)
	for _, s := range sets {
		for id, n := range s {
			out[id] += n
		}
	}
	return out
}
