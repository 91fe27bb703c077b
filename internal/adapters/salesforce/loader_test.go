package salesforce_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/quotaboard/internal/adapters/salesforce"
	"github.com/okian/quotaboard/internal/domain/dashboard"
	"github.com/okian/quotaboard/internal/domain/period"
	. "github.com/smartystreets/goconvey/convey"
)

func mustRange(year int, month time.Month) period.Range {
	r, err := period.MonthRange(year, month)
	if err != nil {
		panic(err)
	}
	return r
}

// fakeQuerier answers by matching a fragment of the SOQL text.
type fakeQuerier struct {
	mu      sync.Mutex
	answers []answer
	seen    []string
}

type answer struct {
	match   []string
	records []salesforce.Record
	err     error
}

func (f *fakeQuerier) on(records []salesforce.Record, err error, match ...string) *fakeQuerier {
	f.answers = append(f.answers, answer{match: match, records: records, err: err})
	return f
}

func (f *fakeQuerier) Query(_ context.Context, soql string) ([]salesforce.Record, error) {
	f.mu.Lock()
	f.seen = append(f.seen, soql)
	f.mu.Unlock()
	for _, a := range f.answers {
		if containsAll(soql, a.match) {
			return a.records, a.err
		}
	}
	return nil, nil
}

func containsAll(s string, parts []string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}

func agg(key string, values map[string]float64, alias string) []salesforce.Record {
	out := make([]salesforce.Record, 0, len(values))
	for id, v := range values {
		out = append(out, salesforce.Record{key: id, alias: v})
	}
	return out
}

func fullOrg() *fakeQuerier {
	f := &fakeQuerier{}
	return f.
		on(agg("OwnerId", map[string]float64{"005A": 10000}, "totalAmount"), nil, "FROM Opportunity", "StageName", "2025-03-01").
		on(agg("OwnerId", map[string]float64{"005A": 100000, "005B": 30000, "005X": 999}, "totalAmount"), nil, "IsClosed = false").
		on([]salesforce.Record{
			{"Id": "005A", "Name": "Avery Stone", "Manager_Name__c": "Morgan Lee"},
			{"Id": "005B", "Name": "Blake Hart", "Manager_Name__c": nil},
		}, nil, "FROM User").
		on(agg("OwnerId", map[string]float64{"005A": 8}, "cnt"), nil, "IsRecurrence = false").
		on(agg("OwnerId", map[string]float64{"005A": 12}, "cnt"), nil, "Type = 'Email'").
		on(agg("OwnerId", map[string]float64{"005A": 5}, "cnt"), nil, "FROM Task", "Type = 'Call'").
		on(agg("OwnerId", map[string]float64{"005A": 3, "005B": 1}, "cnt"), nil, "FROM Event").
		on(agg("OwnerId", map[string]float64{"005A": 80000}, "totalForecast"), nil, "FROM ForecastingItem").
		on(agg("QuotaOwnerId", map[string]float64{"005A": 45000, "005B": 20000}, "totalQuota"), nil, "FROM ForecastingQuota").
		on(agg("OwnerId", map[string]float64{"005B": 60000}, "totalAmount"), nil, "FROM Opportunity", "StageName", "2024-09-01").
		on(agg("OwnerId", map[string]float64{"005A": 50000, "005B": 240000}, "totalAmount"), nil, "FROM Opportunity", "2024-09-01")
}

func TestLoaderLoad(t *testing.T) {
	ctx := context.Background()

	Convey("Given an org where every source answers", t, func() {
		q := fullOrg()
		ds, err := salesforce.NewLoader(q, salesforce.WithConcurrency(2)).Load(ctx, 2025, time.March)

		Convey("Then the dataset is complete", func() {
			So(err, ShouldBeNil)
			So(ds.Partial(), ShouldBeFalse)
			So(ds.Range.String(), ShouldEqual, "2025-03-01 to 2025-03-31")
			So(ds.Roster, ShouldResemble, []dashboard.Salesperson{
				{ID: "005A", Name: "Avery Stone", ManagerName: "Morgan Lee"},
				{ID: "005B", Name: "Blake Hart"},
			})
			So(ds.Metrics.ClosedWon.Get("005A"), ShouldEqual, 10000)
			So(ds.Metrics.OpenPipeline.Get("005X"), ShouldEqual, 999)
			So(ds.Metrics.Meetings.Get("005A"), ShouldEqual, 8)
			So(ds.Metrics.EmailActivity.Get("005A"), ShouldEqual, 12)
			So(ds.Metrics.PhoneActivity.Get("005A"), ShouldEqual, 8)
			So(ds.Metrics.PhoneActivity.Get("005B"), ShouldEqual, 1)
			So(ds.Metrics.Quota.Get("005B"), ShouldEqual, 20000)
			So(ds.Metrics.Forecast.Get("005A"), ShouldEqual, 80000)
		})

		Convey("Then the historic ratio needs both pipeline and wins", func() {
			So(ds.Metrics.HistoricRatio.Get("005B"), ShouldEqual, 4)
			So(ds.Metrics.HistoricRatio.Get("005A"), ShouldEqual, dashboard.NoHistoricData)
		})

		Convey("Then the roster query covers every opportunity owner", func() {
			var rosterSOQL string
			for _, s := range q.seen {
				if strings.Contains(s, "FROM User") {
					rosterSOQL = s
				}
			}
			So(rosterSOQL, ShouldContainSubstring, "('005A', '005B', '005X')")
		})

		Convey("Then the rows build end to end", func() {
			rows := dashboard.NewBuilder().Build(ds.Roster, ds.Metrics)
			So(rows, ShouldHaveLength, 2)
			So(rows[0].Remainder, ShouldEqual, 35000)
			So(rows[0].PipelineShouldHave, ShouldEqual, 175000)
			So(rows[0].PipelineGap, ShouldEqual, -75000)
			So(rows[0].MeetingsNeeded, ShouldEqual, 35)
			So(rows[0].MeetingGap, ShouldEqual, -27)
			So(rows[1].ManagerName, ShouldEqual, dashboard.DefaultManagerName)
		})
	})

	Convey("Given an org where forecasting is disabled", t, func() {
		q := fullOrg()
		q.answers = append([]answer{{match: []string{"FROM ForecastingItem"}, err: salesforce.ErrQuery}}, q.answers...)
		ds, err := salesforce.NewLoader(q).Load(ctx, 2025, time.March)

		Convey("Then the load succeeds with a warning", func() {
			So(err, ShouldBeNil)
			So(ds.Partial(), ShouldBeTrue)
			So(ds.Warnings, ShouldHaveLength, 1)
			So(ds.Warnings[0].Source, ShouldEqual, salesforce.SourceForecast)
			So(errors.Is(ds.Warnings[0], salesforce.ErrQuery), ShouldBeTrue)
			So(ds.Metrics.Forecast.Get("005A"), ShouldEqual, 0)
			So(ds.Metrics.Quota.Get("005A"), ShouldEqual, 45000)
		})
	})

	Convey("Given a required source that fails", t, func() {
		q := (&fakeQuerier{}).on(nil, fmt.Errorf("boom: %w", salesforce.ErrQuery), "IsClosed = false")
		_, err := salesforce.NewLoader(q).Load(ctx, 2025, time.March)

		Convey("Then the load fails", func() {
			So(errors.Is(err, salesforce.ErrQuery), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, salesforce.SourceOpenPipeline)
		})
	})

	Convey("Given an optional source that reports an expired session", t, func() {
		q := fullOrg()
		q.answers = append([]answer{{match: []string{"FROM ForecastingQuota"}, err: salesforce.ErrUnauthorized}}, q.answers...)
		_, err := salesforce.NewLoader(q).Load(ctx, 2025, time.March)

		Convey("Then the load fails as unauthorized", func() {
			So(errors.Is(err, salesforce.ErrUnauthorized), ShouldBeTrue)
		})
	})

	Convey("Given a month without opportunities", t, func() {
		q := &fakeQuerier{}
		ds, err := salesforce.NewLoader(q).Load(ctx, 2025, time.March)

		Convey("Then no further sources are queried", func() {
			So(err, ShouldBeNil)
			So(ds.Roster, ShouldBeEmpty)
			So(q.seen, ShouldHaveLength, 2)
		})
	})

	Convey("Given an invalid month", t, func() {
		_, err := salesforce.NewLoader(&fakeQuerier{}).Load(ctx, 2025, 13)
		So(errors.Is(err, period.ErrInvalidMonth), ShouldBeTrue)
	})
}
