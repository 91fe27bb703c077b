package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))
			manager.dashboardBuilds.WithLabelValues(OutcomeSuccess).Inc()

			Convey("Then metrics use the default namespace", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(families, ShouldNotBeEmpty)
				for _, f := range families {
					So(strings.HasPrefix(f.GetName(), "quotaboard_dashboard_"), ShouldBeTrue)
				}
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("acme"),
				WithSubsystem("sales"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.dashboardBuildLatency.Observe(42)

			Convey("Then names and labels follow the options", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var found bool
				for _, f := range families {
					if f.GetName() != "acme_sales_build_latency_milliseconds" {
						continue
					}
					found = true
					metric := f.GetMetric()[0]
					So(metric.GetLabel()[0].GetName(), ShouldEqual, "env")
					So(metric.GetHistogram().GetBucket(), ShouldHaveLength, 3)
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When options carry empty values", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "quotaboard")
				So(manager.subsystem, ShouldEqual, "dashboard")
				So(manager.histogramBuckets, ShouldNotBeEmpty)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording dashboard builds", func() {
			before := testutil.ToFloat64(globalManager.dashboardBuilds.WithLabelValues(OutcomePartial))
			RecordDashboardBuild(OutcomePartial)
			RecordDashboardBuildLatency(120)
			UpdateDashboardRows(7)

			Convey("Then counters and gauges move", func() {
				So(testutil.ToFloat64(globalManager.dashboardBuilds.WithLabelValues(OutcomePartial)), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.dashboardRows), ShouldEqual, 7)
			})
		})

		Convey("When recording source queries", func() {
			before := testutil.ToFloat64(globalManager.sourceQueryErrors.WithLabelValues("quota"))
			RecordSourceQueryLatency("quota", 15)
			RecordSourceQueryError("quota")
			RecordSourceWarning("quota")

			Convey("Then the error counter is labelled by source", func() {
				So(testutil.ToFloat64(globalManager.sourceQueryErrors.WithLabelValues("quota")), ShouldEqual, before+1)
			})
		})

		Convey("When recording auth and persistence events", func() {
			So(func() {
				RecordOAuthExchange(OutcomeSuccess)
				RecordOAuthExchange(OutcomeReplay)
				RecordOAuthRefresh(OutcomeFailure)
				UpdateActiveSessions(3)
				RecordSnapshotSave(OutcomeSuccess)
				RecordSnapshotLatency(4)
				RecordErrorByComponent("salesforce", "unauthorized")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.activeSessions), ShouldEqual, 3)
		})

		Convey("When recording HTTP requests", func() {
			RecordHTTPRequest("/api/dashboard", "GET", "200")
			RecordHTTPRequestDuration("/api/dashboard", "GET", "200", 12.5)

			Convey("Then the custom registry exposes them", func() {
				count, err := testutil.GatherAndCount(GetRegistry(), "quotaboard_dashboard_http_requests_total")
				So(err, ShouldBeNil)
				So(count, ShouldBeGreaterThanOrEqualTo, 1)
			})
		})
	})
}
