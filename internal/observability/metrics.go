package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the route
// analysis pipeline.
type Metrics struct {
	SessionsStarted    prometheus.Counter
	SessionsCompleted  prometheus.Counter
	SessionsSuperseded prometheus.Counter
	SessionsFailed     *prometheus.CounterVec // label: reason={location_not_found,no_route_found,provider_error}
	ProviderErrors     *prometheus.CounterVec // label: provider={geocoder,directions,risk,area_risk,reports}
	AnalysisDuration   prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the given
// registerer. Pass prometheus.DefaultRegisterer in production; tests use a
// fresh registry to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "safenav",
			Name:      "analysis_sessions_started_total",
			Help:      "Total analysis sessions started.",
		}),
		SessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "safenav",
			Name:      "analysis_sessions_completed_total",
			Help:      "Total analysis sessions that published a result set.",
		}),
		SessionsSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "safenav",
			Name:      "analysis_sessions_superseded_total",
			Help:      "Total sessions displaced mid-flight by a newer one.",
		}),
		SessionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safenav",
			Name:      "analysis_sessions_failed_total",
			Help:      "Total sessions ending in failure, by reason.",
		}, []string{"reason"}),
		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safenav",
			Name:      "provider_errors_total",
			Help:      "Total upstream provider failures, by provider.",
		}, []string{"provider"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "safenav",
			Name:      "analysis_duration_seconds",
			Help:      "Duration of a complete geocode-fetch-score-render cycle.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}

	reg.MustRegister(
		m.SessionsStarted,
		m.SessionsCompleted,
		m.SessionsSuperseded,
		m.SessionsFailed,
		m.ProviderErrors,
		m.AnalysisDuration,
	)
	return m
}
