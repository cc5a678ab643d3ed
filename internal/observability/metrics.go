package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the Prometheus counters, histograms, and gauges for a run.
// Each run registers into its own registry so the set can be pushed to a
// Pushgateway as one batch-job snapshot.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec // labels: outcome={success,failure}
	EndpointRequests *prometheus.CounterVec // labels: endpoint, outcome
	FetchDuration    prometheus.Histogram
	ElementsTotal    *prometheus.CounterVec // labels: type={node,way,relation}
	FeaturesTotal    *prometheus.CounterVec // labels: geometry
	SkippedElements  prometheus.Counter
	GuardFailures    *prometheus.CounterVec // labels: reason={zero_features,excessive_drop}

	FeatureCount  prometheus.Gauge
	PreviousCount prometheus.Gauge
	DataLagHours  prometheus.Gauge

	registry *prometheus.Registry
}

// Endpoint request outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeHTTPError    = "http_error"
	OutcomeNetworkError = "network_error"
	OutcomeDecodeError  = "decode_error"
	OutcomeRemark       = "remark"
	OutcomeStale        = "stale"
	OutcomeRateLimited  = "rate_limited"
)

// NewMetrics creates and registers all run metrics in a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overpass_etl",
			Name:      "runs_total",
			Help:      "Completed runs by outcome.",
		}, []string{"outcome"}),
		EndpointRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overpass_etl",
			Name:      "endpoint_requests_total",
			Help:      "Overpass endpoint attempts by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "overpass_etl",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of the successful Overpass fetch, including fallbacks.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 180, 300},
		}),
		ElementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overpass_etl",
			Name:      "elements_total",
			Help:      "OSM elements in the accepted response by type.",
		}, []string{"type"}),
		FeaturesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overpass_etl",
			Name:      "features_total",
			Help:      "Converted GeoJSON features by geometry type.",
		}, []string{"geometry"}),
		SkippedElements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "overpass_etl",
			Name:      "skipped_elements_total",
			Help:      "Elements dropped for lacking usable geometry.",
		}),
		GuardFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overpass_etl",
			Name:      "guard_failures_total",
			Help:      "Validation failures that preserved the previous artifact.",
		}, []string{"reason"}),
		FeatureCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "overpass_etl",
			Name:      "feature_count",
			Help:      "Feature count of the new artifact.",
		}),
		PreviousCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "overpass_etl",
			Name:      "previous_feature_count",
			Help:      "Feature count of the previously committed artifact.",
		}),
		DataLagHours: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "overpass_etl",
			Name:      "data_lag_hours",
			Help:      "Age of the accepted response's OSM data in hours.",
		}),

		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.RunsTotal,
		m.EndpointRequests,
		m.FetchDuration,
		m.ElementsTotal,
		m.FeaturesTotal,
		m.SkippedElements,
		m.GuardFailures,
		m.FeatureCount,
		m.PreviousCount,
		m.DataLagHours,
	)

	return m
}

// Push sends the registry contents to a Prometheus Pushgateway, the
// scrape-less path for short-lived batch jobs.
func (m *Metrics) Push(gatewayURL, job string) error {
	return push.New(gatewayURL, job).Gatherer(m.registry).Push()
}
