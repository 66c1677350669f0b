package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// forecast engine.
type Metrics struct {
	RequestsTotal   prometheus.Counter
	RequestDuration prometheus.Histogram
	PointsForecast  prometheus.Counter
	PointGaps       prometheus.Counter

	// Method and blend metrics.
	MethodUnavailable *prometheus.CounterVec // labels: method
	BlendsByBucket    *prometheus.CounterVec // labels: bucket={near,mid,long}

	// Climate-normal cache metrics.
	NormalsCacheLookups    *prometheus.CounterVec // labels: result={hit,miss}
	NormalsComputeDuration prometheus.Histogram

	// Observation ingest metrics.
	SamplesIngested prometheus.Counter
	IngestErrors    prometheus.Counter
	IngestRunning   prometheus.Gauge

	// Remote model metrics.
	ModelCircuitOpen prometheus.Gauge
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.PointsForecast,
		m.PointGaps,
		m.MethodUnavailable,
		m.BlendsByBucket,
		m.NormalsCacheLookups,
		m.NormalsComputeDuration,
		m.SamplesIngested,
		m.IngestErrors,
		m.IngestRunning,
		m.ModelCircuitOpen,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "precip_forecast",
			Name:      "requests_total",
			Help:      "Total forecast requests handled.",
		}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "precip_forecast",
			Name:      "request_duration_seconds",
			Help:      "End-to-end duration of a forecast request.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		PointsForecast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "precip_forecast",
			Name:      "points_forecast_total",
			Help:      "Total blended forecast points produced.",
		}),
		PointGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "precip_forecast",
			Name:      "point_gaps_total",
			Help:      "Per-point forecast failures reported as gaps.",
		}),
		MethodUnavailable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "precip_forecast",
			Name:      "method_unavailable_total",
			Help:      "Estimator unavailability by method.",
		}, []string{"method"}),
		BlendsByBucket: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "precip_forecast",
			Name:      "blends_total",
			Help:      "Blended points by horizon bucket.",
		}, []string{"bucket"}),
		NormalsCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "precip_forecast",
			Name:      "normals_cache_lookups_total",
			Help:      "Climate-normal cache lookups by result.",
		}, []string{"result"}),
		NormalsComputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "precip_forecast",
			Name:      "normals_compute_duration_seconds",
			Help:      "Duration of a full climate-normal computation for one grid cell.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
		SamplesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "precip_forecast",
			Name:      "samples_ingested_total",
			Help:      "Observation samples consumed from the source topic.",
		}),
		IngestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "precip_forecast",
			Name:      "ingest_errors_total",
			Help:      "Observation messages that failed to parse.",
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "precip_forecast",
			Name:      "ingest_running",
			Help:      "1 when the observation ingest loop is active.",
		}),
		ModelCircuitOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "precip_forecast",
			Name:      "model_circuit_open",
			Help:      "1 when the remote model circuit breaker is open.",
		}),
	}
}
