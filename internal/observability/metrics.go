package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// river-gauge pipeline.
type Metrics struct {
	// USGS fetch client metrics.
	FetchRequests *prometheus.CounterVec   // labels: endpoint={iv,dv}, outcome={success,error,malformed}
	FetchDuration *prometheus.HistogramVec // labels: endpoint={iv,dv}

	// Cache store metrics.
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss,corrupt}
	CacheWrites  prometheus.Counter
	CacheEvicted prometheus.Counter

	// Pipeline metrics.
	PipelineRuns     prometheus.Counter
	PipelineDuration prometheus.Histogram
	SeriesPoints     prometheus.Histogram
	AnomaliesFlagged prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "river_etl",
			Name:      "fetch_requests_total",
			Help:      "USGS fetch attempts by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "river_etl",
			Name:      "fetch_duration_seconds",
			Help:      "USGS request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"endpoint"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "river_etl",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result.",
		}, []string{"result"}),
		CacheWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_etl",
			Name:      "cache_writes_total",
			Help:      "Cache entries written.",
		}),
		CacheEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_etl",
			Name:      "cache_evicted_total",
			Help:      "Cache entries removed by invalidation.",
		}),
		PipelineRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_etl",
			Name:      "pipeline_runs_total",
			Help:      "Completed pipeline invocations.",
		}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "river_etl",
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-feature run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SeriesPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "river_etl",
			Name:      "series_points",
			Help:      "Observations per processed series.",
			Buckets:   []float64{0, 10, 100, 500, 1000, 2500, 5000, 10000},
		}),
		AnomaliesFlagged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_etl",
			Name:      "anomalies_flagged_total",
			Help:      "Feature rows flagged as anomalous.",
		}),
	}

	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchDuration,
		m.CacheLookups,
		m.CacheWrites,
		m.CacheEvicted,
		m.PipelineRuns,
		m.PipelineDuration,
		m.SeriesPoints,
		m.AnomaliesFlagged,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FetchRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "river_etl", Name: "fetch_requests_total"}, []string{"endpoint", "outcome"}),
		FetchDuration:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "river_etl", Name: "fetch_duration_seconds"}, []string{"endpoint"}),
		CacheLookups:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "river_etl", Name: "cache_lookups_total"}, []string{"result"}),
		CacheWrites:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "river_etl", Name: "cache_writes_total"}),
		CacheEvicted:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "river_etl", Name: "cache_evicted_total"}),
		PipelineRuns:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "river_etl", Name: "pipeline_runs_total"}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "river_etl", Name: "pipeline_duration_seconds"}),
		SeriesPoints:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "river_etl", Name: "series_points"}),
		AnomaliesFlagged: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "river_etl", Name: "anomalies_flagged_total"}),
	}
}
