package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// incident ETL pipeline.
type Metrics struct {
	PagesFetched      prometheus.Counter
	SituationsFetched prometheus.Counter
	FetchErrors       prometheus.Counter

	RowsNormalized    prometheus.Counter
	DeviationsSkipped prometheus.Counter
	GeometryFallbacks prometheus.Counter
	RowsDeduplicated  prometheus.Counter

	RowsUpserted prometheus.Counter

	RunsTotal       *prometheus.CounterVec // label: outcome={success,error}
	RunDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PagesFetched,
		m.SituationsFetched,
		m.FetchErrors,
		m.RowsNormalized,
		m.DeviationsSkipped,
		m.GeometryFallbacks,
		m.RowsDeduplicated,
		m.RowsUpserted,
		m.RunsTotal,
		m.RunDuration,
		m.PipelineRunning,
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
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trafik_etl",
			Name:      "pages_fetched_total",
			Help:      "Total pages fetched from the upstream API.",
		}),
		SituationsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trafik_etl",
			Name:      "situations_fetched_total",
			Help:      "Total situation records fetched from the upstream API.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trafik_etl",
			Name:      "fetch_errors_total",
			Help:      "Total failed fetch phases (after transport retries).",
		}),
		RowsNormalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trafik_etl",
			Name:      "rows_normalized_total",
			Help:      "Total incident rows produced by normalization.",
		}),
		DeviationsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trafik_etl",
			Name:      "deviations_skipped_total",
			Help:      "Total deviations dropped for lacking a message.",
		}),
		GeometryFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trafik_etl",
			Name:      "geometry_fallbacks_total",
			Help:      "Total coordinates obtained via low-confidence numeric extraction.",
		}),
		RowsDeduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trafik_etl",
			Name:      "rows_deduplicated_total",
			Help:      "Total rows collapsed by incident id during normalization.",
		}),
		RowsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trafik_etl",
			Name:      "rows_upserted_total",
			Help:      "Total rows written to storage.",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trafik_etl",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trafik_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-upsert run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trafik_etl",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
	}
}
