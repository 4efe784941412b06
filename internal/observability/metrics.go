package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "biobasis_merge"

// Metrics holds the Prometheus collectors for merge runs.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec // labels: outcome={success,error,dry_run}
	RunDuration   prometheus.Histogram
	PipelineReady prometheus.Gauge

	// File discovery.
	FilesFound   prometheus.Gauge
	FilesMissing prometheus.Gauge
	FilesFailed  prometheus.Counter

	// Merge and coverage.
	RowsMerged        prometheus.Gauge
	DuplicatesDropped prometheus.Counter
	MissingSlots      prometheus.Gauge
	CoveragePercent   prometheus.Gauge

	// Enrichment.
	WetBulbSolves *prometheus.CounterVec // labels: status={converged,bounds_exceeded,max_iterations,undefined}

	// Sinks.
	SinkWrites   *prometheus.CounterVec   // labels: sink, outcome={success,error}
	SinkDuration *prometheus.HistogramVec // labels: sink
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Merge runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete merge run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		PipelineReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_ready",
			Help:      "1 once a merge run has completed successfully.",
		}),
		FilesFound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "files_found",
			Help:      "Daily files present for the last run's date range.",
		}),
		FilesMissing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "files_missing",
			Help:      "Daily files absent for the last run's date range.",
		}),
		FilesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_failed_total",
			Help:      "Daily files present on disk that could not be parsed.",
		}),
		RowsMerged: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows_merged",
			Help:      "Grid rows in the last merged series.",
		}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_dropped_total",
			Help:      "Records dropped by first-wins timestamp deduplication.",
		}),
		MissingSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "missing_slots",
			Help:      "Grid slots with no observation in the last run.",
		}),
		CoveragePercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coverage_percent",
			Help:      "Share of grid slots with data in the last run.",
		}),
		WetBulbSolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wetbulb_solver_total",
			Help:      "Wet-bulb solves by outcome.",
		}, []string{"status"}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Sink writes by sink and outcome.",
		}, []string{"sink", "outcome"}),
		SinkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sink_write_duration_seconds",
			Help:      "Time spent writing a merged series to a sink.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"sink"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsTotal,
		m.RunDuration,
		m.PipelineReady,
		m.FilesFound,
		m.FilesMissing,
		m.FilesFailed,
		m.RowsMerged,
		m.DuplicatesDropped,
		m.MissingSlots,
		m.CoveragePercent,
		m.WetBulbSolves,
		m.SinkWrites,
		m.SinkDuration,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates Metrics registered on reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewMetricsWith(prometheus.NewRegistry())
}
