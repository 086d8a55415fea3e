package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "firexref"

// Metrics holds the Prometheus counters, histograms, and gauges for a run.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	RunDuration     prometheus.Histogram
	Runs            *prometheus.CounterVec // labels: outcome={success,error}

	// FIRMS retrieval.
	FetchAttempts *prometheus.CounterVec   // labels: sensor, outcome={success,error}
	FetchDuration *prometheus.HistogramVec // labels: sensor
	DatesSkipped  prometheus.Counter

	// Detection flow.
	DetectionsFetched  prometheus.Counter
	DetectionsKept     prometheus.Counter
	DetectionsRejected prometheus.Counter
	EventsAssigned     prometheus.Counter
	GridCells          prometheus.Gauge

	// Map features and the join.
	BBoxQueries           *prometheus.CounterVec // labels: outcome={success,empty,error}
	FeaturesNormalized    *prometheus.CounterVec // labels: kind={point,line,polygon,unsupported}
	Associations          prometheus.Gauge
	AssociationsPublished prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a complete run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs by outcome.",
		}, []string{"outcome"}),
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "firms_fetch_attempts_total",
			Help:      "FIRMS table download attempts by sensor and outcome.",
		}, []string{"sensor", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "firms_fetch_duration_seconds",
			Help:      "FIRMS table download duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"sensor"}),
		DatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dates_skipped_total",
			Help:      "Dates dropped because a sensor table could not be fetched.",
		}),
		DetectionsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_fetched_total",
			Help:      "FIRMS rows downloaded before boundary filtering.",
		}),
		DetectionsKept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_kept_total",
			Help:      "FIRMS rows intersecting the boundary.",
		}),
		DetectionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_rejected_total",
			Help:      "FIRMS rows dropped because they could not be parsed.",
		}),
		EventsAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_assigned_total",
			Help:      "Fire events given an identity.",
		}),
		GridCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grid_cells",
			Help:      "Populated grid cells in the current run.",
		}),
		BBoxQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bbox_queries_total",
			Help:      "Map feature queries by outcome.",
		}, []string{"outcome"}),
		FeaturesNormalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_normalized_total",
			Help:      "Way features normalized, by original geometry kind.",
		}, []string{"kind"}),
		Associations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "associations",
			Help:      "Feature rows with at least one fire event in the current run.",
		}),
		AssociationsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "associations_published_total",
			Help:      "Association rows written to Kafka.",
		}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRunning,
		m.RunDuration,
		m.Runs,
		m.FetchAttempts,
		m.FetchDuration,
		m.DatesSkipped,
		m.DetectionsFetched,
		m.DetectionsKept,
		m.DetectionsRejected,
		m.EventsAssigned,
		m.GridCells,
		m.BBoxQueries,
		m.FeaturesNormalized,
		m.Associations,
		m.AssociationsPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
