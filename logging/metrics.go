// Package logging also carries the Prometheus metrics every control loop
// instruments itself with: scaler ticks, event-handler pop/clear batches,
// search-streamer documents, and agent job outcomes.
package logging

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments shared across Thorium's control
// loops. One Metrics is created per process with NewMetrics; components
// that don't use a given instrument simply never call its recorder.
type Metrics struct {
	// Scaler tick metrics.
	TickDuration  *prometheus.HistogramVec
	SpawnsTotal   *prometheus.CounterVec
	DeletesTotal  *prometheus.CounterVec
	TickErrors    *prometheus.CounterVec
	PoolUtilized  *prometheus.GaugeVec

	// Event handler metrics.
	EventsPopped  *prometheus.CounterVec
	EventsCleared *prometheus.CounterVec
	ReactionsSpawned *prometheus.CounterVec
	DepthRejections  *prometheus.CounterVec

	// Search-streamer metrics.
	DocumentsIndexed *prometheus.CounterVec
	BulkErrors       *prometheus.CounterVec
	InitiationChunksRemaining *prometheus.GaugeVec

	// Agent metrics.
	JobDuration *prometheus.HistogramVec
	JobsTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers Prometheus metrics under namespace
// (defaulting to "thorium") against the default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "thorium"
	}

	return &Metrics{
		TickDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scaler_tick_duration_seconds",
				Help:      "Duration of one scaler tick.",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"scaler"},
		),
		SpawnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scaler_spawns_total",
				Help:      "Total worker spawn decisions issued.",
			},
			[]string{"scaler", "pool"},
		),
		DeletesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scaler_deletes_total",
				Help:      "Total worker delete decisions issued.",
			},
			[]string{"scaler", "reason"},
		),
		TickErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scaler_tick_errors_total",
				Help:      "Errors encountered during a scaler tick, tagged by the entity that was skipped.",
			},
			[]string{"scaler", "kind"},
		),
		PoolUtilized: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scaler_pool_cpu_milli_used",
				Help:      "CPU millicores committed out of a pool's total, at the end of the last tick.",
			},
			[]string{"scaler", "pool"},
		),

		EventsPopped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "eventhandler_events_popped_total",
				Help:      "Events moved from the main queue to in-flight.",
			},
			[]string{"event_type"},
		),
		EventsCleared: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "eventhandler_events_cleared_total",
				Help:      "Events cleared from in-flight after successful processing.",
			},
			[]string{"event_type"},
		),
		ReactionsSpawned: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "eventhandler_reactions_spawned_total",
				Help:      "Child reactions created by trigger matches.",
			},
			[]string{"group", "pipeline"},
		),
		DepthRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "eventhandler_depth_rejections_total",
				Help:      "Trigger matches rejected for exceeding max_depth.",
			},
			[]string{"group", "pipeline"},
		),

		DocumentsIndexed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searchstreamer_documents_indexed_total",
				Help:      "Documents written to the search store.",
			},
			[]string{"kind"},
		),
		BulkErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searchstreamer_bulk_errors_total",
				Help:      "Per-document errors returned from a bulk index call.",
			},
			[]string{"kind"},
		),
		InitiationChunksRemaining: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "searchstreamer_initiation_chunks_remaining",
				Help:      "Token-range chunks not yet reported complete for the current initiation session.",
			},
			[]string{"kind"},
		),

		JobDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "agent_job_duration_seconds",
				Help:      "Wall-clock duration of one job execution.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"group", "pipeline", "stage", "status"},
		),
		JobsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agent_jobs_total",
				Help:      "Total jobs executed by this agent process.",
			},
			[]string{"group", "pipeline", "stage", "status"},
		),
	}
}

// RecordTick records one scaler tick's duration.
func (m *Metrics) RecordTick(scalerKind string, d time.Duration) {
	m.TickDuration.WithLabelValues(scalerKind).Observe(d.Seconds())
}

// RecordJob records one agent job's outcome and duration.
func (m *Metrics) RecordJob(group, pipeline, stage, status string, d time.Duration) {
	m.JobDuration.WithLabelValues(group, pipeline, stage, status).Observe(d.Seconds())
	m.JobsTotal.WithLabelValues(group, pipeline, stage, status).Inc()
}
