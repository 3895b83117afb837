package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Worker metrics
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipforge_jobs_processed_total",
			Help: "Total number of queue jobs processed",
		},
		[]string{"type", "status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clipforge_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27m
		},
		[]string{"stage"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clipforge_queue_depth",
			Help: "Number of jobs waiting in the queue",
		},
	)

	// Ranking metrics
	SegmentsKept = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clipforge_segments_kept",
			Help:    "Number of segments kept per analysis run",
			Buckets: prometheus.LinearBuckets(0, 2, 8), // 0 to 14
		},
	)

	// Render metrics
	ClipsRenderedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipforge_clips_rendered_total",
			Help: "Total number of clips rendered",
		},
		[]string{"aspect"},
	)

	ThumbnailsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipforge_thumbnails_generated_total",
			Help: "Total number of thumbnails composed",
		},
		[]string{"kind"}, // single, ab, style
	)

	ReframeFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipforge_reframe_fallbacks_total",
			Help: "Reframe computations that fell back to a centered crop",
		},
	)

	// A/B metrics
	ABDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipforge_ab_decisions_total",
			Help: "A/B evaluations that declared a winner",
		},
		[]string{"winner"},
	)

	ABSwitchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipforge_ab_switches_total",
			Help: "Scheduled A/B variant switches applied",
		},
	)
)
