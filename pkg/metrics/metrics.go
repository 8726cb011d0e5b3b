package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vidstream"

// Queue / worker
var (
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_total",
		Help:      "Processing job deliveries by queue outcome (ack, retry, discard)",
	}, []string{"driver", "outcome"})

	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Wall time of a processing job handler",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s .. ~34m
	})

	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "jobs_in_flight",
		Help:      "Jobs currently held by this worker",
	})

	VideosProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "videos_processed_total",
		Help:      "Terminal processing results",
	}, []string{"status"})

	StuckVideosReaped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stuck_videos_reaped_total",
		Help:      "Videos moved from processing to failed by the stuck detector",
	})
)

// Trending
var (
	TrendingRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "trending_run_duration_seconds",
		Help:      "Duration of scheduled trending tasks",
		Buckets:   prometheus.DefBuckets,
	}, []string{"task"})

	TrendingVideosScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trending_videos_scored_total",
		Help:      "Per-video score computations by result",
	}, []string{"result"})

	SnapshotsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "view_snapshots_recorded_total",
		Help:      "View snapshots inserted",
	})

	SnapshotsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "view_snapshots_pruned_total",
		Help:      "View snapshots removed by retention",
	})
)

// HTTP
var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)
