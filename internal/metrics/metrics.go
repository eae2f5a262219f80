package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petmagic_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "petmagic_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Job Metrics
	JobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petmagic_jobs_submitted_total",
			Help: "Total number of stylization jobs submitted",
		},
		[]string{"type", "style"},
	)

	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petmagic_jobs_processed_total",
			Help: "Total number of jobs driven to a terminal state",
		},
		[]string{"status"},
	)

	JobErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petmagic_job_errors_total",
			Help: "Total number of failed jobs by classified error code",
		},
		[]string{"code"},
	)

	JobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petmagic_jobs_in_progress",
			Help: "Number of jobs currently being processed",
		},
	)

	JobsQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petmagic_jobs_queue_depth",
			Help: "Number of job notifications waiting in the queue",
		},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "petmagic_job_duration_seconds",
			Help:    "Job processing duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17min
		},
		[]string{"type", "status"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "petmagic_pipeline_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms to ~160s
		},
		[]string{"stage"},
	)

	// Quota Metrics
	QuotaConsumesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petmagic_quota_consumes_total",
			Help: "Total number of quota consume attempts",
		},
		[]string{"outcome"},
	)

	QuotaRefundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petmagic_quota_refunds_total",
			Help: "Total number of quota refund attempts",
		},
		[]string{"outcome"},
	)

	// Generation Metrics
	GenerationOutputBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "petmagic_generation_output_bytes",
			Help:    "Size of normalized output images in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10), // 16KB to 16MB
		},
	)
)

// Quota outcome label values
const (
	OutcomeOK           = "ok"
	OutcomeLimitReached = "limit_reached"
	OutcomeNoop         = "noop"
	OutcomeFailure      = "failure"
)
