// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deal_analyses_total",
			Help: "Total number of deal analyses by outcome",
		},
		[]string{"outcome"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deal_analysis_duration_seconds",
			Help:    "Duration of a full analysis in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entrypoint"},
	)

	DependencyDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deal_dependency_degraded_total",
			Help: "Fetches that fell back to a static value",
		},
		[]string{"dependency", "reason"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deal_cache_lookups_total",
			Help: "Resolver cache lookups by result",
		},
		[]string{"kind", "result"},
	)

	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Rate limiter decisions by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	PoolInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "admission_pool_in_flight",
			Help: "Tasks currently holding a pool slot",
		},
		[]string{"pool"},
	)

	PoolWaiting = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "admission_pool_waiting",
			Help: "Tasks queued for a pool slot",
		},
		[]string{"pool"},
	)

	ScoringOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deal_scoring_total",
			Help: "External scoring attempts by outcome",
		},
		[]string{"outcome"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)
)
