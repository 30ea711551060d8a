package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts cache reads by key class (closure|parents|grant) and outcome (hit|miss|error).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plume_cache_lookups_total",
			Help: "Total number of authorization cache lookups",
		},
		[]string{"class", "outcome"},
	)

	// PermissionChecks counts permission evaluations and their outcome (allow|deny|error).
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plume_permission_checks_total",
			Help: "Total number of permission checks",
		},
		[]string{"kind", "result"},
	)

	// InvalidationFailures counts cache evictions that failed after a committed mutation.
	// These never fail the mutation itself; staleness is bounded by the cache TTL.
	InvalidationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plume_cache_invalidation_failures_total",
			Help: "Cache invalidation errors after committed mutations",
		},
	)

	// VisibilityQueries counts executions of the recursive visibility query.
	VisibilityQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plume_visibility_queries_total",
			Help: "Total number of visibility list queries",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plume_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
