// Package metrics provides Prometheus metrics for the fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCallsTotal tracks remote function calls by final outcome
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Total number of remote function calls by outcome",
		},
		[]string{"function", "outcome"},
	)

	// RPCAttemptDuration tracks the duration of individual HTTP attempts
	RPCAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "rpc",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of remote function HTTP attempts in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"function", "status_code"},
	)

	// RPCRetriesTotal tracks retries of transient failures
	RPCRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "rpc",
			Name:      "retries_total",
			Help:      "Total number of retried remote function attempts",
		},
		[]string{"function"},
	)

	// RPCSlowCallsTotal tracks attempts slower than the slow call threshold
	RPCSlowCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "rpc",
			Name:      "slow_calls_total",
			Help:      "Total number of remote function attempts above the slow call threshold",
		},
		[]string{"function"},
	)

	// CacheLookupsTotal tracks cache hits and misses
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of cache lookups by result",
		},
		[]string{"result"},
	)

	// CacheErrorsTotal tracks swallowed cache backend errors
	CacheErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "cache",
			Name:      "errors_total",
			Help:      "Total number of cache backend errors that degraded to a miss",
		},
		[]string{"operation"},
	)

	// DetectionsTotal tracks entity detection outcomes
	DetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "detection",
			Name:      "detections_total",
			Help:      "Total number of document detections by outcome",
		},
		[]string{"outcome"},
	)

	// AssembliesTotal tracks credential assemblies by status
	AssembliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "assembly",
			Name:      "assemblies_total",
			Help:      "Total number of credential assemblies by status",
		},
		[]string{"system_name", "status", "error_kind"},
	)

	// AssemblyDuration tracks credential assembly duration
	AssemblyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "assembly",
			Name:      "duration_seconds",
			Help:      "Duration of credential assemblies in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"system_name"},
	)

	// MappingLookupFailuresTotal tracks best-effort external mapping lookups that failed
	MappingLookupFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "registry",
			Name:      "lookup_failures_total",
			Help:      "Total number of external mapping lookups that failed during assembly",
		},
		[]string{"system_name", "entity_type"},
	)
)
