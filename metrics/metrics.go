// Package metrics exposes Prometheus metrics for replay runs.
//
// All vectors are registered to the default registry and labelled by run id,
// so several runs in the same process stay distinguishable.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// JobsTotal counts finished jobs by function and outcome.
var JobsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "replay_jobs_total",
		Help: "Total jobs finished",
	},
	[]string{"run", "function", "outcome"},
)

// RetriesTotal counts invocation retries.
var RetriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "replay_retries_total",
		Help: "Total invocation retries",
	},
	[]string{"run", "function"},
)

// InvocationDuration tracks the latency of single invocation attempts.
var InvocationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "replay_invocation_duration_seconds",
		Help:    "Invocation attempt latency",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"run", "function"},
)

// ActiveWorkers tracks the number of running workers.
var ActiveWorkers = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "replay_active_workers",
		Help: "Current active workers",
	},
	[]string{"run"},
)

// CheckpointWritesTotal counts persisted run state snapshots.
var CheckpointWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "replay_checkpoint_writes_total",
		Help: "Total checkpoint writes",
	},
	[]string{"run"},
)

// FailedJobs tracks the size of the failed job list.
var FailedJobs = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "replay_failed_jobs",
		Help: "Jobs that ended with an error",
	},
	[]string{"run"},
)
