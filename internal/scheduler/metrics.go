package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	tasksDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strassen_tasks_dispatched_total",
			Help: "Total number of tasks dispatched to workers.",
		},
		[]string{"type"},
	)

	dispatchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strassen_dispatch_failures_total",
			Help: "Total number of failed dispatch attempts.",
		},
		[]string{"type"},
	)

	resultsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strassen_results_received_total",
			Help: "Total number of task results received, by outcome.",
		},
		[]string{"outcome"},
	)

	combinesCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strassen_combines_created_total",
			Help: "Total number of combine tasks created.",
		},
	)

	rootsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strassen_roots_finished_total",
			Help: "Total number of client submissions finished, by status.",
		},
		[]string{"status"},
	)

	activeTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "strassen_active_tasks",
			Help: "Number of tasks the coordinator is tracking.",
		},
	)

	pendingParents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "strassen_pending_parents",
			Help: "Number of decomposed tasks waiting for sub-products.",
		},
	)

	rootDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strassen_root_duration_seconds",
			Help:    "Time from submission to final result.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Result outcome label values.
const (
	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate"
	outcomeUnknown   = "unknown"
)

func init() {
	prometheus.MustRegister(
		tasksDispatchedTotal,
		dispatchFailuresTotal,
		resultsReceivedTotal,
		combinesCreatedTotal,
		rootsFinishedTotal,
		activeTasks,
		pendingParents,
		rootDuration,
	)
}
