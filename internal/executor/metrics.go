package executor

import "github.com/prometheus/client_golang/prometheus"

var (
	tasksProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strassen_worker_tasks_processed_total",
			Help: "Total number of tasks processed by this worker.",
		},
		[]string{"type", "outcome"},
	)

	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strassen_worker_task_duration_seconds",
			Help:    "Task processing duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	tasksInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "strassen_worker_tasks_in_flight",
			Help: "Number of tasks currently being processed.",
		},
	)
)

// Processing outcome label values.
const (
	outcomeDirect     = "direct"
	outcomeDecomposed = "decomposed"
	outcomeCombined   = "combined"
	outcomeFailed     = "failed"
)

func init() {
	prometheus.MustRegister(tasksProcessedTotal, taskDuration, tasksInFlight)
}
