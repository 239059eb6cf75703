package queue

import "github.com/prometheus/client_golang/prometheus"

// Task metrics are shared by every worker in the process, so they live at
// package level rather than on the Worker struct.
var (
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "travio",
			Name:      "queue_depth",
			Help:      "Ready tasks waiting per kind.",
		},
		[]string{"kind"},
	)
	QueueProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "travio",
			Name:      "queue_processed_total",
			Help:      "Tasks finished, by kind and outcome.",
		},
		[]string{"kind", "status"},
	)
	QueueDLQSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "travio",
			Name:      "queue_dlq_size",
			Help:      "Dead-lettered tasks per kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(QueueDepth, QueueProcessedTotal, QueueDLQSize)
}
