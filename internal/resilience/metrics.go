package resilience

import "github.com/prometheus/client_golang/prometheus"

// Breaker collectors are package-level because breakers are built ad hoc
// around provider clients and queue handlers rather than through one
// constructor that could carry a registry.
var (
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "travio",
			Name:      "breaker_state",
			Help:      "Breaker state per target: 0=closed, 1=open, 2=half-open.",
		},
		[]string{"target"},
	)
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "travio",
			Name:      "breaker_transition_total",
			Help:      "Breaker state transitions by target and edge.",
		},
		[]string{"target", "from", "to"},
	)
	BreakerOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "travio",
			Name:      "breaker_open_total",
			Help:      "Times a breaker tripped open.",
		},
		[]string{"target"},
	)
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
}
