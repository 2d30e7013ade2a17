package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Downstream invocation Prometheus metrics.
var (
	InvokerAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homepilot",
			Name:      "invoker_attempts_total",
			Help:      "Total downstream call attempts by outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	InvokerAttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "homepilot",
			Name:      "invoker_attempt_duration_seconds",
			Help:      "Downstream call attempt duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	InvokerBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "homepilot",
			Name:      "invoker_breaker_state",
			Help:      "Circuit breaker state per endpoint (0=closed, 1=open, 2=half-open)",
		},
		[]string{"endpoint"},
	)

	InvokerRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "homepilot",
			Name:      "invoker_retries_total",
			Help:      "Total downstream call retries",
		},
		[]string{"endpoint"},
	)
)

// RegisterInvokerMetrics registers invoker collectors explicitly (no init()).
func RegisterInvokerMetrics() {
	prometheus.MustRegister(InvokerAttemptsTotal)
	prometheus.MustRegister(InvokerAttemptDuration)
	prometheus.MustRegister(InvokerBreakerState)
	prometheus.MustRegister(InvokerRetriesTotal)
}

// InvokerObserver feeds invoker attempt observations into Prometheus.
// It implements the invoker's Observer interface.
type InvokerObserver struct{}

// ObserveAttempt records one downstream call attempt.
func (InvokerObserver) ObserveAttempt(endpoint, outcome string, d time.Duration) {
	InvokerAttemptsTotal.WithLabelValues(endpoint, outcome).Inc()
	InvokerAttemptDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveRetry records one retry against an endpoint.
func (InvokerObserver) ObserveRetry(endpoint string) {
	InvokerRetriesTotal.WithLabelValues(endpoint).Inc()
}

// ObserveBreakerState records a breaker state transition.
func (InvokerObserver) ObserveBreakerState(endpoint string, state int) {
	InvokerBreakerState.WithLabelValues(endpoint).Set(float64(state))
}
