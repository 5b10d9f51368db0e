package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		providerRequestsTotal,
		providerRequestDuration,
	)
}

var (
	// op: create|cancel|fetch
	// result: ok|transient|rejected
	providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_provider_requests_total",
			Help: "Calls to the payment provider by operation and result.",
		},
		[]string{"provider", "op", "result"},
	)

	providerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_provider_request_duration_seconds",
			Help:    "Latency of payment provider calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "op"},
	)
)

func ObserveProviderCall(provider, op, result string, elapsed time.Duration) {
	providerRequestsTotal.WithLabelValues(norm(provider), norm(op), norm(result)).Inc()
	providerRequestDuration.WithLabelValues(norm(provider), norm(op)).Observe(elapsed.Seconds())
}
