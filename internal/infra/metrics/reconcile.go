package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		reconcilePassesTotal,
		reconcilePassDuration,
		reconcileLinksTotal,
		reconcileLastSuccess,
	)
}

var (
	reconcilePassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_passes_total",
			Help: "Reconciliation passes by result (ok|error).",
		},
		[]string{"result"},
	)

	reconcilePassDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconcile_pass_duration_seconds",
			Help:    "Duration of a full reconciliation pass in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// outcome: unchanged|updated|expired_fallback|failed
	reconcileLinksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_links_total",
			Help: "Links visited by reconciliation, by outcome.",
		},
		[]string{"outcome"},
	)

	reconcileLastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconcile_last_pass_timestamp_seconds",
			Help: "Unix time of the last completed reconciliation pass.",
		},
	)
)

func ObserveReconcilePass(err error, elapsed time.Duration) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	reconcilePassesTotal.WithLabelValues(res).Inc()
	reconcilePassDuration.Observe(elapsed.Seconds())
	if err == nil {
		reconcileLastSuccess.SetToCurrentTime()
	}
}

func IncReconcileLink(outcome string) {
	reconcileLinksTotal.WithLabelValues(norm(outcome)).Inc()
}
