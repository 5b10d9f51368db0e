package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		linksCreatedTotal,
		linksSupersededTotal,
		linkTransitionsTotal,
	)
}

var (
	linksCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_links_created_total",
			Help: "Payment links issued, by product.",
		},
		[]string{"product"},
	)

	// cancel: ok|failed. A failed provider cancel still supersedes locally.
	linksSupersededTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_links_superseded_total",
			Help: "Outstanding links superseded by a newer link, by provider cancel result.",
		},
		[]string{"cancel"},
	)

	linkTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_link_transitions_total",
			Help: "Persisted payment link status transitions.",
		},
		[]string{"from", "to"},
	)
)

func IncLinkCreated(product string) {
	linksCreatedTotal.WithLabelValues(norm(product)).Inc()
}

func IncLinkSuperseded(cancelOK bool) {
	res := "ok"
	if !cancelOK {
		res = "failed"
	}
	linksSupersededTotal.WithLabelValues(res).Inc()
}

func IncLinkTransition(from, to string) {
	linkTransitionsTotal.WithLabelValues(norm(from), norm(to)).Inc()
}
