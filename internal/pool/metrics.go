package pool

import "github.com/prometheus/client_golang/prometheus"

// Metric label values.
const (
	modeTracked = "tracked"
	modeSilent  = "silent"

	statusOK     = "ok"
	statusFailed = "failed"

	reasonUnmatched = "unmatched"
	reasonUntracked = "untracked"
)

var (
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crew_submissions_total",
			Help: "Total number of requests submitted to the pool.",
		},
		[]string{"mode"},
	)

	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crew_deliveries_total",
			Help: "Total number of responses delivered to a pending future.",
		},
		[]string{"status"},
	)

	droppedResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crew_dropped_responses_total",
			Help: "Total number of responses discarded by the delivery manager.",
		},
		[]string{"reason"},
	)

	pendingFutures = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crew_pending_futures",
			Help: "Number of futures currently awaiting resolution.",
		},
	)
)

func init() {
	prometheus.MustRegister(submissionsTotal)
	prometheus.MustRegister(deliveriesTotal)
	prometheus.MustRegister(droppedResponsesTotal)
	prometheus.MustRegister(pendingFutures)

	// Pre-initialize label combinations so they appear in /metrics with
	// value 0 from startup, rather than only after first observation.
	submissionsTotal.WithLabelValues(modeTracked)
	submissionsTotal.WithLabelValues(modeSilent)
	deliveriesTotal.WithLabelValues(statusOK)
	deliveriesTotal.WithLabelValues(statusFailed)
	droppedResponsesTotal.WithLabelValues(reasonUnmatched)
	droppedResponsesTotal.WithLabelValues(reasonUntracked)
}
