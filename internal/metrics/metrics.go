package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coldreach_emails_sent_total",
			Help: "Total emails handed to the mail gateway successfully",
		},
	)

	EmailsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coldreach_emails_failed_total",
			Help: "Total emails the mail gateway refused",
		},
	)

	DispatchRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coldreach_dispatch_runs_total",
			Help: "Total dispatch runs started",
		},
	)

	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coldreach_dispatch_run_seconds",
			Help:    "Wall-clock duration of a dispatch run",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
)

// Register installs the dispatcher metrics on the default registry. Call once
// at startup before the first run.
func Register() {
	prometheus.MustRegister(EmailsSent, EmailsFailed, DispatchRuns, DispatchDuration)
}
