// Package metrics provides Prometheus instrumentation for the moderation
// service. It exposes counters for evaluations and warnings, a histogram for
// classifier latency, and a gauge for currently banned users.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EvaluationsTotal counts message evaluations, labeled by the verdict
	// source ("local_filter", "ai", "short_message", "timeout", "api_error",
	// "parse_error").
	EvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modguard_evaluations_total",
		Help: "Total number of messages evaluated",
	}, []string{"source"})

	// ViolationsTotal counts evaluations that came back bad, labeled by
	// severity.
	ViolationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modguard_violations_total",
		Help: "Total number of violating messages detected",
	}, []string{"severity"})

	// WarningsIssued counts warnings recorded in the ledger.
	WarningsIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "modguard_warnings_issued_total",
		Help: "Total number of warnings recorded",
	})

	// AppealsTotal counts appeal attempts, labeled by outcome
	// ("granted", "denied").
	AppealsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modguard_appeals_total",
		Help: "Total number of appeal attempts",
	}, []string{"outcome"})

	// BannedUsers tracks the number of users currently at the ban threshold.
	BannedUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "modguard_banned_users",
		Help: "Current number of banned users",
	})

	// ClassifierLatency records classifier round-trip latency in seconds.
	ClassifierLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "modguard_classifier_latency_seconds",
		Help:    "Classifier request latency in seconds",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
	})
)

func init() {
	prometheus.MustRegister(
		EvaluationsTotal,
		ViolationsTotal,
		WarningsIssued,
		AppealsTotal,
		BannedUsers,
		ClassifierLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
