package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_sessions_started_total",
		Help: "Number of checkout sessions started from page entry.",
	})

	sessionsReadyTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_sessions_ready_total",
		Help: "Number of checkout sessions that reached ReadyForPayment.",
	})

	sessionOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_session_outcomes_total",
		Help: "Terminal checkout session outcomes.",
	}, []string{"outcome"})

	confirmationDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_confirmation_duration_seconds",
		Help:    "Latency of the server-side confirmation call.",
		Buckets: prometheus.DefBuckets,
	})
)

// Metric accessors for tests (testutil reads them without touching the
// default registry directly).

func GetSessionsStartedTotal() prometheus.Counter {
	return sessionsStartedTotal
}

func GetSessionsReadyTotal() prometheus.Counter {
	return sessionsReadyTotal
}

func GetSessionOutcomesTotal() *prometheus.CounterVec {
	return sessionOutcomesTotal
}

func GetConfirmationDurationSeconds() prometheus.Histogram {
	return confirmationDurationSeconds
}
