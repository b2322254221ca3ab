// Package metrics provides the relay's Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Request outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

var (
	// RequestsTotal counts relayed requests by event and outcome.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Relayed requests",
		},
		[]string{"event", "outcome"},
	)

	// ProviderLatency records provider call latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "event"},
	)

	// SessionsActive tracks connected websocket sessions.
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_sessions_active",
			Help: "Active websocket sessions",
		},
	)

	// RejectedTotal counts inbound frames that never became a request.
	RejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_rejected_total",
			Help: "Rejected inbound frames",
		},
		[]string{"reason"},
	)

	// ProviderModels is the model count seen by the last startup probe.
	ProviderModels = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_provider_models",
			Help: "Models reported by the provider at startup",
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		ProviderLatency,
		SessionsActive,
		RejectedTotal,
		ProviderModels,
	)
}

// ObserveRequest records one finished request.
func ObserveRequest(provider, event, outcome string, took time.Duration) {
	RequestsTotal.WithLabelValues(event, outcome).Inc()
	ProviderLatency.WithLabelValues(provider, event).Observe(took.Seconds())
}

// SetSessions records the current session count.
func SetSessions(n int) {
	SessionsActive.Set(float64(n))
}

// Reject records a frame dropped before dispatch.
func Reject(reason string) {
	RejectedTotal.WithLabelValues(reason).Inc()
}
