package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Materialization outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeExisting = "existing"
	OutcomeFailed   = "failed"
)

// OrderMetrics tracks checkout sessions, order materialization and status
// transitions. A nil *OrderMetrics is a valid no-op recorder.
type OrderMetrics struct {
	sessions       *prometheus.CounterVec
	materialized   *prometheus.CounterVec
	confirmLatency *prometheus.HistogramVec
	transitions    *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_total",
		Help: "Payment sessions requested from the gateway.",
	}, []string{"result"})
	materialized := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_materialized_total",
		Help: "Vendor orders handled during payment confirmation.",
	}, []string{"outcome"})
	confirmLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_confirmation_duration_seconds",
		Help:    "Duration of payment confirmation in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Order status transitions applied.",
	}, []string{"from", "to"})
	reg.MustRegister(sessions, materialized, confirmLatency, transitions)
	return &OrderMetrics{
		sessions:       sessions,
		materialized:   materialized,
		confirmLatency: confirmLatency,
		transitions:    transitions,
	}
}

func (m *OrderMetrics) IncSession(result string) {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.WithLabelValues(normalizeLabel(result)).Inc()
}

// AddMaterialized adds n orders with the given outcome.
func (m *OrderMetrics) AddMaterialized(outcome string, n int) {
	if m == nil || m.materialized == nil || n <= 0 {
		return
	}
	m.materialized.WithLabelValues(normalizeLabel(outcome)).Add(float64(n))
}

func (m *OrderMetrics) ObserveConfirmation(result string, duration time.Duration) {
	if m == nil || m.confirmLatency == nil {
		return
	}
	m.confirmLatency.WithLabelValues(normalizeLabel(result)).Observe(duration.Seconds())
}

func (m *OrderMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
