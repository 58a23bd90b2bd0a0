package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gateway's prometheus collectors. A nil *Metrics is a
// valid no-op receiver so tests can run without a registry.
type Metrics struct {
	HTTPRequestTotal    *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	IdempotencyTotal *prometheus.CounterVec

	AggregateTransitionTotal *prometheus.CounterVec
}

// New creates the collectors and registers them on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Total number of dispatched requests",
		}, []string{"method", "category", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "category", "status"}),

		IdempotencyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_idempotency_checks_total",
			Help: "Idempotency guard outcomes for POST requests",
		}, []string{"outcome"}),

		AggregateTransitionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_aggregate_transitions_total",
			Help: "Aggregated authorisation status transitions",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.HTTPRequestTotal,
		m.HTTPRequestDuration,
		m.IdempotencyTotal,
		m.AggregateTransitionTotal,
	)
	return m
}

// ObserveRequest records one dispatched request.
func (m *Metrics) ObserveRequest(method, category, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestTotal.WithLabelValues(method, category, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, category, status).Observe(seconds)
}

// ObserveIdempotency records one idempotency guard outcome.
func (m *Metrics) ObserveIdempotency(outcome string) {
	if m == nil {
		return
	}
	m.IdempotencyTotal.WithLabelValues(outcome).Inc()
}

// ObserveAggregateTransition records one aggregated status transition.
func (m *Metrics) ObserveAggregateTransition(status string) {
	if m == nil {
		return
	}
	m.AggregateTransitionTotal.WithLabelValues(status).Inc()
}
