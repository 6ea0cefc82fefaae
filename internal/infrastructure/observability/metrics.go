package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Checkout metrics
	IntentsCreated     *prometheus.CounterVec
	IntentFailures     *prometheus.CounterVec
	IntentPersistFails prometheus.Counter
	FeesCollected      *prometheus.CounterVec
	ProviderDuration   *prometheus.HistogramVec

	// Webhook and escrow metrics
	WebhookEvents       *prometheus.CounterVec
	WebhookDuration     *prometheus.HistogramVec
	SignatureFailures   prometheus.Counter
	EscrowTransitions   *prometheus.CounterVec
	SaleConflicts       prometheus.Counter
	DuplicateDeliveries *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState    *prometheus.GaugeVec
	CircuitBreakerRequests *prometheus.CounterVec

	// Outbox relay metrics
	OutboxPublished *prometheus.CounterVec
	OutboxBacklog   prometheus.Gauge
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		IntentsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_intents_created_total",
				Help:      "Payment intents created, by price source (listing or offer)",
			},
			[]string{"source"},
		),
		IntentFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_intent_failures_total",
				Help:      "Rejected or failed intent creations by reason",
			},
			[]string{"reason"},
		),
		IntentPersistFails: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_intent_persist_failures_total",
				Help:      "Intent records that could not be stored after the provider accepted the intent",
			},
		),
		FeesCollected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fees_quoted_cents_total",
				Help:      "Fees quoted at intent creation in minor units, by component",
			},
			[]string{"component"},
		),
		ProviderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Payment provider call duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"operation", "result"},
		),
		WebhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Webhook events by type and result",
			},
			[]string{"type", "result"},
		),
		WebhookDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "webhook_processing_duration_seconds",
				Help:      "Webhook processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		SignatureFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_signature_failures_total",
				Help:      "Webhook deliveries rejected for a missing or invalid signature",
			},
		),
		EscrowTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "escrow_transitions_total",
				Help:      "Transaction status transitions",
			},
			[]string{"from", "to"},
		),
		SaleConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "escrow_sale_conflicts_total",
				Help:      "Succeeded payments for listings that were no longer available",
			},
		),
		DuplicateDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_duplicate_deliveries_total",
				Help:      "Replayed webhook deliveries that were no-ops",
			},
			[]string{"type"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		CircuitBreakerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_requests_total",
				Help:      "Total number of circuit breaker requests",
			},
			[]string{"name", "result"},
		),
		OutboxPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_entries_total",
				Help:      "Outbox entries handled by the relay",
			},
			[]string{"event_type", "status"},
		),
		OutboxBacklog: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "outbox_batch_size",
				Help:      "Pending entries fetched in the last relay poll",
			},
		),
	}

	reg.MustRegister(
		m.IntentsCreated,
		m.IntentFailures,
		m.IntentPersistFails,
		m.FeesCollected,
		m.ProviderDuration,
		m.WebhookEvents,
		m.WebhookDuration,
		m.SignatureFailures,
		m.EscrowTransitions,
		m.SaleConflicts,
		m.DuplicateDeliveries,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CircuitBreakerState,
		m.CircuitBreakerRequests,
		m.OutboxPublished,
		m.OutboxBacklog,
	)

	return m
}

// NewNopMetrics registers against a throwaway registry. Used by tests and
// tools that do not expose /metrics.
func NewNopMetrics() *Metrics {
	return NewMetrics("test", prometheus.NewRegistry())
}
