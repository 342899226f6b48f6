package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric this service exports.
const Namespace = "storefront"

// Payout outcomes.
const (
	PayoutOutcomePaid     = "paid"
	PayoutOutcomeRejected = "rejected"
	PayoutOutcomeConflict = "conflict"
)

// Outbox publish outcomes.
const (
	OutboxOutcomePublished = "published"
	OutboxOutcomeRetry     = "retry"
	OutboxOutcomeDLQ       = "dlq"
)

// SettlementMetrics counts checkout, payout and relay outcomes.
type SettlementMetrics struct {
	ordersCreated      *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	payouts            *prometheus.CounterVec
	outbox             *prometheus.CounterVec
	gatewayLatency     *prometheus.HistogramVec
}

// NewSettlementMetrics registers the settlement metrics on reg. A nil
// registerer yields a no-op recorder.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	m := &SettlementMetrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "checkout",
			Name:      "orders_created_total",
			Help:      "Orders committed, by payment method.",
		}, []string{"payment_method"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "checkout",
			Name:      "validation_failures_total",
			Help:      "Checkout requests rejected, by reason.",
		}, []string{"reason"}),
		payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "payouts",
			Name:      "transitions_total",
			Help:      "Payout transition attempts, by outcome.",
		}, []string{"outcome"}),
		outbox: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox relay results, by outcome.",
		}, []string{"outcome"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "gateway",
			Name:      "verify_duration_seconds",
			Help:      "Payment gateway verification latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
	}
	reg.MustRegister(m.ordersCreated, m.validationFailures, m.payouts, m.outbox, m.gatewayLatency)
	return m
}

func (m *SettlementMetrics) IncOrderCreated(paymentMethod string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
}

func (m *SettlementMetrics) IncValidationFailure(reason string) {
	if m == nil || m.validationFailures == nil {
		return
	}
	m.validationFailures.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *SettlementMetrics) IncPayout(outcome string) {
	if m == nil || m.payouts == nil {
		return
	}
	m.payouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *SettlementMetrics) IncOutbox(outcome string) {
	if m == nil || m.outbox == nil {
		return
	}
	m.outbox.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *SettlementMetrics) ObserveGatewayVerify(result string, d time.Duration) {
	if m == nil || m.gatewayLatency == nil {
		return
	}
	m.gatewayLatency.WithLabelValues(normalizeLabel(result)).Observe(d.Seconds())
}
