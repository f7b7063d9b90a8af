package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout orchestration outcomes.
type CheckoutMetrics struct {
	intentOps       *prometheus.CounterVec
	addressLookups  *prometheus.CounterVec
	couponChecks    *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	commerceLatency *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	intentOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_payment_intent_operations_total",
		Help: "Payment intent create/update/consume operations by outcome.",
	}, []string{"operation", "outcome"})
	addressLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_address_lookups_total",
		Help: "Postcode lookups by result status.",
	}, []string{"status"})
	couponChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_coupon_validations_total",
		Help: "Coupon validations by outcome.",
	}, []string{"outcome"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_webhook_events_total",
		Help: "Payment provider events handled, by type and outcome.",
	}, []string{"type", "outcome"})
	commerceLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_commerce_request_duration_seconds",
		Help:    "Latency of commerce backend requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "outcome"})
	reg.MustRegister(intentOps, addressLookups, couponChecks, webhookEvents, commerceLatency)
	return &CheckoutMetrics{
		intentOps:       intentOps,
		addressLookups:  addressLookups,
		couponChecks:    couponChecks,
		webhookEvents:   webhookEvents,
		commerceLatency: commerceLatency,
	}
}

func (m *CheckoutMetrics) IncIntentOperation(operation, outcome string) {
	if m == nil || m.intentOps == nil {
		return
	}
	m.intentOps.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

func (m *CheckoutMetrics) IncAddressLookup(status string) {
	if m == nil || m.addressLookups == nil {
		return
	}
	m.addressLookups.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *CheckoutMetrics) IncCouponValidation(outcome string) {
	if m == nil || m.couponChecks == nil {
		return
	}
	m.couponChecks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *CheckoutMetrics) IncWebhookEvent(eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveCommerceRequest satisfies commerce.Observer.
func (m *CheckoutMetrics) ObserveCommerceRequest(endpoint, outcome string, elapsed time.Duration) {
	if m == nil || m.commerceLatency == nil {
		return
	}
	m.commerceLatency.WithLabelValues(normalizeLabel(endpoint), normalizeLabel(outcome)).Observe(elapsed.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
