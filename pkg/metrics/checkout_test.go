package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCheckoutMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.IncIntentOperation("create", "ok")
	m.IncIntentOperation("create", "ok")
	m.IncAddressLookup("found")
	m.IncCouponValidation("")
	m.IncWebhookEvent("payment_intent.succeeded", "handled")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "checkout_payment_intent_operations_total", "operation", "create"); err != nil {
		t.Fatalf("fetch intents: %v", err)
	} else if got != 2 {
		t.Fatalf("expected 2 intent operations, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "checkout_address_lookups_total", "status", "found"); err != nil {
		t.Fatalf("fetch lookups: %v", err)
	} else if got != 1 {
		t.Fatalf("expected 1 lookup, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "checkout_coupon_validations_total", "outcome", "unknown"); err != nil {
		t.Fatalf("fetch coupons: %v", err)
	} else if got != 1 {
		t.Fatalf("expected empty outcome normalized to unknown, got %f", got)
	}
}

func TestCommerceLatencyHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)
	m.ObserveCommerceRequest("coupon_validate", "ok", 120*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchHistogramSum(mfs, "checkout_commerce_request_duration_seconds", "endpoint", "coupon_validate"); err != nil {
		t.Fatalf("fetch latency: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected latency sum > 0, got %f", got)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	m := NewCheckoutMetrics(nil)
	m.IncIntentOperation("create", "ok")
	m.ObserveCommerceRequest("x", "ok", time.Second)

	var nilMetrics *CheckoutMetrics
	nilMetrics.IncWebhookEvent("x", "y")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
