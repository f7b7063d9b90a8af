package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func baseInput(subtotal string) Input {
	return Input{
		Subtotal:              d(subtotal),
		FreeShippingThreshold: d("40"),
		BaseShippingCost:      d("4.95"),
	}
}

func assertAmount(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(d(want)) {
		t.Fatalf("%s: expected %s, got %s", label, want, got.StringFixed(2))
	}
}

func TestCalculateBelowThresholdChargesShipping(t *testing.T) {
	totals := Calculate(baseInput("35"))
	assertAmount(t, "shipping", totals.ShippingCost, "4.95")
	assertAmount(t, "final", totals.FinalTotal, "39.95")
}

func TestCalculatePercentageCouponAboveThreshold(t *testing.T) {
	in := baseInput("45")
	in.Discount = &types.AppliedDiscount{Code: "TEN", Amount: d("10"), Kind: enums.DiscountKindPercentage}

	totals := Calculate(in)
	assertAmount(t, "discount", totals.DiscountAmount, "4.50")
	assertAmount(t, "shipping", totals.ShippingCost, "0")
	assertAmount(t, "final", totals.FinalTotal, "40.50")
}

func TestCalculateVolumeDiscount(t *testing.T) {
	in := baseInput("80")
	in.VolumeDiscountEnabled = true
	in.VolumeThreshold = d("75")
	in.VolumePercent = d("10")

	totals := Calculate(in)
	assertAmount(t, "volume", totals.VolumeDiscount, "8")
	assertAmount(t, "shipping", totals.ShippingCost, "0")
	assertAmount(t, "final", totals.FinalTotal, "72")

	in.Discount = &types.AppliedDiscount{Code: "FIVE", Amount: d("5"), Kind: enums.DiscountKindFixed}
	totals = Calculate(in)
	assertAmount(t, "final with coupon", totals.FinalTotal, "67")
}

func TestCalculateVolumeDisabledOrBelowThreshold(t *testing.T) {
	in := baseInput("80")
	assertAmount(t, "disabled", Calculate(in).VolumeDiscount, "0")

	in = baseInput("74.99")
	in.VolumeDiscountEnabled = true
	assertAmount(t, "below default threshold", Calculate(in).VolumeDiscount, "0")
}

func TestShippingBoundaryIsFree(t *testing.T) {
	tests := []struct {
		subtotal string
		want     string
	}{
		{subtotal: "39.99", want: "4.95"},
		{subtotal: "40", want: "0"},
		{subtotal: "40.01", want: "0"},
	}
	for _, tt := range tests {
		assertAmount(t, "shipping at "+tt.subtotal, Calculate(baseInput(tt.subtotal)).ShippingCost, tt.want)
	}
}

func TestThresholdIsAParameter(t *testing.T) {
	in := baseInput("30")
	in.FreeShippingThreshold = d("29")
	assertAmount(t, "variant b shipping", Calculate(in).ShippingCost, "0")
}

func TestFinalTotalNeverNegative(t *testing.T) {
	cases := []Input{
		{Subtotal: d("10"), FreeShippingThreshold: d("40"), BaseShippingCost: d("4.95"),
			Discount: &types.AppliedDiscount{Amount: d("500"), Kind: enums.DiscountKindFixed}},
		{Subtotal: d("10"), FreeShippingThreshold: d("40"), BaseShippingCost: d("4.95"),
			Discount: &types.AppliedDiscount{Amount: d("150"), Kind: enums.DiscountKindPercentage}},
		{Subtotal: d("100"), FreeShippingThreshold: d("40"), BaseShippingCost: d("4.95"),
			VolumeDiscountEnabled: true, BundleDiscount: d("95"),
			Discount: &types.AppliedDiscount{Amount: d("20"), Kind: enums.DiscountKindFixed}},
		{Subtotal: d("0"), FreeShippingThreshold: d("40"), BaseShippingCost: d("4.95"), BundleDiscount: d("10")},
	}
	for i, in := range cases {
		totals := Calculate(in)
		if totals.FinalTotal.IsNegative() {
			t.Fatalf("case %d: final total negative %s", i, totals.FinalTotal)
		}
		if totals.DiscountAmount.GreaterThan(totals.Subtotal.Add(totals.ShippingCost)) {
			t.Fatalf("case %d: coupon %s exceeds subtotal+shipping", i, totals.DiscountAmount)
		}
	}
}

func TestCouponClampedToSubtotalPlusShipping(t *testing.T) {
	in := baseInput("10")
	in.Discount = &types.AppliedDiscount{Amount: d("50"), Kind: enums.DiscountKindFixed}
	totals := Calculate(in)
	assertAmount(t, "clamped discount", totals.DiscountAmount, "14.95")
	assertAmount(t, "final", totals.FinalTotal, "0")
}

func TestCalculateIsIdempotent(t *testing.T) {
	in := baseInput("45.55")
	in.Discount = &types.AppliedDiscount{Amount: d("15"), Kind: enums.DiscountKindPercentage}
	in.VolumeDiscountEnabled = true

	first := Calculate(in)
	second := Calculate(in)
	if !first.FinalTotal.Equal(second.FinalTotal) || !first.DiscountAmount.Equal(second.DiscountAmount) {
		t.Fatalf("expected identical totals, got %+v and %+v", first, second)
	}
	assertAmount(t, "rounded discount", first.DiscountAmount, "6.83")
}

func TestBundleDiscountSubtractsAdditively(t *testing.T) {
	in := baseInput("50")
	in.BundleDiscount = d("7.50")
	in.Discount = &types.AppliedDiscount{Amount: d("10"), Kind: enums.DiscountKindPercentage}

	totals := Calculate(in)
	assertAmount(t, "bundle", totals.BundleDiscount, "7.50")
	assertAmount(t, "final", totals.FinalTotal, "37.50")
}

func TestSubtotal(t *testing.T) {
	lines := []types.CartLine{
		{ID: "1", Price: d("12.50"), Quantity: 2},
		{ID: "2", Price: d("3.33"), Quantity: 3},
		{ID: "3", Price: d("99"), Quantity: 0},
	}
	assertAmount(t, "subtotal", Subtotal(lines), "34.99")
	assertAmount(t, "empty", Subtotal(nil), "0")
}

func TestToMinorUnits(t *testing.T) {
	tests := map[string]int64{
		"39.95": 3995,
		"0":     0,
		"40.5":  4050,
		"6.825": 683,
	}
	for in, want := range tests {
		if got := ToMinorUnits(d(in)); got != want {
			t.Fatalf("ToMinorUnits(%s) = %d, want %d", in, got, want)
		}
	}
}
