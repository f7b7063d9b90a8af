// Package pricing derives checkout totals. Everything here is pure: the same input
// always yields the same Totals, so callers recompute on every read.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

var (
	hundred = decimal.NewFromInt(100)

	DefaultVolumeThreshold = decimal.NewFromInt(75)
	DefaultVolumePercent   = decimal.NewFromInt(10)
)

// Input is everything the calculator needs. Thresholds come from the flow variant.
type Input struct {
	Subtotal              decimal.Decimal
	Discount              *types.AppliedDiscount
	VolumeDiscountEnabled bool
	VolumeThreshold       decimal.Decimal
	VolumePercent         decimal.Decimal
	BundleDiscount        decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	BaseShippingCost      decimal.Decimal
}

// Calculate composes shipping and discounts additively and floors the result at zero.
func Calculate(in Input) types.Totals {
	subtotal := nonNegative(in.Subtotal)

	shipping := nonNegative(in.BaseShippingCost)
	if subtotal.GreaterThanOrEqual(in.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	coupon := CouponAmount(in.Discount, subtotal)
	if ceiling := subtotal.Add(shipping); coupon.GreaterThan(ceiling) {
		coupon = ceiling
	}

	volume := VolumeAmount(subtotal, in.VolumeDiscountEnabled, in.VolumeThreshold, in.VolumePercent)
	bundle := nonNegative(in.BundleDiscount)

	final := subtotal.Add(shipping).Sub(coupon).Sub(volume).Sub(bundle)
	if final.IsNegative() {
		final = decimal.Zero
	}

	return types.Totals{
		Subtotal:       Round(subtotal),
		ShippingCost:   Round(shipping),
		DiscountAmount: Round(coupon),
		VolumeDiscount: Round(volume),
		BundleDiscount: Round(bundle),
		FinalTotal:     Round(final),
	}
}

// CouponAmount is the unclamped reduction of an applied coupon on subtotal.
func CouponAmount(discount *types.AppliedDiscount, subtotal decimal.Decimal) decimal.Decimal {
	if discount == nil {
		return decimal.Zero
	}
	amount := nonNegative(discount.Amount)
	if discount.Kind == enums.DiscountKindPercentage {
		return subtotal.Mul(amount).Div(hundred)
	}
	return amount
}

// VolumeAmount is percent of subtotal once subtotal reaches threshold, when enabled.
func VolumeAmount(subtotal decimal.Decimal, enabled bool, threshold, percent decimal.Decimal) decimal.Decimal {
	if !enabled {
		return decimal.Zero
	}
	if threshold.IsZero() {
		threshold = DefaultVolumeThreshold
	}
	if percent.IsZero() {
		percent = DefaultVolumePercent
	}
	if subtotal.LessThan(threshold) {
		return decimal.Zero
	}
	return subtotal.Mul(percent).Div(hundred)
}

// Subtotal sums price times quantity over the cart lines.
func Subtotal(lines []types.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		if line.Quantity < 1 {
			continue
		}
		total = total.Add(line.LineTotal())
	}
	return total
}

// Round rounds half away from zero to cents.
func Round(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// ToMinorUnits converts a currency amount to integer cents for the payment provider.
func ToMinorUnits(v decimal.Decimal) int64 {
	return Round(v).Mul(hundred).IntPart()
}

func nonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
