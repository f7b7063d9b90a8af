package types

import (
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/shopspring/decimal"
)

// AppliedDiscount is a coupon the commerce backend has accepted for this session.
type AppliedDiscount struct {
	Code   string             `json:"code"`
	Amount decimal.Decimal    `json:"amount"`
	Kind   enums.DiscountKind `json:"kind"`
}

// BundleDiscount is a flat promotional reduction supplied by the storefront.
type BundleDiscount struct {
	Amount    decimal.Decimal `json:"amount"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
}

// Expired reports whether the bundle discount is past its expiry at now.
func (b BundleDiscount) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !now.Before(*b.ExpiresAt)
}

// Totals is the derived price breakdown of a cart.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingCost   decimal.Decimal `json:"shippingCost"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	VolumeDiscount decimal.Decimal `json:"volumeDiscount"`
	BundleDiscount decimal.Decimal `json:"bundleDiscount"`
	FinalTotal     decimal.Decimal `json:"finalTotal"`
}
