package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CartLine is one product (optionally a specific variant) in the checkout cart.
type CartLine struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Variant  string          `json:"variant,omitempty"`
	Image    string          `json:"image,omitempty"`
}

// Key is the uniqueness key of a line: product id plus variant.
func (l CartLine) Key() string {
	return LineKey(l.ID, l.Variant)
}

// LineTotal is price times quantity, unrounded.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func LineKey(id, variant string) string {
	return strings.TrimSpace(id) + "|" + strings.TrimSpace(variant)
}
