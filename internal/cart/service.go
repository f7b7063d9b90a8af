// Package cart manages the session cart and derives its totals.
package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/internal/variants"
	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
	"github.com/shopspring/decimal"
)

// productSource is the catalog lookup used to price new lines.
type productSource interface {
	ProductsByIDs(ctx context.Context, ids []string) ([]commerce.Product, error)
}

// AddLineInput identifies the product and quantity to add.
type AddLineInput struct {
	ProductID string `json:"productId" validate:"required"`
	Variant   string `json:"variant,omitempty"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=999"`
}

// UpdateLineInput sets a line quantity. Quantities below one remove the line.
type UpdateLineInput struct {
	ProductID string `json:"productId" validate:"required"`
	Variant   string `json:"variant,omitempty"`
	Quantity  int    `json:"quantity" validate:"max=999"`
}

// Summary is the cart plus everything derived from it.
type Summary struct {
	Lines                 []types.CartLine       `json:"lines"`
	Discount              *types.AppliedDiscount `json:"appliedDiscount,omitempty"`
	Bundle                *types.BundleDiscount  `json:"bundleDiscount,omitempty"`
	Variant               enums.FlowVariant      `json:"variant"`
	FreeShippingThreshold decimal.Decimal        `json:"freeShippingThreshold"`
	Totals                types.Totals           `json:"totals"`
}

// Empty reports whether the cart has no lines.
func (s Summary) Empty() bool {
	return len(s.Lines) == 0
}

type Service interface {
	Get(ctx context.Context, sessionID string) (Summary, error)
	Add(ctx context.Context, sessionID string, input AddLineInput) (Summary, error)
	UpdateQuantity(ctx context.Context, sessionID string, input UpdateLineInput) (Summary, error)
	Remove(ctx context.Context, sessionID, productID, variant string) (Summary, error)
	Clear(ctx context.Context, sessionID string) error
	SetBundle(ctx context.Context, sessionID string, bundle *types.BundleDiscount) (Summary, error)
	Totals(ctx context.Context, sessionID string) (types.Totals, error)
}

type service struct {
	store    *session.Store
	variants variants.Service
	products productSource
	cfg      config.CheckoutConfig
}

func NewService(store *session.Store, variantSvc variants.Service, products productSource, cfg config.CheckoutConfig) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("session store required")
	}
	if variantSvc == nil {
		return nil, fmt.Errorf("variants service required")
	}
	if products == nil {
		return nil, fmt.Errorf("product source required")
	}
	return &service{store: store, variants: variantSvc, products: products, cfg: cfg}, nil
}

func (s *service) Get(ctx context.Context, sessionID string) (Summary, error) {
	lines, err := s.store.Cart(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	return s.summarize(ctx, sessionID, lines)
}

func (s *service) Totals(ctx context.Context, sessionID string) (types.Totals, error) {
	summary, err := s.Get(ctx, sessionID)
	if err != nil {
		return types.Totals{}, err
	}
	return summary.Totals, nil
}

func (s *service) Add(ctx context.Context, sessionID string, input AddLineInput) (Summary, error) {
	productID := strings.TrimSpace(input.ProductID)
	if productID == "" {
		return Summary{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity < 1 {
		return Summary{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	lines, err := s.store.Cart(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}

	key := types.LineKey(productID, input.Variant)
	for i := range lines {
		if lines[i].Key() == key {
			lines[i].Quantity += input.Quantity
			return s.save(ctx, sessionID, lines)
		}
	}

	product, err := s.product(ctx, productID)
	if err != nil {
		return Summary{}, err
	}
	lines = append(lines, types.CartLine{
		ID:       productID,
		Title:    product.Name,
		Price:    product.Price,
		Quantity: input.Quantity,
		Variant:  strings.TrimSpace(input.Variant),
		Image:    product.Image(),
	})
	return s.save(ctx, sessionID, lines)
}

func (s *service) product(ctx context.Context, productID string) (commerce.Product, error) {
	products, err := s.products.ProductsByIDs(ctx, []string{productID})
	if err != nil {
		return commerce.Product{}, err
	}
	for _, p := range products {
		if p.ID.String() == productID {
			if p.Price.IsNegative() {
				return commerce.Product{}, pkgerrors.New(pkgerrors.CodeUpstreamRejected, "product has an invalid price")
			}
			return p, nil
		}
	}
	return commerce.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (s *service) UpdateQuantity(ctx context.Context, sessionID string, input UpdateLineInput) (Summary, error) {
	lines, err := s.store.Cart(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	key := types.LineKey(input.ProductID, input.Variant)
	idx := -1
	for i := range lines {
		if lines[i].Key() == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Summary{}, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	if input.Quantity < 1 {
		lines = append(lines[:idx], lines[idx+1:]...)
	} else {
		lines[idx].Quantity = input.Quantity
	}
	return s.save(ctx, sessionID, lines)
}

func (s *service) Remove(ctx context.Context, sessionID, productID, variant string) (Summary, error) {
	lines, err := s.store.Cart(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	key := types.LineKey(productID, variant)
	kept := lines[:0]
	for _, line := range lines {
		if line.Key() != key {
			kept = append(kept, line)
		}
	}
	return s.save(ctx, sessionID, kept)
}

func (s *service) Clear(ctx context.Context, sessionID string) error {
	return s.store.ClearCheckout(ctx, sessionID)
}

// SetBundle stores or, when bundle is nil, removes the bundle discount.
func (s *service) SetBundle(ctx context.Context, sessionID string, bundle *types.BundleDiscount) (Summary, error) {
	if bundle == nil {
		if err := s.store.ClearBundle(ctx, sessionID); err != nil {
			return Summary{}, err
		}
		return s.Get(ctx, sessionID)
	}
	if bundle.Amount.IsNegative() {
		return Summary{}, pkgerrors.New(pkgerrors.CodeValidation, "bundle discount must not be negative")
	}
	if err := s.store.SaveBundle(ctx, sessionID, *bundle); err != nil {
		return Summary{}, err
	}
	return s.Get(ctx, sessionID)
}

// save persists lines. An empty cart also drops form data, discount and steps.
func (s *service) save(ctx context.Context, sessionID string, lines []types.CartLine) (Summary, error) {
	if len(lines) == 0 {
		if err := s.store.ClearCheckout(ctx, sessionID); err != nil {
			return Summary{}, err
		}
		return s.summarize(ctx, sessionID, nil)
	}
	if err := s.store.SaveCart(ctx, sessionID, lines); err != nil {
		return Summary{}, err
	}
	return s.summarize(ctx, sessionID, lines)
}

func (s *service) summarize(ctx context.Context, sessionID string, lines []types.CartLine) (Summary, error) {
	flow, err := s.variants.Assign(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	discount, err := s.store.Discount(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	bundle, err := s.store.Bundle(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Lines:                 lines,
		Discount:              discount,
		Bundle:                bundle,
		Variant:               flow.Variant,
		FreeShippingThreshold: flow.FreeShippingThreshold,
	}
	if summary.Lines == nil {
		summary.Lines = []types.CartLine{}
	}
	if len(lines) == 0 {
		summary.Totals = zeroTotals()
		return summary, nil
	}

	in := pricing.Input{
		Subtotal:              pricing.Subtotal(lines),
		Discount:              discount,
		VolumeDiscountEnabled: s.cfg.VolumeDiscountEnabled,
		VolumeThreshold:       s.cfg.VolumeDiscountMinimum,
		VolumePercent:         s.cfg.VolumeDiscountPercent,
		FreeShippingThreshold: flow.FreeShippingThreshold,
		BaseShippingCost:      s.cfg.BaseShippingCost,
	}
	if bundle != nil {
		in.BundleDiscount = bundle.Amount
	}
	summary.Totals = pricing.Calculate(in)
	return summary, nil
}

func zeroTotals() types.Totals {
	return types.Totals{
		Subtotal:       decimal.Zero,
		ShippingCost:   decimal.Zero,
		DiscountAmount: decimal.Zero,
		VolumeDiscount: decimal.Zero,
		BundleDiscount: decimal.Zero,
		FinalTotal:     decimal.Zero,
	}
}
