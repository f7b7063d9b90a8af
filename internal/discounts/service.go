// Package discounts validates coupon codes against the commerce backend and
// keeps the session's applied discount in step with the outcome.
package discounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
	"github.com/shopspring/decimal"
)

// MessageInvalidCode is shown when the backend rejects a code without saying why.
const MessageInvalidCode = "Invalid discount code."

type validator interface {
	ValidateCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (commerce.CouponResult, error)
}

type Service interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (types.AppliedDiscount, error)
	Apply(ctx context.Context, sessionID, code string) (types.AppliedDiscount, error)
	Remove(ctx context.Context, sessionID string) error
}

type service struct {
	backend validator
	store   *session.Store
	metrics *metrics.CheckoutMetrics
}

func NewService(backend validator, store *session.Store, m *metrics.CheckoutMetrics) (Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store required")
	}
	return &service{backend: backend, store: store, metrics: m}, nil
}

// Validate asks the backend about code. Rejections carry the backend's own
// message when it gave one.
func (s *service) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (types.AppliedDiscount, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return types.AppliedDiscount{}, pkgerrors.New(pkgerrors.CodeValidation, "discount code is required")
	}

	result, err := s.backend.ValidateCoupon(ctx, code, pricing.Round(subtotal))
	if err != nil {
		switch {
		case pkgerrors.IsCode(err, pkgerrors.CodeUpstreamRejected), pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			s.metrics.IncCouponValidation("rejected")
			return types.AppliedDiscount{}, pkgerrors.Wrap(pkgerrors.CodeUpstreamRejected, err, rejectionMessage(err))
		default:
			s.metrics.IncCouponValidation("error")
			return types.AppliedDiscount{}, err
		}
	}

	kind, ok := kindFor(result.DiscountType)
	if !ok || result.DiscountAmount.IsNegative() {
		s.metrics.IncCouponValidation("rejected")
		return types.AppliedDiscount{}, pkgerrors.New(pkgerrors.CodeUpstreamRejected, MessageInvalidCode)
	}
	s.metrics.IncCouponValidation("accepted")
	return types.AppliedDiscount{Code: code, Amount: result.DiscountAmount, Kind: kind}, nil
}

func rejectionMessage(err error) string {
	if msg := commerce.BackendMessage(err); msg != "" {
		return msg
	}
	return MessageInvalidCode
}

func kindFor(raw string) (enums.DiscountKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "percent", "percentage":
		return enums.DiscountKindPercentage, true
	case "fixed", "fixed_cart":
		return enums.DiscountKindFixed, true
	default:
		return "", false
	}
}

// Apply validates code against the current cart subtotal. Any previously applied
// discount is cleared when validation fails.
func (s *service) Apply(ctx context.Context, sessionID, code string) (types.AppliedDiscount, error) {
	lines, err := s.store.Cart(ctx, sessionID)
	if err != nil {
		return types.AppliedDiscount{}, err
	}
	if len(lines) == 0 {
		return types.AppliedDiscount{}, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
	}

	discount, err := s.Validate(ctx, code, pricing.Subtotal(lines))
	if err != nil {
		if clearErr := s.store.ClearDiscount(ctx, sessionID); clearErr != nil {
			return types.AppliedDiscount{}, clearErr
		}
		return types.AppliedDiscount{}, err
	}
	if err := s.store.SaveDiscount(ctx, sessionID, discount); err != nil {
		return types.AppliedDiscount{}, err
	}
	return discount, nil
}

func (s *service) Remove(ctx context.Context, sessionID string) error {
	return s.store.ClearDiscount(ctx, sessionID)
}
