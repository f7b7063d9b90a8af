// Package stripewebhook applies payment provider events to checkout submissions.
package stripewebhook

import (
	"context"
	"encoding/json"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/stripe/stripe-go/v84"
)

type paymentHandler interface {
	HandlePaymentSucceeded(ctx context.Context, intent *stripe.PaymentIntent) error
	HandlePaymentFailed(ctx context.Context, intent *stripe.PaymentIntent) error
}

type ServiceParams struct {
	Orders  paymentHandler
	Metrics *metrics.CheckoutMetrics
	Logger  *logger.Logger
}

type Service struct {
	orders  paymentHandler
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order handler required")
	}
	return &Service{orders: params.Orders, metrics: params.Metrics, logg: params.Logger}, nil
}

// HandleEvent dispatches payment intent outcomes. Other event types are acknowledged and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	var handle func(context.Context, *stripe.PaymentIntent) error
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		handle = s.orders.HandlePaymentSucceeded
	case stripe.EventTypePaymentIntentPaymentFailed:
		handle = s.orders.HandlePaymentFailed
	default:
		s.metrics.IncWebhookEvent(string(event.Type), "ignored")
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		s.metrics.IncWebhookEvent(string(event.Type), "error")
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}
	if intent.ID == "" {
		s.metrics.IncWebhookEvent(string(event.Type), "error")
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}

	if err := handle(ctx, &intent); err != nil {
		s.metrics.IncWebhookEvent(string(event.Type), "error")
		return err
	}
	s.metrics.IncWebhookEvent(string(event.Type), "processed")
	if s.logg != nil {
		ctx = s.logg.WithField(ctx, "payment_intent_id", intent.ID)
		s.logg.Info(s.logg.WithField(ctx, "event_type", string(event.Type)), "stripe.webhook.processed")
	}
	return nil
}
