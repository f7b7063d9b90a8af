package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	stripeclient "github.com/angelmondragon/storefront-checkout/pkg/stripe"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
)

// inProgress statuses are treated as paid when relayed, matching what the
// provider eventually reports for a confirmed test payment.
var inProgress = map[stripe.PaymentIntentStatus]bool{
	stripe.PaymentIntentStatusProcessing:           true,
	stripe.PaymentIntentStatusRequiresConfirmation: true,
	stripe.PaymentIntentStatusRequiresAction:       true,
	stripe.PaymentIntentStatusRequiresCapture:      true,
}

type eventHandler interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

// RelayResult describes the synthetic event a relay emitted.
type RelayResult struct {
	PaymentIntentID string                     `json:"paymentIntentId"`
	ProviderStatus  stripe.PaymentIntentStatus `json:"providerStatus"`
	RelayedStatus   stripe.PaymentIntentStatus `json:"relayedStatus"`
	EventID         string                     `json:"eventId"`
	EventType       stripe.EventType           `json:"eventType"`
}

type RelayParams struct {
	Intents    stripeclient.IntentAPI
	Handler    eventHandler
	Production bool
	Logger     *logger.Logger
}

// Relay replays a payment intent's outcome through the webhook handler. It
// exists for local environments where the provider cannot reach the service.
type Relay struct {
	intents    stripeclient.IntentAPI
	handler    eventHandler
	production bool
	logg       *logger.Logger
}

func NewRelay(params RelayParams) (*Relay, error) {
	if params.Handler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event handler required")
	}
	return &Relay{
		intents:    params.Intents,
		handler:    params.Handler,
		production: params.Production,
		logg:       params.Logger,
	}, nil
}

func (r *Relay) Relay(ctx context.Context, paymentIntentID string) (RelayResult, error) {
	if r.production {
		return RelayResult{}, pkgerrors.New(pkgerrors.CodeForbidden, "payment relay is disabled in production")
	}
	if r.intents == nil {
		return RelayResult{}, pkgerrors.New(pkgerrors.CodeSetup, "payments are not configured on this deployment")
	}
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return RelayResult{}, pkgerrors.New(pkgerrors.CodeValidation, "paymentIntentId is required")
	}

	pi, err := r.intents.Retrieve(ctx, paymentIntentID, &stripe.PaymentIntentRetrieveParams{})
	if err != nil {
		return RelayResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment intent").
			WithDetails(map[string]any{"provider_message": stripeclient.ErrorMessage(err)})
	}

	result := RelayResult{PaymentIntentID: pi.ID, ProviderStatus: pi.Status, RelayedStatus: pi.Status}
	switch {
	case pi.Status == stripe.PaymentIntentStatusSucceeded || inProgress[pi.Status]:
		result.RelayedStatus = stripe.PaymentIntentStatusSucceeded
		result.EventType = stripe.EventTypePaymentIntentSucceeded
	case pi.Status == stripe.PaymentIntentStatusCanceled || pi.LastPaymentError != nil:
		result.EventType = stripe.EventTypePaymentIntentPaymentFailed
	default:
		return RelayResult{}, pkgerrors.New(pkgerrors.CodeStateConflict, "payment intent has no outcome to relay").
			WithDetails(map[string]any{"status": string(pi.Status)})
	}
	pi.Status = result.RelayedStatus

	raw, err := json.Marshal(pi)
	if err != nil {
		return RelayResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode relay event")
	}
	result.EventID = "evt_relay_" + uuid.NewString()
	event := &stripe.Event{
		ID:   result.EventID,
		Type: result.EventType,
		Data: &stripe.EventData{Raw: raw},
	}
	if err := r.handler.HandleEvent(ctx, event); err != nil {
		return RelayResult{}, err
	}

	if r.logg != nil {
		ctx = r.logg.WithField(ctx, "payment_intent_id", pi.ID)
		r.logg.Info(r.logg.WithField(ctx, "provider_status", string(result.ProviderStatus)), "stripe.relay.emitted")
	}
	return result, nil
}
