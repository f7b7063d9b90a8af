package webhooks

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	stripewebhook "github.com/angelmondragon/storefront-checkout/internal/webhooks/stripe"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type PaymentRelayService interface {
	Relay(ctx context.Context, paymentIntentID string) (stripewebhook.RelayResult, error)
}

type relayRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required,max=255"`
}

type relayResponse struct {
	Success bool                       `json:"success"`
	Result  *stripewebhook.RelayResult `json:"result,omitempty"`
	Error   string                     `json:"error,omitempty"`
}

// PaymentRelay replays a payment outcome through the webhook pipeline for
// environments the provider cannot deliver webhooks to.
func PaymentRelay(svc PaymentRelayService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment relay unavailable"))
			return
		}

		var payload relayRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Relay(r.Context(), payload.PaymentIntentID)
		if err != nil {
			typed := pkgerrors.As(err)
			if typed == nil || !pkgerrors.MetadataFor(typed.Code()).PassMessage {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			status := pkgerrors.MetadataFor(typed.Code()).HTTPStatus
			responses.WriteSuccessStatus(w, status, relayResponse{Success: false, Error: typed.Message()})
			return
		}
		responses.WriteSuccess(w, relayResponse{Success: true, Result: &result})
	}
}
