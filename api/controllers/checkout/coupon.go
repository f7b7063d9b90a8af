package checkout

import (
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	discountsvc "github.com/angelmondragon/storefront-checkout/internal/discounts"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const maxCouponLength = 64

type couponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// CouponApply validates the code upstream against the current subtotal and stores it.
func CouponApply(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "discount service")
			return
		}
		sessionID, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		var payload couponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		applied, err := svc.Apply(r.Context(), sessionID, validators.SanitizeString(payload.Code, maxCouponLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, applied)
	}
}

func CouponRemove(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "discount service")
			return
		}
		sessionID, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		if err := svc.Remove(r.Context(), sessionID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
