package checkout

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	addresssvc "github.com/angelmondragon/storefront-checkout/internal/address"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type lookupRequest struct {
	Postcode    string `json:"postcode" validate:"required,max=16"`
	HouseNumber string `json:"houseNumber" validate:"required,max=20"`
	Addition    string `json:"addition,omitempty" validate:"max=20"`
	Country     string `json:"country" validate:"required,len=2"`
	Target      string `json:"target,omitempty" validate:"omitempty,oneof=billing shipping"`
}

// AddressLookup runs postcode autofill. Lookup failures are reported in the
// result, with the status the storefront renders, rather than as HTTP errors.
func AddressLookup(svc addresssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "address service")
			return
		}
		sessionID, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		var payload lookupRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Autofill(r.Context(), sessionID, addresssvc.AutofillRequest{
			LookupRequest: addresssvc.LookupRequest{
				Postcode:    payload.Postcode,
				HouseNumber: payload.HouseNumber,
				Addition:    payload.Addition,
				Country:     payload.Country,
			},
			Target: payload.Target,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AddressList(svc addresssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "address service")
			return
		}
		sessionID, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		list, err := svc.List(r.Context(), middleware.CustomerIDFromContext(r.Context()), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"addresses": list})
	}
}

// AddressDelete hides a saved address at once; the upstream delete runs in the background.
func AddressDelete(svc addresssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "address service")
			return
		}
		sessionID, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		addressID := strings.TrimSpace(chi.URLParam(r, "addressId"))
		if addressID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "addressId is required"))
			return
		}
		if err := svc.Delete(r.Context(), middleware.CustomerIDFromContext(r.Context()), sessionID, addressID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{"deleted": addressID})
	}
}
