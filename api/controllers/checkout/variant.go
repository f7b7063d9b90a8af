package checkout

import (
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	variantsvc "github.com/angelmondragon/storefront-checkout/internal/variants"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// VariantFetch returns the session's flow, assigning one on first call.
func VariantFetch(svc variantsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "variant service")
			return
		}
		sessionID, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		flow, err := svc.Assign(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, flow)
	}
}
