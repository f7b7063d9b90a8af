package checkout

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	stepssvc "github.com/angelmondragon/storefront-checkout/internal/steps"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type stepRequest struct {
	Step int `json:"step" validate:"min=1"`
}

func StepsFetch(svc stepssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "steps service")
			return
		}
		sessionID, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		view, err := svc.Get(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// StepsGoTo moves to any step in range, as programmatic flows do after a successful save.
func StepsGoTo(svc stepssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return stepTransition(svc, logg, func(s stepssvc.Service) func(context.Context, string, int) (stepssvc.View, error) {
		return s.GoTo
	})
}

// StepsNavigate only moves to steps the customer already reached.
func StepsNavigate(svc stepssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return stepTransition(svc, logg, func(s stepssvc.Service) func(context.Context, string, int) (stepssvc.View, error) {
		return s.Navigate
	})
}

func stepTransition(svc stepssvc.Service, logg *logger.Logger, pick func(stepssvc.Service) func(context.Context, string, int) (stepssvc.View, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "steps service")
			return
		}
		sessionID, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		var payload stepRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := pick(svc)(r.Context(), sessionID, payload.Step)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
