package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	checkoutcontrollers "github.com/angelmondragon/storefront-checkout/api/controllers/checkout"
	webhookcontrollers "github.com/angelmondragon/storefront-checkout/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/internal/address"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/discounts"
	"github.com/angelmondragon/storefront-checkout/internal/form"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/internal/steps"
	"github.com/angelmondragon/storefront-checkout/internal/variants"
	stripewebhook "github.com/angelmondragon/storefront-checkout/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
	"github.com/angelmondragon/storefront-checkout/pkg/stripe"
)

// redisStore is the slice of the redis client the HTTP layer needs.
type redisStore interface {
	redis.IdempotencyStore
	redis.RateLimiter
}

// Dependencies carries everything the router mounts. Nil services answer
// their routes with an INTERNAL_ERROR.
type Dependencies struct {
	Config *config.Config
	Logger *logger.Logger
	Redis  redisStore
	Ready  map[string]controllers.Pinger

	Variants  variants.Service
	Cart      cart.Service
	Steps     steps.Service
	Form      form.Service
	Address   address.Service
	Discounts discounts.Service
	Payments  payments.Service

	Stripe        *stripe.Client
	WebhookEvents *stripewebhook.Service
	WebhookGuard  *stripewebhook.IdempotencyGuard
	Relay         *stripewebhook.Relay

	Metrics http.Handler
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(webhookService(deps.WebhookEvents), deps.Stripe, webhookGuard(deps.WebhookGuard), logg))
	})

	if !cfg.App.IsProd() {
		r.Route("/api/v1/dev", func(r chi.Router) {
			r.Post("/payment-relay", webhookcontrollers.PaymentRelay(relayService(deps.Relay), logg))
		})
	}

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Use(middleware.CheckoutSession(logg))
		r.Use(middleware.Customer(cfg.Customer, logg))
		if deps.Redis != nil {
			r.Use(middleware.RateLimit(deps.Redis, cfg.Checkout.RateLimitRequests, cfg.Checkout.RateLimitWindow, logg))
			r.Use(middleware.Idempotency(deps.Redis, cfg.Checkout.IdempotencyTTL, logg))
		}

		r.Get("/variant", checkoutcontrollers.VariantFetch(deps.Variants, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", checkoutcontrollers.CartFetch(deps.Cart, logg))
			r.Delete("/", checkoutcontrollers.CartClear(deps.Cart, logg))
			r.Get("/totals", checkoutcontrollers.CartTotals(deps.Cart, logg))
			r.Post("/lines", checkoutcontrollers.CartAddLine(deps.Cart, logg))
			r.Patch("/lines", checkoutcontrollers.CartUpdateLine(deps.Cart, logg))
			r.Delete("/lines", checkoutcontrollers.CartRemoveLine(deps.Cart, logg))
			r.Put("/bundle", checkoutcontrollers.CartSetBundle(deps.Cart, logg))
		})

		r.Route("/steps", func(r chi.Router) {
			r.Get("/", checkoutcontrollers.StepsFetch(deps.Steps, logg))
			r.Post("/goto", checkoutcontrollers.StepsGoTo(deps.Steps, logg))
			r.Post("/navigate", checkoutcontrollers.StepsNavigate(deps.Steps, logg))
		})

		r.Route("/form", func(r chi.Router) {
			r.Get("/", checkoutcontrollers.FormFetch(deps.Form, logg))
			r.Put("/", checkoutcontrollers.FormSave(deps.Form, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", checkoutcontrollers.AddressList(deps.Address, logg))
			r.Post("/lookup", checkoutcontrollers.AddressLookup(deps.Address, logg))
			r.Delete("/{addressId}", checkoutcontrollers.AddressDelete(deps.Address, logg))
		})

		r.Route("/coupon", func(r chi.Router) {
			r.Post("/", checkoutcontrollers.CouponApply(deps.Discounts, logg))
			r.Delete("/", checkoutcontrollers.CouponRemove(deps.Discounts, logg))
		})

		r.Post("/payment-intent", checkoutcontrollers.PaymentIntentSync(deps.Payments, logg))
		r.Get("/payment-intent", checkoutcontrollers.PaymentIntentStatus(deps.Payments, logg))
		r.Post("/complete", checkoutcontrollers.Complete(deps.Payments, logg))
	})

	return r
}

// The helpers below keep typed nil pointers from reaching handlers as
// non-nil interfaces.

func webhookService(svc *stripewebhook.Service) webhookcontrollers.StripeWebhookService {
	if svc == nil {
		return nil
	}
	return svc
}

func webhookGuard(guard *stripewebhook.IdempotencyGuard) webhookcontrollers.StripeWebhookGuard {
	if guard == nil {
		return nil
	}
	return guard
}

func relayService(relay *stripewebhook.Relay) webhookcontrollers.PaymentRelayService {
	if relay == nil {
		return nil
	}
	return relay
}
