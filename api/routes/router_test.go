package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/redis/redistest"
)

const testSession = "0b8f3a9c-2d44-4c1e-9f51-6f7a2d9e4b10"

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubPayments struct {
	syncs int
}

func (s *stubPayments) Sync(context.Context, string, string) (payments.SyncResult, error) {
	s.syncs++
	return payments.SyncResult{PaymentIntentID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}

func (s *stubPayments) Status(context.Context, string) (payments.Status, error) {
	return payments.Status{}, nil
}

func (s *stubPayments) Consume(context.Context, string) (payments.Status, error) {
	return payments.Status{}, nil
}

func testConfig(env string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: env},
		Checkout: config.CheckoutConfig{
			IdempotencyTTL:    time.Hour,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		},
	}
}

func send(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	h := NewRouter(Dependencies{
		Config: testConfig(config.AppEnvDev),
		Ready:  map[string]controllers.Pinger{"redis": stubPinger{}, "db": nil},
	})

	rec := send(h, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, config.AppEnvDev, rec.Header().Get("X-Checkout-Env"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = send(h, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "skipped")

	rec = send(h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckoutRoutesRequireSession(t *testing.T) {
	h := NewRouter(Dependencies{Config: testConfig(config.AppEnvDev), Redis: redistest.New()})

	rec := send(h, http.MethodGet, "/api/v1/checkout/cart", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(h, http.MethodGet, "/api/v1/checkout/cart", "", map[string]string{middleware.SessionHeader: testSession})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPaymentIntentReplaysIdempotentRequests(t *testing.T) {
	svc := &stubPayments{}
	h := NewRouter(Dependencies{Config: testConfig(config.AppEnvDev), Redis: redistest.New(), Payments: svc})

	rec := send(h, http.MethodPost, "/api/v1/checkout/payment-intent", "", map[string]string{middleware.SessionHeader: testSession})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, svc.syncs)

	headers := map[string]string{middleware.SessionHeader: testSession, "Idempotency-Key": "sync-1"}
	first := send(h, http.MethodPost, "/api/v1/checkout/payment-intent", "", headers)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	second := send(h, http.MethodPost, "/api/v1/checkout/payment-intent", "", headers)
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, 1, svc.syncs)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestCheckoutRateLimit(t *testing.T) {
	cfg := testConfig(config.AppEnvDev)
	cfg.Checkout.RateLimitRequests = 2
	h := NewRouter(Dependencies{Config: cfg, Redis: redistest.New(), Payments: &stubPayments{}})

	headers := map[string]string{middleware.SessionHeader: testSession}
	for i := 0; i < 2; i++ {
		rec := send(h, http.MethodGet, "/api/v1/checkout/payment-intent", "", headers)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := send(h, http.MethodGet, "/api/v1/checkout/payment-intent", "", headers)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestPaymentRelayOnlyOutsideProduction(t *testing.T) {
	prod := NewRouter(Dependencies{Config: testConfig(config.AppEnvProd)})
	rec := send(prod, http.MethodPost, "/api/v1/dev/payment-relay", `{"paymentIntentId":"pi_1"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	dev := NewRouter(Dependencies{Config: testConfig(config.AppEnvDev)})
	rec = send(dev, http.MethodPost, "/api/v1/dev/payment-relay", `{"paymentIntentId":"pi_1"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStripeWebhookWithoutWiringFails(t *testing.T) {
	h := NewRouter(Dependencies{Config: testConfig(config.AppEnvDev)})
	rec := send(h, http.MethodPost, "/api/v1/webhooks/stripe", `{}`, map[string]string{"Stripe-Signature": "t=1,v1=abc"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
