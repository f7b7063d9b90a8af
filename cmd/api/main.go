package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	"github.com/angelmondragon/storefront-checkout/api/routes"
	"github.com/angelmondragon/storefront-checkout/internal/address"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/discounts"
	"github.com/angelmondragon/storefront-checkout/internal/form"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/internal/steps"
	"github.com/angelmondragon/storefront-checkout/internal/variants"
	stripewebhook "github.com/angelmondragon/storefront-checkout/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
	stripeclient "github.com/angelmondragon/storefront-checkout/pkg/stripe"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "checkout-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "checkout-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	commerceClient, err := commerce.NewClient(
		cfg.Commerce.BaseURL,
		commerce.WithCredentials(cfg.Commerce.ConsumerKey, cfg.Commerce.ConsumerSecret),
		commerce.WithTimeout(cfg.Commerce.Timeout),
		commerce.WithObserver(checkoutMetrics),
	)
	if err != nil {
		logg.Error(ctx, "failed to create commerce client", err)
		os.Exit(1)
	}

	stripeClient, err := stripeclient.NewClient(ctx, cfg.Stripe, logg)
	switch {
	case errors.Is(err, stripeclient.ErrAPIKeyRequired):
		logg.Warn(ctx, "stripe api key missing, payment intents will report a setup error")
		stripeClient = nil
	case err != nil:
		logg.Error(ctx, "failed to create stripe client", err)
		os.Exit(1)
	}

	sessions := session.NewStore(redisClient, cfg.Checkout.SessionTTL)

	variantSvc, err := variants.NewService(sessions, cfg.Variants)
	exitOnErr(ctx, logg, "variants service", err)

	cartSvc, err := cart.NewService(sessions, variantSvc, commerceClient, cfg.Checkout)
	exitOnErr(ctx, logg, "cart service", err)

	stepsSvc, err := steps.NewService(sessions, variantSvc)
	exitOnErr(ctx, logg, "steps service", err)

	formSvc, err := form.NewService(sessions, commerceClient, logg)
	exitOnErr(ctx, logg, "form service", err)

	addressSvc, err := address.NewService(address.ServiceParams{
		Backend:       commerceClient,
		Sessions:      sessions,
		Cache:         redisClient,
		Config:        cfg.Address,
		DeleteTimeout: cfg.Checkout.AddressDeleteTimeout,
		Metrics:       checkoutMetrics,
		Logger:        logg,
	})
	exitOnErr(ctx, logg, "address service", err)

	discountSvc, err := discounts.NewService(commerceClient, sessions, checkoutMetrics)
	exitOnErr(ctx, logg, "discounts service", err)

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(dbClient.DB()),
		Commerce: commerceClient,
		Sessions: sessions,
		DB:       dbClient,
		Outbox:   outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Logger:   logg,
	})
	exitOnErr(ctx, logg, "orders service", err)

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Intents:  stripeClient.Intents(),
		Cart:     cartSvc,
		Sessions: sessions,
		Locks:    redisClient,
		Recorder: ordersSvc,
		Currency: cfg.Checkout.Currency,
		LockTTL:  cfg.Checkout.IntentLockTTL,
		Metrics:  checkoutMetrics,
		Logger:   logg,
	})
	exitOnErr(ctx, logg, "payments service", err)

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Orders:  ordersSvc,
		Metrics: checkoutMetrics,
		Logger:  logg,
	})
	exitOnErr(ctx, logg, "stripe webhook service", err)

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Checkout.WebhookDedupeTTL, "stripe-webhook")
	exitOnErr(ctx, logg, "stripe webhook guard", err)

	var relay *stripewebhook.Relay
	if !cfg.App.IsProd() {
		relay, err = stripewebhook.NewRelay(stripewebhook.RelayParams{
			Intents:    stripeClient.Intents(),
			Handler:    webhookSvc,
			Production: cfg.App.IsProd(),
			Logger:     logg,
		})
		exitOnErr(ctx, logg, "payment relay", err)
	}

	ready := map[string]controllers.Pinger{
		"db":    dbClient,
		"redis": redisClient,
	}

	handler := routes.NewRouter(routes.Dependencies{
		Config:        cfg,
		Logger:        logg,
		Redis:         redisClient,
		Ready:         ready,
		Variants:      variantSvc,
		Cart:          cartSvc,
		Steps:         stepsSvc,
		Form:          formSvc,
		Address:       addressSvc,
		Discounts:     discountSvc,
		Payments:      paymentsSvc,
		Stripe:        stripeClient,
		WebhookEvents: webhookSvc,
		WebhookGuard:  webhookGuard,
		Relay:         relay,
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
		"db_dialect": dbClient.Dialect(),
		"dev_relay":  relay != nil,
	})
	logg.Info(logCtx, "starting checkout api")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutting down checkout api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "graceful shutdown failed", err)
		}
	}
}

func exitOnErr(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "failed to create "+name, err)
	os.Exit(1)
}
