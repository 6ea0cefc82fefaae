package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sfutchko/giddyapp-sub002/internal/application/checkout"
	"github.com/sfutchko/giddyapp-sub002/internal/application/webhook"
	"github.com/sfutchko/giddyapp-sub002/internal/bootstrap"
	"github.com/sfutchko/giddyapp-sub002/internal/clock"
	"github.com/sfutchko/giddyapp-sub002/internal/controller"
	"github.com/sfutchko/giddyapp-sub002/internal/infrastructure/postgres"
	"github.com/sfutchko/giddyapp-sub002/internal/infrastructure/providers"
	infraRedis "github.com/sfutchko/giddyapp-sub002/internal/infrastructure/redis"
	customMW "github.com/sfutchko/giddyapp-sub002/internal/middleware"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "giddyapp-payments-api", "giddyapp_payments")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close(context.Background())

	cfg := app.Config
	fees, err := cfg.Payments.FeeSchedule()
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Invalid fee schedule")
	}
	if cfg.Auth.JWTSecret == "" {
		app.Logger.Warn().Msg("auth.jwt_secret is empty, authenticated routes will reject every token")
	}
	if cfg.Payments.WebhookSecret == "" {
		app.Logger.Warn().Msg("payments.webhook_secret is empty, every webhook delivery will be rejected")
	}

	// --- Repositories ---
	listingRepo := postgres.NewListingRepository(app.Pool)
	payoutRepo := postgres.NewPayoutAccountRepository(app.Pool)
	intentRepo := postgres.NewIntentRepository(app.Pool)
	transactionRepo := postgres.NewTransactionRepository(app.Pool)
	notificationRepo := postgres.NewNotificationRepository(app.Pool)
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	webhookEventRepo := postgres.NewWebhookEventRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Payment provider ---
	var provider providers.Provider
	switch cfg.Payments.Provider {
	case "stripe":
		provider = providers.NewStripeProvider(cfg.Payments.APIBaseURL, cfg.Payments.SecretKey, nil)
	default:
		provider = providers.NewMockProvider("mock")
	}
	gateway := providers.NewGateway(provider, providers.GatewayConfig{
		Timeout:          cfg.Payments.ProviderTimeout,
		FailureThreshold: uint32(cfg.Payments.CircuitBreakerThreshold),
		OpenTimeout:      cfg.Payments.CircuitBreakerTimeout,
	}, app.Metrics)

	// --- Application services ---
	clk := clock.NewSystem()
	createIntentUC := checkout.NewCreateIntentUseCase(
		listingRepo, payoutRepo, intentRepo, transactionRepo, gateway,
		fees, cfg.Payments.Currency, clk, app.Metrics, app.Logger,
	)
	getTransactionUC := checkout.NewGetTransactionUseCase(transactionRepo)
	processor := webhook.NewProcessor(
		webhook.Config{
			Secret:    cfg.Payments.WebhookSecret,
			Tolerance: cfg.Payments.WebhookTolerance,
			HoldDays:  cfg.Payments.EscrowHoldDays,
			Currency:  cfg.Payments.Currency,
		},
		webhook.Repositories{
			Intents:       intentRepo,
			Transactions:  transactionRepo,
			Listings:      listingRepo,
			Payouts:       payoutRepo,
			Notifications: notificationRepo,
			Outbox:        outboxRepo,
		},
		txManager,
		infraRedis.NewIntentLocker(app.Redis, cfg.Payments.LockTTL),
		webhookEventRepo,
		clk,
		app.Metrics,
		app.Logger,
	)

	// --- Build router ---
	var metricsHandler http.Handler
	if cfg.Observability.EnableMetrics {
		metricsHandler = promhttp.Handler()
	}
	router := controller.NewRouter(controller.RouterDeps{
		Checkout: controller.NewCheckoutController(createIntentUC, getTransactionUC, checkout.NewFeeQuoter(fees)),
		Webhooks: controller.NewWebhookController(processor),
		Health: controller.NewHealthController(
			app.Pool,
			controller.PingFunc(func(ctx context.Context) error { return app.Redis.Ping(ctx).Err() }),
			gateway,
		),
		IdempotencyRepo: idempotencyRepo,
		IdempotencyTTL:  cfg.Payments.IdempotencyTTL,
		Metrics:         app.Metrics,
		MetricsHandler:  metricsHandler,
		Logger:          app.Logger,
		CORSConfig:      cfg.Server.CORS,
		Auth:            customMW.AuthConfig{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.Issuer},
		RateLimit:       cfg.Server.RateLimit,
		RateLimitWindow: cfg.Server.RateLimitWindow,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Str("provider", gateway.Name()).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
