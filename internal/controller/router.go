package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/sfutchko/giddyapp-sub002/internal/infrastructure/config"
	"github.com/sfutchko/giddyapp-sub002/internal/infrastructure/observability"
	customMW "github.com/sfutchko/giddyapp-sub002/internal/middleware"
)

type RouterDeps struct {
	Checkout        *CheckoutController
	Webhooks        *WebhookController
	Health          *HealthController
	IdempotencyRepo customMW.IdempotencyStore
	IdempotencyTTL  time.Duration
	Metrics         *observability.Metrics
	MetricsHandler  http.Handler
	Logger          zerolog.Logger
	CORSConfig      config.CORSConfig
	Auth            customMW.AuthConfig
	RateLimit       int
	RateLimitWindow time.Duration
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(customMW.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Idempotency-Replayed"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	r.Get("/health", deps.Health.Health)
	r.Get("/health/live", deps.Health.Liveness)
	r.Get("/health/ready", deps.Health.Readiness)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// Authenticated by signature, not by user token.
	r.Post("/webhooks/payments", deps.Webhooks.Receive)

	r.Get("/payments/fees", deps.Checkout.Fees)

	r.Group(func(r chi.Router) {
		r.Use(customMW.RequireAuth(deps.Auth))

		r.With(
			customMW.RateLimit(deps.RateLimit, deps.RateLimitWindow),
			customMW.Idempotency(deps.IdempotencyRepo, deps.IdempotencyTTL, deps.Logger),
		).Post("/payments/create-intent", deps.Checkout.CreateIntent)

		r.Get("/transactions/{id}", deps.Checkout.GetTransaction)
	})

	return r
}
