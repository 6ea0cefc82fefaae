package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Pinger is a dependency checked by readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// BreakerState reports the provider circuit breaker state.
type BreakerState interface {
	State() gobreaker.State
}

type HealthController struct {
	db      Pinger
	redis   Pinger
	breaker BreakerState
}

func NewHealthController(db, redis Pinger, breaker BreakerState) *HealthController {
	return &HealthController{db: db, redis: redis, breaker: breaker}
}

func (h *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthController) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness fails when the database or Redis is unreachable. An open provider
// circuit is reported but does not fail readiness since webhooks still work.
func (h *HealthController) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	if err := h.redis.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "redis unavailable",
		})
		return
	}

	resp := map[string]string{"status": "ready"}
	if h.breaker != nil {
		resp["provider_circuit"] = h.breaker.State().String()
	}
	writeJSON(w, http.StatusOK, resp)
}
