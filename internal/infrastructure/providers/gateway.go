package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/sfutchko/giddyapp-sub002/internal/infrastructure/observability"
	"github.com/sony/gobreaker/v2"
)

// GatewayConfig tunes the breaker and deadline around the provider.
type GatewayConfig struct {
	Timeout          time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// Gateway wraps a Provider with a per-call deadline and a circuit breaker.
// Declines do not count against the breaker; outages and timeouts do.
type Gateway struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker[*Intent]
	timeout  time.Duration
	metrics  *observability.Metrics
}

func NewGateway(p Provider, cfg GatewayConfig, metrics *observability.Metrics) *Gateway {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	g := &Gateway{provider: p, timeout: cfg.Timeout, metrics: metrics}
	g.breaker = gobreaker.NewCircuitBreaker[*Intent](gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domainErrors.ErrProviderRejected)
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			if metrics != nil {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	if metrics != nil {
		metrics.CircuitBreakerState.WithLabelValues(p.Name()).Set(float64(gobreaker.StateClosed))
	}
	return g
}

func (g *Gateway) Name() string { return g.provider.Name() }

// CreatePaymentIntent calls the provider through the breaker.
func (g *Gateway) CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	in, err := g.breaker.Execute(func() (*Intent, error) {
		in, err := g.provider.CreatePaymentIntent(ctx, req)
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", domainErrors.ErrProviderTimeout, err)
		}
		return in, err
	})

	result := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		result = "open"
		err = fmt.Errorf("%w: circuit %s", domainErrors.ErrProviderUnavailable, err)
	case err != nil:
		result = "error"
	}
	if g.metrics != nil {
		g.metrics.ProviderDuration.WithLabelValues("create_intent", result).Observe(time.Since(start).Seconds())
		g.metrics.CircuitBreakerRequests.WithLabelValues(g.provider.Name(), result).Inc()
	}
	return in, err
}

// State exposes the breaker state for health reporting.
func (g *Gateway) State() gobreaker.State {
	return g.breaker.State()
}
