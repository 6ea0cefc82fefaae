package providers

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
)

// MockProvider fabricates intents locally. It is selected with
// payments.provider=mock and used in tests.
type MockProvider struct {
	name        string
	failureRate float64 // 0.0 to 1.0
	latency     time.Duration
	timeoutRate float64 // 0.0 to 1.0

	mu       sync.Mutex
	byKey    map[string]*Intent
	requests []CreateIntentRequest
}

type MockProviderOption func(*MockProvider)

func WithFailureRate(rate float64) MockProviderOption {
	return func(p *MockProvider) { p.failureRate = rate }
}

func WithLatency(d time.Duration) MockProviderOption {
	return func(p *MockProvider) { p.latency = d }
}

func WithTimeoutRate(rate float64) MockProviderOption {
	return func(p *MockProvider) { p.timeoutRate = rate }
}

func NewMockProvider(name string, opts ...MockProviderOption) *MockProvider {
	p := &MockProvider{
		name:  name,
		byKey: make(map[string]*Intent),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *MockProvider) Name() string { return p.name }

func (p *MockProvider) CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error) {
	if p.latency > 0 {
		select {
		case <-time.After(p.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)

	if req.IdempotencyKey != "" {
		if in, ok := p.byKey[req.IdempotencyKey]; ok {
			return in, nil
		}
	}

	if rand.Float64() < p.timeoutRate {
		return nil, domainErrors.ErrProviderTimeout
	}
	if rand.Float64() < p.failureRate {
		return nil, fmt.Errorf("%s: simulated decline: %w", p.name, domainErrors.ErrProviderRejected)
	}

	id := "pi_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:24]
	in := &Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + uuid.New().String()[:8],
		Status:       "requires_payment_method",
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
	}
	if req.IdempotencyKey != "" {
		p.byKey[req.IdempotencyKey] = in
	}
	return in, nil
}

// Requests returns every request received so far.
func (p *MockProvider) Requests() []CreateIntentRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]CreateIntentRequest(nil), p.requests...)
}
