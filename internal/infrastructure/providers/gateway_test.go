package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/sfutchko/giddyapp-sub002/internal/infrastructure/observability"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	calls int
	fn    func(ctx context.Context) (*Intent, error)
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) CreatePaymentIntent(ctx context.Context, _ CreateIntentRequest) (*Intent, error) {
	s.calls++
	return s.fn(ctx)
}

func TestGateway_PassesThrough(t *testing.T) {
	stub := &stubProvider{fn: func(context.Context) (*Intent, error) { return &Intent{ID: "pi_1"}, nil }}
	g := NewGateway(stub, GatewayConfig{}, observability.NewNopMetrics())

	in, err := g.CreatePaymentIntent(context.Background(), CreateIntentRequest{})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", in.ID)
	assert.Equal(t, "stub", g.Name())
}

func TestGateway_OpensAfterOutages(t *testing.T) {
	stub := &stubProvider{fn: func(context.Context) (*Intent, error) { return nil, domainErrors.ErrProviderUnavailable }}
	g := NewGateway(stub, GatewayConfig{FailureThreshold: 3, OpenTimeout: time.Minute}, observability.NewNopMetrics())

	for i := 0; i < 3; i++ {
		_, err := g.CreatePaymentIntent(context.Background(), CreateIntentRequest{})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	_, err := g.CreatePaymentIntent(context.Background(), CreateIntentRequest{})
	assert.True(t, errors.Is(err, domainErrors.ErrProviderUnavailable))
	assert.Equal(t, 3, stub.calls, "open breaker must not reach the provider")
}

func TestGateway_DeclinesDoNotTrip(t *testing.T) {
	stub := &stubProvider{fn: func(context.Context) (*Intent, error) { return nil, domainErrors.ErrProviderRejected }}
	g := NewGateway(stub, GatewayConfig{FailureThreshold: 2}, nil)

	for i := 0; i < 5; i++ {
		_, err := g.CreatePaymentIntent(context.Background(), CreateIntentRequest{})
		assert.True(t, errors.Is(err, domainErrors.ErrProviderRejected))
	}
	assert.Equal(t, gobreaker.StateClosed, g.State())
	assert.Equal(t, 5, stub.calls)
}

func TestGateway_Timeout(t *testing.T) {
	stub := &stubProvider{fn: func(ctx context.Context) (*Intent, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	g := NewGateway(stub, GatewayConfig{Timeout: 10 * time.Millisecond}, nil)

	_, err := g.CreatePaymentIntent(context.Background(), CreateIntentRequest{})
	assert.True(t, errors.Is(err, domainErrors.ErrProviderTimeout))
}
