package checkout

import (
	"context"

	"github.com/sfutchko/giddyapp-sub002/internal/infrastructure/providers"
)

// IntentCreator is the outbound port to the payment processor. In production
// it is a *providers.Gateway.
type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, req providers.CreateIntentRequest) (*providers.Intent, error)
}
