// Package providers talks to the external payment processor.
package providers

import (
	"context"
)

// Provider is implemented by payment processors.
type Provider interface {
	// Name returns the provider name.
	Name() string
	// CreatePaymentIntent asks the processor to authorize a charge.
	CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error)
}

// CreateIntentRequest is the outbound authorization request.
type CreateIntentRequest struct {
	AmountCents int64
	Currency    string
	// Metadata is returned verbatim on every webhook for the intent.
	Metadata map[string]string
	// IdempotencyKey, when set, makes a retried request return the first intent.
	IdempotencyKey string
}

// Intent is the processor's view of a created payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountCents  int64
	Currency     string
}
