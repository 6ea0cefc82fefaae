package payout

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Account is a seller's connected payout account at the payment provider.
type Account struct {
	UserID            uuid.UUID
	ExternalAccountID string
	Capabilities
	UpdatedAt time.Time
}

// Capabilities mirrors the provider's account flags.
type Capabilities struct {
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

// CanReceivePayments gates checkout: both charges and payouts must be enabled.
func (a *Account) CanReceivePayments() bool {
	return a.ChargesEnabled && a.PayoutsEnabled
}

// Repository defines payout account persistence.
type Repository interface {
	// GetByUserID returns ErrPayoutAccountMissing when the seller never onboarded.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Account, error)

	// UpdateCapabilities overwrites the flags for the given provider account.
	UpdateCapabilities(ctx context.Context, externalAccountID string, caps Capabilities) error
}
