package escrow

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts the transaction unless one already exists for its payment
	// intent. created is false on a replay.
	Create(ctx context.Context, tx *Transaction) (created bool, err error)

	// GetByID retrieves a transaction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// GetByPaymentIntentForUpdate locks and returns the transaction for an intent
	GetByPaymentIntentForUpdate(ctx context.Context, intentID string) (*Transaction, error)

	// ExistsForOffer reports whether an offer already produced a transaction
	ExistsForOffer(ctx context.Context, offerID uuid.UUID) (bool, error)

	// UpdateRefund persists status and refunded total
	UpdateRefund(ctx context.Context, tx *Transaction) error

	// AddEvent appends an audit event
	AddEvent(ctx context.Context, ev *Event) error

	// GetEvents returns the audit trail oldest first
	GetEvents(ctx context.Context, txID uuid.UUID) ([]*Event, error)
}
