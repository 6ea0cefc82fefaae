package payment

import (
	"context"
)

type Repository interface {
	// Create stores a new intent record. Returns ErrDuplicateIntent if the
	// external id is already recorded.
	Create(ctx context.Context, rec *IntentRecord) error

	// GetByExternalID retrieves a record by the provider's intent id
	GetByExternalID(ctx context.Context, externalID string) (*IntentRecord, error)

	// UpdateStatus sets the status of an existing record. Returns
	// ErrIntentNotFound when no record matches.
	UpdateStatus(ctx context.Context, externalID string, status IntentStatus) error

	// Upsert inserts the record or, when the external id exists, updates its status
	Upsert(ctx context.Context, rec *IntentRecord) error
}
