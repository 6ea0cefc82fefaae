package outbox

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists outbox entries. Insert runs inside the escrow
// transaction that produced the event; the relay reads and marks entries.
type Repository interface {
	Insert(ctx context.Context, entry *Entry) error

	// GetPending locks up to limit unpublished entries of aggregateType, oldest
	// first. Only the oldest pending entry of each aggregate is returned, so a
	// transaction's events are published in the order they were written.
	GetPending(ctx context.Context, aggregateType string, limit int) ([]*Entry, error)

	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed bumps the retry count; the entry stops being pending once
	// it reaches its max retries.
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
