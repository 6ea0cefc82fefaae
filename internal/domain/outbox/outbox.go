// Package outbox holds domain events written in the same database transaction
// as the state change that produced them, for later relay by the worker.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

const AggregateTransaction = "transaction"

const (
	EventPaymentHeld       = "escrow.payment_held"
	EventPartiallyRefunded = "escrow.partially_refunded"
	EventRefunded          = "escrow.refunded"
	EventSaleConflict      = "escrow.sale_conflict"
)

type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       map[string]any
	Status        Status
	RetryCount    int
	MaxRetries    int
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

const defaultMaxRetries = 5

func NewEntry(aggregateType string, aggregateID uuid.UUID, eventType string, payload map[string]any, now time.Time) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		MaxRetries:    defaultMaxRetries,
		CreatedAt:     now,
	}
}

// Exhausted reports whether the relay should stop retrying the entry.
func (e *Entry) Exhausted() bool {
	return e.RetryCount >= e.MaxRetries
}
