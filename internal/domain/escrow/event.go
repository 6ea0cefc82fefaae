package escrow

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventPaymentSucceeded EventType = "payment_succeeded"
	EventRefund           EventType = "refund"
	EventSaleConflict     EventType = "sale_conflict"
)

// Event is an append-only audit row written with every status change.
type Event struct {
	ID             uuid.UUID
	TransactionID  uuid.UUID
	EventType      EventType
	PreviousStatus Status
	NewStatus      Status
	Amount         *int64
	ActorID        uuid.UUID
	Metadata       map[string]any
	Note           string
	CreatedAt      time.Time
}

func newEvent(txID uuid.UUID, typ EventType, prev, next Status, actor uuid.UUID, now time.Time) *Event {
	return &Event{
		ID:             uuid.New(),
		TransactionID:  txID,
		EventType:      typ,
		PreviousStatus: prev,
		NewStatus:      next,
		ActorID:        actor,
		CreatedAt:      now,
	}
}
