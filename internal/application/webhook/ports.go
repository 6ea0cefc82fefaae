package webhook

import (
	"context"
	"time"
)

// TransactionManager runs fn inside a database transaction carried by ctx.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker serializes processing per payment intent across instances.
type Locker interface {
	Lock(ctx context.Context, intentID string) (unlock func(context.Context) error, err error)
}

// EventLog records deliveries for operators. It is not used for dedup.
type EventLog interface {
	RecordReceived(ctx context.Context, eventID, eventType, intentID string, at time.Time) error
	RecordResult(ctx context.Context, eventID string, at time.Time, procErr error) error
}
