package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/outbox"
)

// EscrowStream is where escrow domain events are published for messaging and
// notification delivery.
const EscrowStream = "escrow:events"

// StreamPublisher appends outbox entries to a Redis stream.
type StreamPublisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewStreamPublisher(client redis.Cmdable, stream string, maxLen int64) *StreamPublisher {
	if stream == "" {
		stream = EscrowStream
	}
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

// Publish adds one entry. The outbox id travels with the message so consumers
// can drop duplicates after a relay retry.
func (p *StreamPublisher) Publish(ctx context.Context, entry *outbox.Entry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"outbox_id":      entry.ID.String(),
			"aggregate_type": entry.AggregateType,
			"aggregate_id":   entry.AggregateID.String(),
			"event_type":     entry.EventType,
			"payload":        string(payload),
			"timestamp":      entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", entry.EventType, err)
	}
	return nil
}
