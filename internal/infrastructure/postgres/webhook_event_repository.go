package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WebhookEventRepository keeps an operational log of verified deliveries.
// Deduplication does not depend on it.
type WebhookEventRepository struct {
	pool *pgxpool.Pool
}

func NewWebhookEventRepository(pool *pgxpool.Pool) *WebhookEventRepository {
	return &WebhookEventRepository{pool: pool}
}

func (r *WebhookEventRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// RecordReceived inserts the event or bumps its delivery count.
func (r *WebhookEventRepository) RecordReceived(ctx context.Context, eventID, eventType, intentID string, at time.Time) error {
	var intent *string
	if intentID != "" {
		intent = &intentID
	}
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO webhook_events (id, type, payment_intent_id, received_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET attempts = webhook_events.attempts + 1, received_at = EXCLUDED.received_at`,
		eventID, eventType, intent, at,
	)
	if err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	return nil
}

// RecordResult stores the outcome of the latest attempt. procErr nil clears last_error.
func (r *WebhookEventRepository) RecordResult(ctx context.Context, eventID string, at time.Time, procErr error) error {
	var (
		processedAt *time.Time
		lastErr     *string
	)
	if procErr != nil {
		msg := procErr.Error()
		lastErr = &msg
	} else {
		processedAt = &at
	}
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE webhook_events SET processed_at = COALESCE($2, processed_at), last_error = $3 WHERE id = $1`,
		eventID, processedAt, lastErr,
	)
	if err != nil {
		return fmt.Errorf("record webhook result: %w", err)
	}
	return nil
}
