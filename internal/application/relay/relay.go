// Package relay moves committed outbox entries to the escrow event stream.
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/outbox"
	"github.com/sfutchko/giddyapp-sub002/internal/infrastructure/observability"
	"github.com/sfutchko/giddyapp-sub002/pkg/retry"
)

// TransactionManager runs fn inside a database transaction carried by ctx.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Publisher delivers one entry to the downstream stream.
type Publisher interface {
	Publish(ctx context.Context, entry *outbox.Entry) error
}

// Stats summarizes one relay pass.
type Stats struct {
	Published int
	Failed    int
}

// OutboxRelay publishes pending entries at least once. Consumers dedupe on
// the outbox id carried in every message.
type OutboxRelay struct {
	repo      outbox.Repository
	txManager TransactionManager
	publisher Publisher
	batchSize int
	retry     retry.Config
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

func NewOutboxRelay(
	repo outbox.Repository,
	txManager TransactionManager,
	publisher Publisher,
	batchSize int,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &OutboxRelay{
		repo:      repo,
		txManager: txManager,
		publisher: publisher,
		batchSize: batchSize,
		retry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     time.Second,
		},
		metrics: metrics,
		logger:  logger.With().Str("component", "outbox_relay").Logger(),
	}
}

// WithRetry overrides the per-entry publish backoff.
func (r *OutboxRelay) WithRetry(cfg retry.Config) *OutboxRelay {
	r.retry = cfg
	return r
}

// RunOnce publishes one batch. The pending rows stay locked for the duration
// of the pass.
func (r *OutboxRelay) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats
	err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		entries, err := r.repo.GetPending(txCtx, outbox.AggregateTransaction, r.batchSize)
		if err != nil {
			return err
		}
		r.metrics.OutboxBacklog.Set(float64(len(entries)))

		for _, entry := range entries {
			log := r.logger.With().
				Str("outbox_id", entry.ID.String()).
				Str("event_type", entry.EventType).
				Str("transaction_id", entry.AggregateID.String()).
				Logger()

			perr := retry.Do(ctx, r.retry, func() error {
				return r.publisher.Publish(ctx, entry)
			})
			if perr != nil {
				if errors.Is(perr, context.Canceled) {
					return perr
				}
				stats.Failed++
				r.metrics.OutboxPublished.WithLabelValues(entry.EventType, "failed").Inc()
				log.Error().Err(perr).Int("retry_count", entry.RetryCount).Msg("failed to publish outbox entry")
				if err := r.repo.MarkFailed(txCtx, entry.ID); err != nil {
					return err
				}
				continue
			}

			if err := r.repo.MarkPublished(txCtx, entry.ID); err != nil {
				return err
			}
			stats.Published++
			r.metrics.OutboxPublished.WithLabelValues(entry.EventType, "published").Inc()
			log.Debug().Msg("outbox entry published")
		}
		return nil
	})
	return stats, err
}

// Run polls until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		stats, err := r.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error().Err(err).Msg("outbox relay pass failed")
			continue
		}
		if stats.Published > 0 || stats.Failed > 0 {
			r.logger.Info().Int("published", stats.Published).Int("failed", stats.Failed).Msg("outbox relay pass")
		}
	}
}
