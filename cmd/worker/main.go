package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/sfutchko/giddyapp-sub002/internal/application/relay"
	"github.com/sfutchko/giddyapp-sub002/internal/bootstrap"
	"github.com/sfutchko/giddyapp-sub002/internal/infrastructure/postgres"
	infraRedis "github.com/sfutchko/giddyapp-sub002/internal/infrastructure/redis"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "giddyapp-payments-worker", "giddyapp_payments_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close(context.Background())

	// --- Repositories ---
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	workerCfg := app.Config.Worker
	publisher := infraRedis.NewStreamPublisher(app.Redis, workerCfg.EventStream, workerCfg.StreamMaxLen)
	outboxRelay := relay.NewOutboxRelay(outboxRepo, txManager, publisher, workerCfg.BatchSize, app.Metrics, app.Logger)

	app.Logger.Info().
		Str("stream", workerCfg.EventStream).
		Str("instance", app.Config.InstanceID).
		Dur("poll_interval", workerCfg.OutboxPollInterval).
		Msg("Worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Outbox relay (escrow events to the Redis stream).
	g.Go(func() error {
		return outboxRelay.Run(gCtx, workerCfg.OutboxPollInterval)
	})

	// 2. Expired idempotency keys.
	g.Go(func() error {
		return runIdempotencyCleanup(gCtx, app.Logger, idempotencyRepo, workerCfg.CleanupInterval)
	})

	// 3. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

func runIdempotencyCleanup(
	ctx context.Context,
	logger zerolog.Logger,
	repo *postgres.IdempotencyRepository,
	interval time.Duration,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		n, err := repo.Cleanup(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Idempotency cleanup failed")
			continue
		}
		if n > 0 {
			logger.Info().Int64("deleted", n).Msg("Expired idempotency keys removed")
		}
	}
}
