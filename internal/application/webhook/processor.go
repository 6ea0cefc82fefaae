// Package webhook verifies and applies payment provider events: it creates
// escrow transactions on successful payments, records refunds and keeps
// payout account capabilities in sync.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sfutchko/giddyapp-sub002/internal/clock"
	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/escrow"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/listing"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/notification"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/outbox"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/payment"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/payout"
	"github.com/sfutchko/giddyapp-sub002/internal/infrastructure/observability"
	"github.com/sfutchko/giddyapp-sub002/internal/infrastructure/providers"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Result tells the caller how an accepted event was handled.
type Result string

const (
	ResultProcessed Result = "processed"
	// ResultDuplicate means the event had already been applied.
	ResultDuplicate Result = "duplicate"
	// ResultIgnored means the event was acknowledged without any state change.
	ResultIgnored Result = "ignored"
)

// Config holds the processor settings.
type Config struct {
	Secret    string
	Tolerance time.Duration
	HoldDays  int
	// Currency is used when an event object carries none.
	Currency string
}

// Repositories groups the stores the handlers write to.
type Repositories struct {
	Intents       payment.Repository
	Transactions  escrow.Repository
	Listings      listing.Repository
	Payouts       payout.Repository
	Notifications notification.Repository
	Outbox        outbox.Repository
}

// Processor is the entry point for provider webhook deliveries.
type Processor struct {
	cfg       Config
	repos     Repositories
	txManager TransactionManager
	locker    Locker
	events    EventLog
	clock     clock.Clock
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

func NewProcessor(
	cfg Config,
	repos Repositories,
	txManager TransactionManager,
	locker Locker,
	events EventLog,
	clk clock.Clock,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Processor {
	return &Processor{
		cfg:       cfg,
		repos:     repos,
		txManager: txManager,
		locker:    locker,
		events:    events,
		clock:     clk,
		metrics:   metrics,
		logger:    logger.With().Str("component", "webhook").Logger(),
	}
}

// Process verifies the signature, decodes the envelope and dispatches by type.
// Signature and payload errors are returned before any side effect. Handler
// failures wrap ErrEventProcessing so the delivery can be retried.
func (p *Processor) Process(ctx context.Context, payload []byte, signatureHeader string) (Result, error) {
	now := p.clock.Now()
	if err := providers.VerifySignature(payload, signatureHeader, p.cfg.Secret, p.cfg.Tolerance, now); err != nil {
		p.metrics.SignatureFailures.Inc()
		p.logger.Warn().Err(err).Int("payload_bytes", len(payload)).Msg("rejected webhook with invalid signature")
		return "", err
	}

	ev, err := decodeEvent(payload)
	if err != nil {
		p.logger.Warn().Err(err).Msg("rejected malformed webhook payload")
		return "", err
	}
	intentID, err := ev.lockKey()
	if err != nil {
		p.logger.Warn().Err(err).Str("event_id", ev.ID).Str("event_type", ev.Type).Msg("rejected malformed webhook object")
		return "", err
	}

	ctx, span := observability.Tracer("webhook").Start(ctx, "webhook.Process")
	defer span.End()
	span.SetAttributes(
		attribute.String("event_id", ev.ID),
		attribute.String("event_type", ev.Type),
		attribute.String("payment_intent_id", intentID),
	)

	log := p.logger.With().Str("event_id", ev.ID).Str("event_type", ev.Type).Logger()
	if intentID != "" {
		log = log.With().Str("payment_intent_id", intentID).Logger()
	}

	if err := p.events.RecordReceived(ctx, ev.ID, ev.Type, intentID, now); err != nil {
		log.Warn().Err(err).Msg("failed to record webhook delivery")
	}

	start := time.Now()
	result, err := p.processLocked(ctx, ev, intentID, log)
	p.metrics.WebhookDuration.WithLabelValues(ev.Type).Observe(time.Since(start).Seconds())

	if rerr := p.events.RecordResult(ctx, ev.ID, p.clock.Now(), err); rerr != nil {
		log.Warn().Err(rerr).Msg("failed to record webhook result")
	}

	if err != nil {
		p.metrics.WebhookEvents.WithLabelValues(ev.Type, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "processing failed")
		log.Error().Err(err).Msg("webhook processing failed")
		return "", fmt.Errorf("%w: %w", domainErrors.ErrEventProcessing, err)
	}

	p.metrics.WebhookEvents.WithLabelValues(ev.Type, string(result)).Inc()
	if result == ResultDuplicate {
		p.metrics.DuplicateDeliveries.WithLabelValues(ev.Type).Inc()
	}
	log.Info().Str("result", string(result)).Msg("webhook processed")
	return result, nil
}

func (p *Processor) processLocked(ctx context.Context, ev *Event, intentID string, log zerolog.Logger) (Result, error) {
	if intentID != "" {
		unlock, err := p.locker.Lock(ctx, intentID)
		if err != nil {
			return "", fmt.Errorf("lock intent %s: %w", intentID, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Msg("failed to release intent lock")
			}
		}()
	}
	return p.dispatch(ctx, ev, log)
}

func (p *Processor) dispatch(ctx context.Context, ev *Event, log zerolog.Logger) (Result, error) {
	switch ev.Type {
	case TypePaymentSucceeded:
		obj, err := decodeObject[paymentIntentObject](ev)
		if err != nil {
			return "", err
		}
		return p.handlePaymentSucceeded(ctx, ev, obj, log)
	case TypePaymentFailed:
		obj, err := decodeObject[paymentIntentObject](ev)
		if err != nil {
			return "", err
		}
		return p.handlePaymentFailed(ctx, obj, log)
	case TypeAccountUpdated:
		obj, err := decodeObject[accountObject](ev)
		if err != nil {
			return "", err
		}
		return p.handleAccountUpdated(ctx, obj, log)
	case TypeChargeRefunded:
		obj, err := decodeObject[chargeObject](ev)
		if err != nil {
			return "", err
		}
		return p.handleChargeRefunded(ctx, obj, log)
	default:
		log.Debug().Msg("ignoring unhandled webhook type")
		return ResultIgnored, nil
	}
}

func (p *Processor) currency(c string) string {
	if c != "" {
		return c
	}
	return p.cfg.Currency
}

func isMissing(err error) bool {
	return errors.Is(err, domainErrors.ErrIntentNotFound) ||
		errors.Is(err, domainErrors.ErrTransactionNotFound) ||
		errors.Is(err, domainErrors.ErrPayoutAccountMissing)
}
