package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/escrow"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/notification"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/outbox"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/payment"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/payout"
)

// listingMissing is recorded on a sale conflict when the listing row is gone.
const listingMissing = "MISSING"

func (p *Processor) handlePaymentSucceeded(ctx context.Context, ev *Event, obj *paymentIntentObject, log zerolog.Logger) (Result, error) {
	md, err := payment.ParseIntentMetadata(obj.Metadata)
	if err != nil {
		// Redelivery cannot repair metadata; acknowledge so the queue drains.
		log.Error().Err(err).Msg("succeeded intent carries unusable metadata")
		return ResultIgnored, nil
	}

	now := p.clock.Now()
	paidAt := now
	if ev.Created > 0 {
		paidAt = time.Unix(ev.Created, 0).UTC()
	}
	currency := strings.ToLower(p.currency(obj.Currency))

	rec := payment.NewIntentRecord(obj.ID, "", payment.StatusSucceeded, md, currency, now)
	if err := p.repos.Intents.Upsert(ctx, rec); err != nil {
		return "", fmt.Errorf("upsert intent record: %w", err)
	}

	tx, opening := escrow.NewHeldTransaction(obj.ID, currency, md, paidAt, p.cfg.HoldDays, now)
	created, listingStatus, err := p.recordHeld(ctx, tx, opening, md, paidAt, nil, now, log)
	var paidOffer *uuid.UUID
	if errors.Is(err, domainErrors.ErrOfferAlreadyPaid) {
		// The funds are captured even though another intent settled the offer.
		// The aborted unit is retried without the offer link as a sale conflict.
		paidOffer, tx.OfferID = tx.OfferID, nil
		created, listingStatus, err = p.recordHeld(ctx, tx, opening, md, paidAt, paidOffer, now, log)
	}
	if err != nil {
		return "", fmt.Errorf("record escrow transaction: %w", err)
	}
	if !created {
		return ResultDuplicate, nil
	}

	p.metrics.EscrowTransitions.WithLabelValues(string(escrow.StatusPending), string(escrow.StatusPaymentHeld)).Inc()
	log = log.With().Str("transaction_id", tx.ID.String()).Str("listing_id", md.ListingID.String()).Logger()
	if paidOffer != nil {
		p.metrics.SaleConflicts.Inc()
		log.Error().Str("offer_id", paidOffer.String()).Msg("payment succeeded for an offer already paid by another intent")
		return ResultProcessed, nil
	}
	if listingStatus != "" {
		p.metrics.SaleConflicts.Inc()
		log.Error().Str("listing_status", listingStatus).Msg("payment succeeded for a listing that is no longer available")
		return ResultProcessed, nil
	}
	log.Info().Int64("amount", tx.FinalPrice).Time("escrow_release_at", tx.EscrowReleaseAt).Msg("payment held in escrow")
	return ResultProcessed, nil
}

// recordHeld writes the held transaction and settles the listing in one unit.
// A non-empty listing status means the sale was recorded as a conflict. When
// paidOffer is set the listing is left untouched and the conflict names that
// offer.
func (p *Processor) recordHeld(ctx context.Context, tx *escrow.Transaction, opening *escrow.Event,
	md payment.IntentMetadata, paidAt time.Time, paidOffer *uuid.UUID, now time.Time, log zerolog.Logger,
) (created bool, listingStatus string, err error) {
	err = p.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		created, err = p.repos.Transactions.Create(txCtx, tx)
		if err != nil || !created {
			return err
		}
		if err := p.repos.Transactions.AddEvent(txCtx, opening); err != nil {
			return err
		}

		l, err := p.repos.Listings.GetByID(txCtx, md.ListingID)
		switch {
		case errors.Is(err, domainErrors.ErrListingNotFound):
			listingStatus = listingMissing
		case err != nil:
			return err
		default:
			listingStatus = string(l.Status)
		}

		sold := false
		if l != nil && paidOffer == nil {
			if sold, err = p.repos.Listings.MarkSold(txCtx, md.ListingID, md.FinalPrice, paidAt); err != nil {
				return err
			}
		}
		if !sold {
			// Funds are already captured, so the transaction stays and the
			// conflict is left for manual review.
			ev := tx.ConflictEvent(listingStatus, now)
			if paidOffer != nil {
				ev = tx.OfferConflictEvent(*paidOffer, listingStatus, now)
			}
			if err := p.repos.Transactions.AddEvent(txCtx, ev); err != nil {
				return err
			}
			return p.repos.Outbox.Insert(txCtx, outbox.NewEntry(outbox.AggregateTransaction, tx.ID,
				outbox.EventSaleConflict, conflictPayload(tx, listingStatus, paidOffer), now))
		}
		listingStatus = ""

		rejected, err := p.repos.Listings.RejectPendingOffers(txCtx, md.ListingID, md.OfferID)
		if err != nil {
			return err
		}
		log.Debug().Int64("rejected_offers", rejected).Msg("rejected competing offers")

		amount := payment.Amount{ValueCents: tx.FinalPrice, Currency: tx.Currency}.String()
		if err := p.repos.Notifications.Insert(txCtx,
			notification.ForSale(tx.ID, tx.SellerID, tx.BuyerID, l.Title, amount, now)...); err != nil {
			return err
		}
		return p.repos.Outbox.Insert(txCtx, outbox.NewEntry(outbox.AggregateTransaction, tx.ID,
			outbox.EventPaymentHeld, heldPayload(tx), now))
	})
	return created, listingStatus, err
}

func (p *Processor) handlePaymentFailed(ctx context.Context, obj *paymentIntentObject, log zerolog.Logger) (Result, error) {
	err := p.repos.Intents.UpdateStatus(ctx, obj.ID, payment.StatusFailed)
	if isMissing(err) {
		log.Warn().Msg("payment failed for an unknown intent")
		return ResultIgnored, nil
	}
	if err != nil {
		return "", fmt.Errorf("update intent status: %w", err)
	}
	log.Info().Msg("payment intent failed")
	return ResultProcessed, nil
}

func (p *Processor) handleAccountUpdated(ctx context.Context, obj *accountObject, log zerolog.Logger) (Result, error) {
	log = log.With().Str("account_id", obj.ID).Logger()
	err := p.repos.Payouts.UpdateCapabilities(ctx, obj.ID, payout.Capabilities{
		ChargesEnabled:   obj.ChargesEnabled,
		PayoutsEnabled:   obj.PayoutsEnabled,
		DetailsSubmitted: obj.DetailsSubmitted,
	})
	if isMissing(err) {
		log.Warn().Msg("account update for an unknown payout account")
		return ResultIgnored, nil
	}
	if err != nil {
		return "", fmt.Errorf("update payout account: %w", err)
	}
	log.Info().
		Bool("charges_enabled", obj.ChargesEnabled).
		Bool("payouts_enabled", obj.PayoutsEnabled).
		Msg("payout account capabilities updated")
	return ResultProcessed, nil
}

func (p *Processor) handleChargeRefunded(ctx context.Context, obj *chargeObject, log zerolog.Logger) (Result, error) {
	if obj.PaymentIntent == "" {
		log.Warn().Str("charge_id", obj.ID).Msg("refunded charge has no payment intent")
		return ResultIgnored, nil
	}

	now := p.clock.Now()
	var (
		tx      *escrow.Transaction
		prev    escrow.Status
		outcome *escrow.RefundOutcome
	)
	err := p.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		tx, err = p.repos.Transactions.GetByPaymentIntentForUpdate(txCtx, obj.PaymentIntent)
		if err != nil {
			return err
		}
		prev = tx.Status
		// The provider is the actor; no user id is recorded.
		outcome, err = tx.ApplyRefund(obj.AmountRefunded, obj.Amount, uuid.Nil, now)
		if err != nil {
			return err
		}
		if err := p.repos.Transactions.UpdateRefund(txCtx, tx); err != nil {
			return err
		}
		if err := p.repos.Transactions.AddEvent(txCtx, outcome.Event); err != nil {
			return err
		}
		eventType := outbox.EventPartiallyRefunded
		if outcome.FullyRefunded {
			eventType = outbox.EventRefunded
			if _, err := p.repos.Listings.Reactivate(txCtx, tx.ListingID, tx.ID); err != nil {
				return err
			}
		}
		return p.repos.Outbox.Insert(txCtx, outbox.NewEntry(outbox.AggregateTransaction, tx.ID,
			eventType, refundPayload(tx, outcome), now))
	})
	switch {
	case isMissing(err):
		log.Warn().Msg("refund for a payment with no escrow transaction")
		return ResultIgnored, nil
	case errors.Is(err, domainErrors.ErrRefundAlreadyApplied):
		return ResultDuplicate, nil
	case err != nil:
		return "", fmt.Errorf("apply refund: %w", err)
	}

	p.metrics.EscrowTransitions.WithLabelValues(string(prev), string(tx.Status)).Inc()
	log.Info().
		Str("transaction_id", tx.ID.String()).
		Int64("refund_delta", outcome.Delta).
		Int64("refunded_total", tx.RefundedCents).
		Str("status", string(tx.Status)).
		Msg("refund recorded")
	return ResultProcessed, nil
}

func heldPayload(tx *escrow.Transaction) map[string]any {
	return map[string]any{
		"transaction_id":    tx.ID.String(),
		"listing_id":        tx.ListingID.String(),
		"buyer_id":          tx.BuyerID.String(),
		"seller_id":         tx.SellerID.String(),
		"payment_intent_id": tx.PaymentIntentID,
		"amount":            tx.FinalPrice,
		"currency":          tx.Currency,
		"escrow_release_at": tx.EscrowReleaseAt.Format(time.RFC3339),
	}
}

func conflictPayload(tx *escrow.Transaction, listingStatus string, paidOffer *uuid.UUID) map[string]any {
	payload := map[string]any{
		"transaction_id":    tx.ID.String(),
		"listing_id":        tx.ListingID.String(),
		"payment_intent_id": tx.PaymentIntentID,
		"listing_status":    listingStatus,
	}
	if paidOffer != nil {
		payload["paid_offer_id"] = paidOffer.String()
	}
	return payload
}

func refundPayload(tx *escrow.Transaction, outcome *escrow.RefundOutcome) map[string]any {
	return map[string]any{
		"transaction_id":    tx.ID.String(),
		"listing_id":        tx.ListingID.String(),
		"payment_intent_id": tx.PaymentIntentID,
		"refund_amount":     outcome.Delta,
		"refunded_total":    tx.RefundedCents,
		"status":            string(tx.Status),
	}
}
