// Package escrow models a completed sale while buyer funds are held by the
// platform, and the refunds that may follow.
package escrow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/payment"
)

// Status is the escrow lifecycle state of a Transaction.
type Status string

const (
	// StatusPending is never persisted. It is the previous status recorded on
	// the first audit event.
	StatusPending           Status = "pending"
	StatusPaymentHeld       Status = "payment_held"
	StatusPartiallyRefunded Status = "partially_refunded"
	StatusRefunded          Status = "refunded"
)

var transitions = map[Status][]Status{
	StatusPending:           {StatusPaymentHeld},
	StatusPaymentHeld:       {StatusPartiallyRefunded, StatusRefunded},
	StatusPartiallyRefunded: {StatusPartiallyRefunded, StatusRefunded},
	StatusRefunded:          {},
}

// Transaction is created exactly once per succeeded payment intent.
type Transaction struct {
	ID              uuid.UUID
	ListingID       uuid.UUID
	BuyerID         uuid.UUID
	SellerID        uuid.UUID
	OfferID         *uuid.UUID
	ListingPrice    int64
	FinalPrice      int64
	PlatformFee     int64
	SellerReceives  int64
	PaymentIntentID string
	Currency        string
	Status          Status
	RefundedCents   int64
	EscrowReleaseAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewHeldTransaction builds the payment_held Transaction for a succeeded intent
// together with its opening audit event. The release date is paidAt plus the
// hold period.
func NewHeldTransaction(intentID, currency string, md payment.IntentMetadata, paidAt time.Time, holdDays int, now time.Time) (*Transaction, *Event) {
	tx := &Transaction{
		ID:              uuid.New(),
		ListingID:       md.ListingID,
		BuyerID:         md.BuyerID,
		SellerID:        md.SellerID,
		OfferID:         md.OfferID,
		ListingPrice:    md.ListingPrice,
		FinalPrice:      md.FinalPrice,
		PlatformFee:     md.PlatformFee,
		SellerReceives:  md.SellerNet,
		PaymentIntentID: intentID,
		Currency:        currency,
		Status:          StatusPaymentHeld,
		EscrowReleaseAt: paidAt.AddDate(0, 0, holdDays),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	amount := md.FinalPrice
	ev := newEvent(tx.ID, EventPaymentSucceeded, StatusPending, StatusPaymentHeld, md.BuyerID, now)
	ev.Amount = &amount
	ev.Metadata = map[string]any{
		"payment_intent_id": intentID,
		"platform_fee":      md.PlatformFee,
		"seller_receives":   md.SellerNet,
	}
	ev.Note = fmt.Sprintf("Payment of %s received and held in escrow until %s",
		payment.Amount{ValueCents: amount, Currency: currency}, tx.EscrowReleaseAt.Format("2006-01-02"))
	return tx, ev
}

// CanTransitionTo checks if the transaction can transition to the given status
func (t *Transaction) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[t.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionTo moves the transaction to next and returns the audit event for it.
func (t *Transaction) TransitionTo(next Status, eventType EventType, actorID uuid.UUID, now time.Time) (*Event, error) {
	if !t.CanTransitionTo(next) {
		return nil, errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(t.Status)+" to "+string(next),
			errors.ErrInvalidStateTransition,
		)
	}
	prev := t.Status
	t.Status = next
	t.UpdatedAt = now
	return newEvent(t.ID, eventType, prev, next, actorID, now), nil
}

// RefundOutcome describes the effect of ApplyRefund.
type RefundOutcome struct {
	Event         *Event
	Delta         int64
	FullyRefunded bool
}

// ApplyRefund records a refund given the provider's cumulative refunded amount
// and the original charge amount. A non-positive charge amount falls back to
// the final price. A cumulative amount that does not exceed what is already
// recorded is a replay and returns ErrRefundAlreadyApplied.
func (t *Transaction) ApplyRefund(cumulative, chargeAmount int64, actorID uuid.UUID, now time.Time) (*RefundOutcome, error) {
	if chargeAmount <= 0 {
		chargeAmount = t.FinalPrice
	}
	if cumulative <= t.RefundedCents {
		return nil, fmt.Errorf("cumulative %d already recorded: %w", cumulative, errors.ErrRefundAlreadyApplied)
	}
	if cumulative > chargeAmount {
		cumulative = chargeAmount
	}

	next := StatusPartiallyRefunded
	if cumulative == chargeAmount {
		next = StatusRefunded
	}

	prevRefunded := t.RefundedCents
	ev, err := t.TransitionTo(next, EventRefund, actorID, now)
	if err != nil {
		return nil, err
	}
	t.RefundedCents = cumulative

	delta := cumulative - prevRefunded
	ev.Amount = &delta
	ev.Metadata = map[string]any{
		"payment_intent_id": t.PaymentIntentID,
		"refunded_total":    cumulative,
		"charge_amount":     chargeAmount,
	}
	kind := "Partial refund"
	if next == StatusRefunded {
		kind = "Full refund"
	}
	ev.Note = fmt.Sprintf("%s of %s processed (%s of %s refunded)", kind,
		payment.Amount{ValueCents: delta, Currency: t.Currency},
		payment.Amount{ValueCents: cumulative, Currency: t.Currency},
		payment.Amount{ValueCents: chargeAmount, Currency: t.Currency})

	return &RefundOutcome{Event: ev, Delta: delta, FullyRefunded: next == StatusRefunded}, nil
}

// ConflictEvent records that the listing could not be marked SOLD because it
// had already left ACTIVE/PENDING. The status is unchanged.
func (t *Transaction) ConflictEvent(listingStatus string, now time.Time) *Event {
	ev := newEvent(t.ID, EventSaleConflict, t.Status, t.Status, t.BuyerID, now)
	ev.Metadata = map[string]any{
		"payment_intent_id": t.PaymentIntentID,
		"listing_status":    listingStatus,
	}
	ev.Note = "Listing was no longer available when payment succeeded; manual review required"
	return ev
}

// OfferConflictEvent records that the offer this payment was made against had
// already been paid through another intent. The transaction carries no offer
// link and the status is unchanged.
func (t *Transaction) OfferConflictEvent(offerID uuid.UUID, listingStatus string, now time.Time) *Event {
	ev := t.ConflictEvent(listingStatus, now)
	ev.Metadata["paid_offer_id"] = offerID.String()
	ev.Note = "Offer was already paid through another payment intent; manual review required"
	return ev
}

// IsTerminal reports whether no further transitions are possible.
func (t *Transaction) IsTerminal() bool {
	return len(transitions[t.Status]) == 0
}
