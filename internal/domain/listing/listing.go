package listing

import (
	"time"

	"github.com/google/uuid"
)

// Status is the marketplace visibility of a listing.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusPending Status = "PENDING"
	StatusSold    Status = "SOLD"
	StatusRemoved Status = "REMOVED"
)

// Listing is the subset of a horse listing the payment core reads and mutates.
type Listing struct {
	ID         uuid.UUID
	SellerID   uuid.UUID
	Title      string
	PriceCents int64
	Status     Status
	SoldPrice  *int64
	SoldAt     *time.Time
	UpdatedAt  time.Time
}

// AcceptsPayment reports whether a new payment intent may be created.
// PENDING means an offer was accepted and is awaiting payment.
func (l *Listing) AcceptsPayment() bool {
	return l.Status == StatusActive || l.Status == StatusPending
}

// OfferStatus is the negotiation state of an offer.
type OfferStatus string

const (
	OfferPending   OfferStatus = "pending"
	OfferAccepted  OfferStatus = "accepted"
	OfferRejected  OfferStatus = "rejected"
	OfferCountered OfferStatus = "countered"
	OfferExpired   OfferStatus = "expired"
	OfferWithdrawn OfferStatus = "withdrawn"
)

// Offer is a negotiated price for a listing.
type Offer struct {
	ID          uuid.UUID
	ListingID   uuid.UUID
	BuyerID     uuid.UUID
	SellerID    uuid.UUID
	AmountCents int64
	Status      OfferStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PayableBy reports whether buyerID may check out this offer on listingID.
func (o *Offer) PayableBy(listingID, buyerID uuid.UUID) bool {
	return o.ListingID == listingID &&
		o.BuyerID == buyerID &&
		o.Status == OfferAccepted
}
