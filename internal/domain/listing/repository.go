package listing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines listing and offer persistence used by the payment core.
type Repository interface {
	// GetByID retrieves a listing by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Listing, error)

	// GetOffer retrieves an offer by ID
	GetOffer(ctx context.Context, id uuid.UUID) (*Offer, error)

	// MarkSold flips the listing to SOLD only while it is ACTIVE or PENDING.
	// It reports false when the listing was already in another state.
	MarkSold(ctx context.Context, id uuid.UUID, soldPrice int64, soldAt time.Time) (bool, error)

	// Reactivate flips a SOLD listing back to ACTIVE and clears the sale fields.
	// It is a no-op while any escrow transaction other than refundedTxID still
	// holds funds for the listing.
	Reactivate(ctx context.Context, id, refundedTxID uuid.UUID) (bool, error)

	// RejectPendingOffers rejects every pending offer on the listing except keep.
	RejectPendingOffers(ctx context.Context, listingID uuid.UUID, keep *uuid.UUID) (int64, error)
}
