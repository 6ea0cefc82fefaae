package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/listing"
)

// ListingRepository implements listing.Repository using PostgreSQL.
type ListingRepository struct {
	pool *pgxpool.Pool
}

func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{pool: pool}
}

func (r *ListingRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	var (
		l         listing.Listing
		price     string
		soldPrice *string
		status    string
	)
	err := r.db(ctx).QueryRow(ctx,
		`SELECT id, seller_id, title, price::text, status, sold_price::text, sold_at, updated_at
		 FROM listings WHERE id = $1`, id,
	).Scan(&l.ID, &l.SellerID, &l.Title, &price, &status, &soldPrice, &l.SoldAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrListingNotFound
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}
	l.Status = listing.Status(status)
	if l.PriceCents, err = numericStringToCents(price); err != nil {
		return nil, fmt.Errorf("listing %s price: %w", id, err)
	}
	if l.SoldPrice, err = nullableNumericToCents(soldPrice); err != nil {
		return nil, fmt.Errorf("listing %s sold price: %w", id, err)
	}
	return &l, nil
}

func (r *ListingRepository) GetOffer(ctx context.Context, id uuid.UUID) (*listing.Offer, error) {
	var (
		o      listing.Offer
		amount string
		status string
	)
	err := r.db(ctx).QueryRow(ctx,
		`SELECT id, listing_id, buyer_id, seller_id, amount::text, status, created_at, updated_at
		 FROM offers WHERE id = $1`, id,
	).Scan(&o.ID, &o.ListingID, &o.BuyerID, &o.SellerID, &amount, &status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrInvalidOffer
		}
		return nil, fmt.Errorf("get offer: %w", err)
	}
	o.Status = listing.OfferStatus(status)
	if o.AmountCents, err = numericStringToCents(amount); err != nil {
		return nil, fmt.Errorf("offer %s amount: %w", id, err)
	}
	return &o, nil
}

func (r *ListingRepository) MarkSold(ctx context.Context, id uuid.UUID, soldPrice int64, soldAt time.Time) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE listings SET status = 'SOLD', sold_price = $2::numeric, sold_at = $3, updated_at = $3
		 WHERE id = $1 AND status IN ('ACTIVE', 'PENDING')`,
		id, centsToNumericString(soldPrice), soldAt,
	)
	if err != nil {
		return false, fmt.Errorf("mark listing sold: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ListingRepository) Reactivate(ctx context.Context, id, refundedTxID uuid.UUID) (bool, error) {
	// Row lock serializes concurrent refunds against the same listing.
	var locked int
	err := r.db(ctx).QueryRow(ctx, `SELECT 1 FROM listings WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lock listing: %w", err)
	}

	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE listings SET status = 'ACTIVE', sold_price = NULL, sold_at = NULL, updated_at = NOW()
		 WHERE id = $1 AND status = 'SOLD'
		   AND NOT EXISTS (
		       SELECT 1 FROM transactions
		       WHERE listing_id = $1 AND id <> $2
		         AND status IN ('payment_held', 'partially_refunded'))`,
		id, refundedTxID,
	)
	if err != nil {
		return false, fmt.Errorf("reactivate listing: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ListingRepository) RejectPendingOffers(ctx context.Context, listingID uuid.UUID, keep *uuid.UUID) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE offers SET status = 'rejected', updated_at = NOW()
		 WHERE listing_id = $1 AND status = 'pending' AND ($2::uuid IS NULL OR id <> $2::uuid)`,
		listingID, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("reject pending offers: %w", err)
	}
	return tag.RowsAffected(), nil
}
