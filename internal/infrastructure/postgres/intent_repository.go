package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/payment"
)

const uniqueViolation = "23505"

// IntentRepository implements payment.Repository using PostgreSQL.
type IntentRepository struct {
	pool *pgxpool.Pool
}

func NewIntentRepository(pool *pgxpool.Pool) *IntentRepository {
	return &IntentRepository{pool: pool}
}

func (r *IntentRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

const intentColumns = `id, external_id, listing_id, buyer_id, seller_id, offer_id, listing_price_cents,
	amount_cents, currency, platform_fee_cents, seller_net_cents, status, client_secret, created_at, updated_at`

func (r *IntentRepository) Create(ctx context.Context, rec *payment.IntentRecord) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO payment_intents (`+intentColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		intentArgs(rec)...,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domainErrors.ErrDuplicateIntent
		}
		return fmt.Errorf("insert payment intent: %w", err)
	}
	return nil
}

func (r *IntentRepository) Upsert(ctx context.Context, rec *payment.IntentRecord) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO payment_intents (`+intentColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		 ON CONFLICT (external_id) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		intentArgs(rec)...,
	)
	if err != nil {
		return fmt.Errorf("upsert payment intent: %w", err)
	}
	return nil
}

func (r *IntentRepository) GetByExternalID(ctx context.Context, externalID string) (*payment.IntentRecord, error) {
	rec := &payment.IntentRecord{}
	var status string
	err := r.db(ctx).QueryRow(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE external_id = $1`, externalID,
	).Scan(&rec.ID, &rec.ExternalID, &rec.ListingID, &rec.BuyerID, &rec.SellerID, &rec.OfferID,
		&rec.ListingPrice, &rec.Amount.ValueCents, &rec.Amount.Currency, &rec.PlatformFeeCents,
		&rec.SellerNetCents, &status, &rec.ClientSecret, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrIntentNotFound
		}
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	rec.Status = payment.IntentStatus(status)
	return rec, nil
}

func (r *IntentRepository) UpdateStatus(ctx context.Context, externalID string, status payment.IntentStatus) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE payment_intents SET status = $2, updated_at = NOW() WHERE external_id = $1`,
		externalID, string(status),
	)
	if err != nil {
		return fmt.Errorf("update payment intent status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrIntentNotFound
	}
	return nil
}

func intentArgs(rec *payment.IntentRecord) []any {
	return []any{
		rec.ID, rec.ExternalID, rec.ListingID, rec.BuyerID, rec.SellerID, rec.OfferID, rec.ListingPrice,
		rec.Amount.ValueCents, rec.Amount.Currency, rec.PlatformFeeCents, rec.SellerNetCents,
		string(rec.Status), rec.ClientSecret, rec.CreatedAt, rec.UpdatedAt,
	}
}
