package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/escrow"
)

// TransactionRepository implements escrow.Repository using PostgreSQL.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const transactionColumns = `id, listing_id, buyer_id, seller_id, offer_id, listing_price_cents, final_price_cents,
	platform_fee_cents, seller_receives_cents, payment_intent_id, currency, status, refunded_cents,
	escrow_release_at, created_at, updated_at`

// Create relies on the unique payment_intent_id: a replayed success event
// inserts nothing and reports created=false.
func (r *TransactionRepository) Create(ctx context.Context, tx *escrow.Transaction) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		 ON CONFLICT (payment_intent_id) DO NOTHING`,
		tx.ID, tx.ListingID, tx.BuyerID, tx.SellerID, tx.OfferID, tx.ListingPrice, tx.FinalPrice,
		tx.PlatformFee, tx.SellerReceives, tx.PaymentIntentID, tx.Currency, string(tx.Status), tx.RefundedCents,
		tx.EscrowReleaseAt, tx.CreatedAt, tx.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// only uq_transactions_offer can still conflict here
			return false, fmt.Errorf("offer %v: %w", tx.OfferID, domainErrors.ErrOfferAlreadyPaid)
		}
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*escrow.Transaction, error) {
	row := r.db(ctx).QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	return r.scanTransaction(row)
}

func (r *TransactionRepository) GetByPaymentIntentForUpdate(ctx context.Context, intentID string) (*escrow.Transaction, error) {
	row := r.db(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE payment_intent_id = $1 FOR UPDATE`, intentID)
	return r.scanTransaction(row)
}

func (r *TransactionRepository) ExistsForOffer(ctx context.Context, offerID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE offer_id = $1)`, offerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check offer transaction: %w", err)
	}
	return exists, nil
}

func (r *TransactionRepository) UpdateRefund(ctx context.Context, tx *escrow.Transaction) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE transactions SET status = $2, refunded_cents = $3, updated_at = $4 WHERE id = $1`,
		tx.ID, string(tx.Status), tx.RefundedCents, tx.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update transaction refund: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) AddEvent(ctx context.Context, ev *escrow.Event) error {
	metadata, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("marshal event metadata: %w", err)
	}
	var actor *uuid.UUID
	if ev.ActorID != uuid.Nil {
		actor = &ev.ActorID
	}
	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO transaction_events
		 (id, transaction_id, event_type, previous_status, new_status, amount_cents, actor_id, metadata, note, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		ev.ID, ev.TransactionID, string(ev.EventType), string(ev.PreviousStatus), string(ev.NewStatus),
		ev.Amount, actor, metadata, ev.Note, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction event: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetEvents(ctx context.Context, txID uuid.UUID) ([]*escrow.Event, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, transaction_id, event_type, previous_status, new_status, amount_cents, actor_id, metadata, note, created_at
		 FROM transaction_events WHERE transaction_id = $1 ORDER BY created_at ASC, id ASC`, txID,
	)
	if err != nil {
		return nil, fmt.Errorf("get transaction events: %w", err)
	}
	defer rows.Close()

	var events []*escrow.Event
	for rows.Next() {
		var (
			ev              escrow.Event
			typ, prev, next string
			actor           *uuid.UUID
			metadata        []byte
		)
		if err := rows.Scan(&ev.ID, &ev.TransactionID, &typ, &prev, &next, &ev.Amount, &actor, &metadata, &ev.Note, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction event: %w", err)
		}
		ev.EventType = escrow.EventType(typ)
		ev.PreviousStatus = escrow.Status(prev)
		ev.NewStatus = escrow.Status(next)
		if actor != nil {
			ev.ActorID = *actor
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal event metadata: %w", err)
			}
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (r *TransactionRepository) scanTransaction(row scanner) (*escrow.Transaction, error) {
	tx := &escrow.Transaction{}
	var status string
	err := row.Scan(&tx.ID, &tx.ListingID, &tx.BuyerID, &tx.SellerID, &tx.OfferID, &tx.ListingPrice, &tx.FinalPrice,
		&tx.PlatformFee, &tx.SellerReceives, &tx.PaymentIntentID, &tx.Currency, &status, &tx.RefundedCents,
		&tx.EscrowReleaseAt, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	tx.Status = escrow.Status(status)
	return tx, nil
}
