package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/payout"
)

// PayoutAccountRepository implements payout.Repository using PostgreSQL.
type PayoutAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPayoutAccountRepository(pool *pgxpool.Pool) *PayoutAccountRepository {
	return &PayoutAccountRepository{pool: pool}
}

func (r *PayoutAccountRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *PayoutAccountRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*payout.Account, error) {
	a := &payout.Account{}
	err := r.db(ctx).QueryRow(ctx,
		`SELECT user_id, external_account_id, charges_enabled, payouts_enabled, details_submitted, updated_at
		 FROM seller_payout_accounts WHERE user_id = $1`, userID,
	).Scan(&a.UserID, &a.ExternalAccountID, &a.ChargesEnabled, &a.PayoutsEnabled, &a.DetailsSubmitted, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrPayoutAccountMissing
		}
		return nil, fmt.Errorf("get payout account: %w", err)
	}
	return a, nil
}

func (r *PayoutAccountRepository) UpdateCapabilities(ctx context.Context, externalAccountID string, caps payout.Capabilities) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE seller_payout_accounts
		 SET charges_enabled = $2, payouts_enabled = $3, details_submitted = $4, updated_at = NOW()
		 WHERE external_account_id = $1`,
		externalAccountID, caps.ChargesEnabled, caps.PayoutsEnabled, caps.DetailsSubmitted,
	)
	if err != nil {
		return fmt.Errorf("update payout capabilities: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrPayoutAccountMissing
	}
	return nil
}
