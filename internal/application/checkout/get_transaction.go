package checkout

import (
	"context"

	"github.com/google/uuid"
	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/escrow"
)

// TransactionView is a transaction with its audit trail.
type TransactionView struct {
	Transaction *escrow.Transaction
	Events      []*escrow.Event
}

// GetTransactionUseCase returns a transaction to one of its two parties.
type GetTransactionUseCase struct {
	txns escrow.Repository
}

func NewGetTransactionUseCase(txns escrow.Repository) *GetTransactionUseCase {
	return &GetTransactionUseCase{txns: txns}
}

func (uc *GetTransactionUseCase) Execute(ctx context.Context, id, userID uuid.UUID) (*TransactionView, error) {
	tx, err := uc.txns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != tx.BuyerID && userID != tx.SellerID {
		return nil, domainErrors.ErrForbidden
	}
	events, err := uc.txns.GetEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TransactionView{Transaction: tx, Events: events}, nil
}
