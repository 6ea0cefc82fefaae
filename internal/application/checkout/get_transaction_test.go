package checkout_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfutchko/giddyapp-sub002/internal/application/checkout"
	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/escrow"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/fee"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/payment"
	"github.com/sfutchko/giddyapp-sub002/internal/testutil"
)

func seedTransaction(t *testing.T, repo *testutil.MockTransactionRepository) *escrow.Transaction {
	t.Helper()
	md := payment.IntentMetadata{
		ListingID:  uuid.New(),
		BuyerID:    uuid.New(),
		SellerID:   uuid.New(),
		FinalPrice: 500_000,
	}
	tx, ev := escrow.NewHeldTransaction("pi_view", "usd", md, testutil.FixedNow, 7, testutil.FixedNow)
	_, err := repo.Create(context.Background(), tx)
	require.NoError(t, err)
	require.NoError(t, repo.AddEvent(context.Background(), ev))
	return tx
}

func TestGetTransaction_Parties(t *testing.T) {
	repo := testutil.NewMockTransactionRepository()
	tx := seedTransaction(t, repo)
	uc := checkout.NewGetTransactionUseCase(repo)

	for _, user := range []uuid.UUID{tx.BuyerID, tx.SellerID} {
		view, err := uc.Execute(context.Background(), tx.ID, user)
		require.NoError(t, err)
		assert.Equal(t, tx.ID, view.Transaction.ID)
		require.Len(t, view.Events, 1)
		assert.Equal(t, escrow.EventPaymentSucceeded, view.Events[0].EventType)
	}
}

func TestGetTransaction_Stranger(t *testing.T) {
	repo := testutil.NewMockTransactionRepository()
	tx := seedTransaction(t, repo)
	uc := checkout.NewGetTransactionUseCase(repo)

	_, err := uc.Execute(context.Background(), tx.ID, uuid.New())
	assert.ErrorIs(t, err, domainErrors.ErrForbidden)
}

func TestGetTransaction_NotFound(t *testing.T) {
	uc := checkout.NewGetTransactionUseCase(testutil.NewMockTransactionRepository())

	_, err := uc.Execute(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, domainErrors.ErrTransactionNotFound)
}

func TestFeeQuoter(t *testing.T) {
	q := checkout.NewFeeQuoter(fee.DefaultSchedule())

	b, err := q.Quote(10_000)
	require.NoError(t, err)
	assert.Equal(t, int64(500), b.PlatformFee)
	assert.Equal(t, int64(320), b.ProcessorFee)
	assert.Equal(t, int64(9_180), b.SellerNet)

	_, err = q.Quote(0)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidAmount)
}
