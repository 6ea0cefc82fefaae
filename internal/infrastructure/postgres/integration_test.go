//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/escrow"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/fee"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/listing"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/outbox"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/payment"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/payout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("giddyapp"),
		tcpostgres.WithUsername("giddyapp"),
		tcpostgres.WithPassword("giddyapp"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, MigrateUp(dsn))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func seedListing(t *testing.T, pool *pgxpool.Pool, status listing.Status) (listingID, sellerID uuid.UUID) {
	t.Helper()
	listingID, sellerID = uuid.New(), uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO listings (id, seller_id, title, price, status) VALUES ($1, $2, 'Thunder', 12500.00, $3)`,
		listingID, sellerID, string(status))
	require.NoError(t, err)
	return listingID, sellerID
}

func seedOffer(t *testing.T, pool *pgxpool.Pool, listingID, sellerID uuid.UUID, status listing.OfferStatus) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO offers (id, listing_id, buyer_id, seller_id, amount, status) VALUES ($1, $2, $3, $4, 11000.50, $5)`,
		id, listingID, uuid.New(), sellerID, string(status))
	require.NoError(t, err)
	return id
}

func TestIntegration_ListingRepository(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	repo := NewListingRepository(pool)

	listingID, sellerID := seedListing(t, pool, listing.StatusActive)
	keep := seedOffer(t, pool, listingID, sellerID, listing.OfferAccepted)
	seedOffer(t, pool, listingID, sellerID, listing.OfferPending)
	seedOffer(t, pool, listingID, sellerID, listing.OfferPending)

	l, err := repo.GetByID(ctx, listingID)
	require.NoError(t, err)
	assert.Equal(t, int64(1250000), l.PriceCents)
	assert.Equal(t, sellerID, l.SellerID)

	o, err := repo.GetOffer(ctx, keep)
	require.NoError(t, err)
	assert.Equal(t, int64(1100050), o.AmountCents)

	sold, err := repo.MarkSold(ctx, listingID, 1100050, time.Now())
	require.NoError(t, err)
	assert.True(t, sold)

	sold, err = repo.MarkSold(ctx, listingID, 1100050, time.Now())
	require.NoError(t, err)
	assert.False(t, sold, "second sale must not overwrite")

	n, err := repo.RejectPendingOffers(ctx, listingID, &keep)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	b, err := fee.DefaultSchedule().Calculate(1100050)
	require.NoError(t, err)
	md := payment.NewIntentMetadata(listingID, uuid.New(), sellerID, "acct_1", nil, 1250000, b)
	now := time.Now().UTC()
	winner, _ := escrow.NewHeldTransaction("pi_winner", "usd", md, now, 7, now)
	conflict, _ := escrow.NewHeldTransaction("pi_conflict", "usd", md, now, 7, now)
	txRepo := NewTransactionRepository(pool)
	for _, tx := range []*escrow.Transaction{winner, conflict} {
		created, err := txRepo.Create(ctx, tx)
		require.NoError(t, err)
		require.True(t, created)
	}

	ok, err := repo.Reactivate(ctx, listingID, conflict.ID)
	require.NoError(t, err)
	assert.False(t, ok, "the winning transaction still holds the listing")

	_, err = winner.ApplyRefund(1100050, 1100050, uuid.Nil, now)
	require.NoError(t, err)
	require.NoError(t, txRepo.UpdateRefund(ctx, winner))

	ok, err = repo.Reactivate(ctx, listingID, conflict.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	l, err = repo.GetByID(ctx, listingID)
	require.NoError(t, err)
	assert.Equal(t, listing.StatusActive, l.Status)
	assert.Nil(t, l.SoldPrice)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, domainErrors.ErrListingNotFound))
}

func TestIntegration_TransactionCreateIsIdempotent(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	txManager := NewTxManager(pool)
	repo := NewTransactionRepository(pool)
	outboxRepo := NewOutboxRepository(pool)

	b, err := fee.DefaultSchedule().Calculate(10000)
	require.NoError(t, err)
	md := payment.NewIntentMetadata(uuid.New(), uuid.New(), uuid.New(), "acct_1", nil, 10000, b)
	now := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 2; i++ {
		tx, ev := escrow.NewHeldTransaction("pi_dup", "usd", md, now, 7, now)
		err := txManager.WithTransaction(ctx, func(ctx context.Context) error {
			created, err := repo.Create(ctx, tx)
			if err != nil || !created {
				return err
			}
			if err := repo.AddEvent(ctx, ev); err != nil {
				return err
			}
			return outboxRepo.Insert(ctx, outbox.NewEntry(outbox.AggregateTransaction, tx.ID, outbox.EventPaymentHeld, map[string]any{"n": i}, now))
		})
		require.NoError(t, err)
	}

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE payment_intent_id = 'pi_dup'`).Scan(&count))
	assert.Equal(t, 1, count)

	got, err := repo.GetByPaymentIntentForUpdate(ctx, "pi_dup")
	require.NoError(t, err)
	events, err := repo.GetEvents(ctx, got.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, escrow.EventPaymentSucceeded, events[0].EventType)

	later := outbox.NewEntry(outbox.AggregateTransaction, got.ID, outbox.EventRefunded, nil, now)
	require.NoError(t, outboxRepo.Insert(ctx, later))
	require.NoError(t, outboxRepo.Insert(ctx, outbox.NewEntry("listing", got.ID, "listing.updated", nil, now)))

	var pending []*outbox.Entry
	require.NoError(t, txManager.WithTransaction(ctx, func(ctx context.Context) error {
		pending, err = outboxRepo.GetPending(ctx, outbox.AggregateTransaction, 10)
		return err
	}))
	require.Len(t, pending, 1, "later entries of the same transaction wait for the first")
	assert.Equal(t, outbox.EventPaymentHeld, pending[0].EventType)

	require.NoError(t, outboxRepo.MarkPublished(ctx, pending[0].ID))
	require.NoError(t, txManager.WithTransaction(ctx, func(ctx context.Context) error {
		pending, err = outboxRepo.GetPending(ctx, outbox.AggregateTransaction, 10)
		return err
	}))
	require.Len(t, pending, 1)
	assert.Equal(t, later.ID, pending[0].ID)

	out, err := got.ApplyRefund(10000, 10000, got.BuyerID, now)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateRefund(ctx, got))
	require.NoError(t, repo.AddEvent(ctx, out.Event))

	reloaded, err := repo.GetByID(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusRefunded, reloaded.Status)
	assert.Equal(t, int64(10000), reloaded.RefundedCents)
}

func TestIntegration_IntentAndPayoutRepositories(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	intents := NewIntentRepository(pool)
	payouts := NewPayoutAccountRepository(pool)

	b, err := fee.DefaultSchedule().Calculate(5000)
	require.NoError(t, err)
	md := payment.NewIntentMetadata(uuid.New(), uuid.New(), uuid.New(), "acct_9", nil, 5000, b)
	rec := payment.NewIntentRecord("pi_9", "secret", payment.StatusRequiresPaymentMethod, md, "usd", time.Now().UTC())

	require.NoError(t, intents.Create(ctx, rec))
	assert.True(t, errors.Is(intents.Create(ctx, rec), domainErrors.ErrDuplicateIntent))
	require.NoError(t, intents.UpdateStatus(ctx, "pi_9", payment.StatusSucceeded))
	got, err := intents.GetByExternalID(ctx, "pi_9")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSucceeded, got.Status)
	assert.True(t, errors.Is(intents.UpdateStatus(ctx, "pi_missing", payment.StatusFailed), domainErrors.ErrIntentNotFound))

	userID := uuid.New()
	_, err = pool.Exec(ctx, `INSERT INTO seller_payout_accounts (user_id, external_account_id) VALUES ($1, 'acct_9')`, userID)
	require.NoError(t, err)
	require.NoError(t, payouts.UpdateCapabilities(ctx, "acct_9", payout.Capabilities{ChargesEnabled: true, PayoutsEnabled: true}))
	acct, err := payouts.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.True(t, acct.CanReceivePayments())
	assert.True(t, errors.Is(payouts.UpdateCapabilities(ctx, "acct_unknown", payout.Capabilities{}), domainErrors.ErrPayoutAccountMissing))
}

func TestIntegration_IdempotencyAndWebhookLog(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	keys := NewIdempotencyRepository(pool)
	events := NewWebhookEventRepository(pool)
	now := time.Now().UTC()

	require.NoError(t, keys.Set(ctx, &IdempotencyEntry{
		Key: "u1:live", RequestHash: "h1", ResponseBody: `{"ok":true}`, ResponseStatus: 200,
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, keys.Set(ctx, &IdempotencyEntry{
		Key: "u1:live", RequestHash: "h2", ResponseBody: `{"ok":false}`, ResponseStatus: 200,
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, keys.Set(ctx, &IdempotencyEntry{
		Key: "u1:stale", ResponseBody: `{}`, ResponseStatus: 200,
		CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}))
	require.NoError(t, keys.Set(ctx, &IdempotencyEntry{
		Key: "u1:reused", RequestHash: "old", ResponseBody: `{}`, ResponseStatus: 200,
		CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}))
	require.NoError(t, keys.Set(ctx, &IdempotencyEntry{
		Key: "u1:reused", RequestHash: "new", ResponseBody: `{"n":2}`, ResponseStatus: 201,
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))

	live, err := keys.Get(ctx, "u1:live")
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, `{"ok":true}`, live.ResponseBody, "a live entry keeps its first response")
	assert.Equal(t, "h1", live.RequestHash)

	stale, err := keys.Get(ctx, "u1:stale")
	require.NoError(t, err)
	assert.Nil(t, stale)

	reused, err := keys.Get(ctx, "u1:reused")
	require.NoError(t, err)
	require.NotNil(t, reused, "an expired entry is taken over")
	assert.Equal(t, "new", reused.RequestHash)
	assert.Equal(t, 201, reused.ResponseStatus)

	deleted, err := keys.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	require.NoError(t, events.RecordReceived(ctx, "evt_1", "charge.refunded", "pi_1", now))
	require.NoError(t, events.RecordResult(ctx, "evt_1", now, errors.New("boom")))
	require.NoError(t, events.RecordReceived(ctx, "evt_1", "charge.refunded", "pi_1", now))
	require.NoError(t, events.RecordResult(ctx, "evt_1", now, nil))

	var (
		attempts  int
		lastError *string
		processed *time.Time
	)
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT attempts, last_error, processed_at FROM webhook_events WHERE id = 'evt_1'`,
	).Scan(&attempts, &lastError, &processed))
	assert.Equal(t, 2, attempts)
	assert.Nil(t, lastError)
	assert.NotNil(t, processed)
}
