package controller

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/escrow"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/listing"
	"github.com/sfutchko/giddyapp-sub002/internal/infrastructure/providers"
	"github.com/sfutchko/giddyapp-sub002/internal/testutil"
)

func TestCreateIntent_ListPrice(t *testing.T) {
	f := newServerFixture(t)
	body := []byte(`{"listingId":"` + f.listing.ID.String() + `"}`)

	w := f.do(t, "POST", "/payments/create-intent", body, &f.buyerID, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[CreateIntentResponse](t, w)
	assert.Equal(t, "pi_test_1", resp.PaymentIntentID)
	assert.Equal(t, "pi_test_1_secret", resp.ClientSecret)
	assert.Equal(t, int64(1_000_000), resp.Amount)
	assert.Equal(t, int64(50_000), resp.PlatformFee)
	assert.Equal(t, int64(920_970), resp.SellerReceives)
	assert.Equal(t, int64(29_030), resp.Fees.ProcessorFee)
	assert.NotNil(t, f.intents.Record("pi_test_1"))
}

func TestCreateIntent_AcceptedOffer(t *testing.T) {
	f := newServerFixture(t)
	offer := testutil.NewTestOffer(f.listing, f.buyerID, 900_000, listing.OfferAccepted)
	f.listings.AddOffer(offer)
	body := []byte(`{"listingId":"` + f.listing.ID.String() + `","offerId":"` + offer.ID.String() + `"}`)

	w := f.do(t, "POST", "/payments/create-intent", body, &f.buyerID, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[CreateIntentResponse](t, w)
	assert.Equal(t, int64(900_000), resp.Amount)
	assert.Equal(t, int64(45_000), resp.PlatformFee)
}

func TestCreateIntent_ErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(f *serverFixture) (body string, user uuid.UUID)
		wantStatus int
		wantCode   string
	}{
		{
			name: "malformed body",
			setup: func(f *serverFixture) (string, uuid.UUID) {
				return `{"listingId":`, f.buyerID
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation_error",
		},
		{
			name: "listing id not a uuid",
			setup: func(f *serverFixture) (string, uuid.UUID) {
				return `{"listingId":"bay-mare"}`, f.buyerID
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation_error",
		},
		{
			name: "listing not found",
			setup: func(f *serverFixture) (string, uuid.UUID) {
				return `{"listingId":"` + uuid.NewString() + `"}`, f.buyerID
			},
			wantStatus: http.StatusNotFound,
			wantCode:   "listing_not_found",
		},
		{
			name: "listing sold",
			setup: func(f *serverFixture) (string, uuid.UUID) {
				f.listings.Listing(f.listing.ID).Status = listing.StatusSold
				return `{"listingId":"` + f.listing.ID.String() + `"}`, f.buyerID
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "listing_unavailable",
		},
		{
			name: "seller buying own horse",
			setup: func(f *serverFixture) (string, uuid.UUID) {
				return `{"listingId":"` + f.listing.ID.String() + `"}`, f.sellerID
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "self_purchase",
		},
		{
			name: "offer still pending",
			setup: func(f *serverFixture) (string, uuid.UUID) {
				offer := testutil.NewTestOffer(f.listing, f.buyerID, 900_000, listing.OfferPending)
				f.listings.AddOffer(offer)
				return `{"listingId":"` + f.listing.ID.String() + `","offerId":"` + offer.ID.String() + `"}`, f.buyerID
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_offer",
		},
		{
			name: "seller payouts disabled",
			setup: func(f *serverFixture) (string, uuid.UUID) {
				f.payouts.AddAccount(testutil.NewTestPayoutAccount(f.sellerID, false))
				return `{"listingId":"` + f.listing.ID.String() + `"}`, f.buyerID
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "seller_setup_incomplete",
		},
		{
			name: "provider down",
			setup: func(f *serverFixture) (string, uuid.UUID) {
				f.provider.CreatePaymentIntentFunc = func(context.Context, providers.CreateIntentRequest) (*providers.Intent, error) {
					return nil, domainErrors.ErrProviderUnavailable
				}
				return `{"listingId":"` + f.listing.ID.String() + `"}`, f.buyerID
			},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "provider_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServerFixture(t)
			body, user := tt.setup(f)

			w := f.do(t, "POST", "/payments/create-intent", []byte(body), &user, nil)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, decodeBody[ErrorResponse](t, w).Code)
			assert.Nil(t, f.intents.Record("pi_test_1"))
		})
	}
}

func TestCreateIntent_IdempotencyKeyReplays(t *testing.T) {
	f := newServerFixture(t)
	body := []byte(`{"listingId":"` + f.listing.ID.String() + `"}`)
	headers := map[string]string{"Idempotency-Key": "checkout-42"}

	first := f.do(t, "POST", "/payments/create-intent", body, &f.buyerID, headers)
	second := f.do(t, "POST", "/payments/create-intent", body, &f.buyerID, headers)

	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Len(t, f.provider.Requests, 1)
	assert.Equal(t, f.buyerID.String()+":checkout-42", f.provider.Requests[0].IdempotencyKey)
	assert.Equal(t, 1, f.idempotency.Len())
}

func TestFees(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(t, "GET", "/payments/fees?amount=10000", nil, nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[FeeQuoteResponse](t, w)
	assert.Equal(t, int64(10_000), resp.Gross)
	assert.Equal(t, int64(500), resp.PlatformFee)
	assert.Equal(t, int64(320), resp.ProcessorFee)
	assert.Equal(t, int64(9_180), resp.SellerReceives)
	assert.Equal(t, int64(50_000), resp.PlatformRatePPM)
	assert.Equal(t, int64(29_000), resp.ProcessorRatePPM)
	assert.Equal(t, int64(30), resp.ProcessorFixedCents)
}

func TestFees_InvalidAmount(t *testing.T) {
	f := newServerFixture(t)

	for _, q := range []string{"", "?amount=0", "?amount=-5", "?amount=12.50", "?amount=lots"} {
		w := f.do(t, "GET", "/payments/fees"+q, nil, nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.Equal(t, "validation_error", decodeBody[ErrorResponse](t, w).Code, q)
	}
}

func (f *serverFixture) seedTransaction(t *testing.T) *escrow.Transaction {
	t.Helper()
	tx := &escrow.Transaction{
		ID:              uuid.New(),
		ListingID:       f.listing.ID,
		BuyerID:         f.buyerID,
		SellerID:        f.sellerID,
		ListingPrice:    1_000_000,
		FinalPrice:      1_000_000,
		PlatformFee:     50_000,
		SellerReceives:  920_970,
		PaymentIntentID: "pi_seeded",
		Currency:        "usd",
		Status:          escrow.StatusPaymentHeld,
		EscrowReleaseAt: testutil.FixedNow.AddDate(0, 0, 7),
		CreatedAt:       testutil.FixedNow,
		UpdatedAt:       testutil.FixedNow,
	}
	created, err := f.txns.Create(context.Background(), tx)
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, f.txns.AddEvent(context.Background(), &escrow.Event{
		ID:             uuid.New(),
		TransactionID:  tx.ID,
		EventType:      escrow.EventPaymentSucceeded,
		PreviousStatus: escrow.StatusPending,
		NewStatus:      escrow.StatusPaymentHeld,
		ActorID:        f.buyerID,
		CreatedAt:      testutil.FixedNow,
	}))
	return tx
}

func TestGetTransaction(t *testing.T) {
	f := newServerFixture(t)
	tx := f.seedTransaction(t)
	stranger := uuid.New()

	tests := []struct {
		name       string
		path       string
		user       uuid.UUID
		wantStatus int
	}{
		{"buyer", "/transactions/" + tx.ID.String(), f.buyerID, http.StatusOK},
		{"seller", "/transactions/" + tx.ID.String(), f.sellerID, http.StatusOK},
		{"stranger", "/transactions/" + tx.ID.String(), stranger, http.StatusForbidden},
		{"unknown id", "/transactions/" + uuid.NewString(), f.buyerID, http.StatusNotFound},
		{"malformed id", "/transactions/abc", f.buyerID, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, "GET", tt.path, nil, &tt.user, nil)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			if tt.wantStatus == http.StatusOK {
				resp := decodeBody[TransactionResponse](t, w)
				assert.Equal(t, tx.ID.String(), resp.ID)
				assert.Equal(t, "payment_held", resp.Status)
				require.Len(t, resp.Events, 1)
				assert.Equal(t, "payment_succeeded", resp.Events[0].EventType)
			}
		})
	}
}
