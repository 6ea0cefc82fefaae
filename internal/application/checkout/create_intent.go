// Package checkout issues payment intents for listings and serves the
// transaction read model.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sfutchko/giddyapp-sub002/internal/clock"
	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/escrow"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/fee"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/listing"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/payment"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/payout"
	"github.com/sfutchko/giddyapp-sub002/internal/infrastructure/observability"
	"github.com/sfutchko/giddyapp-sub002/internal/infrastructure/providers"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CreateIntentRequest holds the input for starting a checkout.
type CreateIntentRequest struct {
	ListingID uuid.UUID
	BuyerID   uuid.UUID
	OfferID   *uuid.UUID
	// IdempotencyKey is forwarded to the provider, scoped to the buyer.
	IdempotencyKey string
}

// CreateIntentResponse is returned to the buyer's client to confirm payment.
type CreateIntentResponse struct {
	ClientSecret    string
	PaymentIntentID string
	Amount          int64
	PlatformFee     int64
	SellerReceives  int64
	Currency        string
	Breakdown       fee.Breakdown
}

// CreateIntentUseCase validates a purchase and opens a payment intent.
type CreateIntentUseCase struct {
	listings listing.Repository
	payouts  payout.Repository
	intents  payment.Repository
	txns     escrow.Repository
	provider IntentCreator
	fees     fee.Schedule
	currency string
	clock    clock.Clock
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

func NewCreateIntentUseCase(
	listings listing.Repository,
	payouts payout.Repository,
	intents payment.Repository,
	txns escrow.Repository,
	provider IntentCreator,
	fees fee.Schedule,
	currency string,
	clk clock.Clock,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *CreateIntentUseCase {
	return &CreateIntentUseCase{
		listings: listings,
		payouts:  payouts,
		intents:  intents,
		txns:     txns,
		provider: provider,
		fees:     fees,
		currency: currency,
		clock:    clk,
		metrics:  metrics,
		logger:   logger.With().Str("component", "checkout").Logger(),
	}
}

// Execute runs the checks in a fixed order and stops at the first failure.
func (uc *CreateIntentUseCase) Execute(ctx context.Context, req CreateIntentRequest) (*CreateIntentResponse, error) {
	ctx, span := observability.Tracer("checkout").Start(ctx, "checkout.CreateIntent")
	defer span.End()
	span.SetAttributes(
		attribute.String("listing_id", req.ListingID.String()),
		attribute.String("buyer_id", req.BuyerID.String()),
	)

	resp, reason, err := uc.execute(ctx, req)
	if err != nil {
		uc.metrics.IntentFailures.WithLabelValues(reason).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		return nil, err
	}
	span.SetAttributes(attribute.String("payment_intent_id", resp.PaymentIntentID))
	return resp, nil
}

func (uc *CreateIntentUseCase) execute(ctx context.Context, req CreateIntentRequest) (*CreateIntentResponse, string, error) {
	l, err := uc.listings.GetByID(ctx, req.ListingID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrListingNotFound) {
			return nil, "listing_not_found", err
		}
		return nil, "internal", fmt.Errorf("load listing: %w", err)
	}
	// Self purchase is rejected whatever the listing status.
	if l.SellerID == req.BuyerID {
		return nil, "self_purchase", domainErrors.ErrSelfPurchase
	}
	if !l.AcceptsPayment() {
		return nil, "listing_unavailable", domainErrors.ErrListingUnavailable
	}

	finalPrice := l.PriceCents
	source := "listing"
	if req.OfferID != nil {
		o, err := uc.listings.GetOffer(ctx, *req.OfferID)
		if err != nil {
			if errors.Is(err, domainErrors.ErrInvalidOffer) {
				return nil, "invalid_offer", err
			}
			return nil, "internal", fmt.Errorf("load offer: %w", err)
		}
		if !o.PayableBy(l.ID, req.BuyerID) {
			return nil, "invalid_offer", domainErrors.ErrInvalidOffer
		}
		paid, err := uc.txns.ExistsForOffer(ctx, o.ID)
		if err != nil {
			return nil, "internal", fmt.Errorf("check offer transaction: %w", err)
		}
		if paid {
			return nil, "offer_already_paid", domainErrors.ErrOfferAlreadyPaid
		}
		finalPrice = o.AmountCents
		source = "offer"
	}

	acct, err := uc.payouts.GetByUserID(ctx, l.SellerID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrPayoutAccountMissing) {
			return nil, "seller_setup_incomplete", domainErrors.ErrSellerSetupIncomplete
		}
		return nil, "internal", fmt.Errorf("load payout account: %w", err)
	}
	if !acct.CanReceivePayments() {
		return nil, "seller_setup_incomplete", domainErrors.ErrSellerSetupIncomplete
	}

	breakdown, err := uc.fees.Calculate(finalPrice)
	if err != nil {
		return nil, "invalid_amount", err
	}
	md := payment.NewIntentMetadata(l.ID, req.BuyerID, l.SellerID, acct.ExternalAccountID, req.OfferID, l.PriceCents, breakdown)

	providerReq := providers.CreateIntentRequest{
		AmountCents: breakdown.Gross,
		Currency:    uc.currency,
		Metadata:    md.ToMap(),
	}
	if req.IdempotencyKey != "" {
		providerReq.IdempotencyKey = req.BuyerID.String() + ":" + req.IdempotencyKey
	}
	in, err := uc.provider.CreatePaymentIntent(ctx, providerReq)
	if err != nil {
		uc.logger.Error().Err(err).
			Str("listing_id", l.ID.String()).
			Str("buyer_id", req.BuyerID.String()).
			Msg("provider rejected payment intent")
		return nil, "provider", fmt.Errorf("create payment intent: %w", err)
	}

	rec := payment.NewIntentRecord(in.ID, in.ClientSecret, payment.IntentStatus(in.Status), md, uc.currency, uc.clock.Now())
	if err := uc.intents.Create(ctx, rec); err != nil && !errors.Is(err, domainErrors.ErrDuplicateIntent) {
		// The intent exists at the provider; the succeeded webhook upserts the record.
		uc.metrics.IntentPersistFails.Inc()
		uc.logger.Error().Err(err).
			Str("payment_intent_id", in.ID).
			Str("listing_id", l.ID.String()).
			Msg("failed to store payment intent record")
	}

	uc.metrics.IntentsCreated.WithLabelValues(source).Inc()
	uc.metrics.FeesCollected.WithLabelValues("platform").Add(float64(breakdown.PlatformFee))
	uc.metrics.FeesCollected.WithLabelValues("processor").Add(float64(breakdown.ProcessorFee))

	uc.logger.Info().
		Str("payment_intent_id", in.ID).
		Str("listing_id", l.ID.String()).
		Int64("amount", breakdown.Gross).
		Str("price_source", source).
		Msg("payment intent created")

	return &CreateIntentResponse{
		ClientSecret:    in.ClientSecret,
		PaymentIntentID: in.ID,
		Amount:          breakdown.Gross,
		PlatformFee:     breakdown.PlatformFee,
		SellerReceives:  breakdown.SellerNet,
		Currency:        uc.currency,
		Breakdown:       breakdown,
	}, "", nil
}
