package testutil

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/listing"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/payout"
)

// FixedNow is the reference instant used by tests with a fixed clock.
var FixedNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

func NewTestListing(sellerID uuid.UUID, priceCents int64) *listing.Listing {
	return &listing.Listing{
		ID:         uuid.New(),
		SellerID:   sellerID,
		Title:      "Bay Quarter Horse Mare",
		PriceCents: priceCents,
		Status:     listing.StatusActive,
		UpdatedAt:  FixedNow,
	}
}

func NewTestOffer(l *listing.Listing, buyerID uuid.UUID, amountCents int64, status listing.OfferStatus) *listing.Offer {
	return &listing.Offer{
		ID:          uuid.New(),
		ListingID:   l.ID,
		BuyerID:     buyerID,
		SellerID:    l.SellerID,
		AmountCents: amountCents,
		Status:      status,
		CreatedAt:   FixedNow,
		UpdatedAt:   FixedNow,
	}
}

func NewTestPayoutAccount(userID uuid.UUID, enabled bool) *payout.Account {
	return &payout.Account{
		UserID:            userID,
		ExternalAccountID: "acct_" + userID.String()[:8],
		Capabilities: payout.Capabilities{
			ChargesEnabled:   enabled,
			PayoutsEnabled:   enabled,
			DetailsSubmitted: enabled,
		},
		UpdatedAt: FixedNow,
	}
}

// WebhookEvent builds a provider event envelope around object.
func WebhookEvent(id, eventType string, created time.Time, object map[string]any) []byte {
	body, err := json.Marshal(map[string]any{
		"id":      id,
		"type":    eventType,
		"created": created.Unix(),
		"data":    map[string]any{"object": object},
	})
	if err != nil {
		panic(err)
	}
	return body
}
