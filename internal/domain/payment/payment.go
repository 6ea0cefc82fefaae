package payment

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/fee"
)

// IntentStatus mirrors the provider's payment intent status.
type IntentStatus string

const (
	StatusRequiresPaymentMethod IntentStatus = "requires_payment_method"
	StatusRequiresConfirmation  IntentStatus = "requires_confirmation"
	StatusRequiresAction        IntentStatus = "requires_action"
	StatusProcessing            IntentStatus = "processing"
	StatusSucceeded             IntentStatus = "succeeded"
	StatusFailed                IntentStatus = "payment_failed"
	StatusCanceled              IntentStatus = "canceled"
)

// Amount represents a monetary amount in the smallest currency unit (e.g. cents).
type Amount struct {
	ValueCents int64
	Currency   string
}

// String returns a human-readable representation of the amount, e.g. "$12.50".
func (a Amount) String() string {
	sign := ""
	cents := uint64(a.ValueCents)
	if a.ValueCents < 0 {
		sign = "-"
		cents = uint64(-a.ValueCents)
	}
	whole, frac := cents/100, cents%100
	if strings.EqualFold(a.Currency, "usd") {
		return fmt.Sprintf("%s$%d.%02d", sign, whole, frac)
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, whole, frac, strings.ToUpper(a.Currency))
}

// Validate checks that the amount is valid.
func (a Amount) Validate() error {
	if a.ValueCents <= 0 {
		return errors.NewValidationError("amount", "must be greater than 0")
	}
	if len(a.Currency) != 3 {
		return errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}
	return nil
}

// IntentRecord is the local cache of a provider payment intent. It is created
// at checkout with the fee snapshot and updated from webhooks.
type IntentRecord struct {
	ID               uuid.UUID
	ExternalID       string
	ListingID        uuid.UUID
	BuyerID          uuid.UUID
	SellerID         uuid.UUID
	OfferID          *uuid.UUID
	ListingPrice     int64
	Amount           Amount
	PlatformFeeCents int64
	SellerNetCents   int64
	Status           IntentStatus
	ClientSecret     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewIntentRecord builds a record from checkout metadata and the provider response.
func NewIntentRecord(externalID, clientSecret string, status IntentStatus, md IntentMetadata, currency string, now time.Time) *IntentRecord {
	return &IntentRecord{
		ID:               uuid.New(),
		ExternalID:       externalID,
		ListingID:        md.ListingID,
		BuyerID:          md.BuyerID,
		SellerID:         md.SellerID,
		OfferID:          md.OfferID,
		ListingPrice:     md.ListingPrice,
		Amount:           Amount{ValueCents: md.FinalPrice, Currency: currency},
		PlatformFeeCents: md.PlatformFee,
		SellerNetCents:   md.SellerNet,
		Status:           status,
		ClientSecret:     clientSecret,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// IntentMetadata is the fixed-shape record attached to a provider intent so
// webhooks can reconcile without reading back application state.
type IntentMetadata struct {
	ListingID       uuid.UUID
	BuyerID         uuid.UUID
	SellerID        uuid.UUID
	SellerAccountID string
	OfferID         *uuid.UUID
	ListingPrice    int64
	FinalPrice      int64
	PlatformFee     int64
	ProcessorFee    int64
	SellerNet       int64
}

const (
	keyListingID       = "listing_id"
	keyBuyerID         = "buyer_id"
	keySellerID        = "seller_id"
	keySellerAccountID = "seller_account_id"
	keyOfferID         = "offer_id"
	keyListingPrice    = "listing_price"
	keyFinalPrice      = "final_price"
	keyPlatformFee     = "platform_fee"
	keyProcessorFee    = "processor_fee"
	keySellerNet       = "seller_receives"
)

// NewIntentMetadata snapshots a fee breakdown for a checkout.
func NewIntentMetadata(listingID, buyerID, sellerID uuid.UUID, sellerAccountID string, offerID *uuid.UUID, listingPrice int64, b fee.Breakdown) IntentMetadata {
	return IntentMetadata{
		ListingID:       listingID,
		BuyerID:         buyerID,
		SellerID:        sellerID,
		SellerAccountID: sellerAccountID,
		OfferID:         offerID,
		ListingPrice:    listingPrice,
		FinalPrice:      b.Gross,
		PlatformFee:     b.PlatformFee,
		ProcessorFee:    b.ProcessorFee,
		SellerNet:       b.SellerNet,
	}
}

// ToMap flattens the metadata to the provider's string map. An absent offer
// is encoded as the empty string.
func (m IntentMetadata) ToMap() map[string]string {
	offer := ""
	if m.OfferID != nil {
		offer = m.OfferID.String()
	}
	return map[string]string{
		keyListingID:       m.ListingID.String(),
		keyBuyerID:         m.BuyerID.String(),
		keySellerID:        m.SellerID.String(),
		keySellerAccountID: m.SellerAccountID,
		keyOfferID:         offer,
		keyListingPrice:    formatCents(m.ListingPrice),
		keyFinalPrice:      formatCents(m.FinalPrice),
		keyPlatformFee:     formatCents(m.PlatformFee),
		keyProcessorFee:    formatCents(m.ProcessorFee),
		keySellerNet:       formatCents(m.SellerNet),
	}
}

// ParseIntentMetadata is the inverse of ToMap. Every field except the offer
// and seller account reference is required.
func ParseIntentMetadata(raw map[string]string) (IntentMetadata, error) {
	var (
		md  IntentMetadata
		err error
	)
	if md.ListingID, err = parseID(raw, keyListingID); err != nil {
		return md, err
	}
	if md.BuyerID, err = parseID(raw, keyBuyerID); err != nil {
		return md, err
	}
	if md.SellerID, err = parseID(raw, keySellerID); err != nil {
		return md, err
	}
	md.SellerAccountID = raw[keySellerAccountID]

	if s := raw[keyOfferID]; s != "" {
		id, perr := uuid.Parse(s)
		if perr != nil {
			return md, fmt.Errorf("%s: %w", keyOfferID, errors.ErrInvalidMetadata)
		}
		md.OfferID = &id
	}

	for key, dst := range map[string]*int64{
		keyListingPrice: &md.ListingPrice,
		keyFinalPrice:   &md.FinalPrice,
		keyPlatformFee:  &md.PlatformFee,
		keyProcessorFee: &md.ProcessorFee,
		keySellerNet:    &md.SellerNet,
	} {
		if *dst, err = parseCents(raw, key); err != nil {
			return md, err
		}
	}
	return md, nil
}

func parseID(raw map[string]string, key string) (uuid.UUID, error) {
	s, ok := raw[key]
	if !ok || s == "" {
		return uuid.Nil, fmt.Errorf("%s missing: %w", key, errors.ErrInvalidMetadata)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", key, errors.ErrInvalidMetadata)
	}
	return id, nil
}

func parseCents(raw map[string]string, key string) (int64, error) {
	s, ok := raw[key]
	if !ok || s == "" {
		return 0, fmt.Errorf("%s missing: %w", key, errors.ErrInvalidMetadata)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, errors.ErrInvalidMetadata)
	}
	return v, nil
}

func formatCents(v int64) string {
	return strconv.FormatInt(v, 10)
}
