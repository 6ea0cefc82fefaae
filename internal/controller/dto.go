package controller

import (
	"time"

	"github.com/google/uuid"
	"github.com/sfutchko/giddyapp-sub002/internal/application/checkout"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/escrow"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/fee"
)

// --- Request DTOs ---
// Amounts on the wire are integer minor units (cents).

// CreateIntentRequest is the body of POST /payments/create-intent.
type CreateIntentRequest struct {
	ListingID string  `json:"listingId" validate:"required,uuid"`
	OfferID   *string `json:"offerId,omitempty" validate:"omitempty,uuid"`
}

// --- Response DTOs ---

// FeeBreakdownResponse is the fee split for a gross amount.
type FeeBreakdownResponse struct {
	Gross          int64 `json:"gross"`
	PlatformFee    int64 `json:"platformFee"`
	ProcessorFee   int64 `json:"processorFee"`
	TotalFees      int64 `json:"totalFees"`
	SellerReceives int64 `json:"sellerReceives"`
	PlatformMargin int64 `json:"platformMargin"`
}

// CreateIntentResponse is returned to the buyer's client to confirm payment.
type CreateIntentResponse struct {
	ClientSecret    string               `json:"clientSecret"`
	PaymentIntentID string               `json:"paymentIntentId"`
	Amount          int64                `json:"amount"`
	PlatformFee     int64                `json:"platformFee"`
	SellerReceives  int64                `json:"sellerReceives"`
	Currency        string               `json:"currency"`
	Fees            FeeBreakdownResponse `json:"fees"`
}

// FeeQuoteResponse previews fees for an amount together with the rates used.
type FeeQuoteResponse struct {
	FeeBreakdownResponse
	PlatformRatePPM     int64 `json:"platformRatePpm"`
	ProcessorRatePPM    int64 `json:"processorRatePpm"`
	ProcessorFixedCents int64 `json:"processorFixedFee"`
}

// TransactionEventResponse is one audit entry.
type TransactionEventResponse struct {
	ID             string         `json:"id"`
	EventType      string         `json:"eventType"`
	PreviousStatus string         `json:"previousStatus"`
	NewStatus      string         `json:"newStatus"`
	Amount         *int64         `json:"amount,omitempty"`
	ActorID        *string        `json:"actorId,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Note           string         `json:"note,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// TransactionResponse is a transaction with its audit trail.
type TransactionResponse struct {
	ID              string                     `json:"id"`
	ListingID       string                     `json:"listingId"`
	BuyerID         string                     `json:"buyerId"`
	SellerID        string                     `json:"sellerId"`
	OfferID         *string                    `json:"offerId,omitempty"`
	ListingPrice    int64                      `json:"listingPrice"`
	FinalPrice      int64                      `json:"finalPrice"`
	PlatformFee     int64                      `json:"platformFee"`
	SellerReceives  int64                      `json:"sellerReceives"`
	PaymentIntentID string                     `json:"paymentIntentId"`
	Currency        string                     `json:"currency"`
	Status          string                     `json:"status"`
	RefundedAmount  int64                      `json:"refundedAmount"`
	EscrowReleaseAt time.Time                  `json:"escrowReleaseAt"`
	CreatedAt       time.Time                  `json:"createdAt"`
	UpdatedAt       time.Time                  `json:"updatedAt"`
	Events          []TransactionEventResponse `json:"events"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

func FromBreakdown(b fee.Breakdown) FeeBreakdownResponse {
	return FeeBreakdownResponse{
		Gross:          b.Gross,
		PlatformFee:    b.PlatformFee,
		ProcessorFee:   b.ProcessorFee,
		TotalFees:      b.TotalFees,
		SellerReceives: b.SellerNet,
		PlatformMargin: b.PlatformMargin,
	}
}

func FromCreateIntent(r *checkout.CreateIntentResponse) *CreateIntentResponse {
	return &CreateIntentResponse{
		ClientSecret:    r.ClientSecret,
		PaymentIntentID: r.PaymentIntentID,
		Amount:          r.Amount,
		PlatformFee:     r.PlatformFee,
		SellerReceives:  r.SellerReceives,
		Currency:        r.Currency,
		Fees:            FromBreakdown(r.Breakdown),
	}
}

// FromTransaction converts a transaction view to its API response.
func FromTransaction(v *checkout.TransactionView) *TransactionResponse {
	t := v.Transaction
	resp := &TransactionResponse{
		ID:              t.ID.String(),
		ListingID:       t.ListingID.String(),
		BuyerID:         t.BuyerID.String(),
		SellerID:        t.SellerID.String(),
		OfferID:         optionalID(t.OfferID),
		ListingPrice:    t.ListingPrice,
		FinalPrice:      t.FinalPrice,
		PlatformFee:     t.PlatformFee,
		SellerReceives:  t.SellerReceives,
		PaymentIntentID: t.PaymentIntentID,
		Currency:        t.Currency,
		Status:          string(t.Status),
		RefundedAmount:  t.RefundedCents,
		EscrowReleaseAt: t.EscrowReleaseAt,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		Events:          make([]TransactionEventResponse, 0, len(v.Events)),
	}
	for _, ev := range v.Events {
		resp.Events = append(resp.Events, fromEvent(ev))
	}
	return resp
}

func fromEvent(ev *escrow.Event) TransactionEventResponse {
	resp := TransactionEventResponse{
		ID:             ev.ID.String(),
		EventType:      string(ev.EventType),
		PreviousStatus: string(ev.PreviousStatus),
		NewStatus:      string(ev.NewStatus),
		Amount:         ev.Amount,
		Metadata:       ev.Metadata,
		Note:           ev.Note,
		CreatedAt:      ev.CreatedAt,
	}
	if ev.ActorID != uuid.Nil {
		id := ev.ActorID.String()
		resp.ActorID = &id
	}
	return resp
}

func optionalID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// parseUUID parses a UUID string, returning nil if invalid.
func parseUUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}
