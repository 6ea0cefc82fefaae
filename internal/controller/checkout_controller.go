package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sfutchko/giddyapp-sub002/internal/application/checkout"
	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	customMW "github.com/sfutchko/giddyapp-sub002/internal/middleware"
)

// CheckoutController serves checkout and transaction endpoints.
type CheckoutController struct {
	createIntent   *checkout.CreateIntentUseCase
	getTransaction *checkout.GetTransactionUseCase
	fees           *checkout.FeeQuoter
}

func NewCheckoutController(
	createIntent *checkout.CreateIntentUseCase,
	getTransaction *checkout.GetTransactionUseCase,
	fees *checkout.FeeQuoter,
) *CheckoutController {
	return &CheckoutController{
		createIntent:   createIntent,
		getTransaction: getTransaction,
		fees:           fees,
	}
}

// CreateIntent handles POST /payments/create-intent
func (h *CheckoutController) CreateIntent(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := customMW.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	var req CreateIntentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	// Both ids passed the uuid validator.
	in := checkout.CreateIntentRequest{
		ListingID:      *parseUUID(req.ListingID),
		BuyerID:        buyerID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	if req.OfferID != nil && *req.OfferID != "" {
		in.OfferID = parseUUID(*req.OfferID)
	}

	resp, err := h.createIntent.Execute(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromCreateIntent(resp))
}

// Fees handles GET /payments/fees?amount=<cents>
func (h *CheckoutController) Fees(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil || amount <= 0 {
		writeError(w, domainErrors.NewValidationError("amount", "must be a positive integer amount in cents"))
		return
	}

	b, err := h.fees.Quote(amount)
	if err != nil {
		writeError(w, err)
		return
	}
	s := h.fees.Schedule()
	writeJSON(w, http.StatusOK, FeeQuoteResponse{
		FeeBreakdownResponse: FromBreakdown(b),
		PlatformRatePPM:      s.PlatformRatePPM,
		ProcessorRatePPM:     s.ProcessorRatePPM,
		ProcessorFixedCents:  s.ProcessorFixedCents,
	})
}

// GetTransaction handles GET /transactions/{id}
func (h *CheckoutController) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := customMW.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	id := parseUUID(chi.URLParam(r, "id"))
	if id == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid transaction id", Code: "invalid_id"})
		return
	}

	view, err := h.getTransaction.Execute(r.Context(), *id, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromTransaction(view))
}
