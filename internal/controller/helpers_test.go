package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		payload      any
		expectedBody string
	}{
		{
			name:         "simple map",
			status:       http.StatusOK,
			payload:      map[string]string{"message": "hello"},
			expectedBody: `{"message":"hello"}`,
		},
		{
			name:         "struct",
			status:       http.StatusCreated,
			payload:      struct{ ID string }{ID: "123"},
			expectedBody: `{"ID":"123"}`,
		},
		{
			name:         "error response",
			status:       http.StatusBadRequest,
			payload:      ErrorResponse{Error: "listing not found", Code: "listing_not_found"},
			expectedBody: `{"error":"listing not found","code":"listing_not_found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeJSON(w, tt.status, tt.payload)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestWriteError_ValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	err := domainErrors.NewValidationError("amount", "must be a positive integer amount in cents")

	writeError(w, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	json.NewDecoder(w.Body).Decode(&response)
	assert.Equal(t, "validation_error", response.Code)
	assert.Contains(t, response.Error, "amount")
}

func TestWriteError_DomainErrors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"listing not found", domainErrors.ErrListingNotFound, http.StatusNotFound, "listing_not_found"},
		{"transaction not found", domainErrors.ErrTransactionNotFound, http.StatusNotFound, "not_found"},
		{"listing unavailable", domainErrors.ErrListingUnavailable, http.StatusBadRequest, "listing_unavailable"},
		{"self purchase", domainErrors.ErrSelfPurchase, http.StatusBadRequest, "self_purchase"},
		{"invalid offer", domainErrors.ErrInvalidOffer, http.StatusBadRequest, "invalid_offer"},
		{"offer already paid", domainErrors.ErrOfferAlreadyPaid, http.StatusBadRequest, "offer_already_paid"},
		{"seller setup incomplete", domainErrors.ErrSellerSetupIncomplete, http.StatusBadRequest, "seller_setup_incomplete"},
		{"invalid signature", domainErrors.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature"},
		{"invalid payload", domainErrors.ErrInvalidEventPayload, http.StatusBadRequest, "invalid_payload"},
		{"event processing", domainErrors.ErrEventProcessing, http.StatusInternalServerError, "event_processing_failed"},
		{"provider rejected", domainErrors.ErrProviderRejected, http.StatusBadGateway, "provider_rejected"},
		{"provider unavailable", domainErrors.ErrProviderUnavailable, http.StatusServiceUnavailable, "provider_unavailable"},
		{"provider timeout", domainErrors.ErrProviderTimeout, http.StatusGatewayTimeout, "provider_timeout"},
		{"unauthorized", domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", domainErrors.ErrForbidden, http.StatusForbidden, "forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response ErrorResponse
			err := json.NewDecoder(w.Body).Decode(&response)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCode, response.Code)
		})
	}
}

func TestWriteError_WrappedErrorHidesDetail(t *testing.T) {
	w := httptest.NewRecorder()
	err := fmt.Errorf("%w: %w", domainErrors.ErrEventProcessing, errors.New("pq: connection reset"))

	writeError(w, err)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response ErrorResponse
	json.NewDecoder(w.Body).Decode(&response)
	assert.Equal(t, "webhook event processing failed", response.Error)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestWriteError_GenericDomainError(t *testing.T) {
	w := httptest.NewRecorder()
	err := domainErrors.NewDomainError("escrow_hold_active", "funds are still held in escrow", nil)

	writeError(w, err)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var response ErrorResponse
	json.NewDecoder(w.Body).Decode(&response)
	assert.Equal(t, "escrow_hold_active", response.Code)
	assert.Equal(t, "funds are still held in escrow", response.Error)
}

func TestWriteError_UnknownError_FallbackToInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()
	err := errors.New("unexpected error")

	writeError(w, err)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response ErrorResponse
	json.NewDecoder(w.Body).Decode(&response)
	assert.Equal(t, "internal_error", response.Code)
	assert.Equal(t, "internal server error", response.Error)
}

func TestDecodeAndValidate_Success(t *testing.T) {
	body := `{"listingId":"6f1c1a4e-4a43-4b39-9b4e-6d0b7f6f2c11"}`
	req := httptest.NewRequest("POST", "/payments/create-intent", strings.NewReader(body))

	var result CreateIntentRequest
	err := decodeAndValidate(req, &result)

	require.NoError(t, err)
	assert.Equal(t, "6f1c1a4e-4a43-4b39-9b4e-6d0b7f6f2c11", result.ListingID)
	assert.Nil(t, result.OfferID)
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/payments/create-intent", strings.NewReader(`{invalid json}`))

	var result CreateIntentRequest
	err := decodeAndValidate(req, &result)

	var validationErr *domainErrors.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "body", validationErr.Field)
	assert.Contains(t, validationErr.Message, "invalid JSON")
}

func TestDecodeAndValidate_ReportsFailingField(t *testing.T) {
	body := `{"listingId":"6f1c1a4e-4a43-4b39-9b4e-6d0b7f6f2c11","offerId":"offer-7"}`
	req := httptest.NewRequest("POST", "/payments/create-intent", strings.NewReader(body))

	var result CreateIntentRequest
	err := decodeAndValidate(req, &result)

	var validationErr *domainErrors.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "OfferID", validationErr.Field)
	assert.Equal(t, "uuid validation failed", validationErr.Message)
}

func TestDecodeAndValidate_EmptyBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/payments/create-intent", bytes.NewReader([]byte{}))

	var result CreateIntentRequest
	assert.Error(t, decodeAndValidate(req, &result))
}

func TestDecodeAndValidate_CreateIntentRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"listing only", `{"listingId":"6f1c1a4e-4a43-4b39-9b4e-6d0b7f6f2c11"}`, false},
		{"with offer", `{"listingId":"6f1c1a4e-4a43-4b39-9b4e-6d0b7f6f2c11","offerId":"0d5b6c9a-1f0e-4b1e-8a55-3a6f2f4d9e01"}`, false},
		{"missing listing", `{}`, true},
		{"listing not a uuid", `{"listingId":"horse-42"}`, true},
		{"offer not a uuid", `{"listingId":"6f1c1a4e-4a43-4b39-9b4e-6d0b7f6f2c11","offerId":"nope"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/payments/create-intent", strings.NewReader(tt.body))

			var dst CreateIntentRequest
			err := decodeAndValidate(req, &dst)
			if tt.wantErr {
				var validationErr *domainErrors.ValidationError
				assert.True(t, errors.As(err, &validationErr))
				return
			}
			assert.NoError(t, err)
		})
	}
}
