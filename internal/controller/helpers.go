package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
)

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings is checked in order; the first match wins. The response
// message is the sentinel's text so wrapped details are not leaked.
var errorMappings = []errorMapping{
	{domainErrors.ErrListingNotFound, http.StatusNotFound, "listing_not_found"},
	{domainErrors.ErrTransactionNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrListingUnavailable, http.StatusBadRequest, "listing_unavailable"},
	{domainErrors.ErrSelfPurchase, http.StatusBadRequest, "self_purchase"},
	{domainErrors.ErrInvalidOffer, http.StatusBadRequest, "invalid_offer"},
	{domainErrors.ErrOfferAlreadyPaid, http.StatusBadRequest, "offer_already_paid"},
	{domainErrors.ErrSellerSetupIncomplete, http.StatusBadRequest, "seller_setup_incomplete"},
	{domainErrors.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{domainErrors.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature"},
	{domainErrors.ErrInvalidEventPayload, http.StatusBadRequest, "invalid_payload"},
	{domainErrors.ErrEventProcessing, http.StatusInternalServerError, "event_processing_failed"},
	{domainErrors.ErrProviderRejected, http.StatusBadGateway, "provider_rejected"},
	{domainErrors.ErrProviderUnavailable, http.StatusServiceUnavailable, "provider_unavailable"},
	{domainErrors.ErrProviderTimeout, http.StatusGatewayTimeout, "provider_timeout"},
	{domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domainErrors.ErrForbidden, http.StatusForbidden, "forbidden"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			resp.Error = m.err.Error()
			if m.status >= http.StatusInternalServerError {
				log.Error().Err(err).Str("code", m.code).Msg("request failed")
			}
			writeJSON(w, m.status, resp)
			return
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		resp.Error = domainErr.Message
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}
