package errors

import (
	"errors"
	"fmt"
)

var (
	// Checkout errors
	ErrListingNotFound       = errors.New("listing not found")
	ErrListingUnavailable    = errors.New("listing is no longer available")
	ErrSelfPurchase          = errors.New("cannot purchase your own listing")
	ErrInvalidOffer          = errors.New("invalid or non-accepted offer")
	ErrOfferAlreadyPaid      = errors.New("offer has already been paid")
	ErrSellerSetupIncomplete = errors.New("seller has not completed payment setup")
	ErrInvalidAmount         = errors.New("invalid amount")

	// Payment intent errors
	ErrIntentNotFound       = errors.New("payment intent not found")
	ErrDuplicateIntent      = errors.New("payment intent already recorded")
	ErrPayoutAccountMissing = errors.New("payout account not found")

	// Escrow errors
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrRefundAlreadyApplied   = errors.New("refund already applied")

	// Provider errors
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrProviderRejected    = errors.New("payment rejected by provider")
	ErrProviderTimeout     = errors.New("provider request timeout")

	// Webhook errors
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrInvalidEventPayload = errors.New("invalid webhook event payload")
	ErrInvalidMetadata     = errors.New("invalid payment intent metadata")
	ErrEventProcessing     = errors.New("webhook event processing failed")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
