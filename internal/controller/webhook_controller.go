package controller

import (
	"io"
	"net/http"

	"github.com/sfutchko/giddyapp-sub002/internal/application/webhook"
	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/sfutchko/giddyapp-sub002/internal/infrastructure/providers"
)

const maxWebhookBodySize = 1 << 20

// WebhookController receives provider event deliveries.
type WebhookController struct {
	processor *webhook.Processor
}

func NewWebhookController(processor *webhook.Processor) *WebhookController {
	return &WebhookController{processor: processor}
}

// Receive handles POST /webhooks/payments. The raw body is needed for the
// signature check, so it is read before any decoding.
func (h *WebhookController) Receive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		writeError(w, domainErrors.ErrInvalidEventPayload)
		return
	}

	if _, err := h.processor.Process(r.Context(), payload, r.Header.Get(providers.SignatureHeader)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
