package webhook

import (
	"encoding/json"
	"fmt"

	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
)

// Event types handled by the processor.
const (
	TypePaymentSucceeded = "payment_intent.succeeded"
	TypePaymentFailed    = "payment_intent.payment_failed"
	TypeAccountUpdated   = "account.updated"
	TypeChargeRefunded   = "charge.refunded"
)

// Event is the provider's delivery envelope.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type paymentIntentObject struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

type accountObject struct {
	ID               string `json:"id"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
}

type chargeObject struct {
	ID             string `json:"id"`
	PaymentIntent  string `json:"payment_intent"`
	Amount         int64  `json:"amount"`
	AmountRefunded int64  `json:"amount_refunded"`
	Refunded       bool   `json:"refunded"`
	Currency       string `json:"currency"`
}

func decodeEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrInvalidEventPayload, err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", domainErrors.ErrInvalidEventPayload)
	}
	return &ev, nil
}

func decodeObject[T any](ev *Event) (*T, error) {
	var obj T
	if len(ev.Data.Object) == 0 {
		return nil, fmt.Errorf("%w: %s has no data.object", domainErrors.ErrInvalidEventPayload, ev.Type)
	}
	if err := json.Unmarshal(ev.Data.Object, &obj); err != nil {
		return nil, fmt.Errorf("%w: %s object: %v", domainErrors.ErrInvalidEventPayload, ev.Type, err)
	}
	return &obj, nil
}

// lockKey returns the payment intent the event refers to, or "" when the
// event is not scoped to an intent.
func (ev *Event) lockKey() (string, error) {
	switch ev.Type {
	case TypePaymentSucceeded, TypePaymentFailed:
		obj, err := decodeObject[paymentIntentObject](ev)
		if err != nil {
			return "", err
		}
		return obj.ID, nil
	case TypeChargeRefunded:
		obj, err := decodeObject[chargeObject](ev)
		if err != nil {
			return "", err
		}
		return obj.PaymentIntent, nil
	}
	return "", nil
}
