package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
)

// StripeProvider calls a Stripe-compatible REST API.
type StripeProvider struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewStripeProvider(baseURL, secretKey string, httpClient *http.Client) *StripeProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &StripeProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: httpClient,
	}
}

func (p *StripeProvider) Name() string { return "stripe" }

type stripeIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("automatic_payment_methods[enabled]", "true")

	keys := make([]string, 0, len(req.Metadata))
	for k := range req.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		form.Set("metadata["+k+"]", req.Metadata[k])
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.secretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", domainErrors.ErrProviderTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domainErrors.ErrProviderUnavailable, err)
	}

	if resp.StatusCode >= 300 {
		var se stripeError
		_ = json.Unmarshal(body, &se)
		msg := se.Error.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %d %s", domainErrors.ErrProviderUnavailable, resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("%w: %d %s", domainErrors.ErrProviderRejected, resp.StatusCode, msg)
	}

	var si stripeIntent
	if err := json.Unmarshal(body, &si); err != nil {
		return nil, fmt.Errorf("%w: decode intent: %v", domainErrors.ErrProviderUnavailable, err)
	}
	if si.ID == "" || si.ClientSecret == "" {
		return nil, fmt.Errorf("%w: intent response missing id or client secret", domainErrors.ErrProviderUnavailable)
	}

	return &Intent{
		ID:           si.ID,
		ClientSecret: si.ClientSecret,
		Status:       si.Status,
		AmountCents:  si.Amount,
		Currency:     si.Currency,
	}, nil
}
