package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
)

// SignatureHeader carries "t=<unix>,v1=<hex hmac>" on webhook deliveries.
const SignatureHeader = "Stripe-Signature"

// SignPayload returns a signature header value for payload at ts.
func SignPayload(payload []byte, secret string, ts time.Time) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + t + ",v1=" + computeSignature(payload, secret, t)
}

// VerifySignature checks header against payload. The timestamp must be within
// tolerance of now; any one matching v1 entry is accepted.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("%w: no signing secret configured", domainErrors.ErrInvalidSignature)
	}
	if header == "" {
		return fmt.Errorf("%w: missing signature header", domainErrors.ErrInvalidSignature)
	}

	var (
		ts         string
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			signatures = append(signatures, v)
		}
	}
	if ts == "" || len(signatures) == 0 {
		return fmt.Errorf("%w: malformed signature header", domainErrors.ErrInvalidSignature)
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", domainErrors.ErrInvalidSignature)
	}
	age := now.Sub(time.Unix(unix, 0))
	if tolerance > 0 && (age > tolerance || age < -tolerance) {
		return fmt.Errorf("%w: timestamp outside tolerance", domainErrors.ErrInvalidSignature)
	}

	expected := []byte(computeSignature(payload, secret, ts))
	for _, sig := range signatures {
		if hmac.Equal(expected, []byte(sig)) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching signature", domainErrors.ErrInvalidSignature)
}

func computeSignature(payload []byte, secret, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
