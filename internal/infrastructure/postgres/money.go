package postgres

import (
	"fmt"
	"strings"

	"github.com/sfutchko/giddyapp-sub002/internal/domain/fee"
	"github.com/shopspring/decimal"
)

// Marketplace prices are NUMERIC(12,2) in major units; the payment tables
// store integer cents. These helpers convert at the column boundary.

func numericStringToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty numeric string")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return fee.CentsFromDecimal(d)
}

func nullableNumericToCents(s *string) (*int64, error) {
	if s == nil {
		return nil, nil
	}
	c, err := numericStringToCents(*s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func centsToNumericString(cents int64) string {
	return fee.DecimalFromCents(cents).StringFixed(2)
}
