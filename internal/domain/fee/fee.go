// Package fee computes the platform and processor fees taken from a sale.
//
// All amounts are integer minor currency units (cents). Rates are stored as
// parts per million so that percentages such as 2.9% are exact.
package fee

import (
	"fmt"
	"math"

	domainErrors "github.com/sfutchko/giddyapp-sub002/internal/domain/errors"
	"github.com/shopspring/decimal"
)

// PPM is one hundred percent expressed in parts per million.
const PPM int64 = 1_000_000

// MaxGross is the largest amount a full-rate fee can be applied to without
// overflowing int64.
const MaxGross = (math.MaxInt64 - PPM/2) / PPM

// Schedule is the fee configuration snapshotted at intent-creation time.
type Schedule struct {
	PlatformRatePPM     int64
	ProcessorRatePPM    int64
	ProcessorFixedCents int64
}

// Breakdown is the result of applying a Schedule to a gross amount.
type Breakdown struct {
	Gross          int64
	PlatformFee    int64
	ProcessorFee   int64
	TotalFees      int64
	SellerNet      int64
	PlatformMargin int64
}

// DefaultSchedule returns 5% platform, 2.9% + 30 processor.
func DefaultSchedule() Schedule {
	return Schedule{
		PlatformRatePPM:     50_000,
		ProcessorRatePPM:    29_000,
		ProcessorFixedCents: 30,
	}
}

// Validate checks the schedule is usable.
func (s Schedule) Validate() error {
	if s.PlatformRatePPM < 0 || s.PlatformRatePPM > PPM {
		return domainErrors.NewValidationError("platform_rate", "must be between 0 and 100 percent")
	}
	if s.ProcessorRatePPM < 0 || s.ProcessorRatePPM > PPM {
		return domainErrors.NewValidationError("processor_rate", "must be between 0 and 100 percent")
	}
	if s.ProcessorFixedCents < 0 {
		return domainErrors.NewValidationError("processor_fixed_fee", "cannot be negative")
	}
	return nil
}

// Calculate applies the schedule to gross. gross must be positive and no
// larger than MaxGross.
func (s Schedule) Calculate(gross int64) (Breakdown, error) {
	if gross <= 0 || gross > MaxGross {
		return Breakdown{}, fmt.Errorf("gross %d: %w", gross, domainErrors.ErrInvalidAmount)
	}

	processorFee := applyRate(gross, s.ProcessorRatePPM) + s.ProcessorFixedCents
	platformFee := applyRate(gross, s.PlatformRatePPM)
	total := platformFee + processorFee

	return Breakdown{
		Gross:          gross,
		PlatformFee:    platformFee,
		ProcessorFee:   processorFee,
		TotalFees:      total,
		SellerNet:      gross - total,
		PlatformMargin: platformFee - processorFee,
	}, nil
}

// applyRate returns round(amount * ppm / 1e6), rounding half up.
func applyRate(amount, ppm int64) int64 {
	return (amount*ppm + PPM/2) / PPM
}

// ParseRate converts a percentage string such as "2.9" into parts per million.
// More than four decimal places cannot be represented and is rejected.
func ParseRate(percent string) (int64, error) {
	d, err := decimal.NewFromString(percent)
	if err != nil {
		return 0, fmt.Errorf("parse rate %q: %w", percent, err)
	}
	scaled := d.Mul(decimal.NewFromInt(PPM / 100))
	if !scaled.IsInteger() {
		return 0, domainErrors.NewValidationError("rate", fmt.Sprintf("%s%% has more than 4 decimal places", percent))
	}
	ppm := scaled.IntPart()
	if ppm < 0 || ppm > PPM {
		return 0, domainErrors.NewValidationError("rate", fmt.Sprintf("%s%% is outside 0-100", percent))
	}
	return ppm, nil
}

// CentsFromDecimal converts a major-unit amount (e.g. 1250.50) to cents.
// Sub-cent precision is an error rather than being truncated.
func CentsFromDecimal(amount decimal.Decimal) (int64, error) {
	cents := amount.Shift(2)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("%s has fractional cents: %w", amount.String(), domainErrors.ErrInvalidAmount)
	}
	return cents.IntPart(), nil
}

// DecimalFromCents is the inverse of CentsFromDecimal.
func DecimalFromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
