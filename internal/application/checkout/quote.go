package checkout

import (
	"github.com/sfutchko/giddyapp-sub002/internal/domain/fee"
)

// FeeQuoter previews the fee breakdown shown on a listing before checkout.
type FeeQuoter struct {
	fees fee.Schedule
}

func NewFeeQuoter(fees fee.Schedule) *FeeQuoter {
	return &FeeQuoter{fees: fees}
}

func (q *FeeQuoter) Quote(amountCents int64) (fee.Breakdown, error) {
	return q.fees.Calculate(amountCents)
}

// Schedule returns the configured rates.
func (q *FeeQuoter) Schedule() fee.Schedule {
	return q.fees
}
