package stoploss

import (
	"fmt"

	"github.com/raykavin/trailstop/core"
)

// QuantityCalculator derives the quantity of a protective order from the
// account balance, applying either the keep-threshold policy or the
// fee-adjusted full-sell policy.
type QuantityCalculator struct {
	keep      *core.Offset
	fees      core.FeeSettings
	margin    bool
	precision int
}

// NewQuantityCalculator builds a calculator from the engine settings.
func NewQuantityCalculator(settings *core.Settings) *QuantityCalculator {
	return &QuantityCalculator{
		keep:      settings.KeepThreshold,
		fees:      settings.Fees,
		margin:    settings.IsMarginExchange(),
		precision: settings.PrecisionCrypto,
	}
}

// Quantity computes the order quantity from the total and free balance of the
// base asset.
//
// With a keep threshold the amount to keep is resolved against the total
// balance and subtracted from the free balance. A keep amount larger than the
// free balance is a configuration error the engine must not paper over by
// clamping, so it is returned as a fatal core.ErrKeepThresholdExceeded.
//
// Without a keep threshold the full free balance is sold minus the effective
// trading fee, so the order never exceeds what the account can deliver. The
// amount is left unrounded; formatting to the venue's step size happens at
// submission.
func (c *QuantityCalculator) Quantity(total, free float64) (float64, error) {
	if c.keep != nil {
		keep := c.keep.Value
		if c.keep.Percent {
			keep = total / 100 * c.keep.Value
		}

		if keep > free {
			return 0, fmt.Errorf("%w: keep %f, free %f", core.ErrKeepThresholdExceeded, keep, free)
		}

		return FloorTo(free-keep, c.precision), nil
	}

	return free / 100 * (100 - c.effectiveFee()), nil
}

// effectiveFee returns the trading fee percentage after the account-type
// discount. Margin accounts get the margin discount applied to the base fee.
func (c *QuantityCalculator) effectiveFee() float64 {
	fee := c.fees.TradingFeePercent
	if c.margin {
		fee = fee / 100 * (100 - c.fees.MarginDiscountPercent)
	}
	return fee
}
