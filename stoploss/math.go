// Package stoploss implements the trailing stop loss engine: price tracking,
// quantity policies, the order lifecycle controller, execution report
// handling, and the engine supervisor that ties them together.
package stoploss

import (
	"math"

	"github.com/raykavin/trailstop/core"
)

// FloorTo rounds value down to the given number of decimal places. Rounding
// is always toward zero profit, never up: a stop price or quantity rounded up
// could exceed what the venue accepts or what the account holds.
func FloorTo(value float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Floor(value)
	}

	factor := math.Pow(10, float64(decimals))
	return math.Floor(value*factor) / factor
}

// StopPriceFrom derives a stop price candidate from a reference price and a
// limit offset, floored to the given precision.
func StopPriceFrom(price float64, limit core.Offset, decimals int) float64 {
	var candidate float64
	if limit.Percent {
		candidate = price / 100 * (100 - limit.Value)
	} else {
		candidate = price - limit.Value
	}
	return FloorTo(candidate, decimals)
}
