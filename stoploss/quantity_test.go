package stoploss

import (
	"testing"

	"github.com/raykavin/trailstop/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantityKeepThresholdPercent(t *testing.T) {
	settings := testSettings()
	settings.KeepThreshold = &core.Offset{Percent: true, Value: 10}
	settings.PrecisionCrypto = 3

	calculator := NewQuantityCalculator(settings)

	// keep = 10% of total, subtracted from free
	quantity, err := calculator.Quantity(10, 10)
	require.NoError(t, err)
	assert.InDelta(t, 9, quantity, 1e-9)

	// locked balance reduces free, keep still resolves against total
	quantity, err = calculator.Quantity(10, 5)
	require.NoError(t, err)
	assert.InDelta(t, 4, quantity, 1e-9)
}

func TestQuantityKeepThresholdLiteral(t *testing.T) {
	settings := testSettings()
	settings.KeepThreshold = &core.Offset{Value: 2.5}
	settings.PrecisionCrypto = 3

	calculator := NewQuantityCalculator(settings)

	quantity, err := calculator.Quantity(10, 10)
	require.NoError(t, err)
	assert.InDelta(t, 7.5, quantity, 1e-9)
}

func TestQuantityKeepThresholdExceedsFree(t *testing.T) {
	settings := testSettings()
	settings.KeepThreshold = &core.Offset{Value: 50}

	calculator := NewQuantityCalculator(settings)

	// Keeping more than the account holds free is a configuration error,
	// never silently clamped.
	_, err := calculator.Quantity(10, 10)
	require.ErrorIs(t, err, core.ErrKeepThresholdExceeded)
}

func TestQuantityFeeAdjustedSpot(t *testing.T) {
	settings := testSettings()

	calculator := NewQuantityCalculator(settings)

	// full free balance minus the 0.1% base fee, unrounded
	quantity, err := calculator.Quantity(100, 100)
	require.NoError(t, err)
	assert.InDelta(t, 99.9, quantity, 1e-9)
	assert.Less(t, quantity, 100.0)
}

func TestQuantityFeeAdjustedMarginDiscount(t *testing.T) {
	settings := testSettings()
	settings.Exchange = core.ExchangeBinanceIsolatedMargin

	calculator := NewQuantityCalculator(settings)

	// margin fee = 0.1% discounted by 25% = 0.075%, unrounded
	quantity, err := calculator.Quantity(100, 100)
	require.NoError(t, err)
	assert.InDelta(t, 99.925, quantity, 1e-9)
	assert.Less(t, quantity, 100.0)
}
