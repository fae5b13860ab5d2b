package stoploss

import (
	"testing"

	"github.com/raykavin/trailstop/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloorTo(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     float64
	}{
		{"two decimals", 1.559, 2, 1.55},
		{"exact binary fraction", 1.25, 2, 1.25},
		{"zero decimals floors whole", 5.7, 0, 5},
		{"negative decimals behave like zero", 5.7, -1, 5},
		{"three decimals", 0.123456, 3, 0.123},
		{"zero value", 0, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FloorTo(tt.value, tt.decimals), 1e-9)
		})
	}
}

func TestFloorToIdempotent(t *testing.T) {
	values := []float64{1.25, 0.75, 2.5, 100}
	for _, decimals := range []int{0, 1, 2, 8} {
		for _, value := range values {
			once := FloorTo(value, decimals)
			require.Equal(t, once, FloorTo(once, decimals))
		}
	}
}

func TestStopPriceFromPercent(t *testing.T) {
	limit := core.Offset{Percent: true, Value: 2}

	// Rising price sequence with a dip: the dip still produces a candidate,
	// the ratchet upstream decides whether it is used.
	prices := []float64{100, 102, 101, 105}
	want := []float64{98.00, 99.96, 98.98, 102.90}

	for i, price := range prices {
		assert.InDelta(t, want[i], StopPriceFrom(price, limit, 2), 1e-9)
	}
}

func TestStopPriceFromAbsolute(t *testing.T) {
	limit := core.Offset{Value: 0.5}
	assert.InDelta(t, 99.5, StopPriceFrom(100, limit, 2), 1e-9)
	assert.InDelta(t, 99.49, StopPriceFrom(99.999, limit, 2), 1e-9)
}
