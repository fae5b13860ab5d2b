package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOffset(t *testing.T) {
	tests := []struct {
		raw     string
		percent bool
		value   float64
	}{
		{"2%", true, 2},
		{"0.75%", true, 0.75},
		{"0.01", false, 0.01},
		{" 150.0 ", false, 150},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			offset, err := ParseOffset(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.percent, offset.Percent)
			assert.Equal(t, tc.value, offset.Value)
		})
	}
}

func TestParseOffsetRejectsInvalidInput(t *testing.T) {
	_, err := ParseOffset("")
	assert.Error(t, err)

	_, err = ParseOffset("abc")
	assert.Error(t, err)

	_, err = ParseOffset("-2%")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNegativeValue)
}

func TestOffsetString(t *testing.T) {
	assert.Equal(t, "2%", Offset{Percent: true, Value: 2}.String())
	assert.Equal(t, "0.01", Offset{Value: 0.01}.String())
	assert.True(t, Offset{}.IsZero())
	assert.False(t, Offset{Percent: true}.IsZero())
}
