package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitAssetQuote(t *testing.T) {
	tests := []struct {
		pair  string
		asset string
		quote string
	}{
		{"BTCUSDT", "BTC", "USDT"},
		{"ETHBTC", "ETH", "BTC"},
		{"LUNABUSD", "LUNA", "BUSD"},
		{"BNBEUR", "BNB", "EUR"},
		{"DOGEUSDC", "DOGE", "USDC"},
	}

	for _, tt := range tests {
		t.Run(tt.pair, func(t *testing.T) {
			asset, quote := SplitAssetQuote(tt.pair)
			assert.Equal(t, tt.asset, asset)
			assert.Equal(t, tt.quote, quote)
		})
	}
}

func TestIsStablecoinQuote(t *testing.T) {
	assert.True(t, IsStablecoinQuote("USDT"))
	assert.True(t, IsStablecoinQuote("BUSD"))
	assert.False(t, IsStablecoinQuote("BTC"))
	assert.False(t, IsStablecoinQuote("EUR"))
}
