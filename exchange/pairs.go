// Package exchange provides venue-neutral helpers shared by exchange clients
// and the stop loss engine: pair handling, order error context, and the price
// feed subscription manager.
package exchange

// Known quote currencies for pair splitting
var pairs = []string{
	"USDT",
	"BTC",
	"BNB",
	"ETH",
	"BUSD",
	"USDC",
	"TUSD",
	"EUR",
	"TRY",
	"AUD",
	"BRL",
	"GBP",
	"USD",
	"NGN",
}

// Fiat-pegged stablecoins whose markets quote with two decimal places.
var stablecoins = map[string]bool{
	"USDT":  true,
	"BUSD":  true,
	"USDC":  true,
	"TUSD":  true,
	"USDP":  true,
	"FDUSD": true,
	"DAI":   true,
}

// SplitAssetQuote splits a trading pair into base asset and quote asset
func SplitAssetQuote(pair string) (asset, quote string) {
	for i := len(pair) - 1; i >= 0; i-- {
		for _, q := range pairs {
			if i >= len(q)-1 && pair[i-len(q)+1:i+1] == q {
				return pair[:i-len(q)+1], pair[i-len(q)+1:]
			}
		}
	}
	return pair[:len(pair)/2], pair[len(pair)/2:]
}

// IsStablecoinQuote reports whether the quote asset is a recognized
// fiat-pegged stablecoin.
func IsStablecoinQuote(quote string) bool {
	return stablecoins[quote]
}
