package binance

import (
	"context"
	"fmt"

	"github.com/raykavin/trailstop/core"
)

// Config holds configuration parameters for Binance clients
type Config struct {
	Exchange   string
	APIKey     string
	APISecret  string
	UseTestnet bool
}

// NewExchange creates the Binance client matching the configured endpoint.
//
// The futures endpoint is rejected: futures positions have no isolated asset
// pools, so the balance-driven quantity policies cannot run against it.
func NewExchange(ctx context.Context, log core.Logger, config Config) (core.Exchange, error) {
	switch config.Exchange {
	case core.ExchangeBinanceSpot:
		return NewSpot(ctx, log, buildSpotOptions(config)...)
	case core.ExchangeBinanceMargin:
		return NewMargin(ctx, log, buildMarginOptions(config)...)
	case core.ExchangeBinanceIsolatedMargin:
		options := append(buildMarginOptions(config), WithIsolatedMargin())
		return NewMargin(ctx, log, options...)
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedExchange, config.Exchange)
	}
}

// buildSpotOptions constructs the option list for spot exchange configuration
func buildSpotOptions(config Config) []SpotOption {
	options := []SpotOption{}

	if hasValidCredentials(config.APIKey, config.APISecret) {
		options = append(options, WithSpotCredentials(config.APIKey, config.APISecret))
	}

	if config.UseTestnet {
		options = append(options, WithSpotTestNet())
	}

	return options
}

// buildMarginOptions constructs the option list for margin exchange configuration
func buildMarginOptions(config Config) []MarginOption {
	options := []MarginOption{}

	if hasValidCredentials(config.APIKey, config.APISecret) {
		options = append(options, WithMarginCredentials(config.APIKey, config.APISecret))
	}

	return options
}

// hasValidCredentials checks if both API key and secret are non-empty
func hasValidCredentials(key, secret string) bool {
	return key != "" && secret != ""
}
