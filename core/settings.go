package core

import (
	"fmt"
	"time"
)

// EngineMode selects how the engine enters the market.
type EngineMode string

const (
	// EngineModeTrail trails an asset that is already held.
	EngineModeTrail EngineMode = "trail"
	// EngineModeJumpInAndTrail first executes a market entry with the free
	// quote balance, then trails the position.
	EngineModeJumpInAndTrail EngineMode = "jump-in-and-trail"
)

// Supported exchange endpoints.
const (
	ExchangeBinanceSpot           = "binance.com"
	ExchangeBinanceFutures        = "binance.com-futures"
	ExchangeBinanceMargin         = "binance.com-margin"
	ExchangeBinanceIsolatedMargin = "binance.com-isolated_margin"
)

// DefaultRetryInterval is the fixed backoff between submission retries when
// the venue rejects an order that would trigger immediately.
const DefaultRetryInterval = 5 * time.Second

// Settings represents the main configuration for a trailing stop loss run
type Settings struct {
	Exchange string     // venue endpoint, one of the ExchangeBinance* constants
	Market   string     // market symbol, e.g. BTCUSDT
	Side     SideType   // side of the protective order
	Engine   EngineMode // trail or jump-in-and-trail

	APIKey    string
	APISecret string
	Testnet   bool

	StopLossLimit Offset  // steady-state distance between price and stop price
	StartLimit    Offset  // entry distance for jump-in-and-trail; falls back to StopLossLimit
	TriggerGap    Offset  // distance between stop (limit) price and trigger price
	KeepThreshold *Offset // portion of the total balance to keep; nil sells the full free balance minus fee

	StopLossPrice      float64 // starting stop price; 0 derives it from the feed or open orders
	ResetStopLossPrice bool    // ignore pre-existing open protective orders on start

	RetryInterval time.Duration // backoff for transient submission rejections

	PrecisionCrypto int // decimal places for asset quantities and crypto-quoted prices
	PrecisionFiat   int // decimal places for stablecoin-quoted prices

	Fees     FeeSettings
	Telegram TelegramSettings
	Email    EmailSettings
}

// FeeSettings holds the venue fee schedule used by the fee-adjusted
// full-sell quantity policy.
type FeeSettings struct {
	TradingFeePercent      float64
	MarginDiscountPercent  float64
	FuturesDiscountPercent float64
	SpotDiscountPercent    float64
	UseBNB                 bool
}

// TelegramSettings holds configuration for Telegram notifications
type TelegramSettings struct {
	Enabled bool
	Token   string
	ChatID  int64
}

// EmailSettings holds configuration for SMTP notifications
type EmailSettings struct {
	Enabled  bool
	To       string
	From     string
	Password string
	Server   string
	Port     int
}

// DefaultFeeSettings mirrors the standard Binance fee schedule.
func DefaultFeeSettings() FeeSettings {
	return FeeSettings{
		TradingFeePercent:      0.1,
		MarginDiscountPercent:  25.0,
		FuturesDiscountPercent: 10.0,
		SpotDiscountPercent:    25.0,
	}
}

// IsMarginExchange reports whether the configured endpoint is a margin
// account type (discounted fees, margin order services).
func (s *Settings) IsMarginExchange() bool {
	return s.Exchange == ExchangeBinanceMargin || s.Exchange == ExchangeBinanceIsolatedMargin
}

// Validate checks that the settings describe a runnable engine.
func (s *Settings) Validate() error {
	if s.Market == "" {
		return fmt.Errorf("missing market symbol")
	}

	if s.Side != SideTypeBuy && s.Side != SideTypeSell {
		return fmt.Errorf("invalid order side %q", s.Side)
	}

	if s.StopLossLimit.IsZero() {
		return fmt.Errorf("missing stop loss limit")
	}

	switch s.Exchange {
	case ExchangeBinanceSpot, ExchangeBinanceFutures, ExchangeBinanceMargin, ExchangeBinanceIsolatedMargin:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedExchange, s.Exchange)
	}

	if s.Engine == "" {
		s.Engine = EngineModeTrail
	}

	// Entry orders borrow against the position, which only the isolated
	// margin endpoint supports.
	if s.Engine == EngineModeJumpInAndTrail && s.Exchange != ExchangeBinanceIsolatedMargin {
		return fmt.Errorf("%w: engine %q requires %s", ErrUnsupportedExchange, s.Engine, ExchangeBinanceIsolatedMargin)
	}

	if s.RetryInterval <= 0 {
		s.RetryInterval = DefaultRetryInterval
	}

	return nil
}
