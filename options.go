package trailstop

import (
	"github.com/raykavin/trailstop/core"
	"github.com/raykavin/trailstop/exchange"
	"github.com/raykavin/trailstop/stoploss"
)

// Option is a functional option for configuring a Bot instance
type Option func(*Bot)

// WithExchange replaces the exchange client built from the settings
func WithExchange(exch core.Exchange) Option {
	return func(bot *Bot) {
		bot.exchange = exch
	}
}

// WithStorage sets the order journal, by default a local file called
// trailstop.db
func WithStorage(storage core.Storage) Option {
	return func(bot *Bot) {
		bot.storage = storage
	}
}

// WithNotifier registers an additional notification channel beyond the ones
// derived from the settings
func WithNotifier(notifier core.Notifier) Option {
	return func(bot *Bot) {
		bot.notifiers = append(bot.notifiers, notifier)
	}
}

// WithCallbacks installs the embedder hooks for errors, partial fills, and
// run completion
func WithCallbacks(callbacks stoploss.Callbacks) Option {
	return func(bot *Bot) {
		bot.callbacks = callbacks
	}
}

// WithLogger replaces the default logger
func WithLogger(log core.Logger) Option {
	return func(bot *Bot) {
		bot.log = log
	}
}

// WithPriceSubscription subscribes an extra consumer to the market price feed
func WithPriceSubscription(consumer exchange.PriceFeedConsumer) Option {
	return func(bot *Bot) {
		bot.priceSubscribers = append(bot.priceSubscribers, consumer)
	}
}
