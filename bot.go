// Package trailstop assembles the trailing stop loss engine, the exchange
// client, the order journal, and the notification channels into a runnable
// bot.
package trailstop

import (
	"context"

	"github.com/raykavin/trailstop/core"
	"github.com/raykavin/trailstop/exchange"
	"github.com/raykavin/trailstop/exchange/binance"
	"github.com/raykavin/trailstop/notification"
	"github.com/raykavin/trailstop/stoploss"
	"github.com/raykavin/trailstop/storage"
)

const defaultDatabase = "trailstop.db"

// Bot wires a trailing stop loss run for a single market
type Bot struct {
	settings  *core.Settings
	exchange  core.Exchange
	storage   core.Storage
	notifiers notification.Multi
	engine    *stoploss.Engine
	priceFeed *exchange.PriceFeedSubscription
	callbacks stoploss.Callbacks
	log       core.Logger

	priceSubscribers []exchange.PriceFeedConsumer
}

// NewBot creates a Bot instance from validated settings. The exchange client,
// the journal, and the logger can be replaced through options; everything
// else is derived from the settings.
func NewBot(ctx context.Context, settings *core.Settings, options ...Option) (*Bot, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	bot := &Bot{
		settings: settings,
		log:      DefaultLog,
	}

	for _, option := range options {
		option(bot)
	}

	if bot.exchange == nil {
		exch, err := binance.NewExchange(ctx, bot.log, binance.Config{
			Exchange:   settings.Exchange,
			APIKey:     settings.APIKey,
			APISecret:  settings.APISecret,
			UseTestnet: settings.Testnet,
		})
		if err != nil {
			return nil, err
		}
		bot.exchange = exch
	}

	if bot.storage == nil {
		journal, err := storage.NewFromFile(defaultDatabase)
		if err != nil {
			return nil, err
		}
		bot.storage = journal
	}

	if err := initializeNotifications(bot); err != nil {
		return nil, err
	}

	engine, err := stoploss.NewEngine(settings, bot.exchange, bot.storage, bot.notifiers, bot.log, bot.callbacks)
	if err != nil {
		return nil, err
	}
	bot.engine = engine

	bot.priceFeed = exchange.NewPriceFeed(bot.exchange, bot.log)
	for _, consumer := range bot.priceSubscribers {
		bot.priceFeed.Subscribe(settings.Market, consumer)
	}
	engine.UsePriceFeed(bot.priceFeed)

	return bot, nil
}

// Engine returns the underlying stop loss engine
func (b *Bot) Engine() *stoploss.Engine {
	return b.engine
}

// Status implements notification.EngineStatus
func (b *Bot) Status() string {
	if b.engine == nil {
		return "not started"
	}
	return b.engine.Status()
}

// Stop implements notification.EngineStatus
func (b *Bot) Stop() {
	if b.engine != nil {
		b.engine.Stop()
	}
}

// TestNotifications sends a probe message to every configured channel
func (b *Bot) TestNotifications() {
	b.notifiers.Start()
	if b.engine != nil {
		b.engine.TestNotifications()
	}
}

// Run starts the engine and blocks until the protective order fills, the
// engine is stopped, or the context is done.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.engine.Start(ctx); err != nil {
		return err
	}

	b.notifiers.Start()

	select {
	case <-ctx.Done():
		b.engine.Stop()
	case <-b.engine.Done():
	}

	b.engine.Wait()
	return nil
}
