package stoploss

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/raykavin/trailstop/core"
	"github.com/raykavin/trailstop/exchange"
	"github.com/samber/lo"
)

// Engine supervises one trailing stop loss run on a single market. It owns
// the feed subscriptions, seeds the initial stop price, and coordinates the
// tracker, the lifecycle controller, and the report handler until the
// protective order fills or the engine is stopped.
type Engine struct {
	settings *core.Settings
	exchange core.Exchange
	notifier core.Notifier
	log      core.Logger

	controller *Controller
	tracker    *PriceTracker
	reports    *ReportHandler
	priceFeed  *exchange.PriceFeedSubscription

	entryPrice float64
	cancelFeed context.CancelFunc
	stopped    atomic.Bool
	wg         sync.WaitGroup
}

// NewEngine wires an engine from validated settings.
func NewEngine(
	settings *core.Settings,
	exch core.Exchange,
	storage core.Storage,
	notifier core.Notifier,
	log core.Logger,
	callbacks Callbacks,
) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{
		settings: settings,
		exchange: exch,
		notifier: notifier,
		log:      log,
	}

	engine.controller = NewController(exch, storage, settings, notifier, log, callbacks)
	engine.controller.SetShutdown(engine.Stop)
	engine.tracker = NewPriceTracker(engine.controller, settings, log)
	engine.reports = NewReportHandler(engine.controller, notifier, log, callbacks, engine.Stop)

	return engine, nil
}

// UsePriceFeed routes price ticks through a shared feed subscription manager
// instead of a direct stream, so an embedder can attach extra consumers to
// the same upstream connection. Must be called before Start.
func (e *Engine) UsePriceFeed(feed *exchange.PriceFeedSubscription) {
	e.priceFeed = feed
}

// Start enters the market when running in jump-in-and-trail mode, connects
// the price and user-data streams, and seeds the initial stop price. It
// returns once the engine is live; Done signals termination.
func (e *Engine) Start(ctx context.Context) error {
	if e.settings.Engine == core.EngineModeJumpInAndTrail {
		if err := e.jumpIn(ctx); err != nil {
			return err
		}
	}

	feedCtx, cancel := context.WithCancel(ctx)
	e.cancelFeed = cancel

	reports, reportErrs := e.exchange.ExecutionSubscription(feedCtx, e.settings.Market)
	e.wg.Add(1)
	go e.consumeReports(feedCtx, reports, reportErrs)

	if e.priceFeed != nil {
		e.priceFeed.Subscribe(e.settings.Market, func(tick core.PriceTick) {
			e.tracker.OnPriceTick(feedCtx, tick)
		})
		go e.priceFeed.Start(feedCtx, false)
	} else {
		prices, priceErrs := e.exchange.PriceSubscription(feedCtx, e.settings.Market)
		e.wg.Add(1)
		go e.consumePrices(feedCtx, prices, priceErrs)
	}

	if err := e.seedStopPrice(ctx); err != nil {
		e.log.WithError(err).Error("stoploss/engine: initial stop loss placement failed")
	}

	e.log.Infof("trailing stop loss engine started for %s on %s", e.settings.Market, e.settings.Exchange)
	return nil
}

// Stop shuts the engine down. It is idempotent and safe to call from the
// engine's own goroutines.
func (e *Engine) Stop() {
	if !e.stopped.CompareAndSwap(false, true) {
		return
	}

	e.log.Info("stoploss/engine: stopping trailing stop loss engine")
	e.controller.MarkTerminated()
	if e.cancelFeed != nil {
		e.cancelFeed()
	}
}

// Done is closed once the engine has terminated.
func (e *Engine) Done() <-chan struct{} {
	return e.controller.Done()
}

// Wait blocks until the feed consumers have drained.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// EntryPrice returns the average fill price of the jump-in entry order, or
// zero when the engine did not enter the market itself.
func (e *Engine) EntryPrice() float64 {
	return e.entryPrice
}

// StopPrice returns the currently held stop price, if any.
func (e *Engine) StopPrice() (float64, bool) {
	return e.controller.StopPrice()
}

// Status returns a short human-readable engine state, used by notification
// channels that answer status queries.
func (e *Engine) Status() string {
	if e.controller.Terminated() {
		return fmt.Sprintf("%s: terminated", e.settings.Market)
	}
	if stop, ok := e.controller.StopPrice(); ok {
		return fmt.Sprintf("%s: trailing, stop loss price %f", e.settings.Market, stop)
	}
	return fmt.Sprintf("%s: waiting for the first price quote", e.settings.Market)
}

// TestNotifications sends a probe message to every configured notification
// channel without touching the venue.
func (e *Engine) TestNotifications() {
	if e.notifier == nil {
		e.log.Warn("stoploss/engine: no notification channel configured")
		return
	}
	e.notifier.Notify(fmt.Sprintf("Test notification for %s on %s.", e.settings.Market, e.settings.Exchange))
}

// seedStopPrice establishes the starting stop price: an explicit configured
// price wins, otherwise the highest open protective order on the venue is
// adopted unless a reset was requested, otherwise the engine waits for the
// first price quote.
func (e *Engine) seedStopPrice(ctx context.Context) error {
	if e.settings.StopLossPrice > 0 {
		e.log.Infof("using configured stop loss price %f", e.settings.StopLossPrice)
		return e.controller.Replace(ctx, e.settings.StopLossPrice, 0)
	}

	if e.settings.ResetStopLossPrice {
		e.log.Info("resetting stop loss price, open stop loss orders are ignored")
		return nil
	}

	orders, err := e.exchange.OpenOrders(ctx, e.settings.Market)
	if err != nil {
		return err
	}

	protective := lo.Filter(orders, func(order core.Order, _ int) bool {
		return order.IsProtective(e.settings.Side) && order.IsActive()
	})
	if len(protective) == 0 {
		e.log.Info("no open stop loss orders found, waiting for the first price quote")
		return nil
	}

	adopted := lo.MaxBy(protective, func(a, b core.Order) bool {
		return a.Price > b.Price
	})

	e.log.Infof("adopting open stop loss order %d with price %f", adopted.ExchangeID, adopted.Price)
	return e.controller.Replace(ctx, adopted.Price, 0)
}

// jumpIn buys the base asset with the full free quote balance at market and
// derives the initial stop price from the average fill price.
func (e *Engine) jumpIn(ctx context.Context) error {
	_, freeQuote, err := e.exchange.QuoteAmount(ctx, e.settings.Market)
	if err != nil {
		return err
	}
	if freeQuote <= 0 {
		return fmt.Errorf("jump in aborted: no free quote balance on %s", e.settings.Market)
	}

	order, err := e.exchange.CreateOrderMarketQuote(ctx, core.SideTypeBuy, e.settings.Market, freeQuote)
	if err != nil {
		return fmt.Errorf("jump in order failed: %w", err)
	}

	e.entryPrice = order.Price

	limit := e.settings.StartLimit
	if limit.IsZero() {
		limit = e.settings.StopLossLimit
	}
	e.settings.StopLossPrice = StopPriceFrom(order.Price, limit, e.settings.PrecisionCrypto)

	msg := fmt.Sprintf("Jumped into %s at price %f, initial stop loss price %f.",
		e.settings.Market, order.Price, e.settings.StopLossPrice)
	e.log.Info("stoploss/engine: ", msg)
	if e.notifier != nil {
		e.notifier.Notify(msg)
	}

	return nil
}

func (e *Engine) consumePrices(ctx context.Context, ticks chan core.PriceTick, errs chan error) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case tick, ok := <-ticks:
			if !ok {
				return
			}
			e.tracker.OnPriceTick(ctx, tick)

		case err, ok := <-errs:
			if !ok {
				return
			}
			if err != nil {
				e.log.WithError(err).Warn("stoploss/engine: price feed error")
			}
		}
	}
}

func (e *Engine) consumeReports(ctx context.Context, reports chan core.ExecutionReport, errs chan error) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case report, ok := <-reports:
			if !ok {
				return
			}
			e.reports.OnReport(ctx, report)

		case err, ok := <-errs:
			if !ok {
				return
			}
			if err != nil {
				e.log.WithError(err).Warn("stoploss/engine: user data stream error")
			}
		}
	}
}
