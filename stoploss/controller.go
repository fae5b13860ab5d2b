package stoploss

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raykavin/trailstop/core"
	"github.com/raykavin/trailstop/exchange"
)

// Callbacks are optional hooks for an embedding application. They run on the
// engine goroutines and must return quickly.
type Callbacks struct {
	OnError           func(message string)
	OnFinished        func(report core.ExecutionReport)
	OnPartiallyFilled func(report core.ExecutionReport)
}

// Controller owns the lifecycle of the single protective order: it applies
// stop price ratchets, cancels the prior order, recomputes the quantity from
// a fresh balance, and submits the replacement. All of that happens under one
// mutex, so concurrent ratchet attempts collapse into at most one replace
// cycle at a time.
type Controller struct {
	mu sync.Mutex

	broker     core.Broker
	storage    core.Storage
	settings   *core.Settings
	calculator *QuantityCalculator
	notifier   core.Notifier
	log        core.Logger
	callbacks  Callbacks

	quoteAsset string

	terminated atomic.Bool
	done       chan struct{}
	closeOnce  sync.Once
	fatalOnce  sync.Once
	shutdown   func()

	// guarded by mu
	stopPrice float64
	hasStop   bool
	lastPrice float64
	order     *core.Order
}

// NewController creates a lifecycle controller. The shutdown hook is wired by
// the engine after construction via SetShutdown.
func NewController(
	broker core.Broker,
	storage core.Storage,
	settings *core.Settings,
	notifier core.Notifier,
	log core.Logger,
	callbacks Callbacks,
) *Controller {
	_, quote := exchange.SplitAssetQuote(settings.Market)
	return &Controller{
		broker:     broker,
		storage:    storage,
		settings:   settings,
		calculator: NewQuantityCalculator(settings),
		notifier:   notifier,
		log:        log,
		callbacks:  callbacks,
		quoteAsset: quote,
		done:       make(chan struct{}),
	}
}

// SetShutdown installs the engine stop hook invoked on fatal errors.
func (c *Controller) SetShutdown(fn func()) {
	c.shutdown = fn
}

// Done is closed when the controller stops accepting work.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Terminated reports whether the controller has been shut down.
func (c *Controller) Terminated() bool {
	return c.terminated.Load()
}

// MarkTerminated makes the controller inert. Pending retry loops observe the
// done channel and give up. Safe to call more than once and from any
// goroutine, including while the replace mutex is held.
func (c *Controller) MarkTerminated() {
	c.terminated.Store(true)
	c.closeOnce.Do(func() { close(c.done) })
}

// StopPrice returns the current stop price and whether one has been set.
func (c *Controller) StopPrice() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopPrice, c.hasStop
}

// OrderID returns the venue id of the protective order currently tracked, or
// zero when none is open.
func (c *Controller) OrderID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.order == nil {
		return 0
	}
	return c.order.ExchangeID
}

// Replace runs one replace cycle: ratchet the stop price with the candidate,
// cancel the prior protective order if one is open, and otherwise submit a
// replacement at the current stop price. When a cancellation was issued the
// cycle ends early; the resubmission rides the CANCELED execution report.
//
// The ratchet only moves up. A candidate at or below the current stop price
// still enters the critical section, loses the comparison, and the cycle
// proceeds with the held price unchanged.
func (c *Controller) Replace(ctx context.Context, candidate, refPrice float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminated.Load() {
		return nil
	}

	if !c.hasStop || candidate > c.stopPrice {
		c.stopPrice = candidate
		c.hasStop = true
	}
	if refPrice > 0 {
		c.lastPrice = refPrice
	}

	canceled, err := c.cancelOpenOrder(ctx)
	if err != nil {
		c.log.WithError(err).Error("stoploss/controller: cancel of prior stop loss order failed")
		return err
	}
	if canceled {
		return nil
	}

	return c.submit(ctx)
}

// Resubmit submits a protective order at the stop price already held, used
// when the prior order's cancellation has been confirmed by the venue.
func (c *Controller) Resubmit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminated.Load() || !c.hasStop {
		return nil
	}

	return c.submit(ctx)
}

// RecordExecution updates the order journal with a terminal transition
// observed on the user-data stream.
func (c *Controller) RecordExecution(ctx context.Context, report core.ExecutionReport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.order == nil || c.order.ExchangeID != report.OrderID {
		return
	}

	c.order.Status = report.Status
	c.order.UpdatedAt = report.Time
	if err := c.storage.UpdateOrder(ctx, c.order); err != nil {
		c.log.WithError(err).Error("stoploss/controller: order journal update failed")
	}

	if report.Status == core.OrderStatusTypeFilled {
		c.order = nil
	}
}

// cancelOpenOrder cancels the first open protective order on the market, if
// any. Callers hold c.mu.
func (c *Controller) cancelOpenOrder(ctx context.Context) (bool, error) {
	orders, err := c.broker.OpenOrders(ctx, c.settings.Market)
	if err != nil {
		return false, err
	}

	for _, order := range orders {
		if !order.IsProtective(c.settings.Side) {
			continue
		}

		c.log.Infof("canceling stop loss order %d", order.ExchangeID)
		if err := c.broker.Cancel(ctx, order); err != nil {
			return false, err
		}

		c.rememberOrder(ctx, order, core.OrderStatusTypePendingCancel)
		return true, nil
	}

	return false, nil
}

// submit places the protective order at the held stop price. Callers hold
// c.mu.
func (c *Controller) submit(ctx context.Context) error {
	total, free, err := c.broker.OwningAmount(ctx, c.settings.Market)
	if err != nil {
		c.log.WithError(err).Error("stoploss/controller: balance refresh failed")
		return err
	}

	quantity, err := c.calculator.Quantity(total, free)
	if err != nil {
		return c.fatal(err)
	}
	if quantity <= 0 {
		return c.fatal(fmt.Errorf("%w: total %f, free %f", core.ErrEmptyQuantity, total, free))
	}

	stop := c.stopPrice
	trigger := c.triggerPrice(stop)

	for {
		order, err := c.broker.CreateOrderStopLimit(ctx, c.settings.Side, c.settings.Market, quantity, stop, trigger)
		if err == nil {
			c.log.WithFields(map[string]any{
				"pair":       c.settings.Market,
				"quantity":   quantity,
				"stopPrice":  stop,
				"trigger":    trigger,
				"exchangeID": order.ExchangeID,
			}).Info("stop loss order placed")
			c.journalOrder(ctx, &order)
			return nil
		}

		if !core.IsTransient(err) {
			msg := fmt.Sprintf("stop loss order placement failed: %v", err)
			c.log.Error("stoploss/controller: ", msg)
			if c.callbacks.OnError != nil {
				c.callbacks.OnError(msg)
			}
			return err
		}

		c.log.WithError(err).Warnf("stop loss order not accepted, retrying in %s", c.settings.RetryInterval)
		select {
		case <-c.done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.settings.RetryInterval):
		}
	}
}

// triggerPrice derives the trigger price from the stop price and the
// configured gap. Stablecoin-quoted markets use the fiat precision.
func (c *Controller) triggerPrice(stop float64) float64 {
	gap := c.settings.TriggerGap.Value
	if c.settings.TriggerGap.Percent {
		gap = stop / 100 * c.settings.TriggerGap.Value
	}

	precision := c.settings.PrecisionCrypto
	if exchange.IsStablecoinQuote(c.quoteAsset) {
		precision = c.settings.PrecisionFiat
	}

	return FloorTo(stop+gap, precision)
}

// fatal handles an unrecoverable condition: notify every channel, invoke the
// error callback once, and shut the engine down. Callers hold c.mu.
func (c *Controller) fatal(err error) error {
	c.fatalOnce.Do(func() {
		msg := fmt.Sprintf("stop loss engine aborted: %v", err)
		c.log.Error("stoploss/controller: ", msg)

		if c.notifier != nil {
			c.notifier.OnError(err)
		}
		if c.callbacks.OnError != nil {
			c.callbacks.OnError(msg)
		}

		c.MarkTerminated()
		if c.shutdown != nil {
			c.shutdown()
		}
	})
	return err
}

// journalOrder records a freshly submitted order and tracks it as current.
// Callers hold c.mu.
func (c *Controller) journalOrder(ctx context.Context, order *core.Order) {
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	if err := c.storage.CreateOrder(ctx, order); err != nil {
		c.log.WithError(err).Error("stoploss/controller: order journal insert failed")
	}
	c.order = order
}

// rememberOrder tracks an order the controller did not submit itself, e.g.
// one adopted from the venue, and journals it with the given status. Callers
// hold c.mu.
func (c *Controller) rememberOrder(ctx context.Context, order core.Order, status core.OrderStatusType) {
	order.Status = status
	order.UpdatedAt = time.Now()

	if c.order != nil && c.order.ExchangeID == order.ExchangeID {
		c.order.Status = status
		c.order.UpdatedAt = order.UpdatedAt
		if err := c.storage.UpdateOrder(ctx, c.order); err != nil {
			c.log.WithError(err).Error("stoploss/controller: order journal update failed")
		}
		return
	}

	if order.CreatedAt.IsZero() {
		order.CreatedAt = order.UpdatedAt
	}
	if err := c.storage.CreateOrder(ctx, &order); err != nil {
		c.log.WithError(err).Error("stoploss/controller: order journal insert failed")
	}
	c.order = &order
}
