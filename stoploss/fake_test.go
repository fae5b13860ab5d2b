package stoploss

import (
	"context"
	"sync"
	"time"

	"github.com/raykavin/trailstop/core"
)

// fakeExchange is an in-memory core.Exchange double. When trackOpen is set,
// submitted stop orders stay in the open order book until canceled, which
// forces the cancel-then-resubmit path.
type fakeExchange struct {
	mu sync.Mutex

	baseTotal, baseFree   float64
	quoteTotal, quoteFree float64
	fillPrice             float64

	trackOpen  bool
	openOrders []core.Order

	nextID   int64
	created  []core.Order
	canceled []core.Order
	entries  []core.Order

	createErrs []error

	ticks      chan core.PriceTick
	tickErrs   chan error
	reports    chan core.ExecutionReport
	reportErrs chan error
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		baseTotal:  10,
		baseFree:   10,
		quoteTotal: 1000,
		quoteFree:  1000,
		fillPrice:  100,
		ticks:      make(chan core.PriceTick),
		tickErrs:   make(chan error),
		reports:    make(chan core.ExecutionReport),
		reportErrs: make(chan error),
	}
}

func (f *fakeExchange) AssetInfo(_ context.Context, pair string) (core.AssetInfo, error) {
	return core.AssetInfo{BaseAsset: pair}, nil
}

func (f *fakeExchange) OwningAmount(context.Context, string) (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.baseTotal, f.baseFree, nil
}

func (f *fakeExchange) QuoteAmount(context.Context, string) (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quoteTotal, f.quoteFree, nil
}

func (f *fakeExchange) OpenOrders(context.Context, string) ([]core.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	orders := make([]core.Order, len(f.openOrders))
	copy(orders, f.openOrders)
	return orders, nil
}

func (f *fakeExchange) Cancel(_ context.Context, order core.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.canceled = append(f.canceled, order)
	remaining := f.openOrders[:0]
	for _, open := range f.openOrders {
		if open.ExchangeID != order.ExchangeID {
			remaining = append(remaining, open)
		}
	}
	f.openOrders = remaining
	return nil
}

func (f *fakeExchange) CreateOrderStopLimit(_ context.Context, side core.SideType, pair string, quantity, price, stopPrice float64) (core.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return core.Order{}, err
		}
	}

	f.nextID++
	trigger := stopPrice
	order := core.Order{
		ExchangeID: f.nextID,
		Pair:       pair,
		Side:       side,
		Type:       core.OrderTypeStopLossLimit,
		Status:     core.OrderStatusTypeNew,
		Price:      price,
		Quantity:   quantity,
		Stop:       &trigger,
	}
	f.created = append(f.created, order)
	if f.trackOpen {
		f.openOrders = append(f.openOrders, order)
	}
	return order, nil
}

func (f *fakeExchange) CreateOrderMarketQuote(_ context.Context, side core.SideType, pair string, quoteAmount float64) (core.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	order := core.Order{
		ExchangeID: f.nextID,
		Pair:       pair,
		Side:       side,
		Type:       core.OrderTypeMarket,
		Status:     core.OrderStatusTypeFilled,
		Price:      f.fillPrice,
		Quantity:   quoteAmount / f.fillPrice,
	}
	f.entries = append(f.entries, order)
	return order, nil
}

func (f *fakeExchange) PriceSubscription(context.Context, string) (chan core.PriceTick, chan error) {
	return f.ticks, f.tickErrs
}

func (f *fakeExchange) ExecutionSubscription(context.Context, string) (chan core.ExecutionReport, chan error) {
	return f.reports, f.reportErrs
}

func (f *fakeExchange) createdOrders() []core.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	orders := make([]core.Order, len(f.created))
	copy(orders, f.created)
	return orders
}

func (f *fakeExchange) canceledOrders() []core.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	orders := make([]core.Order, len(f.canceled))
	copy(orders, f.canceled)
	return orders
}

// fakeStorage is an in-memory core.Storage double.
type fakeStorage struct {
	mu     sync.Mutex
	lastID int64
	orders []*core.Order
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{}
}

func (s *fakeStorage) CreateOrder(_ context.Context, order *core.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	order.ID = s.lastID
	s.orders = append(s.orders, order)
	return nil
}

func (s *fakeStorage) UpdateOrder(_ context.Context, order *core.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, stored := range s.orders {
		if stored.ID == order.ID {
			s.orders[i] = order
			return nil
		}
	}
	return nil
}

func (s *fakeStorage) Orders(_ context.Context, filters ...core.OrderFilter) ([]*core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*core.Order
	for _, order := range s.orders {
		match := true
		for _, filter := range filters {
			if !filter(*order) {
				match = false
				break
			}
		}
		if match {
			result = append(result, order)
		}
	}
	return result, nil
}

// fakeNotifier records notifications and errors.
type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	errors   []error
}

func (n *fakeNotifier) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *fakeNotifier) OnError(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, err)
}

func (n *fakeNotifier) notified() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	messages := make([]string, len(n.messages))
	copy(messages, n.messages)
	return messages
}

func (n *fakeNotifier) notifiedErrors() []error {
	n.mu.Lock()
	defer n.mu.Unlock()
	errs := make([]error, len(n.errors))
	copy(errs, n.errors)
	return errs
}

// nopLogger satisfies core.Logger without output.
type nopLogger struct {
	level core.Level
}

func (l *nopLogger) WithField(string, any) core.Logger    { return l }
func (l *nopLogger) WithFields(map[string]any) core.Logger { return l }
func (l *nopLogger) WithError(error) core.Logger          { return l }
func (l *nopLogger) Print(...any)                         {}
func (l *nopLogger) Trace(...any)                         {}
func (l *nopLogger) Debug(...any)                         {}
func (l *nopLogger) Info(...any)                          {}
func (l *nopLogger) Warn(...any)                          {}
func (l *nopLogger) Error(...any)                         {}
func (l *nopLogger) Fatal(...any)                         {}
func (l *nopLogger) Panic(...any)                         {}
func (l *nopLogger) Printf(string, ...any)                {}
func (l *nopLogger) Tracef(string, ...any)                {}
func (l *nopLogger) Debugf(string, ...any)                {}
func (l *nopLogger) Infof(string, ...any)                 {}
func (l *nopLogger) Warnf(string, ...any)                 {}
func (l *nopLogger) Errorf(string, ...any)                {}
func (l *nopLogger) Fatalf(string, ...any)                {}
func (l *nopLogger) Panicf(string, ...any)                {}
func (l *nopLogger) SetLevel(level core.Level)            { l.level = level }
func (l *nopLogger) GetLevel() core.Level                 { return l.level }

func testSettings() *core.Settings {
	return &core.Settings{
		Exchange:        core.ExchangeBinanceSpot,
		Market:          "BTCUSDT",
		Side:            core.SideTypeSell,
		Engine:          core.EngineModeTrail,
		StopLossLimit:   core.Offset{Percent: true, Value: 2},
		TriggerGap:      core.Offset{Value: 0.01},
		RetryInterval:   5 * time.Millisecond,
		PrecisionCrypto: 2,
		PrecisionFiat:   2,
		Fees:            core.DefaultFeeSettings(),
	}
}
