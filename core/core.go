package core

import (
	"context"
)

// Exchange combines the synchronous trading operations and the streaming
// subscriptions of a venue.
type Exchange interface {
	Broker
	Streamer
}

// Broker defines the synchronous venue operations used by the stop loss
// engine. Every call may block on the network; transient submission
// rejections are wrapped in TransientOrderError.
type Broker interface {
	AssetInfo(ctx context.Context, pair string) (AssetInfo, error)
	OwningAmount(ctx context.Context, pair string) (total, free float64, err error)
	QuoteAmount(ctx context.Context, pair string) (total, free float64, err error)
	OpenOrders(ctx context.Context, pair string) ([]Order, error)
	Cancel(ctx context.Context, order Order) error
	CreateOrderStopLimit(ctx context.Context, side SideType, pair string, quantity, price, stopPrice float64) (Order, error)
	CreateOrderMarketQuote(ctx context.Context, side SideType, pair string, quoteAmount float64) (Order, error)
}

// Streamer delivers the two live feeds the engine consumes. Both channels are
// closed when the subscription context is done; the error channel carries
// transport failures that the consumer is free to log and ignore.
//
// The feeds are independent: no ordering may be assumed between a price tick
// and an execution report.
type Streamer interface {
	PriceSubscription(ctx context.Context, pair string) (chan PriceTick, chan error)
	ExecutionSubscription(ctx context.Context, pair string) (chan ExecutionReport, chan error)
}

// Notifier delivers human-readable messages to a notification channel.
// Failures are logged by the implementation, never returned.
type Notifier interface {
	Notify(string)
	OnError(err error)
}

// NotifierWithStart is a notifier that needs an explicit start, e.g. a bot
// client with a long-polling loop.
type NotifierWithStart interface {
	Notifier
	Start()
}
