package binance

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2"

	"github.com/raykavin/trailstop/core"
	"github.com/raykavin/trailstop/exchange"
)

// Spot represents the Binance spot market client
type Spot struct {
	client     *binance.Client
	assetsInfo map[string]core.AssetInfo
	log        core.Logger
}

// SpotOption is a function that configures a Spot client
type SpotOption func(*Spot)

// WithSpotCredentials sets the API credentials for the Spot client
func WithSpotCredentials(key, secret string) SpotOption {
	return func(s *Spot) {
		s.client = binance.NewClient(key, secret)
	}
}

// WithSpotTestNet enables the Binance testnet
func WithSpotTestNet() SpotOption {
	return func(_ *Spot) {
		binance.UseTestnet = true
	}
}

// NewSpot creates a new Binance spot exchange client
func NewSpot(ctx context.Context, log core.Logger, options ...SpotOption) (*Spot, error) {
	binance.WebsocketKeepalive = true

	spot := &Spot{
		client:     binance.NewClient("", ""),
		assetsInfo: make(map[string]core.AssetInfo),
		log:        log,
	}

	for _, option := range options {
		option(spot)
	}

	if err := spot.client.NewPingService().Do(ctx); err != nil {
		return nil, fmt.Errorf("binance ping fail: %w", err)
	}

	exchangeInfo, err := spot.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange info: %w", err)
	}

	for _, info := range exchangeInfo.Symbols {
		spot.assetsInfo[info.Symbol] = buildAssetInfo(info)
	}

	log.Info("Using Binance Spot exchange")
	return spot, nil
}

// AssetInfo returns market information about a trading pair
func (s *Spot) AssetInfo(_ context.Context, pair string) (core.AssetInfo, error) {
	info, ok := s.assetsInfo[pair]
	if !ok {
		return core.AssetInfo{}, fmt.Errorf("%w: %s", core.ErrInvalidPair, pair)
	}
	return info, nil
}

// OwningAmount returns the total and free balance of the pair's base asset
func (s *Spot) OwningAmount(ctx context.Context, pair string) (total, free float64, err error) {
	asset, _ := exchange.SplitAssetQuote(pair)
	return s.balance(ctx, asset)
}

// QuoteAmount returns the total and free balance of the pair's quote asset
func (s *Spot) QuoteAmount(ctx context.Context, pair string) (total, free float64, err error) {
	_, quote := exchange.SplitAssetQuote(pair)
	return s.balance(ctx, quote)
}

func (s *Spot) balance(ctx context.Context, asset string) (total, free float64, err error) {
	account, err := s.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, balance := range account.Balances {
		if balance.Asset != asset {
			continue
		}

		free, err = strconv.ParseFloat(balance.Free, 64)
		if err != nil {
			return 0, 0, err
		}

		locked, err := strconv.ParseFloat(balance.Locked, 64)
		if err != nil {
			return 0, 0, err
		}

		return free + locked, free, nil
	}

	return 0, 0, fmt.Errorf("%w: %s", exchange.ErrInvalidAsset, asset)
}

// OpenOrders gets the open orders for a pair
func (s *Spot) OpenOrders(ctx context.Context, pair string) ([]core.Order, error) {
	result, err := s.client.NewListOpenOrdersService().
		Symbol(pair).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	orders := make([]core.Order, 0, len(result))
	for _, order := range result {
		orders = append(orders, convertBinanceOrder(order))
	}
	return orders, nil
}

// Cancel cancels an order
func (s *Spot) Cancel(ctx context.Context, order core.Order) error {
	_, err := s.client.NewCancelOrderService().
		Symbol(order.Pair).
		OrderID(order.ExchangeID).
		Do(ctx)
	return err
}

// CreateOrderStopLimit creates a stop-loss-limit order. The limit price is
// the stop price; the venue arms the order at the trigger price.
func (s *Spot) CreateOrderStopLimit(ctx context.Context, side core.SideType, pair string,
	quantity, price, stopPrice float64) (core.Order, error) {

	order, err := s.client.NewCreateOrderService().
		Symbol(pair).
		Type(binance.OrderTypeStopLossLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Side(binance.SideType(side)).
		Quantity(formatQuantity(s.assetsInfo, pair, quantity)).
		Price(formatPrice(s.assetsInfo, pair, price)).
		StopPrice(formatPrice(s.assetsInfo, pair, stopPrice)).
		Do(ctx)
	if err != nil {
		return core.Order{}, wrapOrderError(err, pair, quantity)
	}

	converted := convertCreateOrderResponse(order)
	converted.Stop = &stopPrice
	return converted, nil
}

// CreateOrderMarketQuote creates a market order sized by quote amount
func (s *Spot) CreateOrderMarketQuote(ctx context.Context, side core.SideType, pair string,
	quoteAmount float64) (core.Order, error) {

	order, err := s.client.NewCreateOrderService().
		Symbol(pair).
		Type(binance.OrderTypeMarket).
		Side(binance.SideType(side)).
		QuoteOrderQty(strconv.FormatFloat(quoteAmount, 'f', 8, 64)).
		NewOrderRespType(binance.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return core.Order{}, wrapOrderError(err, pair, quoteAmount)
	}

	return convertCreateOrderResponse(order), nil
}

// PriceSubscription subscribes to live trade prices for a pair
func (s *Spot) PriceSubscription(ctx context.Context, pair string) (chan core.PriceTick, chan error) {
	return servePriceFeed(ctx, pair, s.log)
}

// ExecutionSubscription subscribes to execution reports for a pair
func (s *Spot) ExecutionSubscription(ctx context.Context, pair string) (chan core.ExecutionReport, chan error) {
	return serveUserData(ctx, pair,
		func(ctx context.Context) (string, error) {
			return s.client.NewStartUserStreamService().Do(ctx)
		},
		func(ctx context.Context, listenKey string) error {
			return s.client.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(ctx)
		},
		s.log,
	)
}
