package binance

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2"

	"github.com/raykavin/trailstop/core"
	"github.com/raykavin/trailstop/exchange"
)

// Margin represents the Binance margin market client, covering both the
// cross margin and the isolated margin account types.
type Margin struct {
	client     *binance.Client
	assetsInfo map[string]core.AssetInfo
	isolated   bool
	log        core.Logger
}

// MarginOption is a function that configures a Margin client
type MarginOption func(*Margin)

// WithMarginCredentials sets the API credentials for the Margin client
func WithMarginCredentials(key, secret string) MarginOption {
	return func(m *Margin) {
		m.client = binance.NewClient(key, secret)
	}
}

// WithIsolatedMargin switches the client to the isolated margin account
func WithIsolatedMargin() MarginOption {
	return func(m *Margin) {
		m.isolated = true
	}
}

// NewMargin creates a new Binance margin exchange client
func NewMargin(ctx context.Context, log core.Logger, options ...MarginOption) (*Margin, error) {
	binance.WebsocketKeepalive = true

	margin := &Margin{
		client:     binance.NewClient("", ""),
		assetsInfo: make(map[string]core.AssetInfo),
		log:        log,
	}

	for _, option := range options {
		option(margin)
	}

	if err := margin.client.NewPingService().Do(ctx); err != nil {
		return nil, fmt.Errorf("binance ping fail: %w", err)
	}

	exchangeInfo, err := margin.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange info: %w", err)
	}

	for _, info := range exchangeInfo.Symbols {
		margin.assetsInfo[info.Symbol] = buildAssetInfo(info)
	}

	if margin.isolated {
		log.Info("Using Binance Isolated Margin exchange")
	} else {
		log.Info("Using Binance Cross Margin exchange")
	}
	return margin, nil
}

// AssetInfo returns market information about a trading pair
func (m *Margin) AssetInfo(_ context.Context, pair string) (core.AssetInfo, error) {
	info, ok := m.assetsInfo[pair]
	if !ok {
		return core.AssetInfo{}, fmt.Errorf("%w: %s", core.ErrInvalidPair, pair)
	}
	return info, nil
}

// OwningAmount returns the total and free balance of the pair's base asset
func (m *Margin) OwningAmount(ctx context.Context, pair string) (total, free float64, err error) {
	asset, _ := exchange.SplitAssetQuote(pair)
	return m.balance(ctx, pair, asset)
}

// QuoteAmount returns the total and free balance of the pair's quote asset
func (m *Margin) QuoteAmount(ctx context.Context, pair string) (total, free float64, err error) {
	_, quote := exchange.SplitAssetQuote(pair)
	return m.balance(ctx, pair, quote)
}

func (m *Margin) balance(ctx context.Context, pair, asset string) (total, free float64, err error) {
	if m.isolated {
		return m.isolatedBalance(ctx, pair, asset)
	}
	return m.crossBalance(ctx, asset)
}

func (m *Margin) isolatedBalance(ctx context.Context, pair, asset string) (total, free float64, err error) {
	account, err := m.client.NewGetIsolatedMarginAccountService().
		Symbols(pair).
		Do(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, position := range account.Assets {
		if position.Symbol != pair {
			continue
		}

		side := position.BaseAsset
		if side.Asset != asset {
			side = position.QuoteAsset
		}
		if side.Asset != asset {
			break
		}

		total, err = strconv.ParseFloat(side.TotalAsset, 64)
		if err != nil {
			return 0, 0, err
		}

		free, err = strconv.ParseFloat(side.Free, 64)
		if err != nil {
			return 0, 0, err
		}

		return total, free, nil
	}

	return 0, 0, fmt.Errorf("%w: %s", exchange.ErrInvalidAsset, asset)
}

func (m *Margin) crossBalance(ctx context.Context, asset string) (total, free float64, err error) {
	account, err := m.client.NewGetMarginAccountService().Do(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, balance := range account.UserAssets {
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

// OpenOrders gets the open margin orders for a pair
func (m *Margin) OpenOrders(ctx context.Context, pair string) ([]core.Order, error) {
	result, err := m.client.NewListMarginOpenOrdersService().
		Symbol(pair).
		IsIsolated(m.isolated).
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

// Cancel cancels a margin order
func (m *Margin) Cancel(ctx context.Context, order core.Order) error {
	_, err := m.client.NewCancelMarginOrderService().
		Symbol(order.Pair).
		OrderID(order.ExchangeID).
		IsIsolated(m.isolated).
		Do(ctx)
	return err
}

// CreateOrderStopLimit creates a stop-loss-limit margin order
func (m *Margin) CreateOrderStopLimit(ctx context.Context, side core.SideType, pair string,
	quantity, price, stopPrice float64) (core.Order, error) {

	order, err := m.client.NewCreateMarginOrderService().
		Symbol(pair).
		Type(binance.OrderTypeStopLossLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Side(binance.SideType(side)).
		Quantity(formatQuantity(m.assetsInfo, pair, quantity)).
		Price(formatPrice(m.assetsInfo, pair, price)).
		StopPrice(formatPrice(m.assetsInfo, pair, stopPrice)).
		IsIsolated(m.isolated).
		Do(ctx)
	if err != nil {
		return core.Order{}, wrapOrderError(err, pair, quantity)
	}

	converted := convertCreateOrderResponse(order)
	converted.Stop = &stopPrice
	return converted, nil
}

// CreateOrderMarketQuote creates a market margin order sized by quote amount.
// Buys borrow against the position via the MARGIN_BUY side effect, which is
// what makes the jump-in entry possible without a pre-funded base balance.
func (m *Margin) CreateOrderMarketQuote(ctx context.Context, side core.SideType, pair string,
	quoteAmount float64) (core.Order, error) {

	service := m.client.NewCreateMarginOrderService().
		Symbol(pair).
		Type(binance.OrderTypeMarket).
		Side(binance.SideType(side)).
		QuoteOrderQty(strconv.FormatFloat(quoteAmount, 'f', 8, 64)).
		IsIsolated(m.isolated).
		NewOrderRespType(binance.NewOrderRespTypeFULL)

	if side == core.SideTypeBuy {
		service = service.SideEffectType(binance.SideEffectTypeMarginBuy)
	}

	order, err := service.Do(ctx)
	if err != nil {
		return core.Order{}, wrapOrderError(err, pair, quoteAmount)
	}

	return convertCreateOrderResponse(order), nil
}

// PriceSubscription subscribes to live trade prices for a pair
func (m *Margin) PriceSubscription(ctx context.Context, pair string) (chan core.PriceTick, chan error) {
	return servePriceFeed(ctx, pair, m.log)
}

// ExecutionSubscription subscribes to execution reports for a pair on the
// margin user-data stream.
func (m *Margin) ExecutionSubscription(ctx context.Context, pair string) (chan core.ExecutionReport, chan error) {
	if m.isolated {
		return serveUserData(ctx, pair,
			func(ctx context.Context) (string, error) {
				return m.client.NewStartIsolatedMarginUserStreamService().Symbol(pair).Do(ctx)
			},
			func(ctx context.Context, listenKey string) error {
				return m.client.NewKeepaliveIsolatedMarginUserStreamService().
					Symbol(pair).
					ListenKey(listenKey).
					Do(ctx)
			},
			m.log,
		)
	}

	return serveUserData(ctx, pair,
		func(ctx context.Context) (string, error) {
			return m.client.NewStartMarginUserStreamService().Do(ctx)
		},
		func(ctx context.Context, listenKey string) error {
			return m.client.NewKeepaliveMarginUserStreamService().ListenKey(listenKey).Do(ctx)
		},
		m.log,
	)
}
