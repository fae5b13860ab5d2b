// Package binance provides the Binance exchange clients used by the trailing
// stop loss engine: spot, cross margin, and isolated margin.
package binance

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/jpillora/backoff"

	"github.com/raykavin/trailstop/core"
	"github.com/raykavin/trailstop/exchange"
)

// listenKeyKeepAliveInterval is how often the user-data listen key is
// refreshed; Binance expires idle keys after 60 minutes.
const listenKeyKeepAliveInterval = 30 * time.Minute

// Rejection codes the venue clears on its own once the price moves, e.g. a
// stop order that would trigger immediately.
const (
	apiErrNewOrderRejected = -2010
	apiErrSystemBusy       = -3044
)

// wrapOrderError classifies a submission rejection. Transient rejections are
// wrapped so the lifecycle controller retries them; everything else carries
// the order context.
func wrapOrderError(err error, pair string, quantity float64) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && isTransient(apiErr) {
		return &core.TransientOrderError{Err: err}
	}
	return &exchange.OrderError{Err: err, Pair: pair, Quantity: quantity}
}

func isTransient(apiErr *common.APIError) bool {
	switch apiErr.Code {
	case apiErrNewOrderRejected:
		message := strings.ToLower(apiErr.Message)
		return strings.Contains(message, "would trigger immediately") ||
			strings.Contains(message, "would immediately match")
	case apiErrSystemBusy:
		return true
	}
	return false
}

// formatQuantity formats a quantity according to the pair's step size
func formatQuantity(assetsInfo map[string]core.AssetInfo, pair string, value float64) string {
	info, ok := assetsInfo[pair]
	if !ok {
		return strconv.FormatFloat(value, 'f', 8, 64)
	}

	step := info.StepSize
	precision := 0
	for step < 1 {
		step *= 10
		precision++
	}

	return strconv.FormatFloat(value, 'f', precision, 64)
}

// formatPrice formats a price according to the pair's tick size
func formatPrice(assetsInfo map[string]core.AssetInfo, pair string, value float64) string {
	info, ok := assetsInfo[pair]
	if !ok {
		return strconv.FormatFloat(value, 'f', 8, 64)
	}

	tickSize := info.TickSize
	precision := 0
	for tickSize < 1 {
		tickSize *= 10
		precision++
	}

	return strconv.FormatFloat(value, 'f', precision, 64)
}

// buildAssetInfo extracts orders precision and asset limits from exchange info
func buildAssetInfo(info binance.Symbol) core.AssetInfo {
	assetInfo := core.AssetInfo{
		BaseAsset:          info.BaseAsset,
		QuoteAsset:         info.QuoteAsset,
		BaseAssetPrecision: info.BaseAssetPrecision,
		QuotePrecision:     info.QuotePrecision,
	}

	for _, filter := range info.Filters {
		if typ, ok := filter["filterType"]; ok {
			if typ == string(binance.SymbolFilterTypeLotSize) {
				assetInfo.MinQuantity, _ = strconv.ParseFloat(filter["minQty"].(string), 64)
				assetInfo.MaxQuantity, _ = strconv.ParseFloat(filter["maxQty"].(string), 64)
				assetInfo.StepSize, _ = strconv.ParseFloat(filter["stepSize"].(string), 64)
			}

			if typ == string(binance.SymbolFilterTypePriceFilter) {
				assetInfo.MinPrice, _ = strconv.ParseFloat(filter["minPrice"].(string), 64)
				assetInfo.MaxPrice, _ = strconv.ParseFloat(filter["maxPrice"].(string), 64)
				assetInfo.TickSize, _ = strconv.ParseFloat(filter["tickSize"].(string), 64)
			}
		}
	}

	return assetInfo
}

// convertBinanceOrder converts a Binance order to a core.Order
func convertBinanceOrder(order *binance.Order) core.Order {
	var price float64
	cost, _ := strconv.ParseFloat(order.CummulativeQuoteQuantity, 64)
	quantity, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
	if cost > 0 && quantity > 0 {
		price = cost / quantity
	} else {
		price, _ = strconv.ParseFloat(order.Price, 64)
		quantity, _ = strconv.ParseFloat(order.OrigQuantity, 64)
	}

	converted := core.Order{
		ExchangeID: order.OrderID,
		Pair:       order.Symbol,
		CreatedAt:  time.Unix(0, order.Time*int64(time.Millisecond)),
		UpdatedAt:  time.Unix(0, order.UpdateTime*int64(time.Millisecond)),
		Side:       core.SideType(order.Side),
		Type:       core.OrderType(order.Type),
		Status:     core.OrderStatusType(order.Status),
		Price:      price,
		Quantity:   quantity,
	}

	if stop, err := strconv.ParseFloat(order.StopPrice, 64); err == nil && stop > 0 {
		converted.Stop = &stop
	}

	return converted
}

// convertCreateOrderResponse converts a create-order response to a core.Order
func convertCreateOrderResponse(order *binance.CreateOrderResponse) core.Order {
	var price float64
	cost, _ := strconv.ParseFloat(order.CummulativeQuoteQuantity, 64)
	quantity, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
	if cost > 0 && quantity > 0 {
		price = cost / quantity
	} else {
		price, _ = strconv.ParseFloat(order.Price, 64)
		quantity, _ = strconv.ParseFloat(order.OrigQuantity, 64)
	}

	return core.Order{
		ExchangeID: order.OrderID,
		Pair:       order.Symbol,
		CreatedAt:  time.Unix(0, order.TransactTime*int64(time.Millisecond)),
		UpdatedAt:  time.Unix(0, order.TransactTime*int64(time.Millisecond)),
		Side:       core.SideType(order.Side),
		Type:       core.OrderType(order.Type),
		Status:     core.OrderStatusType(order.Status),
		Price:      price,
		Quantity:   quantity,
	}
}

// convertOrderUpdate converts a user-data order update to an execution report
func convertOrderUpdate(update binance.WsOrderUpdate) core.ExecutionReport {
	price, _ := strconv.ParseFloat(update.Price, 64)
	quantity, _ := strconv.ParseFloat(update.Volume, 64)
	filled, _ := strconv.ParseFloat(update.FilledVolume, 64)

	return core.ExecutionReport{
		Pair:           update.Symbol,
		OrderID:        update.Id,
		Side:           core.SideType(update.Side),
		Type:           core.OrderType(update.Type),
		Status:         core.OrderStatusType(update.Status),
		Price:          price,
		Quantity:       quantity,
		FilledQuantity: filled,
		Time:           time.Unix(0, update.TransactionTime*int64(time.Millisecond)),
	}
}

// setupBackoffRetry creates a backoff with sensible defaults
func setupBackoffRetry() *backoff.Backoff {
	return &backoff.Backoff{
		Min: 100 * time.Millisecond,
		Max: 1 * time.Second,
	}
}

// servePriceFeed streams aggregated trade prices for a pair, reconnecting on
// stream drops until the context is done. Unparsable quotes are dropped.
func servePriceFeed(ctx context.Context, pair string, log core.Logger) (chan core.PriceTick, chan error) {
	tickChan := make(chan core.PriceTick)
	errChan := make(chan error)
	retry := setupBackoffRetry()

	go func() {
		for {
			done, _, err := binance.WsAggTradeServe(pair, func(event *binance.WsAggTradeEvent) {
				retry.Reset()

				price, err := strconv.ParseFloat(event.Price, 64)
				if err != nil {
					log.Debugf("binance: dropping unparsable price quote %q for %s", event.Price, pair)
					return
				}

				tickChan <- core.PriceTick{
					Pair:  event.Symbol,
					Price: price,
					Time:  time.Unix(0, event.Time*int64(time.Millisecond)),
				}
			}, func(err error) {
				errChan <- err
			})

			if err != nil {
				errChan <- err
				close(errChan)
				close(tickChan)
				return
			}

			select {
			case <-ctx.Done():
				close(errChan)
				close(tickChan)
				return
			case <-done:
				time.Sleep(retry.Duration())
			}
		}
	}()

	return tickChan, errChan
}

// serveUserData streams execution reports for a pair over the user-data
// stream. Listen key acquisition and keep-alive are delegated so spot and
// margin accounts can share the loop.
func serveUserData(
	ctx context.Context,
	pair string,
	start func(ctx context.Context) (string, error),
	keepAlive func(ctx context.Context, listenKey string) error,
	log core.Logger,
) (chan core.ExecutionReport, chan error) {
	reportChan := make(chan core.ExecutionReport)
	errChan := make(chan error)
	retry := setupBackoffRetry()

	go func() {
		for {
			listenKey, err := start(ctx)
			if err != nil {
				errChan <- err
				select {
				case <-ctx.Done():
					close(errChan)
					close(reportChan)
					return
				case <-time.After(retry.Duration()):
					continue
				}
			}

			keepAliveCtx, stopKeepAlive := context.WithCancel(ctx)
			go func() {
				ticker := time.NewTicker(listenKeyKeepAliveInterval)
				defer ticker.Stop()
				for {
					select {
					case <-keepAliveCtx.Done():
						return
					case <-ticker.C:
						if err := keepAlive(keepAliveCtx, listenKey); err != nil {
							log.WithError(err).Warn("binance: user data listen key keep-alive failed")
						}
					}
				}
			}()

			done, _, err := binance.WsUserDataServe(listenKey, func(event *binance.WsUserDataEvent) {
				if event.Event != binance.UserDataEventTypeExecutionReport {
					return
				}
				if event.OrderUpdate.Symbol != pair {
					return
				}

				retry.Reset()
				reportChan <- convertOrderUpdate(event.OrderUpdate)
			}, func(err error) {
				errChan <- err
			})

			if err != nil {
				stopKeepAlive()
				errChan <- err
				close(errChan)
				close(reportChan)
				return
			}

			select {
			case <-ctx.Done():
				stopKeepAlive()
				close(errChan)
				close(reportChan)
				return
			case <-done:
				stopKeepAlive()
				time.Sleep(retry.Duration())
			}
		}
	}()

	return reportChan, errChan
}
