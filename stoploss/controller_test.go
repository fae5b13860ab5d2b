package stoploss

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/raykavin/trailstop/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerRatchetKeepsHigherStop(t *testing.T) {
	exchange := newFakeExchange()
	settings := testSettings()
	controller := newTestController(exchange, settings, &fakeNotifier{}, Callbacks{})

	ctx := context.Background()
	require.NoError(t, controller.Replace(ctx, 105, 0))

	// A losing candidate still runs the cycle, but at the held price.
	require.NoError(t, controller.Replace(ctx, 100, 0))

	created := exchange.createdOrders()
	require.Len(t, created, 2)
	assert.InDelta(t, 105, created[0].Price, 1e-9)
	assert.InDelta(t, 105, created[1].Price, 1e-9)
}

func TestControllerTriggerPriceStablecoinQuote(t *testing.T) {
	exchange := newFakeExchange()
	settings := testSettings()
	settings.TriggerGap = core.Offset{Value: 0.25}
	settings.PrecisionFiat = 2
	controller := newTestController(exchange, settings, &fakeNotifier{}, Callbacks{})

	require.NoError(t, controller.Replace(context.Background(), 100, 0))

	created := exchange.createdOrders()
	require.Len(t, created, 1)
	require.NotNil(t, created[0].Stop)
	assert.InDelta(t, 100.25, *created[0].Stop, 1e-9)
}

func TestControllerTriggerGapPercent(t *testing.T) {
	exchange := newFakeExchange()
	settings := testSettings()
	settings.TriggerGap = core.Offset{Percent: true, Value: 1}
	controller := newTestController(exchange, settings, &fakeNotifier{}, Callbacks{})

	require.NoError(t, controller.Replace(context.Background(), 100, 0))

	created := exchange.createdOrders()
	require.Len(t, created, 1)
	require.NotNil(t, created[0].Stop)
	assert.InDelta(t, 101, *created[0].Stop, 1e-9)
}

func TestControllerRetriesTransientRejection(t *testing.T) {
	exchange := newFakeExchange()
	exchange.createErrs = []error{
		&core.TransientOrderError{Err: errors.New("order would trigger immediately")},
		&core.TransientOrderError{Err: errors.New("order would trigger immediately")},
	}
	settings := testSettings()
	controller := newTestController(exchange, settings, &fakeNotifier{}, Callbacks{})

	require.NoError(t, controller.Replace(context.Background(), 98, 100))

	// two rejections, then accepted
	require.Len(t, exchange.createdOrders(), 1)
	assert.False(t, controller.Terminated())
}

func TestControllerRetryStopsOnTermination(t *testing.T) {
	exchange := newFakeExchange()
	transient := &core.TransientOrderError{Err: errors.New("order would trigger immediately")}
	exchange.createErrs = []error{transient, transient, transient, transient, transient, transient, transient, transient}
	settings := testSettings()
	settings.RetryInterval = 50 * time.Millisecond
	controller := newTestController(exchange, settings, &fakeNotifier{}, Callbacks{})

	done := make(chan error, 1)
	go func() {
		done <- controller.Replace(context.Background(), 98, 100)
	}()

	time.Sleep(20 * time.Millisecond)
	controller.MarkTerminated()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, core.IsTransient(err))
	case <-time.After(2 * time.Second):
		t.Fatal("replace cycle did not observe termination")
	}
}

func TestControllerNonTransientRejectionKeepsEngineAlive(t *testing.T) {
	exchange := newFakeExchange()
	exchange.createErrs = []error{errors.New("insufficient balance")}
	settings := testSettings()

	var errorMessages []string
	callbacks := Callbacks{OnError: func(message string) { errorMessages = append(errorMessages, message) }}
	notifier := &fakeNotifier{}
	controller := newTestController(exchange, settings, notifier, callbacks)

	err := controller.Replace(context.Background(), 98, 100)
	require.Error(t, err)
	assert.False(t, core.IsTransient(err))

	// the cycle failed but the engine stays up for the next tick
	assert.False(t, controller.Terminated())
	assert.Len(t, errorMessages, 1)
	assert.Empty(t, notifier.notifiedErrors())

	require.NoError(t, controller.Replace(context.Background(), 98, 100))
	assert.Len(t, exchange.createdOrders(), 1)
}

func TestControllerFatalOnKeepThresholdExceeded(t *testing.T) {
	exchange := newFakeExchange()
	settings := testSettings()
	settings.KeepThreshold = &core.Offset{Value: 50}

	var errorMessages []string
	var shutdowns int
	callbacks := Callbacks{OnError: func(message string) { errorMessages = append(errorMessages, message) }}
	notifier := &fakeNotifier{}
	controller := newTestController(exchange, settings, notifier, callbacks)
	controller.SetShutdown(func() { shutdowns++ })

	err := controller.Replace(context.Background(), 98, 100)
	require.ErrorIs(t, err, core.ErrKeepThresholdExceeded)

	assert.True(t, controller.Terminated())
	assert.Equal(t, 1, shutdowns)
	assert.Len(t, errorMessages, 1)
	require.Len(t, notifier.notifiedErrors(), 1)
	assert.ErrorIs(t, notifier.notifiedErrors()[0], core.ErrKeepThresholdExceeded)

	// terminated controller ignores further work
	require.NoError(t, controller.Replace(context.Background(), 99, 101))
	assert.Empty(t, exchange.createdOrders())
}

func TestControllerConcurrentReplaceSerializes(t *testing.T) {
	exchange := newFakeExchange()
	exchange.trackOpen = true
	exchange.openOrders = []core.Order{{
		ExchangeID: 7,
		Pair:       "BTCUSDT",
		Side:       core.SideTypeSell,
		Type:       core.OrderTypeStopLossLimit,
		Status:     core.OrderStatusTypeNew,
		Price:      95,
	}}
	settings := testSettings()
	controller := newTestController(exchange, settings, &fakeNotifier{}, Callbacks{})

	ctx := context.Background()
	var wg sync.WaitGroup
	for _, candidate := range []float64{100, 105} {
		wg.Add(1)
		go func(candidate float64) {
			defer wg.Done()
			assert.NoError(t, controller.Replace(ctx, candidate, 0))
		}(candidate)
	}
	wg.Wait()

	// The cycles serialize on the controller mutex: whichever runs first
	// cancels the pre-existing order and ends early, the other finds nothing
	// left to cancel and submits at the ratcheted price.
	canceled := exchange.canceledOrders()
	require.Len(t, canceled, 1)
	assert.Equal(t, int64(7), canceled[0].ExchangeID)

	created := exchange.createdOrders()
	require.Len(t, created, 1)
	assert.InDelta(t, 105, created[0].Price, 1e-9)

	stop, ok := controller.StopPrice()
	require.True(t, ok)
	assert.InDelta(t, 105, stop, 1e-9)
}

func TestControllerResubmitUsesHeldStopPrice(t *testing.T) {
	exchange := newFakeExchange()
	exchange.trackOpen = true
	settings := testSettings()
	controller := newTestController(exchange, settings, &fakeNotifier{}, Callbacks{})

	ctx := context.Background()
	require.NoError(t, controller.Replace(ctx, 98, 100))

	// ratchet to a higher stop; the cycle ends with the cancellation
	require.NoError(t, controller.Replace(ctx, 102.9, 105))
	require.Len(t, exchange.createdOrders(), 1)
	require.Len(t, exchange.canceledOrders(), 1)

	require.NoError(t, controller.Resubmit(ctx))

	created := exchange.createdOrders()
	require.Len(t, created, 2)
	assert.InDelta(t, 102.9, created[1].Price, 1e-9)
}
