package storage

import (
	"context"
	"testing"
	"time"

	"github.com/raykavin/trailstop/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuntStorageOrderJournal(t *testing.T) {
	db, err := NewFromMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()

	first := &core.Order{
		ExchangeID: 100,
		Pair:       "BTCUSDT",
		Side:       core.SideTypeSell,
		Type:       core.OrderTypeStopLossLimit,
		Status:     core.OrderStatusTypeNew,
		Price:      98,
		Quantity:   0.5,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, db.CreateOrder(ctx, first))
	assert.NotZero(t, first.ID)

	second := &core.Order{
		ExchangeID: 101,
		Pair:       "BTCUSDT",
		Side:       core.SideTypeSell,
		Type:       core.OrderTypeStopLossLimit,
		Status:     core.OrderStatusTypeNew,
		Price:      99,
		Quantity:   0.5,
		CreatedAt:  now.Add(time.Second),
		UpdatedAt:  now.Add(time.Second),
	}
	require.NoError(t, db.CreateOrder(ctx, second))

	first.Status = core.OrderStatusTypeCanceled
	require.NoError(t, db.UpdateOrder(ctx, first))

	canceled, err := db.Orders(ctx, core.WithStatus(core.OrderStatusTypeCanceled))
	require.NoError(t, err)
	require.Len(t, canceled, 1)
	assert.EqualValues(t, 100, canceled[0].ExchangeID)

	open, err := db.Orders(ctx,
		core.WithPair("BTCUSDT"),
		core.WithStatusIn(core.OrderStatusTypeNew, core.OrderStatusTypePartiallyFilled),
	)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.EqualValues(t, 101, open[0].ExchangeID)
}

func TestBuntStorageUpdateMissingOrder(t *testing.T) {
	db, err := NewFromMemory()
	require.NoError(t, err)
	defer db.Close()

	err = db.UpdateOrder(context.Background(), &core.Order{ID: 42})
	require.Error(t, err)
}
