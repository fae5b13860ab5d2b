// Package storage persists the order journal the engine writes for every
// protective order it touches.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/raykavin/trailstop/core"
	"github.com/tidwall/buntdb"
)

// updateIndexName orders journal iteration by update timestamp
const updateIndexName = "update_index"

// BuntStorage implements the core.Storage interface using BuntDB
type BuntStorage struct {
	lastID int64
	db     *buntdb.DB
}

// NewFromMemory creates an in-memory journal, used by tests and dry runs
func NewFromMemory() (*BuntStorage, error) {
	return NewFromFile(":memory:")
}

// NewFromFile creates a file-based journal
func NewFromFile(sourceFile string) (*BuntStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	if err := db.SetConfig(buntdb.Config{
		SyncPolicy: buntdb.EverySecond,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure buntdb: %w", err)
	}

	if err := db.CreateIndex(updateIndexName, "*", buntdb.IndexJSON("updated_at")); err != nil {
		return nil, fmt.Errorf("failed to create update index: %w", err)
	}

	return &BuntStorage{db: db}, nil
}

func (b *BuntStorage) getID() int64 {
	return atomic.AddInt64(&b.lastID, 1)
}

// CreateOrder stores a new order in the journal
func (b *BuntStorage) CreateOrder(_ context.Context, order *core.Order) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		if order.ID == 0 {
			order.ID = b.getID()
		}

		content, err := json.Marshal(order)
		if err != nil {
			return fmt.Errorf("failed to marshal order: %w", err)
		}

		key := strconv.FormatInt(order.ID, 10)
		if _, _, err := tx.Set(key, string(content), nil); err != nil {
			return fmt.Errorf("failed to store order: %w", err)
		}

		return nil
	})
}

// UpdateOrder updates an existing journal entry
func (b *BuntStorage) UpdateOrder(_ context.Context, order *core.Order) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		id := strconv.FormatInt(order.ID, 10)

		if _, err := tx.Get(id); err != nil {
			return fmt.Errorf("order not found: %w", err)
		}

		content, err := json.Marshal(order)
		if err != nil {
			return fmt.Errorf("failed to marshal order: %w", err)
		}

		if _, _, err := tx.Set(id, string(content), nil); err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}

		return nil
	})
}

// Orders retrieves journal entries matching all provided filters, ordered by
// update timestamp.
func (b *BuntStorage) Orders(_ context.Context, filters ...core.OrderFilter) ([]*core.Order, error) {
	orders := make([]*core.Order, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(updateIndexName, func(key, value string) bool {
			var order core.Order
			if err := json.Unmarshal([]byte(value), &order); err != nil {
				return true
			}

			for _, filter := range filters {
				if !filter(order) {
					return true
				}
			}

			orders = append(orders, &order)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	return orders, nil
}

// Close closes the database
func (b *BuntStorage) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
