package core

import (
	"fmt"
	"time"
)

// OrderFilter defines a function type for filtering orders
type OrderFilter func(order Order) bool

// SideType represents the direction of an order (BUY or SELL)
type SideType string

// OrderType represents the type of order (LIMIT, MARKET, etc.)
type OrderType string

// OrderStatusType represents the status of an order (NEW, FILLED, etc.)
type OrderStatusType string

// Order side constants
const (
	SideTypeBuy  SideType = "BUY"
	SideTypeSell SideType = "SELL"
)

// Order type constants
const (
	OrderTypeLimit         OrderType = "LIMIT"
	OrderTypeMarket        OrderType = "MARKET"
	OrderTypeStopLoss      OrderType = "STOP_LOSS"
	OrderTypeStopLossLimit OrderType = "STOP_LOSS_LIMIT"
)

// Order status constants
const (
	OrderStatusTypeNew             OrderStatusType = "NEW"
	OrderStatusTypePartiallyFilled OrderStatusType = "PARTIALLY_FILLED"
	OrderStatusTypeFilled          OrderStatusType = "FILLED"
	OrderStatusTypeCanceled        OrderStatusType = "CANCELED"
	OrderStatusTypePendingCancel   OrderStatusType = "PENDING_CANCEL"
	OrderStatusTypeRejected        OrderStatusType = "REJECTED"
	OrderStatusTypeExpired         OrderStatusType = "EXPIRED"
)

// Order represents a venue order with its properties and status
type Order struct {
	ID         int64           `db:"id" json:"id" gorm:"primaryKey,autoIncrement"`
	ExchangeID int64           `db:"exchange_id" json:"exchange_id"`
	Pair       string          `db:"pair" json:"pair"`
	Side       SideType        `db:"side" json:"side"`
	Type       OrderType       `db:"type" json:"type"`
	Status     OrderStatusType `db:"status" json:"status"`
	Price      float64         `db:"price" json:"price"`
	Quantity   float64         `db:"quantity" json:"quantity"`

	// Trigger price for stop orders
	Stop *float64 `db:"stop" json:"stop"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsProtective reports whether the order is a stop order of the given side,
// i.e. a candidate protective order for the trailing engine.
func (o Order) IsProtective(side SideType) bool {
	return (o.Type == OrderTypeStopLossLimit || o.Type == OrderTypeStopLoss) && o.Side == side
}

// IsActive returns true if the order is in an active state
func (o Order) IsActive() bool {
	return o.Status == OrderStatusTypeNew || o.Status == OrderStatusTypePartiallyFilled
}

// IsFilled returns true if the order is completely filled
func (o Order) IsFilled() bool {
	return o.Status == OrderStatusTypeFilled
}

// String returns a human-readable representation of the order
func (o Order) String() string {
	return fmt.Sprintf("[%s] %s %s | ID: %d, Type: %s, %f x $%f (~$%.2f)",
		o.Status, o.Side, o.Pair, o.ExchangeID, o.Type, o.Quantity, o.Price, o.Quantity*o.Price)
}
