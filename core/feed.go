package core

import "time"

// PriceTick is a single trade-price quote for a market, delivered at whatever
// frequency the venue produces them.
type PriceTick struct {
	Pair  string
	Price float64
	Time  time.Time
}

// ExecutionReport is an order-status event from the venue user-data stream.
type ExecutionReport struct {
	Pair           string
	OrderID        int64
	Side           SideType
	Type           OrderType
	Status         OrderStatusType
	Price          float64
	Quantity       float64
	FilledQuantity float64
	Time           time.Time
}
