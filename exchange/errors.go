package exchange

import (
	"errors"
	"fmt"
)

// Common errors that can occur during exchange operations
var (
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInsufficientFunds = errors.New("insufficient funds or locked")
	ErrInvalidAsset      = errors.New("invalid asset")
)

// OrderError wraps a venue rejection with the order context that produced it.
type OrderError struct {
	Err      error
	Pair     string
	Quantity float64
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order error: %v (%s, quantity: %f)", e.Err, e.Pair, e.Quantity)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}
