package core

import "errors"

var (
	ErrNegativeValue         = errors.New("negative value")
	ErrEmptyQuantity         = errors.New("computed stop loss quantity is zero")
	ErrKeepThresholdExceeded = errors.New("keep threshold is greater than the free asset amount")
	ErrUnsupportedExchange   = errors.New("unsupported exchange")
	ErrInvalidPair           = errors.New("invalid pair")
)

// TransientOrderError marks a venue rejection that is expected to clear on
// its own, e.g. a stop order that would trigger immediately at the current
// market price. The lifecycle controller retries these on a fixed backoff;
// every other rejection fails the current replace cycle.
type TransientOrderError struct {
	Err error
}

func (e *TransientOrderError) Error() string {
	return "transient order rejection: " + e.Err.Error()
}

func (e *TransientOrderError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err belongs to the retryable rejection class.
func IsTransient(err error) bool {
	var transient *TransientOrderError
	return errors.As(err, &transient)
}
