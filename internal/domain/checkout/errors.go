package checkout

import (
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrEmptyCart is returned when checking out a cart with no items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrStockUnavailable matches every *StockUnavailableError.
	ErrStockUnavailable = errors.New("one or more items are out of stock")
	// ErrCheckoutInProgress is returned when the user's checkout lock could
	// not be acquired in time.
	ErrCheckoutInProgress = errors.New("another checkout is in progress")
)

// ValidationError carries the messages that made checkout input invalid.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// StockUnavailableError reports that the cart could not be covered by
// stock. The message is generic; Cause holds the
// *inventory.InsufficientStockError or *inventory.ReservationFailure.
type StockUnavailableError struct {
	Cause error
}

func (e *StockUnavailableError) Error() string {
	return ErrStockUnavailable.Error()
}

func (e *StockUnavailableError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrStockUnavailable) hold.
func (e *StockUnavailableError) Is(target error) bool {
	return target == ErrStockUnavailable
}

// PaymentDeclinedError is returned when the payment was declined, timed
// out or could not be processed.
type PaymentDeclinedError struct {
	Reason  string
	Timeout bool
	Err     error
}

func (e *PaymentDeclinedError) Error() string {
	if e.Reason == "" {
		return "payment declined"
	}
	return "payment declined: " + e.Reason
}

func (e *PaymentDeclinedError) Unwrap() error {
	return e.Err
}

// PersistenceError is returned when the confirmed order could not be
// saved. Every earlier step has been compensated.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "save order: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
