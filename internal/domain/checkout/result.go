package checkout

import (
	"github.com/go-faster/errors"

	"github.com/xenking/kart-checkout/internal/domain/order"
)

// Outcome kinds.
const (
	KindSuccess         = "success"
	KindValidation      = "validation"
	KindEmptyCart       = "empty_cart"
	KindStock           = "stock_unavailable"
	KindPaymentDeclined = "payment_declined"
	KindPersistence     = "persistence"
	KindBusy            = "busy"
	KindInternal        = "internal"
)

// Result is the customer-facing summary of a checkout.
type Result struct {
	Success bool
	Kind    string
	Message string
	Order   *order.Order
}

// Outcome summarizes the return values of Checkout.
func Outcome(o *order.Order, err error) Result {
	if err == nil {
		return Result{Success: true, Kind: KindSuccess, Message: "order confirmed", Order: o}
	}

	var (
		validationErr  *ValidationError
		paymentErr     *PaymentDeclinedError
		persistenceErr *PersistenceError
	)
	switch {
	case errors.As(err, &validationErr):
		return Result{Kind: KindValidation, Message: validationErr.Error()}
	case errors.Is(err, ErrEmptyCart):
		return Result{Kind: KindEmptyCart, Message: ErrEmptyCart.Error()}
	case errors.Is(err, ErrStockUnavailable):
		return Result{Kind: KindStock, Message: ErrStockUnavailable.Error()}
	case errors.As(err, &paymentErr):
		return Result{Kind: KindPaymentDeclined, Message: paymentErr.Error()}
	case errors.As(err, &persistenceErr):
		return Result{Kind: KindPersistence, Message: "order could not be saved"}
	case errors.Is(err, ErrCheckoutInProgress):
		return Result{Kind: KindBusy, Message: ErrCheckoutInProgress.Error()}
	default:
		return Result{Kind: KindInternal, Message: "checkout failed"}
	}
}
