package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/coupon"
	"github.com/xenking/kart-checkout/internal/domain/inventory"
	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/product"
	"github.com/xenking/kart-checkout/pkg/httpmiddleware"
)

// Error kinds outside checkout.
const (
	kindBadRequest        = "bad_request"
	kindNotFound          = "not_found"
	kindConflict          = "conflict"
	kindInvalidTransition = "invalid_transition"
)

// checkoutStatus maps checkout outcome kinds to HTTP status codes.
var checkoutStatus = map[string]int{
	checkout.KindSuccess:         http.StatusCreated,
	checkout.KindValidation:      http.StatusBadRequest,
	checkout.KindEmptyCart:       http.StatusConflict,
	checkout.KindStock:           http.StatusConflict,
	checkout.KindPaymentDeclined: http.StatusPaymentRequired,
	checkout.KindPersistence:     http.StatusInternalServerError,
	checkout.KindBusy:            http.StatusConflict,
	checkout.KindInternal:        http.StatusInternalServerError,
}

// classify maps a domain error to a status, kind and client message.
func classify(err error) (int, string, string) {
	var (
		stockErr      *inventory.InsufficientStockError
		transitionErr *order.InvalidTransitionError
		validationErr *checkout.ValidationError
	)
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, kindBadRequest, err.Error()
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, checkout.KindValidation, validationErr.Error()
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidPrice),
		errors.Is(err, cart.ErrQuantityTooLarge),
		errors.Is(err, inventory.ErrInvalidQuantity):
		return http.StatusBadRequest, checkout.KindValidation, rootMessage(err)
	case errors.Is(err, coupon.ErrInvalidCoupon),
		errors.Is(err, coupon.ErrMinimumNotMet),
		errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrCouponUsageLimitReached):
		return http.StatusBadRequest, checkout.KindValidation, rootMessage(err)
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound):
		return http.StatusNotFound, kindNotFound, rootMessage(err)
	case errors.As(err, &stockErr):
		return http.StatusConflict, checkout.KindStock, stockErr.Error()
	case errors.Is(err, inventory.ErrExceedsMaxStock),
		errors.Is(err, inventory.ErrAtMaxStock):
		return http.StatusConflict, kindConflict, rootMessage(err)
	case errors.As(err, &transitionErr):
		return http.StatusConflict, kindInvalidTransition, transitionErr.Error()
	case errors.Is(err, order.ErrNotCancellable):
		return http.StatusConflict, kindInvalidTransition, order.ErrNotCancellable.Error()
	default:
		return http.StatusInternalServerError, checkout.KindInternal, "internal server error"
	}
}

// rootMessage strips wrapping context so clients see the sentinel text.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, kind, msg := classify(err)
	lg := zctx.From(r.Context())
	if status >= http.StatusInternalServerError {
		lg.Error("Request failed", zap.String("kind", kind), zap.Error(err))
	} else {
		lg.Debug("Request rejected", zap.String("kind", kind), zap.Error(err))
	}
	httpmiddleware.WriteError(w, status, kind, msg)
}
