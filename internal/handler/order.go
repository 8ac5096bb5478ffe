package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-checkout/internal/domain/order"
)

// ListOrders returns the user's orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByUser(r.Context(), r.PathValue("userID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range orders {
			encodeOrder(e, &orders[i])
		}
		e.ArrEnd()
	})
}

// GetOrder returns one of the user's orders.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.ownedOrder(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// UpdateOrderStatus moves an order along its lifecycle with {"status"}.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var next string
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		var err error
		next, err = d.Str()
		return err
	})
	if err == nil && !order.Status(next).Valid() {
		err = badRequest("unknown order status %q", next)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), order.Status(next))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// CancelOrder cancels one of the user's orders and returns its stock.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	owned, err := h.ownedOrder(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	o, err := h.orders.Cancel(r.Context(), owned.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// ownedOrder loads {id} and hides it unless it belongs to {userID}.
func (h *Handler) ownedOrder(r *http.Request) (*order.Order, error) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if o.UserID != r.PathValue("userID") {
		return nil, order.ErrNotFound
	}
	return o, nil
}
