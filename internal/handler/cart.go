package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-checkout/internal/domain/cart"
)

// GetCart returns the user's cart, creating an empty one on first use.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), r.PathValue("userID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

// AddCartItem adds {"product_id","quantity"} to the cart.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var (
		productID string
		quantity  int
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			productID, err = d.Str()
		case "quantity":
			quantity, err = d.Int()
		default:
			return d.Skip()
		}
		return err
	})
	if err == nil && productID == "" {
		err = badRequest("product_id is required")
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := h.carts.AddItem(r.Context(), r.PathValue("userID"), productID, quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

// UpdateCartItem replaces the quantity of a cart line with {"quantity"}.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	quantity, err := decodeQuantity(w, r, "quantity")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.carts.UpdateQuantity(r.Context(), r.PathValue("userID"), r.PathValue("productID"), quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

// RemoveCartItem drops a line from the cart.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")

	removed, err := h.carts.RemoveItem(ctx, userID, r.PathValue("productID"))
	if err == nil && !removed {
		err = cart.ErrItemNotFound
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.carts.Get(ctx, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

// CartTotals prices the cart, applying ?code= instead of the automatic
// tier when given.
func (h *Handler) CartTotals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.carts.Get(ctx, r.PathValue("userID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	totals, err := h.carts.ComputeTotals(ctx, c, r.URL.Query().Get("code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeTotals(e, totals) })
}

// decodeQuantity reads a body holding a single integer field.
func decodeQuantity(w http.ResponseWriter, r *http.Request, field string) (int, error) {
	var (
		n    int
		seen bool
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != field {
			return d.Skip()
		}
		v, err := d.Int()
		n, seen = v, true
		return err
	})
	if err != nil {
		return 0, err
	}
	if !seen {
		return 0, badRequest("%s is required", field)
	}
	return n, nil
}
