package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

// ListProducts returns the whole catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range products {
			encodeProduct(e, p)
		}
		e.ArrEnd()
	})
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, *p) })
}

// QuoteProduct prices ?quantity= (default 1) units of a product at its
// current price, less the bulk discount for that quantity.
func (h *Handler) QuoteProduct(w http.ResponseWriter, r *http.Request) {
	quantity := 1
	if q := r.URL.Query().Get("quantity"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 || n > cart.MaxLineQuantity {
			h.fail(w, r, badRequest("quantity must be an integer between 1 and %d", cart.MaxLineQuantity))
			return
		}
		quantity = n
	}

	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	line := p.Price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	bulk := pricing.BulkDiscount(quantity, p.Price)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		str(e, "product_id", p.ID)
		integer(e, "quantity", quantity)
		money(e, "unit_price", p.Price)
		money(e, "line_total", line)
		money(e, "bulk_discount", bulk)
		money(e, "total", line.Sub(bulk))
		e.ObjEnd()
	})
}
