package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-checkout/internal/domain/inventory"
)

// CheckStock reports whether ?quantity= (default 1) units are available.
func (h *Handler) CheckStock(w http.ResponseWriter, r *http.Request) {
	quantity := 1
	if q := r.URL.Query().Get("quantity"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			h.fail(w, r, badRequest("quantity must be an integer"))
			return
		}
		quantity = n
	}

	productID := r.PathValue("productID")
	av, err := h.inventory.CheckStock(r.Context(), productID, quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		str(e, "product_id", productID)
		integer(e, "requested", quantity)
		e.FieldStart("available")
		e.Bool(av.Available)
		integer(e, "current_stock", av.CurrentStock)
		e.ObjEnd()
	})
}

// Restock adds stock with {"quantity","max_stock","auto_adjust"}.
func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	var (
		quantity int
		opts     inventory.RestockOptions
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "quantity":
			quantity, err = d.Int()
		case "max_stock":
			opts.MaxStock, err = d.Int()
		case "auto_adjust":
			opts.AutoAdjust, err = d.Bool()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	productID := r.PathValue("productID")
	res, err := h.inventory.Restock(r.Context(), productID, quantity, opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		str(e, "product_id", productID)
		integer(e, "added", res.Added)
		integer(e, "new_stock", res.NewStock)
		e.FieldStart("capped")
		e.Bool(res.Capped)
		e.ObjEnd()
	})
}

// AdjustStock sets an absolute stock level with {"stock","reason"}.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var (
		stock  int
		seen   bool
		reason string
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "stock":
			stock, err = d.Int()
			seen = true
		case "reason":
			reason, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	if err == nil && !seen {
		err = badRequest("stock is required")
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	productID := r.PathValue("productID")
	newStock, err := h.inventory.Adjust(r.Context(), productID, stock, reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		str(e, "product_id", productID)
		integer(e, "new_stock", newStock)
		e.ObjEnd()
	})
}

// InventoryLog returns stock mutations, newest first, filtered by
// ?product= and capped by ?limit=.
func (h *Handler) InventoryLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.fail(w, r, badRequest("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	entries := h.inventory.Log(q.Get("product"), limit)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, le := range entries {
			encodeLogEntry(e, le)
		}
		e.ArrEnd()
	})
}
