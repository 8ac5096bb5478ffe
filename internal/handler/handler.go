// Package handler exposes the checkout domain over HTTP with JSON bodies.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/inventory"
	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/product"
	"github.com/xenking/kart-checkout/pkg/httpmiddleware"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// Checkouter runs a checkout for a user.
type Checkouter interface {
	Checkout(ctx context.Context, userID string, d checkout.Details) (*order.Order, error)
}

// Deps are the domain services behind the routes.
type Deps struct {
	Products  product.Repository
	Carts     *cart.Ledger
	Checkout  Checkouter
	Orders    *order.Service
	Inventory *inventory.Manager
	// Operator guards stock and order-status mutations. Nil leaves them open.
	Operator httpmiddleware.Middleware
}

// Handler serves the JSON API.
type Handler struct {
	products  product.Repository
	carts     *cart.Ledger
	checkout  Checkouter
	orders    *order.Service
	inventory *inventory.Manager
	operator  httpmiddleware.Middleware
}

// New constructs a Handler.
func New(deps Deps) *Handler {
	operator := deps.Operator
	if operator == nil {
		operator = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		products:  deps.Products,
		carts:     deps.Carts,
		checkout:  deps.Checkout,
		orders:    deps.Orders,
		inventory: deps.Inventory,
		operator:  operator,
	}
}

// Register adds every API route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("GET /api/products/{id}/quote", h.QuoteProduct)

	mux.HandleFunc("GET /api/users/{userID}/cart", h.GetCart)
	mux.HandleFunc("POST /api/users/{userID}/cart/items", h.AddCartItem)
	mux.HandleFunc("PUT /api/users/{userID}/cart/items/{productID}", h.UpdateCartItem)
	mux.HandleFunc("DELETE /api/users/{userID}/cart/items/{productID}", h.RemoveCartItem)
	mux.HandleFunc("GET /api/users/{userID}/cart/totals", h.CartTotals)

	mux.HandleFunc("POST /api/users/{userID}/checkout", h.Checkout)

	mux.HandleFunc("GET /api/users/{userID}/orders", h.ListOrders)
	mux.HandleFunc("GET /api/users/{userID}/orders/{id}", h.GetOrder)
	mux.Handle("POST /api/orders/{id}/status", h.operator(http.HandlerFunc(h.UpdateOrderStatus)))
	mux.HandleFunc("POST /api/users/{userID}/orders/{id}/cancel", h.CancelOrder)

	mux.HandleFunc("GET /api/inventory/log", h.InventoryLog)
	mux.HandleFunc("GET /api/inventory/{productID}", h.CheckStock)
	mux.Handle("POST /api/inventory/{productID}/restock", h.operator(http.HandlerFunc(h.Restock)))
	mux.Handle("POST /api/inventory/{productID}/adjust", h.operator(http.HandlerFunc(h.AdjustStock)))
}

// Routes returns a mux with every API route registered.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}
