//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func addToCart(t *testing.T, user, productID string, quantity int) {
	t.Helper()
	resp := doPost(t, "/api/users/"+user+"/cart/items", map[string]any{"product_id": productID, "quantity": quantity})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
}

func TestCheckout_Lifecycle(t *testing.T) {
	const user = "checkout-user"
	before := stockOf(t, "p4")

	addToCart(t, user, "p4", 2)
	resp := doPost(t, "/api/users/"+user+"/checkout", checkoutRequest{
		ShippingAddress: validAddress(),
		PaymentMethod:   "credit_card",
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusCreated)

	res := decodeJSON[checkoutResponse](t, resp)
	if !res.Success || res.Order == nil {
		t.Fatalf("expected success with order, got %+v", res)
	}
	if res.Order.Status != "confirmed" {
		t.Errorf("status: got %q, want confirmed", res.Order.Status)
	}
	if res.Order.Subtotal != "79.00" {
		t.Errorf("subtotal: got %q, want 79.00", res.Order.Subtotal)
	}
	if got := stockOf(t, "p4"); got != before-2 {
		t.Errorf("stock after checkout: got %d, want %d", got, before-2)
	}

	cr := doGet(t, "/api/users/"+user+"/cart")
	defer cr.Body.Close()
	if c := decodeJSON[cartResponse](t, cr); len(c.Items) != 0 {
		t.Errorf("expected empty cart after checkout, got %+v", c.Items)
	}

	lr := doGet(t, "/api/users/"+user+"/orders")
	defer lr.Body.Close()
	expectStatus(t, lr, http.StatusOK)
	if orders := decodeJSON[[]orderResponse](t, lr); len(orders) != 1 || orders[0].ID != res.Order.ID {
		t.Fatalf("expected the new order to be listed, got %+v", orders)
	}

	// Status changes need the operator key.
	denied := doPost(t, "/api/orders/"+res.Order.ID+"/status", map[string]string{"status": "shipped"})
	defer denied.Body.Close()
	expectStatus(t, denied, http.StatusUnauthorized)

	shipped := doOperator(t, "/api/orders/"+res.Order.ID+"/status", map[string]string{"status": "shipped"})
	defer shipped.Body.Close()
	expectStatus(t, shipped, http.StatusOK)
	if o := decodeJSON[orderResponse](t, shipped); o.Status != "shipped" {
		t.Errorf("status: got %q, want shipped", o.Status)
	}

	foreign := doPost(t, "/api/users/someone-else/orders/"+res.Order.ID+"/cancel", nil)
	defer foreign.Body.Close()
	expectStatus(t, foreign, http.StatusNotFound)

	cancelled := doPost(t, "/api/users/"+user+"/orders/"+res.Order.ID+"/cancel", nil)
	defer cancelled.Body.Close()
	expectStatus(t, cancelled, http.StatusOK)
	if got := stockOf(t, "p4"); got != before {
		t.Errorf("stock after cancel: got %d, want %d", got, before)
	}

	again := doPost(t, "/api/users/"+user+"/orders/"+res.Order.ID+"/cancel", nil)
	defer again.Body.Close()
	expectStatus(t, again, http.StatusConflict)
}

func TestCheckout_OutOfStockRollsBack(t *testing.T) {
	const user = "oos-user"
	before := stockOf(t, "p4")

	addToCart(t, user, "p4", 1)
	addToCart(t, user, "p12", 1)

	resp := doPost(t, "/api/users/"+user+"/checkout", checkoutRequest{
		ShippingAddress: validAddress(),
		PaymentMethod:   "paypal",
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusConflict)

	res := decodeJSON[checkoutResponse](t, resp)
	if res.Success || res.Kind != "stock" {
		t.Errorf("expected stock failure, got %+v", res)
	}
	if got := stockOf(t, "p4"); got != before {
		t.Errorf("stock of p4: got %d, want %d", got, before)
	}
}

func TestCheckout_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		user   string
		fill   bool
		req    checkoutRequest
		status int
		kind   string
	}{
		{
			name:   "empty cart",
			user:   "empty-user",
			req:    checkoutRequest{ShippingAddress: validAddress(), PaymentMethod: "credit_card"},
			status: http.StatusConflict,
			kind:   "empty_cart",
		},
		{
			name:   "invalid address",
			user:   "addr-user",
			fill:   true,
			req:    checkoutRequest{ShippingAddress: addressRequest{Country: "US"}, PaymentMethod: "credit_card"},
			status: http.StatusBadRequest,
			kind:   "validation",
		},
		{
			name:   "unknown payment method",
			user:   "pay-user",
			fill:   true,
			req:    checkoutRequest{ShippingAddress: validAddress(), PaymentMethod: "barter"},
			status: http.StatusBadRequest,
			kind:   "validation",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.fill {
				addToCart(t, tt.user, "p9", 1)
			}
			resp := doPost(t, "/api/users/"+tt.user+"/checkout", tt.req)
			defer resp.Body.Close()
			expectStatus(t, resp, tt.status)

			res := decodeJSON[checkoutResponse](t, resp)
			if res.Kind != tt.kind {
				t.Errorf("kind: got %q, want %q", res.Kind, tt.kind)
			}
		})
	}
}

func TestInventory_OperatorRoutes(t *testing.T) {
	before := stockOf(t, "p10")

	denied := doPost(t, "/api/inventory/p10/restock", map[string]any{"quantity": 5})
	defer denied.Body.Close()
	expectStatus(t, denied, http.StatusUnauthorized)

	restock := doOperator(t, "/api/inventory/p10/restock", map[string]any{"quantity": 5})
	defer restock.Body.Close()
	expectStatus(t, restock, http.StatusOK)
	if got := stockOf(t, "p10"); got != before+5 {
		t.Errorf("stock after restock: got %d, want %d", got, before+5)
	}

	adjust := doOperator(t, "/api/inventory/p10/adjust", map[string]any{"stock": before, "reason": "cycle count"})
	defer adjust.Body.Close()
	expectStatus(t, adjust, http.StatusOK)
	if got := stockOf(t, "p10"); got != before {
		t.Errorf("stock after adjust: got %d, want %d", got, before)
	}

	lr := doGet(t, "/api/inventory/log?product=p10&limit=2")
	defer lr.Body.Close()
	expectStatus(t, lr, http.StatusOK)
	entries := decodeJSON[[]struct {
		Type  string `json:"type"`
		Delta int    `json:"delta"`
	}](t, lr)
	if len(entries) != 2 || entries[0].Type != "adjustment" || entries[1].Type != "restock" {
		t.Errorf("unexpected log: %+v", entries)
	}
}
