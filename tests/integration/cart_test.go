//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestCart_AddUpdateRemove(t *testing.T) {
	const user = "/api/users/cart-user/cart"

	resp := doPost(t, user+"/items", map[string]any{"product_id": "p1", "quantity": 2})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = doPost(t, user+"/items", map[string]any{"product_id": "p1", "quantity": 1})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
	c := decodeJSON[cartResponse](t, resp)
	if len(c.Items) != 1 || c.Items[0].Quantity != 3 {
		t.Fatalf("expected one line of 3, got %+v", c.Items)
	}
	if c.Subtotal != "74.97" {
		t.Errorf("subtotal: got %q, want 74.97", c.Subtotal)
	}

	upd := do(t, http.MethodPut, user+"/items/p1", map[string]any{"quantity": 1})
	defer upd.Body.Close()
	expectStatus(t, upd, http.StatusOK)
	if c := decodeJSON[cartResponse](t, upd); c.ItemCount != 1 {
		t.Errorf("item count: got %d, want 1", c.ItemCount)
	}

	del := do(t, http.MethodDelete, user+"/items/p1", nil)
	defer del.Body.Close()
	expectStatus(t, del, http.StatusOK)
	if c := decodeJSON[cartResponse](t, del); len(c.Items) != 0 {
		t.Errorf("expected empty cart, got %+v", c.Items)
	}
}

func TestCart_Totals(t *testing.T) {
	const user = "/api/users/totals-user/cart"

	resp := doPost(t, user+"/items", map[string]any{"product_id": "p2", "quantity": 1})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	tr := doGet(t, user+"/totals?code=FLAT5")
	defer tr.Body.Close()
	expectStatus(t, tr, http.StatusOK)

	totals := decodeJSON[totalsResponse](t, tr)
	if totals.PromoCode != "FLAT5" {
		t.Errorf("promo code: got %q, want FLAT5", totals.PromoCode)
	}
	if totals.Discount != "5.00" || totals.Total != "84.00" {
		t.Errorf("totals: got discount %s total %s, want 5.00 and 84.00", totals.Discount, totals.Total)
	}

	bad := doGet(t, user+"/totals?code=NOPE")
	defer bad.Body.Close()
	expectStatus(t, bad, http.StatusBadRequest)
}

func TestCart_InvalidQuantity(t *testing.T) {
	resp := doPost(t, "/api/users/bad-qty/cart/items", map[string]any{"product_id": "p1", "quantity": 0})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)
}
