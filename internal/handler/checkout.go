package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

// Checkout converts the user's cart into a confirmed order. Both success
// and failure are reported as a checkout result body.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var d checkout.Details
	err := decodeBody(w, r, func(dec *jx.Decoder, key string) error {
		var err error
		switch key {
		case "shipping_address":
			d.ShippingAddress, err = decodeAddress(dec)
		case "payment_method":
			d.PaymentMethod, err = dec.Str()
		case "promo_code":
			d.PromoCode, err = dec.Str()
		case "shipping_speed":
			var s string
			s, err = dec.Str()
			d.ShippingSpeed = pricing.Speed(s)
		case "loyalty_tier":
			var s string
			s, err = dec.Str()
			d.LoyaltyTier = pricing.LoyaltyTier(s)
		default:
			return dec.Skip()
		}
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	o, err := h.checkout.Checkout(r.Context(), r.PathValue("userID"), d)
	res := checkout.Outcome(o, err)
	if err != nil && res.Kind == checkout.KindInternal {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, checkoutStatus[res.Kind], func(e *jx.Encoder) { encodeResult(e, res) })
}
