package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/inventory"
	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/product"
)

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("bad request")

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func (e *badRequestError) Is(target error) bool { return target == errBadRequest }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// decodeBody reads a JSON object from the request, handing each field to fn.
func decodeBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return badRequest("read body: %v", err)
	}
	if len(data) == 0 {
		return badRequest("request body is required")
	}
	if err := jx.DecodeBytes(data).Obj(fn); err != nil {
		var bre *badRequestError
		if errors.As(err, &bre) {
			return bre
		}
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

func money(e *jx.Encoder, field string, v decimal.Decimal) {
	e.FieldStart(field)
	e.Str(v.StringFixed(2))
}

func timestamp(e *jx.Encoder, field string, t time.Time) {
	e.FieldStart(field)
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func str(e *jx.Encoder, field, v string) {
	e.FieldStart(field)
	e.Str(v)
}

func integer(e *jx.Encoder, field string, v int) {
	e.FieldStart(field)
	e.Int(v)
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	str(e, "id", p.ID)
	str(e, "name", p.Name)
	money(e, "price", p.Price)
	str(e, "category", p.Category)
	e.FieldStart("weight_kg")
	e.Str(p.WeightKg.String())
	integer(e, "stock", p.Stock)
	e.ObjEnd()
}

func encodeLineItem(e *jx.Encoder, li cart.LineItem) {
	e.ObjStart()
	str(e, "product_id", li.ProductID)
	str(e, "title", li.Title)
	integer(e, "quantity", li.Quantity)
	money(e, "unit_price", li.UnitPrice)
	money(e, "total", li.Total())
	e.ObjEnd()
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	items := c.Items()
	e.ObjStart()
	str(e, "user_id", c.OwnerID)
	e.FieldStart("items")
	e.ArrStart()
	for _, li := range items {
		encodeLineItem(e, li)
	}
	e.ArrEnd()
	money(e, "subtotal", cart.Subtotal(items))
	integer(e, "item_count", cart.ItemCount(items))
	timestamp(e, "updated_at", c.UpdatedAt())
	e.ObjEnd()
}

func encodeTotals(e *jx.Encoder, t cart.Totals) {
	e.ObjStart()
	money(e, "subtotal", t.Subtotal)
	money(e, "discount", t.Discount)
	e.FieldStart("discount_rate")
	e.Str(t.DiscountRate.String())
	if t.PromoCode != "" {
		str(e, "promo_code", t.PromoCode)
	}
	if t.Description != "" {
		str(e, "description", t.Description)
	}
	money(e, "total", t.Total)
	integer(e, "item_count", t.ItemCount)
	e.ObjEnd()
}

func encodeAddress(e *jx.Encoder, a order.Address) {
	e.ObjStart()
	str(e, "name", a.Name)
	str(e, "street", a.Street)
	str(e, "city", a.City)
	str(e, "region", a.Region)
	str(e, "postal_code", a.PostalCode)
	str(e, "country", a.Country)
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	str(e, "id", o.ID)
	str(e, "user_id", o.UserID)
	str(e, "status", o.Status.String())
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		str(e, "product_id", it.ProductID)
		str(e, "title", it.Title)
		integer(e, "quantity", it.Quantity)
		money(e, "unit_price", it.UnitPrice)
		e.ObjEnd()
	}
	e.ArrEnd()
	money(e, "subtotal", o.Subtotal)
	money(e, "discount", o.Discount)
	money(e, "tax", o.Tax)
	money(e, "shipping", o.Shipping)
	money(e, "total", o.Total)
	if o.PromoCode != "" {
		str(e, "promo_code", o.PromoCode)
	}
	integer(e, "loyalty_points", o.LoyaltyPoints)
	e.FieldStart("shipping_address")
	encodeAddress(e, o.ShippingAddress)
	str(e, "shipping_speed", o.ShippingSpeed)
	str(e, "payment_method", o.PaymentMethod)
	if o.PaymentRef != "" {
		str(e, "payment_ref", o.PaymentRef)
	}
	timestamp(e, "created_at", o.CreatedAt)
	timestamp(e, "updated_at", o.UpdatedAt)
	e.ObjEnd()
}

func encodeResult(e *jx.Encoder, res checkout.Result) {
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(res.Success)
	str(e, "kind", res.Kind)
	str(e, "message", res.Message)
	if res.Order != nil {
		e.FieldStart("order")
		encodeOrder(e, res.Order)
	}
	e.ObjEnd()
}

func encodeLogEntry(e *jx.Encoder, le inventory.LogEntry) {
	e.ObjStart()
	str(e, "product_id", le.ProductID)
	integer(e, "delta", le.Delta)
	str(e, "type", string(le.Type))
	timestamp(e, "timestamp", le.Timestamp)
	if le.Details != "" {
		str(e, "details", le.Details)
	}
	e.ObjEnd()
}

func decodeAddress(d *jx.Decoder) (order.Address, error) {
	var a order.Address
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var target *string
		switch key {
		case "name":
			target = &a.Name
		case "street":
			target = &a.Street
		case "city":
			target = &a.City
		case "region":
			target = &a.Region
		case "postal_code":
			target = &a.PostalCode
		case "country":
			target = &a.Country
		default:
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return errors.Wrapf(err, "shipping_address.%s", key)
		}
		*target = v
		return nil
	})
	return a, err
}
