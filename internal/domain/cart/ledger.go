package cart

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/coupon"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
	"github.com/xenking/kart-checkout/internal/domain/product"
)

// Totals is the priced summary of a set of cart lines.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	// DiscountRate is the automatic tier rate. It is zero when a promo code
	// was applied.
	DiscountRate decimal.Decimal
	PromoCode    string
	Description  string
	// Total is Subtotal minus Discount, never negative.
	Total     decimal.Decimal
	ItemCount int
}

// Ledger implements cart operations against the catalog and promo codes.
type Ledger struct {
	carts    Repository
	products product.Repository
	promos   coupon.Validator
}

// NewLedger creates a Ledger.
func NewLedger(carts Repository, products product.Repository, promos coupon.Validator) *Ledger {
	return &Ledger{
		carts:    carts,
		products: products,
		promos:   promos,
	}
}

// Get returns the user's cart, creating it if needed.
func (l *Ledger) Get(ctx context.Context, userID string) (*Cart, error) {
	c, err := l.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// AddItem adds a catalog product to the user's cart, snapshotting its
// current price and name.
func (l *Ledger) AddItem(ctx context.Context, userID, productID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	p, err := l.products.GetByID(ctx, productID)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}
	c, err := l.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := c.AddItem(p.ID, quantity, p.Price, p.Name); err != nil {
		return nil, err
	}
	return c, nil
}

// RemoveItem removes a product from the user's cart.
func (l *Ledger) RemoveItem(ctx context.Context, userID, productID string) (bool, error) {
	c, err := l.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return c.RemoveItem(productID), nil
}

// UpdateQuantity replaces the quantity of a product in the user's cart.
func (l *Ledger) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*Cart, error) {
	c, err := l.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := c.UpdateQuantity(productID, quantity); err != nil {
		return nil, err
	}
	return c, nil
}

// ComputeTotals prices the cart. See Totals.
func (l *Ledger) ComputeTotals(ctx context.Context, c *Cart, code string) (Totals, error) {
	return l.Totals(ctx, c.Items(), code)
}

// Totals prices a set of lines. Without a code the automatic discount tier
// applies; with a code only the promo rule applies. The two never stack.
func (l *Ledger) Totals(ctx context.Context, items []LineItem, code string) (Totals, error) {
	subtotal := Subtotal(items)
	t := Totals{
		Subtotal:  subtotal,
		Discount:  decimal.Zero,
		ItemCount: ItemCount(items),
	}

	code = strings.TrimSpace(code)
	if code == "" {
		t.DiscountRate = pricing.DiscountTier(subtotal)
		t.Discount = pricing.TierDiscount(subtotal)
		if t.Discount.IsPositive() {
			t.Description = "automatic " + t.DiscountRate.Shift(2).String() + "% discount"
		}
	} else {
		if l.promos == nil {
			return Totals{}, coupon.ErrInvalidCoupon
		}
		d, err := l.promos.Validate(ctx, code, subtotal)
		if err != nil {
			return Totals{}, errors.Wrap(err, "validate promo code")
		}
		t.DiscountRate = decimal.Zero
		t.Discount = d.Amount
		t.PromoCode = d.Code
		t.Description = d.Description
	}

	t.Total = subtotal.Sub(t.Discount)
	if t.Total.IsNegative() {
		t.Total = decimal.Zero
	}
	return t, nil
}
