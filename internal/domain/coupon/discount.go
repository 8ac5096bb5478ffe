package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Apply calculates the discount a rule grants on subtotal. It returns
// ErrMinimumNotMet when the subtotal is below the rule's minimum purchase.
func Apply(rule *Rule, subtotal decimal.Decimal) (Discount, error) {
	if subtotal.LessThan(rule.MinPurchase) {
		return Discount{}, ErrMinimumNotMet
	}

	var amount decimal.Decimal
	switch rule.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(rule.Value).Div(hundred)
	case DiscountFixed:
		amount = decimal.Min(rule.Value, subtotal)
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}

	return Discount{
		Code:        rule.Code,
		Amount:      floorAtZero(amount).Round(2),
		Description: rule.Description,
	}, nil
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
