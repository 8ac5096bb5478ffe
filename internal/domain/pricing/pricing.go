// Package pricing implements the fixed pricing rules used by carts and
// checkout: automatic discount tiers, bulk discounts, shipping, tax and
// loyalty points.
//
// Exported functions round their result once, to cents. Internal helpers
// work on unrounded values so that composed calculations do not drift.
package pricing

import (
	"github.com/shopspring/decimal"
)

var (
	zero    = decimal.Zero
	hundred = decimal.NewFromInt(100)
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// roundMoney rounds to two decimal places, half up for non-negative values.
func roundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// tier maps an inclusive lower bound to a rate.
type tier struct {
	min  decimal.Decimal
	rate decimal.Decimal
}

// discountTiers is ordered from the highest bound down.
var discountTiers = []tier{
	{min: d("1000"), rate: d("0.25")},
	{min: d("500"), rate: d("0.20")},
	{min: d("200"), rate: d("0.15")},
	{min: d("100"), rate: d("0.10")},
	{min: d("50"), rate: d("0.05")},
}

// DiscountTier returns the automatic discount fraction for a subtotal.
// Each tier includes its lower edge: 50.00 yields 0.05.
func DiscountTier(subtotal decimal.Decimal) decimal.Decimal {
	for _, t := range discountTiers {
		if subtotal.GreaterThanOrEqual(t.min) {
			return t.rate
		}
	}
	return zero
}

// TierDiscount returns the automatic discount amount for a subtotal.
func TierDiscount(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return zero
	}
	return roundMoney(subtotal.Mul(DiscountTier(subtotal)))
}

type bulkBreak struct {
	minQty  int
	percent decimal.Decimal
}

var bulkBreaks = []bulkBreak{
	{minQty: 200, percent: d("30")},
	{minQty: 100, percent: d("25")},
	{minQty: 50, percent: d("20")},
	{minQty: 20, percent: d("15")},
	{minQty: 10, percent: d("10")},
	{minQty: 5, percent: d("5")},
}

// BulkDiscount returns the quantity discount on a single line. Invalid
// quantities or prices yield zero.
func BulkDiscount(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	if quantity <= 0 || !unitPrice.IsPositive() {
		return zero
	}
	for _, b := range bulkBreaks {
		if quantity >= b.minQty {
			line := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
			return roundMoney(line.Mul(b.percent).Div(hundred))
		}
	}
	return zero
}

// LoyaltyTier is a membership level used to scale earned points.
type LoyaltyTier string

const (
	LoyaltyStandard LoyaltyTier = "standard"
	LoyaltySilver   LoyaltyTier = "silver"
	LoyaltyGold     LoyaltyTier = "gold"
	LoyaltyPlatinum LoyaltyTier = "platinum"
)

var loyaltyMultipliers = map[LoyaltyTier]decimal.Decimal{
	LoyaltyStandard: d("1"),
	LoyaltySilver:   d("1.25"),
	LoyaltyGold:     d("1.5"),
	LoyaltyPlatinum: d("2"),
}

// LoyaltyPoints returns the points earned for an order total: one point per
// whole currency unit, scaled by the member tier. Unknown tiers earn at the
// standard rate.
func LoyaltyPoints(total decimal.Decimal, t LoyaltyTier) int {
	if !total.IsPositive() {
		return 0
	}
	m, ok := loyaltyMultipliers[t]
	if !ok {
		m = loyaltyMultipliers[LoyaltyStandard]
	}
	return int(total.Floor().Mul(m).Floor().IntPart())
}
