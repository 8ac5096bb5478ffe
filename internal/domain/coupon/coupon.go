package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported promo code discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage off the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount off, capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrInvalidCoupon is returned when a promo code is not found.
	ErrInvalidCoupon = errors.New("invalid promo code")
	// ErrMinimumNotMet is returned when the subtotal is below the code's
	// minimum purchase.
	ErrMinimumNotMet = errors.New("minimum purchase not met")
	// ErrCouponExpired is returned when a code is outside its valid time window.
	ErrCouponExpired = errors.New("promo code expired")
	// ErrCouponUsageLimitReached is returned when a code has exhausted its allowed uses.
	ErrCouponUsageLimitReached = errors.New("promo code usage limit reached")
)

// Rule defines a promo code's discount and eligibility constraints.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	MinPurchase  decimal.Decimal
	Description  string
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	MaxUses      int
	Uses         int
}

// Discount holds the computed discount amount and a human-readable description.
type Discount struct {
	Code        string
	Amount      decimal.Decimal
	Description string
}

// Repository provides lookup and usage accounting of promo codes.
// FindByCode is case-insensitive and returns ErrInvalidCoupon for unknown codes.
// IncrementUses consumes a use atomically and returns
// ErrCouponUsageLimitReached when MaxUses is already reached.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
	DecrementUses(ctx context.Context, code string) error
}

// DefaultRules is the built-in promo code table.
func DefaultRules() []Rule {
	return []Rule{
		{Code: "SAVE10", DiscountType: DiscountPercentage, Value: decimal.NewFromInt(10), MinPurchase: decimal.Zero, Description: "10% off"},
		{Code: "SAVE20", DiscountType: DiscountPercentage, Value: decimal.NewFromInt(20), MinPurchase: decimal.NewFromInt(100), Description: "20% off orders over $100"},
		{Code: "WELCOME15", DiscountType: DiscountPercentage, Value: decimal.NewFromInt(15), MinPurchase: decimal.NewFromInt(50), Description: "Welcome: 15% off orders over $50"},
		{Code: "FLAT5", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5), MinPurchase: decimal.NewFromInt(25), Description: "$5 off orders over $25"},
		{Code: "FLAT25", DiscountType: DiscountFixed, Value: decimal.NewFromInt(25), MinPurchase: decimal.NewFromInt(150), Description: "$25 off orders over $150"},
	}
}
