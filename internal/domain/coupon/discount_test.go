package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestApply(t *testing.T) {
	tests := []struct {
		name        string
		rule        *Rule
		subtotal    decimal.Decimal
		wantAmount  decimal.Decimal
		wantErr     error
		wantErrText string
	}{
		{
			name:       "percentage 10% off $100",
			rule:       &Rule{Code: "P10", DiscountType: DiscountPercentage, Value: d("10")},
			subtotal:   d("100"),
			wantAmount: d("10"),
		},
		{
			name:       "percentage 100% off equals subtotal",
			rule:       &Rule{Code: "FREE", DiscountType: DiscountPercentage, Value: d("100")},
			subtotal:   d("42.50"),
			wantAmount: d("42.50"),
		},
		{
			name:       "fixed $5 off",
			rule:       &Rule{Code: "F5", DiscountType: DiscountFixed, Value: d("5")},
			subtotal:   d("30"),
			wantAmount: d("5"),
		},
		{
			name:       "fixed capped at subtotal",
			rule:       &Rule{Code: "BIG", DiscountType: DiscountFixed, Value: d("200")},
			subtotal:   d("80"),
			wantAmount: d("80"),
		},
		{
			name:     "below minimum purchase",
			rule:     &Rule{Code: "MIN", DiscountType: DiscountPercentage, Value: d("20"), MinPurchase: d("100")},
			subtotal: d("99.99"),
			wantErr:  ErrMinimumNotMet,
		},
		{
			name:       "minimum purchase is inclusive",
			rule:       &Rule{Code: "MIN", DiscountType: DiscountPercentage, Value: d("20"), MinPurchase: d("100")},
			subtotal:   d("100"),
			wantAmount: d("20"),
		},
		{
			name:     "fixed below minimum",
			rule:     &Rule{Code: "F25", DiscountType: DiscountFixed, Value: d("25"), MinPurchase: d("150")},
			subtotal: d("149"),
			wantErr:  ErrMinimumNotMet,
		},
		{
			name:       "percentage with cents precision",
			rule:       &Rule{Code: "P15", DiscountType: DiscountPercentage, Value: d("15")},
			subtotal:   d("29.97"),
			wantAmount: d("4.50"),
		},
		{
			name:        "unsupported discount type",
			rule:        &Rule{Code: "BAD", DiscountType: DiscountType("bogus"), Value: d("10")},
			subtotal:    d("10"),
			wantErrText: "unsupported discount type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.rule, tt.subtotal)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			if tt.wantErrText != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrText)
				return
			}

			require.NoError(t, err)
			assert.True(t, tt.wantAmount.Equal(got.Amount),
				"expected amount %s, got %s", tt.wantAmount, got.Amount)
			assert.Equal(t, tt.rule.Code, got.Code)
		})
	}
}

func TestDefaultRules(t *testing.T) {
	seen := make(map[string]bool)
	for _, r := range DefaultRules() {
		assert.False(t, seen[r.Code], "duplicate code %s", r.Code)
		seen[r.Code] = true
		assert.Contains(t, []DiscountType{DiscountPercentage, DiscountFixed}, r.DiscountType)
		assert.True(t, r.Value.IsPositive())
	}
}
