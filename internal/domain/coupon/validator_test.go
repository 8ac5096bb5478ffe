package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	rule          *Rule
	err           error
	incrementErr  error
	incrementCode string
	decrementCode string
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*Rule, error) {
	return m.rule, m.err
}

func (m *mockCouponRepo) IncrementUses(_ context.Context, code string) error {
	m.incrementCode = code
	return m.incrementErr
}

func (m *mockCouponRepo) DecrementUses(_ context.Context, code string) error {
	m.decrementCode = code
	return nil
}

func TestRepoValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)
	futureTime := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name       string
		repo       *mockCouponRepo
		subtotal   decimal.Decimal
		wantAmount decimal.Decimal
		wantErr    error
	}{
		{
			name: "valid code returns discount",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "SAVE10", DiscountType: DiscountPercentage, Value: decimal.NewFromInt(10),
			}},
			subtotal:   decimal.NewFromInt(100),
			wantAmount: decimal.NewFromInt(10),
		},
		{
			name:     "unknown code returns ErrInvalidCoupon",
			repo:     &mockCouponRepo{err: ErrInvalidCoupon},
			subtotal: decimal.NewFromInt(50),
			wantErr:  ErrInvalidCoupon,
		},
		{
			name: "minimum purchase not met",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "FLAT25", DiscountType: DiscountFixed, Value: decimal.NewFromInt(25),
				MinPurchase: decimal.NewFromInt(150),
			}},
			subtotal: decimal.NewFromInt(20),
			wantErr:  ErrMinimumNotMet,
		},
		{
			name: "expired coupon",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "OLD", DiscountType: DiscountPercentage, Value: decimal.NewFromInt(10),
				ValidUntil: &pastTime,
			}},
			subtotal: decimal.NewFromInt(100),
			wantErr:  ErrCouponExpired,
		},
		{
			name: "not yet valid",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "FUTURE", DiscountType: DiscountPercentage, Value: decimal.NewFromInt(10),
				ValidFrom: &futureTime,
			}},
			subtotal: decimal.NewFromInt(100),
			wantErr:  ErrCouponExpired,
		},
		{
			name: "within window",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "WINDOW", DiscountType: DiscountPercentage, Value: decimal.NewFromInt(10),
				ValidFrom: &pastTime, ValidUntil: &futureTime,
			}},
			subtotal:   decimal.NewFromInt(100),
			wantAmount: decimal.NewFromInt(10),
		},
		{
			name: "usage limit reached",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "LIMITED", DiscountType: DiscountPercentage, Value: decimal.NewFromInt(10),
				MaxUses: 100, Uses: 100,
			}},
			subtotal: decimal.NewFromInt(100),
			wantErr:  ErrCouponUsageLimitReached,
		},
		{
			name: "unlimited uses",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "UNLIMITED", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5),
				Uses: 9999,
			}},
			subtotal:   decimal.NewFromInt(100),
			wantAmount: decimal.NewFromInt(5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRepoValidator(tt.repo)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), "CODE", tt.subtotal)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, tt.wantAmount.Equal(got.Amount),
				"expected amount %s, got %s", tt.wantAmount, got.Amount)
			assert.Empty(t, tt.repo.incrementCode, "validate must not consume a use")
		})
	}
}

func TestRepoValidator_Redeem(t *testing.T) {
	repo := &mockCouponRepo{rule: &Rule{
		Code: "INC", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5),
	}}

	v := NewRepoValidator(repo)
	require.NoError(t, v.Redeem(context.Background(), "inc"))
	assert.Equal(t, "INC", repo.incrementCode)

	require.NoError(t, v.Restore(context.Background(), "INC"))
	assert.Equal(t, "INC", repo.decrementCode)
}

func TestRepoValidator_RedeemExhausted(t *testing.T) {
	repo := &mockCouponRepo{rule: &Rule{
		Code: "ONCE", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5),
		MaxUses: 1, Uses: 1,
	}}

	err := NewRepoValidator(repo).Redeem(context.Background(), "ONCE")
	require.ErrorIs(t, err, ErrCouponUsageLimitReached)
	assert.Empty(t, repo.incrementCode)
}

func TestRepoValidator_IncrementUsesError(t *testing.T) {
	repo := &mockCouponRepo{
		rule:         &Rule{Code: "FAIL", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5)},
		incrementErr: errors.New("db error"),
	}

	err := NewRepoValidator(repo).Redeem(context.Background(), "FAIL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "increment promo uses")
}

func TestRepoValidator_RedeemLostRace(t *testing.T) {
	// The rule still reads as available, but another redemption took the
	// last use before the increment.
	repo := &mockCouponRepo{
		rule: &Rule{
			Code: "ONCE", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5),
			MaxUses: 1,
		},
		incrementErr: errors.Wrap(ErrCouponUsageLimitReached, "code ONCE"),
	}

	err := NewRepoValidator(repo).Redeem(context.Background(), "ONCE")
	require.ErrorIs(t, err, ErrCouponUsageLimitReached)
	assert.Equal(t, ErrCouponUsageLimitReached.Error(), err.Error())
}
