package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-checkout/internal/domain/coupon"
)

// --- Mock implementations ---

// gatedCoupons holds every FindByCode caller until all of them have read
// the rule, so the increments race on the same observed state.
type gatedCoupons struct {
	*CouponRepository
	ready sync.WaitGroup
}

func (g *gatedCoupons) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rule, err := g.CouponRepository.FindByCode(ctx, code)
	g.ready.Done()
	g.ready.Wait()
	return rule, err
}

func singleUse() coupon.Rule {
	return coupon.Rule{
		Code:         "once",
		DiscountType: coupon.DiscountPercentage,
		Value:        decimal.NewFromInt(10),
		MinPurchase:  decimal.Zero,
		Description:  "10% off, single use",
		MaxUses:      1,
	}
}

// --- Tests ---

func TestCouponRepository_Uses(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository(singleUse())

	require.NoError(t, repo.IncrementUses(ctx, "ONCE"))
	require.ErrorIs(t, repo.IncrementUses(ctx, "once"), coupon.ErrCouponUsageLimitReached)

	rule, err := repo.FindByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 1, rule.Uses)

	require.NoError(t, repo.DecrementUses(ctx, "ONCE"))
	require.NoError(t, repo.DecrementUses(ctx, "ONCE"))
	rule, err = repo.FindByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Zero(t, rule.Uses)

	require.ErrorIs(t, repo.IncrementUses(ctx, "NOPE"), coupon.ErrInvalidCoupon)
}

func TestCouponRepository_ConcurrentRedeem(t *testing.T) {
	const redeemers = 4

	repo := &gatedCoupons{CouponRepository: NewCouponRepository(singleUse())}
	repo.ready.Add(redeemers)
	v := coupon.NewRepoValidator(repo)

	errs := make([]error, redeemers)
	var wg sync.WaitGroup
	for i := range redeemers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = v.Redeem(context.Background(), "ONCE")
		}()
	}
	wg.Wait()

	redeemed := 0
	for _, err := range errs {
		if err == nil {
			redeemed++
			continue
		}
		require.ErrorIs(t, err, coupon.ErrCouponUsageLimitReached)
	}
	assert.Equal(t, 1, redeemed)

	rule, err := repo.CouponRepository.FindByCode(context.Background(), "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 1, rule.Uses)
}
