package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator checks promo codes and accounts for their use.
type Validator interface {
	// Validate computes the discount for code without consuming a use.
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Discount, error)
	// Redeem consumes one use of code.
	Redeem(ctx context.Context, code string) error
	// Restore gives back a use taken by Redeem.
	Restore(ctx context.Context, code string) error
}

var _ Validator = (*RepoValidator)(nil)

// RepoValidator implements Validator on top of a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the rule for code, checks temporal validity and usage
// limits, and applies it to subtotal.
func (v *RepoValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Discount, error) {
	rule, err := v.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	d, err := Apply(rule, subtotal)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Redeem re-checks the code and increments its usage counter. The
// repository enforces the usage limit again at increment time, so
// concurrent redemptions of the last use fail all but one.
func (v *RepoValidator) Redeem(ctx context.Context, code string) error {
	rule, err := v.lookup(ctx, code)
	if err != nil {
		return err
	}
	if err := v.repo.IncrementUses(ctx, rule.Code); err != nil {
		if errors.Is(err, ErrCouponUsageLimitReached) {
			return ErrCouponUsageLimitReached
		}
		return errors.Wrap(err, "increment promo uses")
	}
	return nil
}

// Restore decrements the usage counter of code.
func (v *RepoValidator) Restore(ctx context.Context, code string) error {
	if err := v.repo.DecrementUses(ctx, code); err != nil {
		return errors.Wrap(err, "decrement promo uses")
	}
	return nil
}

func (v *RepoValidator) lookup(ctx context.Context, code string) (*Rule, error) {
	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup promo code")
	}

	now := v.now()
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrCouponExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrCouponExpired
	}
	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return nil, ErrCouponUsageLimitReached
	}
	return rule, nil
}
