package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-checkout/internal/domain/coupon"
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository is a map-backed promo code table keyed by upper-case code.
type CouponRepository struct {
	mu    sync.Mutex
	rules map[string]coupon.Rule
}

// NewCouponRepository returns a repository holding rules.
func NewCouponRepository(rules ...coupon.Rule) *CouponRepository {
	r := &CouponRepository{rules: make(map[string]coupon.Rule, len(rules))}
	for _, rule := range rules {
		r.rules[strings.ToUpper(rule.Code)] = rule
	}
	return r
}

// FindByCode looks up a rule case-insensitively.
func (r *CouponRepository) FindByCode(_ context.Context, code string) (*coupon.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rule, ok := r.rules[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, coupon.ErrInvalidCoupon
	}
	return &rule, nil
}

// IncrementUses bumps the usage counter of code unless MaxUses is reached.
func (r *CouponRepository) IncrementUses(_ context.Context, code string) error {
	return r.update(code, func(rule *coupon.Rule) error {
		if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
			return coupon.ErrCouponUsageLimitReached
		}
		rule.Uses++
		return nil
	})
}

// DecrementUses lowers the usage counter of code, never below zero.
func (r *CouponRepository) DecrementUses(_ context.Context, code string) error {
	return r.update(code, func(rule *coupon.Rule) error {
		if rule.Uses > 0 {
			rule.Uses--
		}
		return nil
	})
}

func (r *CouponRepository) update(code string, fn func(*coupon.Rule) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToUpper(strings.TrimSpace(code))
	rule, ok := r.rules[key]
	if !ok {
		return errors.Wrapf(coupon.ErrInvalidCoupon, "code %q", code)
	}
	if err := fn(&rule); err != nil {
		return err
	}
	r.rules[key] = rule
	return nil
}
