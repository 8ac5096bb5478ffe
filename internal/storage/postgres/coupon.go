package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-checkout/internal/domain/coupon"
)

const (
	getPromoCodeSQL = `SELECT code, discount_type, value, min_purchase, description,
			valid_from, valid_until, max_uses, uses
		FROM promo_codes WHERE code = UPPER($1)`

	incrementUsesSQL = `UPDATE promo_codes SET uses = uses + 1
		WHERE code = UPPER($1) AND (max_uses = 0 OR uses < max_uses)`

	decrementUsesSQL = `UPDATE promo_codes SET uses = GREATEST(uses - 1, 0) WHERE code = UPPER($1)`

	upsertPromoCodeSQL = `INSERT INTO promo_codes (code, discount_type, value, min_purchase,
			description, valid_from, valid_until, max_uses)
		VALUES (UPPER($1), $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type,
			value = EXCLUDED.value,
			min_purchase = EXCLUDED.min_purchase,
			description = EXCLUDED.description,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			max_uses = EXCLUDED.max_uses`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a promo code. The SQL query applies UPPER() on the
// parameter, so the code is passed as-is.
// Returns coupon.ErrInvalidCoupon when no matching code exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getPromoCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding promo code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding promo code %q: %w", code, err)
	}
	return &rule, nil
}

// IncrementUses consumes one use of code. The usage limit is checked in
// the same statement; when no row is updated the code is looked up again
// to tell an unknown code from an exhausted one.
func (r *CouponRepository) IncrementUses(ctx context.Context, code string) error {
	err := r.exec(ctx, incrementUsesSQL, code)
	if !errors.Is(err, coupon.ErrInvalidCoupon) {
		return err
	}
	if _, err := r.FindByCode(ctx, code); err != nil {
		return err
	}
	return coupon.ErrCouponUsageLimitReached
}

// DecrementUses gives back one use of code, never going below zero.
func (r *CouponRepository) DecrementUses(ctx context.Context, code string) error {
	return r.exec(ctx, decrementUsesSQL, code)
}

// Upsert inserts or replaces rules in a single batch. Usage counters of
// existing codes are kept.
func (r *CouponRepository) Upsert(ctx context.Context, rules []coupon.Rule) error {
	batch := &pgx.Batch{}
	for _, rule := range rules {
		batch.Queue(upsertPromoCodeSQL,
			rule.Code, string(rule.DiscountType), rule.Value, rule.MinPurchase,
			rule.Description, rule.ValidFrom, rule.ValidUntil, rule.MaxUses,
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting promo codes: %w", err)
	}
	return nil
}

func (r *CouponRepository) exec(ctx context.Context, sql, code string) error {
	tag, err := r.pool.Exec(ctx, sql, code)
	if err != nil {
		return fmt.Errorf("updating promo code %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrInvalidCoupon
	}
	return nil
}

func scanRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule         coupon.Rule
		discountType string
	)
	err := row.Scan(
		&rule.Code, &discountType, &rule.Value, &rule.MinPurchase, &rule.Description,
		&rule.ValidFrom, &rule.ValidUntil, &rule.MaxUses, &rule.Uses,
	)
	rule.DiscountType = coupon.DiscountType(discountType)
	return rule, err
}
