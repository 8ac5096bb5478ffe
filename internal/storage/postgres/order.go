package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-checkout/internal/domain/order"
)

const (
	listOrdersSQL = `SELECT id, user_id, items, status, subtotal, discount, tax, shipping, total,
			promo_code, loyalty_points, shipping_address, shipping_speed, payment_method,
			payment_ref, created_at, updated_at
		FROM orders ORDER BY created_at, id`

	upsertOrderSQL = `INSERT INTO orders (id, user_id, items, status, subtotal, discount, tax,
			shipping, total, promo_code, loyalty_points, shipping_address, shipping_speed,
			payment_method, payment_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			payment_ref = EXCLUDED.payment_ref,
			updated_at = EXCLUDED.updated_at`

	deleteMissingOrdersSQL = `DELETE FROM orders WHERE NOT (id = ANY($1))`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Items
// and the shipping address are stored as JSONB.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// LoadAll returns every stored order, oldest first.
func (r *OrderRepository) LoadAll(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// SaveAll makes the table hold exactly orders, in one transaction. Only
// the mutable columns of existing rows are rewritten.
func (r *OrderRepository) SaveAll(ctx context.Context, orders []order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]string, 0, len(orders))
	batch := &pgx.Batch{}
	for _, o := range orders {
		itemsJSON, err := json.Marshal(o.Items)
		if err != nil {
			return fmt.Errorf("marshaling items of order %q: %w", o.ID, err)
		}
		addressJSON, err := json.Marshal(o.ShippingAddress)
		if err != nil {
			return fmt.Errorf("marshaling address of order %q: %w", o.ID, err)
		}
		ids = append(ids, o.ID)
		batch.Queue(upsertOrderSQL,
			o.ID, o.UserID, itemsJSON, string(o.Status), o.Subtotal, o.Discount, o.Tax,
			o.Shipping, o.Total, o.PromoCode, o.LoyaltyPoints, addressJSON, o.ShippingSpeed,
			o.PaymentMethod, o.PaymentRef, o.CreatedAt, o.UpdatedAt,
		)
	}
	batch.Queue(deleteMissingOrdersSQL, ids)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("saving orders: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit orders: %w", err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o           order.Order
		status      string
		itemsJSON   []byte
		addressJSON []byte
	)
	if err := row.Scan(
		&o.ID, &o.UserID, &itemsJSON, &status, &o.Subtotal, &o.Discount, &o.Tax,
		&o.Shipping, &o.Total, &o.PromoCode, &o.LoyaltyPoints, &addressJSON, &o.ShippingSpeed,
		&o.PaymentMethod, &o.PaymentRef, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return order.Order{}, err
	}
	o.Status = order.Status(status)
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling items of order %q: %w", o.ID, err)
	}
	if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling address of order %q: %w", o.ID, err)
	}
	return o, nil
}
