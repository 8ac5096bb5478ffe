package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/xenking/kart-checkout/internal/domain/order"
)

const orderColumns = `id, user_id, items, status, subtotal, discount, tax, shipping, total,
	promo_code, loyalty_points, shipping_address, shipping_speed, payment_method,
	payment_ref, created_at, updated_at`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by MySQL.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository returns an OrderRepository over db.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// LoadAll returns every stored order, oldest first.
func (r *OrderRepository) LoadAll(ctx context.Context) ([]order.Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return out, nil
}

// SaveAll makes the table hold exactly orders, in one transaction.
func (r *OrderRepository) SaveAll(ctx context.Context, orders []order.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ids := make([]any, 0, len(orders))
	for _, o := range orders {
		itemsJSON, err := json.Marshal(o.Items)
		if err != nil {
			return fmt.Errorf("marshal items of order %q: %w", o.ID, err)
		}
		addressJSON, err := json.Marshal(o.ShippingAddress)
		if err != nil {
			return fmt.Errorf("marshal address of order %q: %w", o.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				status = VALUES(status), payment_ref = VALUES(payment_ref), updated_at = VALUES(updated_at)`,
			o.ID, o.UserID, itemsJSON, string(o.Status), o.Subtotal, o.Discount, o.Tax,
			o.Shipping, o.Total, o.PromoCode, o.LoyaltyPoints, addressJSON, o.ShippingSpeed,
			o.PaymentMethod, o.PaymentRef, o.CreatedAt.UTC(), o.UpdatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("upsert order %q: %w", o.ID, err)
		}
		ids = append(ids, o.ID)
	}

	deleteSQL := `DELETE FROM orders`
	if len(ids) > 0 {
		deleteSQL += ` WHERE id NOT IN (` + placeholders(len(ids)) + `)`
	}
	if _, err := tx.ExecContext(ctx, deleteSQL, ids...); err != nil {
		return fmt.Errorf("delete stale orders: %w", err)
	}

	return tx.Commit()
}

func scanOrder(rows *sql.Rows) (order.Order, error) {
	var (
		o           order.Order
		status      string
		itemsJSON   []byte
		addressJSON []byte
	)
	if err := rows.Scan(
		&o.ID, &o.UserID, &itemsJSON, &status, &o.Subtotal, &o.Discount, &o.Tax,
		&o.Shipping, &o.Total, &o.PromoCode, &o.LoyaltyPoints, &addressJSON, &o.ShippingSpeed,
		&o.PaymentMethod, &o.PaymentRef, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return order.Order{}, fmt.Errorf("scan order: %w", err)
	}
	o.Status = order.Status(status)
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return order.Order{}, fmt.Errorf("unmarshal items of order %q: %w", o.ID, err)
	}
	if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
		return order.Order{}, fmt.Errorf("unmarshal address of order %q: %w", o.ID, err)
	}
	return o, nil
}
