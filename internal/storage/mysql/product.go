package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/xenking/kart-checkout/internal/domain/product"
)

const productColumns = `id, name, price, category, weight_kg, stock`

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by MySQL.
type ProductRepository struct {
	db *sql.DB
}

// NewProductRepository returns a ProductRepository over db.
func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns all products ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	return collectProducts(rows)
}

// GetByID returns a single product.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	var p product.Product
	err := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.WeightKg, &p.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, product.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns the products found among ids.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id IN (`+placeholders(len(ids))+`)`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query products by ids: %w", err)
	}
	return collectProducts(rows)
}

// SetStock overwrites the stock counter.
func (r *ProductRepository) SetStock(ctx context.Context, id string, stock int) error {
	if stock < 0 {
		return fmt.Errorf("negative stock %d for product %s", stock, id)
	}
	// MySQL reports zero affected rows when the value is unchanged, so a
	// miss is confirmed with a lookup.
	result, err := r.db.ExecContext(ctx, `UPDATE products SET stock = ? WHERE id = ?`, stock, id)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Upsert inserts or replaces products in one transaction.
func (r *ProductRepository) Upsert(ctx context.Context, products []product.Product) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, p := range products {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				name = VALUES(name), price = VALUES(price), category = VALUES(category),
				weight_kg = VALUES(weight_kg), stock = VALUES(stock)`,
			p.ID, p.Name, p.Price, p.Category, p.WeightKg, p.Stock,
		)
		if err != nil {
			return fmt.Errorf("upsert product %q: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func collectProducts(rows *sql.Rows) ([]product.Product, error) {
	defer rows.Close()

	var out []product.Product
	for rows.Next() {
		var p product.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.WeightKg, &p.Stock); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
