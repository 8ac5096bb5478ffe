// Package file persists orders as a JSON document on disk.
package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository stores all orders in one JSON file. SaveAll writes a
// temporary file and renames it over the old one.
type OrderRepository struct {
	path string
	mu   sync.Mutex
}

// NewOrderRepository returns a repository backed by path. The file is
// created on first save.
func NewOrderRepository(path string) *OrderRepository {
	return &OrderRepository{path: path}
}

type orderRecord struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Items           []order.Item    `json:"items"`
	Status          order.Status    `json:"status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	Tax             decimal.Decimal `json:"tax"`
	Shipping        decimal.Decimal `json:"shipping"`
	Total           decimal.Decimal `json:"total"`
	PromoCode       string          `json:"promo_code,omitempty"`
	LoyaltyPoints   int             `json:"loyalty_points"`
	ShippingAddress order.Address   `json:"shipping_address"`
	ShippingSpeed   string          `json:"shipping_speed"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentRef      string          `json:"payment_ref,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// LoadAll reads every order. A missing file means no orders.
func (r *OrderRepository) LoadAll(_ context.Context) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read orders file")
	}

	var recs []orderRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, errors.Wrap(err, "decode orders file")
	}
	out := make([]order.Order, len(recs))
	for i, rec := range recs {
		out[i] = order.Order(rec)
	}
	return out, nil
}

// SaveAll replaces the file contents with orders.
func (r *OrderRepository) SaveAll(_ context.Context, orders []order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs := make([]orderRecord, len(orders))
	for i, o := range orders {
		recs[i] = orderRecord(o)
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode orders")
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create orders dir")
	}
	tmp, err := os.CreateTemp(dir, ".orders-*.json")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write orders")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync orders")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close orders")
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return errors.Wrap(err, "replace orders file")
	}
	return nil
}
