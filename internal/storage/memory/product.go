// Package memory provides in-process implementations of the domain
// repositories.
package memory

import (
	"context"
	"encoding/json"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository is a map-backed catalog.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]product.Product
}

// NewProductRepository returns a catalog holding products.
func NewProductRepository(products ...product.Product) *ProductRepository {
	r := &ProductRepository{products: make(map[string]product.Product, len(products))}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

// Put inserts or replaces a product.
func (r *ProductRepository) Put(p product.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
}

// List returns all products ordered by ID.
func (r *ProductRepository) List(_ context.Context) ([]product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]product.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b product.Product) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// GetByID returns a copy of the product.
func (r *ProductRepository) GetByID(_ context.Context, id string) (*product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// GetByIDs returns the products found among ids; unknown ids are skipped.
func (r *ProductRepository) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// SetStock overwrites the stock counter.
func (r *ProductRepository) SetStock(_ context.Context, id string, stock int) error {
	if stock < 0 {
		return errors.Errorf("negative stock %d for product %s", stock, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return product.ErrNotFound
	}
	p.Stock = stock
	r.products[id] = p
	return nil
}

// ProductSeed is the JSON shape of a seeded product.
type ProductSeed struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	WeightKg decimal.Decimal `json:"weight_kg"`
	Stock    int             `json:"stock"`
}

// Product converts the seed to a domain product.
func (s ProductSeed) Product() product.Product {
	return product.Product{
		ID:       s.ID,
		Name:     s.Name,
		Price:    s.Price,
		Category: s.Category,
		WeightKg: s.WeightKg,
		Stock:    s.Stock,
	}
}

// LoadProducts reads a JSON array of ProductSeed from path.
func LoadProducts(path string) ([]product.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read products file")
	}
	var seeds []ProductSeed
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, errors.Wrap(err, "decode products file")
	}
	out := make([]product.Product, len(seeds))
	for i, s := range seeds {
		if s.Stock < 0 {
			return nil, errors.Errorf("product %s: negative stock", s.ID)
		}
		out[i] = s.Product()
	}
	return out, nil
}
