package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xenking/kart-checkout/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository keeps one cart per user for the life of the process.
type CartRepository struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart
	now   func() time.Time
}

// NewCartRepository returns an empty CartRepository.
func NewCartRepository() *CartRepository {
	return &CartRepository{
		carts: make(map[string]*cart.Cart),
		now:   time.Now,
	}
}

// GetOrCreate returns the user's cart, creating it on first access.
func (r *CartRepository) GetOrCreate(_ context.Context, userID string) (*cart.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[userID]
	if !ok {
		c = cart.New(userID, r.now)
		r.carts[userID] = c
	}
	return c, nil
}
