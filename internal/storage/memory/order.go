package memory

import (
	"context"
	"sync"

	"github.com/xenking/kart-checkout/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository holds orders in memory.
type OrderRepository struct {
	mu     sync.RWMutex
	orders []order.Order
}

// NewOrderRepository returns an empty OrderRepository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{}
}

// LoadAll returns a deep copy of all orders.
func (r *OrderRepository) LoadAll(_ context.Context) ([]order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneOrders(r.orders), nil
}

// SaveAll replaces the stored orders.
func (r *OrderRepository) SaveAll(_ context.Context, orders []order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = cloneOrders(orders)
	return nil
}

func cloneOrders(in []order.Order) []order.Order {
	out := make([]order.Order, len(in))
	for i := range in {
		out[i] = *in[i].Clone()
	}
	return out
}
