package order

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// StockReleaser returns stock of a cancelled order to inventory.
type StockReleaser interface {
	Release(ctx context.Context, productID string, quantity int) (int, error)
}

// Service manages persisted orders. Every mutation is a load-modify-save
// of the whole repository and is serialized, so each create or status
// change results in exactly one SaveAll.
type Service struct {
	repo  Repository
	stock StockReleaser
	now   func() time.Time

	mu sync.Mutex
}

// NewService creates an order Service.
func NewService(repo Repository, stock StockReleaser) *Service {
	return &Service{
		repo:  repo,
		stock: stock,
		now:   time.Now,
	}
}

// Create persists a new order. The order is stored only if SaveAll succeeds.
func (s *Service) Create(ctx context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.repo.LoadAll(ctx)
	if err != nil {
		return errors.Wrap(err, "load orders")
	}
	if slices.ContainsFunc(orders, func(x Order) bool { return x.ID == o.ID }) {
		return errors.Errorf("order %s already exists", o.ID)
	}
	orders = append(orders, *o.Clone())
	if err := s.repo.SaveAll(ctx, orders); err != nil {
		return errors.Wrap(err, "save orders")
	}
	return nil
}

// Get returns the order with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	orders, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load orders")
	}
	i := indexOf(orders, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return orders[i].Clone(), nil
}

// ListByUser returns a user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load orders")
	}
	var out []Order
	for _, o := range orders {
		if o.UserID == userID {
			out = append(out, *o.Clone())
		}
	}
	slices.SortStableFunc(out, func(a, b Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// UpdateStatus moves an order to next and saves it. Moving to cancelled
// goes through Cancel.
func (s *Service) UpdateStatus(ctx context.Context, id string, next Status) (*Order, error) {
	if next == StatusCancelled {
		return s.Cancel(ctx, id)
	}
	if !next.Valid() {
		return nil, errors.Errorf("unknown order status %q", next)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load orders")
	}
	i := indexOf(orders, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	o := &orders[i]
	if err := o.Transition(next, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.SaveAll(ctx, orders); err != nil {
		return nil, errors.Wrap(err, "save orders")
	}
	return o.Clone(), nil
}

// Cancel cancels an order that is still within its cancellation window
// and returns its items to stock.
func (s *Service) Cancel(ctx context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load orders")
	}
	i := indexOf(orders, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	o := &orders[i]
	now := s.now()
	if !o.CanCancel(now) {
		if o.Status.Terminal() {
			return nil, &InvalidTransitionError{From: o.Status, To: StatusCancelled}
		}
		return nil, ErrNotCancellable
	}
	if err := o.Transition(StatusCancelled, now); err != nil {
		return nil, err
	}
	if err := s.repo.SaveAll(ctx, orders); err != nil {
		return nil, errors.Wrap(err, "save orders")
	}

	if err := s.restock(context.WithoutCancel(ctx), o); err != nil {
		return o.Clone(), err
	}
	return o.Clone(), nil
}

func (s *Service) restock(ctx context.Context, o *Order) error {
	if s.stock == nil {
		return nil
	}
	lg := zctx.From(ctx)

	var errs error
	for _, it := range o.Items {
		if _, err := s.stock.Release(ctx, it.ProductID, it.Quantity); err != nil {
			lg.Error("Release stock of cancelled order failed",
				zap.String("order_id", o.ID),
				zap.String("product_id", it.ProductID),
				zap.Int("quantity", it.Quantity),
				zap.Error(err),
			)
			errs = multierr.Append(errs, errors.Wrapf(err, "release %s", it.ProductID))
		}
	}
	return errs
}

func indexOf(orders []Order, id string) int {
	return slices.IndexFunc(orders, func(o Order) bool { return o.ID == id })
}
