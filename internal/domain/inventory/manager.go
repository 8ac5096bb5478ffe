package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/domain/product"
	"github.com/xenking/kart-checkout/internal/lock"
)

// Config tunes a Manager.
type Config struct {
	LogCapacity int
	MaxStock    int
}

// Manager serializes stock changes per product on top of the catalog.
type Manager struct {
	catalog  product.Repository
	locks    *lock.Keyed
	log      *eventLog
	maxStock int
	now      func() time.Time
}

// NewManager creates a Manager over catalog.
func NewManager(catalog product.Repository, cfg Config) *Manager {
	if cfg.MaxStock <= 0 {
		cfg.MaxStock = DefaultMaxStock
	}
	return &Manager{
		catalog:  catalog,
		locks:    lock.NewKeyed(),
		log:      newEventLog(cfg.LogCapacity),
		maxStock: cfg.MaxStock,
		now:      time.Now,
	}
}

// CheckStock reports whether quantity is currently available. It does not
// reserve anything.
func (m *Manager) CheckStock(ctx context.Context, productID string, quantity int) (Availability, error) {
	if quantity <= 0 {
		return Availability{}, ErrInvalidQuantity
	}
	p, err := m.catalog.GetByID(ctx, productID)
	if err != nil {
		return Availability{}, errors.Wrap(err, "get product")
	}
	return Availability{
		Available:    p.Stock >= quantity,
		CurrentStock: p.Stock,
	}, nil
}

// Reserve takes quantity out of stock. Stock is left untouched if the
// product is unknown, the quantity is invalid or stock is short.
func (m *Manager) Reserve(ctx context.Context, productID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	unlock, err := m.locks.Lock(ctx, productID)
	if err != nil {
		return 0, errors.Wrap(err, "lock product")
	}
	defer unlock()

	p, err := m.catalog.GetByID(ctx, productID)
	if err != nil {
		return 0, errors.Wrap(err, "get product")
	}
	if p.Stock < quantity {
		return 0, &InsufficientStockError{ProductID: productID, Requested: quantity, Available: p.Stock}
	}

	newStock := p.Stock - quantity
	if err := m.catalog.SetStock(ctx, productID, newStock); err != nil {
		return 0, errors.Wrap(err, "set stock")
	}
	m.record(productID, -quantity, LogReserve, fmt.Sprintf("reserved %d", quantity))
	return newStock, nil
}

// Release puts quantity back into stock. Release is not bounded by the
// restock ceiling and is not abandoned if ctx is cancelled.
func (m *Manager) Release(ctx context.Context, productID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	ctx = context.WithoutCancel(ctx)
	unlock := m.locks.MustLock(productID)
	defer unlock()

	p, err := m.catalog.GetByID(ctx, productID)
	if err != nil {
		return 0, errors.Wrap(err, "get product")
	}

	newStock := p.Stock + quantity
	if err := m.catalog.SetStock(ctx, productID, newStock); err != nil {
		return 0, errors.Wrap(err, "set stock")
	}
	m.record(productID, quantity, LogRelease, fmt.Sprintf("released %d", quantity))
	return newStock, nil
}

// ReserveBatch reserves every line in order. If a line fails, all lines
// reserved before it are released before the failure is returned as
// *ReservationFailure.
func (m *Manager) ReserveBatch(ctx context.Context, lines []Line) (Reservation, error) {
	var res Reservation
	for _, l := range lines {
		if _, err := m.Reserve(ctx, l.ProductID, l.Quantity); err != nil {
			rollbackErr := m.ReleaseAll(ctx, res)
			return Reservation{}, &ReservationFailure{
				ProductID:   l.ProductID,
				Err:         err,
				RollbackErr: rollbackErr,
			}
		}
		res.Lines = append(res.Lines, l)
	}
	return res, nil
}

// ReleaseAll releases every line of a reservation. It attempts all lines
// even if some fail; failures are logged and returned together.
func (m *Manager) ReleaseAll(ctx context.Context, res Reservation) error {
	lg := zctx.From(ctx)

	var errs error
	for i := len(res.Lines) - 1; i >= 0; i-- {
		l := res.Lines[i]
		if _, err := m.Release(ctx, l.ProductID, l.Quantity); err != nil {
			lg.Error("Release reserved stock failed",
				zap.String("product_id", l.ProductID),
				zap.Int("quantity", l.Quantity),
				zap.Error(err),
			)
			errs = multierr.Append(errs, errors.Wrapf(err, "release %s", l.ProductID))
		}
	}
	return errs
}

// Restock adds quantity to stock, bounded by the ceiling in opts.
func (m *Manager) Restock(ctx context.Context, productID string, quantity int, opts RestockOptions) (RestockResult, error) {
	if quantity <= 0 {
		return RestockResult{}, ErrInvalidQuantity
	}
	maxStock := opts.MaxStock
	if maxStock <= 0 {
		maxStock = m.maxStock
	}

	unlock, err := m.locks.Lock(ctx, productID)
	if err != nil {
		return RestockResult{}, errors.Wrap(err, "lock product")
	}
	defer unlock()

	p, err := m.catalog.GetByID(ctx, productID)
	if err != nil {
		return RestockResult{}, errors.Wrap(err, "get product")
	}

	added, capped := quantity, false
	if p.Stock+quantity > maxStock {
		if !opts.AutoAdjust {
			return RestockResult{}, ErrExceedsMaxStock
		}
		added, capped = maxStock-p.Stock, true
		if added <= 0 {
			return RestockResult{}, ErrAtMaxStock
		}
	}

	newStock := p.Stock + added
	if err := m.catalog.SetStock(ctx, productID, newStock); err != nil {
		return RestockResult{}, errors.Wrap(err, "set stock")
	}
	details := fmt.Sprintf("restocked %d", added)
	if capped {
		details = fmt.Sprintf("restocked %d of %d (capped at %d)", added, quantity, maxStock)
	}
	m.record(productID, added, LogRestock, details)

	return RestockResult{Added: added, NewStock: newStock, Capped: capped}, nil
}

// Adjust sets stock to an absolute value, e.g. after a stock count.
func (m *Manager) Adjust(ctx context.Context, productID string, newStock int, reason string) (int, error) {
	if newStock < 0 {
		return 0, ErrInvalidQuantity
	}
	unlock, err := m.locks.Lock(ctx, productID)
	if err != nil {
		return 0, errors.Wrap(err, "lock product")
	}
	defer unlock()

	p, err := m.catalog.GetByID(ctx, productID)
	if err != nil {
		return 0, errors.Wrap(err, "get product")
	}
	if err := m.catalog.SetStock(ctx, productID, newStock); err != nil {
		return 0, errors.Wrap(err, "set stock")
	}
	if reason == "" {
		reason = "manual adjustment"
	}
	m.record(productID, newStock-p.Stock, LogAdjustment, reason)
	return newStock, nil
}

// Log returns recorded mutations, newest first. An empty productID matches
// every product; limit <= 0 returns all retained entries.
func (m *Manager) Log(productID string, limit int) []LogEntry {
	return m.log.query(productID, limit)
}

func (m *Manager) record(productID string, delta int, typ LogType, details string) {
	m.log.append(LogEntry{
		ProductID: productID,
		Delta:     delta,
		Type:      typ,
		Timestamp: m.now(),
		Details:   details,
	})
}
