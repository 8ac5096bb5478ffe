// Package checkout turns a cart into a confirmed order. The steps are run
// as a saga: each step that changes state registers a compensation, and a
// failure at any later step runs them all in reverse.
package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/coupon"
	"github.com/xenking/kart-checkout/internal/domain/inventory"
	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/payment"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
	"github.com/xenking/kart-checkout/internal/domain/product"
	"github.com/xenking/kart-checkout/internal/lock"
)

const instrumentationName = "github.com/xenking/kart-checkout/internal/domain/checkout"

// Validator checks the customer-supplied parts of a checkout.
type Validator interface {
	ValidateAddress(a order.Address) []string
	ValidatePaymentMethod(method string) bool
}

// Inventory is the stock side of checkout.
type Inventory interface {
	CheckStock(ctx context.Context, productID string, quantity int) (inventory.Availability, error)
	ReserveBatch(ctx context.Context, lines []inventory.Line) (inventory.Reservation, error)
	ReleaseAll(ctx context.Context, res inventory.Reservation) error
}

// OrderCreator persists confirmed orders.
type OrderCreator interface {
	Create(ctx context.Context, o *order.Order) error
}

// Details is what the customer supplies at checkout.
type Details struct {
	ShippingAddress order.Address
	PaymentMethod   string
	PromoCode       string
	ShippingSpeed   pricing.Speed
	LoyaltyTier     pricing.LoyaltyTier
}

// Config tunes an Orchestrator.
type Config struct {
	// PaymentTimeout bounds the payment step. A timeout is a decline.
	PaymentTimeout time.Duration
	// LockTimeout bounds the wait for the user's checkout lock.
	LockTimeout time.Duration
	// FreeShippingThreshold is the subtotal that earns free shipping.
	FreeShippingThreshold decimal.Decimal
	// Origin is where orders ship from.
	Origin pricing.Location

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Carts     cart.Repository
	Ledger    *cart.Ledger
	Catalog   product.Repository
	Inventory Inventory
	Promos    coupon.Validator
	Payments  payment.Processor
	Orders    OrderCreator
	Validator Validator
	// Locker serializes checkouts per user. Defaults to an in-process lock.
	Locker lock.Locker
}

// Orchestrator runs checkouts.
type Orchestrator struct {
	deps Deps
	cfg  Config
	now  func() time.Time

	tracer    trace.Tracer
	checkouts metric.Int64Counter
	rollbacks metric.Int64Counter
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Locker == nil {
		deps.Locker = lock.NewKeyed()
	}
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = 5 * time.Second
	}
	if cfg.FreeShippingThreshold.IsZero() {
		cfg.FreeShippingThreshold = pricing.FreeShippingThreshold
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}

	meter := cfg.MeterProvider.Meter(instrumentationName)
	checkouts, err := meter.Int64Counter("kart.checkout.attempts",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout counter")
	}
	rollbacks, err := meter.Int64Counter("kart.checkout.rollbacks",
		metric.WithDescription("Checkouts that ran compensations"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create rollback counter")
	}

	return &Orchestrator{
		deps:      deps,
		cfg:       cfg,
		now:       time.Now,
		tracer:    cfg.TracerProvider.Tracer(instrumentationName),
		checkouts: checkouts,
		rollbacks: rollbacks,
	}, nil
}

// Checkout converts the user's cart into a confirmed order. On failure
// every side effect of the call is undone: reserved stock is released, a
// redeemed promo code is restored and an approved payment is voided. Only
// on success are the ordered lines removed from the cart.
func (o *Orchestrator) Checkout(ctx context.Context, userID string, d Details) (_ *order.Order, rerr error) {
	ctx, span := o.tracer.Start(ctx, "checkout.Checkout",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer func() {
		outcome := Outcome(nil, rerr).Kind
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, outcome)
		}
		span.SetAttributes(attribute.String("checkout.outcome", outcome))
		span.End()
		o.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}()

	ctx = zctx.With(ctx, zap.String("user_id", userID))
	lg := zctx.From(ctx)

	if msgs := o.validate(d); len(msgs) > 0 {
		return nil, &ValidationError{Messages: msgs}
	}

	unlock, err := o.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := o.deps.Carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	items := c.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	if err := o.precheckStock(ctx, items); err != nil {
		return nil, err
	}

	ord, err := o.price(ctx, userID, items, d)
	if err != nil {
		return nil, err
	}
	if err := ord.ReadyToConfirm(); err != nil {
		var nr *order.NotReadyError
		if errors.As(err, &nr) {
			return nil, &ValidationError{Messages: nr.Reasons}
		}
		return nil, err
	}

	var s saga
	defer func() {
		if rerr == nil || s.len() == 0 {
			return
		}
		o.rollbacks.Add(ctx, 1)
		lg.Warn("Rolling back checkout", zap.Int("steps", s.len()), zap.Error(rerr))
		if err := s.rollback(ctx); err != nil {
			rerr = multierr.Append(rerr, errors.Wrap(err, "rollback"))
		}
	}()

	res, err := o.deps.Inventory.ReserveBatch(ctx, reservationLines(items))
	if err != nil {
		return nil, &StockUnavailableError{Cause: err}
	}
	s.add("release stock", func(ctx context.Context) error {
		return o.deps.Inventory.ReleaseAll(ctx, res)
	})

	if ord.PromoCode != "" {
		if err := o.deps.Promos.Redeem(ctx, ord.PromoCode); err != nil {
			return nil, promoError(err)
		}
		code := ord.PromoCode
		s.add("restore promo code", func(ctx context.Context) error {
			return o.deps.Promos.Restore(ctx, code)
		})
	}

	ref, err := o.pay(ctx, ord)
	if err != nil {
		return nil, err
	}
	ord.PaymentRef = ref
	s.add("void payment", func(ctx context.Context) error {
		return o.deps.Payments.Void(ctx, ref)
	})

	if err := ord.Transition(order.StatusConfirmed, o.now()); err != nil {
		return nil, err
	}
	if err := o.deps.Orders.Create(ctx, ord); err != nil {
		return nil, &PersistenceError{Err: err}
	}

	c.Consume(items)
	lg.Info("Checkout completed",
		zap.String("order_id", ord.ID),
		zap.String("total", ord.Total.StringFixed(2)),
	)
	return ord, nil
}

func (o *Orchestrator) validate(d Details) []string {
	var msgs []string
	if o.deps.Validator != nil {
		msgs = append(msgs, o.deps.Validator.ValidateAddress(d.ShippingAddress)...)
		if !o.deps.Validator.ValidatePaymentMethod(d.PaymentMethod) {
			msgs = append(msgs, "payment method is not supported")
		}
	}
	switch d.ShippingSpeed {
	case "", pricing.SpeedStandard, pricing.SpeedExpedited:
	default:
		msgs = append(msgs, "shipping speed must be standard or expedited")
	}
	return msgs
}

func (o *Orchestrator) lockUser(ctx context.Context, userID string) (func(), error) {
	lockCtx := ctx
	if o.cfg.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, o.cfg.LockTimeout)
		defer cancel()
	}
	unlock, err := o.deps.Locker.Lock(lockCtx, "checkout:"+userID)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrCheckoutInProgress
		}
		return nil, errors.Wrap(err, "acquire checkout lock")
	}
	return unlock, nil
}

// precheckStock fails fast when a line cannot be covered. Nothing is
// reserved here; ReserveBatch re-checks under the product locks.
func (o *Orchestrator) precheckStock(ctx context.Context, items []cart.LineItem) error {
	for _, li := range items {
		a, err := o.deps.Inventory.CheckStock(ctx, li.ProductID, li.Quantity)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return &StockUnavailableError{Cause: err}
			}
			return errors.Wrapf(err, "check stock of %s", li.ProductID)
		}
		if !a.Available {
			return &StockUnavailableError{Cause: &inventory.InsufficientStockError{
				ProductID: li.ProductID,
				Requested: li.Quantity,
				Available: a.CurrentStock,
			}}
		}
	}
	return nil
}

// price builds the pending order with every amount filled in.
func (o *Orchestrator) price(ctx context.Context, userID string, items []cart.LineItem, d Details) (*order.Order, error) {
	totals, err := o.deps.Ledger.Totals(ctx, items, d.PromoCode)
	if err != nil {
		return nil, promoError(err)
	}

	products, err := o.products(ctx, items)
	if err != nil {
		return nil, err
	}

	taxLines := make([]pricing.TaxLine, 0, len(items))
	weight := decimal.Zero
	orderItems := make([]order.Item, 0, len(items))
	for _, li := range items {
		p := products[li.ProductID]
		taxLines = append(taxLines, pricing.TaxLine{Amount: li.Total(), Category: p.Category})
		weight = weight.Add(p.WeightKg.Mul(decimal.NewFromInt(int64(li.Quantity))))
		orderItems = append(orderItems, order.Item{
			ProductID: li.ProductID,
			Title:     li.Title,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
		})
	}

	tax := pricing.OrderTax(taxLines, totals.Discount, d.ShippingAddress.Region)

	speed := d.ShippingSpeed
	if speed == "" {
		speed = pricing.SpeedStandard
	}
	shipping := decimal.Zero
	if !cart.QualifiesForFreeShipping(items, o.cfg.FreeShippingThreshold) {
		zone := pricing.ZoneFor(o.cfg.Origin, pricing.Location{
			Country:    d.ShippingAddress.Country,
			Region:     d.ShippingAddress.Region,
			PostalCode: d.ShippingAddress.PostalCode,
		})
		shipping = pricing.ShippingCostAbove(weight, zone, totals.Subtotal, o.cfg.FreeShippingThreshold, speed)
	}

	total := totals.Total.Add(tax).Add(shipping)
	now := o.now()
	return &order.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Items:           orderItems,
		Status:          order.StatusPending,
		Subtotal:        totals.Subtotal,
		Discount:        totals.Discount,
		Tax:             tax,
		Shipping:        shipping,
		Total:           total,
		PromoCode:       totals.PromoCode,
		LoyaltyPoints:   pricing.LoyaltyPoints(total, d.LoyaltyTier),
		ShippingAddress: d.ShippingAddress,
		ShippingSpeed:   string(speed),
		PaymentMethod:   strings.ToLower(strings.TrimSpace(d.PaymentMethod)),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (o *Orchestrator) products(ctx context.Context, items []cart.LineItem) (map[string]product.Product, error) {
	ids := make([]string, 0, len(items))
	for _, li := range items {
		ids = append(ids, li.ProductID)
	}
	list, err := o.deps.Catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	out := make(map[string]product.Product, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, &StockUnavailableError{Cause: errors.Wrap(product.ErrNotFound, id)}
		}
	}
	return out, nil
}

// pay asks the processor for a decision within PaymentTimeout and returns
// the payment reference on approval.
func (o *Orchestrator) pay(ctx context.Context, ord *order.Order) (string, error) {
	payCtx, cancel := context.WithTimeout(ctx, o.cfg.PaymentTimeout)
	defer cancel()

	decision, err := o.deps.Payments.Process(payCtx, payment.Request{
		OrderID: ord.ID,
		UserID:  ord.UserID,
		Amount:  ord.Total,
		Method:  ord.PaymentMethod,
	})
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return "", errors.Wrap(ctx.Err(), "process payment")
	case errors.Is(err, context.DeadlineExceeded):
		return "", &PaymentDeclinedError{Reason: "payment timed out", Timeout: true, Err: err}
	default:
		return "", &PaymentDeclinedError{Reason: "payment could not be processed", Err: err}
	}
	if !decision.Approved {
		return "", &PaymentDeclinedError{Reason: decision.Reason}
	}
	return decision.Ref, nil
}

func reservationLines(items []cart.LineItem) []inventory.Line {
	lines := make([]inventory.Line, 0, len(items))
	for _, li := range items {
		lines = append(lines, inventory.Line{ProductID: li.ProductID, Quantity: li.Quantity})
	}
	return lines
}

// promoError turns promo code rejections into validation errors.
func promoError(err error) error {
	for _, target := range []error{
		coupon.ErrInvalidCoupon,
		coupon.ErrMinimumNotMet,
		coupon.ErrCouponExpired,
		coupon.ErrCouponUsageLimitReached,
	} {
		if errors.Is(err, target) {
			return &ValidationError{Messages: []string{target.Error()}}
		}
	}
	return errors.Wrap(err, "apply promo code")
}
