package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// transitions lists the legal next states for every state.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered, StatusCancelled},
	StatusDelivered: nil,
	StatusCancelled: nil,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// ShippedCancelWindow is how long after creation a shipped order may still
// be cancelled.
const ShippedCancelWindow = 24 * time.Hour

var (
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrNotCancellable is returned when an order is outside its
	// cancellation window or already final.
	ErrNotCancellable = errors.New("order cannot be cancelled")
)

// InvalidTransitionError is returned when a status change is not allowed.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition from %q to %q", e.From, e.To)
}

// NotReadyError lists why an order cannot be confirmed.
type NotReadyError struct {
	Reasons []string
}

func (e *NotReadyError) Error() string {
	return "order not ready: " + strings.Join(e.Reasons, "; ")
}

// Address is a shipping destination.
type Address struct {
	Name       string `json:"name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// IsZero reports whether no field is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Item is an immutable line of an order.
type Item struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Order is a checked-out cart.
type Order struct {
	ID              string
	UserID          string
	Items           []Item
	Status          Status
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	Tax             decimal.Decimal
	Shipping        decimal.Decimal
	Total           decimal.Decimal
	PromoCode       string
	LoyaltyPoints   int
	ShippingAddress Address
	ShippingSpeed   string
	PaymentMethod   string
	PaymentRef      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Transition moves the order to next. Illegal moves leave the order
// untouched and return *InvalidTransitionError.
func (o *Order) Transition(next Status, now time.Time) error {
	if !o.Status.CanTransition(next) {
		return &InvalidTransitionError{From: o.Status, To: next}
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}

// CanCancel reports whether the order may still be cancelled at now.
// Shipped orders are cancellable only within ShippedCancelWindow of
// creation; pending and confirmed orders always are.
func (o *Order) CanCancel(now time.Time) bool {
	switch o.Status {
	case StatusCancelled, StatusDelivered:
		return false
	case StatusShipped:
		return now.Sub(o.CreatedAt) <= ShippedCancelWindow
	default:
		return true
	}
}

// ReadyToConfirm checks that the order has items, an address, a payment
// method and a non-zero total.
func (o *Order) ReadyToConfirm() error {
	var reasons []string
	if len(o.Items) == 0 {
		reasons = append(reasons, "order has no items")
	}
	if o.ShippingAddress.IsZero() {
		reasons = append(reasons, "shipping address is required")
	}
	if strings.TrimSpace(o.PaymentMethod) == "" {
		reasons = append(reasons, "payment method is required")
	}
	if len(o.Items) > 0 && o.Total.IsZero() {
		reasons = append(reasons, "order total must not be zero")
	}
	if len(reasons) > 0 {
		return &NotReadyError{Reasons: reasons}
	}
	return nil
}

// ItemCount sums item quantities.
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	return &c
}

// Repository is the order storage contract: the full set of orders is
// loaded and saved as a unit.
type Repository interface {
	LoadAll(ctx context.Context) ([]Order, error)
	SaveAll(ctx context.Context, orders []Order) error
}
