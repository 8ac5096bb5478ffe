package cart

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuantity is returned for non-positive quantities.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	// ErrInvalidPrice is returned for non-positive unit prices.
	ErrInvalidPrice = errors.New("unit price must be greater than 0")
	// ErrItemNotFound is returned when a product is not in the cart.
	ErrItemNotFound = errors.New("item not in cart")
	// ErrQuantityTooLarge is returned when a line would exceed
	// MaxLineQuantity.
	ErrQuantityTooLarge = errors.New("quantity exceeds the per-line maximum")
)

// MaxLineQuantity caps the quantity of a single cart line.
const MaxLineQuantity = 1_000_000

// FreeShippingItemCount is the number of items that earns free shipping
// regardless of the subtotal.
const FreeShippingItemCount = 10

// LineItem is one product in a cart with the price and title captured when
// it was added.
type LineItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Title     string
}

// Total returns UnitPrice * Quantity, unrounded.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart is a customer's shopping cart. Line items are unique by product and
// keep insertion order. A Cart is safe for concurrent use.
type Cart struct {
	OwnerID   string
	CreatedAt time.Time

	mu        sync.RWMutex
	items     []LineItem
	updatedAt time.Time
	now       func() time.Time
}

// New returns an empty cart for owner.
func New(ownerID string, now func() time.Time) *Cart {
	if now == nil {
		now = time.Now
	}
	t := now()
	return &Cart{
		OwnerID:   ownerID,
		CreatedAt: t,
		updatedAt: t,
		now:       now,
	}
}

// AddItem adds quantity of a product. An existing line has its quantity
// increased; its price and title snapshot are kept.
func (c *Cart) AddItem(productID string, quantity int, unitPrice decimal.Decimal, title string) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > MaxLineQuantity {
		return ErrQuantityTooLarge
	}
	if !unitPrice.IsPositive() {
		return ErrInvalidPrice
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(productID); i >= 0 {
		if quantity > MaxLineQuantity-c.items[i].Quantity {
			return ErrQuantityTooLarge
		}
		c.items[i].Quantity += quantity
	} else {
		c.items = append(c.items, LineItem{
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: unitPrice,
			Title:     title,
		})
	}
	c.touch()
	return nil
}

// RemoveItem removes the product's line and reports whether it was present.
func (c *Cart) RemoveItem(productID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(productID)
	if i < 0 {
		return false
	}
	c.items = slices.Delete(c.items, i, i+1)
	c.touch()
	return true
}

// UpdateQuantity replaces the quantity of a line. Zero removes it.
func (c *Cart) UpdateQuantity(productID string, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if quantity > MaxLineQuantity {
		return ErrQuantityTooLarge
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	if quantity == 0 {
		c.items = slices.Delete(c.items, i, i+1)
	} else {
		c.items[i].Quantity = quantity
	}
	c.touch()
	return nil
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	c.touch()
}

// Consume removes the given lines from the cart, decrementing matching
// lines by the taken quantity. Lines added or grown after items were
// copied keep the difference.
func (c *Cart) Consume(items []LineItem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, taken := range items {
		i := c.indexOf(taken.ProductID)
		if i < 0 {
			continue
		}
		if c.items[i].Quantity <= taken.Quantity {
			c.items = slices.Delete(c.items, i, i+1)
			continue
		}
		c.items[i].Quantity -= taken.Quantity
	}
	c.touch()
}

// Items returns a copy of the line items in insertion order.
func (c *Cart) Items() []LineItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items) == 0
}

// UpdatedAt returns the time of the last mutation.
func (c *Cart) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// Subtotal returns the sum of all line totals, rounded to cents once.
func (c *Cart) Subtotal() decimal.Decimal {
	return Subtotal(c.Items())
}

// ItemCount returns the total quantity across lines.
func (c *Cart) ItemCount() int {
	return ItemCount(c.Items())
}

// QualifiesForFreeShipping reports whether the subtotal reaches threshold or
// the cart holds at least FreeShippingItemCount items. Either condition is
// sufficient on its own.
func (c *Cart) QualifiesForFreeShipping(threshold decimal.Decimal) bool {
	items := c.Items()
	return QualifiesForFreeShipping(items, threshold)
}

func (c *Cart) indexOf(productID string) int {
	return slices.IndexFunc(c.items, func(li LineItem) bool {
		return li.ProductID == productID
	})
}

func (c *Cart) touch() {
	c.updatedAt = c.now()
}

// Subtotal sums line totals and rounds once.
func Subtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, li := range items {
		sum = sum.Add(li.Total())
	}
	return sum.Round(2)
}

// ItemCount sums quantities.
func ItemCount(items []LineItem) int {
	n := 0
	for _, li := range items {
		n += li.Quantity
	}
	return n
}

// QualifiesForFreeShipping is the free shipping rule over a set of lines.
func QualifiesForFreeShipping(items []LineItem, threshold decimal.Decimal) bool {
	if ItemCount(items) >= FreeShippingItemCount {
		return true
	}
	return Subtotal(items).GreaterThanOrEqual(threshold)
}

// Repository hands out the cart for a user, creating it on first access.
type Repository interface {
	GetOrCreate(ctx context.Context, userID string) (*Cart, error)
}
