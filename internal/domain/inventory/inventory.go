// Package inventory owns product stock counters. Every read-check-write of a
// product's stock happens under that product's lock, and every mutation is
// recorded in a bounded, append-only log.
package inventory

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// DefaultMaxStock is the restock ceiling used when none is given.
const DefaultMaxStock = 10000

// DefaultLogCapacity is the number of log entries kept when none is given.
const DefaultLogCapacity = 1000

var (
	// ErrInvalidQuantity is returned for non-positive quantities.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	// ErrExceedsMaxStock is returned by Restock when the result would pass
	// the ceiling and auto-adjust is off.
	ErrExceedsMaxStock = errors.New("restock would exceed max stock")
	// ErrAtMaxStock is returned by Restock when stock already sits at the
	// ceiling and there is nothing to add.
	ErrAtMaxStock = errors.New("stock already at max")
)

// InsufficientStockError reports a product that cannot cover a request.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// ReservationFailure is returned by ReserveBatch when one line could not be
// reserved. Earlier lines of the batch have already been released.
type ReservationFailure struct {
	ProductID string
	// Err is the reason the line failed.
	Err error
	// RollbackErr is set if releasing earlier lines failed.
	RollbackErr error
}

func (e *ReservationFailure) Error() string {
	msg := fmt.Sprintf("reserve product %s: %v", e.ProductID, e.Err)
	if e.RollbackErr != nil {
		msg += fmt.Sprintf(" (rollback: %v)", e.RollbackErr)
	}
	return msg
}

func (e *ReservationFailure) Unwrap() error {
	return e.Err
}

// Line is a product and quantity to reserve or release.
type Line struct {
	ProductID string
	Quantity  int
}

// Reservation records the lines reserved by one batch.
type Reservation struct {
	Lines []Line
}

// Empty reports whether nothing is reserved.
func (r Reservation) Empty() bool {
	return len(r.Lines) == 0
}

// Availability is the result of CheckStock.
type Availability struct {
	Available    bool
	CurrentStock int
}

// RestockOptions bound a restock.
type RestockOptions struct {
	// MaxStock is the ceiling. Zero means the manager default.
	MaxStock int
	// AutoAdjust caps the added quantity at the ceiling instead of failing.
	AutoAdjust bool
}

// RestockResult reports what a restock did.
type RestockResult struct {
	Added    int
	NewStock int
	Capped   bool
}

// LogType classifies inventory log entries.
type LogType string

const (
	LogReserve    LogType = "reserve"
	LogRelease    LogType = "release"
	LogRestock    LogType = "restock"
	LogAdjustment LogType = "adjustment"
)

// LogEntry records one stock mutation.
type LogEntry struct {
	ProductID string
	Delta     int
	Type      LogType
	Timestamp time.Time
	Details   string
}
