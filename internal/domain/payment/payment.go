// Package payment decides whether a checkout gets paid. There is no real
// gateway: Simulator stands in for one.
package payment

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Method is a way of paying.
type Method string

const (
	MethodCreditCard Method = "credit_card"
	MethodDebitCard  Method = "debit_card"
	MethodPayPal     Method = "paypal"
	MethodGiftCard   Method = "gift_card"
)

// Methods lists every accepted payment method.
func Methods() []Method {
	return []Method{MethodCreditCard, MethodDebitCard, MethodPayPal, MethodGiftCard}
}

// ParseMethod normalizes s and reports whether it names an accepted method.
func ParseMethod(s string) (Method, bool) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	return m, slices.Contains(Methods(), m)
}

// ErrUnknownPayment is returned by Void for references it never issued.
var ErrUnknownPayment = errors.New("unknown payment reference")

// Request is a payment to be decided.
type Request struct {
	OrderID string
	UserID  string
	Amount  decimal.Decimal
	Method  string
}

// Decision is the processor's answer. Ref is set only when approved.
type Decision struct {
	Approved bool
	Ref      string
	Reason   string
}

// Processor approves or declines payments and voids approved ones.
type Processor interface {
	Process(ctx context.Context, req Request) (Decision, error)
	Void(ctx context.Context, ref string) error
}

var _ Processor = (*Simulator)(nil)

// SimulatorConfig tunes a Simulator.
type SimulatorConfig struct {
	// Latency is how long each decision takes.
	Latency time.Duration
	// Limits caps the amount per method. Methods without a limit accept
	// any amount.
	Limits map[Method]decimal.Decimal
}

// DefaultLimits are the per-method caps used when none are configured.
func DefaultLimits() map[Method]decimal.Decimal {
	return map[Method]decimal.Decimal{
		MethodCreditCard: decimal.NewFromInt(10000),
		MethodDebitCard:  decimal.NewFromInt(5000),
		MethodPayPal:     decimal.NewFromInt(5000),
		MethodGiftCard:   decimal.NewFromInt(500),
	}
}

// Simulator is a deterministic Processor. It declines unknown methods,
// non-positive amounts and amounts above the method limit, and approves
// everything else after Latency.
type Simulator struct {
	latency time.Duration
	limits  map[Method]decimal.Decimal

	mu       sync.Mutex
	approved map[string]Request
	voided   map[string]struct{}
}

// NewSimulator creates a Simulator.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	limits := cfg.Limits
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Simulator{
		latency:  cfg.Latency,
		limits:   limits,
		approved: make(map[string]Request),
		voided:   make(map[string]struct{}),
	}
}

// Process decides req. It returns ctx.Err() if ctx ends before the
// decision is made.
func (s *Simulator) Process(ctx context.Context, req Request) (Decision, error) {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Decision{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	method, ok := ParseMethod(req.Method)
	if !ok {
		return Decision{Reason: "unsupported payment method"}, nil
	}
	if !req.Amount.IsPositive() {
		return Decision{Reason: "amount must be positive"}, nil
	}
	if limit, ok := s.limits[method]; ok && req.Amount.GreaterThan(limit) {
		return Decision{Reason: "amount exceeds " + string(method) + " limit of " + limit.StringFixed(2)}, nil
	}

	ref := "pay_" + uuid.NewString()
	s.mu.Lock()
	s.approved[ref] = req
	s.mu.Unlock()

	zctx.From(ctx).Debug("Payment approved",
		zap.String("payment_ref", ref),
		zap.String("order_id", req.OrderID),
		zap.String("amount", req.Amount.StringFixed(2)),
	)
	return Decision{Approved: true, Ref: ref}, nil
}

// Void cancels an approved payment. Voiding twice is not an error.
func (s *Simulator) Void(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.approved[ref]; !ok {
		return ErrUnknownPayment
	}
	s.voided[ref] = struct{}{}
	zctx.From(ctx).Info("Payment voided", zap.String("payment_ref", ref))
	return nil
}

// Voided reports whether ref has been voided.
func (s *Simulator) Voided(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.voided[ref]
	return ok
}
