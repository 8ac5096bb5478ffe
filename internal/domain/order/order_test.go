package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	all := []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}
	legal := map[[2]Status]bool{
		{StatusPending, StatusConfirmed}:   true,
		{StatusPending, StatusCancelled}:   true,
		{StatusConfirmed, StatusShipped}:   true,
		{StatusConfirmed, StatusCancelled}: true,
		{StatusShipped, StatusDelivered}:   true,
		{StatusShipped, StatusCancelled}:   true,
	}
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	for _, from := range all {
		for _, to := range all {
			o := &Order{Status: from}
			err := o.Transition(to, now)
			if legal[[2]Status{from, to}] {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, o.Status)
				assert.Equal(t, now, o.UpdatedAt)
				continue
			}
			var itErr *InvalidTransitionError
			require.ErrorAs(t, err, &itErr, "%s -> %s", from, to)
			assert.Equal(t, from, itErr.From)
			assert.Equal(t, to, itErr.To)
			assert.Equal(t, from, o.Status, "status must not change")
			assert.True(t, o.UpdatedAt.IsZero())
		}
	}
}

func TestTransition_ShippedToPendingRejected(t *testing.T) {
	o := &Order{Status: StatusShipped}
	require.Error(t, o.Transition(StatusPending, time.Now()))
	assert.Equal(t, StatusShipped, o.Status)

	o = &Order{Status: StatusPending}
	require.NoError(t, o.Transition(StatusCancelled, time.Now()))
	assert.Equal(t, StatusCancelled, o.Status)
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusShipped.Terminal())
	assert.False(t, Status("bogus").Terminal())
	assert.False(t, Status("bogus").Valid())
}

func TestCanCancel(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status Status
		age    time.Duration
		want   bool
	}{
		{"pending fresh", StatusPending, time.Hour, true},
		{"pending old", StatusPending, 72 * time.Hour, true},
		{"confirmed old", StatusConfirmed, 72 * time.Hour, true},
		{"shipped 23h", StatusShipped, 23 * time.Hour, true},
		{"shipped 25h", StatusShipped, 25 * time.Hour, false},
		{"delivered", StatusDelivered, time.Hour, false},
		{"cancelled", StatusCancelled, time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{Status: tt.status, CreatedAt: now.Add(-tt.age)}
			assert.Equal(t, tt.want, o.CanCancel(now))
		})
	}
}

func readyOrder() *Order {
	return &Order{
		Items:           []Item{{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}},
		ShippingAddress: Address{Name: "Ada", Street: "1 Main St", City: "Springfield", Region: "CA", PostalCode: "90001", Country: "US"},
		PaymentMethod:   "credit_card",
		Total:           decimal.NewFromInt(10),
	}
}

func TestReadyToConfirm(t *testing.T) {
	require.NoError(t, readyOrder().ReadyToConfirm())

	tests := []struct {
		name   string
		mutate func(o *Order)
		reason string
	}{
		{"no items", func(o *Order) { o.Items = nil }, "no items"},
		{"no address", func(o *Order) { o.ShippingAddress = Address{} }, "shipping address"},
		{"no payment method", func(o *Order) { o.PaymentMethod = " " }, "payment method"},
		{"zero total", func(o *Order) { o.Total = decimal.Zero }, "total"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := readyOrder()
			tt.mutate(o)

			var nrErr *NotReadyError
			require.ErrorAs(t, o.ReadyToConfirm(), &nrErr)
			assert.Contains(t, nrErr.Error(), tt.reason)
		})
	}
}

func TestReadyToConfirm_EmptyOrderZeroTotal(t *testing.T) {
	o := readyOrder()
	o.Items = nil
	o.Total = decimal.Zero

	var nrErr *NotReadyError
	require.ErrorAs(t, o.ReadyToConfirm(), &nrErr)
	assert.Len(t, nrErr.Reasons, 1, "zero total only matters when items exist")
}

func TestClone(t *testing.T) {
	o := readyOrder()
	c := o.Clone()
	c.Items[0].Quantity = 99
	assert.Equal(t, 1, o.Items[0].Quantity)
}
