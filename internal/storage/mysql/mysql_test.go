package mysql

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/product"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func getMySQLDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("KART_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("KART_TEST_MYSQL_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sqlDB, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, RunMigrations(ctx, sqlDB))
	return sqlDB
}

func TestProductRepository(t *testing.T) {
	sqlDB := getMySQLDB(t)
	ctx := context.Background()
	repo := NewProductRepository(sqlDB)

	require.NoError(t, repo.Upsert(ctx, []product.Product{
		{ID: "test-p1", Name: "Waffle", Price: decimal.RequireFromString("6.50"), Category: "Waffle", Stock: 10},
	}))
	t.Cleanup(func() { _, _ = sqlDB.ExecContext(ctx, `DELETE FROM products WHERE id = 'test-p1'`) })

	require.NoError(t, repo.SetStock(ctx, "test-p1", 4))
	require.NoError(t, repo.SetStock(ctx, "test-p1", 4), "unchanged value is not a miss")

	p, err := repo.GetByID(ctx, "test-p1")
	require.NoError(t, err)
	assert.Equal(t, 4, p.Stock)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("6.50")))

	require.ErrorIs(t, repo.SetStock(ctx, "test-missing", 1), product.ErrNotFound)
	_, err = repo.GetByID(ctx, "test-missing")
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestOrderRepository(t *testing.T) {
	sqlDB := getMySQLDB(t)
	ctx := context.Background()
	repo := NewOrderRepository(sqlDB)

	before, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.SaveAll(ctx, before) })

	now := time.Now().UTC().Truncate(time.Microsecond)
	o := order.Order{
		ID:              "6f0c2d1e-9a7b-4c3d-8e2f-1a0b9c8d7e6f",
		UserID:          "test-user",
		Items:           []order.Item{{ProductID: "test-p1", Title: "Waffle", Quantity: 1, UnitPrice: decimal.RequireFromString("6.50")}},
		Status:          order.StatusConfirmed,
		Subtotal:        decimal.RequireFromString("6.50"),
		Total:           decimal.RequireFromString("11.96"),
		ShippingAddress: order.Address{Name: "Ada", Country: "US"},
		ShippingSpeed:   "standard",
		PaymentMethod:   "paypal",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, repo.SaveAll(ctx, append(before, o)))

	loaded, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, len(before)+1)

	var got *order.Order
	for i := range loaded {
		if loaded[i].ID == o.ID {
			got = &loaded[i]
		}
	}
	require.NotNil(t, got)
	assert.Equal(t, o.ShippingAddress, got.ShippingAddress)
	assert.True(t, o.CreatedAt.Equal(got.CreatedAt))
}
