//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/kart-checkout/internal/domain/coupon"
	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/product"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "kart",
				"POSTGRES_PASSWORD": "kart",
				"POSTGRES_DB":       "kart",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool, err := NewPool(ctx, fmt.Sprintf("postgres://kart:kart@%s:%s/kart?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestRepositories(t *testing.T) {
	pool := startPostgres(t)

	t.Run("products", func(t *testing.T) {
		ctx := context.Background()
		repo := NewProductRepository(pool)

		require.NoError(t, repo.Upsert(ctx, []product.Product{
			{ID: "p1", Name: "Waffle", Price: decimal.RequireFromString("6.50"), Category: "Waffle", WeightKg: decimal.RequireFromString("0.25"), Stock: 10},
			{ID: "p2", Name: "Book", Price: decimal.RequireFromString("12.00"), Category: "education", Stock: 3},
		}))

		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "6.5", all[0].Price.String())

		require.NoError(t, repo.SetStock(ctx, "p1", 7))
		p, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, 7, p.Stock)
		assert.True(t, p.WeightKg.Equal(decimal.RequireFromString("0.25")))

		_, err = repo.GetByID(ctx, "nope")
		require.ErrorIs(t, err, product.ErrNotFound)
		require.ErrorIs(t, repo.SetStock(ctx, "nope", 1), product.ErrNotFound)
		require.Error(t, repo.SetStock(ctx, "p1", -1), "stock check constraint")

		some, err := repo.GetByIDs(ctx, []string{"p2", "nope"})
		require.NoError(t, err)
		require.Len(t, some, 1)
		assert.Equal(t, "p2", some[0].ID)
	})

	t.Run("orders", func(t *testing.T) {
		ctx := context.Background()
		repo := NewOrderRepository(pool)

		now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		o := order.Order{
			ID:     "0b1f3a52-1c5e-4a4e-9d1f-7b2c9e0f4a11",
			UserID: "u1",
			Items: []order.Item{
				{ProductID: "p1", Title: "Waffle", Quantity: 2, UnitPrice: decimal.RequireFromString("6.50")},
			},
			Status:          order.StatusConfirmed,
			Subtotal:        decimal.RequireFromString("13.00"),
			Discount:        decimal.Zero,
			Tax:             decimal.RequireFromString("0.94"),
			Shipping:        decimal.RequireFromString("4.99"),
			Total:           decimal.RequireFromString("18.93"),
			LoyaltyPoints:   18,
			ShippingAddress: order.Address{Name: "Ada", Street: "1 Main", City: "SF", Region: "CA", PostalCode: "94105", Country: "US"},
			ShippingSpeed:   "standard",
			PaymentMethod:   "credit_card",
			PaymentRef:      "pay_1",
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		require.NoError(t, repo.SaveAll(ctx, []order.Order{o}))

		loaded, err := repo.LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, o.ShippingAddress, loaded[0].ShippingAddress)
		assert.True(t, o.Total.Equal(loaded[0].Total))
		assert.Equal(t, 2, loaded[0].Items[0].Quantity)

		o.Status = order.StatusShipped
		o.UpdatedAt = now.Add(time.Hour)
		require.NoError(t, repo.SaveAll(ctx, []order.Order{o}))
		loaded, err = repo.LoadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, order.StatusShipped, loaded[0].Status)
		assert.True(t, loaded[0].UpdatedAt.Equal(now.Add(time.Hour)))

		require.NoError(t, repo.SaveAll(ctx, []order.Order{}))
		loaded, err = repo.LoadAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, loaded)
	})

	t.Run("promo codes", func(t *testing.T) {
		ctx := context.Background()
		repo := NewCouponRepository(pool)

		require.NoError(t, repo.Upsert(ctx, coupon.DefaultRules()))

		rule, err := repo.FindByCode(ctx, "save20")
		require.NoError(t, err)
		assert.Equal(t, "SAVE20", rule.Code)
		assert.Equal(t, coupon.DiscountPercentage, rule.DiscountType)
		assert.Nil(t, rule.ValidUntil)

		require.NoError(t, repo.IncrementUses(ctx, "save20"))
		require.NoError(t, repo.DecrementUses(ctx, "SAVE20"))
		require.NoError(t, repo.DecrementUses(ctx, "SAVE20"))
		rule, err = repo.FindByCode(ctx, "SAVE20")
		require.NoError(t, err)
		assert.Zero(t, rule.Uses)

		_, err = repo.FindByCode(ctx, "NOPE")
		require.ErrorIs(t, err, coupon.ErrInvalidCoupon)
		require.ErrorIs(t, repo.IncrementUses(ctx, "NOPE"), coupon.ErrInvalidCoupon)

		require.NoError(t, repo.Upsert(ctx, []coupon.Rule{{
			Code: "pgonce", DiscountType: coupon.DiscountFixed, Value: decimal.NewFromInt(5),
			MinPurchase: decimal.Zero, Description: "single use", MaxUses: 1,
		}}))
		var (
			wg   sync.WaitGroup
			errs = make([]error, 8)
		)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = repo.IncrementUses(ctx, "PGONCE")
			}()
		}
		wg.Wait()
		redeemed := 0
		for _, err := range errs {
			if err == nil {
				redeemed++
				continue
			}
			require.ErrorIs(t, err, coupon.ErrCouponUsageLimitReached)
		}
		assert.Equal(t, 1, redeemed)
		rule, err = repo.FindByCode(ctx, "PGONCE")
		require.NoError(t, err)
		assert.Equal(t, 1, rule.Uses)
	})
}
