package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/domain/coupon"
	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/product"
	"github.com/xenking/kart-checkout/internal/storage/file"
	"github.com/xenking/kart-checkout/internal/storage/memory"
	"github.com/xenking/kart-checkout/internal/storage/mysql"
	"github.com/xenking/kart-checkout/internal/storage/postgres"
	"github.com/xenking/kart-checkout/pkg/health"
)

// stores is the set of repositories selected by StorageConfig.Driver.
type stores struct {
	products product.Repository
	coupons  coupon.Repository
	orders   order.Repository
	close    func()
}

// openStores connects the configured driver, applies migrations and
// registers a readiness check for it.
func openStores(ctx context.Context, lg *zap.Logger, cfg StorageConfig, hc *health.Health) (*stores, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return openPostgres(ctx, cfg, hc)
	case DriverMySQL:
		return openMySQL(ctx, cfg, hc)
	default:
		return openMemory(lg, cfg)
	}
}

func openPostgres(ctx context.Context, cfg StorageConfig, hc *health.Health) (*stores, error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	hc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))

	return &stores{
		products: postgres.NewProductRepository(pool),
		coupons:  postgres.NewCouponRepository(pool),
		orders:   postgres.NewOrderRepository(pool),
		close:    pool.Close,
	}, nil
}

var _ health.Pinger = (*pgxpool.Pool)(nil)

func openMySQL(ctx context.Context, cfg StorageConfig, hc *health.Health) (*stores, error) {
	db, err := mysql.Open(ctx, cfg.MySQLDSN)
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	if err := mysql.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	hc.AddReadinessCheck("mysql", 5*time.Second, health.PingCheck(sqlPinger{db}))

	// Promo codes have no MySQL table; the built-in rules are used.
	return &stores{
		products: mysql.NewProductRepository(db),
		coupons:  memory.NewCouponRepository(coupon.DefaultRules()...),
		orders:   mysql.NewOrderRepository(db),
		close:    func() { _ = db.Close() },
	}, nil
}

type sqlPinger struct{ db *sql.DB }

func (p sqlPinger) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func openMemory(lg *zap.Logger, cfg StorageConfig) (*stores, error) {
	var seed []product.Product
	if cfg.SeedFile != "" {
		var err error
		seed, err = memory.LoadProducts(cfg.SeedFile)
		if err != nil {
			return nil, errors.Wrap(err, "load product seed")
		}
	}
	lg.Info("Using in-memory catalog",
		zap.Int("products", len(seed)),
		zap.String("orders_file", cfg.OrdersFile),
	)

	var orders order.Repository = memory.NewOrderRepository()
	if cfg.OrdersFile != "" {
		orders = file.NewOrderRepository(cfg.OrdersFile)
	}
	return &stores{
		products: memory.NewProductRepository(seed...),
		coupons:  memory.NewCouponRepository(coupon.DefaultRules()...),
		orders:   orders,
		close:    func() {},
	}, nil
}
