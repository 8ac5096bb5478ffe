package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-checkout/internal/domain/coupon"
	"github.com/xenking/kart-checkout/internal/domain/product"
	"github.com/xenking/kart-checkout/internal/handler"
	"github.com/xenking/kart-checkout/internal/storage/memory"
	"github.com/xenking/kart-checkout/internal/storage/mysql"
	"github.com/xenking/kart-checkout/internal/storage/postgres"
)

func main() {
	var (
		driver       string
		databaseURL  string
		mysqlDSN     string
		productsFile string
		operatorKey  string
		pepper       string
	)

	flag.StringVar(&driver, "driver", "postgres", "target database: postgres or mysql")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&mysqlDSN, "mysql-dsn", "", "MySQL DSN (or KART_STORAGE_MYSQL_DSN env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&operatorKey, "operator-key", "", "operator key to hash for KART_OPERATOR_KEY_HASHES (or KART_SEED_OPERATOR_KEY env)")
	flag.StringVar(&pepper, "operator-pepper", "", "HMAC pepper for operator keys (or KART_OPERATOR_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if mysqlDSN == "" {
		mysqlDSN = os.Getenv("KART_STORAGE_MYSQL_DSN")
	}
	if operatorKey == "" {
		operatorKey = os.Getenv("KART_SEED_OPERATOR_KEY")
	}
	if pepper == "" {
		pepper = os.Getenv("KART_OPERATOR_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	products, err := memory.LoadProducts(productsFile)
	if err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("read products file", slog.String("path", productsFile), slog.Int("count", len(products)))

	switch driver {
	case "postgres":
		if databaseURL == "" {
			slog.Error("database URL is required: set --database-url or DATABASE_URL")
			os.Exit(1)
		}
		err = seedPostgres(ctx, databaseURL, products)
	case "mysql":
		if mysqlDSN == "" {
			slog.Error("MySQL DSN is required: set --mysql-dsn or KART_STORAGE_MYSQL_DSN")
			os.Exit(1)
		}
		err = seedMySQL(ctx, mysqlDSN, products)
	default:
		err = errors.Errorf("unknown driver %q", driver)
	}
	if err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if operatorKey != "" {
		// Printed, not stored: operator keys live in configuration.
		fmt.Println(handler.HashOperatorKey(operatorKey, []byte(pepper)))
	}

	slog.Info("seed completed successfully")
}

func seedPostgres(ctx context.Context, databaseURL string, products []product.Product) error {
	slog.Info("connecting to database", slog.String("driver", "postgres"))

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := postgres.NewProductRepository(pool).Upsert(ctx, products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	logProducts(products)

	rules := coupon.DefaultRules()
	if err := postgres.NewCouponRepository(pool).Upsert(ctx, rules); err != nil {
		return errors.Wrap(err, "seed promo codes")
	}
	for _, r := range rules {
		slog.Info("upserted promo code", slog.String("code", r.Code), slog.String("description", r.Description))
	}
	return nil
}

func seedMySQL(ctx context.Context, dsn string, products []product.Product) error {
	slog.Info("connecting to database", slog.String("driver", "mysql"))

	db, err := mysql.Open(ctx, dsn)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer func() { _ = db.Close() }()

	slog.Info("running migrations")
	if err := mysql.RunMigrations(ctx, db); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := mysql.NewProductRepository(db).Upsert(ctx, products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	logProducts(products)
	return nil
}

func logProducts(products []product.Product) {
	for _, p := range products {
		slog.Info("upserted product",
			slog.String("id", p.ID),
			slog.String("name", p.Name),
			slog.Int("stock", p.Stock),
		)
	}
}
