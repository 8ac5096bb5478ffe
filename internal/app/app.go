package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/coupon"
	"github.com/xenking/kart-checkout/internal/domain/inventory"
	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/payment"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
	"github.com/xenking/kart-checkout/internal/domain/validation"
	"github.com/xenking/kart-checkout/internal/handler"
	"github.com/xenking/kart-checkout/internal/lock"
	"github.com/xenking/kart-checkout/internal/storage/memory"
	"github.com/xenking/kart-checkout/internal/storage/redis"
	"github.com/xenking/kart-checkout/pkg/health"
	"github.com/xenking/kart-checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	st, err := openStores(ctx, lg, cfg.Storage, healthSvc)
	if err != nil {
		return err
	}
	defer st.close()

	// Checkout lock: Redis when configured so replicas share it.
	var locker lock.Locker
	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = client.Close() }()

		rl := redis.NewLocker(client, redis.LockerConfig{TTL: cfg.Redis.LockTTL})
		if err := rl.Ping(ctx); err != nil {
			return errors.Wrap(err, "connect redis")
		}
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(rl))
		locker = rl
		lg.Info("Using Redis checkout lock", zap.String("redis", cfg.Redis.Addr))
	}

	threshold, err := cfg.FreeShippingThreshold()
	if err != nil {
		return err
	}

	// Domain services.
	carts := memory.NewCartRepository()
	promos := coupon.NewRepoValidator(st.coupons)
	stock := inventory.NewManager(st.products, inventory.Config{
		LogCapacity: cfg.Inventory.LogCapacity,
		MaxStock:    cfg.Inventory.MaxStock,
	})
	ledger := cart.NewLedger(carts, st.products, promos)
	orders := order.NewService(st.orders, stock)

	orch, err := checkout.New(checkout.Deps{
		Carts:     carts,
		Ledger:    ledger,
		Catalog:   st.products,
		Inventory: stock,
		Promos:    promos,
		Payments:  payment.NewSimulator(payment.SimulatorConfig{Latency: cfg.Checkout.PaymentLatency}),
		Orders:    orders,
		Validator: validation.New(),
		Locker:    locker,
	}, checkout.Config{
		PaymentTimeout:        cfg.Checkout.PaymentTimeout,
		LockTimeout:           cfg.Checkout.LockTimeout,
		FreeShippingThreshold: threshold,
		Origin: pricing.Location{
			Country:    cfg.Checkout.Origin.Country,
			Region:     cfg.Checkout.Origin.Region,
			PostalCode: cfg.Checkout.Origin.PostalCode,
		},
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create checkout")
	}

	// HTTP handlers.
	deps := handler.Deps{
		Products:  st.products,
		Carts:     ledger,
		Checkout:  orch,
		Orders:    orders,
		Inventory: stock,
	}
	if len(cfg.Operator.KeyHashes) > 0 {
		deps.Operator, err = handler.OperatorAuth(cfg.Operator.KeyHashes, []byte(cfg.Operator.Pepper))
		if err != nil {
			return errors.Wrap(err, "operator auth")
		}
	} else {
		lg.Warn("No operator keys configured, stock and order status routes are open")
	}
	h := handler.New(deps)

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Checkout.PaymentTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(
			otelhttp.NewHandler(mux, "kart-api",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.OperatorKeyHeader, "X-Request-ID"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
