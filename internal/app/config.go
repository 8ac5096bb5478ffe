package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage   StorageConfig
	Redis     RedisConfig
	Checkout  CheckoutConfig
	Inventory InventoryConfig
	Operator  OperatorConfig
	RateLimit RateLimitConfig `env:"RATE_LIMIT"`
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// StorageConfig selects and configures the repositories.
type StorageConfig struct {
	Driver      string `default:"memory" usage:"Storage driver: memory, postgres or mysql"`
	DatabaseURL string `env:"DATABASE_URL" usage:"PostgreSQL connection URL (KART_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	MySQLDSN    string `env:"MYSQL_DSN" usage:"MySQL DSN, e.g. kart:kart@tcp(localhost:3306)/kart" flag:"mysql-dsn"`
	OrdersFile  string `usage:"JSON file holding orders for the memory driver; empty keeps them in memory" flag:"orders-file"`
	SeedFile    string `default:"db/seed/products.json" usage:"Product seed for the memory driver" flag:"seed-file"`
}

// RedisConfig enables the shared checkout lock when Addr is set.
type RedisConfig struct {
	Addr     string        `usage:"Redis address (KART_REDIS_ADDR or REDIS_URL); empty uses an in-process lock"`
	Password string        `usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database"`
	LockTTL  time.Duration `default:"30s" usage:"Checkout lock expiry"`
}

// CheckoutConfig tunes the checkout orchestrator.
type CheckoutConfig struct {
	PaymentTimeout        time.Duration `default:"5s" usage:"Payment step timeout; a timeout is a decline"`
	PaymentLatency        time.Duration `default:"50ms" usage:"Simulated payment processor latency"`
	LockTimeout           time.Duration `default:"10s" usage:"Wait for a concurrent checkout of the same user"`
	FreeShippingThreshold string        `default:"75" usage:"Subtotal that earns free shipping"`
	Origin                OriginConfig
}

// OriginConfig is the warehouse location used for shipping zones.
type OriginConfig struct {
	Country    string `default:"US"`
	Region     string `default:"CA"`
	PostalCode string `default:"94105"`
}

// InventoryConfig tunes stock management.
type InventoryConfig struct {
	LogCapacity int `default:"1000" usage:"Inventory log entries kept in memory"`
	MaxStock    int `default:"10000" usage:"Default restock ceiling"`
}

// OperatorConfig guards stock and order-status mutations.
type OperatorConfig struct {
	KeyHashes []string `env:"KEY_HASHES" usage:"Hex HMAC-SHA256 digests of operator keys; empty leaves operator routes open"`
	Pepper    string   `usage:"HMAC pepper for operator key hashing"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files and platform variables, then validates it.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps DATABASE_URL, REDIS_URL and PORT, as set by
// hosting platforms, onto the KART_ configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Redis.Addr == "" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.Redis.Addr = strings.TrimPrefix(v, "redis://")
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required for the postgres driver: set KART_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case DriverMySQL:
		if c.Storage.MySQLDSN == "" {
			return errors.New("MySQL DSN is required for the mysql driver: set KART_STORAGE_MYSQL_DSN")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if _, err := c.FreeShippingThreshold(); err != nil {
		return err
	}
	if c.Inventory.MaxStock <= 0 {
		return errors.New("inventory max stock must be positive")
	}
	return nil
}

// FreeShippingThreshold parses the configured threshold.
func (c *Config) FreeShippingThreshold() (decimal.Decimal, error) {
	v, err := decimal.NewFromString(c.Checkout.FreeShippingThreshold)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "parse free shipping threshold")
	}
	if v.IsNegative() {
		return decimal.Decimal{}, errors.New("free shipping threshold must not be negative")
	}
	return v, nil
}
