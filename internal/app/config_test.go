package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr: defaultAddr,
		Storage: StorageConfig{
			Driver: DriverMemory,
		},
		Checkout: CheckoutConfig{
			FreeShippingThreshold: "75",
		},
		Inventory: InventoryConfig{
			MaxStock: 100,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "memory", mutate: func(*Config) {}},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.Storage.Driver = DriverPostgres },
			wantErr: "database URL is required",
		},
		{
			name: "postgres with url",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverPostgres
				c.Storage.DatabaseURL = "postgres://localhost/kart"
			},
		},
		{
			name:    "mysql without dsn",
			mutate:  func(c *Config) { c.Storage.Driver = DriverMySQL },
			wantErr: "MySQL DSN is required",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Storage.Driver = "sqlite" },
			wantErr: `unknown storage driver "sqlite"`,
		},
		{
			name:    "bad threshold",
			mutate:  func(c *Config) { c.Checkout.FreeShippingThreshold = "lots" },
			wantErr: "free shipping threshold",
		},
		{
			name:    "negative threshold",
			mutate:  func(c *Config) { c.Checkout.FreeShippingThreshold = "-1" },
			wantErr: "must not be negative",
		},
		{
			name:    "zero max stock",
			mutate:  func(c *Config) { c.Inventory.MaxStock = 0 },
			wantErr: "max stock must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/kart")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("PORT", "9000")

	cfg := validConfig()
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform/kart", cfg.Storage.DatabaseURL)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)

	explicit := validConfig()
	explicit.Addr = "127.0.0.1:8081"
	explicit.Storage.DatabaseURL = "postgres://explicit/kart"
	explicit.applyPlatformDefaults()
	assert.Equal(t, "127.0.0.1:8081", explicit.Addr)
	assert.Equal(t, "postgres://explicit/kart", explicit.Storage.DatabaseURL)
}

func TestConfig_FreeShippingThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Checkout.FreeShippingThreshold = "120.50"

	v, err := cfg.FreeShippingThreshold()
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.RequireFromString("120.50")))
}
