package app

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Addr:      "0.0.0.0:8080",
		Storage:   StorageConfig{Driver: "postgres", DatabaseURL: "postgres://localhost/tokyo"},
		Auth:      AuthConfig{JWTSecret: "secret", TokenTTL: time.Hour},
		Pricing:   PricingConfig{DeliveryFee: "150"},
		Orders:    OrdersConfig{Timezone: "Local"},
		Uploads:   UploadsConfig{Driver: "disk", Dir: "uploads"},
		RateLimit: RateLimitConfig{RPS: 10, Burst: 100},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing database URL", mutate: func(c *Config) { c.Storage.DatabaseURL = "" }, wantErr: "database URL"},
		{name: "mongo without URI", mutate: func(c *Config) { c.Storage.Driver = "mongo" }, wantErr: "mongo URI"},
		{name: "mongo", mutate: func(c *Config) {
			c.Storage = StorageConfig{Driver: "mongo", MongoURI: "mongodb://localhost", MongoDatabase: "tokyo"}
		}},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "sqlite" }, wantErr: "storage driver"},
		{name: "missing secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "JWT secret"},
		{name: "bad fee", mutate: func(c *Config) { c.Pricing.DeliveryFee = "cheap" }, wantErr: "delivery fee"},
		{name: "negative fee", mutate: func(c *Config) { c.Pricing.DeliveryFee = "-1" }, wantErr: "negative"},
		{name: "huge fee", mutate: func(c *Config) { c.Pricing.DeliveryFee = "1e100" }, wantErr: "out of range"},
		{name: "bad time zone", mutate: func(c *Config) { c.Orders.Timezone = "Mars/Olympus" }, wantErr: "time zone"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Uploads.Driver = "s3" }, wantErr: "S3 bucket"},
		{name: "unknown uploads driver", mutate: func(c *Config) { c.Uploads.Driver = "ftp" }, wantErr: "uploads driver"},
		{name: "zero burst", mutate: func(c *Config) { c.RateLimit.Burst = 0 }, wantErr: "rate limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
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

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("MONGO_URI", "mongodb://platform")
	t.Setenv("JWT_SECRET", "platform-secret")
	t.Setenv("PORT", "9000")

	cfg := &Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://platform/db", cfg.Storage.DatabaseURL)
	assert.Equal(t, "mongodb://platform", cfg.Storage.MongoURI)
	assert.Equal(t, "platform-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)

	explicit := &Config{Addr: "127.0.0.1:7000", Auth: AuthConfig{JWTSecret: "own"}}
	explicit.applyPlatformDefaults()
	assert.Equal(t, "127.0.0.1:7000", explicit.Addr)
	assert.Equal(t, "own", explicit.Auth.JWTSecret)
}

func TestDeliveryFee(t *testing.T) {
	cfg := validConfig()
	cfg.Pricing.DeliveryFee = " 199.90 "
	fee, err := cfg.DeliveryFee()
	require.NoError(t, err)
	assert.True(t, fee.Equal(decimal.RequireFromString("199.9")))
}

func TestStorageOptions(t *testing.T) {
	cfg := validConfig()
	opts := cfg.StorageOptions()
	assert.Equal(t, "postgres", opts.Driver)
	assert.Equal(t, "postgres://localhost/tokyo", opts.DatabaseURL)
}
