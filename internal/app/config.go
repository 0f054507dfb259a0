package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/tokyo-express/internal/domain"
	"github.com/xenking/tokyo-express/internal/storage"
)

// Config holds the complete application configuration, loadable from
// environment variables (TOKYO_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage   StorageConfig
	Auth      AuthConfig
	Pricing   PricingConfig
	Orders    OrdersConfig
	Uploads   UploadsConfig
	Events    EventsConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver        string `default:"postgres" usage:"Storage backend: postgres or mongo"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (TOKYO_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	MongoURI      string `usage:"MongoDB connection URI (TOKYO_STORAGE_MONGO_URI or MONGO_URI)" flag:"mongo-uri"`
	MongoDatabase string `default:"tokyo" usage:"MongoDB database name"`
}

// AuthConfig controls staff tokens.
type AuthConfig struct {
	JWTSecret string        `usage:"HMAC secret for staff tokens (TOKYO_AUTH_JWT_SECRET or JWT_SECRET)" flag:"jwt-secret"`
	TokenTTL  time.Duration `default:"168h" usage:"Staff token lifetime"`
}

// PricingConfig controls order pricing.
type PricingConfig struct {
	DeliveryFee string `default:"150" usage:"Flat delivery fee"`
}

// OrdersConfig controls the order lifecycle.
type OrdersConfig struct {
	StrictStatusFlow bool   `default:"false" usage:"Reject status changes that skip or reverse the flow"`
	Timezone         string `default:"Local" usage:"IANA time zone that defines today for stats"`
}

// UploadsConfig controls image uploads.
type UploadsConfig struct {
	Driver     string `default:"disk" usage:"Upload store: disk or s3"`
	Dir        string `default:"uploads" usage:"Directory for the disk store"`
	PublicURL  string `default:"" usage:"Public base URL prepended to upload paths" flag:"uploads-public-url"`
	MaxSize    int64  `default:"5242880" usage:"Maximum image size in bytes"`
	S3Bucket   string `usage:"S3 bucket"`
	S3Region   string `usage:"S3 region"`
	S3Prefix   string `default:"uploads" usage:"S3 key prefix"`
	S3Endpoint string `usage:"S3-compatible endpoint override"`
}

// EventsConfig controls order event publishing. Empty brokers disable it.
type EventsConfig struct {
	Brokers string `default:"" usage:"Comma-separated Kafka brokers"`
	Topic   string `default:"tokyo.orders" usage:"Kafka topic for order events"`
	// PublishTimeout bounds each background delivery and the flush on
	// shutdown.
	PublishTimeout time.Duration `default:"5s" usage:"Timeout for publishing a single order event"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	RPS   float64 `default:"10" usage:"Sustained requests per second per client"`
	Burst int     `default:"100" usage:"Maximum burst per client"`
	// TrustProxy keys clients by X-Forwarded-For / X-Real-IP. Enable only
	// behind a proxy that overwrites those headers.
	TrustProxy bool `default:"false" usage:"Trust X-Forwarded-For and X-Real-IP for client identity" flag:"ratelimit-trust-proxy"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from .env, environment variables, YAML
// config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "TOKYO",
		Files:     []string{"config.yaml", "/etc/tokyo/config.yaml"},
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

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's TOKYO_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	fallback := func(dst *string, env string) {
		if *dst == "" {
			*dst = os.Getenv(env)
		}
	}
	fallback(&c.Storage.DatabaseURL, "DATABASE_URL")
	fallback(&c.Storage.MongoURI, "MONGO_URI")
	fallback(&c.Auth.JWTSecret, "JWT_SECRET")
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case storage.DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set TOKYO_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case storage.DriverMongo:
		if c.Storage.MongoURI == "" {
			return errors.New("mongo URI is required: set TOKYO_STORAGE_MONGO_URI or MONGO_URI")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("JWT secret is required: set TOKYO_AUTH_JWT_SECRET or JWT_SECRET")
	}

	if _, err := c.DeliveryFee(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.Uploads.Driver {
	case "disk":
	case "s3":
		if c.Uploads.S3Bucket == "" {
			return errors.New("S3 bucket is required for the s3 upload driver")
		}
	default:
		return errors.Errorf("unknown uploads driver %q", c.Uploads.Driver)
	}

	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit RPS and burst must be positive")
	}
	return nil
}

// DeliveryFee parses the configured delivery fee.
func (c *Config) DeliveryFee() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(strings.TrimSpace(c.Pricing.DeliveryFee))
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse delivery fee %q", c.Pricing.DeliveryFee)
	}
	if fee.IsNegative() {
		return decimal.Zero, errors.Errorf("delivery fee %s is negative", fee)
	}
	if err := domain.CheckAmount("deliveryFee", fee); err != nil {
		return decimal.Zero, errors.Errorf("delivery fee %s is out of range", c.Pricing.DeliveryFee)
	}
	return domain.RoundAmount(fee), nil
}

// Location resolves the configured stats time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Orders.Timezone == "" || c.Orders.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Orders.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "load time zone %q", c.Orders.Timezone)
	}
	return loc, nil
}

// StorageOptions converts the storage section for storage.Open.
func (c *Config) StorageOptions() storage.Config {
	return storage.Config{
		Driver:        c.Storage.Driver,
		DatabaseURL:   c.Storage.DatabaseURL,
		MongoURI:      c.Storage.MongoURI,
		MongoDatabase: c.Storage.MongoDatabase,
	}
}
