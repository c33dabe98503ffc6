// Package config loads storefront settings: built-in defaults, then an optional YAML file,
// then an optional .env file, then STOREFRONT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "STOREFRONT_"

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	Service ServiceConfig `yaml:"service"`
	HTTP    HTTPConfig    `yaml:"http"`
	Store   StoreConfig   `yaml:"store"`
	Lock    LockConfig    `yaml:"lock"`
	Auth    AuthConfig    `yaml:"auth"`
	Payment PaymentConfig `yaml:"payment"`
	Pricing PricingConfig `yaml:"pricing"`
	Outbox  OutboxConfig  `yaml:"outbox"`
}

type ServiceConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

type LockConfig struct {
	Driver        string        `yaml:"driver"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	Prefix        string        `yaml:"prefix"`
	TTL           time.Duration `yaml:"ttl"`
	Retries       int           `yaml:"retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type PaymentConfig struct {
	Secret string `yaml:"secret"`
}

type PricingConfig struct {
	// TaxRate is a decimal fraction, e.g. "0.05".
	TaxRate          string `yaml:"tax_rate"`
	FlatShipping     int64  `yaml:"flat_shipping"`
	FreeShippingOver int64  `yaml:"free_shipping_over"`
}

type OutboxConfig struct {
	QueueSize      int           `yaml:"queue_size"`
	Concurrency    int           `yaml:"concurrency"`
	HandlerTimeout time.Duration `yaml:"handler_timeout"`
}

func Default() Config {
	return Config{
		Service: ServiceConfig{Name: "storefront", Env: "dev", LogLevel: "info"},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{Driver: DriverMemory, MaxConns: 10},
		Lock: LockConfig{
			Driver:     DriverMemory,
			RedisAddr:  "localhost:6379",
			Prefix:     "storefront:lock:",
			TTL:        5 * time.Second,
			Retries:    3,
			RetryDelay: 15 * time.Millisecond,
		},
		Auth:    AuthConfig{Issuer: "storefront"},
		Pricing: PricingConfig{TaxRate: "0"},
		Outbox:  OutboxConfig{QueueSize: 1024, Concurrency: 8, HandlerTimeout: 30 * time.Second},
	}
}

// Load resolves the configuration. Empty paths skip that layer; a missing .env file is not an
// error, a missing YAML file is.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if envFile != "" {
		// godotenv.Load never overrides variables already set in the process.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.setString("SERVICE_NAME", &c.Service.Name)
	e.setString("ENV", &c.Service.Env)
	e.setString("LOG_LEVEL", &c.Service.LogLevel)
	e.setString("LOG_FILE", &c.Service.LogFile)
	if v, ok := lookup("LOG_FILE"); ok && c.Service.LogFile == "" {
		c.Service.LogFile = v // unprefixed name kept for existing deployments
	}

	e.setString("HTTP_ADDR", &c.HTTP.Addr)
	e.setDuration("HTTP_READ_TIMEOUT", &c.HTTP.ReadTimeout)
	e.setDuration("HTTP_WRITE_TIMEOUT", &c.HTTP.WriteTimeout)
	e.setDuration("HTTP_SHUTDOWN_TIMEOUT", &c.HTTP.ShutdownTimeout)

	e.setString("STORE_DRIVER", &c.Store.Driver)
	e.setString("DATABASE_DSN", &c.Store.DSN)
	e.setInt32("DATABASE_MAX_CONNS", &c.Store.MaxConns)

	e.setString("LOCK_DRIVER", &c.Lock.Driver)
	e.setString("REDIS_ADDR", &c.Lock.RedisAddr)
	e.setString("REDIS_PASSWORD", &c.Lock.RedisPassword)
	e.setInt("REDIS_DB", &c.Lock.RedisDB)
	e.setString("LOCK_PREFIX", &c.Lock.Prefix)
	e.setDuration("LOCK_TTL", &c.Lock.TTL)
	e.setInt("LOCK_RETRIES", &c.Lock.Retries)
	e.setDuration("LOCK_RETRY_DELAY", &c.Lock.RetryDelay)

	e.setString("JWT_SECRET", &c.Auth.JWTSecret)
	e.setString("JWT_ISSUER", &c.Auth.Issuer)
	e.setString("PAYMENT_SECRET", &c.Payment.Secret)

	e.setString("TAX_RATE", &c.Pricing.TaxRate)
	e.setInt64("FLAT_SHIPPING", &c.Pricing.FlatShipping)
	e.setInt64("FREE_SHIPPING_OVER", &c.Pricing.FreeShippingOver)

	e.setInt("OUTBOX_QUEUE_SIZE", &c.Outbox.QueueSize)
	e.setInt("OUTBOX_CONCURRENCY", &c.Outbox.Concurrency)
	e.setDuration("OUTBOX_HANDLER_TIMEOUT", &c.Outbox.HandlerTimeout)

	return errors.Join(e.errs...)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, postgres", c.Store.Driver))
	}
	switch c.Lock.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Lock.RedisAddr == "" {
			errs = append(errs, errors.New("lock.redis_addr is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("lock.driver %q is not one of memory, redis", c.Lock.Driver))
	}
	if c.Lock.TTL <= 0 {
		errs = append(errs, errors.New("lock.ttl must be positive"))
	}
	if c.Lock.Retries < 0 {
		errs = append(errs, errors.New("lock.retries must not be negative"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Payment.Secret == "" {
		errs = append(errs, errors.New("payment.secret is required"))
	}
	if rate, err := decimal.NewFromString(c.Pricing.TaxRate); err != nil {
		errs = append(errs, fmt.Errorf("pricing.tax_rate: %w", err))
	} else if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, errors.New("pricing.tax_rate must be in [0, 1)"))
	}
	if c.Pricing.FlatShipping < 0 || c.Pricing.FreeShippingOver < 0 {
		errs = append(errs, errors.New("pricing amounts must not be negative"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %w", errors.Join(errs...))
}

// TaxRate is the parsed pricing.tax_rate. Validate has already rejected malformed values.
func (c Config) TaxRate() decimal.Decimal {
	rate, err := decimal.NewFromString(c.Pricing.TaxRate)
	if err != nil {
		return decimal.Zero
	}
	return rate
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + key)
	return v, ok && v != ""
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) setInt32(key string, dst *int32) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
			return
		}
		*dst = int32(n)
	}
}

func (e *envReader) setInt64(key string, dst *int64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
			return
		}
		*dst = d
	}
}
