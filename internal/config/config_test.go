package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Layering(t *testing.T) {
	yamlPath := writeFile(t, "storefront.yaml", `
service:
  name: shop
http:
  addr: ":9000"
  read_timeout: 3s
lock:
  driver: redis
  redis_addr: "redis:6379"
  ttl: 2s
auth:
  jwt_secret: from-yaml
payment:
  secret: pay
pricing:
  tax_rate: "0.05"
  flat_shipping: 500
`)
	envPath := writeFile(t, ".env", "STOREFRONT_JWT_SECRET=from-dotenv\nSTOREFRONT_FLAT_SHIPPING=700\n")
	t.Setenv("STOREFRONT_FLAT_SHIPPING", "900")
	t.Setenv("STOREFRONT_LOCK_RETRIES", "5")

	t.Cleanup(func() { os.Unsetenv("STOREFRONT_JWT_SECRET") })

	cfg, err := Load(yamlPath, envPath)
	require.NoError(t, err)

	assert.Equal(t, "shop", cfg.Service.Name)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, DriverRedis, cfg.Lock.Driver)
	assert.Equal(t, 2*time.Second, cfg.Lock.TTL)
	assert.Equal(t, 5, cfg.Lock.Retries)
	assert.Equal(t, "from-dotenv", cfg.Auth.JWTSecret)
	// Process environment wins over .env.
	assert.EqualValues(t, 900, cfg.Pricing.FlatShipping)
	assert.Equal(t, "0.05", cfg.TaxRate().String())
}

func TestLoad_MissingDotenvIsIgnored(t *testing.T) {
	t.Setenv("STOREFRONT_JWT_SECRET", "j")
	t.Setenv("STOREFRONT_PAYMENT_SECRET", "p")
	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
}

func TestLoad_MissingYAMLFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("STOREFRONT_JWT_SECRET", "j")
	t.Setenv("STOREFRONT_PAYMENT_SECRET", "p")
	t.Setenv("STOREFRONT_LOCK_TTL", "soon")
	_, err := Load("", "")
	assert.ErrorContains(t, err, "STOREFRONT_LOCK_TTL")
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Auth.JWTSecret = "j"
	valid.Payment.Secret = "p"
	require.NoError(t, valid.Validate())

	tests := map[string]func(c *Config){
		"unknown store driver": func(c *Config) { c.Store.Driver = "mysql" },
		"postgres without dsn": func(c *Config) { c.Store.Driver = DriverPostgres },
		"unknown lock driver":  func(c *Config) { c.Lock.Driver = "etcd" },
		"zero lock ttl":        func(c *Config) { c.Lock.TTL = 0 },
		"missing jwt secret":   func(c *Config) { c.Auth.JWTSecret = "" },
		"missing pay secret":   func(c *Config) { c.Payment.Secret = "" },
		"bad tax rate":         func(c *Config) { c.Pricing.TaxRate = "five" },
		"tax rate too high":    func(c *Config) { c.Pricing.TaxRate = "1.5" },
		"negative shipping":    func(c *Config) { c.Pricing.FlatShipping = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
