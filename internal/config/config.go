package config

import (
	"fmt"
	"strings"

	"github.com/abgdnv/shopcart/pkg/config"
	"github.com/abgdnv/shopcart/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTPServer     config.HTTPConfig           `koanf:"server"`
	Log            config.LogConfig            `koanf:"log"`
	PProf          config.PProfConfig          `koanf:"pprof"`
	Storage        StorageConfig               `koanf:"storage"`
	Nats           config.NATSConfig           `koanf:"nats"`
	Telemetry      config.TelemetryConfig      `koanf:"telemetry"`
	Checkout       CheckoutConfig              `koanf:"checkout"`
	Shutdown       config.ShutdownConfig       `koanf:"shutdown"`
	CircuitBreaker config.CircuitBreakerConfig `koanf:"circuitbreaker"`
}

type StorageConfig struct {
	Driver string `koanf:"driver"`
	File   struct {
		Dir string `koanf:"dir"`
	} `koanf:"file"`
	Redis    config.RedisConfig    `koanf:"redis"`
	Database config.DatabaseConfig `koanf:"database"`
}

type CheckoutConfig struct {
	RejectEmpty bool `koanf:"rejectempty"`
}

// Defaults are the lowest priority configuration values.
func Defaults() map[string]any {
	return map[string]any{
		"server.port":               8080,
		"server.maxHeaderBytes":     1 << 20,
		"server.timeout.read":       "5s",
		"server.timeout.write":      "10s",
		"server.timeout.idle":       "60s",
		"server.timeout.readHeader": "2s",
		"log.level":                 "info",
		"storage.driver":            DriverFile,
		"storage.file.dir":          "data",
		"storage.redis.keyprefix":   "shopcart",
		"storage.redis.timeout":     "3s",
		"storage.database.timeout":  "5s",
		"nats.stream":               "SHOPCART",
		"nats.timeout":              "5s",
		"telemetry.metrics.path":    "/metrics",
		"shutdown.timeout":          "15s",

		"circuitbreaker.consecutivefailures": 5,
		"circuitbreaker.errorratepercent":    50,
		"circuitbreaker.opentimeout":         "30s",
	}
}

// String returns a string representation of the StorageConfig.
func (c *StorageConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Storage ---\n")
	b.WriteString(fmt.Sprintf("  driver: %s\n", c.Driver))
	switch c.Driver {
	case DriverFile:
		b.WriteString(fmt.Sprintf("  file.dir: %s\n", c.File.Dir))
	case DriverRedis:
		b.WriteString(c.Redis.String())
	case DriverPostgres:
		b.WriteString(c.Database.String())
	}
	return b.String()
}

func (c *StorageConfig) Validate() error {
	switch c.Driver {
	case DriverMemory:
		return nil
	case DriverFile:
		if c.File.Dir == "" {
			return fmt.Errorf("storage.file.dir is not configured")
		}
		return nil
	case DriverRedis:
		return c.Redis.Validate()
	case DriverPostgres:
		return c.Database.Validate()
	default:
		return fmt.Errorf("unknown storage driver %q, expected one of memory, file, redis, postgres", c.Driver)
	}
}

// Remote reports whether the configured driver talks to a network backend.
func (c *StorageConfig) Remote() bool {
	return c.Driver == DriverRedis || c.Driver == DriverPostgres
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.Storage.String())
	b.WriteString(c.Nats.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString("\n--- Checkout ---\n")
	b.WriteString(fmt.Sprintf("  rejectempty: %t\n", c.Checkout.RejectEmpty))
	b.WriteString(c.Shutdown.String())
	if c.Storage.Remote() {
		b.WriteString(c.CircuitBreaker.String())
	}
	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if err := c.HTTPServer.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.PProf.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Nats.Validate(); err != nil {
		return err
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	if err := c.Shutdown.Validate(); err != nil {
		return err
	}
	if c.Storage.Remote() {
		if err := c.CircuitBreaker.Validate(); err != nil {
			return err
		}
	}
	return nil
}
