// Package config handles environment configuration loading.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values for the application.
type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"env"`
	LogLevel    string `yaml:"log_level"`

	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// DatabaseConfig selects and tunes the store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	URL      string `yaml:"url"`
	Path     string `yaml:"path"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// DSN is the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	return d.URL
}

// CacheConfig selects the cache backend and its expiry windows.
type CacheConfig struct {
	Backend         string        `yaml:"backend"`
	IdleTTL         time.Duration `yaml:"idle_ttl"`
	MaxAge          time.Duration `yaml:"max_age"`
	WritePolicy     string        `yaml:"write_policy"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	Redis           RedisConfig   `yaml:"redis"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// LedgerConfig holds the balance rules.
type LedgerConfig struct {
	AllowNegative bool `yaml:"allow_negative"`
}

// TracingConfig controls the OTLP exporter.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:        "8080",
		Environment: "dev",
		LogLevel:    "info",
		Database: DatabaseConfig{
			Driver:   "sqlite",
			Path:     "economy.db",
			MaxConns: 30,
			MinConns: 5,
		},
		Cache: CacheConfig{
			Backend:         "memory",
			IdleTTL:         3 * time.Minute,
			MaxAge:          time.Minute,
			WritePolicy:     "refresh-if-hot",
			CleanupInterval: 30 * time.Second,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "economy",
			},
		},
		Tracing: TracingConfig{
			Endpoint: "localhost:4317",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named
// by CONFIG_FILE, a .env file and the environment, later sources winning.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Environment = getEnv("ENV", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Database.Driver = strings.ToLower(getEnv("DB_DRIVER", c.Database.Driver))
	c.Database.URL = getEnv("DB_URL", c.Database.URL)
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)
	c.Database.MaxConns = int32(getEnvAsInt("DB_MAX_CONNS", int(c.Database.MaxConns)))
	c.Database.MinConns = int32(getEnvAsInt("DB_MIN_CONNS", int(c.Database.MinConns)))

	c.Cache.Backend = strings.ToLower(getEnv("CACHE_BACKEND", c.Cache.Backend))
	c.Cache.IdleTTL = getEnvAsDuration("CACHE_IDLE_TTL", c.Cache.IdleTTL)
	c.Cache.MaxAge = getEnvAsDuration("CACHE_MAX_AGE", c.Cache.MaxAge)
	c.Cache.WritePolicy = getEnv("CACHE_WRITE_POLICY", c.Cache.WritePolicy)
	c.Cache.CleanupInterval = getEnvAsDuration("CACHE_CLEANUP_INTERVAL", c.Cache.CleanupInterval)
	c.Cache.Redis.Addr = getEnv("REDIS_ADDR", c.Cache.Redis.Addr)
	c.Cache.Redis.Password = getEnv("REDIS_PASSWORD", c.Cache.Redis.Password)
	c.Cache.Redis.DB = getEnvAsInt("REDIS_DB", c.Cache.Redis.DB)
	c.Cache.Redis.Prefix = getEnv("REDIS_PREFIX", c.Cache.Redis.Prefix)

	c.Ledger.AllowNegative = getEnvAsBool("LEDGER_ALLOW_NEGATIVE", c.Ledger.AllowNegative)

	c.Tracing.Enabled = getEnvAsBool("TRACING_ENABLED", c.Tracing.Enabled)
	c.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.Endpoint)
}

// Validate rejects settings the process cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DB_URL is required for the postgres driver")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.Cache.Backend)
	}

	switch c.Cache.WritePolicy {
	case "refresh-if-hot", "invalidate":
	default:
		return fmt.Errorf("unsupported CACHE_WRITE_POLICY %q", c.Cache.WritePolicy)
	}

	if c.Cache.IdleTTL <= 0 || c.Cache.MaxAge <= 0 {
		return fmt.Errorf("cache expiry windows must be positive")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT %q: %w", c.Port, err)
	}
	return nil
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

// GetAddr returns the full address string for the server.
func (c *Config) GetAddr() string {
	return ":" + c.Port
}
