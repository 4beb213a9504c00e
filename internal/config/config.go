package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	CounterBackendStore = "store"
	CounterBackendRedis = "redis"
)

type Config struct {
	Port          string `envconfig:"PORT" default:"8080"`
	Env           string `envconfig:"APP_ENV" default:"dev"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat     string `envconfig:"LOG_FORMAT" default:"json"`

	DB    DBConfig
	Redis RedisConfig

	ProductCacheTTL time.Duration `envconfig:"PRODUCT_CACHE_TTL" default:"30s"`
	CounterBackend  string        `envconfig:"COUNTER_BACKEND" default:"store"`
	BarcodePrefix   string        `envconfig:"BARCODE_PREFIX" default:"IM001VP"`
	SeedDemoData    bool          `envconfig:"SEED_DEMO_DATA" default:"true"`
}

type DBConfig struct {
	URL             string        `envconfig:"DATABASE_URL"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"30"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"8"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.BarcodePrefix = strings.TrimSpace(cfg.BarcodePrefix)
	cfg.CounterBackend = strings.ToLower(strings.TrimSpace(cfg.CounterBackend))
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	if c.BarcodePrefix == "" {
		return fmt.Errorf("BARCODE_PREFIX must not be empty")
	}
	switch c.CounterBackend {
	case CounterBackendStore:
	case CounterBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("COUNTER_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown COUNTER_BACKEND %q", c.CounterBackend)
	}
	if c.ProductCacheTTL < 0 {
		return fmt.Errorf("PRODUCT_CACHE_TTL must not be negative")
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}
