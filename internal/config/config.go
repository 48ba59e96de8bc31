// Package config loads service configuration from the environment, in the
// getEnv/godotenv style of the teacher's config.Load.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Port string

	Simulation SimulationConfig
	Tick       TickConfig
	Auth       AuthConfig
	Catalog    CatalogConfig
	Redis      RedisConfig
	Postgres   PostgresConfig
	Internal   InternalConfig
}

// SimulationConfig controls the Price Simulator (C2).
type SimulationConfig struct {
	Volatility float64
}

// TickConfig controls the Tick Engine's (C4) two periodic tasks.
type TickConfig struct {
	BroadcastPeriod time.Duration
	SubscriptionTTL time.Duration
	SweepPeriod     time.Duration
}

// AuthConfig configures the JWT Authenticator.
type AuthConfig struct {
	JWTSecret string
}

// CatalogConfig configures where the Instrument Catalog (C1) seeds from.
type CatalogConfig struct {
	SeedPath    string
	PostgresDSN string
}

// RedisConfig configures the optional subscription mirror.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PostgresConfig is not populated by Load and not read by UsesPostgresSeed;
// the Postgres seed path is selected by a non-empty Catalog.PostgresDSN.
type PostgresConfig struct {
	Enabled bool
}

// InternalConfig configures the internal-route shared-secret guard.
type InternalConfig struct {
	SharedSecret string
}

// Load loads configuration from environment variables, applying a .env file
// first if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),

		Simulation: SimulationConfig{
			Volatility: getEnvAsFloat("MARKET_SIMULATION_VOLATILITY", 0.02),
		},

		Tick: TickConfig{
			BroadcastPeriod: time.Duration(getEnvAsInt("MARKET_TICK_PERIOD_MS", 5000)) * time.Millisecond,
			SubscriptionTTL: time.Duration(getEnvAsInt("MARKET_SUBSCRIPTION_TIMEOUT_MIN", 5)) * time.Minute,
			SweepPeriod:     time.Duration(getEnvAsInt("MARKET_SWEEP_PERIOD_SEC", 60)) * time.Second,
		},

		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},

		Catalog: CatalogConfig{
			SeedPath:    getEnv("MARKET_CATALOG_SEED_PATH", "./data/instruments.json"),
			PostgresDSN: getEnv("MARKET_CATALOG_POSTGRES_DSN", ""),
		},

		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		Internal: InternalConfig{
			SharedSecret: getEnv("INTERNAL_SHARED_SECRET", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Simulation.Volatility < 0 {
		return fmt.Errorf("MARKET_SIMULATION_VOLATILITY must not be negative")
	}
	return nil
}

// UsesPostgresSeed reports whether the catalog should be seeded from
// Postgres instead of the JSON seed file.
func (c *Config) UsesPostgresSeed() bool {
	return c.Catalog.PostgresDSN != ""
}

// UsesRedisMirror reports whether the subscription index should attach a
// Redis mirror.
func (c *Config) UsesRedisMirror() bool {
	return c.Redis.Addr != ""
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultVal
}
