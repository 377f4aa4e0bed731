// Package calndr holds the process configuration for the calendar cache
// layer. All values are resolved from the environment exactly once at
// startup and are immutable afterwards; components receive the resolved
// structs by reference instead of reading the environment themselves.
package calndr

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/calndr/calndr-go/cache"
	"github.com/calndr/calndr-go/ttlpolicy"
)

// Config is the full configuration surface.
type Config struct {
	// DatabaseDSN is the MySQL connection string.
	DatabaseDSN string
	// DatabaseTimeout bounds a single query.
	DatabaseTimeout time.Duration

	// Redis is the cache backend connection surface. Its OpTimeout must
	// stay below DatabaseTimeout: the cache is an optimization, not a
	// dependency.
	Redis cache.RedisConfig

	// TTL carries the per-resource cache lifetimes.
	TTL ttlpolicy.Config

	// KeyPrefix namespaces every cache key this process writes.
	KeyPrefix string

	// ListenAddr is where the operator endpoints are served.
	ListenAddr string
}

// Load resolves the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseDSN:     getEnv("DATABASE_DSN", ""),
		DatabaseTimeout: getEnvSeconds("DATABASE_TIMEOUT", 10*time.Second),
		Redis: cache.RedisConfig{
			Addr:      getEnv("REDIS_HOST", "localhost") + ":" + getEnv("REDIS_PORT", "6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			PoolSize:  getEnvInt("REDIS_MAX_CONNECTIONS", 20),
			OpTimeout: getEnvSeconds("REDIS_SOCKET_TIMEOUT", cache.DefaultOpTimeout),
		},
		TTL: ttlpolicy.Config{
			Events:          getEnvSeconds("CACHE_TTL_EVENTS", ttlpolicy.DefaultEvents),
			WeatherForecast: getEnvSeconds("CACHE_TTL_WEATHER_FORECAST", ttlpolicy.DefaultWeatherForecast),
			WeatherHistoric: getEnvSeconds("CACHE_TTL_WEATHER_HISTORIC", ttlpolicy.DefaultWeatherHistoric),
			UserProfile:     getEnvSeconds("CACHE_TTL_USER_PROFILE", ttlpolicy.DefaultUserProfile),
			FamilyData:      getEnvSeconds("CACHE_TTL_FAMILY_DATA", ttlpolicy.DefaultFamilyData),
			CustodySettled:  getEnvSeconds("CACHE_TTL_CUSTODY", ttlpolicy.DefaultCustodySettled),
			CustodyLive:     getEnvSeconds("CACHE_TTL_CUSTODY_LIVE", ttlpolicy.DefaultCustodyLive),
		},
		KeyPrefix:  getEnv("CACHE_KEY_PREFIX", ""),
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if c.Redis.OpTimeout >= c.DatabaseTimeout {
		return fmt.Errorf("cache timeout %v must be shorter than database timeout %v",
			c.Redis.OpTimeout, c.DatabaseTimeout)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvSeconds reads an integer number of seconds.
func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}
