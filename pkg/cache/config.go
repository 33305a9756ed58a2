package cache

import (
	"os"
	"strconv"
	"time"
)

// Config controls the query snapshot cache.
type Config struct {
	Enabled bool
	MaxSize int
	TTL     time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		MaxSize: 256,
		TTL:     5 * time.Minute,
	}
}

// ConfigFromEnv loads cache settings from environment variables:
// REGISTRY_CACHE_ENABLED, REGISTRY_CACHE_MAX_SIZE, REGISTRY_CACHE_TTL_SECONDS.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("REGISTRY_CACHE_ENABLED"); v != "" {
		cfg.Enabled, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("REGISTRY_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSize = n
		}
	}
	if v := os.Getenv("REGISTRY_CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TTL = time.Duration(n) * time.Second
		}
	}
	return cfg
}
