// Package config loads process configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-tunable knob the dispatch core reads. All
// fields have defaults; nothing here is required.
type Config struct {
	Env  string
	Port string

	BatchSize      int
	OfferTTL       time.Duration
	MaxRounds      int
	DriverStaleTTL time.Duration
	QuickTestMode  bool

	RetryDelay  time.Duration
	LingerDelay time.Duration

	RedisURL    string
	DatabaseURL string

	DriverPruneInterval time.Duration
	DriverPruneGrace    time.Duration
}

// Load reads .env (if present, never required) then the process environment,
// mirroring the teacher's envOrDefault helper generalized into one loader.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:  envOrDefault("ENV", "dev"),
		Port: envOrDefault("PORT", "10000"),

		BatchSize:      envOrDefaultInt("BATCH_SIZE", 3),
		OfferTTL:       envOrDefaultDurationMS("OFFER_TTL_MS", 12000),
		MaxRounds:      envOrDefaultInt("MAX_ROUNDS", 3),
		DriverStaleTTL: envOrDefaultDurationMS("DRIVER_STALE_MS", 30000),
		QuickTestMode:  envOrDefaultBool("QUICK_TEST_MODE", false),

		RetryDelay:  envOrDefaultDurationMS("RETRY_DELAY_MS", 2000),
		LingerDelay: envOrDefaultDurationMS("LINGER_DELAY_MS", 3000),

		RedisURL:    os.Getenv("REDIS_URL"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		DriverPruneInterval: envOrDefaultDuration("DRIVER_PRUNE_INTERVAL", time.Minute),
		DriverPruneGrace:    envOrDefaultDuration("DRIVER_PRUNE_GRACE", 10*time.Minute),
	}
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func envOrDefaultBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}

func envOrDefaultDurationMS(key string, fallbackMS int) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return time.Duration(fallbackMS) * time.Millisecond
	}
	ms, err := strconv.Atoi(val)
	if err != nil {
		return time.Duration(fallbackMS) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}
