package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"ENV", "PORT", "BATCH_SIZE", "OFFER_TTL_MS", "MAX_ROUNDS", "DRIVER_STALE_MS", "QUICK_TEST_MODE"} {
		os.Unsetenv(k)
	}

	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected default env dev, got %q", cfg.Env)
	}
	if cfg.Port != "10000" {
		t.Fatalf("expected default port 10000, got %q", cfg.Port)
	}
	if cfg.BatchSize != 3 {
		t.Fatalf("expected default batch size 3, got %d", cfg.BatchSize)
	}
	if cfg.OfferTTL != 12*time.Second {
		t.Fatalf("expected default offer ttl 12s, got %v", cfg.OfferTTL)
	}
	if cfg.MaxRounds != 3 {
		t.Fatalf("expected default max rounds 3, got %d", cfg.MaxRounds)
	}
	if cfg.QuickTestMode {
		t.Fatal("expected quick test mode to default to false")
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	os.Setenv("BATCH_SIZE", "5")
	os.Setenv("QUICK_TEST_MODE", "true")
	defer os.Unsetenv("BATCH_SIZE")
	defer os.Unsetenv("QUICK_TEST_MODE")

	cfg := Load()
	if cfg.BatchSize != 5 {
		t.Fatalf("expected overridden batch size 5, got %d", cfg.BatchSize)
	}
	if !cfg.QuickTestMode {
		t.Fatal("expected overridden quick test mode to be true")
	}
}

func TestLoadFallsBackOnInvalidInt(t *testing.T) {
	os.Setenv("MAX_ROUNDS", "not-a-number")
	defer os.Unsetenv("MAX_ROUNDS")

	cfg := Load()
	if cfg.MaxRounds != 3 {
		t.Fatalf("expected fallback to default 3 on invalid int, got %d", cfg.MaxRounds)
	}
}
