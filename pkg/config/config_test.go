package config

import (
	"os"
	"testing"
	"time"
)

// unsetenv removes keys for the test; t.Setenv restores them afterwards.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetenv(t, "PORT", "DATABASE_URL", "BASE_URL", "CODE_LENGTH", "BUCKET_WIDTH", "CACHE_TTL")

	cfg := Load()
	if cfg.Port != "8080" || cfg.DatabaseURL != "file:db.sqlite" || cfg.CodeLength != 7 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.BucketWidth != 24*time.Hour || cfg.CacheTTL != 10*time.Minute {
		t.Errorf("unexpected durations %s %s", cfg.BucketWidth, cfg.CacheTTL)
	}
	if got := cfg.ShortURL("abc"); got != "http://localhost:8080/short/abc" {
		t.Errorf("ShortURL = %q", got)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/links")
	t.Setenv("BASE_URL", "https://sho.rt/")
	t.Setenv("CODE_LENGTH", "9")
	t.Setenv("BUCKET_WIDTH", "1h")
	t.Setenv("CACHE_TTL", "not-a-duration")

	cfg := Load()
	if cfg.Port != "9090" || cfg.DatabaseURL != "postgres://u:p@db/links" || cfg.CodeLength != 9 {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.BucketWidth != time.Hour {
		t.Errorf("BucketWidth = %s", cfg.BucketWidth)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("bad CACHE_TTL should fall back, got %s", cfg.CacheTTL)
	}
	if got := cfg.ShortURL("abc"); got != "https://sho.rt/short/abc" {
		t.Errorf("ShortURL = %q", got)
	}
}
