package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Addr() != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.Addr())
	}
	if cfg.Cache.TTL != 30*time.Minute || cfg.Cache.UnavailableTTL != 2*time.Minute {
		t.Errorf("unexpected cache TTLs: %v / %v", cfg.Cache.TTL, cfg.Cache.UnavailableTTL)
	}
	if cfg.Provider.Timeout != 4*time.Second || cfg.Provider.Region != "US" {
		t.Errorf("unexpected provider defaults: %+v", cfg.Provider)
	}
	if cfg.Batch.Concurrency != 8 || cfg.Batch.MaxItems != 50 {
		t.Errorf("unexpected batch defaults: %+v", cfg.Batch)
	}
	if cfg.Redis.Enabled {
		t.Error("redis should be off by default")
	}
}

func TestLoadLogRotationFromEnv(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("LOG_FILE", "/var/log/availability.log")
	t.Setenv("LOG_MAX_SIZE_MB", "250")
	t.Setenv("LOG_MAX_BACKUPS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.MaxSizeMB != 250 {
		t.Errorf("max size = %d, want 250", cfg.Log.MaxSizeMB)
	}
	if cfg.Log.MaxBackups != 7 {
		t.Errorf("max backups = %d, want 7", cfg.Log.MaxBackups)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_TTL", "10m")
	t.Setenv("PROVIDER_TIMEOUT", "1500ms")
	t.Setenv("PROVIDER_REGION", "gb")
	t.Setenv("TMDB_API_KEY", "tmdb-key")
	t.Setenv("RAPIDAPI_KEY", "rapid-key")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("AFFILIATE_AMAZON_TAG", "store-20")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("expected 10m TTL, got %v", cfg.Cache.TTL)
	}
	if cfg.Provider.Timeout != 1500*time.Millisecond {
		t.Errorf("expected 1.5s provider timeout, got %v", cfg.Provider.Timeout)
	}
	if cfg.Provider.Region != "GB" {
		t.Errorf("expected region GB, got %s", cfg.Provider.Region)
	}
	if !cfg.TMDB.Enabled() || !cfg.StreamAvail.Enabled() || cfg.Watchmode.Enabled() {
		t.Errorf("unexpected upstream enablement: tmdb=%v streamavail=%v watchmode=%v",
			cfg.TMDB.Enabled(), cfg.StreamAvail.Enabled(), cfg.Watchmode.Enabled())
	}
	if !cfg.Redis.Enabled {
		t.Error("expected redis enabled")
	}
	if cfg.Affiliate.AmazonTag != "store-20" {
		t.Errorf("expected amazon tag, got %q", cfg.Affiliate.AmazonTag)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "server:\n  port: 7000\nbatch:\n  concurrency: 4\n  max_items: 20\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("BATCH_MAX_ITEMS", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("expected port from file, got %d", cfg.Server.Port)
	}
	if cfg.Batch.Concurrency != 4 {
		t.Errorf("expected concurrency from file, got %d", cfg.Batch.Concurrency)
	}
	if cfg.Batch.MaxItems != 30 {
		t.Errorf("env should win over file, got %d", cfg.Batch.MaxItems)
	}
	if cfg.Cache.MaxEntries != 1000 {
		t.Errorf("unset keys should keep defaults, got %d", cfg.Cache.MaxEntries)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	tests := []struct {
		name, key, value string
	}{
		{"bad log format", "LOG_FORMAT", "xml"},
		{"zero batch size", "BATCH_MAX_ITEMS", "0"},
		{"long region", "PROVIDER_REGION", "USA"},
		{"bad base url", "TMDB_BASE_URL", "not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected %s=%q to be rejected", tt.key, tt.value)
			}
		})
	}
}

func TestEnvTransformIgnoresUnknown(t *testing.T) {
	if got := envTransform("HOME"); got != "" {
		t.Errorf("unmapped variables should be ignored, got %q", got)
	}
	if got := envTransform("DB_POOL_SIZE"); got != "database.pool_size" {
		t.Errorf("unexpected mapping %q", got)
	}
}
