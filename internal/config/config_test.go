package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if got := cfg.Polling.InitialInterval(); got != time.Second {
		t.Errorf("Polling.InitialInterval() = %v, want 1s", got)
	}
	if got := cfg.Polling.MinInterval(); got != 200*time.Millisecond {
		t.Errorf("Polling.MinInterval() = %v, want 200ms", got)
	}
	if got := cfg.Polling.MaxInterval(); got != 5*time.Second {
		t.Errorf("Polling.MaxInterval() = %v, want 5s", got)
	}
	if got := cfg.Polling.TargetCycle(); got != 200*time.Millisecond {
		t.Errorf("Polling.TargetCycle() = %v, want 200ms", got)
	}
	if cfg.Polling.HistorySize != 32 {
		t.Errorf("Polling.HistorySize = %d, want 32", cfg.Polling.HistorySize)
	}
	if got := cfg.Batch.ForceInterval(); got != 30*time.Second {
		t.Errorf("Batch.ForceInterval() = %v, want 30s", got)
	}
	if got := cfg.Resilience.BreakerCooldown(); got != 30*time.Second {
		t.Errorf("Resilience.BreakerCooldown() = %v, want 30s", got)
	}

	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Default().Validate() = %v, want no errors", errs)
	}
}

func TestCapacityFor(t *testing.T) {
	b := Default().Budget
	if got := b.CapacityFor("advanced"); got != 18 {
		t.Errorf("CapacityFor(advanced) = %d, want 18", got)
	}
	if got := b.CapacityFor("unknown"); got != b.DefaultCapacity {
		t.Errorf("CapacityFor(unknown) = %d, want default %d", got, b.DefaultCapacity)
	}
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := ConfigDir(); got != filepath.Join("/tmp/xdg", "pawsync") {
		t.Errorf("ConfigDir() = %q", got)
	}
	if got := ConfigFile(); got != filepath.Join("/tmp/xdg", "pawsync", "config.yaml") {
		t.Errorf("ConfigFile() = %q", got)
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
polling:
  min_interval_ms: 500
batch:
  max_size: 4
registry:
  path: /srv/dogs.yaml
  include: ["rex*"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	SetDefaults()
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("PAWSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	t.Setenv("PAWSYNC_FETCH_BASE_URL", "https://dogs.example.com")
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Polling.MinIntervalMs != 500 {
		t.Errorf("MinIntervalMs = %d, want 500", cfg.Polling.MinIntervalMs)
	}
	if cfg.Polling.MaxIntervalMs != 5000 {
		t.Errorf("MaxIntervalMs = %d, want default 5000", cfg.Polling.MaxIntervalMs)
	}
	if cfg.Batch.MaxSize != 4 {
		t.Errorf("Batch.MaxSize = %d, want 4", cfg.Batch.MaxSize)
	}
	if cfg.Registry.Path != "/srv/dogs.yaml" || len(cfg.Registry.Include) != 1 {
		t.Errorf("Registry = %+v", cfg.Registry)
	}
	if cfg.Fetch.BaseURL != "https://dogs.example.com" {
		t.Errorf("Fetch.BaseURL = %q, want env override", cfg.Fetch.BaseURL)
	}
}

func TestGetFallsBackToDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	SetDefaults()
	viper.Set("batch.max_size", -1)

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail validation")
	}
	if got := Get().Batch.MaxSize; got != Default().Batch.MaxSize {
		t.Errorf("Get().Batch.MaxSize = %d, want default", got)
	}
}
