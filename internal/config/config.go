package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete pawsync configuration.
type Config struct {
	Polling    PollingConfig    `mapstructure:"polling" yaml:"polling"`
	Batch      BatchConfig      `mapstructure:"batch" yaml:"batch"`
	Budget     BudgetConfig     `mapstructure:"budget" yaml:"budget"`
	Fetch      FetchConfig      `mapstructure:"fetch" yaml:"fetch"`
	Resilience ResilienceConfig `mapstructure:"resilience" yaml:"resilience"`
	Registry   RegistryConfig   `mapstructure:"registry" yaml:"registry"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// PollingConfig controls the adaptive polling controller.
type PollingConfig struct {
	InitialIntervalMs int `mapstructure:"initial_interval_ms" yaml:"initial_interval_ms"`
	MinIntervalMs     int `mapstructure:"min_interval_ms" yaml:"min_interval_ms"`
	MaxIntervalMs     int `mapstructure:"max_interval_ms" yaml:"max_interval_ms"`
	// TargetCycleMs is the cycle duration the controller aims for.
	TargetCycleMs int `mapstructure:"target_cycle_ms" yaml:"target_cycle_ms"`
	// HistorySize is how many cycle durations are averaged.
	HistorySize int `mapstructure:"history_size" yaml:"history_size"`
}

// BatchConfig controls the priority refresh queue.
type BatchConfig struct {
	MaxSize              int `mapstructure:"max_size" yaml:"max_size"`
	ForceIntervalSeconds int `mapstructure:"force_interval_seconds" yaml:"force_interval_seconds"`
	// Optimize lets the coordinator resize batches to the backlog after
	// every cycle.
	Optimize bool `mapstructure:"optimize" yaml:"optimize"`
}

// BudgetConfig controls entity budget accounting.
type BudgetConfig struct {
	// DefaultCapacity applies to dogs whose profile has no entry in Profiles.
	DefaultCapacity int `mapstructure:"default_capacity" yaml:"default_capacity"`
	// Profiles maps a profile name to its entity capacity.
	Profiles map[string]int `mapstructure:"profiles" yaml:"profiles"`
	// WarningThreshold is the saturation in (0, 1] that triggers a warning.
	WarningThreshold float64 `mapstructure:"warning_threshold" yaml:"warning_threshold"`
}

// FetchConfig controls the upstream HTTP fetcher.
type FetchConfig struct {
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url"`
	TimeoutMs      int     `mapstructure:"timeout_ms" yaml:"timeout_ms"`
	MaxConcurrency int     `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	RatePerSecond  float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst          int     `mapstructure:"burst" yaml:"burst"`
}

// ResilienceConfig controls retries and circuit breaking.
type ResilienceConfig struct {
	MaxAttempts            int `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseBackoffMs          int `mapstructure:"base_backoff_ms" yaml:"base_backoff_ms"`
	MaxBackoffMs           int `mapstructure:"max_backoff_ms" yaml:"max_backoff_ms"`
	BreakerThreshold       int `mapstructure:"breaker_threshold" yaml:"breaker_threshold"`
	BreakerCooldownSeconds int `mapstructure:"breaker_cooldown_seconds" yaml:"breaker_cooldown_seconds"`
}

// RegistryConfig locates the dog registry and selects which dogs to poll.
type RegistryConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
	// Watch reloads the registry when the file changes.
	Watch bool `mapstructure:"watch" yaml:"watch"`
	// Include and Exclude are glob patterns over dog ids. An empty Include
	// selects every dog.
	Include []string `mapstructure:"include" yaml:"include"`
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
}

// ServerConfig controls the HTTP diagnostics server.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Level   string `mapstructure:"level" yaml:"level"`
	// Dir is where pawsync.log is written. Empty logs to stderr.
	Dir        string `mapstructure:"dir" yaml:"dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Polling: PollingConfig{
			InitialIntervalMs: 1000,
			MinIntervalMs:     200,
			MaxIntervalMs:     5000,
			TargetCycleMs:     200,
			HistorySize:       32,
		},
		Batch: BatchConfig{
			MaxSize:              15,
			ForceIntervalSeconds: 30,
			Optimize:             true,
		},
		Budget: BudgetConfig{
			DefaultCapacity: 12,
			Profiles: map[string]int{
				"basic":        8,
				"standard":     12,
				"advanced":     18,
				"gps_focus":    10,
				"health_focus": 10,
			},
			WarningThreshold: 0.9,
		},
		Fetch: FetchConfig{
			BaseURL:        "http://127.0.0.1:8080",
			TimeoutMs:      5000,
			MaxConcurrency: 8,
			RatePerSecond:  20,
			Burst:          10,
		},
		Resilience: ResilienceConfig{
			MaxAttempts:            3,
			BaseBackoffMs:          100,
			MaxBackoffMs:           2000,
			BreakerThreshold:       5,
			BreakerCooldownSeconds: 30,
		},
		Registry: RegistryConfig{
			Path:    filepath.Join(ConfigDir(), "dogs.yaml"),
			Watch:   true,
			Include: []string{},
			Exclude: []string{},
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9464",
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// InitialInterval returns the polling start interval.
func (c *PollingConfig) InitialInterval() time.Duration {
	return time.Duration(c.InitialIntervalMs) * time.Millisecond
}

// MinInterval returns the lower polling bound.
func (c *PollingConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMs) * time.Millisecond
}

// MaxInterval returns the upper polling bound.
func (c *PollingConfig) MaxInterval() time.Duration {
	return time.Duration(c.MaxIntervalMs) * time.Millisecond
}

// TargetCycle returns the target cycle duration.
func (c *PollingConfig) TargetCycle() time.Duration {
	return time.Duration(c.TargetCycleMs) * time.Millisecond
}

// ForceInterval returns how long a partial batch may wait.
func (c *BatchConfig) ForceInterval() time.Duration {
	return time.Duration(c.ForceIntervalSeconds) * time.Second
}

// Timeout returns the per-request fetch timeout.
func (c *FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// BaseBackoff returns the first retry delay.
func (c *ResilienceConfig) BaseBackoff() time.Duration {
	return time.Duration(c.BaseBackoffMs) * time.Millisecond
}

// MaxBackoff returns the retry delay ceiling.
func (c *ResilienceConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMs) * time.Millisecond
}

// BreakerCooldown returns how long an open breaker rejects calls.
func (c *ResilienceConfig) BreakerCooldown() time.Duration {
	return time.Duration(c.BreakerCooldownSeconds) * time.Second
}

// CapacityFor returns the entity capacity of a profile.
func (c *BudgetConfig) CapacityFor(profile string) int {
	if n, ok := c.Profiles[profile]; ok {
		return n
	}
	return c.DefaultCapacity
}

// SetDefaults registers every default with viper.
func SetDefaults() {
	d := Default()

	viper.SetDefault("polling.initial_interval_ms", d.Polling.InitialIntervalMs)
	viper.SetDefault("polling.min_interval_ms", d.Polling.MinIntervalMs)
	viper.SetDefault("polling.max_interval_ms", d.Polling.MaxIntervalMs)
	viper.SetDefault("polling.target_cycle_ms", d.Polling.TargetCycleMs)
	viper.SetDefault("polling.history_size", d.Polling.HistorySize)

	viper.SetDefault("batch.max_size", d.Batch.MaxSize)
	viper.SetDefault("batch.force_interval_seconds", d.Batch.ForceIntervalSeconds)
	viper.SetDefault("batch.optimize", d.Batch.Optimize)

	viper.SetDefault("budget.default_capacity", d.Budget.DefaultCapacity)
	viper.SetDefault("budget.profiles", d.Budget.Profiles)
	viper.SetDefault("budget.warning_threshold", d.Budget.WarningThreshold)

	viper.SetDefault("fetch.base_url", d.Fetch.BaseURL)
	viper.SetDefault("fetch.timeout_ms", d.Fetch.TimeoutMs)
	viper.SetDefault("fetch.max_concurrency", d.Fetch.MaxConcurrency)
	viper.SetDefault("fetch.rate_per_second", d.Fetch.RatePerSecond)
	viper.SetDefault("fetch.burst", d.Fetch.Burst)

	viper.SetDefault("resilience.max_attempts", d.Resilience.MaxAttempts)
	viper.SetDefault("resilience.base_backoff_ms", d.Resilience.BaseBackoffMs)
	viper.SetDefault("resilience.max_backoff_ms", d.Resilience.MaxBackoffMs)
	viper.SetDefault("resilience.breaker_threshold", d.Resilience.BreakerThreshold)
	viper.SetDefault("resilience.breaker_cooldown_seconds", d.Resilience.BreakerCooldownSeconds)

	viper.SetDefault("registry.path", d.Registry.Path)
	viper.SetDefault("registry.watch", d.Registry.Watch)
	viper.SetDefault("registry.include", d.Registry.Include)
	viper.SetDefault("registry.exclude", d.Registry.Exclude)

	viper.SetDefault("server.enabled", d.Server.Enabled)
	viper.SetDefault("server.addr", d.Server.Addr)

	viper.SetDefault("logging.enabled", d.Logging.Enabled)
	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.dir", d.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", d.Logging.MaxBackups)
}

// Load unmarshals the current viper state into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when the
// viper state cannot be loaded.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the pawsync config directory, honoring XDG_CONFIG_HOME.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pawsync")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pawsync"
	}
	return filepath.Join(home, ".config", "pawsync")
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
