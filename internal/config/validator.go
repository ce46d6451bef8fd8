package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // config key, e.g. "polling.min_interval_ms"
	Value   any
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the accepted logging.level values.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks every section and returns all problems found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, c.validatePolling()...)
	errs = append(errs, c.validateBatch()...)
	errs = append(errs, c.validateBudget()...)
	errs = append(errs, c.validateFetch()...)
	errs = append(errs, c.validateResilience()...)
	errs = append(errs, c.validateRegistry()...)
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateLogging()...)
	return errs
}

func positive(field string, v int) []ValidationError {
	if v <= 0 {
		return []ValidationError{{Field: field, Value: v, Message: "must be positive"}}
	}
	return nil
}

func nonNegative(field string, v int) []ValidationError {
	if v < 0 {
		return []ValidationError{{Field: field, Value: v, Message: "must be non-negative"}}
	}
	return nil
}

func (c *Config) validatePolling() []ValidationError {
	p := c.Polling
	var errs []ValidationError
	errs = append(errs, positive("polling.initial_interval_ms", p.InitialIntervalMs)...)
	errs = append(errs, positive("polling.min_interval_ms", p.MinIntervalMs)...)
	errs = append(errs, positive("polling.max_interval_ms", p.MaxIntervalMs)...)
	errs = append(errs, positive("polling.target_cycle_ms", p.TargetCycleMs)...)
	errs = append(errs, positive("polling.history_size", p.HistorySize)...)

	if p.MinIntervalMs > 0 && p.MaxIntervalMs > 0 && p.MinIntervalMs > p.MaxIntervalMs {
		errs = append(errs, ValidationError{
			Field:   "polling.min_interval_ms",
			Value:   p.MinIntervalMs,
			Message: fmt.Sprintf("must not exceed polling.max_interval_ms (%d)", p.MaxIntervalMs),
		})
	}
	return errs
}

func (c *Config) validateBatch() []ValidationError {
	var errs []ValidationError
	errs = append(errs, positive("batch.max_size", c.Batch.MaxSize)...)
	errs = append(errs, positive("batch.force_interval_seconds", c.Batch.ForceIntervalSeconds)...)
	return errs
}

func (c *Config) validateBudget() []ValidationError {
	var errs []ValidationError
	errs = append(errs, nonNegative("budget.default_capacity", c.Budget.DefaultCapacity)...)

	names := make([]string, 0, len(c.Budget.Profiles))
	for name := range c.Budget.Profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		errs = append(errs, nonNegative("budget.profiles."+name, c.Budget.Profiles[name])...)
	}

	if t := c.Budget.WarningThreshold; t < 0 || t > 1 {
		errs = append(errs, ValidationError{
			Field:   "budget.warning_threshold",
			Value:   t,
			Message: "must be between 0 and 1",
		})
	}
	return errs
}

func (c *Config) validateFetch() []ValidationError {
	f := c.Fetch
	var errs []ValidationError

	u, err := url.Parse(f.BaseURL)
	switch {
	case f.BaseURL == "":
		errs = append(errs, ValidationError{Field: "fetch.base_url", Value: f.BaseURL, Message: "must not be empty"})
	case err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "":
		errs = append(errs, ValidationError{Field: "fetch.base_url", Value: f.BaseURL, Message: "must be an absolute http(s) URL"})
	}

	errs = append(errs, positive("fetch.timeout_ms", f.TimeoutMs)...)
	errs = append(errs, positive("fetch.max_concurrency", f.MaxConcurrency)...)
	if f.RatePerSecond < 0 {
		errs = append(errs, ValidationError{Field: "fetch.rate_per_second", Value: f.RatePerSecond, Message: "must be non-negative (0 disables limiting)"})
	}
	if f.RatePerSecond > 0 {
		errs = append(errs, positive("fetch.burst", f.Burst)...)
	}
	return errs
}

func (c *Config) validateResilience() []ValidationError {
	r := c.Resilience
	var errs []ValidationError
	errs = append(errs, positive("resilience.max_attempts", r.MaxAttempts)...)
	errs = append(errs, nonNegative("resilience.base_backoff_ms", r.BaseBackoffMs)...)
	errs = append(errs, nonNegative("resilience.max_backoff_ms", r.MaxBackoffMs)...)
	errs = append(errs, nonNegative("resilience.breaker_threshold", r.BreakerThreshold)...)
	errs = append(errs, nonNegative("resilience.breaker_cooldown_seconds", r.BreakerCooldownSeconds)...)
	if r.MaxBackoffMs > 0 && r.BaseBackoffMs > r.MaxBackoffMs {
		errs = append(errs, ValidationError{
			Field:   "resilience.base_backoff_ms",
			Value:   r.BaseBackoffMs,
			Message: fmt.Sprintf("must not exceed resilience.max_backoff_ms (%d)", r.MaxBackoffMs),
		})
	}
	return errs
}

func (c *Config) validateRegistry() []ValidationError {
	var errs []ValidationError
	if c.Registry.Path == "" {
		errs = append(errs, ValidationError{Field: "registry.path", Value: "", Message: "must not be empty"})
	}
	for field, patterns := range map[string][]string{
		"registry.include": c.Registry.Include,
		"registry.exclude": c.Registry.Exclude,
	} {
		for _, p := range patterns {
			if _, err := glob.Compile(p); err != nil {
				errs = append(errs, ValidationError{Field: field, Value: p, Message: "invalid glob pattern: " + err.Error()})
			}
		}
	}
	slices.SortStableFunc(errs, func(a, b ValidationError) int { return strings.Compare(a.Field, b.Field) })
	return errs
}

func (c *Config) validateServer() []ValidationError {
	if !c.Server.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return []ValidationError{{Field: "server.addr", Value: c.Server.Addr, Message: "must be host:port"}}
	}
	return nil
}

func (c *Config) validateLogging() []ValidationError {
	var errs []ValidationError
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	const maxLogSizeMB = 1000
	switch {
	case c.Logging.MaxSizeMB < 0:
		errs = append(errs, ValidationError{Field: "logging.max_size_mb", Value: c.Logging.MaxSizeMB, Message: "must be non-negative (0 disables rotation)"})
	case c.Logging.MaxSizeMB > maxLogSizeMB:
		errs = append(errs, ValidationError{Field: "logging.max_size_mb", Value: c.Logging.MaxSizeMB, Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB)})
	}
	errs = append(errs, nonNegative("logging.max_backups", c.Logging.MaxBackups)...)
	return errs
}
