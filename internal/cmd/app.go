package cmd

import (
	"fmt"

	"github.com/pawcontrol/pawsync/internal/batch"
	"github.com/pawcontrol/pawsync/internal/budget"
	"github.com/pawcontrol/pawsync/internal/config"
	"github.com/pawcontrol/pawsync/internal/coordinator"
	"github.com/pawcontrol/pawsync/internal/cycle"
	"github.com/pawcontrol/pawsync/internal/event"
	"github.com/pawcontrol/pawsync/internal/fetch"
	"github.com/pawcontrol/pawsync/internal/logging"
	"github.com/pawcontrol/pawsync/internal/metrics"
	"github.com/pawcontrol/pawsync/internal/polling"
	"github.com/pawcontrol/pawsync/internal/registry"
	"github.com/pawcontrol/pawsync/internal/resilience"
)

// app is the fully wired coordinator stack.
type app struct {
	cfg         *config.Config
	logger      *logging.Logger
	registry    *registry.Registry
	executor    *resilience.Executor
	collector   *metrics.Collector
	bus         *event.Bus
	coordinator *coordinator.Coordinator
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	return logging.NewLoggerWithRotation(cfg.Logging.Dir, logging.ParseLevel(cfg.Logging.Level), logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
}

// newApp loads the registry and wires every component from cfg. fetcher
// overrides the HTTP client when non-nil.
func newApp(cfg *config.Config, logger *logging.Logger, fetcher fetch.Fetcher) (*app, error) {
	logger = logging.OrNop(logger)

	selector, err := registry.NewSelector(cfg.Registry.Include, cfg.Registry.Exclude)
	if err != nil {
		return nil, err
	}
	reg := registry.New(cfg.Registry.Path,
		registry.WithSelector(selector),
		registry.WithCapacity(cfg.Budget.CapacityFor),
		registry.WithLogger(logger),
	)
	if err := reg.Load(); err != nil {
		return nil, err
	}

	if fetcher == nil {
		client, err := fetch.NewHTTPClient(cfg.Fetch.BaseURL, fetch.WithTimeout(cfg.Fetch.Timeout()))
		if err != nil {
			return nil, err
		}
		fetcher = client
	}

	executor := resilience.New(
		resilience.WithMaxAttempts(cfg.Resilience.MaxAttempts),
		resilience.WithBackoff(cfg.Resilience.BaseBackoff(), cfg.Resilience.MaxBackoff()),
		resilience.WithBreaker(cfg.Resilience.BreakerThreshold, cfg.Resilience.BreakerCooldown()),
		resilience.WithRateLimit(cfg.Fetch.RatePerSecond, cfg.Fetch.Burst),
		resilience.WithLogger(logger),
	)

	controller := polling.New(cfg.Polling.InitialInterval(),
		polling.WithMinInterval(cfg.Polling.MinInterval()),
		polling.WithMaxInterval(cfg.Polling.MaxInterval()),
		polling.WithTargetCycle(cfg.Polling.TargetCycle()),
		polling.WithHistorySize(cfg.Polling.HistorySize),
	)
	collector := metrics.NewCollector(controller)

	orch := cycle.New(reg, registry.NewPlanner(fetcher), executor, collector,
		cycle.WithMaxConcurrency(cfg.Fetch.MaxConcurrency),
		cycle.WithLogger(logger),
	)

	bus := event.NewBus(logger)
	ledger := budget.NewLedger(
		budget.Config{WarningThreshold: cfg.Budget.WarningThreshold},
		budget.Callbacks{},
		logger,
	)
	batches := batch.New(cfg.Batch.MaxSize, batch.WithForceInterval(cfg.Batch.ForceInterval()))

	coord := coordinator.New(reg, orch, collector, batches,
		coordinator.WithLogger(logger),
		coordinator.WithBus(bus),
		coordinator.WithLedger(ledger),
		coordinator.WithFetchHealth(executor),
		coordinator.WithOptimize(cfg.Batch.Optimize),
	)

	logger.Info("coordinator ready",
		"dogs", reg.Len(),
		"registry", reg.Path(),
		"base_url", cfg.Fetch.BaseURL,
	)
	return &app{
		cfg:         cfg,
		logger:      logger,
		registry:    reg,
		executor:    executor,
		collector:   collector,
		bus:         bus,
		coordinator: coord,
	}, nil
}

// loadConfig returns the validated viper configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
