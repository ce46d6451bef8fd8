package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pawcontrol/pawsync/internal/event"
	"github.com/pawcontrol/pawsync/internal/server"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the polling coordinator",
	Long: `Run the polling coordinator until interrupted.

Every tracked dog is polled on an adaptive interval. When enabled, the
diagnostics server exposes /healthz, /diagnostics, /changes, /metrics and
accepts priority refreshes at POST /dogs/{id}/refresh.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	a, err := newApp(cfg, logger, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.bus.Subscribe(event.TypeEntitiesChanged, func(e event.Event) {
		changed := e.(event.EntitiesChangedEvent)
		a.logger.Info("entities changed", "cycle_id", changed.CycleID, "entities", changed.Entities)
	})
	a.bus.Subscribe(event.TypeRegistryReloaded, func(e event.Event) {
		reloaded := e.(event.RegistryReloadedEvent)
		if reloaded.Err != nil {
			a.logger.Warn("registry reload failed, keeping previous dogs", "error", reloaded.Err.Error())
		}
	})

	if cfg.Registry.Watch {
		err := a.registry.Watch(ctx, func(ids []string, err error) {
			a.bus.Publish(event.NewRegistryReloadedEvent(ids, err))
		})
		if err != nil {
			return err
		}
	}

	if cfg.Server.Enabled {
		srv := server.New(cfg.Server.Addr, a.coordinator,
			server.WithLogger(logger),
			server.WithMetricsHandler(a.collector.Handler()),
		)
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return a.coordinator.Run(ctx)
}
