package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pawcontrol/pawsync/internal/config"
	"github.com/pawcontrol/pawsync/internal/server"
)

const statusTimeout = 5 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running coordinator",
	Long: `Fetch the operational snapshot from a running 'pawsync run' and print
polling, budget, batch and fetch health.

Exits non-zero when the coordinator reports itself degraded.`,
	RunE: runStatus,
}

var (
	statusJSON bool
	statusAddr string
)

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output the snapshot as JSON")
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "diagnostics server address (default server.addr)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
	defer cancel()

	snap, err := server.NewClient(serverAddr(statusAddr)).Diagnostics(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach coordinator: %w", err)
	}

	out := cmd.OutOrStdout()
	if statusJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, renderStatus(snap, terminalWidth()))
	}

	if !snap.Healthy() {
		return fmt.Errorf("coordinator is degraded (error streak %d)", snap.Polling.ErrorStreak)
	}
	return nil
}

// serverAddr returns flagValue, or server.addr from the configuration.
func serverAddr(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return config.Get().Server.Addr
}

// terminalWidth returns the stdout width, or the default when stdout is
// not a terminal.
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return defaultWidth
}
