package cmd

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pawcontrol/pawsync/internal/server"
	"github.com/pawcontrol/pawsync/internal/tui/dashboard"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of a running coordinator",
	Long: `Open a terminal dashboard that polls a running 'pawsync run' and shows
the polling interval, budget saturation, pending refreshes and the entities
changed by the last cycle.

Keys: r refreshes immediately, q quits.`,
	RunE: runWatch,
}

var (
	watchAddr     string
	watchInterval time.Duration
)

func init() {
	watchCmd.Flags().StringVar(&watchAddr, "addr", "", "diagnostics server address (default server.addr)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "refresh interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	client := server.NewClient(serverAddr(watchAddr))
	p := tea.NewProgram(
		dashboard.New(client, watchInterval),
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
	)
	_, err := p.Run()
	return err
}
