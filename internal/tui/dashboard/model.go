// Package dashboard implements the live terminal view of a running pawsync
// instance. It polls the diagnostics endpoint and renders controller,
// budget and batch state as a table.
//
// The model is driven by the bubbletea event loop and must not be shared
// between goroutines.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pawcontrol/pawsync/internal/metrics"
	"github.com/pawcontrol/pawsync/internal/tui/styles"
	"github.com/pawcontrol/pawsync/internal/util"
)

const (
	defaultRefresh = time.Second
	fetchTimeout   = 3 * time.Second
	minWidth       = 40
)

// Source supplies diagnostics, typically a server.Client.
type Source interface {
	Diagnostics(ctx context.Context) (metrics.OperationalSnapshot, error)
	Changes(ctx context.Context) ([]string, error)
}

type tickMsg time.Time

type snapshotMsg struct {
	snap    metrics.OperationalSnapshot
	changes []string
	err     error
	at      time.Time
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	source   Source
	refresh  time.Duration
	table    table.Model
	snap     *metrics.OperationalSnapshot
	changes  []string
	err      error
	updated  time.Time
	width    int
	quitting bool
}

// New creates a dashboard polling source every refresh (1s if zero).
func New(source Source, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = defaultRefresh
	}
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Metric", Width: 20},
			{Title: "Value", Width: 24},
		}),
		table.WithHeight(12),
		table.WithWidth(76),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.Foreground(styles.PrimaryColor).Bold(true)
	s.Selected = s.Selected.Foreground(styles.TextColor).Bold(false)
	t.SetStyles(s)

	return Model{source: source, refresh: refresh, table: t, width: 80}
}

// Init starts the first fetch and the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.tick())
}

// Update handles key presses, resizes, ticks and fetched snapshots.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.fetch()
		}

	case tea.WindowSizeMsg:
		m.width = max(msg.Width, minWidth)
		m.table.SetWidth(m.width - 4)
		m.table.SetColumns([]table.Column{
			{Title: "Metric", Width: 20},
			{Title: "Value", Width: max(m.width-30, 10)},
		})
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetch(), m.tick())

	case snapshotMsg:
		m.updated = msg.at
		m.err = msg.err
		if msg.err == nil {
			snap := msg.snap
			m.snap = &snap
			m.changes = msg.changes
			m.table.SetRows(Rows(snap))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render("pawsync watch"))
	b.WriteString("\n")

	switch {
	case m.snap == nil && m.err == nil:
		b.WriteString(styles.Muted.Render("waiting for diagnostics..."))
		b.WriteString("\n")
	case m.snap != nil:
		b.WriteString(styles.Health(m.snap.Healthy()))
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  %d dogs  updated %s", m.snap.Dogs, m.updated.Format("15:04:05"))))
		b.WriteString("\n\n")
		b.WriteString(styles.Box.Render(m.table.View()))
		b.WriteString("\n")
		b.WriteString(styles.Section.Render("Changed entities"))
		b.WriteString("\n")
		b.WriteString(util.JoinTruncated(m.changes, m.width-2))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(styles.Error.Render(util.TruncateANSI("error: "+m.err.Error(), m.width-2)))
		b.WriteString("\n")
	}

	b.WriteString(styles.HelpBar.Render("r refresh • q quit"))
	return lipgloss.NewStyle().MaxWidth(m.width).Render(b.String())
}

// Rows flattens a snapshot into metric/value table rows.
func Rows(s metrics.OperationalSnapshot) []table.Row {
	rows := []table.Row{
		{"Interval", util.FormatMillis(s.Polling.CurrentIntervalMS)},
		{"Average cycle", util.FormatMillis(s.Polling.AverageCycleMS)},
		{"Target cycle", util.FormatMillis(s.Polling.TargetCycleMS)},
		{"Error streak", fmt.Sprint(s.Polling.ErrorStreak)},
		{"Saturation", util.Percent(s.Polling.EntitySaturation)},
		{"Budget allocated", fmt.Sprintf("%d / %d", s.Budget.TotalAllocated, s.Budget.TotalCapacity)},
		{"Denied requests", fmt.Sprint(s.Budget.DeniedRequests)},
		{"Pending refreshes", fmt.Sprintf("%d (batch %d)", s.Batch.Pending, s.Batch.MaxBatchSize)},
		{"Batches", fmt.Sprintf("%d (%d dogs)", s.Batch.TotalBatches, s.Batch.TotalDispatched)},
		{"Open breakers", fmt.Sprint(s.OpenBreakers)},
	}
	if s.LastCycle != nil {
		rows = append(rows,
			table.Row{"Last cycle", fmt.Sprintf("%s (%d/%d failed)", util.Percent(s.LastCycle.SuccessRate), s.LastCycle.Errors, s.LastCycle.DogCount)},
		)
	}
	return rows
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) fetch() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		snap, err := source.Diagnostics(ctx)
		if err != nil {
			return snapshotMsg{err: err, at: time.Now()}
		}
		changes, err := source.Changes(ctx)
		return snapshotMsg{snap: snap, changes: changes, err: err, at: time.Now()}
	}
}
