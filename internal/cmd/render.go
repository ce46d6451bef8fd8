package cmd

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pawcontrol/pawsync/internal/diff"
	"github.com/pawcontrol/pawsync/internal/metrics"
	"github.com/pawcontrol/pawsync/internal/tui/styles"
	"github.com/pawcontrol/pawsync/internal/util"
)

const defaultWidth = 80

// renderDiff formats a coordinator diff for the terminal.
func renderDiff(d diff.CoordinatorDiff, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	var b strings.Builder

	s := d.Summary()
	b.WriteString(styles.Section.Render("Diff"))
	fmt.Fprintf(&b, "  %d added, %d removed, %d changed (%d modules)\n",
		s.AddedDogs, s.RemovedDogs, s.ChangedDogs-s.AddedDogs-s.RemovedDogs, s.ChangedModules)

	if !d.HasChanges() {
		b.WriteString(styles.Muted.Render("no changes"))
		b.WriteString("\n")
		return b.String()
	}

	for _, id := range d.ChangedDogs() {
		switch {
		case slices.Contains(d.AddedDogs, id):
			b.WriteString(styles.Added.Render("+ " + id))
			b.WriteString("\n")
			continue
		case slices.Contains(d.RemovedDogs, id):
			b.WriteString(styles.Removed.Render("- " + id))
			b.WriteString("\n")
			continue
		}

		b.WriteString(styles.Modified.Render("~ " + id))
		b.WriteString("\n")
		dd := d.Dogs[id]
		for _, module := range dd.ChangedModules() {
			line := "    " + lipgloss.NewStyle().Width(12).Render(module) + " " + keyChanges(dd.Modules[module])
			b.WriteString(util.TruncateANSI(line, width))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func keyChanges(dd diff.DataDiff) string {
	var parts []string
	for _, k := range dd.Added() {
		parts = append(parts, styles.Added.Render("+"+k))
	}
	for _, k := range dd.Modified() {
		parts = append(parts, styles.Modified.Render("~"+k))
	}
	for _, k := range dd.Removed() {
		parts = append(parts, styles.Removed.Render("-"+k))
	}
	return strings.Join(parts, " ")
}

// renderStatus formats an operational snapshot for the terminal.
func renderStatus(s metrics.OperationalSnapshot, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	valueWidth := max(width-styles.Label.GetWidth()-2, 10)

	row := func(label, value string) string {
		return styles.Label.Render(label) + util.TruncateANSI(value, valueWidth) + "\n"
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render("pawsync status"))
	b.WriteString("\n")
	b.WriteString(row("Health", styles.Health(s.Healthy())))
	b.WriteString(row("Dogs", fmt.Sprint(s.Dogs)))
	b.WriteString(row("Generated", s.GeneratedAt.Format("2006-01-02 15:04:05")))

	b.WriteString("\n" + styles.Section.Render("Polling") + "\n")
	b.WriteString(row("Interval", util.FormatMillis(s.Polling.CurrentIntervalMS)))
	b.WriteString(row("Average cycle", util.FormatMillis(s.Polling.AverageCycleMS)+" / target "+util.FormatMillis(s.Polling.TargetCycleMS)))
	b.WriteString(row("Error streak", fmt.Sprint(s.Polling.ErrorStreak)))
	b.WriteString(row("Saturation", styles.Saturation(s.Polling.EntitySaturation).Render(util.Percent(s.Polling.EntitySaturation))))

	b.WriteString("\n" + styles.Section.Render("Budget") + "\n")
	b.WriteString(row("Allocated", fmt.Sprintf("%d / %d (%d remaining)", s.Budget.TotalAllocated, s.Budget.TotalCapacity, s.Budget.TotalRemaining)))
	b.WriteString(row("Peak utilization", util.Percent(s.Budget.PeakUtilization)))
	b.WriteString(row("Denied requests", fmt.Sprint(s.Budget.DeniedRequests)))

	b.WriteString("\n" + styles.Section.Render("Refresh batches") + "\n")
	b.WriteString(row("Pending", fmt.Sprintf("%d (max batch %d)", s.Batch.Pending, s.Batch.MaxBatchSize)))
	b.WriteString(row("Dispatched", fmt.Sprintf("%d dogs in %d batches", s.Batch.TotalDispatched, s.Batch.TotalBatches)))

	b.WriteString("\n" + styles.Section.Render("Fetching") + "\n")
	b.WriteString(row("Open breakers", fmt.Sprint(s.OpenBreakers)))
	b.WriteString(row("Failing", util.JoinTruncated(s.FailingKeys, valueWidth)))

	if c := s.LastCycle; c != nil {
		b.WriteString("\n" + styles.Section.Render("Last cycle") + "\n")
		b.WriteString(row("ID", c.CycleID))
		b.WriteString(row("Result", fmt.Sprintf("%d/%d dogs failed in %s", c.Errors, c.DogCount, c.Duration.Round(time.Millisecond))))
		b.WriteString(row("Changes", fmt.Sprintf("%d dogs, %d modules", s.LastChanges.ChangedDogs, s.LastChanges.ChangedModules)))
		if len(c.FailedDogs) > 0 {
			b.WriteString(row("Failed dogs", util.JoinTruncated(c.FailedDogs, valueWidth)))
		}
	}
	return b.String()
}
