// Package util provides small formatting helpers shared by the CLI views.
package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// TruncateANSI truncates s to maxWidth visual columns, adding "..." if
// truncated. Escape sequences and wide characters are accounted for.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, "...")
}

// JoinTruncated joins items with ", " and truncates the result to maxWidth.
// An empty list renders as "-".
func JoinTruncated(items []string, maxWidth int) string {
	if len(items) == 0 {
		return "-"
	}
	return TruncateANSI(strings.Join(items, ", "), maxWidth)
}

// FormatMillis renders a millisecond value as a short duration, e.g.
// "850ms" or "1.5s".
func FormatMillis(ms float64) string {
	d := time.Duration(ms * float64(time.Millisecond))
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(100 * time.Millisecond).String()
}

// Percent renders a 0..1 ratio as a whole percentage.
func Percent(ratio float64) string {
	return fmt.Sprintf("%.0f%%", ratio*100)
}
