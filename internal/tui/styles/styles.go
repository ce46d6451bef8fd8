// Package styles holds the lipgloss palette shared by pawsync's terminal
// views.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors meet WCAG AA contrast on both black and dark surfaces.
	PrimaryColor = lipgloss.Color("#A78BFA") // Purple
	SuccessColor = lipgloss.Color("#10B981") // Green
	WarningColor = lipgloss.Color("#F59E0B") // Amber
	ErrorColor   = lipgloss.Color("#F87171") // Red
	MutedColor   = lipgloss.Color("#9CA3AF") // Gray
	TextColor    = lipgloss.Color("#F9FAFB")
	BorderColor  = lipgloss.Color("#6B7280")

	Primary = lipgloss.NewStyle().Foreground(PrimaryColor)
	Success = lipgloss.NewStyle().Foreground(SuccessColor)
	Warning = lipgloss.NewStyle().Foreground(WarningColor)
	Error   = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted   = lipgloss.NewStyle().Foreground(MutedColor)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		MarginBottom(1)

	Label = lipgloss.NewStyle().
		Foreground(MutedColor).
		Width(18)

	Section = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextColor)

	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 1)

	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	// Diff markers.
	Added    = lipgloss.NewStyle().Foreground(SuccessColor)
	Removed  = lipgloss.NewStyle().Foreground(ErrorColor)
	Modified = lipgloss.NewStyle().Foreground(WarningColor)
)

// Health renders a health badge.
func Health(healthy bool) string {
	if healthy {
		return Success.Bold(true).Render("healthy")
	}
	return Error.Bold(true).Render("degraded")
}

// Saturation picks a style for a 0..1 budget saturation.
func Saturation(ratio float64) lipgloss.Style {
	switch {
	case ratio >= 1:
		return Error
	case ratio >= 0.9:
		return Warning
	default:
		return Success
	}
}
