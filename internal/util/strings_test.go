package util

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestTruncateANSI(t *testing.T) {
	redStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	tests := []struct {
		name     string
		input    string
		maxWidth int
		want     string
	}{
		{"short plain string unchanged", "hello", 10, "hello"},
		{"plain string truncated", "hello world", 8, "hello..."},
		{"small maxWidth returns ellipsis", "hello", 3, "..."},
		{"zero maxWidth returns ellipsis", "hello", 0, "..."},
		{"exact fit unchanged", "rex.gps", 7, "rex.gps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateANSI(tt.input, tt.maxWidth)
			if got != tt.want {
				t.Errorf("TruncateANSI(%q, %d) = %q, want %q", tt.input, tt.maxWidth, got, tt.want)
			}
		})
	}

	t.Run("styled string respects width", func(t *testing.T) {
		got := TruncateANSI(redStyle.Render("bella.health.heart_rate"), 10)
		if w := lipgloss.Width(got); w > 10 {
			t.Errorf("result width %d exceeds 10", w)
		}
	})

	t.Run("styled string preserved when it fits", func(t *testing.T) {
		in := redStyle.Render("hi")
		if got := TruncateANSI(in, 10); got != in {
			t.Errorf("styled string was modified: %q", got)
		}
	})
}

func TestJoinTruncated(t *testing.T) {
	tests := []struct {
		name     string
		items    []string
		maxWidth int
		want     string
	}{
		{"empty", nil, 20, "-"},
		{"fits", []string{"rex.gps", "bella"}, 20, "rex.gps, bella"},
		{"truncated", []string{"rex.gps", "bella.health"}, 12, "rex.gps, ..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinTruncated(tt.items, tt.maxWidth); got != tt.want {
				t.Errorf("JoinTruncated(%v, %d) = %q, want %q", tt.items, tt.maxWidth, got, tt.want)
			}
		})
	}
}

func TestFormatMillis(t *testing.T) {
	tests := []struct {
		ms   float64
		want string
	}{
		{0, "0ms"},
		{850, "850ms"},
		{1000, "1s"},
		{1500, "1.5s"},
		{1234.5, "1.2s"},
		{5000, "5s"},
	}

	for _, tt := range tests {
		if got := FormatMillis(tt.ms); got != tt.want {
			t.Errorf("FormatMillis(%v) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "0%"},
		{0.9, "90%"},
		{1, "100%"},
	}

	for _, tt := range tests {
		if got := Percent(tt.ratio); got != tt.want {
			t.Errorf("Percent(%v) = %q, want %q", tt.ratio, got, tt.want)
		}
	}
}
