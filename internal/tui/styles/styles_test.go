package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestSaturation(t *testing.T) {
	tests := []struct {
		ratio float64
		want  lipgloss.Color
	}{
		{0, SuccessColor},
		{0.5, SuccessColor},
		{0.9, WarningColor},
		{0.99, WarningColor},
		{1, ErrorColor},
	}

	for _, tt := range tests {
		got, ok := Saturation(tt.ratio).GetForeground().(lipgloss.Color)
		if !ok || got != tt.want {
			t.Errorf("Saturation(%v) foreground = %v, want %v", tt.ratio, got, tt.want)
		}
	}
}

func TestHealth(t *testing.T) {
	if !strings.Contains(Health(true), "healthy") {
		t.Errorf("Health(true) = %q", Health(true))
	}
	if !strings.Contains(Health(false), "degraded") {
		t.Errorf("Health(false) = %q", Health(false))
	}
}
