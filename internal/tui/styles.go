package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/slidesmith-dev/slidesmith/internal/deck"
)

// Palette follows the Beamer "Madrid" blues so the review screen and the
// default deck look related.
var (
	accent  = lipgloss.AdaptiveColor{Light: "#1F3F8F", Dark: "#7A9CF0"}
	okColor = lipgloss.AdaptiveColor{Light: "#1B7F3B", Dark: "#4ADE80"}
	busy    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	bad     = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	muted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
)

var (
	historyBox = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false).
			BorderForeground(accent)

	titleText   = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedText   = lipgloss.NewStyle().Foreground(muted)
	okText      = lipgloss.NewStyle().Foreground(okColor)
	busyText    = lipgloss.NewStyle().Foreground(busy)
	errText     = lipgloss.NewStyle().Foreground(bad).Bold(true)
	helpBarText = lipgloss.NewStyle().Foreground(muted).Italic(true)
)

// StatusIcon renders the icon for an artifact status.
func StatusIcon(s deck.Status) string {
	switch s {
	case deck.StatusCompiled:
		return okText.Render("✓")
	case deck.StatusCompiling:
		return busyText.Render("▸")
	case deck.StatusFailed:
		return errText.Render("✗")
	default:
		return mutedText.Render("·")
	}
}

func joinDot(parts []string) string {
	return strings.Join(parts, "  ·  ")
}
