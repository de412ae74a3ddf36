package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/deliverygate/internal/gate"
)

// Border styles
var (
	StyleFocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62"))

	StyleUnfocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))
)

// Gate status styles
var (
	StyleStatusPassed = lipgloss.NewStyle().
				Foreground(lipgloss.Color("green")).
				Bold(true)

	StyleStatusBlocked = lipgloss.NewStyle().
				Foreground(lipgloss.Color("yellow")).
				Bold(true)

	StyleStatusFailed = lipgloss.NewStyle().
				Foreground(lipgloss.Color("red")).
				Bold(true)

	StyleStatusPending = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
)

// UI element styles
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	StyleHelp = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	StyleSelected = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0"))
)

// StatusStyle returns the style used to render a gate status.
func StatusStyle(status gate.GateStatus) lipgloss.Style {
	switch status {
	case gate.GatePassed:
		return StyleStatusPassed
	case gate.GateBlocked:
		return StyleStatusBlocked
	case gate.GateFailed:
		return StyleStatusFailed
	default:
		return StyleStatusPending
	}
}

// StatusIcon returns a styled one-character indicator for a gate status.
func StatusIcon(status gate.GateStatus) string {
	style := StatusStyle(status)
	switch status {
	case gate.GatePassed:
		return style.Render("✓")
	case gate.GateBlocked:
		return style.Render("■")
	case gate.GateFailed:
		return style.Render("✗")
	default:
		return style.Render("○")
	}
}

// StatusBadge returns a styled badge such as "[BLOCKED]".
func StatusBadge(status gate.GateStatus) string {
	label := string(status)
	if label == "" {
		label = "unknown"
	}
	return StatusStyle(status).Render("[" + strings.ToUpper(label) + "]")
}
