// Package tui provides the Bubble Tea dashboard behind "chopsticks
// status". It is read-only: it polls a Coordinator's test-status and a
// Metrics Daemon's /metrics endpoint, it never mutates either.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/sabaini/chopsticks/coordinator"
)

var (
	primaryColor   = lipgloss.Color("#7C3AED")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	highlightColor = lipgloss.Color("#3B82F6")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(16)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	SuccessStyle = lipgloss.NewStyle().Foreground(successColor)
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(errorColor)

	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlightColor).
			Padding(0, 2).
			Width(20).
			Align(lipgloss.Center)

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Align(lipgloss.Center)

	StatValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Align(lipgloss.Center)
)

// StatusLevelStyle renders a StatusLevel the way the three-state
// projection is meant to read at a glance: blocked in red, waiting in
// amber, active in green.
func StatusLevelStyle(level coordinator.StatusLevel) lipgloss.Style {
	switch level {
	case coordinator.StatusBlocked:
		return ErrorStyle
	case coordinator.StatusWaiting:
		return WarningStyle
	case coordinator.StatusActive:
		return SuccessStyle
	default:
		return ValueStyle
	}
}
