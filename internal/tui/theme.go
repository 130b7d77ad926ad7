// Package tui implements the interactive putput terminal UI.
package tui

import "github.com/charmbracelet/lipgloss"

// Theme centralizes all styling for the TUI.
type Theme struct {
	// Status colors
	StatusOK        lipgloss.Style
	StatusRunning   lipgloss.Style
	StatusFailed    lipgloss.Style
	StatusCancelled lipgloss.Style

	// UI elements
	Border    lipgloss.Style
	Panel     lipgloss.Style
	Title     lipgloss.Style
	Header    lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style
	Toast     lipgloss.Style
	ToastErr  lipgloss.Style

	// PanelFocused marks the panel that scroll keys move.
	PanelFocused lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		StatusOK:        lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		StatusRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		StatusFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		StatusCancelled: lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#444444")),
		PanelFocused: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#61AFEF")),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		Toast:     lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		ToastErr:  lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
	}
}
