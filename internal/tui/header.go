package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/putput/internal/coordinator"
)

func renderHeader(title string, snap coordinator.Snapshot, theme Theme, width int) string {
	innerWidth := width - 4

	autoRun := theme.Dim.Render("off")
	if snap.AutoRun {
		autoRun = theme.StatusOK.Render("on")
	}

	gen := theme.Dim.Render("-")
	if snap.Generation != 0 {
		gen = theme.Highlight.Render(fmt.Sprintf("#%d", snap.Generation))
	}

	titleText := theme.Title.Render(title)
	stats := fmt.Sprintf("auto-run: %s  gen: %s  %s  %d/%d done",
		autoRun, gen, stateLabel(snap.State, theme), snap.Resolved(), len(snap.Slots))

	// Pad between title and stats
	pad := innerWidth - lipgloss.Width(titleText) - lipgloss.Width(stats) - 2
	if pad < 1 {
		pad = 1
	}
	line := titleText + strings.Repeat(" ", pad) + stats + " "

	return theme.Border.Width(innerWidth).Render(line)
}
