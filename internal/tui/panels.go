package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/putput/internal/coordinator"
	"github.com/mattjoyce/putput/internal/runner"
)

const noOutput = "(no output)"

// panelBodyLines splits height rows evenly between n panels. Each panel
// spends two border rows and one title row.
func panelBodyLines(n, height int) int {
	if n == 0 {
		return 1
	}
	lines := height/n - 3
	if lines < 1 {
		lines = 1
	}
	return lines
}

// newPanelView creates the scrollable body of one panel.
func newPanelView() viewport.Model {
	return viewport.New(0, 0)
}

// renderPanels stacks one bordered panel per slot. views holds the scrolled
// body of each slot.
func renderPanels(snap coordinator.Snapshot, views []viewport.Model, focus int, spin string, theme Theme, width int) string {
	if len(snap.Slots) == 0 {
		return theme.Dim.Render("  No commands configured")
	}

	panels := make([]string, 0, len(snap.Slots))
	for i, slot := range snap.Slots {
		var vp viewport.Model
		if i < len(views) {
			vp = views[i]
		} else {
			vp = newPanelView()
			vp.SetContent(PanelBody(slot))
		}
		panels = append(panels, renderPanel(slot, vp, i == focus, spin, theme, width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, panels...)
}

func renderPanel(slot coordinator.Slot, vp viewport.Model, focused bool, spin string, theme Theme, width int) string {
	innerWidth := width - 4

	title := fmt.Sprintf("%s %s %s",
		theme.Header.Render(fmt.Sprintf("[%d]", slot.Index+1)),
		slot.Command,
		statusIndicator(slot, spin, theme),
	)
	if hint := scrollHint(vp); hint != "" {
		title += "  " + theme.Dim.Render(hint)
	}

	body := vp.View()
	switch {
	case slot.State != coordinator.SlotDone || slot.Result == nil:
		body = theme.Dim.Render(body)
	case slot.Result.Status.Kind == runner.KindCancelled:
		body = theme.StatusCancelled.Render(body)
	case !slot.Result.Status.Success():
		body = theme.StatusFailed.Render(body)
	}

	style := theme.Panel
	if focused {
		style = theme.PanelFocused
	}
	content := lipgloss.JoinVertical(lipgloss.Left, title, body)
	return style.Width(innerWidth).Render(content)
}

// scrollHint describes the visible window of a body taller than its panel.
func scrollHint(vp viewport.Model) string {
	total := vp.TotalLineCount()
	if vp.Height <= 0 || total <= vp.Height {
		return ""
	}
	last := vp.YOffset + vp.Height
	if last > total {
		last = total
	}
	return fmt.Sprintf("lines %d-%d of %d", vp.YOffset+1, last, total)
}

// scrollBy moves a body by n lines; the viewport clamps at both ends.
func scrollBy(vp *viewport.Model, n int) {
	vp.SetYOffset(vp.YOffset + n)
}

// PanelBody is the text shown inside a panel. A resolved panel is never
// blank: a command that printed nothing shows "(no output)".
func PanelBody(slot coordinator.Slot) string {
	switch slot.State {
	case coordinator.SlotIdle:
		return "waiting for input"
	case coordinator.SlotPending:
		return "running..."
	}
	res := slot.Result
	if res == nil {
		return noOutput
	}

	var body string
	switch res.Status.Kind {
	case runner.KindSuccess:
		body = orNoOutput(trimOutput(res.Stdout))
	case runner.KindExitCode, runner.KindSignal:
		detail := trimOutput(res.Stderr)
		if detail == "" {
			detail = trimOutput(res.Stdout)
		}
		body = fmt.Sprintf("Failed (%s):\n%s", res.Status, orNoOutput(detail))
	case runner.KindSpawnFailed:
		body = "Could not start command: " + res.Status.Message
	case runner.KindParseFailed:
		body = "Could not parse command: " + res.Status.Message
	case runner.KindCancelled:
		body = "Cancelled"
	default:
		body = orNoOutput(trimOutput(res.Stdout))
	}

	if res.IOError != "" {
		body += "\n[io error: " + res.IOError + "]"
	}
	return body
}

func trimOutput(b []byte) string {
	return strings.TrimRight(string(b), " \t\r\n")
}

func orNoOutput(s string) string {
	if s == "" {
		return noOutput
	}
	return s
}
