package tui

import (
	"fmt"

	"github.com/mattjoyce/putput/internal/coordinator"
	"github.com/mattjoyce/putput/internal/runner"
)

// statusIndicator renders the glyph shown in a panel title. spin is the
// current spinner frame, used while the slot is pending.
func statusIndicator(slot coordinator.Slot, spin string, theme Theme) string {
	switch slot.State {
	case coordinator.SlotIdle:
		return theme.Dim.Render("○")
	case coordinator.SlotPending:
		return theme.StatusRunning.Render(spin)
	}
	if slot.Result == nil {
		return ""
	}

	st := slot.Result.Status
	switch st.Kind {
	case runner.KindSuccess:
		return theme.StatusOK.Render("●")
	case runner.KindExitCode:
		return theme.StatusFailed.Render(fmt.Sprintf("✗ exit %d", st.Code))
	case runner.KindSignal:
		return theme.StatusFailed.Render("⚡ " + st.Signal)
	case runner.KindSpawnFailed:
		return theme.StatusFailed.Render("⊘ spawn failed")
	case runner.KindParseFailed:
		return theme.StatusFailed.Render("⚠ parse error")
	case runner.KindCancelled:
		return theme.StatusCancelled.Render("◌ cancelled")
	default:
		return theme.Dim.Render(string(st.Kind))
	}
}

// stateLabel renders the coordinator state for the header.
func stateLabel(s coordinator.State, theme Theme) string {
	switch s {
	case coordinator.Running:
		return theme.StatusRunning.Render("running")
	case coordinator.Debouncing:
		return theme.Highlight.Render("debouncing")
	default:
		return theme.Dim.Render("idle")
	}
}
