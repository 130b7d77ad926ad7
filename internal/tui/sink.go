package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/putput/internal/coordinator"
	"github.com/mattjoyce/putput/internal/events"
)

// --- Message types ---

// SnapshotMsg carries a coordinator snapshot into the program.
type SnapshotMsg coordinator.Snapshot

type eventMsg events.Event

type clearToastMsg struct{ id int }

// ProgramSink delivers coordinator snapshots to a running program.
type ProgramSink struct {
	p *tea.Program
}

func NewProgramSink(p *tea.Program) ProgramSink {
	return ProgramSink{p: p}
}

// Deliver blocks until the program accepts the message or has exited.
func (s ProgramSink) Deliver(snap coordinator.Snapshot) {
	s.p.Send(SnapshotMsg(snap))
}

// --- Commands ---

// receiveNextEvent waits for the next activity event.
func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(e)
	}
}
