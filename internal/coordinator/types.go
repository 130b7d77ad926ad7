package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattjoyce/putput/internal/command"
	"github.com/mattjoyce/putput/internal/dispatch"
	"github.com/mattjoyce/putput/internal/runner"
)

//go:generate mockgen -destination=mocks/mock_clipboard.go -package=mocks github.com/mattjoyce/putput/internal/coordinator Clipboard

var (
	// ErrStaleSelection is returned by Copy when the requested panel is
	// pending, idle, or belongs to a generation that has been superseded.
	ErrStaleSelection = errors.New("stale selection")

	// ErrNoSuchPanel is returned for a panel index outside the command set.
	ErrNoSuchPanel = fmt.Errorf("%w: no such panel", ErrStaleSelection)

	// ErrNoClipboard is returned by Copy when no clipboard is configured.
	ErrNoClipboard = errors.New("no clipboard available")
)

// State is the coordinator's position in its state machine.
type State int

const (
	Idle State = iota
	Debouncing
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Debouncing:
		return "debouncing"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// SlotState is the lifecycle of one panel within a generation.
type SlotState int

const (
	SlotIdle SlotState = iota
	SlotPending
	SlotDone
)

func (s SlotState) String() string {
	switch s {
	case SlotIdle:
		return "idle"
	case SlotPending:
		return "pending"
	case SlotDone:
		return "done"
	default:
		return "unknown"
	}
}

// Slot is one panel of a snapshot. Result is set only when State is SlotDone.
type Slot struct {
	Index   int
	Command string
	State   SlotState
	Result  *runner.Result
}

// Snapshot is an immutable copy of the current result set.
type Snapshot struct {
	Generation uint64
	// Input is the payload the generation was dispatched with.
	Input    string
	Slots    []Slot
	Complete bool
	AutoRun  bool
	State    State
}

// Resolved counts the slots that are done.
func (s Snapshot) Resolved() int {
	n := 0
	for _, slot := range s.Slots {
		if slot.State == SlotDone {
			n++
		}
	}
	return n
}

// Failed counts done slots whose command did not succeed. Cancelled slots
// are not failures.
func (s Snapshot) Failed() int {
	n := 0
	for _, slot := range s.Slots {
		if slot.State != SlotDone || slot.Result == nil {
			continue
		}
		kind := slot.Result.Status.Kind
		if kind != runner.KindSuccess && kind != runner.KindCancelled {
			n++
		}
	}
	return n
}

// Sink receives snapshots in non-decreasing generation order.
type Sink interface {
	Deliver(Snapshot)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Snapshot)

func (f SinkFunc) Deliver(s Snapshot) { f(s) }

// Clipboard writes copied panel text to the system clipboard.
type Clipboard interface {
	WriteAll(text string) error
}

// Dispatcher starts generations. *dispatch.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(set command.Set, input []byte) *dispatch.Run
	Supersede() uint64
	Shutdown(ctx context.Context) error
}

// Clock schedules the debounce timer.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
