package runner

import (
	"fmt"
	"time"
)

// Kind classifies how a run ended.
type Kind string

const (
	KindSuccess     Kind = "success"
	KindExitCode    Kind = "code"
	KindSignal      Kind = "signal"
	KindSpawnFailed Kind = "spawn_failed"
	KindParseFailed Kind = "parse_failed"
	KindCancelled   Kind = "cancelled"
)

// ExitStatus describes the outcome of one run.
type ExitStatus struct {
	Kind    Kind
	Code    int    // exit code for KindExitCode
	Signal  string // signal name for KindSignal
	Message string // error text for spawn/parse failures
}

// Success reports a zero exit.
func (s ExitStatus) Success() bool {
	return s.Kind == KindSuccess
}

func (s ExitStatus) String() string {
	switch s.Kind {
	case KindSuccess:
		return "exit status 0"
	case KindExitCode:
		return fmt.Sprintf("exit status %d", s.Code)
	case KindSignal:
		return "signal: " + s.Signal
	case KindSpawnFailed:
		return "spawn failed: " + s.Message
	case KindParseFailed:
		return "parse error: " + s.Message
	case KindCancelled:
		return "cancelled"
	default:
		return string(s.Kind)
	}
}

// Result holds the output of one command run. It is never modified after
// the Runner returns it.
type Result struct {
	Index      int    // slot in the command set
	Generation uint64 // dispatch this run belongs to
	RunID      string // unique identifier for log correlation
	Command    string // raw command string

	Stdout          []byte // captured stdout, truncation marker appended when capped
	Stderr          []byte
	StdoutTruncated bool
	StderrTruncated bool

	Status ExitStatus
	// IOError describes a stdin, stdout or stderr failure while streaming.
	// The captured output is kept alongside it.
	IOError string
	// Exhausted is set when the spawn failed for lack of system resources.
	Exhausted bool

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is how long the run took.
func (r Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
