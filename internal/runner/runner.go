// Package runner executes one configured command against one input payload.
//
// A run spawns the command as a child process (no shell), feeds the input on
// stdin, drains stdout and stderr concurrently into capped buffers and
// reports a single Result. Failures never escape as errors: a missing binary,
// a parse error, a nonzero exit or a cancellation all come back as a Result
// with the matching ExitStatus.
//
// Cancellation handling:
//   - SIGTERM is sent to the child's process group
//   - after GracePeriod, SIGKILL is sent
//   - output pipes still held by a background process are closed DrainDelay
//     after the child exits
//   - the child is always reaped before Run returns
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/putput/internal/command"
	"github.com/mattjoyce/putput/internal/log"
)

const (
	// DefaultMaxOutput caps each captured stream.
	DefaultMaxOutput = 4 << 20

	// DefaultGracePeriod is the time we wait after SIGTERM before sending SIGKILL.
	DefaultGracePeriod = 300 * time.Millisecond

	// DefaultDrainDelay bounds how long output is still read after the
	// command exits.
	DefaultDrainDelay = 200 * time.Millisecond
)

// Job is one unit of work: a spec, its slot and generation, and the input.
type Job struct {
	Index      int
	Generation uint64
	Spec       command.Spec
	Input      []byte
}

// Runner spawns commands. The zero value is not usable; call New.
type Runner struct {
	MaxOutput   int
	GracePeriod time.Duration
	// DrainDelay is how long Run keeps reading once the command has exited
	// while a background process still holds its output open.
	DrainDelay time.Duration
	// Dir is the working directory for children; empty means the current one.
	Dir string
	// Env replaces the child environment when non-nil.
	Env []string
}

// New creates a Runner. A non-positive maxOutput or negative grace selects the default.
func New(maxOutput int, grace time.Duration) *Runner {
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}
	if grace < 0 {
		grace = DefaultGracePeriod
	}
	return &Runner{
		MaxOutput:   maxOutput,
		GracePeriod: grace,
		DrainDelay:  DefaultDrainDelay,
	}
}

// Start runs job in the background. The channel is buffered so the run
// finishes and the child is reaped even if nobody receives.
func (r *Runner) Start(ctx context.Context, job Job) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		ch <- r.Run(ctx, job)
	}()
	return ch
}

// Run executes job and blocks until the child has exited and been reaped.
func (r *Runner) Run(ctx context.Context, job Job) Result {
	res := Result{
		Index:      job.Index,
		Generation: job.Generation,
		RunID:      uuid.NewString(),
		Command:    job.Spec.Raw,
		StartedAt:  time.Now(),
	}
	logger := log.WithRun(res.RunID, job.Index).With("generation", job.Generation, "command", job.Spec.Raw)

	if !job.Spec.Valid() {
		return finish(res, ExitStatus{Kind: KindParseFailed, Message: job.Spec.Err.Error()}, logger)
	}
	if ctx.Err() != nil {
		return finish(res, ExitStatus{Kind: KindCancelled}, logger)
	}

	cmd := exec.Command(job.Spec.Program, job.Spec.Args...)
	cmd.Dir = r.Dir
	cmd.Env = r.Env
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return spawnFailed(res, fmt.Errorf("create stdin pipe: %w", err), logger)
	}
	outBuf := newCapture(r.MaxOutput)
	errBuf := newCapture(r.MaxOutput)
	cmd.Stdout = outBuf
	cmd.Stderr = errBuf
	// A background process that inherited stdout must not hold the slot
	// open after the command itself has exited.
	cmd.WaitDelay = r.DrainDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultDrainDelay
	}

	logger.Debug("spawning command", "argv", job.Spec.Argv(), "input_bytes", len(job.Input))

	if err := cmd.Start(); err != nil {
		return spawnFailed(res, err, logger)
	}

	// Feed stdin in a goroutine; a child may write output before it has
	// consumed all of its input.
	type writeResult struct {
		n   int
		err error
	}
	written := make(chan writeResult, 1)
	go func() {
		n, err := stdin.Write(job.Input)
		if cerr := stdin.Close(); err == nil {
			err = cerr
		}
		written <- writeResult{n: n, err: err}
	}()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	var runErr error
	cancelled := false
	select {
	case runErr = <-waitErr:
	case <-ctx.Done():
		cancelled = true
		runErr = r.terminate(cmd, waitErr, logger)
	}
	wr := <-written

	res.Stdout = outBuf.bytes()
	res.Stderr = errBuf.bytes()
	res.StdoutTruncated = outBuf.truncated()
	res.StderrTruncated = errBuf.truncated()

	if cancelled {
		return finish(res, ExitStatus{Kind: KindCancelled}, logger)
	}

	var ioErrs []string
	if wr.n < len(job.Input) && wr.err != nil {
		ioErrs = append(ioErrs, fmt.Sprintf("stdin: wrote %d of %d bytes: %v", wr.n, len(job.Input), wr.err))
	}
	if errors.Is(runErr, exec.ErrWaitDelay) {
		// Exited cleanly; only the abandoned pipes were still open.
		logger.Debug("output left open by a background process", "drain_delay", r.DrainDelay)
		runErr = nil
	}

	status := ExitStatus{Kind: KindSuccess}
	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(runErr, &exitErr):
			if sig, ok := exitSignal(exitErr.ProcessState); ok {
				status = ExitStatus{Kind: KindSignal, Signal: sig}
			} else {
				status = ExitStatus{Kind: KindExitCode, Code: exitErr.ExitCode()}
			}
		default:
			ioErrs = append(ioErrs, fmt.Sprintf("output: %v", runErr))
			if cmd.ProcessState != nil && cmd.ProcessState.ExitCode() != 0 {
				status = ExitStatus{Kind: KindExitCode, Code: cmd.ProcessState.ExitCode()}
			}
		}
	}
	res.IOError = strings.Join(ioErrs, "; ")
	if res.IOError != "" {
		logger.Warn("command stream error", "error", res.IOError)
	}

	return finish(res, status, logger)
}

// terminate stops a running child: SIGTERM, grace period, then SIGKILL.
// It returns the Wait error once the child has been reaped.
func (r *Runner) terminate(cmd *exec.Cmd, waitErr <-chan error, logger *slog.Logger) error {
	logger.Debug("cancelling command, sending SIGTERM")
	if err := terminateGroup(cmd); err != nil {
		logger.Error("failed to send SIGTERM", "error", err)
	}

	grace := time.NewTimer(r.GracePeriod)
	defer grace.Stop()

	select {
	case err := <-waitErr:
		return err
	case <-grace.C:
		logger.Warn("command did not exit after SIGTERM, sending SIGKILL", "grace", r.GracePeriod)
		if err := killGroup(cmd); err != nil {
			logger.Error("failed to send SIGKILL", "error", err)
		}
		return <-waitErr
	}
}

func spawnFailed(res Result, err error, logger *slog.Logger) Result {
	res.Exhausted = isResourceExhausted(err)
	logger.Warn("command spawn failed", "error", err, "exhausted", res.Exhausted)
	return finish(res, ExitStatus{Kind: KindSpawnFailed, Message: err.Error()}, logger)
}

func finish(res Result, status ExitStatus, logger *slog.Logger) Result {
	res.Status = status
	res.FinishedAt = time.Now()
	logger.Debug("command finished",
		"status", status.String(),
		"duration", res.Duration(),
		"stdout_bytes", len(res.Stdout),
		"stderr_bytes", len(res.Stderr),
	)
	return res
}
