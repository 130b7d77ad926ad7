package dispatch

import (
	"bytes"
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/putput/internal/command"
	"github.com/mattjoyce/putput/internal/log"
	"github.com/mattjoyce/putput/internal/runner"
)

// Executor runs one job to completion. *runner.Runner implements it.
type Executor interface {
	Run(ctx context.Context, job runner.Job) runner.Result
}

// Run is the handle for one dispatched generation.
type Run struct {
	Generation uint64
	// Size is the number of commands in the generation.
	Size int
	// Updates yields one result per command, in completion order, and is
	// closed after the last one.
	Updates <-chan runner.Result
	// Done is closed once every runner of the generation has returned.
	Done <-chan struct{}

	cancel context.CancelFunc
}

// Cancel stops the generation's runners.
func (r *Run) Cancel() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Dispatcher starts generations of runners.
type Dispatcher struct {
	exec   Executor
	logger *slog.Logger

	base context.Context
	stop context.CancelFunc

	mu      sync.Mutex
	lastGen uint64
	active  map[uint64]*Run
}

// New creates a Dispatcher that runs jobs with exec.
func New(exec Executor) *Dispatcher {
	base, stop := context.WithCancel(context.Background())
	return &Dispatcher{
		exec:   exec,
		logger: log.WithComponent("dispatch"),
		base:   base,
		stop:   stop,
		active: make(map[uint64]*Run),
	}
}

// Dispatch starts one runner per spec for a new generation and returns
// immediately. input is copied so the caller may keep editing its buffer.
func (d *Dispatcher) Dispatch(set command.Set, input []byte) *Run {
	payload := bytes.Clone(input)
	if payload == nil {
		payload = []byte{}
	}

	d.mu.Lock()
	d.lastGen++
	gen := d.lastGen
	d.cancelOutstandingLocked(gen)

	ctx, cancel := context.WithCancel(d.base)
	updates := make(chan runner.Result, set.Len())
	done := make(chan struct{})
	run := &Run{
		Generation: gen,
		Size:       set.Len(),
		Updates:    updates,
		Done:       done,
		cancel:     cancel,
	}
	d.active[gen] = run
	d.mu.Unlock()

	d.logger.Info("dispatch started", "generation", gen, "commands", set.Len(), "input_bytes", len(payload))

	var g errgroup.Group
	for i := range set.Len() {
		job := runner.Job{
			Index:      i,
			Generation: gen,
			Spec:       set.At(i),
			Input:      payload,
		}
		g.Go(func() error {
			// Buffered to the generation size, never blocks.
			updates <- d.exec.Run(ctx, job)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(updates)
		cancel()

		d.mu.Lock()
		delete(d.active, gen)
		d.mu.Unlock()
		close(done)

		d.logger.Debug("generation joined", "generation", gen)
	}()

	return run
}

// Supersede cancels all outstanding work and allocates a generation with no
// runners. Consumers use it to invalidate what is on screen without running
// anything.
func (d *Dispatcher) Supersede() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastGen++
	d.cancelOutstandingLocked(d.lastGen)
	return d.lastGen
}

// Latest returns the most recently allocated generation, 0 if none.
func (d *Dispatcher) Latest() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastGen
}

// Outstanding returns how many generations still have runners alive,
// including superseded ones that are being terminated.
func (d *Dispatcher) Outstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.active)
}

// Shutdown cancels every outstanding runner and waits until all of them
// have returned or ctx is done. Dispatches after Shutdown resolve as cancelled.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.stop()

	d.mu.Lock()
	pending := make([]*Run, 0, len(d.active))
	for _, run := range d.active {
		run.cancel()
		pending = append(pending, run)
	}
	d.mu.Unlock()

	d.logger.Info("shutting down", "outstanding", len(pending))
	for _, run := range pending {
		select {
		case <-run.Done:
		case <-ctx.Done():
			d.logger.Warn("shutdown timed out with runners outstanding", "generation", run.Generation)
			return ctx.Err()
		}
	}
	return nil
}

func (d *Dispatcher) cancelOutstandingLocked(newer uint64) {
	for gen, run := range d.active {
		if gen < newer {
			run.cancel()
			d.logger.Debug("generation superseded", "generation", gen, "by", newer)
		}
	}
}
