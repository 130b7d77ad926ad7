package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/putput/internal/command"
	"github.com/mattjoyce/putput/internal/dispatch"
	"github.com/mattjoyce/putput/internal/runner"
)

// fakeClock only fires timers when the test says the window elapsed.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Elapse fires every armed timer and returns how many fired.
func (c *fakeClock) Elapse() int {
	return c.fire(false)
}

// FireAll also runs stopped timers, as if each fired just before Stop.
func (c *fakeClock) FireAll() int {
	return c.fire(true)
}

func (c *fakeClock) fire(includeStopped bool) int {
	c.mu.Lock()
	var due []func()
	for _, t := range c.timers {
		if t.fired || (t.stopped && !includeStopped) {
			continue
		}
		t.fired = true
		due = append(due, t.f)
	}
	c.mu.Unlock()
	for _, f := range due {
		f()
	}
	return len(due)
}

func (c *fakeClock) Armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeDispatcher hands out runs whose results the test resolves by hand.
type fakeDispatcher struct {
	mu       sync.Mutex
	gen      uint64
	runs     []*fakeRun
	shutdown bool
}

type fakeRun struct {
	gen     uint64
	input   string
	size    int
	updates chan runner.Result
	done    chan struct{}
	once    sync.Once
}

func (d *fakeDispatcher) Dispatch(set command.Set, input []byte) *dispatch.Run {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	fr := &fakeRun{
		gen:     d.gen,
		input:   string(input),
		size:    set.Len(),
		updates: make(chan runner.Result, set.Len()),
		done:    make(chan struct{}),
	}
	d.runs = append(d.runs, fr)
	return &dispatch.Run{Generation: fr.gen, Size: fr.size, Updates: fr.updates, Done: fr.done}
}

func (d *fakeDispatcher) Supersede() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	return d.gen
}

func (d *fakeDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shutdown = true
	for _, fr := range d.runs {
		fr.finish()
	}
	return nil
}

func (d *fakeDispatcher) Runs() []*fakeRun {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeRun(nil), d.runs...)
}

func (fr *fakeRun) resolve(slot int, stdout string) {
	fr.updates <- runner.Result{
		Index:      slot,
		Generation: fr.gen,
		Stdout:     []byte(stdout),
		Status:     runner.ExitStatus{Kind: runner.KindSuccess},
	}
}

func (fr *fakeRun) finish() {
	fr.once.Do(func() {
		close(fr.updates)
		close(fr.done)
	})
}

// recorder is a Sink that keeps every delivered snapshot.
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) Deliver(s Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *recorder) All() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

func (r *recorder) Latest() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return Snapshot{}, false
	}
	return r.snaps[len(r.snaps)-1], true
}

// waitFor blocks until the latest delivered snapshot satisfies pred.
func (r *recorder) waitFor(t *testing.T, pred func(Snapshot) bool) Snapshot {
	t.Helper()
	var got Snapshot
	require.Eventually(t, func() bool {
		s, ok := r.Latest()
		if ok && pred(s) {
			got = s
			return true
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)
	return got
}

// requireMonotonic checks that generations were delivered in non-decreasing order.
func (r *recorder) requireMonotonic(t *testing.T) {
	t.Helper()
	var last uint64
	for i, s := range r.All() {
		require.GreaterOrEqual(t, s.Generation, last, "snapshot %d went backwards", i)
		last = s.Generation
	}
}
