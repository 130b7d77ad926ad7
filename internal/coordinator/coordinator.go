// Package coordinator owns the current input and decides when to dispatch.
//
// The Coordinator is a three-state machine (Idle, Debouncing, Running). An
// explicit Submit dispatches immediately; with auto-run enabled, text changes
// arm a debounce timer and the settled input is dispatched when it fires.
// A new dispatch never waits for the outstanding one: it supersedes it.
//
// Every mutation of the current generation and its result set happens under
// one mutex, so accepting a result is atomic with the generation check.
// Results from older generations are dropped. Snapshots reach the Sink
// through a delivery goroutine in non-decreasing generation order.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mattjoyce/putput/internal/command"
	"github.com/mattjoyce/putput/internal/dispatch"
	"github.com/mattjoyce/putput/internal/events"
	"github.com/mattjoyce/putput/internal/log"
	"github.com/mattjoyce/putput/internal/runner"
)

// DefaultDebounce is the auto-run settle window.
const DefaultDebounce = 200 * time.Millisecond

// Options configures a Coordinator. Zero values select defaults.
type Options struct {
	AutoRun   bool
	Debounce  time.Duration
	Clock     Clock
	Clipboard Clipboard
	Hub       *events.Hub
}

// ReloadOptions carries the settings that may change on a config reload.
type ReloadOptions struct {
	Debounce time.Duration
}

// Coordinator serializes input events, dispatches and result acceptance.
type Coordinator struct {
	disp   Dispatcher
	clock  Clock
	clip   Clipboard
	hub    *events.Hub
	box    *mailbox
	logger *slog.Logger

	mu        sync.Mutex
	set       command.Set
	debounce  time.Duration
	autoRun   bool
	state     State
	input     string
	timer     Timer
	timerSeq  uint64
	gen       uint64
	genInput  string
	slots     []Slot
	resolved  int
	exhausted int
	// exhaustedEpisode suppresses repeated exhaustion reports until a
	// generation spawns successfully again.
	exhaustedEpisode bool
	closed           bool
}

// New creates a Coordinator over set. Snapshots are buffered until Start.
func New(disp Dispatcher, set command.Set, opts Options) *Coordinator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	c := &Coordinator{
		disp:     disp,
		clock:    opts.Clock,
		clip:     opts.Clipboard,
		hub:      opts.Hub,
		box:      newMailbox(),
		logger:   log.WithComponent("coordinator"),
		set:      set,
		debounce: opts.Debounce,
		autoRun:  opts.AutoRun,
		state:    Idle,
	}
	c.slots = idleSlots(set)
	c.publishLocked()
	return c
}

// Start begins delivering snapshots to sink, beginning with the current one.
func (c *Coordinator) Start(sink Sink) {
	c.box.start(sink)
}

// Submit records text and dispatches it immediately.
func (c *Coordinator) Submit(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.input = text
	c.dispatchLocked("submit")
}

// TextChanged records text. With auto-run enabled it (re)arms the debounce
// timer; a Running coordinator stays Running until the timer fires.
func (c *Coordinator) TextChanged(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.input = text
	if !c.autoRun {
		return
	}
	c.armTimerLocked()
	if c.state == Idle {
		c.state = Debouncing
		c.publishLocked()
	}
}

// SetAutoRun switches the auto-run policy. Turning it off disarms a pending
// debounce.
func (c *Coordinator) SetAutoRun(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAutoRunLocked(on)
}

// ToggleAutoRun flips the auto-run policy and returns the new value.
func (c *Coordinator) ToggleAutoRun() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAutoRunLocked(!c.autoRun)
	return c.autoRun
}

func (c *Coordinator) setAutoRunLocked(on bool) {
	if c.closed || c.autoRun == on {
		return
	}
	c.autoRun = on
	if !on && c.timer != nil {
		c.stopTimerLocked()
		if c.state == Debouncing {
			c.state = Idle
		}
	}
	c.logger.Info("auto-run changed", "enabled", on)
	c.publishLocked()
}

// Clear empties the input, supersedes running work and publishes a blank
// result set.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.input = ""
	c.blankLocked()
}

// Reload replaces the command set. Running work is superseded and, when
// there is input, the new set is dispatched right away.
func (c *Coordinator) Reload(set command.Set, opts ReloadOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.set = set
	if opts.Debounce > 0 {
		c.debounce = opts.Debounce
	}
	c.blankLocked()
	c.hub.Emit(events.ConfigReloaded, c.gen, -1, fmt.Sprintf("%d commands", set.Len()))
	c.logger.Info("command set reloaded", "commands", set.Len(), "generation", c.gen)

	if c.input != "" {
		c.dispatchLocked("reload")
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the current result set.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Selection returns the text Copy would write for panel. seen is the
// generation the caller rendered; 0 means "whatever is current".
func (c *Coordinator) Selection(panel int, seen uint64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if panel < 0 || panel >= len(c.slots) {
		return "", ErrNoSuchPanel
	}
	if seen != 0 && seen != c.gen {
		return "", ErrStaleSelection
	}
	slot := c.slots[panel]
	if slot.State != SlotDone || slot.Result == nil {
		return "", ErrStaleSelection
	}
	return strings.TrimRight(string(slot.Result.Stdout), " \t\r\n"), nil
}

// Copy writes the stdout of panel to the clipboard.
func (c *Coordinator) Copy(panel int, seen uint64) error {
	text, err := c.Selection(panel, seen)
	if err != nil {
		c.hub.Emit(events.CopyStale, seen, panel, err.Error())
		c.logger.Debug("copy rejected", "slot", panel, "seen_generation", seen, "error", err)
		return err
	}
	if c.clip == nil {
		return ErrNoClipboard
	}
	if err := c.clip.WriteAll(text); err != nil {
		c.logger.Warn("clipboard write failed", "slot", panel, "error", err)
		return fmt.Errorf("write clipboard: %w", err)
	}
	c.hub.Emit(events.CopySucceeded, seen, panel, fmt.Sprintf("%d bytes", len(text)))
	return nil
}

// Close stops the timer, shuts the dispatcher down and flushes the final
// snapshot, all bounded by ctx.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.stopTimerLocked()
	c.mu.Unlock()

	// Results of the outstanding generation may still be accepted while
	// the dispatcher terminates its runners.
	shutdownErr := c.disp.Shutdown(ctx)

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	return errors.Join(shutdownErr, c.box.stop(ctx))
}

func (c *Coordinator) dispatchLocked(reason string) {
	c.stopTimerLocked()

	prev, prevDone := c.gen, c.state != Running
	run := c.disp.Dispatch(c.set, []byte(c.input))
	if prev != 0 && !prevDone {
		c.hub.Emit(events.GenerationSuperseded, prev, -1, fmt.Sprintf("by %d", run.Generation))
	}

	c.gen = run.Generation
	c.genInput = c.input
	c.slots = pendingSlots(c.set)
	c.resolved = 0
	c.exhausted = 0
	c.state = Running

	c.logger.Debug("dispatched", "generation", c.gen, "reason", reason, "commands", run.Size)
	c.hub.Emit(events.DispatchStarted, c.gen, -1, reason)

	if run.Size == 0 {
		c.completeLocked()
	}
	c.publishLocked()

	go c.consume(run)
}

// consume feeds one generation's results back under the lock.
func (c *Coordinator) consume(run *dispatch.Run) {
	for res := range run.Updates {
		c.accept(res)
	}
}

func (c *Coordinator) accept(res runner.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if res.Generation != c.gen {
		c.logger.Debug("dropping stale result", "generation", res.Generation, "current", c.gen, "slot", res.Index)
		return
	}
	if res.Index < 0 || res.Index >= len(c.slots) || c.slots[res.Index].State == SlotDone {
		return
	}

	c.slots[res.Index] = Slot{
		Index:   res.Index,
		Command: c.slots[res.Index].Command,
		State:   SlotDone,
		Result:  &res,
	}
	c.resolved++
	if res.Exhausted {
		c.exhausted++
	}
	c.hub.Emit(events.SlotResolved, res.Generation, res.Index, res.Status.String())

	if c.resolved == len(c.slots) {
		c.completeLocked()
	}
	c.publishLocked()
}

func (c *Coordinator) completeLocked() {
	if n := len(c.slots); n > 0 && c.exhausted == n {
		if !c.exhaustedEpisode {
			c.exhaustedEpisode = true
			c.logger.Error("cannot spawn any command, system resources exhausted", "generation", c.gen, "commands", n)
			c.hub.Emit(events.ResourcesExhausted, c.gen, -1, "")
		}
		c.stopTimerLocked()
		c.state = Idle
		return
	}
	c.exhaustedEpisode = false

	if c.timer != nil {
		c.state = Debouncing
	} else {
		c.state = Idle
	}
	c.hub.Emit(events.GenerationCompleted, c.gen, -1, "")
}

// blankLocked supersedes outstanding work and publishes an all-idle set.
func (c *Coordinator) blankLocked() {
	c.stopTimerLocked()
	if c.state == Running && c.gen != 0 {
		c.hub.Emit(events.GenerationSuperseded, c.gen, -1, "cleared")
	}
	c.gen = c.disp.Supersede()
	c.genInput = ""
	c.slots = idleSlots(c.set)
	c.resolved = 0
	c.exhausted = 0
	c.state = Idle
	c.publishLocked()
}

func (c *Coordinator) armTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timerSeq++
	seq := c.timerSeq
	c.timer = c.clock.AfterFunc(c.debounce, func() { c.fire(seq) })
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerSeq++
}

func (c *Coordinator) fire(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// A stop or re-arm after this fire was scheduled wins.
	if c.closed || seq != c.timerSeq {
		return
	}
	c.timer = nil
	c.dispatchLocked("auto-run")
}

func (c *Coordinator) publishLocked() {
	c.box.put(c.snapshotLocked())
}

func (c *Coordinator) snapshotLocked() Snapshot {
	slots := make([]Slot, len(c.slots))
	copy(slots, c.slots)
	return Snapshot{
		Generation: c.gen,
		Input:      c.genInput,
		Slots:      slots,
		Complete:   c.state != Running && c.resolved == len(c.slots) && c.gen != 0,
		AutoRun:    c.autoRun,
		State:      c.state,
	}
}

func idleSlots(set command.Set) []Slot {
	slots := make([]Slot, set.Len())
	for i := range slots {
		slots[i] = Slot{Index: i, Command: set.At(i).Raw, State: SlotIdle}
	}
	return slots
}

func pendingSlots(set command.Set) []Slot {
	slots := idleSlots(set)
	for i := range slots {
		slots[i].State = SlotPending
	}
	return slots
}
