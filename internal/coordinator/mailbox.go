package coordinator

import (
	"context"
	"sync"
)

// mailbox forwards snapshots to a sink from its own goroutine. It holds at
// most one undelivered snapshot: a newer put replaces an older one, so a
// slow sink sees the latest state without the producer ever blocking.
type mailbox struct {
	mu      sync.Mutex
	pending *Snapshot
	lastGen uint64

	notify  chan struct{}
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
	started bool
}

func newMailbox() *mailbox {
	return &mailbox{
		notify:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// put queues s for delivery. Snapshots older than one already queued or
// delivered are dropped.
func (m *mailbox) put(s Snapshot) {
	m.mu.Lock()
	if s.Generation < m.lastGen || (m.pending != nil && s.Generation < m.pending.Generation) {
		m.mu.Unlock()
		return
	}
	m.pending = &s
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) take() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return Snapshot{}, false
	}
	s := *m.pending
	m.pending = nil
	m.lastGen = s.Generation
	return s, true
}

// start launches the delivery goroutine. Only the first call has effect.
func (m *mailbox) start(sink Sink) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go func() {
		defer close(m.stopped)
		for {
			select {
			case <-m.notify:
				if s, ok := m.take(); ok {
					sink.Deliver(s)
				}
			case <-m.quit:
				// Flush the final state.
				if s, ok := m.take(); ok {
					sink.Deliver(s)
				}
				return
			}
		}
	}()
}

// stop flushes the last snapshot and waits for the goroutine, bounded by ctx.
func (m *mailbox) stop(ctx context.Context) error {
	m.once.Do(func() { close(m.quit) })

	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return nil
	}

	select {
	case <-m.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
