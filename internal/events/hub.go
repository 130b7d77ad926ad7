// Package events is an in-memory activity feed. The coordinator publishes
// what happened to each generation; the TUI status bar and the headless
// verbose mode subscribe.
package events

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Type names an activity.
type Type string

const (
	DispatchStarted      Type = "dispatch.started"
	SlotResolved         Type = "slot.resolved"
	GenerationCompleted  Type = "generation.completed"
	GenerationSuperseded Type = "generation.superseded"
	CopySucceeded        Type = "copy.succeeded"
	CopyStale            Type = "copy.stale"
	ConfigReloaded       Type = "config.reloaded"
	ResourcesExhausted   Type = "resources.exhausted"
)

// DefaultCapacity is the ring buffer size used when NewHub gets <= 0.
const DefaultCapacity = 64

// Event is one published activity. Slot is -1 when the event is not about a
// single panel.
type Event struct {
	ID         int64     `json:"id"`
	Type       Type      `json:"type"`
	At         time.Time `json:"at"`
	Generation uint64    `json:"generation,omitempty"`
	Slot       int       `json:"slot"`
	Message    string    `json:"message,omitempty"`
}

func (e Event) String() string {
	s := string(e.Type)
	if e.Generation != 0 {
		s += fmt.Sprintf(" gen=%d", e.Generation)
	}
	if e.Slot >= 0 {
		s += fmt.Sprintf(" slot=%d", e.Slot+1)
	}
	if e.Message != "" {
		s += " " + e.Message
	}
	return s
}

// Hub is an in-memory pub/sub with a small ring buffer for late subscribers.
type Hub struct {
	nextID atomic.Int64
	now    func() time.Time

	mu    sync.Mutex
	ring  []Event
	start int
	size  int

	subs      map[int]chan Event
	nextSubID int
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Hub{
		now:  time.Now,
		ring: make([]Event, capacity),
		subs: make(map[int]chan Event),
	}
}

// Publish records ev and fans it out. ID and At are assigned here.
// A nil Hub discards everything.
func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	ev.ID = h.nextID.Add(1)
	ev.At = h.now().UTC()

	h.mu.Lock()
	h.pushLocked(ev)
	for _, ch := range h.subs {
		// Don't let slow subscribers block the coordinator.
		select {
		case ch <- ev:
		default:
		}
	}
	h.mu.Unlock()
}

// Emit is shorthand for publishing an event of type t.
func (h *Hub) Emit(t Type, gen uint64, slot int, msg string) {
	h.Publish(Event{Type: t, Generation: gen, Slot: slot, Message: msg})
}

// Subscribe returns a channel of future events and a cancel func that
// closes it. Cancel is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Event, 128)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

// SnapshotSince returns buffered events with ID > lastID, oldest-first.
// If lastID is 0, the full ring buffer snapshot is returned.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, h.size)
	for i := 0; i < h.size; i++ {
		ev := h.ring[(h.start+i)%len(h.ring)]
		if lastID == 0 || ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

func (h *Hub) pushLocked(ev Event) {
	capacity := len(h.ring)
	if capacity == 0 {
		return
	}

	if h.size < capacity {
		idx := (h.start + h.size) % capacity
		h.ring[idx] = ev
		h.size++
		return
	}

	// Overwrite oldest.
	h.ring[h.start] = ev
	h.start = (h.start + 1) % capacity
}
