// Package eventbus carries assignment status-transition events from the
// scheduling core to in-process consumers (log sink, host notifier).
// Delivery is best-effort: events are a transport concern, never part
// of the core's correctness.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event describes one schedule assignment status transition
type Event struct {
	Type        string    // e.g. "assignment.scheduled"
	Time        time.Time
	PostID      string
	AccountID   string
	Status      string
	ScheduledAt time.Time
	Error       string // set on failed transitions
}

// Event types emitted by the scheduling policy
const (
	TypeScheduled   = "assignment.scheduled"
	TypeUnscheduled = "assignment.unscheduled"
	TypePublishing  = "assignment.publishing"
	TypePublished   = "assignment.published"
	TypeFailed      = "assignment.failed"
)

// Bus is an in-memory fanout of schedule events.
//
// Publish never blocks; a subscriber that cannot keep up with its
// buffer loses events.
type Bus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

// New creates an empty bus
func New() *Bus {
	return &Bus{subs: map[uint64]chan Event{}}
}

// Publish delivers the event to every subscriber without blocking
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	chs := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a consumer with the given channel buffer and
// returns the channel plus an unsubscribe function. Unsubscribe closes
// the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}
