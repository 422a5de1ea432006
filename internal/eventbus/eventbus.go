// Package eventbus fans run events out to whoever wants to watch a run:
// metrics sinks, status stores, log tails. Publishing never blocks the
// engine; a subscriber that cannot keep up loses events rather than
// stalling the run.
package eventbus

import "sync"

// Event is an arbitrary event passed on the bus.
type Event interface{}

// DefaultBuffer holds a handful of steps' worth of events. The engine
// publishes several events per step, so subscribers draining on their own
// goroutine keep up comfortably.
const DefaultBuffer = 64

// EventBus is a simple publish/subscribe bus.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is the default EventBus implementation using fan-out channels.
type Bus struct {
	mu     sync.RWMutex
	buf    int
	subs   []chan Event
	closed bool
}

// New creates a Bus whose subscriber channels buffer buf events. A buf of
// zero or less selects DefaultBuffer.
func New(buf int) *Bus {
	if buf <= 0 {
		buf = DefaultBuffer
	}
	return &Bus{buf: buf}
}

// Publish sends the event to all subscribers. Delivery is non-blocking:
// full subscribers miss the event.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, b.buf)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes all subscriber channels and clears the list.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.mu.Unlock()
}
