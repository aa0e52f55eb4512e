// Package transparency provides operation visibility for instinct. The
// event bus collects policy events (selections, updates, episode ends)
// and dispatches them to subscribers without ever blocking the emitter.
package transparency

import (
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one policy event on the bus.
type Event struct {
	ID        uint64
	Name      string
	Timestamp time.Time
	Payload   map[string]any
}

// EventBus collects events and dispatches to subscribers. It uses
// batching to reduce consumer churn and sequence numbers for ordering.
// Emission is fire-and-forget: full subscriber channels drop events.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
	enabled     atomic.Bool

	batchWindow time.Duration
	batchLimit  int

	buffer     []Event
	bufferMu   sync.Mutex
	flushTimer *time.Timer

	sequence atomic.Uint64
}

// NewEventBus creates a new event bus with default batching settings.
func NewEventBus() *EventBus {
	return &EventBus{
		batchWindow: 100 * time.Millisecond,
		batchLimit:  10,
		buffer:      make([]Event, 0, 20),
	}
}

// Enable activates the event bus.
func (b *EventBus) Enable() {
	b.enabled.Store(true)
}

// Disable deactivates the event bus and flushes pending events.
func (b *EventBus) Disable() {
	b.enabled.Store(false)
	b.Flush()
}

// IsEnabled returns true if the event bus is active.
func (b *EventBus) IsEnabled() bool {
	return b.enabled.Load()
}

// Subscribe returns a buffered channel that will receive events.
func (b *EventBus) Subscribe() <-chan Event {
	ch := make(chan Event, 50)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel.
func (b *EventBus) Unsubscribe(ch <-chan Event) {
	if ch == nil {
		return
	}
	target := reflect.ValueOf(ch).Pointer()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscribers {
		if reflect.ValueOf(sub).Pointer() == target {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(sub)
			break
		}
	}
}

// Publish enqueues a named event. Safe to call from any goroutine; never
// blocks and never returns an error to the caller.
func (b *EventBus) Publish(name string, payload map[string]any) {
	b.Emit(Event{Name: name, Payload: payload})
}

// Emit sends an event to all subscribers (with batching).
func (b *EventBus) Emit(event Event) {
	if !b.enabled.Load() {
		return
	}

	event.ID = b.sequence.Add(1)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.bufferMu.Lock()
	b.buffer = append(b.buffer, event)

	if len(b.buffer) >= b.batchLimit {
		b.flushLocked()
	} else if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.batchWindow, func() {
			b.bufferMu.Lock()
			b.flushLocked()
			b.bufferMu.Unlock()
		})
	}
	b.bufferMu.Unlock()
}

// EmitImmediate sends an event bypassing the batch buffer.
func (b *EventBus) EmitImmediate(event Event) {
	if !b.enabled.Load() {
		return
	}

	event.ID = b.sequence.Add(1)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	for _, sub := range b.subscribers {
		select {
		case sub <- event:
		default: // Drop if channel full
		}
	}
	b.mu.RUnlock()
}

// Flush dispatches all buffered events immediately.
func (b *EventBus) Flush() {
	b.bufferMu.Lock()
	b.flushLocked()
	b.bufferMu.Unlock()
}

// flushLocked sends buffered events (must hold bufferMu).
func (b *EventBus) flushLocked() {
	if len(b.buffer) == 0 {
		return
	}

	if b.flushTimer != nil {
		b.flushTimer.Stop()
		b.flushTimer = nil
	}

	sort.Slice(b.buffer, func(i, j int) bool {
		return b.buffer[i].ID < b.buffer[j].ID
	})

	b.mu.RLock()
	for _, sub := range b.subscribers {
		for _, event := range b.buffer {
			select {
			case sub <- event:
			default: // Drop if channel full
			}
		}
	}
	b.mu.RUnlock()

	b.buffer = b.buffer[:0]
}

// Close shuts down the event bus and all subscriber channels.
func (b *EventBus) Close() {
	b.Disable()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		close(sub)
	}
	b.subscribers = nil
}

// Stats returns current event bus statistics.
func (b *EventBus) Stats() BusStats {
	b.mu.RLock()
	b.bufferMu.Lock()
	defer b.bufferMu.Unlock()
	defer b.mu.RUnlock()

	return BusStats{
		Enabled:         b.enabled.Load(),
		SubscriberCount: len(b.subscribers),
		BufferedEvents:  len(b.buffer),
		TotalEmitted:    b.sequence.Load(),
	}
}

// BusStats holds event bus statistics.
type BusStats struct {
	Enabled         bool
	SubscriberCount int
	BufferedEvents  int
	TotalEmitted    uint64
}
