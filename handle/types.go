package handle

import (
	"fmt"
	"sync"
)

// Handle is an opaque reference to a native owner.
// Handle 0 is reserved and always invalid.
type Handle uint64

// Invalid is the sentinel for an unbound or invalidated handle.
const Invalid Handle = 0

// Valid reports whether h is not the invalidated sentinel.
func (h Handle) Valid() bool {
	return h != Invalid
}

func (h Handle) String() string {
	return fmt.Sprintf("0x%x", uint64(h))
}

// EventType identifies a handle lifecycle notification.
type EventType uint8

const (
	EventBound EventType = iota
	EventForwarded
	EventSkipped
	EventInvalidated
	EventReleased
)

func (t EventType) String() string {
	switch t {
	case EventBound:
		return "bound"
	case EventForwarded:
		return "forwarded"
	case EventSkipped:
		return "skipped"
	case EventInvalidated:
		return "invalidated"
	case EventReleased:
		return "released"
	default:
		return fmt.Sprintf("event(%d)", uint8(t))
	}
}

// Event represents a handle lifecycle event.
type Event struct {
	Err       error
	Component string
	Entry     string
	Handle    Handle
	Type      EventType
}

// Observer receives notifications about handle lifecycle events.
// Observers are called synchronously on the goroutine that caused the event
// and must not block.
type Observer interface {
	OnHandleEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnHandleEvent(e Event) {
	f(e)
}

// Observers fans an event out to every non-nil observer in order.
type Observers []Observer

func (o Observers) OnHandleEvent(e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.OnHandleEvent(e)
		}
	}
}

// Dropper is optionally implemented by arena values that need cleanup.
type Dropper interface {
	Drop()
}

// Recorder is an Observer that keeps every event it sees.
type Recorder struct {
	events []Event
	mu     sync.Mutex
}

func (r *Recorder) OnHandleEvent(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many recorded events have the given type.
func (r *Recorder) Count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}
