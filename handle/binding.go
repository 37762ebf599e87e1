package handle

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Binding pairs a managed-side object with the handle of its native owner.
//
// The handle moves from bound to invalidated exactly once and never back.
// Every call into native code goes through Forward, which checks the handle
// and counts the call as in flight while it runs, so that an owner tearing
// itself down can Invalidate and then Quiesce before releasing native memory.
type Binding struct {
	observer  Observer
	idle      *sync.Cond
	component string
	handle    atomic.Uint64
	inflight  int
	mu        sync.Mutex
}

// NewBinding creates a binding for component holding h. A zero h yields a
// binding that never forwards.
func NewBinding(component string, h Handle, obs Observer) *Binding {
	b := &Binding{
		component: component,
		observer:  obs,
	}
	b.idle = sync.NewCond(&b.mu)
	b.handle.Store(uint64(h))
	if h.Valid() {
		b.notify(Event{Type: EventBound, Handle: h})
	}
	return b
}

// Component returns the name the binding reports in events.
func (b *Binding) Component() string {
	return b.component
}

// Handle returns the current handle, Invalid once invalidated.
func (b *Binding) Handle() Handle {
	return Handle(b.handle.Load())
}

// Valid reports whether forwards are still issued.
func (b *Binding) Valid() bool {
	return b.handle.Load() != 0
}

// Invalidate forces the handle to Invalid. It reports whether this call
// performed the transition; later calls are no-ops. Invalidate never blocks
// and may be called from inside a forward.
func (b *Binding) Invalidate() bool {
	old := Handle(b.handle.Swap(0))
	if !old.Valid() {
		return false
	}
	b.notify(Event{Type: EventInvalidated, Handle: old})
	return true
}

// Forward calls fn with the bound handle unless the handle has been
// invalidated, in which case fn is not called and (false, nil) is returned.
// Errors from fn are returned unchanged.
func (b *Binding) Forward(entry string, fn func(Handle) error) (bool, error) {
	b.mu.Lock()
	h := Handle(b.handle.Load())
	if !h.Valid() {
		b.mu.Unlock()
		Logger().Debug("skip forward on invalidated handle",
			zap.String("component", b.component),
			zap.String("entry", entry))
		b.notify(Event{Type: EventSkipped, Entry: entry})
		return false, nil
	}
	b.inflight++
	b.mu.Unlock()

	defer b.done()

	err := fn(h)
	b.notify(Event{Type: EventForwarded, Entry: entry, Handle: h, Err: err})
	return true, err
}

// Quiesce blocks until every forward that passed the guard has returned.
// Combined with a prior Invalidate it guarantees no forward is running or
// can start. Calling Quiesce from inside a forward on the same binding
// deadlocks.
func (b *Binding) Quiesce() {
	b.mu.Lock()
	for b.inflight > 0 {
		b.idle.Wait()
	}
	b.mu.Unlock()
}

// InFlight returns the number of forwards currently running.
func (b *Binding) InFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inflight
}

func (b *Binding) done() {
	b.mu.Lock()
	b.inflight--
	if b.inflight == 0 {
		b.idle.Broadcast()
	}
	b.mu.Unlock()
}

func (b *Binding) notify(e Event) {
	if b.observer == nil {
		return
	}
	e.Component = b.component
	b.observer.OnHandleEvent(e)
}
