package handle

import (
	"io"
	"math"
	"sync"

	"go.uber.org/multierr"

	"github.com/wippyai/native-bridge/errors"
)

// Arena is a generation-checked slot table for native owners.
//
// Handles minted by an arena encode the slot generation in the high 32 bits
// and the slot index plus one in the low 32 bits, so a handle is never 0 and
// a handle to a removed owner never resolves to whatever reuses its slot.
// Only the native side decodes handles; bridges treat them as opaque.
type Arena[T any] struct {
	name      string
	entries   []slot[T]
	freeList  []uint32
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

type slot[T any] struct {
	value T
	gen   uint32
	valid bool
}

// NewArena creates an empty arena. name is reported as the event component.
func NewArena[T any](name string) *Arena[T] {
	return &Arena[T]{
		name:     name,
		entries:  make([]slot[T], 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

func pack(gen, idx uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(idx+1))
}

func unpack(h Handle) (gen, idx uint32, ok bool) {
	low := uint32(uint64(h))
	if low == 0 {
		return 0, 0, false
	}
	return uint32(uint64(h) >> 32), low - 1, true
}

// Insert stores a value and returns its handle.
func (a *Arena[T]) Insert(value T) (Handle, error) {
	a.mu.Lock()

	if a.closed {
		a.mu.Unlock()
		return Invalid, errors.Closed(errors.PhaseRegister, "arena "+a.name)
	}

	var idx uint32
	if n := len(a.freeList); n > 0 {
		idx = a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
	} else {
		if uint64(len(a.entries)) >= math.MaxUint32 {
			a.mu.Unlock()
			return Invalid, errors.New(errors.PhaseRegister, errors.KindExhausted).
				Detail("arena %s has no free slots", a.name).
				Build()
		}
		idx = uint32(len(a.entries))
		a.entries = append(a.entries, slot[T]{gen: 1})
	}

	s := &a.entries[idx]
	s.value = value
	s.valid = true
	h := pack(s.gen, idx)
	a.mu.Unlock()

	a.notify(Event{Type: EventBound, Handle: h})
	return h, nil
}

// Get retrieves a value by handle. Stale handles report false.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	var zero T
	gen, idx, ok := unpack(h)
	if !ok {
		return zero, false
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if int(idx) >= len(a.entries) {
		return zero, false
	}
	s := a.entries[idx]
	if !s.valid || s.gen != gen {
		return zero, false
	}
	return s.value, true
}

// Remove drops a value and returns (value, true) if the handle was live.
// The slot generation is advanced so h is stale from now on.
func (a *Arena[T]) Remove(h Handle) (T, bool) {
	var zero T
	gen, idx, ok := unpack(h)
	if !ok {
		return zero, false
	}

	a.mu.Lock()
	if int(idx) >= len(a.entries) {
		a.mu.Unlock()
		return zero, false
	}
	s := &a.entries[idx]
	if !s.valid || s.gen != gen {
		a.mu.Unlock()
		return zero, false
	}

	value := s.value
	s.value = zero
	s.valid = false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	a.freeList = append(a.freeList, idx)
	a.mu.Unlock()

	err := release(value)
	a.notify(Event{Type: EventReleased, Handle: h, Err: err})
	return value, true
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries) - len(a.freeList)
}

// Each iterates over the values live when it is called until fn returns
// false. fn runs without the arena lock held and may Insert or Remove.
func (a *Arena[T]) Each(fn func(Handle, T) bool) {
	a.mu.RLock()
	n := len(a.entries) - len(a.freeList)
	handles := make([]Handle, 0, n)
	values := make([]T, 0, n)
	for i, s := range a.entries {
		if s.valid {
			handles = append(handles, pack(s.gen, uint32(i)))
			values = append(values, s.value)
		}
	}
	a.mu.RUnlock()

	for i, h := range handles {
		if !fn(h, values[i]) {
			return
		}
	}
}

// Subscribe adds an observer for bound and released events.
func (a *Arena[T]) Subscribe(o Observer) {
	a.obsMu.Lock()
	defer a.obsMu.Unlock()
	a.observers = append(a.observers, o)
}

// Unsubscribe removes an observer. The observer must be comparable.
func (a *Arena[T]) Unsubscribe(o Observer) {
	a.obsMu.Lock()
	defer a.obsMu.Unlock()
	for i, obs := range a.observers {
		if obs == o {
			a.observers = append(a.observers[:i], a.observers[i+1:]...)
			return
		}
	}
}

// Close releases every live value and stops accepting inserts.
// Errors from io.Closer values are combined.
func (a *Arena[T]) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true

	var live []Handle
	var values []T
	for i := range a.entries {
		s := &a.entries[i]
		if s.valid {
			live = append(live, pack(s.gen, uint32(i)))
			values = append(values, s.value)
			var zero T
			s.value = zero
			s.valid = false
		}
	}
	a.entries = nil
	a.freeList = nil
	a.mu.Unlock()

	var errs error
	for i, v := range values {
		err := release(v)
		errs = multierr.Append(errs, err)
		a.notify(Event{Type: EventReleased, Handle: live[i], Err: err})
	}
	return errs
}

func release(v any) error {
	switch r := v.(type) {
	case Dropper:
		r.Drop()
	case io.Closer:
		return r.Close()
	}
	return nil
}

func (a *Arena[T]) notify(e Event) {
	a.obsMu.RLock()
	defer a.obsMu.RUnlock()
	e.Component = a.name
	for _, o := range a.observers {
		o.OnHandleEvent(e)
	}
}
