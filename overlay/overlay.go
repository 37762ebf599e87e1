// Package overlay forwards the lifecycle of a managed modal overlay to the
// native owner whose handle was passed in the overlay's construction
// arguments.
//
// The managed runtime calls the On* methods per its own rules. Each method
// first runs the runtime's own behaviour (Host), then forwards to native
// code unless the overlay has been closed. Close clears the handle before
// asking the runtime to dismiss the overlay, so callbacks triggered by the
// dismissal itself see the cleared handle and forward nothing.
package overlay

import (
	"sync/atomic"

	"github.com/wippyai/native-bridge/handle"
	"github.com/wippyai/native-bridge/payload"
)

// OwnerHandleKey is the construction-argument key carrying the native owner
// handle.
const OwnerHandleKey = "nativebridge.overlay.owner_handle"

// Native entry point names.
const (
	EntryCreated           = "overlay_created"
	EntryStarted           = "overlay_started"
	EntryPermissionsResult = "overlay_permissions_result"
	EntryActivityResult    = "overlay_activity_result"
)

// Native is the native side of the overlay bridge. Return values are
// surfaced unchanged to the caller of the corresponding On* method.
type Native interface {
	OverlayCreated(h handle.Handle, state payload.Bundle) error
	OverlayStarted(h handle.Handle) error
	OverlayPermissionsResult(h handle.Handle, requestCode int32, permissions []string, grantResults []int32) error
	OverlayActivityResult(h handle.Handle, requestCode, resultCode int32, data *payload.Intent) error
}

// Host is the managed runtime's own overlay behaviour, run before any
// forward. Dismiss asks the runtime to tear the overlay down.
type Host interface {
	OnCreate(state payload.Bundle)
	OnStart()
	OnActivityResult(requestCode, resultCode int32, data *payload.Intent)
	Dismiss()
}

// NopHost is a Host that does nothing.
type NopHost struct{}

func (NopHost) OnCreate(payload.Bundle)                        {}
func (NopHost) OnStart()                                       {}
func (NopHost) OnActivityResult(int32, int32, *payload.Intent) {}
func (NopHost) Dismiss()                                       {}

// State is the overlay lifecycle position as seen by the bridge.
type State int32

const (
	StateConstructed State = iota
	StateCreated
	StateStarted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Option configures an Overlay.
type Option func(*Overlay)

// WithHost sets the runtime behaviour run before each forward.
func WithHost(h Host) Option {
	return func(o *Overlay) {
		if h != nil {
			o.host = h
		}
	}
}

// WithObserver reports handle events of the overlay's binding.
func WithObserver(obs handle.Observer) Option {
	return func(o *Overlay) {
		o.observer = obs
	}
}

// Overlay binds a managed overlay to its native owner.
type Overlay struct {
	native   Native
	host     Host
	observer handle.Observer
	binding  *handle.Binding
	args     payload.Bundle
	state    atomic.Int32
	closed   atomic.Bool
}

// New creates an overlay from its construction arguments. A missing key or
// nil args leave the overlay unbound: it never forwards.
func New(args payload.Bundle, native Native, opts ...Option) *Overlay {
	o := &Overlay{
		native: native,
		host:   NopHost{},
		args:   args,
	}
	for _, opt := range opts {
		opt(o)
	}

	var h handle.Handle
	if v, ok := args.Uint64(OwnerHandleKey); ok {
		h = handle.Handle(v)
	}
	o.binding = handle.NewBinding("overlay", h, o.observer)
	return o
}

// Handle returns the owner handle, handle.Invalid once closed.
func (o *Overlay) Handle() handle.Handle {
	return o.binding.Handle()
}

// Args returns the construction arguments.
func (o *Overlay) Args() payload.Bundle {
	return o.args
}

// State returns the lifecycle state.
func (o *Overlay) State() State {
	return State(o.state.Load())
}

// Closed reports whether Close has been called.
func (o *Overlay) Closed() bool {
	return o.closed.Load()
}

// OnCreate runs the runtime's create behaviour, then forwards the state.
func (o *Overlay) OnCreate(state payload.Bundle) error {
	o.host.OnCreate(state)
	o.advance(StateCreated)

	_, err := o.binding.Forward(EntryCreated, func(h handle.Handle) error {
		return o.native.OverlayCreated(h, state)
	})
	return err
}

// OnStart runs the runtime's start behaviour, then forwards.
func (o *Overlay) OnStart() error {
	o.host.OnStart()
	o.advance(StateStarted)

	_, err := o.binding.Forward(EntryStarted, func(h handle.Handle) error {
		return o.native.OverlayStarted(h)
	})
	return err
}

// OnRequestPermissionsResult forwards the result verbatim. Matching
// permissions[i] with grantResults[i] is left to native code.
func (o *Overlay) OnRequestPermissionsResult(requestCode int32, permissions []string, grantResults []int32) error {
	_, err := o.binding.Forward(EntryPermissionsResult, func(h handle.Handle) error {
		return o.native.OverlayPermissionsResult(h, requestCode, permissions, grantResults)
	})
	return err
}

// OnActivityResult runs the runtime's result behaviour, then forwards.
func (o *Overlay) OnActivityResult(requestCode, resultCode int32, data *payload.Intent) error {
	o.host.OnActivityResult(requestCode, resultCode, data)

	_, err := o.binding.Forward(EntryActivityResult, func(h handle.Handle) error {
		return o.native.OverlayActivityResult(h, requestCode, resultCode, data)
	})
	return err
}

// Close clears the owner handle, then asks the runtime to dismiss the
// overlay. Dismissal is requested once however often Close is called.
// Close does not wait for forwards already running; see Quiesce.
func (o *Overlay) Close() {
	o.binding.Invalidate()
	o.state.Store(int32(StateClosed))
	if o.closed.CompareAndSwap(false, true) {
		o.host.Dismiss()
	}
}

// Quiesce blocks until forwards that started before Close have returned.
// It must not be called from inside a forward of this overlay.
func (o *Overlay) Quiesce() {
	o.binding.Quiesce()
}

func (o *Overlay) advance(to State) {
	for {
		cur := o.state.Load()
		if State(cur) >= to {
			return
		}
		if o.state.CompareAndSwap(cur, int32(to)) {
			return
		}
	}
}
