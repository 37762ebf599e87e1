package proxy

import (
	"sync/atomic"

	"github.com/wippyai/native-bridge/handle"
)

// Native entry point names.
const (
	EntryDispatch = "proxy_dispatch"
	EntryFinalize = "proxy_finalize"
)

// Ref identifies a proxy object to native code.
type Ref uint64

// Dispatcher is the native side of the proxy bridge.
//
// ProxyDispatch performs the structural dispatch for one capability call.
// Its result and error reach the proxy's caller unchanged. ProxyFinalize is
// the reclamation signal sent when no managed reference to the proxy
// remains; it must tolerate an owner that has already started tearing
// itself down.
type Dispatcher interface {
	ProxyDispatch(h handle.Handle, proxy Ref, c Capability, args []any) (any, error)
	ProxyFinalize(h handle.Handle) error
}

// HandlerOption configures an InvocationHandler.
type HandlerOption func(*handlerOptions)

type handlerOptions struct {
	observer handle.Observer
}

// WithObserver reports handle events of the handler's binding.
func WithObserver(obs handle.Observer) HandlerOption {
	return func(o *handlerOptions) {
		o.observer = obs
	}
}

// InvocationHandler forwards capability calls of a proxy to its native
// dispatcher until cleared.
type InvocationHandler struct {
	native    Dispatcher
	binding   *handle.Binding
	finalized atomic.Bool
}

// NewInvocationHandler binds a handler to the dispatcher owner h.
func NewInvocationHandler(h handle.Handle, native Dispatcher, opts ...HandlerOption) *InvocationHandler {
	var o handlerOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &InvocationHandler{
		native:  native,
		binding: handle.NewBinding("proxy", h, o.observer),
	}
}

// Handle returns the dispatcher handle, handle.Invalid once cleared.
func (ih *InvocationHandler) Handle() handle.Handle {
	return ih.binding.Handle()
}

// Clear invalidates the handler. Native owners call it before destroying
// themselves. Clear is idempotent, never blocks and may run inside a
// forward.
func (ih *InvocationHandler) Clear() {
	ih.binding.Invalidate()
}

// Cleared reports whether the handler no longer forwards.
func (ih *InvocationHandler) Cleared() bool {
	return !ih.binding.Valid()
}

// Quiesce waits for forwards that passed the guard before Clear.
func (ih *InvocationHandler) Quiesce() {
	ih.binding.Quiesce()
}

// ClearAndWait clears the handler and waits until no forward is running.
// Afterwards native code will not be entered again through this handler.
// Must not be called from inside a forward of this handler.
func (ih *InvocationHandler) ClearAndWait() {
	ih.binding.Invalidate()
	ih.binding.Quiesce()
}

// Invoke forwards a capability call. A cleared handler returns (nil, nil)
// without calling native code.
func (ih *InvocationHandler) Invoke(proxy Ref, c Capability, args []any) (any, error) {
	var result any
	_, err := ih.binding.Forward(EntryDispatch, func(h handle.Handle) error {
		var err error
		result, err = ih.native.ProxyDispatch(h, proxy, c, args)
		return err
	})
	return result, err
}

// Finalize sends the reclamation signal once per handler and clears it.
// Later calls, and calls after Clear, forward nothing.
func (ih *InvocationHandler) Finalize() error {
	if !ih.finalized.CompareAndSwap(false, true) {
		return nil
	}
	_, err := ih.binding.Forward(EntryFinalize, func(h handle.Handle) error {
		return ih.native.ProxyFinalize(h)
	})
	ih.binding.Invalidate()
	return err
}

// Finalized reports whether Finalize has run.
func (ih *InvocationHandler) Finalized() bool {
	return ih.finalized.Load()
}
