// Package broadcast forwards the request code of received broadcasts to a
// native handler.
//
// A Receiver holds no handle and no state: every broadcast is forwarded,
// and native code ignores codes it does not recognize.
package broadcast

import (
	"github.com/wippyai/native-bridge/handle"
	"github.com/wippyai/native-bridge/payload"
)

// RequestCodeKey is the intent extra carrying the request code.
const RequestCodeKey = "nativebridge.broadcast.request_code"

// EntryReceived is the native entry point name.
const EntryReceived = "broadcast_received"

// Handler is the native side of the broadcast bridge.
type Handler interface {
	BroadcastReceived(code int32) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(code int32) error

func (f HandlerFunc) BroadcastReceived(code int32) error {
	return f(code)
}

// Option configures a Receiver.
type Option func(*Receiver)

// WithObserver reports a forwarded event for every broadcast.
func WithObserver(obs handle.Observer) Option {
	return func(r *Receiver) {
		r.observer = obs
	}
}

// Receiver forwards broadcasts to native code.
type Receiver struct {
	native   Handler
	observer handle.Observer
}

// NewReceiver creates a receiver forwarding to native.
func NewReceiver(native Handler, opts ...Option) *Receiver {
	r := &Receiver{native: native}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnReceive forwards the intent's request code, 0 when the extra is missing
// or the intent is nil. The handler's error is returned unchanged.
func (r *Receiver) OnReceive(intent *payload.Intent) error {
	code := intent.IntExtra(RequestCodeKey, 0)
	err := r.native.BroadcastReceived(code)
	if r.observer != nil {
		r.observer.OnHandleEvent(handle.Event{
			Type:      handle.EventForwarded,
			Component: "broadcast",
			Entry:     EntryReceived,
			Err:       err,
		})
	}
	return err
}

// Intent builds a broadcast intent carrying code.
func Intent(action string, code int32) *payload.Intent {
	return payload.NewIntent(action).PutExtra(RequestCodeKey, code)
}
