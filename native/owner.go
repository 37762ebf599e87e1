package native

import (
	"sync"

	"github.com/wippyai/native-bridge/errors"
	"github.com/wippyai/native-bridge/payload"
	"github.com/wippyai/native-bridge/proxy"
)

// OverlayOwner is native code owning an overlay.
type OverlayOwner interface {
	OverlayCreated(state payload.Bundle) error
	OverlayStarted() error
	OverlayPermissionsResult(requestCode int32, permissions []string, grantResults []int32) error
	OverlayActivityResult(requestCode, resultCode int32, data *payload.Intent) error
}

// ProxyOwner is native code dispatching the capabilities of proxies bound
// to it. Finalize is the reclamation signal and may arrive while the owner
// is already tearing itself down.
type ProxyOwner interface {
	Dispatch(ref proxy.Ref, c proxy.Capability, args []any) (any, error)
	Finalize() error
}

// OverlayFuncs implements OverlayOwner with optional callbacks. Nil fields
// accept the event and do nothing.
type OverlayFuncs struct {
	Created           func(state payload.Bundle) error
	Started           func() error
	PermissionsResult func(requestCode int32, permissions []string, grantResults []int32) error
	ActivityResult    func(requestCode, resultCode int32, data *payload.Intent) error
}

func (f OverlayFuncs) OverlayCreated(state payload.Bundle) error {
	if f.Created == nil {
		return nil
	}
	return f.Created(state)
}

func (f OverlayFuncs) OverlayStarted() error {
	if f.Started == nil {
		return nil
	}
	return f.Started()
}

func (f OverlayFuncs) OverlayPermissionsResult(requestCode int32, permissions []string, grantResults []int32) error {
	if f.PermissionsResult == nil {
		return nil
	}
	return f.PermissionsResult(requestCode, permissions, grantResults)
}

func (f OverlayFuncs) OverlayActivityResult(requestCode, resultCode int32, data *payload.Intent) error {
	if f.ActivityResult == nil {
		return nil
	}
	return f.ActivityResult(requestCode, resultCode, data)
}

// MethodFunc implements one capability.
type MethodFunc func(args []any) (any, error)

// DispatchTable is a ProxyOwner that switches on capability ID.
type DispatchTable struct {
	methods  map[uint32]MethodFunc
	finalize func() error
	mu       sync.RWMutex
}

// NewDispatchTable creates an empty table.
func NewDispatchTable() *DispatchTable {
	return &DispatchTable{methods: make(map[uint32]MethodFunc)}
}

// On registers fn for c, replacing an earlier registration.
func (t *DispatchTable) On(c proxy.Capability, fn MethodFunc) *DispatchTable {
	t.mu.Lock()
	t.methods[c.ID] = fn
	t.mu.Unlock()
	return t
}

// OnFinalize sets the reclamation callback.
func (t *DispatchTable) OnFinalize(fn func() error) *DispatchTable {
	t.mu.Lock()
	t.finalize = fn
	t.mu.Unlock()
	return t
}

func (t *DispatchTable) Dispatch(_ proxy.Ref, c proxy.Capability, args []any) (any, error) {
	t.mu.RLock()
	fn, ok := t.methods[c.ID]
	t.mu.RUnlock()
	if !ok {
		return nil, errors.UnknownCapability(c.Interface, c.Method, c.ID)
	}
	return fn(args)
}

func (t *DispatchTable) Finalize() error {
	t.mu.RLock()
	fn := t.finalize
	t.mu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn()
}
