// Package native provides in-process native sides for the bridges.
//
// A Host keeps native owners in a generation-checked arena and hands out
// their handles. It implements nativebridge.Library by resolving the handle
// of each forward to its owner. Handles of destroyed owners never resolve,
// even after their slot is reused.
package native

import (
	"go.uber.org/zap"

	"github.com/wippyai/native-bridge/errors"
	"github.com/wippyai/native-bridge/handle"
	"github.com/wippyai/native-bridge/overlay"
	"github.com/wippyai/native-bridge/payload"
	"github.com/wippyai/native-bridge/proxy"
)

// HostOption configures a Host.
type HostOption func(*Host)

// WithObserver subscribes obs to owner registration and release events.
func WithObserver(obs handle.Observer) HostOption {
	return func(h *Host) {
		h.owners.Subscribe(obs)
	}
}

// WithRouter makes the host deliver broadcasts through r.
func WithRouter(r *Router) HostOption {
	return func(h *Host) {
		h.router = r
	}
}

// Host is an in-process native side.
type Host struct {
	owners *handle.Arena[any]
	router *Router
}

// NewHost creates a host with an empty owner arena.
func NewHost(opts ...HostOption) *Host {
	h := &Host{
		owners: handle.NewArena[any]("native"),
		router: NewRouter(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds an owner and returns its handle. The owner must implement
// OverlayOwner, ProxyOwner or both.
func (h *Host) Register(owner any) (handle.Handle, error) {
	switch owner.(type) {
	case OverlayOwner, ProxyOwner:
	default:
		return handle.Invalid, errors.TypeMismatch(errors.PhaseRegister, "", "OverlayOwner or ProxyOwner", owner)
	}
	return h.owners.Insert(owner)
}

// Destroy removes the owner of hd. Owners implementing io.Closer or
// handle.Dropper are released. It reports whether hd was live.
func (h *Host) Destroy(hd handle.Handle) bool {
	_, ok := h.owners.Remove(hd)
	return ok
}

// Owner returns the live owner of hd.
func (h *Host) Owner(hd handle.Handle) (any, bool) {
	return h.owners.Get(hd)
}

// Len returns the number of live owners.
func (h *Host) Len() int {
	return h.owners.Len()
}

// Router returns the broadcast router.
func (h *Host) Router() *Router {
	return h.router
}

// Close releases every owner. Registration fails afterwards.
func (h *Host) Close() error {
	return h.owners.Close()
}

func (h *Host) overlayOwner(entry string, hd handle.Handle) (OverlayOwner, error) {
	v, ok := h.owners.Get(hd)
	if !ok {
		Logger().Debug("overlay event for stale owner",
			zap.String("entry", entry),
			zap.Stringer("handle", hd))
		return nil, nil
	}
	o, ok := v.(OverlayOwner)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseDispatch, entry, "OverlayOwner", v)
	}
	return o, nil
}

func (h *Host) OverlayCreated(hd handle.Handle, state payload.Bundle) error {
	o, err := h.overlayOwner(overlay.EntryCreated, hd)
	if o == nil {
		return err
	}
	return o.OverlayCreated(state)
}

func (h *Host) OverlayStarted(hd handle.Handle) error {
	o, err := h.overlayOwner(overlay.EntryStarted, hd)
	if o == nil {
		return err
	}
	return o.OverlayStarted()
}

func (h *Host) OverlayPermissionsResult(hd handle.Handle, requestCode int32, permissions []string, grantResults []int32) error {
	o, err := h.overlayOwner(overlay.EntryPermissionsResult, hd)
	if o == nil {
		return err
	}
	return o.OverlayPermissionsResult(requestCode, permissions, grantResults)
}

func (h *Host) OverlayActivityResult(hd handle.Handle, requestCode, resultCode int32, data *payload.Intent) error {
	o, err := h.overlayOwner(overlay.EntryActivityResult, hd)
	if o == nil {
		return err
	}
	return o.OverlayActivityResult(requestCode, resultCode, data)
}

// ProxyDispatch resolves hd and dispatches. A stale handle is an error here:
// the caller expects a result.
func (h *Host) ProxyDispatch(hd handle.Handle, ref proxy.Ref, c proxy.Capability, args []any) (any, error) {
	v, ok := h.owners.Get(hd)
	if !ok {
		return nil, errors.StaleOwner(proxy.EntryDispatch, uint64(hd))
	}
	o, ok := v.(ProxyOwner)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseDispatch, proxy.EntryDispatch, "ProxyOwner", v)
	}
	return o.Dispatch(ref, c, args)
}

// ProxyFinalize notifies the owner of hd. Finalizing a destroyed owner is a
// no-op.
func (h *Host) ProxyFinalize(hd handle.Handle) error {
	v, ok := h.owners.Get(hd)
	if !ok {
		Logger().Debug("finalize for stale owner", zap.Stringer("handle", hd))
		return nil
	}
	o, ok := v.(ProxyOwner)
	if !ok {
		return errors.TypeMismatch(errors.PhaseDispatch, proxy.EntryFinalize, "ProxyOwner", v)
	}
	return o.Finalize()
}

// BroadcastReceived routes code through the host router.
func (h *Host) BroadcastReceived(code int32) error {
	return h.router.BroadcastReceived(code)
}
