// Package handle implements the guarded-handle pattern shared by every bridge.
//
// A native owner exposes itself to managed-side callbacks through an opaque
// 64-bit Handle. Bridges never interpret a handle; they only compare it to
// Invalid (0). Once a binding has observed Invalid it issues no further
// forwards, and the transition is irreversible.
//
// # Bindings
//
// A Binding holds one handle and guards every forward:
//
//	b := handle.NewBinding("overlay", h, nil)
//
//	// Guarded forward; fn is not called once b is invalidated
//	forwarded, err := b.Forward("overlay_started", func(h handle.Handle) error {
//	    return native.OverlayStarted(h)
//	})
//
//	// Owner teardown from another goroutine
//	b.Invalidate()
//	b.Quiesce() // no forward is running or can start after this returns
//
// # Arenas
//
// Arena is the native-side counterpart: a slot table minting
// generation-checked handles, so invalidation never leaves a dangling
// reference even when slots are reused:
//
//	arena := handle.NewArena[Owner]("owners")
//	h, _ := arena.Insert(owner)
//	arena.Remove(h)
//	_, ok := arena.Get(h) // false, even after the slot is reused
//
// # Observers
//
// Bindings and arenas report EventBound, EventForwarded, EventSkipped,
// EventInvalidated and EventReleased to an Observer, which is how metrics
// and tracing hook in without touching the forwarding path.
package handle
