// Package nativebridge connects managed-side objects to the native code that
// owns them.
//
// Native code creates a managed object (an overlay, a capability proxy, a
// broadcast receiver) and hands it an opaque 64-bit handle identifying the
// native owner. The managed object forwards its callbacks to native entry
// points together with that handle. When the owner is destroyed the handle
// is invalidated, and from then on every callback is silently skipped.
//
// # Architecture Overview
//
//	nativebridge/       Root package with the Library, Memory and Allocator interfaces
//	├── handle/         Guarded bindings and the generation-checked owner arena
//	├── overlay/        Lifecycle overlay bridge
//	├── proxy/          Capability proxies, descriptor tables and finalization
//	├── broadcast/      Broadcast request code forwarding
//	├── payload/        Bundles and intents
//	├── codec/          JSON and CBOR payload encoding
//	├── native/         In-process native side and recording tap
//	│   └── wasmlib/    Native libraries compiled to WebAssembly (wazero)
//	├── metrics/        Prometheus collector for handle events
//	├── scenario/       YAML-scripted bridge sessions
//	├── config/         Environment configuration
//	└── errors/         Structured error types
//
// # Quick Start
//
// Register a native owner and bind an overlay to it:
//
//	host := native.NewHost()
//	defer host.Close()
//
//	h, err := host.Register(native.OverlayFuncs{
//	    Created: func(state payload.Bundle) error { ... },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ov := overlay.New(payload.Bundle{overlay.OwnerHandleKey: uint64(h)}, host)
//	_ = ov.OnCreate(state)
//
//	ov.Close()      // later callbacks forward nothing
//	host.Destroy(h)
//
// Proxies dispatch by capability ID:
//
//	greeter := proxy.MustInterface("demo.Greeter", "greet")
//	greet, _ := greeter.Lookup("greet")
//
//	table := native.NewDispatchTable().On(greet, func(args []any) (any, error) {
//	    return "hello " + args[0].(string), nil
//	})
//	h, _ := host.Register(table)
//
//	p := proxy.New(greeter, proxy.NewInvocationHandler(h, host))
//	defer p.Release()
//	out, err := p.Call("greet", "bob")
//
// # Thread Safety
//
// Every bridge is safe for concurrent use. Invalidation is one-way: once a
// goroutine observes a cleared handle no goroutine observes it bound again.
// A forward that passed the guard before Close or Clear may still be
// running; owners that free native memory first call Quiesce (or
// ClearAndWait) which returns once no forward is in flight.
//
// # Errors
//
// Bridges never translate errors. A stale handle is not an error: the call
// returns nil results. Whatever native code returns reaches the managed
// caller unchanged.
package nativebridge
