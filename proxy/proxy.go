// Package proxy implements dynamic capability proxies whose methods are
// dispatched by native code.
//
// An Interface is a descriptor table: every method gets a stable capability
// ID, and native dispatchers switch on that ID instead of reflecting over
// method names. A Proxy pairs an Interface with an InvocationHandler holding
// the native dispatcher's handle.
//
// A proxy's native dispatcher learns that no managed reference remains
// through exactly one finalize forward. By default the last Release drives
// it; WithCollector also lets the Go garbage collector drive it for proxies
// that become unreachable without being released.
package proxy

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/native-bridge/errors"
)

var lastRef atomic.Uint64

// Option configures a Proxy.
type Option func(*proxyOptions)

type proxyOptions struct {
	collector bool
}

// WithCollector finalizes the handler when the proxy becomes unreachable
// and was never fully released.
func WithCollector() Option {
	return func(o *proxyOptions) {
		o.collector = true
	}
}

// Proxy is a reference-counted managed object implementing an Interface.
// It starts with one reference.
type Proxy struct {
	iface   *Interface
	handler *InvocationHandler
	cleanup runtime.Cleanup
	ref     Ref
	refs    int64
	mu      sync.Mutex
	tracked bool
}

// New creates a proxy for iface whose calls go through handler.
func New(iface *Interface, handler *InvocationHandler, opts ...Option) *Proxy {
	var o proxyOptions
	for _, opt := range opts {
		opt(&o)
	}

	p := &Proxy{
		iface:   iface,
		handler: handler,
		ref:     Ref(lastRef.Add(1)),
		refs:    1,
	}
	if o.collector {
		p.cleanup = runtime.AddCleanup(p, collect, collectArg{handler: handler, ref: p.ref})
		p.tracked = true
	}
	return p
}

type collectArg struct {
	handler *InvocationHandler
	ref     Ref
}

func collect(a collectArg) {
	if err := a.handler.Finalize(); err != nil {
		Logger().Warn("collector finalize failed",
			zap.Uint64("proxy", uint64(a.ref)),
			zap.Error(err))
	}
}

// Ref returns the identity passed to native code.
func (p *Proxy) Ref() Ref {
	return p.ref
}

// Interface returns the proxied interface.
func (p *Proxy) Interface() *Interface {
	return p.iface
}

// Handler returns the invocation handler.
func (p *Proxy) Handler() *InvocationHandler {
	return p.handler
}

// Call invokes method with args. Methods not in the interface fail before
// anything is forwarded.
func (p *Proxy) Call(method string, args ...any) (any, error) {
	c, ok := p.iface.Lookup(method)
	if !ok {
		return nil, errors.UnknownCapability(p.iface.Name(), method, CapabilityID(p.iface.Name(), method))
	}
	return p.handler.Invoke(p.ref, c, args)
}

// Retain adds a reference. It reports false once the proxy has been fully
// released.
func (p *Proxy) Retain() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refs == 0 {
		return false
	}
	p.refs++
	return true
}

// Release drops a reference. Dropping the last one finalizes the handler
// and returns the native finalize error, if any.
func (p *Proxy) Release() error {
	p.mu.Lock()
	if p.refs == 0 {
		p.mu.Unlock()
		return errors.InvalidInput(errors.PhaseDispatch, "release of a proxy with no references")
	}
	p.refs--
	last := p.refs == 0
	if last && p.tracked {
		p.cleanup.Stop()
		p.tracked = false
	}
	p.mu.Unlock()

	if !last {
		return nil
	}
	return p.handler.Finalize()
}

// Refs returns the current reference count.
func (p *Proxy) Refs() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refs
}
