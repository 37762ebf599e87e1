package wasmlib

import (
	"context"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Test guests are assembled by hand. Every bridge export forwards its
// parameters to an "env" import of the same name and signature, so the
// test host sees exactly what the library passed in.

const (
	valI32 = 0x7f
	valI64 = 0x7e
)

type funcType struct {
	params, results []byte
}

var guestEntries = []struct {
	name string
	typ  funcType
}{
	{"overlay_created", funcType{params: []byte{valI64, valI32, valI32}}},
	{"overlay_started", funcType{params: []byte{valI64}}},
	{"overlay_permissions_result", funcType{params: []byte{valI64, valI32, valI32, valI32}}},
	{"overlay_activity_result", funcType{params: []byte{valI64, valI32, valI32, valI32, valI32}}},
	{"proxy_dispatch", funcType{params: []byte{valI64, valI64, valI32, valI32, valI32}, results: []byte{valI64}}},
	{"proxy_finalize", funcType{params: []byte{valI64}}},
	{"broadcast_received", funcType{params: []byte{valI32}}},
}

var (
	allocType = funcType{params: []byte{valI32}, results: []byte{valI32}}
	freeType  = funcType{params: []byte{valI32, valI32}}
)

type guestOptions struct {
	omit    map[string]bool
	noAlloc bool
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func section(id byte, items ...[]byte) []byte {
	body := uleb(uint32(len(items)))
	for _, it := range items {
		body = append(body, it...)
	}
	out := []byte{id}
	out = append(out, uleb(uint32(len(body)))...)
	return append(out, body...)
}

func (t funcType) encode() []byte {
	out := []byte{0x60}
	out = append(out, uleb(uint32(len(t.params)))...)
	out = append(out, t.params...)
	out = append(out, uleb(uint32(len(t.results)))...)
	return append(out, t.results...)
}

func body(code ...byte) []byte {
	b := append([]byte{0x00}, code...) // no locals
	b = append(b, 0x0b)
	return append(uleb(uint32(len(b))), b...)
}

// buildGuest assembles the test guest. Type i is the signature of
// guestEntries[i]; imports take function indices 0..6, the wrappers 7..13,
// bridge_alloc 14 and bridge_free 15.
func buildGuest(opts guestOptions) []byte {
	n := uint32(len(guestEntries))

	var types, imports, funcs, exports, code [][]byte
	for i, e := range guestEntries {
		types = append(types, e.typ.encode())

		imp := append(name("env"), name(e.name)...)
		imports = append(imports, append(imp, 0x00, byte(i)))

		funcs = append(funcs, uleb(uint32(i)))

		var ops []byte
		for p := range e.typ.params {
			ops = append(ops, 0x20, byte(p)) // local.get p
		}
		ops = append(ops, 0x10, byte(i)) // call import i
		code = append(code, body(ops...))

		if !opts.omit[e.name] {
			exports = append(exports, append(name(e.name), 0x00, byte(n+uint32(i))))
		}
	}

	types = append(types, allocType.encode(), freeType.encode())
	funcs = append(funcs, uleb(n), uleb(n+1))
	code = append(code,
		// bump allocator: return heap, heap += size
		body(0x23, 0x00, 0x23, 0x00, 0x20, 0x00, 0x6a, 0x24, 0x00),
		body(),
	)
	if !opts.noAlloc {
		exports = append(exports,
			append(name("bridge_alloc"), 0x00, byte(2*n)),
			append(name("bridge_free"), 0x00, byte(2*n+1)),
		)
	}
	exports = append(exports, append(name("memory"), 0x02, 0x00))

	memory := []byte{0x00, 0x01} // min 1 page
	heap := []byte{valI32, 0x01, 0x41, 0x80, 0x08, 0x0b} // mut i32 = 1024

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(1, types...)...)
	out = append(out, section(2, imports...)...)
	out = append(out, section(3, funcs...)...)
	out = append(out, section(5, memory)...)
	out = append(out, section(6, heap)...)
	out = append(out, section(7, exports...)...)
	out = append(out, section(10, code...)...)
	return out
}

// buildStubGuest assembles a guest with no imports whose exports have the
// given types and return zero values.
func buildStubGuest(exports map[string]funcType) []byte {
	names := make([]string, 0, len(exports))
	for n := range exports {
		names = append(names, n)
	}
	sort.Strings(names)

	var types, funcs, exps, code [][]byte
	for i, n := range names {
		typ := exports[n]
		types = append(types, typ.encode())
		funcs = append(funcs, uleb(uint32(i)))
		exps = append(exps, append(name(n), 0x00, byte(i)))

		var ops []byte
		for _, r := range typ.results {
			if r == valI64 {
				ops = append(ops, 0x42, 0x00) // i64.const 0
			} else {
				ops = append(ops, 0x41, 0x00) // i32.const 0
			}
		}
		code = append(code, body(ops...))
	}
	exps = append(exps, append(name("memory"), 0x02, 0x00))

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(1, types...)...)
	out = append(out, section(3, funcs...)...)
	out = append(out, section(5, []byte{0x00, 0x01})...)
	out = append(out, section(7, exps...)...)
	out = append(out, section(10, code...)...)
	return out
}

// abiTypes returns the expected type of every bridge export.
func abiTypes() map[string]funcType {
	out := map[string]funcType{
		"bridge_alloc": allocType,
		"bridge_free":  freeType,
	}
	for _, e := range guestEntries {
		out[e.name] = e.typ
	}
	return out
}

type guestCall struct {
	entry   string
	params  []uint64
	payload []byte
}

// testHost implements the "env" module the test guest imports.
type testHost struct {
	mu    sync.Mutex
	calls []guestCall
	reply []byte
	trap  bool
}

func (g *testHost) record(m api.Module, entry string, ptr, size uint32, params ...uint64) {
	var data []byte
	if size > 0 {
		view, _ := m.Memory().Read(ptr, size)
		data = append([]byte(nil), view...)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, guestCall{entry: entry, params: params, payload: data})
	if g.trap {
		panic("guest failure in " + entry)
	}
}

func (g *testHost) Calls() []guestCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]guestCall(nil), g.calls...)
}

const replyOffset = 0x8000

func (g *testHost) install(ctx context.Context, rt wazero.Runtime) error {
	b := rt.NewHostModuleBuilder("env")
	b.NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, h uint64, ptr, size uint32) {
			g.record(m, "overlay_created", ptr, size, h)
		}).
		Export("overlay_created")
	b.NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, h uint64) {
			g.record(m, "overlay_started", 0, 0, h)
		}).
		Export("overlay_started")
	b.NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, h uint64, code int32, ptr, size uint32) {
			g.record(m, "overlay_permissions_result", ptr, size, h, uint64(code))
		}).
		Export("overlay_permissions_result")
	b.NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, h uint64, req, res int32, ptr, size uint32) {
			g.record(m, "overlay_activity_result", ptr, size, h, uint64(req), uint64(res))
		}).
		Export("overlay_activity_result")
	b.NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, h, ref uint64, capID, ptr, size uint32) uint64 {
			g.record(m, "proxy_dispatch", ptr, size, h, ref, uint64(capID))
			g.mu.Lock()
			reply := g.reply
			g.mu.Unlock()
			if reply == nil {
				return 0
			}
			m.Memory().Write(replyOffset, reply)
			return uint64(replyOffset)<<32 | uint64(len(reply))
		}).
		Export("proxy_dispatch")
	b.NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, h uint64) {
			g.record(m, "proxy_finalize", 0, 0, h)
		}).
		Export("proxy_finalize")
	b.NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, code int32) {
			g.record(m, "broadcast_received", 0, 0, uint64(code))
		}).
		Export("broadcast_received")
	_, err := b.Instantiate(ctx)
	return err
}
