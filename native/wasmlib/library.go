package wasmlib

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	nativebridge "github.com/wippyai/native-bridge"
	"github.com/wippyai/native-bridge/broadcast"
	"github.com/wippyai/native-bridge/codec"
	"github.com/wippyai/native-bridge/errors"
	"github.com/wippyai/native-bridge/overlay"
	"github.com/wippyai/native-bridge/proxy"
)

const (
	exportMemory = "memory"
	exportAlloc  = "bridge_alloc"
	exportFree   = "bridge_free"
)

var entries = []string{
	overlay.EntryCreated,
	overlay.EntryStarted,
	overlay.EntryPermissionsResult,
	overlay.EntryActivityResult,
	proxy.EntryDispatch,
	proxy.EntryFinalize,
	broadcast.EntryReceived,
}

var _ nativebridge.Library = (*Library)(nil)

// signature is the core wasm type an export must have.
type signature struct {
	params, results []api.ValueType
}

const (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

var signatures = map[string]signature{
	overlay.EntryCreated:           {params: []api.ValueType{i64, i32, i32}},
	overlay.EntryStarted:           {params: []api.ValueType{i64}},
	overlay.EntryPermissionsResult: {params: []api.ValueType{i64, i32, i32, i32}},
	overlay.EntryActivityResult:    {params: []api.ValueType{i64, i32, i32, i32, i32}},
	proxy.EntryDispatch:            {params: []api.ValueType{i64, i64, i32, i32, i32}, results: []api.ValueType{i64}},
	proxy.EntryFinalize:            {params: []api.ValueType{i64}},
	broadcast.EntryReceived:        {params: []api.ValueType{i32}},
	exportAlloc:                    {params: []api.ValueType{i32}, results: []api.ValueType{i32}},
	exportFree:                     {params: []api.ValueType{i32, i32}},
}

func (s signature) matches(def api.FunctionDefinition) bool {
	return slices.Equal(s.params, def.ParamTypes()) && slices.Equal(s.results, def.ResultTypes())
}

func formatSignature(params, results []api.ValueType) string {
	names := func(ts []api.ValueType) string {
		out := make([]string, len(ts))
		for i, t := range ts {
			out[i] = api.ValueTypeName(t)
		}
		return strings.Join(out, ",")
	}
	return "(" + names(params) + ") -> (" + names(results) + ")"
}

// checkSignatures rejects bridge exports whose type differs from the ABI.
func checkSignatures(mod api.Module) error {
	names := append(slices.Clone(entries), exportAlloc, exportFree)
	for _, name := range names {
		fn := mod.ExportedFunction(name)
		if fn == nil {
			continue
		}
		want := signatures[name]
		def := fn.Definition()
		if !want.matches(def) {
			return errors.New(errors.PhaseLoad, errors.KindTypeMismatch).
				Entry(name).
				Detail("export has signature %s, want %s",
					formatSignature(def.ParamTypes(), def.ResultTypes()),
					formatSignature(want.params, want.results)).
				Build()
		}
	}
	return nil
}

// HostModuleFunc instantiates host modules the guest imports.
type HostModuleFunc func(ctx context.Context, rt wazero.Runtime) error

// Config holds configuration for loading a native library.
type Config struct {
	// Codec encodes payloads. nil selects codec.Default.
	Codec codec.Codec

	// Name is the guest module name. Empty instantiates anonymously.
	Name string

	// HostModules are instantiated before the guest, in order.
	HostModules []HostModuleFunc

	// MemoryLimitPages caps guest memory in 64KB pages. 0 keeps the wazero
	// default. Only used by Open.
	MemoryLimitPages uint32

	// EnableWASI instantiates wasi_snapshot_preview1 before the guest.
	// Only used by Open.
	EnableWASI bool
}

// Library is a guest native library implementing nativebridge.Library.
type Library struct {
	ctx    context.Context
	rt     wazero.Runtime
	mod    api.Module
	mem    *guestMemory
	alloc  *guestAllocator
	codec  codec.Codec
	fns    map[string]api.Function
	stack  []uint64
	mu     sync.Mutex
	ownsRT bool
	closed bool
}

// Open creates a runtime for the guest and loads it. The runtime is closed
// with the library.
func Open(ctx context.Context, wasm []byte, cfg Config) (*Library, error) {
	rtCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		rtCfg = rtCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)

	if cfg.EnableWASI {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
			return nil, multierr.Append(errors.Load("instantiate wasi", err), rt.Close(ctx))
		}
	}

	lib, err := Load(ctx, rt, wasm, cfg)
	if err != nil {
		return nil, multierr.Append(err, rt.Close(ctx))
	}
	lib.ownsRT = true
	return lib, nil
}

// Load instantiates the guest in a caller-owned runtime. ctx is used for
// every later call into the guest.
func Load(ctx context.Context, rt wazero.Runtime, wasm []byte, cfg Config) (*Library, error) {
	for _, install := range cfg.HostModules {
		if err := install(ctx, rt); err != nil {
			return nil, errors.Load("instantiate host module", err)
		}
	}

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile native library", err)
	}

	modCfg := wazero.NewModuleConfig().
		WithName(cfg.Name).
		WithStartFunctions("_initialize")
	mod, err := rt.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return nil, errors.Load("instantiate native library", err)
	}
	if err := checkSignatures(mod); err != nil {
		return nil, multierr.Append(err, mod.Close(ctx))
	}

	c := cfg.Codec
	if c == nil {
		c = codec.Default
	}

	lib := &Library{
		ctx:   ctx,
		rt:    rt,
		mod:   mod,
		codec: c,
		fns:   make(map[string]api.Function, len(entries)),
		stack: make([]uint64, 8),
	}
	if mem := mod.ExportedMemory(exportMemory); mem != nil {
		lib.mem = &guestMemory{mem: mem}
	}
	lib.alloc = &guestAllocator{
		ctx:     ctx,
		allocFn: mod.ExportedFunction(exportAlloc),
		freeFn:  mod.ExportedFunction(exportFree),
		stack:   make([]uint64, 2),
	}
	for _, name := range entries {
		if fn := mod.ExportedFunction(name); fn != nil {
			lib.fns[name] = fn
		}
	}

	Logger().Debug("native library loaded",
		zap.String("name", cfg.Name),
		zap.String("codec", c.Name()),
		zap.Strings("exports", lib.Exports()))
	return lib, nil
}

// Exports returns the bridge entry points the guest exports, sorted.
func (l *Library) Exports() []string {
	out := make([]string, 0, len(l.fns))
	for name := range l.fns {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Memory returns the guest memory, nil when the guest exports none.
func (l *Library) Memory() nativebridge.Memory {
	if l.mem == nil {
		return nil
	}
	return l.mem
}

// Codec returns the payload codec.
func (l *Library) Codec() codec.Codec {
	return l.codec
}

// Close closes the guest module and, for Open, its runtime. Later calls
// fail with KindClosed.
func (l *Library) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	err := l.mod.Close(ctx)
	if l.ownsRT {
		err = multierr.Append(err, l.rt.Close(ctx))
	}
	Logger().Debug("native library closed", zap.Error(err))
	return err
}
