package wasmlib

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	nativebridge "github.com/wippyai/native-bridge"
	"github.com/wippyai/native-bridge/errors"
)

var (
	_ nativebridge.Memory    = (*guestMemory)(nil)
	_ nativebridge.Allocator = (*guestAllocator)(nil)
)

// guestMemory wraps wazero memory to implement nativebridge.Memory.
type guestMemory struct {
	mem api.Memory
}

// Read returns a copy of [offset, offset+length).
func (m *guestMemory) Read(offset, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseDecode, "", offset, length)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *guestMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseEncode, "", offset, uint32(len(data)))
	}
	return nil
}

func (m *guestMemory) Size() uint32 {
	return m.mem.Size()
}

// guestAllocator calls the guest's bridge_alloc and bridge_free exports.
type guestAllocator struct {
	ctx     context.Context
	allocFn api.Function
	freeFn  api.Function
	stack   []uint64
}

func (a *guestAllocator) Alloc(size uint32) (uint32, error) {
	if a.allocFn == nil {
		return 0, errors.MissingExport(exportAlloc)
	}
	a.stack[0] = api.EncodeU32(size)
	if err := a.allocFn.CallWithStack(a.ctx, a.stack); err != nil {
		return 0, errors.Trap(exportAlloc, err)
	}
	ptr := api.DecodeU32(a.stack[0])
	if ptr == 0 {
		return 0, errors.AllocationFailed(errors.PhaseEncode, exportAlloc, size)
	}
	return ptr, nil
}

// Free is best-effort: a guest without bridge_free keeps the memory.
func (a *guestAllocator) Free(ptr, size uint32) {
	if a.freeFn == nil || ptr == 0 {
		return
	}
	a.stack[0] = api.EncodeU32(ptr)
	a.stack[1] = api.EncodeU32(size)
	if err := a.freeFn.CallWithStack(a.ctx, a.stack); err != nil {
		Logger().Warn("bridge_free trapped", zap.Uint32("ptr", ptr), zap.Error(err))
	}
}
