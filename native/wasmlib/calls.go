package wasmlib

import (
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/native-bridge/broadcast"
	"github.com/wippyai/native-bridge/codec"
	"github.com/wippyai/native-bridge/errors"
	"github.com/wippyai/native-bridge/handle"
	"github.com/wippyai/native-bridge/overlay"
	"github.com/wippyai/native-bridge/payload"
	"github.com/wippyai/native-bridge/proxy"
)

// buffer is a payload written into guest memory.
type buffer struct {
	ptr, size uint32
}

// encode writes value into guest memory. A nil value yields an empty
// buffer without allocating. Caller must hold l.mu.
func (l *Library) encode(entry string, value any) (buffer, error) {
	if value == nil {
		return buffer{}, nil
	}
	data, err := codec.Marshal(l.codec, value)
	if err != nil {
		return buffer{}, err
	}
	if len(data) == 0 {
		return buffer{}, nil
	}
	if l.mem == nil {
		return buffer{}, errors.MissingExport(exportMemory)
	}
	size := uint32(len(data))
	ptr, err := l.alloc.Alloc(size)
	if err != nil {
		if e, ok := err.(*errors.Error); ok && e.Entry == "" {
			e.Entry = entry
		}
		return buffer{}, err
	}
	if err := l.mem.Write(ptr, data); err != nil {
		l.alloc.Free(ptr, size)
		return buffer{}, errors.OutOfBounds(errors.PhaseEncode, entry, ptr, size)
	}
	return buffer{ptr: ptr, size: size}, nil
}

func (l *Library) release(b buffer) {
	if b.size > 0 {
		l.alloc.Free(b.ptr, b.size)
	}
}

// call runs entry with params and returns the first result, if any.
// Caller must hold l.mu.
func (l *Library) call(entry string, params ...uint64) (uint64, error) {
	fn, ok := l.fns[entry]
	if !ok {
		return 0, errors.MissingExport(entry)
	}
	copy(l.stack, params)
	if err := fn.CallWithStack(l.ctx, l.stack); err != nil {
		Logger().Warn("native library trapped", zap.String("entry", entry), zap.Error(err))
		return 0, errors.Trap(entry, err)
	}
	if len(fn.Definition().ResultTypes()) == 0 {
		return 0, nil
	}
	return l.stack[0], nil
}

func (l *Library) lock(entry string) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errors.New(errors.PhaseDispatch, errors.KindClosed).
			Entry(entry).
			Detail("native library closed").
			Build()
	}
	return nil
}

// withPayload encodes value, calls entry with params followed by the
// buffer's pointer and length, then releases the buffer.
func (l *Library) withPayload(entry string, value any, params ...uint64) error {
	if err := l.lock(entry); err != nil {
		return err
	}
	defer l.mu.Unlock()

	buf, err := l.encode(entry, value)
	if err != nil {
		return err
	}
	defer l.release(buf)

	_, err = l.call(entry, append(params, api.EncodeU32(buf.ptr), api.EncodeU32(buf.size))...)
	return err
}

func (l *Library) OverlayCreated(h handle.Handle, state payload.Bundle) error {
	var value any
	if state != nil {
		value = state
	}
	return l.withPayload(overlay.EntryCreated, value, uint64(h))
}

func (l *Library) OverlayStarted(h handle.Handle) error {
	if err := l.lock(overlay.EntryStarted); err != nil {
		return err
	}
	defer l.mu.Unlock()
	_, err := l.call(overlay.EntryStarted, uint64(h))
	return err
}

func (l *Library) OverlayPermissionsResult(h handle.Handle, requestCode int32, permissions []string, grantResults []int32) error {
	value := permissionsPayload{Permissions: permissions, GrantResults: grantResults}
	return l.withPayload(overlay.EntryPermissionsResult, value, uint64(h), api.EncodeI32(requestCode))
}

func (l *Library) OverlayActivityResult(h handle.Handle, requestCode, resultCode int32, data *payload.Intent) error {
	var value any
	if data != nil {
		value = data
	}
	return l.withPayload(overlay.EntryActivityResult, value,
		uint64(h), api.EncodeI32(requestCode), api.EncodeI32(resultCode))
}

// ProxyDispatch encodes args, calls proxy_dispatch and decodes the returned
// envelope. The capability is passed by ID.
func (l *Library) ProxyDispatch(h handle.Handle, ref proxy.Ref, c proxy.Capability, args []any) (any, error) {
	if err := l.lock(proxy.EntryDispatch); err != nil {
		return nil, err
	}
	defer l.mu.Unlock()

	var value any
	if args != nil {
		value = args
	}
	buf, err := l.encode(proxy.EntryDispatch, value)
	if err != nil {
		return nil, err
	}
	defer l.release(buf)

	packed, err := l.call(proxy.EntryDispatch,
		uint64(h), uint64(ref), api.EncodeU32(c.ID), api.EncodeU32(buf.ptr), api.EncodeU32(buf.size))
	if err != nil {
		return nil, err
	}
	if packed == 0 {
		return nil, nil
	}
	return l.decodeEnvelope(uint32(packed>>32), uint32(packed))
}

func (l *Library) decodeEnvelope(ptr, size uint32) (any, error) {
	if l.mem == nil {
		return nil, errors.MissingExport(exportMemory)
	}
	data, err := l.mem.Read(ptr, size)
	if err != nil {
		return nil, errors.OutOfBounds(errors.PhaseDecode, proxy.EntryDispatch, ptr, size)
	}
	l.alloc.Free(ptr, size)

	var env envelope
	if err := l.codec.DecodeInto(data, &env); err != nil {
		return nil, errors.InvalidData(errors.PhaseDecode, proxy.EntryDispatch, err,
			"decode "+l.codec.Name()+" envelope")
	}
	if env.Error != nil {
		return nil, env.Error
	}
	return env.Value, nil
}

func (l *Library) ProxyFinalize(h handle.Handle) error {
	if err := l.lock(proxy.EntryFinalize); err != nil {
		return err
	}
	defer l.mu.Unlock()
	_, err := l.call(proxy.EntryFinalize, uint64(h))
	return err
}

func (l *Library) BroadcastReceived(code int32) error {
	if err := l.lock(broadcast.EntryReceived); err != nil {
		return err
	}
	defer l.mu.Unlock()
	_, err := l.call(broadcast.EntryReceived, api.EncodeI32(code))
	return err
}
