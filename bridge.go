package nativebridge

import (
	"github.com/wippyai/native-bridge/broadcast"
	"github.com/wippyai/native-bridge/overlay"
	"github.com/wippyai/native-bridge/proxy"
)

// Library is a complete native side: every entry point the bridges forward
// to. native.Host, native.Recorder and wasmlib.Library implement it.
type Library interface {
	overlay.Native
	proxy.Dispatcher
	broadcast.Handler
}

// Memory is the linear memory of a guest native library.
type Memory interface {
	Read(offset, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	Size() uint32
}

// Allocator allocates payload buffers inside a guest native library.
type Allocator interface {
	Alloc(size uint32) (uint32, error)
	Free(ptr, size uint32)
}
