// Package wasmlib runs native libraries compiled to core WebAssembly as the
// native side of the bridges.
//
// A guest library exports one function per bridge entry point:
//
//	overlay_created(h i64, ptr i32, len i32)
//	overlay_started(h i64)
//	overlay_permissions_result(h i64, code i32, ptr i32, len i32)
//	overlay_activity_result(h i64, request i32, result i32, ptr i32, len i32)
//	proxy_dispatch(h i64, proxy i64, capability i32, ptr i32, len i32) -> i64
//	proxy_finalize(h i64)
//	broadcast_received(code i32)
//
// Payloads are encoded with the configured codec (JSON by default) and
// written into guest memory obtained from bridge_alloc(size i32) -> i32.
// An empty payload is passed as ptr 0, len 0 and needs no allocation. When
// the guest exports bridge_free(ptr i32, len i32) payload buffers and
// dispatch results are handed back to it after each call.
//
// proxy_dispatch returns ptr<<32 | len of an encoded envelope
//
//	{"value": <any>, "error": {"code": <int>, "message": <string>}}
//
// or 0 for no result. An envelope error is returned as *Failure.
//
// Exports with any other type are rejected when the library is loaded.
// Entry points a guest does not export fail with KindMissingExport when
// called. A trap inside the guest is reported as KindTrap. Calls into a
// Library are serialized; host functions the guest imports must not call
// back into the same Library.
package wasmlib
