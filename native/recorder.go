package native

import (
	"sync"

	nativebridge "github.com/wippyai/native-bridge"
	"github.com/wippyai/native-bridge/broadcast"
	"github.com/wippyai/native-bridge/handle"
	"github.com/wippyai/native-bridge/overlay"
	"github.com/wippyai/native-bridge/payload"
	"github.com/wippyai/native-bridge/proxy"
)

var (
	_ nativebridge.Library = (*Host)(nil)
	_ nativebridge.Library = (*Recorder)(nil)
)

// Call is one forward observed by a Recorder.
type Call struct {
	Result any
	Err    error
	Entry  string
	Args   []any
	Handle handle.Handle
}

// RespondFunc produces the dispatch result of a Recorder without a next
// library.
type RespondFunc func(h handle.Handle, ref proxy.Ref, c proxy.Capability, args []any) (any, error)

// Recorder is a tap recording every forward it receives. Calls are passed
// to next when set; otherwise lifecycle entries succeed and dispatches go
// to Respond.
type Recorder struct {
	next    nativebridge.Library
	respond RespondFunc
	calls   []Call
	mu      sync.Mutex
}

// NewRecorder creates a recorder in front of next, which may be nil.
func NewRecorder(next nativebridge.Library) *Recorder {
	return &Recorder{next: next}
}

// Respond sets the dispatch result source used when there is no next
// library.
func (r *Recorder) Respond(fn RespondFunc) *Recorder {
	r.mu.Lock()
	r.respond = fn
	r.mu.Unlock()
	return r
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Count returns how many calls reached entry. An empty entry counts all.
func (r *Recorder) Count(entry string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry == "" {
		return len(r.calls)
	}
	n := 0
	for _, c := range r.calls {
		if c.Entry == entry {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *Recorder) OverlayCreated(h handle.Handle, state payload.Bundle) error {
	var err error
	if r.next != nil {
		err = r.next.OverlayCreated(h, state)
	}
	r.record(Call{Entry: overlay.EntryCreated, Handle: h, Args: []any{state}, Err: err})
	return err
}

func (r *Recorder) OverlayStarted(h handle.Handle) error {
	var err error
	if r.next != nil {
		err = r.next.OverlayStarted(h)
	}
	r.record(Call{Entry: overlay.EntryStarted, Handle: h, Err: err})
	return err
}

func (r *Recorder) OverlayPermissionsResult(h handle.Handle, requestCode int32, permissions []string, grantResults []int32) error {
	var err error
	if r.next != nil {
		err = r.next.OverlayPermissionsResult(h, requestCode, permissions, grantResults)
	}
	r.record(Call{
		Entry:  overlay.EntryPermissionsResult,
		Handle: h,
		Args:   []any{requestCode, permissions, grantResults},
		Err:    err,
	})
	return err
}

func (r *Recorder) OverlayActivityResult(h handle.Handle, requestCode, resultCode int32, data *payload.Intent) error {
	var err error
	if r.next != nil {
		err = r.next.OverlayActivityResult(h, requestCode, resultCode, data)
	}
	r.record(Call{
		Entry:  overlay.EntryActivityResult,
		Handle: h,
		Args:   []any{requestCode, resultCode, data},
		Err:    err,
	})
	return err
}

func (r *Recorder) ProxyDispatch(h handle.Handle, ref proxy.Ref, c proxy.Capability, args []any) (any, error) {
	var (
		result any
		err    error
	)
	r.mu.Lock()
	respond := r.respond
	r.mu.Unlock()

	switch {
	case r.next != nil:
		result, err = r.next.ProxyDispatch(h, ref, c, args)
	case respond != nil:
		result, err = respond(h, ref, c, args)
	}
	r.record(Call{
		Entry:  proxy.EntryDispatch,
		Handle: h,
		Args:   []any{ref, c, args},
		Result: result,
		Err:    err,
	})
	return result, err
}

func (r *Recorder) ProxyFinalize(h handle.Handle) error {
	var err error
	if r.next != nil {
		err = r.next.ProxyFinalize(h)
	}
	r.record(Call{Entry: proxy.EntryFinalize, Handle: h, Err: err})
	return err
}

func (r *Recorder) BroadcastReceived(code int32) error {
	var err error
	if r.next != nil {
		err = r.next.BroadcastReceived(code)
	}
	r.record(Call{Entry: broadcast.EntryReceived, Args: []any{code}, Err: err})
	return err
}
