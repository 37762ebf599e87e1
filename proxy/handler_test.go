package proxy

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/native-bridge/handle"
)

type dispatch struct {
	handle handle.Handle
	proxy  Ref
	cap    Capability
	args   []any
}

type fakeDispatcher struct {
	mu         sync.Mutex
	dispatches []dispatch
	finalizes  []handle.Handle
	result     any
	err        error
	finalErr   error
	onDispatch func()
}

func (f *fakeDispatcher) ProxyDispatch(h handle.Handle, proxy Ref, c Capability, args []any) (any, error) {
	f.mu.Lock()
	f.dispatches = append(f.dispatches, dispatch{handle: h, proxy: proxy, cap: c, args: args})
	hook := f.onDispatch
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return f.result, f.err
}

func (f *fakeDispatcher) ProxyFinalize(h handle.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalizes = append(f.finalizes, h)
	return f.finalErr
}

func (f *fakeDispatcher) dispatchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dispatches)
}

func (f *fakeDispatcher) finalizeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.finalizes)
}

var demo = MustInterface("demo.Greeter", "foo", "greet", "wave")

func TestInvocationHandler_ScenarioB(t *testing.T) {
	native := &fakeDispatcher{result: "bar"}
	ih := NewInvocationHandler(0x1, native)
	foo, ok := demo.Lookup("foo")
	require.True(t, ok)

	got, err := ih.Invoke(7, foo, []any{})
	require.NoError(t, err)
	assert.Equal(t, "bar", got)
	require.Equal(t, 1, native.dispatchCount())

	ih.Clear()
	got, err = ih.Invoke(7, foo, []any{})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, native.dispatchCount())
}

func TestInvocationHandler_ScenarioC(t *testing.T) {
	native := &fakeDispatcher{}
	ih := NewInvocationHandler(0x2, native)

	require.NoError(t, ih.Finalize())
	require.NoError(t, ih.Finalize())

	assert.Equal(t, []handle.Handle{0x2}, native.finalizes)
	assert.True(t, ih.Finalized())
	assert.True(t, ih.Cleared())
}

func TestInvocationHandler_PassThrough(t *testing.T) {
	nativeErr := errors.New("greeter exploded")
	result := map[string]any{"greeting": "hi"}
	native := &fakeDispatcher{result: result, err: nativeErr}
	ih := NewInvocationHandler(0x55, native)
	greet, _ := demo.Lookup("greet")
	args := []any{"bob", int64(3), nil}

	got, err := ih.Invoke(99, greet, args)

	assert.Same(t, nativeErr, err)
	assert.Equal(t, result, got)
	require.Len(t, native.dispatches, 1)
	d := native.dispatches[0]
	assert.Equal(t, handle.Handle(0x55), d.handle)
	assert.Equal(t, Ref(99), d.proxy)
	assert.Equal(t, greet, d.cap)
	assert.Equal(t, args, d.args)
}

func TestInvocationHandler_NoFinalizeAfterClear(t *testing.T) {
	native := &fakeDispatcher{}
	ih := NewInvocationHandler(0x3, native)

	ih.Clear()
	ih.Clear()
	require.NoError(t, ih.Finalize())

	assert.Empty(t, native.finalizes)
	assert.True(t, ih.Finalized())
}

func TestInvocationHandler_FinalizeError(t *testing.T) {
	want := errors.New("owner gone")
	ih := NewInvocationHandler(0x4, &fakeDispatcher{finalErr: want})

	assert.Same(t, want, ih.Finalize())
	assert.NoError(t, ih.Finalize())
}

func TestInvocationHandler_UnboundNeverForwards(t *testing.T) {
	native := &fakeDispatcher{result: "x"}
	ih := NewInvocationHandler(handle.Invalid, native)
	foo, _ := demo.Lookup("foo")

	got, err := ih.Invoke(1, foo, nil)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, ih.Finalize())
	assert.Zero(t, native.dispatchCount())
	assert.Zero(t, native.finalizeCount())
}

func TestInvocationHandler_ClearAndWait(t *testing.T) {
	entered := make(chan struct{})
	proceed := make(chan struct{})
	native := &fakeDispatcher{}
	native.onDispatch = func() {
		close(entered)
		<-proceed
	}
	ih := NewInvocationHandler(0x9, native)
	foo, _ := demo.Lookup("foo")

	go func() { _, _ = ih.Invoke(1, foo, nil) }()
	<-entered

	var waited atomic.Bool
	done := make(chan struct{})
	go func() {
		ih.ClearAndWait()
		waited.Store(true)
		close(done)
	}()

	// The forward is still running, so ClearAndWait must not have returned.
	assert.False(t, waited.Load())
	close(proceed)
	<-done

	native.onDispatch = nil
	_, _ = ih.Invoke(1, foo, nil)
	assert.Equal(t, 1, native.dispatchCount())
}

func TestInvocationHandler_ConcurrentClear(t *testing.T) {
	native := &fakeDispatcher{result: 1}
	ih := NewInvocationHandler(0x10, native)
	foo, _ := demo.Lookup("foo")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = ih.Invoke(1, foo, nil)
			}
		}()
	}
	ih.ClearAndWait()
	after := native.dispatchCount()
	wg.Wait()

	assert.Equal(t, after, native.dispatchCount(), "no dispatch may start after ClearAndWait")
}
