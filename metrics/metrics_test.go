package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/native-bridge/handle"
	"github.com/wippyai/native-bridge/overlay"
	"github.com/wippyai/native-bridge/payload"
)

type nopNative struct{ err error }

func (n nopNative) OverlayCreated(handle.Handle, payload.Bundle) error { return n.err }
func (n nopNative) OverlayStarted(handle.Handle) error                 { return n.err }
func (n nopNative) OverlayPermissionsResult(handle.Handle, int32, []string, []int32) error {
	return n.err
}
func (n nopNative) OverlayActivityResult(handle.Handle, int32, int32, *payload.Intent) error {
	return n.err
}

func TestCollector_OverlayEvents(t *testing.T) {
	c := NewCollector()
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	args := payload.Bundle{overlay.OwnerHandleKey: uint64(0xABCD)}
	ov := overlay.New(args, nopNative{}, overlay.WithObserver(c))
	require.NoError(t, ov.OnCreate(nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.bound.WithLabelValues("overlay")))

	ov.Close()
	require.NoError(t, ov.OnStart())

	assert.Equal(t, 1.0, testutil.ToFloat64(c.events.WithLabelValues("overlay", overlay.EntryCreated, "forwarded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.events.WithLabelValues("overlay", overlay.EntryStarted, "skipped")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.bound.WithLabelValues("overlay")))

	expected := `
# HELP nativebridge_bound_handles Handles currently bound, by component.
# TYPE nativebridge_bound_handles gauge
nativebridge_bound_handles{component="overlay"} 0
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "nativebridge_bound_handles"))
}

func TestCollector_ForwardErrors(t *testing.T) {
	c := NewCollector()
	args := payload.Bundle{overlay.OwnerHandleKey: uint64(1)}
	ov := overlay.New(args, nopNative{err: errors.New("boom")}, overlay.WithObserver(c))

	assert.Error(t, ov.OnStart())
	assert.Error(t, ov.OnStart())
	assert.Equal(t, 2.0, testutil.ToFloat64(c.errors.WithLabelValues("overlay", overlay.EntryStarted)))
}

func TestCollector_Arena(t *testing.T) {
	c := NewCollector()
	a := handle.NewArena[int]("native")
	a.Subscribe(c)

	h1, err := a.Insert(1)
	require.NoError(t, err)
	_, err = a.Insert(2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.bound.WithLabelValues("native")))

	a.Remove(h1)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.bound.WithLabelValues("native")))

	require.NoError(t, a.Close())
	assert.Equal(t, 0.0, testutil.ToFloat64(c.bound.WithLabelValues("native")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.events.WithLabelValues("native", "", "released")))
}
