package broadcast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/native-bridge/handle"
	"github.com/wippyai/native-bridge/payload"
)

type codes []int32

func (c *codes) handler() Handler {
	return HandlerFunc(func(code int32) error {
		*c = append(*c, code)
		return nil
	})
}

func TestReceiver_ForwardsCode(t *testing.T) {
	var got codes
	r := NewReceiver(got.handler())

	require.NoError(t, r.OnReceive(payload.NewIntent("alarm").PutExtra(RequestCodeKey, 42)))
	assert.Equal(t, codes{42}, got)
}

func TestReceiver_DefaultsToZero(t *testing.T) {
	var got codes
	r := NewReceiver(got.handler())

	require.NoError(t, r.OnReceive(payload.NewIntent("alarm")))
	require.NoError(t, r.OnReceive(nil))
	require.NoError(t, r.OnReceive(payload.NewIntent("alarm").PutExtra("other", 9)))

	assert.Equal(t, codes{0, 0, 0}, got)
}

func TestReceiver_ExtraTypes(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int32
	}{
		{"int", 7, 7},
		{"int64", int64(-3), -3},
		{"json float", float64(12), 12},
		{"negative", int32(-1), -1},
		{"wider than int32", int64(1<<32 + 42), 0},
		{"int32 overflow", int64(1 << 31), 0},
		{"not a number", "42", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got codes
			r := NewReceiver(got.handler())
			require.NoError(t, r.OnReceive(payload.NewIntent("x").PutExtra(RequestCodeKey, tt.value)))
			assert.Equal(t, codes{tt.want}, got)
		})
	}
}

func TestReceiver_HandlerError(t *testing.T) {
	want := errors.New("no such alarm")
	r := NewReceiver(HandlerFunc(func(int32) error { return want }))

	assert.Same(t, want, r.OnReceive(Intent("alarm", 1)))
}

func TestReceiver_Observer(t *testing.T) {
	rec := &handle.Recorder{}
	var got codes
	r := NewReceiver(got.handler(), WithObserver(rec))

	require.NoError(t, r.OnReceive(Intent("alarm", 5)))
	require.NoError(t, r.OnReceive(Intent("alarm", 6)))

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "broadcast", events[0].Component)
	assert.Equal(t, EntryReceived, events[0].Entry)
	assert.Equal(t, handle.EventForwarded, events[0].Type)
}
