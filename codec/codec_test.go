package codec

import (
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/native-bridge/errors"
)

type permissions struct {
	Permissions  []string `json:"permissions"`
	GrantResults []int32  `json:"grant_results"`
}

func TestCodecs_StructRoundTrip(t *testing.T) {
	for _, c := range []Codec{JSON{}, CBOR{}} {
		t.Run(c.Name(), func(t *testing.T) {
			in := permissions{
				Permissions:  []string{"camera", "microphone"},
				GrantResults: []int32{0, -1},
			}
			data, err := Marshal(c, in)
			require.NoError(t, err)

			var out permissions
			require.NoError(t, c.DecodeInto(data, &out))
			assert.Equal(t, in, out)

			generic, err := c.Decode(data)
			require.NoError(t, err)
			m, ok := generic.(map[string]any)
			require.True(t, ok, "maps decode to map[string]any, got %T", generic)
			assert.Contains(t, m, "grant_results")
		})
	}
}

func TestCodecs_EmptyDecodesToNil(t *testing.T) {
	for _, c := range []Codec{JSON{}, CBOR{}} {
		v, err := c.Decode(nil)
		assert.NoError(t, err)
		assert.Nil(t, v)
	}
}

func TestJSON_DecodeKeepsLargeIntegers(t *testing.T) {
	v, err := JSON{}.Decode([]byte(`{"id":9007199254740993,"ratio":0.5}`))
	require.NoError(t, err)
	m := v.(map[string]any)

	id, ok := m["id"].(json.Number)
	require.True(t, ok, "numbers decode to json.Number, got %T", m["id"])
	n, err := id.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), n)
	assert.Equal(t, json.Number("0.5"), m["ratio"])
}

func TestJSON_DecodeRejectsTrailingData(t *testing.T) {
	_, err := JSON{}.Decode([]byte(`{"a":1} {"b":2}`))
	assert.Error(t, err)

	var out map[string]any
	assert.Error(t, JSON{}.DecodeInto([]byte(`1 2`), &out))
	assert.NoError(t, JSON{}.DecodeInto([]byte("{}\n"), &out))
}

func TestJSON_EncodeHasNoTrailingNewline(t *testing.T) {
	data, err := Marshal(JSON{}, map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, `{"k":"v"}`, string(data))
}

func TestMarshal_EncodeError(t *testing.T) {
	_, err := Marshal(JSON{}, func() {})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, &errors.Error{Phase: errors.PhaseEncode, Kind: errors.KindInvalidData}))
}

func TestByName(t *testing.T) {
	c, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	c, err = ByName("cbor")
	require.NoError(t, err)
	assert.Equal(t, "cbor", c.Name())

	_, err = ByName("xml")
	assert.Error(t, err)
}
