// Package codec encodes bridge payloads for native code.
//
// Payloads cross into native code as opaque byte strings: state bundles,
// permission results, intents and capability arguments. JSON keeps native
// dependencies minimal; CBOR is available for guests that prefer a compact
// binary form.
package codec

import (
	"bytes"
	"encoding/json"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/valyala/bytebufferpool"

	"github.com/wippyai/native-bridge/errors"
)

// Codec encodes and decodes payloads exchanged with native code.
type Codec interface {
	// Name identifies the codec in configuration.
	Name() string

	// Encode writes the encoded value to w.
	Encode(w io.Writer, value any) error

	// Decode converts bytes received from native code to a Go value.
	// Empty input decodes to nil.
	Decode(data []byte) (any, error)

	// DecodeInto decodes into a specific type.
	DecodeInto(data []byte, v any) error
}

// JSON implements Codec using JSON encoding.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Encode(w io.Writer, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Decode keeps numbers as json.Number so 64-bit integers from native code
// are not rounded through float64.
func (c JSON) Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var result any
	if err := c.DecodeInto(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (JSON) DecodeInto(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("trailing data after top-level value at offset %d", dec.InputOffset()).
			Build()
	}
	return nil
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// CBOR implements Codec using deterministic CBOR. Maps decode to
// map[string]any so results look the same as with JSON.
type CBOR struct{}

func (CBOR) Name() string { return "cbor" }

func (CBOR) Encode(w io.Writer, value any) error {
	return cborEnc.NewEncoder(w).Encode(value)
}

func (CBOR) Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var result any
	if err := cborDec.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (CBOR) DecodeInto(data []byte, v any) error {
	return cborDec.Unmarshal(data, v)
}

// Default is the codec used when none is configured.
var Default Codec = JSON{}

// ByName returns the codec registered under name. An empty name selects
// Default.
func ByName(name string) (Codec, error) {
	switch name {
	case "":
		return Default, nil
	case "json":
		return JSON{}, nil
	case "cbor":
		return CBOR{}, nil
	default:
		return nil, errors.NotFound(errors.PhaseConfig, "codec", name)
	}
}

// Marshal encodes value through a pooled buffer and returns a copy of the
// encoded bytes.
func Marshal(c Codec, value any) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := c.Encode(buf, value); err != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "encode "+c.Name()+" payload")
	}
	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out, nil
}
