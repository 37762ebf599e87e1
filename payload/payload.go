// Package payload models the values the managed runtime hands to bridge
// callbacks: argument bundles and intents.
package payload

import (
	"encoding/json"
	"math"
)

// Bundle is a string-keyed argument or state bag.
type Bundle map[string]any

// Int64 returns the integer stored under key. Every Go integer kind,
// integral float64 (as produced by JSON and YAML decoding) and json.Number
// are accepted.
func (b Bundle) Int64(key string) (int64, bool) {
	if b == nil {
		return 0, false
	}
	v, ok := b[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// Uint64 returns the 64-bit value stored under key. Signed values are
// reinterpreted bit for bit, so a pointer-sized value carried as a signed
// long survives the round trip.
func (b Bundle) Uint64(key string) (uint64, bool) {
	if b != nil {
		if u, ok := b[key].(uint64); ok {
			return u, true
		}
	}
	i, ok := b.Int64(key)
	return uint64(i), ok
}

// Int32Or returns the value under key, or def when it is missing, not an
// integer or out of int32 range.
func (b Bundle) Int32Or(key string, def int32) int32 {
	i, ok := b.Int64(key)
	if !ok || i < math.MinInt32 || i > math.MaxInt32 {
		return def
	}
	return int32(i)
}

// String returns the string stored under key.
func (b Bundle) String(key string) (string, bool) {
	if b == nil {
		return "", false
	}
	s, ok := b[key].(string)
	return s, ok
}

// Clone returns a shallow copy.
func (b Bundle) Clone() Bundle {
	if b == nil {
		return nil
	}
	out := make(Bundle, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Intent is a broadcast or activity-result message.
type Intent struct {
	Extras Bundle `json:"extras,omitempty" yaml:"extras,omitempty"`
	Action string `json:"action,omitempty" yaml:"action,omitempty"`
}

// NewIntent creates an intent for action.
func NewIntent(action string) *Intent {
	return &Intent{Action: action}
}

// PutExtra stores an extra and returns the intent for chaining.
func (i *Intent) PutExtra(key string, value any) *Intent {
	if i.Extras == nil {
		i.Extras = make(Bundle)
	}
	i.Extras[key] = value
	return i
}

// IntExtra returns the integer extra under key, or def when the intent or
// the extra is missing or does not fit in int32.
func (i *Intent) IntExtra(key string, def int32) int32 {
	if i == nil {
		return def
	}
	return i.Extras.Int32Or(key, def)
}
