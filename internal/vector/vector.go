// Package vector provides an insertion-ordered mapping from feature name to
// value.
//
// Feature maps cross the JSON boundary in both directions and their key
// order is significant: ranking ties are broken by the order in which
// features were produced. A Go map cannot carry that order, so Vector keeps
// an explicit key slice next to the values.
package vector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrNotObject is returned when a JSON value that should be a feature map is
// not an object.
var ErrNotObject = errors.New("feature map must be a JSON object")

// Vector is an ordered feature-name to value mapping. The zero value is an
// empty vector ready for use.
type Vector struct {
	keys   []string
	values map[string]float64
}

// New returns an empty vector with room for n entries.
func New(n int) *Vector {
	return &Vector{
		keys:   make([]string, 0, n),
		values: make(map[string]float64, n),
	}
}

// FromPairs builds a vector from alternating key/value pairs, preserving
// their order. It is mostly useful in tests.
func FromPairs(pairs ...any) *Vector {
	v := New(len(pairs) / 2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key, _ := pairs[i].(string)
		switch n := pairs[i+1].(type) {
		case float64:
			v.Set(key, n)
		case int:
			v.Set(key, float64(n))
		}
	}
	return v
}

// Set assigns value to key. A new key is appended; an existing key keeps its
// original position.
func (v *Vector) Set(key string, value float64) {
	if v.values == nil {
		v.values = make(map[string]float64)
	}
	if _, ok := v.values[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.values[key] = value
}

// Get returns the value for key and whether it was present.
func (v *Vector) Get(key string) (float64, bool) {
	if v == nil || v.values == nil {
		return 0, false
	}
	val, ok := v.values[key]
	return val, ok
}

// Len returns the number of entries.
func (v *Vector) Len() int {
	if v == nil {
		return 0
	}
	return len(v.keys)
}

// Keys returns a copy of the keys in insertion order.
func (v *Vector) Keys() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Values returns the values in key order.
func (v *Vector) Values() []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v.keys))
	for i, k := range v.keys {
		out[i] = v.values[k]
	}
	return out
}

// Range calls fn for each entry in order until fn returns false.
func (v *Vector) Range(fn func(key string, value float64) bool) {
	if v == nil {
		return
	}
	for _, k := range v.keys {
		if !fn(k, v.values[k]) {
			return
		}
	}
}

// Map returns an unordered copy of the entries.
func (v *Vector) Map() map[string]float64 {
	out := make(map[string]float64, v.Len())
	v.Range(func(k string, val float64) bool {
		out[k] = val
		return true
	})
	return out
}

// Clone returns a deep copy.
func (v *Vector) Clone() *Vector {
	out := New(v.Len())
	v.Range(func(k string, val float64) bool {
		out.Set(k, val)
		return true
	})
	return out
}

// MarshalJSON encodes the vector as a JSON object with keys in order.
func (v *Vector) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	var err error
	first := true
	v.Range(func(k string, val float64) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false

		var kb, vb []byte
		if kb, err = json.Marshal(k); err != nil {
			return false
		}
		if vb, err = json.Marshal(val); err != nil {
			err = fmt.Errorf("feature %q: %w", k, err)
			return false
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of numbers, preserving key order.
// Booleans are accepted as 0/1 so that QC-style maps can be baselined too.
func (v *Vector) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode feature map: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ErrNotObject
	}

	*v = Vector{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode feature map: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("decode feature map: unexpected key %v", tok)
		}

		tok, err = dec.Token()
		if err != nil {
			return fmt.Errorf("decode feature %q: %w", key, err)
		}
		switch val := tok.(type) {
		case json.Number:
			f, err := strconv.ParseFloat(val.String(), 64)
			if err != nil {
				return fmt.Errorf("decode feature %q: %w", key, err)
			}
			v.Set(key, f)
		case bool:
			if val {
				v.Set(key, 1)
			} else {
				v.Set(key, 0)
			}
		default:
			return fmt.Errorf("decode feature %q: value must be a number, got %T", key, tok)
		}
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode feature map: %w", err)
	}
	if v.values == nil {
		v.values = make(map[string]float64)
	}
	return nil
}
