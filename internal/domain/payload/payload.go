// Package payload models weakly-typed upstream JSON as a small sum type with
// total accessors: every lookup on the wrong shape yields the empty Value
// instead of an error or a panic.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind enumerates the shapes a Value can hold.
type Kind int

// Value kinds.
const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "null"
	}
}

// Value is one node of a JSON-like tree. The zero Value is null.
type Value struct {
	raw any
}

// Parse decodes JSON bytes into a Value. Numbers keep their literal text.
func Parse(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Value{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("decode payload: %w", err)
	}
	return Value{raw: raw}, nil
}

// ParseString decodes an embedded JSON document (e.g. a serialized space).
// Malformed input yields null.
func ParseString(s string) Value {
	v, err := Parse([]byte(s))
	if err != nil {
		return Value{}
	}
	return v
}

// From wraps an already-decoded Go value (map[string]any, []any, string,
// float64, json.Number, bool, nil). Unknown types are treated as null.
func From(raw any) Value {
	switch raw.(type) {
	case nil, bool, string, float64, int, int64, json.Number, []any, map[string]any:
		return Value{raw: raw}
	default:
		return Value{}
	}
}

// Raw returns the underlying Go value.
func (v Value) Raw() any { return v.raw }

// Kind reports the shape of v.
func (v Value) Kind() Kind {
	switch v.raw.(type) {
	case bool:
		return Bool
	case float64, int, int64, json.Number:
		return Number
	case string:
		return String
	case []any:
		return Array
	case map[string]any:
		return Object
	default:
		return Null
	}
}

// IsNull reports whether v is null (including absent lookups).
func (v Value) IsNull() bool { return v.Kind() == Null }

// Get returns the member key of an object, or null.
func (v Value) Get(key string) Value {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return Value{}
	}
	return From(m[key])
}

// Path follows a chain of object keys.
func (v Value) Path(keys ...string) Value {
	cur := v
	for _, k := range keys {
		cur = cur.Get(k)
		if cur.IsNull() {
			return Value{}
		}
	}
	return cur
}

// First returns the first non-null member among keys.
func (v Value) First(keys ...string) Value {
	for _, k := range keys {
		if c := v.Get(k); !c.IsNull() {
			return c
		}
	}
	return Value{}
}

// Items returns the elements of an array, or nil.
func (v Value) Items() []Value {
	arr, ok := v.raw.([]any)
	if !ok {
		return nil
	}
	out := make([]Value, 0, len(arr))
	for _, e := range arr {
		out = append(out, From(e))
	}
	return out
}

// Keys returns the member names of an object, or nil. Order is unspecified.
func (v Value) Keys() []string {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the element count of arrays and objects, 0 otherwise.
func (v Value) Len() int {
	switch t := v.raw.(type) {
	case []any:
		return len(t)
	case map[string]any:
		return len(t)
	default:
		return 0
	}
}

// Str returns a string value. Numbers and booleans are not coerced.
func (v Value) Str() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok
}

// String returns the scalar as text: strings verbatim, numbers and booleans
// formatted, everything else "".
func (v Value) String() string {
	switch t := v.raw.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// Text joins a string or an array of scalar strings with sep. Upstream
// writes multi-line text either as one string or as a list of lines.
func (v Value) Text(sep string) string {
	switch v.Kind() {
	case String, Number, Bool:
		return v.String()
	case Array:
		parts := make([]string, 0, v.Len())
		for _, e := range v.Items() {
			if s := e.String(); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, sep)
	default:
		return ""
	}
}

// Strings flattens a string or an array of strings (one level deep).
func (v Value) Strings() []string {
	switch v.Kind() {
	case String:
		if s := v.String(); s != "" {
			return []string{s}
		}
		return nil
	case Array:
		var out []string
		for _, e := range v.Items() {
			if e.Kind() == String {
				if s := e.String(); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	default:
		return nil
	}
}

// Int returns an integer value. Numeric strings are accepted.
func (v Value) Int() (int, bool) {
	switch t := v.raw.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), true
		}
		if f, err := t.Float64(); err == nil {
			return int(f), true
		}
	case float64:
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// BoolValue returns a boolean value. "true"/"false" strings are accepted.
func (v Value) BoolValue() (bool, bool) {
	switch t := v.raw.(type) {
	case bool:
		return t, true
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b, true
		}
	}
	return false, false
}

// Empty reports whether v carries no information: null, blank string,
// empty array or empty object.
func (v Value) Empty() bool {
	switch v.Kind() {
	case Null:
		return true
	case String:
		return strings.TrimSpace(v.String()) == ""
	case Array, Object:
		return v.Len() == 0
	default:
		return false
	}
}

// MarshalJSON encodes the underlying value.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

// UnmarshalJSON decodes into the sum type.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
