package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"unicode/utf16"
)

// Value is a sealed interface over the types that may travel along an edge.
// Only Undefined, Null, String, Number, Bool, Array and Object implement it.
type Value interface {
	value() // Sealed
}

// Undefined marks a slot that has no value yet: an unconnected input, or an
// upstream node that has not produced anything for that port.
type Undefined struct{}

func (Undefined) value() {}

// Null is JSON null.
type Null struct{}

func (Null) value() {}

// String is a text value. Most operators consume and produce strings.
type String string

func (String) value() {}

// Number is a JSON number kept as its literal text.
type Number string

func (Number) value() {}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// Array is an ordered list of values.
type Array []Value

func (Array) value() {}

// Object is a map of string keys to values.
// Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) value() {}

// IsUndefined reports whether v carries no value. A nil Value counts as
// Undefined so zero-valued slots behave like unconnected ones.
func IsUndefined(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Undefined)
	return ok
}

// Text coerces a value to the text a transform operates on.
//
// Undefined, Null and the empty string all become "". Numbers keep their
// literal, booleans print as true/false, and arrays or objects render as
// JSON.
func Text(v Value) string {
	switch val := v.(type) {
	case nil, Undefined, Null:
		return ""
	case String:
		return string(val)
	case Number:
		return string(val)
	case Bool:
		return strconv.FormatBool(bool(val))
	default:
		data, err := Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

// SortedKeys returns keys in canonical order (UTF-16 code units).
// Go's sort.Strings compares UTF-8 bytes, which orders some keys differently.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// String returns the text stored under key and whether it was a String.
func (o Object) String(key string) (string, bool) {
	s, ok := o[key].(String)
	return string(s), ok
}

// Merge returns a new object holding o overlaid with partial.
// The merge is shallow: nested objects in partial replace those in o.
func (o Object) Merge(partial Object) Object {
	out := make(Object, len(o)+len(partial))
	for k, v := range o {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of o. A nil object clones to an empty one.
func (o Object) Clone() Object {
	out := make(Object, len(o))
	for k, v := range o {
		out[k] = Clone(v)
	}
	return out
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch val := v.(type) {
	case nil:
		return Undefined{}
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case Object:
		return val.Clone()
	default:
		return val
	}
}

// CloneTuple returns a deep copy of an input or output tuple.
func CloneTuple(vals []Value) []Value {
	if vals == nil {
		return nil
	}
	out := make([]Value, len(vals))
	for i, v := range vals {
		out[i] = Clone(v)
	}
	return out
}

// compareKeys orders strings by UTF-16 code units.
func compareKeys(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// Decode parses a single JSON document into a Value.
// Numbers are kept as literals; trailing data after the document is an error.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}

	return FromAny(raw)
}

// FromAny converts decoded Go data (JSON, YAML, CUE or cty output) to a Value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case json.Number:
		return Number(val.String()), nil
	case int:
		return Number(strconv.Itoa(val)), nil
	case int64:
		return Number(strconv.FormatInt(val, 10)), nil
	case uint64:
		return Number(strconv.FormatUint(val, 10)), nil
	case float64:
		return Number(strconv.FormatFloat(val, 'g', -1, 64)), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	case map[string]string:
		obj := make(Object, len(val))
		for k, elem := range val {
			obj[k] = String(elem)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ObjectFromAny converts a decoded mapping to an Object.
// A nil mapping yields an empty object.
func ObjectFromAny(m map[string]any) (Object, error) {
	if m == nil {
		return Object{}, nil
	}
	v, err := FromAny(m)
	if err != nil {
		return nil, err
	}
	return v.(Object), nil
}

// ToAny converts a Value back to plain Go data for JSON or YAML encoding.
// Undefined becomes nil, numbers become json.Number.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Undefined, Null:
		return nil
	case String:
		return string(val)
	case Number:
		return json.Number(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}
