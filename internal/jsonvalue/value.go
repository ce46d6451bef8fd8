// Package jsonvalue models dynamically-shaped JSON-like payloads as a small
// sum type: null, bool, number, string, object and array.
//
// Module payloads fetched for a dog have no fixed schema, so the diff engine
// works on [Value] rather than on concrete structs. [Equal] implements the
// recursive structural comparison used for change detection.
package jsonvalue

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Object is a JSON object: an unordered mapping of string keys to values.
type Object map[string]Value

// numForm records how a number was written. Integers keep their exact
// value next to the float64 approximation so that large ids and counters
// compare exactly.
type numForm uint8

const (
	formFloat numForm = iota
	formInt           // fits int64, held in i
	formUint          // above math.MaxInt64, held in u
)

// Value is an immutable-by-convention JSON-like value.
// The zero Value is null.
type Value struct {
	kind Kind
	form numForm
	b    bool
	n    float64
	i    int64
	u    uint64
	s    string
	obj  Object
	arr  []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float64.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Int wraps an integer as a number.
func Int(n int64) Value { return Value{kind: KindNumber, form: formInt, n: float64(n), i: n} }

// Uint wraps an unsigned integer as a number.
func Uint(n uint64) Value {
	if n <= math.MaxInt64 {
		return Int(int64(n))
	}
	return Value{kind: KindNumber, form: formUint, n: float64(n), u: n}
}

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// FromObject wraps an object. A nil object is still an object (empty), not null.
func FromObject(o Object) Value {
	if o == nil {
		o = Object{}
	}
	return Value{kind: KindObject, obj: o}
}

// Array wraps a sequence of values.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean and true when v is a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the number and true when v is a number. Integers beyond
// 2^53 come back rounded; use AsInt for their exact value.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsInt returns the exact integer and true when v is a number written as
// an integer that fits int64.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindNumber && v.form == formInt }

// AsString returns the string and true when v is a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsObject returns the object and true when v is an object.
// The returned map is shared with v and must not be mutated.
func (v Value) AsObject() (Object, bool) { return v.obj, v.kind == KindObject }

// AsArray returns the items and true when v is an array.
// The returned slice is shared with v and must not be mutated.
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }

// Len returns the number of entries of an object or array, 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindObject:
		return len(v.obj)
	case KindArray:
		return len(v.arr)
	default:
		return 0
	}
}

// Get returns the member named key when v is an object.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	m, ok := v.obj[key]
	return m, ok
}

// String renders v in a compact JSON-like form, mostly for logs and tests.
func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

func (v Value) write(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		switch v.form {
		case formInt:
			sb.WriteString(strconv.FormatInt(v.i, 10))
			return
		case formUint:
			sb.WriteString(strconv.FormatUint(v.u, 10))
			return
		}
		if math.IsInf(v.n, 0) || math.IsNaN(v.n) {
			sb.WriteString(strconv.Quote(strconv.FormatFloat(v.n, 'g', -1, 64)))
			return
		}
		sb.WriteString(strconv.FormatFloat(v.n, 'g', -1, 64))
	case KindString:
		sb.WriteString(strconv.Quote(v.s))
	case KindObject:
		sb.WriteByte('{')
		for i, k := range v.obj.Keys() {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteByte(':')
			v.obj[k].write(sb)
		}
		sb.WriteByte('}')
	case KindArray:
		sb.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				sb.WriteByte(',')
			}
			item.write(sb)
		}
		sb.WriteByte(']')
	}
}

// Keys returns the object's keys in sorted order.
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Clone returns a deep copy of the object.
func (o Object) Clone() Object {
	if o == nil {
		return nil
	}
	out := make(Object, len(o))
	for k, v := range o {
		out[k] = Clone(v)
	}
	return out
}

// Clone returns a deep copy of v. Scalars are returned as-is.
func Clone(v Value) Value {
	switch v.kind {
	case KindObject:
		return Value{kind: KindObject, obj: v.obj.Clone()}
	case KindArray:
		items := make([]Value, len(v.arr))
		for i, item := range v.arr {
			items[i] = Clone(item)
		}
		return Value{kind: KindArray, arr: items}
	default:
		return v
	}
}
