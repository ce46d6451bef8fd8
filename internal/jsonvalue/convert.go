package jsonvalue

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"

	json "github.com/goccy/go-json"
)

// FromAny converts a decoded JSON or YAML tree into a Value.
//
// Accepted inputs are nil, bool, strings, every integer and float kind,
// json.Number, map[string]any, map[any]any with string keys, []any and
// Value itself. Anything else is an error.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case int32:
		return Int(int64(t)), nil
	case uint64:
		return Uint(t), nil
	case json.Number:
		return numberFromLiteral(t.String())
	case map[string]any:
		obj := make(Object, len(t))
		for k, v := range t {
			cv, err := FromAny(v)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			obj[k] = cv
		}
		return FromObject(obj), nil
	case map[any]any:
		obj := make(Object, len(t))
		for k, v := range t {
			key, ok := k.(string)
			if !ok {
				return Value{}, fmt.Errorf("non-string object key %v", k)
			}
			cv, err := FromAny(v)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", key, err)
			}
			obj[key] = cv
		}
		return FromObject(obj), nil
	case []any:
		items := make([]Value, len(t))
		for i, v := range t {
			cv, err := FromAny(v)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = cv
		}
		return Array(items...), nil
	}

	// Remaining integer kinds (uint, int8, ...) without enumerating each.
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Uint(rv.Uint()), nil
	}
	return Value{}, fmt.Errorf("unsupported type %T", x)
}

// numberFromLiteral keeps integer literals exact and falls back to float64
// for everything else.
func numberFromLiteral(lit string) (Value, error) {
	if n, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return Int(n), nil
	}
	if n, err := strconv.ParseUint(lit, 10, 64); err == nil {
		return Uint(n), nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return Value{}, fmt.Errorf("number %q: %w", lit, err)
	}
	return Number(f), nil
}

// MustFromAny is FromAny that panics on error. Intended for literals in tests.
func MustFromAny(x any) Value {
	v, err := FromAny(x)
	if err != nil {
		panic(err)
	}
	return v
}

// ObjectFromAny converts a decoded map into an Object.
func ObjectFromAny(x any) (Object, error) {
	v, err := FromAny(x)
	if err != nil {
		return nil, err
	}
	obj, ok := v.AsObject()
	if !ok {
		return nil, fmt.Errorf("expected object, got %s", v.Kind())
	}
	return obj, nil
}

// Any converts v back into plain Go values (map[string]any, []any, int64,
// uint64, float64, string, bool, nil). Integers stay integers.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		switch v.form {
		case formInt:
			return v.i
		case formUint:
			return v.u
		}
		return v.n
	case KindString:
		return v.s
	case KindObject:
		return v.obj.Any()
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Any()
		}
		return out
	default:
		return nil
	}
}

// Any converts the object into a map[string]any.
func (o Object) Any() map[string]any {
	out := make(map[string]any, len(o))
	for k, v := range o {
		out[k] = v.Any()
	}
	return out
}

// MarshalJSON encodes v as JSON. Non-finite numbers encode as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber && (math.IsNaN(v.n) || math.IsInf(v.n, 0)) {
		return []byte("null"), nil
	}
	return json.Marshal(v.Any())
}

// UnmarshalJSON decodes any JSON document into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Parse decodes a JSON document into a Value.
func Parse(data []byte) (Value, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads one JSON document from r. Numbers are decoded from their
// literal text so integers keep full precision.
func Decode(r io.Reader) (Value, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("decode json: %w", err)
	}
	return FromAny(raw)
}
