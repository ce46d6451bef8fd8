package jsonvalue

import (
	"math"
	"reflect"
)

// Equal reports whether a and b are structurally equal.
//
// Objects are equal when they have the same key set and every member is
// equal; arrays when they have the same length and are pairwise equal.
// Values of different kinds are never equal. Integers compare exactly, an
// integer equals a float only when the float holds that same integer, and a
// NaN number is not equal to itself.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return numbersEqual(a, b)
	case KindString:
		return a.s == b.s
	case KindObject:
		return ObjectsEqual(a.obj, b.obj)
	case KindArray:
		return arraysEqual(a.arr, b.arr)
	default:
		return false
	}
}

// ObjectsEqual reports whether two objects hold the same keys with equal values.
// A nil object equals an empty one.
func ObjectsEqual(a, b Object) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 || sameObject(a, b) {
		return true
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

func arraysEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 || &a[0] == &b[0] {
		return true
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// sameObject is an identity fast path: both maps share storage.
func sameObject(a, b Object) bool {
	return reflect.ValueOf(a).UnsafePointer() == reflect.ValueOf(b).UnsafePointer()
}

func numbersEqual(a, b Value) bool {
	switch {
	case a.form == formFloat && b.form == formFloat:
		return a.n == b.n
	case a.form == formInt && b.form == formInt:
		return a.i == b.i
	case a.form == formUint && b.form == formUint:
		return a.u == b.u
	case a.form != formFloat && b.form != formFloat:
		// formUint is always above every formInt value.
		return false
	}

	if a.form == formFloat {
		a, b = b, a
	}
	f := b.n
	if a.n != f || f != math.Trunc(f) {
		return false
	}
	if a.form == formInt {
		return f >= -(1<<63) && f < 1<<63 && int64(f) == a.i
	}
	return f >= 1<<63 && f < 1<<64 && uint64(f) == a.u
}
