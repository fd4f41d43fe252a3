// Package object defines the run-time value representation:
// a single tagged Object value type with variants for Null, Bool, Int,
// Long, Float, Complex, String, List, Map, Range, Function, Table, and
// the Empty end-of-iteration sentinel. A TInterface tag is defined, but
// no Object type reports it. Object is an interface
// satisfied by small concrete types and dispatched on with a type
// switch, rather than a bare `any`, since the VM needs identity-vs-value
// equality and an explicit type tag that a simple tree-walking
// interpreter never had to make precise.
package object

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Type tags every Object variant.
type Type int

const (
	TNull Type = iota
	TBool
	TInt
	TLong
	TFloat
	TComplex
	TString
	TList
	TMap
	TRange
	TFunction
	TTable
	TInterface
	TEmpty
)

func (t Type) String() string {
	switch t {
	case TNull:
		return "Null"
	case TBool:
		return "Bool"
	case TInt:
		return "Int"
	case TLong:
		return "Long"
	case TFloat:
		return "Float"
	case TComplex:
		return "Complex"
	case TString:
		return "String"
	case TList:
		return "List"
	case TMap:
		return "Map"
	case TRange:
		return "Range"
	case TFunction:
		return "Function"
	case TTable:
		return "Table"
	case TInterface:
		return "Interface"
	case TEmpty:
		return "Empty"
	}
	return "Unknown"
}

// Object is the single run-time value type every VM stack slot holds.
type Object interface {
	Type() Type
	String() string
}

// Null is the single Null value; use the Null global rather than
// constructing one, so `==`/`is` can compare by interface identity for the
// cheap case.
type nullType struct{}

func (nullType) Type() Type     { return TNull }
func (nullType) String() string { return "null" }

// Null is the sole Null value.
var Null Object = nullType{}

// emptyType is the Empty end-of-iteration sentinel, distinct from Null.
type emptyType struct{}

func (emptyType) Type() Type     { return TEmpty }
func (emptyType) String() string { return "empty" }

// Empty is the sole Empty sentinel value.
var Empty Object = emptyType{}

// Bool wraps a boolean. True/False are the canonical instances.
type Bool bool

func (b Bool) Type() Type { return TBool }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

var (
	True  Object = Bool(true)
	False Object = Bool(false)
)

// FromBool returns the canonical Bool instance for v.
func FromBool(v bool) Object {
	if v {
		return True
	}
	return False
}

// Int is a signed machine integer.
type Int int32

func (i Int) Type() Type     { return TInt }
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Long is the arbitrary-precision integer Interface type Int arithmetic
// overflows into. Backed by math/big: no pack example ships a bignum
// library, so the standard library is the widening target here (see
// DESIGN.md).
type Long struct{ V *big.Int }

func NewLong(v *big.Int) Long { return Long{V: v} }

func (l Long) Type() Type     { return TLong }
func (l Long) String() string { return l.V.String() }

// Float is an IEEE-754 double.
type Float float64

func (f Float) Type() Type { return TFloat }
func (f Float) String() string {
	if math.IsInf(float64(f), 1) {
		return "inf"
	}
	if math.IsInf(float64(f), -1) {
		return "-inf"
	}
	return strconv.FormatFloat(float64(f), 'g', -1, 64)
}

// Complex holds two floats.
type Complex complex128

func (c Complex) Type() Type { return TComplex }
func (c Complex) String() string {
	v := complex128(c)
	if imag(v) >= 0 {
		return fmt.Sprintf("%g+%gi", real(v), imag(v))
	}
	return fmt.Sprintf("%g%gi", real(v), imag(v))
}

// String is an immutable, shared sequence of Unicode scalar values.
type String string

func (s String) Type() Type     { return TString }
func (s String) String() string { return string(s) }

// Repr renders a length-capped representation used in error "Note:"
// lines: quoted if a string, truncated past 32 characters.
func Repr(o Object) string {
	s := o.String()
	if o.Type() == TString {
		s = strconv.Quote(s)
	}
	if len(s) > 32 {
		return s[:32] + "... "
	}
	return s
}

// Truthy reports whether o is considered true in a boolean context. Every
// value is truthy except Null, Empty, and the boolean false.
func Truthy(o Object) bool {
	switch v := o.(type) {
	case nullType:
		return false
	case emptyType:
		return false
	case Bool:
		return bool(v)
	}
	return true
}

// Identity reports whether a and b are the same value under `is`:
// pointer equality for shared variants, value equality for scalars. NaN
// `is` NaN is true since `is` compares bit patterns for floats, not IEEE
// equality.
func Identity(a, b Object) bool {
	switch av := a.(type) {
	case nullType:
		_, ok := b.(nullType)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && math.Float64bits(float64(av)) == math.Float64bits(float64(bv))
	default:
		return samePointer(a, b)
	}
}

// samePointer compares the shared (reference) variants by identity.
func samePointer(a, b Object) bool {
	switch av := a.(type) {
	case *List:
		bv, ok := b.(*List)
		return ok && av == bv
	case *Map:
		bv, ok := b.(*Map)
		return ok && av == bv
	case *Table:
		bv, ok := b.(*Table)
		return ok && av == bv
	case *Function:
		bv, ok := b.(*Function)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	}
	return false
}

// Equal implements `==`: structural value equality within the numeric
// tower and for strings/lists/maps/ranges/tuples; functions and tables
// compare by identity.
func Equal(a, b Object) bool {
	if isNumeric(a) && isNumeric(b) {
		return numericEqual(a, b)
	}
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case *List:
		bv, ok := b.(*List)
		if !ok || len(av.Elems) != len(bv.Elems) {
			return false
		}
		for i := range av.Elems {
			if !Equal(av.Elems[i], bv.Elems[i]) {
				return false
			}
		}
		return true
	case *Map:
		bv, ok := b.(*Map)
		if !ok || len(av.keys) != len(bv.keys) {
			return false
		}
		for _, k := range av.keys {
			v1, ok1 := av.vals[k]
			v2, ok2 := bv.vals[k]
			if !ok1 || !ok2 || !Equal(v1, v2) {
				return false
			}
		}
		return true
	case *Range:
		bv, ok := b.(*Range)
		return ok && Equal(av.A, bv.A) && Equal(av.B, bv.B) && Equal(av.Step, bv.Step)
	case *Table, *Function:
		return samePointer(a, b)
	}
	return Identity(a, b)
}

func isNumeric(o Object) bool {
	switch o.(type) {
	case Int, Long, Float, Complex:
		return true
	}
	return false
}

func numericEqual(a, b Object) bool {
	af, aIsFloat := toFloat(a)
	bf, bIsFloat := toFloat(b)
	if ac, ok := a.(Complex); ok {
		bc, _ := toComplex(b)
		return complex128(ac) == bc
	}
	if bc, ok := b.(Complex); ok {
		ac, _ := toComplex(a)
		return complex128(bc) == ac
	}
	if al, ok := a.(Long); ok {
		if bl, ok := b.(Long); ok {
			return al.V.Cmp(bl.V) == 0
		}
	}
	if bl, ok := b.(Long); ok {
		if al, ok := a.(Long); ok {
			return al.V.Cmp(bl.V) == 0
		}
	}
	if aIsFloat || bIsFloat {
		return af == bf
	}
	ai, _ := a.(Int)
	bi, _ := b.(Int)
	return ai == bi
}

func toFloat(o Object) (float64, bool) {
	switch v := o.(type) {
	case Int:
		return float64(v), false
	case Float:
		return float64(v), true
	case Long:
		f, _ := new(big.Float).SetInt(v.V).Float64()
		return f, true
	}
	return 0, false
}

func toComplex(o Object) (complex128, bool) {
	switch v := o.(type) {
	case Complex:
		return complex128(v), true
	default:
		f, _ := toFloat(o)
		return complex(f, 0), false
	}
}

// HashKey canonicalizes o into a string usable as a Go map key, for the
// primitive/value-typed keys Map supports. Returns ok=false for variants that cannot be
// used as a Map key in this implementation (Function, Interface, Table by
// value).
func HashKey(o Object) (string, bool) {
	switch v := o.(type) {
	case nullType:
		return "n:", true
	case Bool:
		return "b:" + v.String(), true
	case Int:
		return "i:" + strconv.FormatInt(int64(v), 10), true
	case Long:
		return "i:" + v.V.String(), true
	case Float:
		return "f:" + strconv.FormatUint(math.Float64bits(float64(v)), 16), true
	case String:
		return "s:" + string(v), true
	case *List:
		v.Frozen = true
		var b strings.Builder
		b.WriteString("l:[")
		for i, e := range v.Elems {
			if i > 0 {
				b.WriteByte(',')
			}
			k, ok := HashKey(e)
			if !ok {
				return "", false
			}
			b.WriteString(k)
		}
		b.WriteByte(']')
		return b.String(), true
	case *Map:
		v.Frozen = true
		var b strings.Builder
		b.WriteString("m:{")
		for _, k := range v.keys {
			val := v.vals[k]
			b.WriteString(k)
			b.WriteByte('=')
			vk, ok := HashKey(val)
			if !ok {
				return "", false
			}
			b.WriteString(vk)
		}
		b.WriteByte('}')
		return b.String(), true
	}
	return "", false
}

// TypeName is a convenience wrapper used in error formatting.
func TypeName(o Object) string { return o.Type().String() }
