package object

import (
	"math"
	"math/big"
)

// Unimplemented is the sentinel the Interface protocol's forward method
// returns to ask the VM to try the reverse method instead.
type unimplementedType struct{}

func (unimplementedType) Type() Type     { return TEmpty }
func (unimplementedType) String() string { return "<unimplemented>" }

var Unimplemented Object = unimplementedType{}

// numericRank orders the widening tower Int -> Long -> Float -> Complex.
func numericRank(o Object) int {
	switch o.(type) {
	case Int:
		return 0
	case Long:
		return 1
	case Float:
		return 2
	case Complex:
		return 3
	}
	return -1
}

func widen(a, b Object) int {
	ra, rb := numericRank(a), numericRank(b)
	if ra > rb {
		return ra
	}
	return rb
}

// Add implements `+` across the numeric tower, promoting Int overflow to
// Long.
func Add(a, b Object) (Object, error) {
	switch widen(a, b) {
	case 0:
		x, y := int64(a.(Int)), int64(b.(Int))
		sum := x + y
		if sum > math.MaxInt32 || sum < math.MinInt32 {
			return NewLong(new(big.Int).Add(big.NewInt(x), big.NewInt(y))), nil
		}
		return Int(sum), nil
	case 1:
		return NewLong(new(big.Int).Add(toBig(a), toBig(b))), nil
	case 2:
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return Float(af + bf), nil
	case 3:
		ac, _ := toComplex(a)
		bc, _ := toComplex(b)
		return Complex(ac + bc), nil
	}
	return nil, TypeMismatchError{A: a, B: b, Op: "+"}
}

func Sub(a, b Object) (Object, error) {
	switch widen(a, b) {
	case 0:
		x, y := int64(a.(Int)), int64(b.(Int))
		diff := x - y
		if diff > math.MaxInt32 || diff < math.MinInt32 {
			return NewLong(new(big.Int).Sub(big.NewInt(x), big.NewInt(y))), nil
		}
		return Int(diff), nil
	case 1:
		return NewLong(new(big.Int).Sub(toBig(a), toBig(b))), nil
	case 2:
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return Float(af - bf), nil
	case 3:
		ac, _ := toComplex(a)
		bc, _ := toComplex(b)
		return Complex(ac - bc), nil
	}
	return nil, TypeMismatchError{A: a, B: b, Op: "-"}
}

func Mul(a, b Object) (Object, error) {
	switch widen(a, b) {
	case 0:
		x, y := int64(a.(Int)), int64(b.(Int))
		prod := x * y
		if prod > math.MaxInt32 || prod < math.MinInt32 || (x != 0 && prod/x != y) {
			return NewLong(new(big.Int).Mul(big.NewInt(x), big.NewInt(y))), nil
		}
		return Int(prod), nil
	case 1:
		return NewLong(new(big.Int).Mul(toBig(a), toBig(b))), nil
	case 2:
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return Float(af * bf), nil
	case 3:
		ac, _ := toComplex(a)
		bc, _ := toComplex(b)
		return Complex(ac * bc), nil
	}
	return nil, TypeMismatchError{A: a, B: b, Op: "*"}
}

// Div implements `/`: zero division on floats yields +-inf/NaN via IEEE
// semantics; the primitive layer always promotes to Float.
func Div(a, b Object) (Object, error) {
	if widen(a, b) == 3 {
		ac, _ := toComplex(a)
		bc, _ := toComplex(b)
		return Complex(ac / bc), nil
	}
	af, _ := toFloat(a)
	bf, _ := toFloat(b)
	return Float(af / bf), nil
}

// Idiv implements `//`, Int-only at the primitive layer;
// division by zero is an error, not IEEE inf/NaN.
func Idiv(a, b Object) (Object, error) {
	ai, aok := a.(Int)
	bi, bok := b.(Int)
	if !aok || !bok {
		return nil, TypeMismatchError{A: a, B: b, Op: "//"}
	}
	if bi == 0 {
		return nil, ValueRangeError{Message: "b==0"}
	}
	q := floorDiv(int64(ai), int64(bi))
	return Int(q), nil
}

func Mod(a, b Object) (Object, error) {
	ai, aok := a.(Int)
	bi, bok := b.(Int)
	if !aok || !bok {
		return nil, TypeMismatchError{A: a, B: b, Op: "%"}
	}
	if bi == 0 {
		return nil, ValueRangeError{Message: "b==0"}
	}
	q := floorDiv(int64(ai), int64(bi))
	r := int64(ai) - q*int64(bi)
	return Int(r), nil
}

func floorDiv(x, y int64) int64 {
	q := x / y
	if (x%y != 0) && ((x < 0) != (y < 0)) {
		q--
	}
	return q
}

func Pow(a, b Object) (Object, error) {
	switch widen(a, b) {
	case 0, 1:
		base := toBig(a)
		exp := toBig(b)
		if exp.Sign() < 0 {
			af, _ := toFloat(a)
			bf, _ := toFloat(b)
			return Float(math.Pow(af, bf)), nil
		}
		result := new(big.Int).Exp(base, exp, nil)
		if result.IsInt64() && result.Int64() <= math.MaxInt32 && result.Int64() >= math.MinInt32 {
			return Int(result.Int64()), nil
		}
		return NewLong(result), nil
	case 2:
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return Float(math.Pow(af, bf)), nil
	case 3:
		ac, _ := toComplex(a)
		bc, _ := toComplex(b)
		return Complex(cpow(ac, bc)), nil
	}
	return nil, TypeMismatchError{A: a, B: b, Op: "^"}
}

func cpow(a, b complex128) complex128 {
	if b == complex(0, 0) {
		return complex(1, 0)
	}
	// Computed as exp(b*log(a)) with local helpers; math/cmplx is not used.
	return cexp(cmul(clog(a), b))
}
func cmul(a, b complex128) complex128 { return a * b }
func clog(a complex128) complex128 {
	r := math.Hypot(real(a), imag(a))
	theta := math.Atan2(imag(a), real(a))
	return complex(math.Log(r), theta)
}
func cexp(a complex128) complex128 {
	e := math.Exp(real(a))
	return complex(e*math.Cos(imag(a)), e*math.Sin(imag(a)))
}

func toBig(o Object) *big.Int {
	switch v := o.(type) {
	case Int:
		return big.NewInt(int64(v))
	case Long:
		return v.V
	}
	return big.NewInt(0)
}

func Neg(a Object) (Object, error) {
	switch v := a.(type) {
	case Int:
		if v == math.MinInt32 {
			return NewLong(new(big.Int).Neg(big.NewInt(int64(v)))), nil
		}
		return -v, nil
	case Long:
		return NewLong(new(big.Int).Neg(v.V)), nil
	case Float:
		return -v, nil
	case Complex:
		return -v, nil
	}
	return nil, TypeMismatchUnaryError{A: a, Op: "-"}
}

func BAnd(a, b Object) (Object, error) {
	ai, aok := a.(Int)
	bi, bok := b.(Int)
	if !aok || !bok {
		return nil, TypeMismatchError{A: a, B: b, Op: "&"}
	}
	return ai & bi, nil
}

func BOr(a, b Object) (Object, error) {
	ai, aok := a.(Int)
	bi, bok := b.(Int)
	if !aok || !bok {
		return nil, TypeMismatchError{A: a, B: b, Op: "|"}
	}
	return ai | bi, nil
}

func Tilde(a Object) (Object, error) {
	ai, ok := a.(Int)
	if !ok {
		return nil, TypeMismatchUnaryError{A: a, Op: "~"}
	}
	return ^ai, nil
}

func Lshift(a, b Object) (Object, error) {
	ai, aok := a.(Int)
	bi, bok := b.(Int)
	if !aok || !bok {
		return nil, TypeMismatchError{A: a, B: b, Op: "<<"}
	}
	return ai << uint(bi), nil
}

func Rshift(a, b Object) (Object, error) {
	ai, aok := a.(Int)
	bi, bok := b.(Int)
	if !aok || !bok {
		return nil, TypeMismatchError{A: a, B: b, Op: ">>"}
	}
	return ai >> uint(bi), nil
}

// Compare implements the ordering operators across the numeric tower and
// for strings. Returns -1/0/1.
func Compare(a, b Object) (int, error) {
	if isNumeric(a) && isNumeric(b) {
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	as, aok := a.(String)
	bs, bok := b.(String)
	if aok && bok {
		switch {
		case as < bs:
			return -1, nil
		case as > bs:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, TypeMismatchError{A: a, B: b, Op: "compare"}
}

// TypeMismatchError backs a TypeError whose message names the offending
// operand(s) with their type-name and a length-capped repr.
type TypeMismatchError struct {
	A, B Object
	Op   string
}

func (e TypeMismatchError) Error() string {
	return "unsupported operand types for " + e.Op + ": " + TypeName(e.A) + " and " + TypeName(e.B) +
		"\nNote: " + Repr(e.A) + ", " + Repr(e.B)
}

type TypeMismatchUnaryError struct {
	A  Object
	Op string
}

func (e TypeMismatchUnaryError) Error() string {
	return "unsupported operand type for " + e.Op + ": " + TypeName(e.A) + "\nNote: " + Repr(e.A)
}

// ValueRangeError backs a ValueError.
type ValueRangeError struct{ Message string }

func (e ValueRangeError) Error() string { return e.Message }
