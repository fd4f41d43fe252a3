package vm

import (
	"fmt"

	"moss/compiler"
	"moss/object"
)

// binaryOp implements the two-stage operator protocol for arithmetic and
// bitwise operators: primitive-vs-primitive first, falling back to a
// Table operand's prototype-chain operator-key method (e.g. "add"),
// retrying the reverse key ("radd") when the forward call declines via
// object.Unimplemented. A Table is also this implementation's stand-in
// for the Interface variant: both are *object.Table values here, so one
// dispatch path covers both (see DESIGN.md).
func (vm *VM) binaryOp(op compiler.Opcode, a, b object.Object) (object.Object, error) {
	if isPrimitive(a) && isPrimitive(b) {
		return primitiveBinary(op, a, b)
	}
	fwdKey, revKey := operatorKeys(op)
	if v, ok, err := vm.tryTableBinary(a, b, fwdKey); ok {
		return v, err
	}
	if v, ok, err := vm.tryTableBinary(b, a, revKey); ok {
		return v, err
	}
	return nil, object.TypeMismatchError{A: a, B: b, Op: op.String()}
}

func (vm *VM) tryTableBinary(recv, other object.Object, key string) (object.Object, bool, error) {
	t, ok := recv.(*object.Table)
	if !ok {
		return nil, false, nil
	}
	method, found := object.LookupPrototypeChain(t, key)
	if !found {
		return nil, false, nil
	}
	v, exc := vm.CallValue(method, recv, []object.Object{other})
	if exc != nil {
		return nil, true, exc
	}
	if v == object.Unimplemented {
		return nil, false, nil
	}
	return v, true, nil
}

func isPrimitive(o object.Object) bool {
	switch o.(type) {
	case object.Int, object.Long, object.Float, object.Complex, object.String, object.Bool:
		return true
	}
	return false
}

func primitiveBinary(op compiler.Opcode, a, b object.Object) (object.Object, error) {
	switch op {
	case compiler.ADD:
		if as, ok := a.(object.String); ok {
			bs, ok := b.(object.String)
			if !ok {
				return nil, object.TypeMismatchError{A: a, B: b, Op: "+"}
			}
			return as + bs, nil
		}
		return object.Add(a, b)
	case compiler.SUB:
		return object.Sub(a, b)
	case compiler.MUL:
		return object.Mul(a, b)
	case compiler.DIV:
		return object.Div(a, b)
	case compiler.IDIV:
		return object.Idiv(a, b)
	case compiler.MOD:
		return object.Mod(a, b)
	case compiler.POW:
		return object.Pow(a, b)
	case compiler.BAND:
		return object.BAnd(a, b)
	case compiler.BOR:
		return object.BOr(a, b)
	case compiler.LSHIFT:
		return object.Lshift(a, b)
	case compiler.RSHIFT:
		return object.Rshift(a, b)
	}
	return nil, fmt.Errorf("vm: unreachable binary opcode %s", op)
}

func operatorKeys(op compiler.Opcode) (fwd, rev string) {
	switch op {
	case compiler.ADD:
		return object.OpAdd, object.OpRAdd
	case compiler.SUB:
		return object.OpSub, object.OpRSub
	case compiler.MUL:
		return object.OpMul, object.OpRMul
	case compiler.DIV:
		return object.OpDiv, object.OpRDiv
	case compiler.IDIV:
		return object.OpIdiv, object.OpRIdiv
	case compiler.MOD:
		return object.OpMod, object.OpRMod
	case compiler.POW:
		return object.OpPow, object.OpRPow
	case compiler.BAND:
		return object.OpBAnd, object.OpBAnd
	case compiler.BOR:
		return object.OpBOr, object.OpBOr
	}
	return "", ""
}

func (vm *VM) unaryOp(key string, a object.Object) (object.Object, error) {
	if isPrimitive(a) {
		return object.Neg(a)
	}
	if t, ok := a.(*object.Table); ok {
		if method, found := object.LookupPrototypeChain(t, key); found {
			v, exc := vm.CallValue(method, a, nil)
			if exc != nil {
				return nil, exc
			}
			return v, nil
		}
	}
	return nil, object.TypeMismatchUnaryError{A: a, Op: "-"}
}

// compareOp implements LT/LE/GT/GE via object.Compare for primitives,
// falling back to a Table's "lt"/"le"/"gt"/"ge" overload.
func (vm *VM) compareOp(op compiler.Opcode, a, b object.Object) (object.Object, error) {
	if isPrimitive(a) && isPrimitive(b) {
		c, err := object.Compare(a, b)
		if err != nil {
			return nil, err
		}
		return object.FromBool(compareResult(op, c)), nil
	}
	key := map[compiler.Opcode]string{
		compiler.LT: object.OpLt, compiler.LE: object.OpLe,
		compiler.GT: object.OpGt, compiler.GE: object.OpGe,
	}[op]
	if t, ok := a.(*object.Table); ok {
		if method, found := object.LookupPrototypeChain(t, key); found {
			v, exc := vm.CallValue(method, a, []object.Object{b})
			if exc != nil {
				return nil, exc
			}
			return v, nil
		}
	}
	return nil, object.TypeMismatchError{A: a, B: b, Op: op.String()}
}

func compareResult(op compiler.Opcode, c int) bool {
	switch op {
	case compiler.LT:
		return c < 0
	case compiler.LE:
		return c <= 0
	case compiler.GT:
		return c > 0
	case compiler.GE:
		return c >= 0
	}
	return false
}

// membership implements `in`/`notin`/`isin` over List, Map, String, and
// Range. `in`/`notin` test structural equality; `isin` tests identity,
// mirroring the is/== split the rest of the operator set already makes.
func (vm *VM) membership(op compiler.Opcode, a, b object.Object) (object.Object, error) {
	var found bool
	switch coll := b.(type) {
	case *object.List:
		for _, e := range coll.Elems {
			if memberEqual(op, a, e) {
				found = true
				break
			}
		}
	case *object.Map:
		_, found = coll.Get(a)
	case object.String:
		s, ok := a.(object.String)
		if !ok {
			return nil, object.TypeMismatchError{A: a, B: b, Op: "in"}
		}
		found = containsSubstring(string(coll), string(s))
	case *object.Range:
		found = rangeContains(coll, a)
	default:
		return nil, object.TypeMismatchError{A: a, B: b, Op: "in"}
	}
	if op == compiler.NOTIN {
		return object.FromBool(!found), nil
	}
	return object.FromBool(found), nil
}

func memberEqual(op compiler.Opcode, a, e object.Object) bool {
	if op == compiler.ISIN {
		return object.Identity(a, e)
	}
	return object.Equal(a, e)
}

func containsSubstring(s, sub string) bool {
	if sub == "" {
		return true
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func rangeContains(r *object.Range, v object.Object) bool {
	c1, err1 := object.Compare(v, r.A)
	c2, err2 := object.Compare(v, r.B)
	if r.A != object.Null && (err1 != nil || c1 < 0) {
		return false
	}
	if r.B != object.Null && (err2 != nil || c2 > 0) {
		return false
	}
	return true
}

// typeTest implements `a of b`: b is either one of rte's well-known
// prototype Tables (for primitives) or a user Table acting as a class,
// searched via the same prototype-chain walk operator dispatch uses.
func (vm *VM) typeTest(a, b object.Object) bool {
	bt, ok := b.(*object.Table)
	if !ok {
		return false
	}
	switch av := a.(type) {
	case *object.Table:
		return tableInChain(av, bt)
	default:
		proto := vm.RTE.Proto(primitiveProtoName(av))
		return proto == bt
	}
}

func tableInChain(start, target *object.Table) bool {
	seen := map[*object.Table]bool{}
	var walk func(o object.Object) bool
	walk = func(o object.Object) bool {
		switch v := o.(type) {
		case *object.Table:
			if v == target {
				return true
			}
			if seen[v] {
				return false
			}
			seen[v] = true
			return walk(v.Prototype)
		case *object.List:
			for _, p := range v.Elems {
				if walk(p) {
					return true
				}
			}
		}
		return false
	}
	return walk(start)
}

func primitiveProtoName(o object.Object) string {
	switch o.(type) {
	case object.Bool:
		return "Bool"
	case object.Int, object.Long:
		return "Int"
	case object.Float:
		return "Float"
	case object.Complex:
		return "Complex"
	case object.String:
		return "String"
	case *object.List:
		return "List"
	case *object.Map:
		return "Map"
	case *object.Function:
		return "Function"
	}
	return ""
}
