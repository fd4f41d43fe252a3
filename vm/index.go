package vm

import (
	"fmt"

	"moss/compiler"
	"moss/object"
)

// getIndex implements GET_INDEX/GET. A *List index with more than one
// element (what GET_INDEX builds from a count>1 operand) chains through
// nested containers one index at a time, rather than requiring a distinct
// multi-dimensional container type. The compiler itself only emits
// GET_INDEX with a count of 1.
func (vm *VM) getIndex(obj, idx object.Object) (object.Object, error) {
	if idxs, ok := idx.(*object.List); ok && len(idxs.Elems) > 1 {
		cur := obj
		for _, i := range idxs.Elems {
			v, err := vm.getIndex(cur, i)
			if err != nil {
				return nil, err
			}
			cur = v
		}
		return cur, nil
	}
	switch o := obj.(type) {
	case *object.List:
		if r, ok := idx.(*object.Range); ok {
			return sliceList(o, r)
		}
		i, ok := idx.(object.Int)
		if !ok {
			return nil, object.TypeMismatchError{A: obj, B: idx, Op: "index"}
		}
		return o.Get(int(i))
	case *object.Map:
		v, ok := o.Get(idx)
		if !ok {
			return nil, object.IndexRangeError{}
		}
		return v, nil
	case object.String:
		if r, ok := idx.(*object.Range); ok {
			return sliceString(o, r)
		}
		i, ok := idx.(object.Int)
		if !ok {
			return nil, object.TypeMismatchError{A: obj, B: idx, Op: "index"}
		}
		runes := []rune(string(o))
		n := len(runes)
		pos := int(i)
		if pos < 0 {
			pos += n
		}
		if pos < 0 || pos >= n {
			return nil, object.IndexRangeError{Index: pos, Len: n}
		}
		return object.String(runes[pos]), nil
	case *object.Table:
		method, found := object.LookupPrototypeChain(o, object.OpIndex)
		if !found {
			return nil, vm.typeException("object is not indexable", nil)
		}
		v, exc := vm.CallValue(method, o, []object.Object{idx})
		if exc != nil {
			return nil, exc
		}
		return v, nil
	}
	return nil, object.TypeMismatchError{A: obj, B: idx, Op: "index"}
}

func sliceList(l *object.List, r *object.Range) (object.Object, error) {
	n := len(l.Elems)
	a, b := rangeBounds(r, n)
	if a > b {
		return object.NewList(), nil
	}
	return object.NewList(append([]object.Object{}, l.Elems[a:b]...)...), nil
}

func sliceString(s object.String, r *object.Range) (object.Object, error) {
	runes := []rune(string(s))
	n := len(runes)
	a, b := rangeBounds(r, n)
	if a > b {
		return object.String(""), nil
	}
	return object.String(string(runes[a:b])), nil
}

func rangeBounds(r *object.Range, n int) (int, int) {
	a, b := 0, n
	if ai, ok := r.A.(object.Int); ok {
		a = int(ai)
		if a < 0 {
			a += n
		}
	}
	if bi, ok := r.B.(object.Int); ok {
		b = int(bi) + 1
		if int(bi) < 0 {
			b = int(bi) + n + 1
		}
	}
	if a < 0 {
		a = 0
	}
	if b > n {
		b = n
	}
	return a, b
}

// setIndex implements SET_INDEX. Strings are immutable, so no String
// branch exists here.
func (vm *VM) setIndex(obj, idx, val object.Object) error {
	switch o := obj.(type) {
	case *object.List:
		i, ok := idx.(object.Int)
		if !ok {
			return object.TypeMismatchError{A: obj, B: idx, Op: "index"}
		}
		return o.Set(int(i), val)
	case *object.Map:
		return o.Set(idx, val)
	case *object.Table:
		method, found := object.LookupPrototypeChain(o, object.OpSetIndex)
		if !found {
			return vm.typeException("object does not support item assignment", nil)
		}
		_, exc := vm.CallValue(method, o, []object.Object{idx, val})
		if exc != nil {
			return exc
		}
		return nil
	}
	return object.TypeMismatchError{A: obj, B: idx, Op: "index"}
}

// applyOp implements the AOP fused get-modify-set instruction a compound
// assignment (`a[i] += v`, `a.f += v`) compiles to: one get through getOp,
// one binary/compare op, one set back through the same path.
func (vm *VM) applyOp(getOp, binOp compiler.Opcode, obj, key, val object.Object) error {
	var current object.Object
	var err error
	switch getOp {
	case compiler.DOT:
		name, ok := key.(object.String)
		if !ok {
			return fmt.Errorf("vm: AOP dot key is not a string")
		}
		current, err = vm.getAttr(obj, string(name))
	case compiler.GET_INDEX:
		current, err = vm.getIndex(obj, key)
	default:
		return fmt.Errorf("vm: unsupported AOP get opcode %s", getOp)
	}
	if err != nil {
		return err
	}
	result, err := vm.applyBinOp(binOp, current, val)
	if err != nil {
		return err
	}
	switch getOp {
	case compiler.DOT:
		return vm.setAttr(obj, string(key.(object.String)), result)
	case compiler.GET_INDEX:
		return vm.setIndex(obj, key, result)
	}
	return nil
}

func (vm *VM) applyBinOp(op compiler.Opcode, a, b object.Object) (object.Object, error) {
	switch op {
	case compiler.LT, compiler.LE, compiler.GT, compiler.GE:
		return vm.compareOp(op, a, b)
	default:
		return vm.binaryOp(op, a, b)
	}
}
