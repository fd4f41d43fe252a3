package vm

import (
	"sort"
	"strings"

	"moss/object"
)

// getAttr implements DOT/DUP_DOT_SWAP's attribute lookup: a Table walks its
// prototype chain; every other Object variant exposes a small, fixed set of
// built-in methods as native Functions bound at call time via the normal
// CALL self slot (see access.go's method tables). A fuller built-in method
// surface belongs in the env package's prelude once it exists (DESIGN.md).
func (vm *VM) getAttr(obj object.Object, name string) (object.Object, error) {
	if t, ok := obj.(*object.Table); ok {
		if v, found := object.LookupPrototypeChain(t, name); found {
			return v, nil
		}
		return nil, vm.typeException("no such attribute: "+name, nil)
	}
	if m := builtinMethod(obj, name); m != nil {
		return m, nil
	}
	return nil, vm.typeException("no such attribute: "+name, nil)
}

// setAttr implements DOT_SET: only Table fields are assignable; built-in
// method names on primitives are read-only.
func (vm *VM) setAttr(obj object.Object, name string, val object.Object) error {
	t, ok := obj.(*object.Table)
	if !ok {
		return vm.typeException("object has no settable attribute: "+name, nil)
	}
	if err := t.Set(name, val); err != nil {
		return vm.wrapError(err, nil)
	}
	return nil
}

func nativeFn(fn object.NativeFn) *object.Function {
	return &object.Function{Kind: object.KindNative, Native: fn}
}

func builtinMethod(obj object.Object, name string) *object.Function {
	switch obj.(type) {
	case *object.List:
		return listMethods[name]
	case *object.Map:
		return mapMethods[name]
	case object.String:
		return stringMethods[name]
	case *object.Range:
		return rangeMethods[name]
	}
	return nil
}

var listMethods = map[string]*object.Function{
	"push": nativeFn(func(_ any, self object.Object, args []object.Object) (object.Object, error) {
		l := self.(*object.List)
		for _, a := range args {
			if err := l.Push(a); err != nil {
				return nil, err
			}
		}
		return self, nil
	}),
	"size": nativeFn(func(_ any, self object.Object, _ []object.Object) (object.Object, error) {
		return object.Int(self.(*object.List).Size()), nil
	}),
	"pop": nativeFn(func(_ any, self object.Object, args []object.Object) (object.Object, error) {
		i := -1
		if len(args) > 0 {
			if n, ok := args[0].(object.Int); ok {
				i = int(n)
			}
		}
		return self.(*object.List).Pop(i)
	}),
	"insert": nativeFn(func(_ any, self object.Object, args []object.Object) (object.Object, error) {
		i, _ := args[0].(object.Int)
		return object.Null, self.(*object.List).Insert(int(i), args[1])
	}),
	"clear": nativeFn(func(_ any, self object.Object, _ []object.Object) (object.Object, error) {
		return object.Null, self.(*object.List).Clear()
	}),
	"rev": nativeFn(func(_ any, self object.Object, _ []object.Object) (object.Object, error) {
		return self.(*object.List).Rev(), nil
	}),
	"chain": nativeFn(func(_ any, self object.Object, args []object.Object) (object.Object, error) {
		other, ok := args[0].(*object.List)
		if !ok {
			return nil, object.TypeMismatchError{A: self, B: args[0], Op: "chain"}
		}
		return self.(*object.List).Chain(other), nil
	}),
	"sort": nativeFn(func(_ any, self object.Object, _ []object.Object) (object.Object, error) {
		l := self.(*object.List)
		out := append([]object.Object{}, l.Elems...)
		var sortErr error
		sort.SliceStable(out, func(i, j int) bool {
			c, err := object.Compare(out[i], out[j])
			if err != nil {
				sortErr = err
			}
			return c < 0
		})
		if sortErr != nil {
			return nil, sortErr
		}
		return object.NewList(out...), nil
	}),
}

var mapMethods = map[string]*object.Function{
	"size": nativeFn(func(_ any, self object.Object, _ []object.Object) (object.Object, error) {
		return object.Int(self.(*object.Map).Size()), nil
	}),
	"keys": nativeFn(func(_ any, self object.Object, _ []object.Object) (object.Object, error) {
		return self.(*object.Map).Keys(), nil
	}),
	"values": nativeFn(func(_ any, self object.Object, _ []object.Object) (object.Object, error) {
		return self.(*object.Map).Values(), nil
	}),
	"items": nativeFn(func(_ any, self object.Object, _ []object.Object) (object.Object, error) {
		return self.(*object.Map).Items(), nil
	}),
	"remove": nativeFn(func(_ any, self object.Object, args []object.Object) (object.Object, error) {
		return object.Null, self.(*object.Map).Remove(args[0])
	}),
	"clear": nativeFn(func(_ any, self object.Object, _ []object.Object) (object.Object, error) {
		return object.Null, self.(*object.Map).Clear()
	}),
	"get": nativeFn(func(_ any, self object.Object, args []object.Object) (object.Object, error) {
		v, ok := self.(*object.Map).Get(args[0])
		if !ok {
			if len(args) > 1 {
				return args[1], nil
			}
			return object.Null, nil
		}
		return v, nil
	}),
}

var stringMethods = map[string]*object.Function{
	"size": nativeFn(func(_ any, self object.Object, _ []object.Object) (object.Object, error) {
		return object.Int(len([]rune(string(self.(object.String))))), nil
	}),
	"upper": nativeFn(func(_ any, self object.Object, _ []object.Object) (object.Object, error) {
		return object.String(strings.ToUpper(string(self.(object.String)))), nil
	}),
	"lower": nativeFn(func(_ any, self object.Object, _ []object.Object) (object.Object, error) {
		return object.String(strings.ToLower(string(self.(object.String)))), nil
	}),
	"strip": nativeFn(func(_ any, self object.Object, _ []object.Object) (object.Object, error) {
		return object.String(strings.TrimSpace(string(self.(object.String)))), nil
	}),
	"split": nativeFn(func(_ any, self object.Object, args []object.Object) (object.Object, error) {
		sep := " "
		if len(args) > 0 {
			sep = string(args[0].(object.String))
		}
		parts := strings.Split(string(self.(object.String)), sep)
		out := make([]object.Object, len(parts))
		for i, p := range parts {
			out[i] = object.String(p)
		}
		return object.NewList(out...), nil
	}),
	"join": nativeFn(func(_ any, self object.Object, args []object.Object) (object.Object, error) {
		lst, ok := args[0].(*object.List)
		if !ok {
			return nil, object.TypeMismatchError{A: self, B: args[0], Op: "join"}
		}
		parts := make([]string, len(lst.Elems))
		for i, e := range lst.Elems {
			parts[i] = e.String()
		}
		return object.String(strings.Join(parts, string(self.(object.String)))), nil
	}),
	"find": nativeFn(func(_ any, self object.Object, args []object.Object) (object.Object, error) {
		idx := strings.Index(string(self.(object.String)), string(args[0].(object.String)))
		return object.Int(idx), nil
	}),
}

var rangeMethods = map[string]*object.Function{
	"list": nativeFn(func(_ any, self object.Object, _ []object.Object) (object.Object, error) {
		r := self.(*object.Range)
		a, aok := r.A.(object.Int)
		b, bok := r.B.(object.Int)
		if !aok || !bok {
			return nil, object.TypeMismatchUnaryError{A: self, Op: "list"}
		}
		step := r.StepOrDefault()
		var out []object.Object
		if step > 0 {
			for i := int64(a); i <= int64(b); i += step {
				out = append(out, object.Int(i))
			}
		} else if step < 0 {
			for i := int64(a); i >= int64(b); i += step {
				out = append(out, object.Int(i))
			}
		}
		return object.NewList(out...), nil
	}),
}
