// Package vm executes a compiled Module: a fetch-decode-execute loop over
// the packed instruction words compiler/code.go defines, built on the
// value/object model in the object package and the shared Prototypes
// rte.RTE holds. The dispatch loop's shape (fetch a word, switch on its
// opcode, fall through to the next address unless a jump fired) and the
// recursive call-per-Go-call frame model with panic-propagated fatal
// errors both follow this codebase's existing bytecode and tree-walking
// interpreters.
package vm

import (
	"fmt"
	"math"
	"math/big"

	"moss/compiler"
	"moss/object"
	"moss/rte"
)

// VM executes compiled modules against a shared runtime environment.
type VM struct {
	RTE    *rte.RTE
	frames frameStack

	// Stdout/Stderr let native builtins (print, say) and uncaught-exception
	// reporting write somewhere other than the process's real stdio,
	// primarily for tests.
	Stdout writer
	Stderr writer

	// NativeEnv is the value passed as a native function's env parameter,
	// typed `any` to match object.NativeFn. A caller may assign any façade
	// value here before Run/CallValue is used; while it is nil, env() falls
	// back to the *VM itself, which is enough for native functions that
	// only need RTE access. Nothing in this module assigns it.
	NativeEnv any
}

type writer interface {
	Write(p []byte) (int, error)
}

func New(r *rte.RTE, stdout, stderr writer) *VM {
	return &VM{RTE: r, Stdout: stdout, Stderr: stderr}
}

func (vm *VM) env() any {
	if vm.NativeEnv != nil {
		return vm.NativeEnv
	}
	return vm
}

// Run executes mod's top-level program to completion (HALT) and returns
// its final expression value, or the uncaught Exception that unwound out
// of every frame.
func (vm *VM) Run(mod *compiler.Module) (result object.Object, exc *object.Exception) {
	main := &object.Function{
		Kind:     object.KindBytecode,
		Module:   mod,
		Gtab:     vm.RTE.Gtab,
		VarCount: 0,
		ArgcMin:  0,
		ArgcMax:  0,
	}
	return vm.call(main, object.Null, nil)
}

// CallValue invokes a bytecode or native *object.Function with self and
// args, the same entry point the CALL opcode itself uses. Any other
// callee, including a Table that defines "call", raises a TypeError.
func (vm *VM) CallValue(callee, self object.Object, args []object.Object) (object.Object, *object.Exception) {
	fn, ok := callee.(*object.Function)
	if !ok {
		return nil, vm.typeException(fmt.Sprintf("object is not callable: %s", object.TypeName(callee)), nil)
	}
	return vm.call(fn, self, args)
}

func (vm *VM) call(fn *object.Function, self object.Object, callArgs []object.Object) (object.Object, *object.Exception) {
	if fn.Kind != object.KindBytecode {
		if !fn.TryBorrow() {
			return nil, vm.stdException("function is already running and cannot be reentered")
		}
		defer fn.Release()
		env := vm.env()
		v, err := fn.Native(env, self, callArgs)
		if err != nil {
			return nil, vm.wrapError(err, nil)
		}
		return v, nil
	}

	all := make([]object.Object, 0, len(callArgs)+1)
	all = append(all, self)
	all = append(all, callArgs...)

	args, rerr := normalizeArgs(fn, all)
	if rerr != nil {
		return nil, vm.wrapError(rerr, nil)
	}

	f := newFrame(fn, fn.Module, args, fn.Context)
	if err := vm.frames.push(f); err != nil {
		panic(err)
	}
	defer vm.frames.pop()

	v, exc := vm.runFrame(f)
	if exc != nil {
		exc.AppendTraceback(tracebackEntry(f))
	}
	return v, exc
}

func tracebackEntry(f *Frame) string {
	name := f.FuncID
	if name == "" {
		name = "<anonymous>"
	}
	mod := ""
	line, col := 0, 0
	if f.Module != nil {
		mod = f.Module.File
		if f.IP < len(f.Module.Program) {
			_, line, col = compiler.UnpackWord(f.Module.Program[f.IP])
		}
	}
	return fmt.Sprintf("%s:%d:%d:%s", mod, line, col, name)
}

// ArgcError backs an argc mismatch raised as a std_exception.
type ArgcError struct {
	Got, Min, Max int
}

func (e ArgcError) Error() string {
	if e.Max < 0 {
		return fmt.Sprintf("expected at least %d arguments, got %d", e.Min, e.Got)
	}
	if e.Min == e.Max {
		return fmt.Sprintf("expected %d arguments, got %d", e.Min, e.Got)
	}
	return fmt.Sprintf("expected %d..%d arguments, got %d", e.Min, e.Max, e.Got)
}

// normalizeArgs fills fn's Args slots from the caller-supplied values
// (self already prepended at index 0): missing optionals default to
// Null here and are filled in for real by the callee's own
// LOAD_ARG/STORE_ARG default-value prologue; trailing values of a
// variadic function are packed into a List at the last slot.
func normalizeArgs(fn *object.Function, all []object.Object) ([]object.Object, error) {
	got := len(all)
	if fn.ArgcMax == object.Variadic {
		if got < fn.ArgcMin+1 { // +1 for the prepended self slot
			return nil, ArgcError{Got: got - 1, Min: fn.ArgcMin, Max: -1}
		}
		total := fn.ArgcMin + 2 // self + required + one variadic slot
		out := make([]object.Object, total)
		copy(out, all[:fn.ArgcMin+1])
		rest := append([]object.Object{}, all[fn.ArgcMin+1:]...)
		out[total-1] = object.NewList(rest...)
		return out, nil
	}
	min, max := fn.ArgcMin+1, fn.ArgcMax+1 // +1 for self at both ends
	if got < min || got > max {
		return nil, ArgcError{Got: got - 1, Min: fn.ArgcMin, Max: fn.ArgcMax}
	}
	out := make([]object.Object, max)
	copy(out, all)
	for i := got; i < max; i++ {
		out[i] = object.Null
	}
	return out, nil
}

// runFrame is the fetch-decode-execute loop for a single call activation.
func (vm *VM) runFrame(f *Frame) (object.Object, *object.Exception) {
	prog := f.Module.Program
	for {
		word := prog[f.IP]
		op, line, col := compiler.UnpackWord(word)
		addr := f.IP

		result, jumped, exc, halted := vm.step(f, op, addr, line, col)
		if exc != nil {
			if raiseInFrame(f, exc) {
				continue
			}
			return nil, exc
		}
		if halted {
			return result, nil
		}
		if result != nil {
			return result, nil // RET
		}
		if !jumped {
			def, _ := compiler.Get(op)
			f.IP = addr + 1 + def.OperandWords
		}
	}
}

func operand(prog compiler.Instructions, addr, i int) int32 {
	return int32(prog[addr+1+i])
}

// step executes one instruction. A non-nil returned Object signals a
// frame-ending RET value; halted signals the top-level HALT; jumped
// signals that f.IP was already updated and the main loop must not
// auto-advance it.
func (vm *VM) step(f *Frame, op compiler.Opcode, addr, line, col int) (ret object.Object, jumped bool, exc *object.Exception, halted bool) {
	prog := f.Module.Program
	mkExc := func(err error) *object.Exception { return vm.wrapError(err, &object.Spot{Line: line, Col: col, Module: f.Module.File}) }

	switch op {
	case compiler.NULL:
		f.push(object.Null)
	case compiler.TRUE:
		f.push(object.True)
	case compiler.FALSE:
		f.push(object.False)
	case compiler.EMPTY:
		f.push(object.Empty)
	case compiler.INT:
		f.push(object.Int(operand(prog, addr, 0)))
	case compiler.FLOAT, compiler.IMAG:
		lo := uint64(prog[addr+1])
		hi := uint64(prog[addr+2])
		bits := lo | hi<<32
		fv := math.Float64frombits(bits)
		if op == compiler.IMAG {
			f.push(object.Complex(complex(0, fv)))
		} else {
			f.push(object.Float(fv))
		}
	case compiler.STR:
		f.push(object.String(f.Module.Constants[operand(prog, addr, 0)].(string)))
	case compiler.LONG:
		text := f.Module.Constants[operand(prog, addr, 0)].(string)
		n, ok := new(big.Int).SetString(text, 10)
		if !ok {
			n = new(big.Int)
		}
		f.push(object.NewLong(n))
	case compiler.LIST, compiler.TUPLE:
		n := int(operand(prog, addr, 0))
		elems := f.popN(n)
		f.push(object.NewList(elems...))
	case compiler.MAP:
		n := int(operand(prog, addr, 0))
		m := object.NewMap()
		kv := f.popN(2 * n)
		for i := 0; i < n; i++ {
			if err := m.Set(kv[2*i], kv[2*i+1]); err != nil {
				return nil, false, mkExc(err), false
			}
		}
		f.push(m)
	case compiler.RANGE:
		step := f.pop()
		b := f.pop()
		a := f.pop()
		f.push(object.NewRange(a, b, step))
	case compiler.TABLE:
		n := int(operand(prog, addr, 0))
		kv := f.popN(2 * n)
		proto := f.pop()
		t := object.NewTable(proto)
		for i := 0; i < n; i++ {
			key, ok := kv[2*i].(object.String)
			if !ok {
				return nil, false, mkExc(fmt.Errorf("table field name must be a string")), false
			}
			t.Set(string(key), kv[2*i+1])
		}
		f.push(t)

	case compiler.ADD, compiler.SUB, compiler.MUL, compiler.DIV, compiler.IDIV, compiler.MOD, compiler.POW,
		compiler.BAND, compiler.BOR, compiler.LSHIFT, compiler.RSHIFT:
		b := f.pop()
		a := f.pop()
		v, err := vm.binaryOp(op, a, b)
		if err != nil {
			return nil, false, mkExc(err), false
		}
		f.push(v)
	case compiler.NEG:
		a := f.pop()
		v, err := vm.unaryOp(object.OpNeg, a)
		if err != nil {
			return nil, false, mkExc(err), false
		}
		f.push(v)
	case compiler.TILDE:
		a := f.pop()
		v, err := object.Tilde(a)
		if err != nil {
			return nil, false, mkExc(err), false
		}
		f.push(v)

	case compiler.LT, compiler.LE, compiler.GT, compiler.GE:
		b := f.pop()
		a := f.pop()
		v, err := vm.compareOp(op, a, b)
		if err != nil {
			return nil, false, mkExc(err), false
		}
		f.push(v)
	case compiler.EQ:
		b := f.pop()
		a := f.pop()
		f.push(object.FromBool(object.Equal(a, b)))
	case compiler.NE:
		b := f.pop()
		a := f.pop()
		f.push(object.FromBool(!object.Equal(a, b)))
	case compiler.IS:
		b := f.pop()
		a := f.pop()
		f.push(object.FromBool(object.Identity(a, b)))
	case compiler.ISNOT:
		b := f.pop()
		a := f.pop()
		f.push(object.FromBool(!object.Identity(a, b)))
	case compiler.IN, compiler.NOTIN, compiler.ISIN:
		b := f.pop()
		a := f.pop()
		v, err := vm.membership(op, a, b)
		if err != nil {
			return nil, false, mkExc(err), false
		}
		f.push(v)
	case compiler.OF:
		b := f.pop()
		a := f.pop()
		f.push(object.FromBool(vm.typeTest(a, b)))

	case compiler.DOT:
		name := string(f.pop().(object.String))
		obj := f.pop()
		v, err := vm.getAttr(obj, name)
		if err != nil {
			return nil, false, mkExc(err), false
		}
		f.push(v)
	case compiler.DOT_SET:
		val := f.pop()
		name := string(f.pop().(object.String))
		obj := f.pop()
		if err := vm.setAttr(obj, name, val); err != nil {
			return nil, false, mkExc(err), false
		}
	case compiler.DUP_DOT_SWAP:
		name := f.Module.Constants[operand(prog, addr, 0)].(string)
		obj := f.pop()
		method, err := vm.getAttr(obj, name)
		if err != nil {
			return nil, false, mkExc(err), false
		}
		f.push(method)
		f.push(obj)
	case compiler.GET_INDEX:
		n := int(operand(prog, addr, 0))
		idxs := f.popN(n)
		obj := f.pop()
		var idx object.Object = idxs[0]
		if n > 1 {
			idx = object.NewList(idxs...)
		}
		v, err := vm.getIndex(obj, idx)
		if err != nil {
			return nil, false, mkExc(err), false
		}
		f.push(v)
	case compiler.SET_INDEX:
		n := int(operand(prog, addr, 0))
		val := f.pop()
		idxs := f.popN(n)
		obj := f.pop()
		var idx object.Object = idxs[0]
		if n > 1 {
			idx = object.NewList(idxs...)
		}
		if err := vm.setIndex(obj, idx, val); err != nil {
			return nil, false, mkExc(err), false
		}
	case compiler.GET:
		i := int(operand(prog, addr, 0))
		container := f.pop()
		v, err := vm.getIndex(container, object.Int(i))
		if err != nil {
			return nil, false, mkExc(err), false
		}
		f.push(v)
	case compiler.AOP:
		getOp := compiler.Opcode(operand(prog, addr, 0))
		binOp := compiler.Opcode(operand(prog, addr, 1))
		val := f.pop()
		key := f.pop()
		obj := f.pop()
		if err := vm.applyOp(getOp, binOp, obj, key, val); err != nil {
			return nil, false, mkExc(err), false
		}

	case compiler.AND:
		if !object.Truthy(f.peek()) {
			f.IP = addr + int(operand(prog, addr, 0))
			return nil, true, nil, false
		}
		f.pop()
		f.IP = addr + 2
		return nil, true, nil, false
	case compiler.OR:
		if object.Truthy(f.peek()) {
			f.IP = addr + int(operand(prog, addr, 0))
			return nil, true, nil, false
		}
		f.pop()
		f.IP = addr + 2
		return nil, true, nil, false
	case compiler.ELSE:
		if f.peek() != object.Null {
			f.IP = addr + int(operand(prog, addr, 0))
			return nil, true, nil, false
		}
		f.pop()
		f.IP = addr + 2
		return nil, true, nil, false

	case compiler.JMP:
		f.IP = addr + int(operand(prog, addr, 0))
		return nil, true, nil, false
	case compiler.JZ:
		v := f.pop()
		if !object.Truthy(v) {
			f.IP = addr + int(operand(prog, addr, 0))
		} else {
			f.IP = addr + 2
		}
		return nil, true, nil, false
	case compiler.JNZ:
		v := f.pop()
		if object.Truthy(v) {
			f.IP = addr + int(operand(prog, addr, 0))
		} else {
			f.IP = addr + 2
		}
		return nil, true, nil, false
	case compiler.NEXT:
		iter := f.peek()
		v, iterExc := vm.CallValue(iter, object.Null, nil)
		if iterExc != nil {
			return nil, false, iterExc, false
		}
		if v == object.Empty {
			f.pop()
			f.IP = addr + int(operand(prog, addr, 0))
		} else {
			f.push(v)
			f.IP = addr + 2
		}
		return nil, true, nil, false

	case compiler.LOAD:
		name := f.Module.Constants[operand(prog, addr, 0)].(string)
		v, ok := (*f.Fn.Gtab)[name]
		if !ok {
			return nil, false, mkExc(fmt.Errorf("undefined global: %s", name)), false
		}
		f.push(v)
	case compiler.STORE:
		name := f.Module.Constants[operand(prog, addr, 0)].(string)
		(*f.Fn.Gtab)[name] = f.pop()
	case compiler.LOAD_ARG:
		f.push(f.Args[operand(prog, addr, 0)])
	case compiler.STORE_ARG:
		f.Args[operand(prog, addr, 0)] = f.pop()
	case compiler.LOAD_LOCAL:
		f.push(f.Locals[operand(prog, addr, 0)])
	case compiler.STORE_LOCAL:
		f.Locals[operand(prog, addr, 0)] = f.pop()
	case compiler.LOAD_CONTEXT:
		f.push(f.Context[operand(prog, addr, 0)])
	case compiler.STORE_CONTEXT:
		f.Context[operand(prog, addr, 0)] = f.pop()
	case compiler.FNSELF:
		f.push(f.Fn)

	case compiler.CALL:
		argc := int(operand(prog, addr, 0))
		spread := int(operand(prog, addr, 1))
		args := f.popN(argc)
		if spread == 1 {
			lst, ok := args[0].(*object.List)
			if !ok {
				return nil, false, mkExc(fmt.Errorf("spread call argument must be a list")), false
			}
			args = lst.Elems
		}
		self := f.pop()
		callee := f.pop()
		v, callExc := vm.CallValue(callee, self, args)
		if callExc != nil {
			return nil, false, callExc, false
		}
		f.push(v)
	case compiler.RET:
		return f.pop(), false, nil, false
	case compiler.YIELD:
		v := f.pop()
		f.Fn.Coro = &object.CoroState{
			IP:      addr + 1,
			Locals:  append([]object.Object{}, f.Locals...),
			Args:    append([]object.Object{}, f.Args...),
			Context: f.Context,
		}
		return v, false, nil, false

	case compiler.FN:
		idObj := f.pop()
		ctxObj := f.pop()
		fnAddr := int(operand(prog, addr, 0))
		argcMin := int(operand(prog, addr, 1))
		argcMax := int(operand(prog, addr, 2))
		varCount := int(operand(prog, addr, 3))
		fn := &object.Function{
			Kind:     object.KindBytecode,
			ArgcMin:  argcMin,
			ArgcMax:  argcMax,
			Address:  fnAddr,
			Module:   f.Module,
			Gtab:     f.Fn.Gtab,
			VarCount: varCount,
		}
		if name, ok := idObj.(object.String); ok {
			fn.Name = string(name)
		}
		if ctxList, ok := ctxObj.(*object.List); ok {
			fn.Context = ctxList.Elems
		}
		f.push(fn)

	case compiler.TRY:
		f.catch = append(f.catch, CatchFrame{IP: addr + int(operand(prog, addr, 0)), SP: f.sp})
	case compiler.TRYEND:
		if len(f.catch) > 0 {
			f.catch = f.catch[:len(f.catch)-1]
		}
		f.exc = nil
	case compiler.GETEXC:
		if f.exc != nil {
			f.push(f.exc.Value)
		} else {
			f.push(object.Null)
		}
	case compiler.CRAISE:
		if len(f.catch) > 0 {
			f.catch = f.catch[:len(f.catch)-1]
		}
		return nil, false, f.exc, false
	case compiler.RAISE:
		val := f.pop()
		return nil, false, &object.Exception{Value: val, Spot: &object.Spot{Line: line, Col: col, Module: f.Module.File}}, false

	case compiler.POP:
		f.pop()
	case compiler.DUP:
		f.push(f.peek())
	case compiler.SWAP:
		a := f.pop()
		b := f.pop()
		f.push(a)
		f.push(b)
	case compiler.FNSEP:
		// marks a function-body boundary in disassembly; no run-time effect.
	case compiler.HALT:
		if f.sp > 0 {
			return f.pop(), false, nil, true
		}
		return object.Null, false, nil, true

	default:
		return nil, false, mkExc(fmt.Errorf("unimplemented opcode %s", op)), false
	}
	return nil, false, nil, false
}

// raiseInFrame activates f's innermost registered catch handler (if any)
// for exc, positioning f.IP/f.sp/f.exc so the dispatch loop resumes at the
// matching clause's GETEXC instruction. Returns false if f has no active
// handler, meaning exc must propagate to the caller.
func raiseInFrame(f *Frame, exc *object.Exception) bool {
	if len(f.catch) == 0 {
		return false
	}
	top := f.catch[len(f.catch)-1]
	f.sp = top.SP
	f.exc = exc
	f.IP = top.IP
	return true
}
