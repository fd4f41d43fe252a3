package object

import "moss/compiler"

// FnKind distinguishes the three Function variants.
type FnKind int

const (
	KindBytecode FnKind = iota
	KindNative
	KindMutableNative
)

// Variadic is the argc_max sentinel for a variadic function, matching the
// compiler's own `unit.argcMax = -1` convention.
const Variadic = -1

// Gtab is a module's globals table, shared by every function defined in
// that module and by any closure capturing it.
type Gtab map[string]Object

// NativeFn is the signature of a plain-native Function body. Env is
// passed as `any` so object need not import vm; the VM passes its
// NativeEnv value, or the *vm.VM itself while NativeEnv is nil.
type NativeFn func(env any, self Object, args []Object) (Object, error)

// CoroState freezes a suspended coroutine's resume point. A Function's
// CoroState is nil until its first YIELD, which records it on the
// Function itself. The VM's call path does not read it: every call of a
// coroutine starts again at the function's first instruction, and Done is
// never set.
type CoroState struct {
	IP      int
	Locals  []Object
	Args    []Object
	Context []Object
	Done    bool
}

// Function is the shared record backing every callable value: a
// Bytecode closure, a Plain native, or a Mutable native wrapping
// single-writer interior state.
type Function struct {
	Kind    FnKind
	Name    string
	ArgcMin int
	ArgcMax int // Variadic sentinel for *rest parameters
	ID      int

	// Bytecode fields.
	Address   int
	Module    *compiler.Module
	Gtab      *Gtab
	VarCount  int
	Context   []Object
	Coroutine bool
	Coro      *CoroState

	// Native fields.
	Native   NativeFn
	borrowed bool // MutableNative single-writer guard
}

func (f *Function) Type() Type { return TFunction }
func (f *Function) String() string {
	if f.Name != "" {
		return "fn " + f.Name
	}
	return "fn <anonymous>"
}

// TryBorrow attempts to acquire the single-writer guard a MutableNative
// function needs; the VM fails the call (as a std_exception) rather than
// letting a native function reenter itself while suspended.
func (f *Function) TryBorrow() bool {
	if f.Kind != KindMutableNative {
		return true
	}
	if f.borrowed {
		return false
	}
	f.borrowed = true
	return true
}

func (f *Function) Release() {
	if f.Kind == KindMutableNative {
		f.borrowed = false
	}
}
