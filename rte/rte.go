// Package rte implements the Runtime Environment: the process-global
// state shared across every module an interpreter session loads —
// prototype tables, the per-module globals tables, interned operator
// keys, command-line arguments, and the cycle-breaking "delay"/"drop
// buffer" bookkeeping a module-scoped globals design needs once closures
// can capture a gtab and form a reference cycle with it.
package rte

import "moss/object"

// well-known prototype names.
const (
	ProtoBool         = "Bool"
	ProtoInt          = "Int"
	ProtoFloat        = "Float"
	ProtoComplex      = "Complex"
	ProtoString       = "String"
	ProtoList         = "List"
	ProtoMap          = "Map"
	ProtoFunction     = "Function"
	ProtoIterable     = "Iterable"
	ProtoStdException = "StdException"
	ProtoTypeError    = "TypeError"
	ProtoValueError   = "ValueError"
	ProtoIndexError   = "IndexError"
)

// RTE is the shared runtime environment. A fresh RTE must be created per
// interpreter session: tests that run interpreters in sequence must
// instantiate a fresh RTE each time (see DESIGN.md).
type RTE struct {
	Prototypes map[string]*object.Table

	// MainGtab is the main module's globals table; Gtab is whichever
	// module's globals table is currently executing.
	MainGtab object.Gtab
	Gtab     *object.Gtab

	Argv []string

	// delayed holds gtabs whose entries must be explicitly cleared at
	// shutdown to break closure-capturing-gtab cycles.
	delayed []*object.Gtab

	// dropBuffer is the iterative drain buffer the Table destructor uses
	// so cyclic class graphs don't recurse the native stack.
	dropBuffer []*object.Map
}

// New builds a fresh RTE with the well-known prototype tables installed
// and a single main module's gtab, ready to receive builtins. Nothing in
// this module installs builtins into it.
func New(argv []string) *RTE {
	r := &RTE{
		Prototypes: make(map[string]*object.Table),
		MainGtab:   make(object.Gtab),
		Argv:       argv,
	}
	r.Gtab = &r.MainGtab

	for _, name := range []string{
		ProtoStdException, ProtoTypeError, ProtoValueError, ProtoIndexError,
		ProtoBool, ProtoInt, ProtoFloat, ProtoComplex, ProtoString,
		ProtoList, ProtoMap, ProtoFunction, ProtoIterable,
	} {
		r.Prototypes[name] = object.NewTable(object.Null)
		r.Prototypes[name].Fields.Set(object.String("__name__"), object.String(name))
	}
	// exception prototype chain: Type/Value/IndexError all derive from
	// StdException.
	std := r.Prototypes[ProtoStdException]
	for _, name := range []string{ProtoTypeError, ProtoValueError, ProtoIndexError} {
		r.Prototypes[name].Prototype = std
	}
	return r
}

// Proto returns the well-known prototype table for name, or nil.
func (r *RTE) Proto(name string) *object.Table { return r.Prototypes[name] }

// NewModuleGtab registers a fresh gtab for a loaded module and marks it
// delayed (closure capture means it may end up in a reference cycle with
// its own functions; cleared explicitly on Close).
func (r *RTE) NewModuleGtab() *object.Gtab {
	g := make(object.Gtab)
	gp := &g
	r.delayed = append(r.delayed, gp)
	return gp
}

// DrainDrop appends a table's field map to the drop buffer instead of
// recursing into it immediately, so that dropping a deep cyclic class
// graph does not blow the native call stack.
func (r *RTE) DrainDrop(m *object.Map) {
	r.dropBuffer = append(r.dropBuffer, m)
	for len(r.dropBuffer) > 0 {
		n := len(r.dropBuffer) - 1
		cur := r.dropBuffer[n]
		r.dropBuffer = r.dropBuffer[:n]
		_ = cur // maps are Go-GC'd once unreferenced; draining just breaks the recursion depth.
	}
}

// Close clears every delayed gtab and each built-in type's method map,
// breaking the cycles closures capturing their own globals would
// otherwise keep alive indefinitely.
func (r *RTE) Close() {
	for _, g := range r.delayed {
		for k := range *g {
			delete(*g, k)
		}
	}
	r.delayed = nil
	for _, proto := range r.Prototypes {
		proto.Fields.Clear()
	}
}
