package compiler

// VarType classifies where a resolved variable lives at run time: Local,
// Argument, Context, Global, or FnId (see DESIGN.md).
type VarType int

const (
	VarLocal VarType = iota
	VarArgument
	VarContext
	VarGlobal
	VarFnId
)

// VarInfo is the resolved location of one name.
type VarInfo struct {
	Type  VarType
	Index int
}

// contextSource records, for a Context slot allocated in some VTab, where
// that captured value lives one level up (in the immediately enclosing
// VTab). The enclosing function emits a LOAD_LOCAL/LOAD_ARG/LOAD_CONTEXT
// for each entry, in order, to build the new function's context list right
// before its FN instruction.
type contextSource struct {
	ParentType  VarType
	ParentIndex int
}

// VTab is one lexical function scope, linked to its enclosing scope via
// a parent pointer. The top-level module body compiles with a VTab whose
// Enclosing is nil; unresolved names there default to Global.
type VTab struct {
	vars     map[string]VarInfo
	Enclosing *VTab

	CountLocal    int
	CountArgument int
	CountContext  int

	ContextSources []contextSource

	// SelfName, when non-empty, lets a function body reference itself by
	// name for direct recursion without a context capture (FNSELF).
	SelfName string
}

func newVTab(enclosing *VTab) *VTab {
	return &VTab{vars: make(map[string]VarInfo), Enclosing: enclosing}
}

func (vt *VTab) declareLocal(name string) VarInfo {
	info := VarInfo{Type: VarLocal, Index: vt.CountLocal}
	vt.CountLocal++
	vt.vars[name] = info
	return info
}

func (vt *VTab) declareArgument(name string) VarInfo {
	info := VarInfo{Type: VarArgument, Index: vt.CountArgument}
	vt.CountArgument++
	vt.vars[name] = info
	return info
}

func (vt *VTab) declareGlobal(name string) VarInfo {
	info := VarInfo{Type: VarGlobal}
	vt.vars[name] = info
	return info
}

// lookupLocal reports a name already known in this scope alone.
func (vt *VTab) lookupLocal(name string) (VarInfo, bool) {
	info, ok := vt.vars[name]
	return info, ok
}

// resolve walks the VTab chain, allocating Context slots in every
// intervening scope as it goes. Global bindings propagate without allocating a
// context slot anywhere, since they are always reached by name through the
// module's gtab.
func resolve(vt *VTab, name string) (VarInfo, bool) {
	if info, ok := vt.vars[name]; ok {
		return info, true
	}
	if vt.SelfName == name {
		return VarInfo{Type: VarFnId}, true
	}
	if vt.Enclosing == nil {
		return VarInfo{}, false
	}
	outer, ok := resolve(vt.Enclosing, name)
	if !ok {
		return VarInfo{}, false
	}
	if outer.Type == VarGlobal || outer.Type == VarFnId {
		return outer, true
	}
	idx := vt.CountContext
	vt.CountContext++
	info := VarInfo{Type: VarContext, Index: idx}
	vt.vars[name] = info
	vt.ContextSources = append(vt.ContextSources, contextSource{ParentType: outer.Type, ParentIndex: outer.Index})
	return info, true
}
