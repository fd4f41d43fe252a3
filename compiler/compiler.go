// Package compiler lowers an ast.Node program into a Module of packed
// bytecode words. Scope resolution follows a VTab chain. Instruction
// encoding follows a MakeInstruction idiom generalized to 32-bit packed
// words and the language's full opcode set.
package compiler

import (
	"fmt"
	"math"

	"moss/ast"
	"moss/token"
)

// Module is the compiled unit handed to the VM.
type Module struct {
	Program   Instructions
	Constants []any
	File      string
}

// funcUnit holds the in-progress bytecode and scope state for one function
// body. The top-level program is the "main" unit; it is not stored in
// Compiler.functions, and fnPatch refers to it as unit -1.
type funcUnit struct {
	vtab       *VTab
	ins        Instructions
	loopStack  []*loopCtx
	argcMin    int
	argcMax    int
	variadic   bool
	coroutine  bool
	name       string
	line, col  int
	labels     map[string]int
	pendingGo  []pendingGoto
}

type pendingGoto struct {
	addr int
	name string
}

type loopCtx struct {
	breaks    []int // addresses of JMP placeholders to patch to the loop's exit
	continues []int // addresses of JMP placeholders to patch to the loop's top
	// hasIterator is true for a `for` loop, which keeps an iterator object
	// live on the stack for the loop's duration (NEXT pops it only on its
	// own Empty-branch exit); `break` must drop it explicitly on any other
	// exit path. `while` loops never push one.
	hasIterator bool
}

// fnPatch records a FN instruction whose address operand must be rewritten
// to the target function's absolute base address once every function body
// has been compiled and concatenated.
type fnPatch struct {
	unitIndex  int // which funcUnit's `ins` the FN instruction lives in (-1 = main)
	instrAddr  int // local word address of the FN instruction within that unit
	targetUnit int // index into c.functions of the function being created
}

// Compiler walks an AST program and produces a Module.
type Compiler struct {
	file  string
	debug bool

	constants  []any
	constIndex map[any]int

	functions []*funcUnit
	cur       *funcUnit

	fnPatches []fnPatch

	tmpCounter int
}

// Compile lowers a parsed top-level statement list into a Module. debug
// controls whether `assert` statements compile to anything at all").
func Compile(stmts []*ast.Node, file string, debug bool) (mod *Module, err error) {
	c := &Compiler{file: file, debug: debug, constIndex: make(map[any]int)}
	main := &funcUnit{vtab: newVTab(nil), labels: make(map[string]int)}
	c.cur = main

	defer func() {
		if r := recover(); r != nil {
			if se, ok := r.(SemanticError); ok {
				err = se
				return
			}
			panic(r)
		}
	}()

	for _, s := range stmts {
		c.compileStmt(s, s == lastOf(stmts))
	}
	c.resolveGotos(main)
	c.emit(HALT, 0, 0)

	return c.link(main)
}

func lastOf(stmts []*ast.Node) *ast.Node {
	if len(stmts) == 0 {
		return nil
	}
	return stmts[len(stmts)-1]
}

// link concatenates the main unit's instructions with every nested
// function's instructions (in creation order) and patches each FN
// instruction's address operand to its target's absolute word offset.
func (c *Compiler) link(main *funcUnit) (*Module, error) {
	base := make([]int, len(c.functions))
	offset := len(main.ins)
	for i, f := range c.functions {
		base[i] = offset
		offset += len(f.ins)
	}

	program := make(Instructions, 0, offset)
	program = append(program, main.ins...)
	for _, f := range c.functions {
		program = append(program, f.ins...)
	}

	for _, p := range c.fnPatches {
		var unitBase int
		if p.unitIndex == -1 {
			unitBase = 0
		} else {
			unitBase = base[p.unitIndex]
		}
		word := unitBase + p.instrAddr + 1 // FN's address operand is word 1 of the instruction
		program[word] = uint32(base[p.targetUnit])
	}

	return &Module{Program: program, Constants: c.constants, File: c.file}, nil
}

// ---- low-level emission helpers, operating on c.cur ----

func (c *Compiler) emit(op Opcode, line, col int, operands ...int) int {
	ins, addr := Emit(c.cur.ins, op, line, col, operands...)
	c.cur.ins = ins
	return addr
}

func (c *Compiler) emitFloat(op Opcode, line, col int, v float64) int {
	ins, addr := EmitFloatBits(c.cur.ins, op, line, col, math.Float64bits(v))
	c.cur.ins = ins
	return addr
}

func (c *Compiler) patchOperand(addr, operandIndex, value int) {
	c.cur.ins[addr+1+operandIndex] = uint32(value)
}

// patchJumpHere patches a jump instruction's (single) operand to a
// signed relative offset from the instruction to the current end of the
// buffer.
func (c *Compiler) patchJumpHere(addr int) {
	target := len(c.cur.ins)
	c.patchOperand(addr, 0, target-addr)
}

func (c *Compiler) patchJumpTo(addr, target int) {
	c.patchOperand(addr, 0, target-addr)
}

func (c *Compiler) here() int { return len(c.cur.ins) }

func (c *Compiler) intern(v any) int {
	if idx, ok := c.constIndex[v]; ok {
		return idx
	}
	idx := len(c.constants)
	c.constants = append(c.constants, v)
	c.constIndex[v] = idx
	return idx
}

func (c *Compiler) errAt(n *ast.Node, msg string) {
	panic(SemanticError{Line: n.Line, Col: n.Col, File: c.file, Message: msg})
}

// ---- statements ----

// compileStmt compiles one statement. keep, when true, leaves a bare
// expression statement's value on the stack instead of discarding it with
// POP — used only for the final statement of the whole program so the VM
// has a result to report after HALT.
func (c *Compiler) compileStmt(n *ast.Node, keep bool) {
	switch n.Symbol {
	case token.Statement:
		if len(n.Children) == 0 {
			return
		}
		c.compileExpr(n.Child(0))
		if !keep {
			c.emit(POP, n.Line, n.Col)
		}
	case token.Assignment, token.APlus, token.AMinus, token.AAst, token.ADiv,
		token.AIdiv, token.AMod, token.AAmp, token.AVline, token.ASvert:
		c.compileAssignment(n)
	case token.If:
		c.compileIf(n)
	case token.While:
		c.compileWhile(n)
	case token.For:
		c.compileFor(n)
	case token.Return:
		if len(n.Children) == 1 {
			c.compileExpr(n.Child(0))
		} else {
			c.emit(NULL, n.Line, n.Col)
		}
		c.emit(RET, n.Line, n.Col)
	case token.Yield:
		if len(n.Children) == 1 {
			c.compileExpr(n.Child(0))
		} else {
			c.emit(NULL, n.Line, n.Col)
		}
		c.emit(YIELD, n.Line, n.Col)
	case token.Break:
		if len(c.cur.loopStack) == 0 {
			c.errAt(n, "'break' outside a loop")
		}
		loop := c.cur.loopStack[len(c.cur.loopStack)-1]
		if loop.hasIterator {
			c.emit(POP, n.Line, n.Col) // drop the `for` loop's live iterator before exiting
		}
		addr := c.emit(JMP, n.Line, n.Col, 0)
		loop.breaks = append(loop.breaks, addr)
	case token.Continue:
		if len(c.cur.loopStack) == 0 {
			c.errAt(n, "'continue' outside a loop")
		}
		loop := c.cur.loopStack[len(c.cur.loopStack)-1]
		addr := c.emit(JMP, n.Line, n.Col, 0)
		loop.continues = append(loop.continues, addr)
	case token.Goto:
		addr := c.emit(JMP, n.Line, n.Col, 0)
		c.cur.pendingGo = append(c.cur.pendingGo, pendingGoto{addr: addr, name: n.Str})
	case token.Label:
		c.cur.labels[n.Str] = c.here()
	case token.Raise:
		c.compileExpr(n.Child(0))
		c.emit(RAISE, n.Line, n.Col)
	case token.Try:
		c.compileTry(n)
	case token.Global:
		for _, id := range n.Children {
			c.cur.vtab.declareGlobal(id.Str)
		}
	case token.Use:
		c.compileUse(n)
	case token.Assert:
		c.compileAssert(n)
	default:
		c.errAt(n, fmt.Sprintf("unsupported statement %v", n.Symbol))
	}
}

func (c *Compiler) resolveGotos(f *funcUnit) {
	for _, g := range f.pendingGo {
		addr, ok := f.labels[g.name]
		if !ok {
			panic(SemanticError{Line: 0, Col: 0, File: c.file, Message: fmt.Sprintf("undefined label %q", g.name)})
		}
		save := c.cur
		c.cur = f
		c.patchJumpTo(g.addr, addr)
		c.cur = save
	}
}

func (c *Compiler) compileIf(n *ast.Node) {
	cond := n.Child(0)
	body := n.Child(1)
	c.compileExpr(cond)
	jz := c.emit(JZ, n.Line, n.Col, 0)
	c.compileBlockBody(body)
	var ends []int
	ends = append(ends, c.emit(JMP, n.Line, n.Col, 0))
	c.patchJumpHere(jz)

	if len(n.Children) > 2 {
		tail := n.Child(2)
		switch tail.Symbol {
		case token.Elif:
			c.compileElifChain(tail, &ends)
		default:
			c.compileBlockBody(tail)
		}
	}
	for _, e := range ends {
		c.patchJumpHere(e)
	}
}

func (c *Compiler) compileElifChain(n *ast.Node, ends *[]int) {
	cond := n.Child(0)
	body := n.Child(1)
	c.compileExpr(cond)
	jz := c.emit(JZ, n.Line, n.Col, 0)
	c.compileBlockBody(body)
	*ends = append(*ends, c.emit(JMP, n.Line, n.Col, 0))
	c.patchJumpHere(jz)
	if len(n.Children) > 2 {
		tail := n.Child(2)
		if tail.Symbol == token.Elif {
			c.compileElifChain(tail, ends)
		} else {
			c.compileBlockBody(tail)
		}
	}
}

func (c *Compiler) compileWhile(n *ast.Node) {
	top := c.here()
	cond := n.Child(0)
	body := n.Child(1)
	c.compileExpr(cond)
	jz := c.emit(JZ, n.Line, n.Col, 0)
	loop := &loopCtx{}
	c.cur.loopStack = append(c.cur.loopStack, loop)
	c.compileBlockBody(body)
	c.cur.loopStack = c.cur.loopStack[:len(c.cur.loopStack)-1]
	for _, cont := range loop.continues {
		c.patchJumpTo(cont, top)
	}
	back := c.emit(JMP, n.Line, n.Col, 0)
	c.patchJumpTo(back, top)
	c.patchJumpHere(jz)
	for _, b := range loop.breaks {
		c.patchJumpHere(b)
	}
}

// compileFor lowers `for x[,y] in a do body end` to the iterator
// protocol loop: acquire an iterator via the `iter` builtin, then
// repeatedly NEXT it until Empty.
func (c *Compiler) compileFor(n *ast.Node) {
	targets := n.Child(0)
	iterableExpr := n.Child(1)
	body := n.Child(2)

	c.emit(LOAD, n.Line, n.Col, c.intern("iter"))
	c.emit(NULL, n.Line, n.Col)
	c.compileExpr(iterableExpr)
	c.emit(CALL, n.Line, n.Col, 1, 0)

	top := c.here()
	loop := &loopCtx{hasIterator: true}
	c.cur.loopStack = append(c.cur.loopStack, loop)
	nextAddr := c.emit(NEXT, n.Line, n.Col, 0)
	loop.breaks = append(loop.breaks, nextAddr)

	c.compileForTargets(targets, n)
	c.compileBlockBody(body)
	for _, cont := range loop.continues {
		c.patchJumpTo(cont, top)
	}
	back := c.emit(JMP, n.Line, n.Col, 0)
	c.patchJumpTo(back, top)
	c.cur.loopStack = c.cur.loopStack[:len(c.cur.loopStack)-1]
	for _, b := range loop.breaks {
		c.patchJumpHere(b)
	}
}

func (c *Compiler) compileForTargets(targets *ast.Node, n *ast.Node) {
	if len(targets.Children) == 1 {
		c.storeName(targets.Child(0).Str, n.Line, n.Col)
		return
	}
	tmp := c.declareTemp()
	c.storeSlot(tmp, n.Line, n.Col)
	for i, t := range targets.Children {
		c.loadSlot(tmp, n.Line, n.Col)
		c.emit(GET, n.Line, n.Col, i)
		c.storeName(t.Str, n.Line, n.Col)
	}
}

// declareTemp allocates a synthetic Local slot for compiler-internal
// bookkeeping (tuple unpacking, for-loop destructuring). It always
// declares a Local, even inside the top-level unit, so it is addressable
// by index and never collides with the Global-by-name path user
// identifiers at module scope take.
func (c *Compiler) declareTemp() VarInfo {
	c.tmpCounter++
	name := fmt.Sprintf("$tmp%d", c.tmpCounter)
	return c.cur.vtab.declareLocal(name)
}

func (c *Compiler) compileTry(n *ast.Node) {
	body := n.Child(0)
	tryAddr := c.emit(TRY, n.Line, n.Col, 0)
	c.compileBlockBody(body)
	c.emit(TRYEND, n.Line, n.Col)
	endJmp := c.emit(JMP, n.Line, n.Col, 0)
	c.patchJumpHere(tryAddr)

	for i := 1; i < len(n.Children); i++ {
		clause := n.Child(i)
		c.emit(GETEXC, clause.Line, clause.Col)
		c.storeName(clause.Child(0).Str, clause.Line, clause.Col)
		childIdx := 1
		var guardJnz int
		hasGuard := len(clause.Children) == 3
		if hasGuard {
			c.compileExpr(clause.Child(1))
			guardJnz = c.emit(JNZ, clause.Line, clause.Col, 0)
			c.emit(CRAISE, clause.Line, clause.Col)
			c.patchJumpHere(guardJnz)
			childIdx = 2
		}
		c.emit(TRYEND, clause.Line, clause.Col)
		c.compileBlockBody(clause.Child(childIdx))
	}
	c.patchJumpHere(endJmp)
}

// compileUse lowers `use path[.sub]* [: items]` to a call against the
// module loader's `use` hook.
func (c *Compiler) compileUse(n *ast.Node) {
	path := n.Child(0)
	c.emit(LOAD, n.Line, n.Col, c.intern("use"))
	c.emit(NULL, n.Line, n.Col)
	c.emit(STR, n.Line, n.Col, c.intern(path.Str))
	c.emit(CALL, n.Line, n.Col, 1, 0)

	if len(n.Children) < 2 {
		lastDot := path.Str
		for i := len(path.Str) - 1; i >= 0; i-- {
			if path.Str[i] == '.' {
				lastDot = path.Str[i+1:]
				break
			}
		}
		c.storeName(lastDot, n.Line, n.Col)
		return
	}
	items := n.Child(1)
	for _, item := range items.Children {
		c.emit(DUP, n.Line, n.Col)
		c.emit(STR, n.Line, n.Col, c.intern(item.Str))
		c.emit(DOT, n.Line, n.Col)
		c.storeName(item.Str, n.Line, n.Col)
	}
	c.emit(POP, n.Line, n.Col)
}

// compileAssert compiles to nothing unless debug mode is enabled: assert
// statements are a no-op outside debug compilation.
func (c *Compiler) compileAssert(n *ast.Node) {
	if !c.debug {
		return
	}
	cond := n.Child(0)
	c.compileExpr(cond)
	jnz := c.emit(JNZ, n.Line, n.Col, 0)
	if len(n.Children) > 1 {
		c.compileExpr(n.Child(1))
	} else {
		c.emit(STR, n.Line, n.Col, c.intern("assertion failed"))
	}
	c.emit(RAISE, n.Line, n.Col)
	c.patchJumpHere(jnz)
}

// compileBlockBody compiles a Block node's statements, always discarding
// any bare-expression-statement value (only the outermost program keeps
// its final value).
func (c *Compiler) compileBlockBody(block *ast.Node) {
	for _, s := range block.Children {
		c.compileStmt(s, false)
	}
}

// ---- assignment ----

func (c *Compiler) compileAssignment(n *ast.Node) {
	target := n.Child(0)
	value := n.Child(1)
	op := n.Symbol

	if target.Symbol == token.TupleSym {
		if op != token.Assignment {
			c.errAt(n, "compound assignment cannot have a multi-target tuple")
		}
		c.compileExpr(value)
		tmp := c.declareTemp()
		c.storeSlot(tmp, n.Line, n.Col)
		for i, t := range target.Children {
			c.loadSlot(tmp, n.Line, n.Col)
			c.emit(GET, n.Line, n.Col, i)
			c.assignSingle(t, token.Assignment, nil)
		}
		return
	}
	c.assignSingle(target, op, value)
}

// assignSingle compiles one lvalue assignment. When value is nil the value
// expression has already been pushed onto the stack by the caller (the
// multi-target tuple-unpack path above).
func (c *Compiler) assignSingle(target *ast.Node, op token.Symbol, value *ast.Node) {
	switch target.Symbol {
	case token.LiteralIdent:
		if op == token.Assignment {
			if value != nil {
				c.compileExpr(value)
			}
			c.storeName(target.Str, target.Line, target.Col)
			return
		}
		c.loadName(target.Str, target.Line, target.Col)
		c.compileExpr(value)
		c.emit(compoundOpcode(op), target.Line, target.Col)
		c.storeName(target.Str, target.Line, target.Col)

	case token.Index:
		c.compileExpr(target.Child(0))
		c.compileExpr(target.Child(1))
		if op == token.Assignment {
			c.compileExpr(value)
			c.emit(SET_INDEX, target.Line, target.Col, 1)
			return
		}
		c.compileExpr(value)
		c.emit(AOP, target.Line, target.Col, int(GET_INDEX), int(compoundOpcode(op)))

	case token.Dot:
		c.compileExpr(target.Child(0))
		c.emit(STR, target.Line, target.Col, c.intern(target.Child(1).Str))
		if op == token.Assignment {
			c.compileExpr(value)
			c.emit(DOT_SET, target.Line, target.Col)
			return
		}
		c.compileExpr(value)
		c.emit(AOP, target.Line, target.Col, int(DOT), int(compoundOpcode(op)))

	default:
		c.errAt(target, "invalid assignment target")
	}
}

func compoundOpcode(sym token.Symbol) Opcode {
	switch sym {
	case token.APlus, token.Plus:
		return ADD
	case token.AMinus, token.Minus:
		return SUB
	case token.AAst, token.Ast:
		return MUL
	case token.ADiv, token.Div:
		return DIV
	case token.AIdiv, token.Idiv:
		return IDIV
	case token.AMod, token.Mod:
		return MOD
	case token.AAmp, token.Amp:
		return BAND
	case token.AVline, token.Vline, token.ASvert, token.Svert:
		return BOR
	}
	panic(fmt.Sprintf("compiler: no compound opcode for symbol %v", sym))
}

// declareAssignTarget resolves (or creates) the VarInfo a bare name
// assignment target writes to: a new Local inside a function body unless
// the name was declared `global`, or a Global at top level.
func (c *Compiler) declareAssignTarget(name string) VarInfo {
	vt := c.cur.vtab
	if info, ok := vt.lookupLocal(name); ok {
		return info
	}
	if vt.Enclosing == nil {
		return vt.declareGlobal(name)
	}
	return vt.declareLocal(name)
}

// storeName resolves name against the assignment-target rules (new Local
// inside a function, new Global at top level, unless declared `global`)
// and emits the matching store instruction. Global stores are addressed by
// name, never by index, so this is the only path that may emit STORE; the
// index-addressed kinds delegate to storeSlot.
func (c *Compiler) storeName(name string, line, col int) {
	info := c.resolveForStore(name)
	if info.Type == VarGlobal {
		c.emit(STORE, line, col, c.intern(name))
		return
	}
	c.storeSlot(info, line, col)
}

func (c *Compiler) resolveForStore(name string) VarInfo {
	if info, ok := c.cur.vtab.lookupLocal(name); ok {
		return info
	}
	return c.declareAssignTarget(name)
}

// storeSlot emits a store for an index-addressed variable (Local, Argument,
// or Context). Global variables are addressed by name and must go through
// storeName instead, since a VarInfo alone cannot recover a Global's name.
func (c *Compiler) storeSlot(info VarInfo, line, col int) {
	switch info.Type {
	case VarLocal:
		c.emit(STORE_LOCAL, line, col, info.Index)
	case VarArgument:
		c.emit(STORE_ARG, line, col, info.Index)
	case VarContext:
		c.emit(STORE_CONTEXT, line, col, info.Index)
	default:
		panic("compiler: cannot store into this variable kind")
	}
}

func (c *Compiler) loadName(name string, line, col int) {
	info, ok := resolve(c.cur.vtab, name)
	if !ok {
		c.emit(LOAD, line, col, c.intern(name))
		return
	}
	switch info.Type {
	case VarLocal:
		c.emit(LOAD_LOCAL, line, col, info.Index)
	case VarArgument:
		c.emit(LOAD_ARG, line, col, info.Index)
	case VarContext:
		c.emit(LOAD_CONTEXT, line, col, info.Index)
	case VarGlobal:
		c.emit(LOAD, line, col, c.intern(name))
	case VarFnId:
		c.emit(FNSELF, line, col)
	}
}

// loadSlot emits the index-addressed load for a Local, Argument or Context
// slot. Global and FnId variables have no slot index (they are loaded by
// name or with FNSELF), so loadSlot panics on them.
func (c *Compiler) loadSlot(info VarInfo, line, col int) {
	switch info.Type {
	case VarLocal:
		c.emit(LOAD_LOCAL, line, col, info.Index)
	case VarArgument:
		c.emit(LOAD_ARG, line, col, info.Index)
	case VarContext:
		c.emit(LOAD_CONTEXT, line, col, info.Index)
	default:
		panic("compiler: loadSlot on non-indexable variable kind")
	}
}

// ---- expressions ----

func (c *Compiler) compileExpr(n *ast.Node) {
	switch n.Kind {
	case token.KindInt:
		c.compileIntLiteral(n)
		return
	case token.KindFloat:
		c.emitFloat(FLOAT, n.Line, n.Col, n.Literal.(float64))
		return
	case token.KindImag:
		c.emitFloat(IMAG, n.Line, n.Col, n.Literal.(float64))
		return
	case token.KindString:
		c.emit(STR, n.Line, n.Col, c.intern(n.Literal.(string)))
		return
	case token.KindBool:
		if n.Symbol == token.True {
			c.emit(TRUE, n.Line, n.Col)
		} else {
			c.emit(FALSE, n.Line, n.Col)
		}
		return
	case token.KindIdentifier:
		c.loadName(n.Str, n.Line, n.Col)
		return
	}

	switch n.Symbol {
	case token.Null:
		c.emit(NULL, n.Line, n.Col)
	case token.Plus, token.Minus, token.Ast, token.Div, token.Idiv, token.Mod, token.Pow,
		token.Lt, token.Gt, token.Le, token.Ge, token.Eq, token.Ne,
		token.Is, token.Isnot, token.In, token.Notin, token.Isin, token.Of,
		token.Amp, token.Vline, token.Svert, token.Lshift, token.Rshift:
		c.compileExpr(n.Child(0))
		c.compileExpr(n.Child(1))
		c.emit(binOpcode(n.Symbol), n.Line, n.Col)
	case token.Neg:
		c.compileExpr(n.Child(0))
		c.emit(NEG, n.Line, n.Col)
	case token.Tilde:
		c.compileExpr(n.Child(0))
		c.emit(TILDE, n.Line, n.Col)
	case token.Not:
		c.compileExpr(n.Child(0))
		c.compileNot(n)
	case token.And:
		c.compileExpr(n.Child(0))
		addr := c.emit(AND, n.Line, n.Col, 0)
		c.compileExpr(n.Child(1))
		c.patchJumpHere(addr)
	case token.Or:
		c.compileExpr(n.Child(0))
		addr := c.emit(OR, n.Line, n.Col, 0)
		c.compileExpr(n.Child(1))
		c.patchJumpHere(addr)
	case token.If:
		c.compileTernary(n)
	case token.Range:
		c.compileExpr(n.Child(0))
		c.compileExpr(n.Child(1))
		if len(n.Children) > 2 {
			c.compileExpr(n.Child(2))
		} else {
			c.emit(NULL, n.Line, n.Col)
		}
		c.emit(RANGE, n.Line, n.Col)
	case token.Dot:
		c.compileExpr(n.Child(0))
		c.emit(STR, n.Line, n.Col, c.intern(n.Child(1).Str))
		c.emit(DOT, n.Line, n.Col)
	case token.Index:
		c.compileExpr(n.Child(0))
		c.compileExpr(n.Child(1))
		c.emit(GET_INDEX, n.Line, n.Col, 1)
	case token.TupleSym:
		for _, ch := range n.Children {
			c.compileExpr(ch)
		}
		c.emit(TUPLE, n.Line, n.Col, len(n.Children))
	case token.ListSym:
		for _, ch := range n.Children {
			c.compileExpr(ch)
		}
		c.emit(LIST, n.Line, n.Col, len(n.Children))
	case token.MapSym:
		for _, entry := range n.Children {
			c.compileExpr(entry.Child(0))
			c.compileExpr(entry.Child(1))
		}
		c.emit(MAP, n.Line, n.Col, len(n.Children))
	case token.Table:
		c.compileExpr(n.Child(0))
		entries := n.Child(1)
		for _, entry := range entries.Children {
			c.compileExpr(entry.Child(0))
			c.compileExpr(entry.Child(1))
		}
		c.emit(TABLE, n.Line, n.Col, len(entries.Children))
	case token.Application:
		c.compileCall(n)
	case token.Fn:
		c.compileFunctionLiteral(n)
	case token.Yield:
		c.compileComprehension(n)
	default:
		c.errAt(n, fmt.Sprintf("unsupported expression %v", n.Symbol))
	}
}

func (c *Compiler) compileIntLiteral(n *ast.Node) {
	if n.Symbol == token.LiteralLong {
		c.emit(LONG, n.Line, n.Col, c.intern(n.Literal.(string)))
		return
	}
	v, _ := n.Literal.(int32)
	c.emit(INT, n.Line, n.Col, int(v))
}

// compileNot reuses JZ/JMP rather than a dedicated boolean-negation opcode:
// push true/false depending on the (already-pushed) operand's truthiness.
func (c *Compiler) compileNot(n *ast.Node) {
	jz := c.emit(JZ, n.Line, n.Col, 0)
	c.emit(FALSE, n.Line, n.Col)
	jmp := c.emit(JMP, n.Line, n.Col, 0)
	c.patchJumpHere(jz)
	c.emit(TRUE, n.Line, n.Col)
	c.patchJumpHere(jmp)
}

func (c *Compiler) compileTernary(n *ast.Node) {
	cond := n.Child(0)
	thenExpr := n.Child(1)
	elseExpr := n.Child(2)
	c.compileExpr(cond)
	jz := c.emit(JZ, n.Line, n.Col, 0)
	c.compileExpr(thenExpr)
	jmp := c.emit(JMP, n.Line, n.Col, 0)
	c.patchJumpHere(jz)
	c.compileExpr(elseExpr)
	c.patchJumpHere(jmp)
}

func binOpcode(sym token.Symbol) Opcode {
	switch sym {
	case token.Plus:
		return ADD
	case token.Minus:
		return SUB
	case token.Ast:
		return MUL
	case token.Div:
		return DIV
	case token.Idiv:
		return IDIV
	case token.Mod:
		return MOD
	case token.Pow:
		return POW
	case token.Lt:
		return LT
	case token.Gt:
		return GT
	case token.Le:
		return LE
	case token.Ge:
		return GE
	case token.Eq:
		return EQ
	case token.Ne:
		return NE
	case token.Is:
		return IS
	case token.Isnot:
		return ISNOT
	case token.In:
		return IN
	case token.Notin:
		return NOTIN
	case token.Isin:
		return ISIN
	case token.Of:
		return OF
	case token.Amp:
		return BAND
	case token.Vline, token.Svert:
		return BOR
	case token.Lshift:
		return LSHIFT
	case token.Rshift:
		return RSHIFT
	}
	panic(fmt.Sprintf("compiler: no opcode for binary symbol %v", sym))
}

// compileCall compiles `f(args)`, `obj.method(args)`, and splat calls.
// Dot-calls arrive with their callee already a Dot node and FlagSelfArg set
//.
func (c *Compiler) compileCall(n *ast.Node) {
	callee := n.Child(0)
	args := n.Children[1:]

	splatIdx := -1
	for i, a := range args {
		if a.Symbol == token.Splat {
			splatIdx = i
			break
		}
	}

	if callee.Symbol == token.Dot && n.HasFlag(ast.FlagSelfArg) {
		c.compileExpr(callee.Child(0))
		c.emit(DUP_DOT_SWAP, n.Line, n.Col, c.intern(callee.Child(1).Str))
	} else {
		c.compileExpr(callee)
		c.emit(NULL, n.Line, n.Col)
	}

	if splatIdx < 0 {
		for _, a := range args {
			c.compileExpr(a)
		}
		c.emit(CALL, n.Line, n.Col, len(args), 0)
		return
	}

	fixed := append([]*ast.Node{}, args[:splatIdx]...)
	for _, a := range fixed {
		c.compileExpr(a)
	}
	c.emit(LIST, n.Line, n.Col, len(fixed))
	c.compileExpr(args[splatIdx].Child(0))
	c.emit(ADD, n.Line, n.Col)
	for _, a := range args[splatIdx+1:] {
		c.compileExpr(a)
	}
	if len(args) > splatIdx+1 {
		c.errAt(n, "a splat call argument must be the last argument")
	}
	c.emit(CALL, n.Line, n.Col, 1, 1)
}

// compileComprehension lowers `[expr for x in a if cond ...]` into a
// coroutine body that yields expr under nested loops/conditions, invoked
// immediately and materialized as a list.
func (c *Compiler) compileComprehension(n *ast.Node) {
	head := n.Child(0)
	clauses := n.Children[1:]

	fn := &ast.Node{Line: n.Line, Col: n.Col, Kind: token.KindKeyword, Symbol: token.Fn, Info: ast.FlagCoroutine}
	params := ast.New(n.Line, n.Col, token.KindSynthetic, token.ListSym)
	fn.Append(params)
	body := c.buildComprehensionBody(head, clauses)
	fn.Append(body)

	c.compileFunctionLiteral(fn)
	c.emit(NULL, n.Line, n.Col)
	c.emit(CALL, n.Line, n.Col, 0, 0)

	coro := c.declareTemp()
	c.storeSlot(coro, n.Line, n.Col)
	c.emit(LOAD, n.Line, n.Col, c.intern("list"))
	c.emit(NULL, n.Line, n.Col)
	c.loadSlot(coro, n.Line, n.Col)
	c.emit(CALL, n.Line, n.Col, 1, 0)
}

// buildComprehensionBody builds, innermost-out, the nested for/if statement
// tree a comprehension's clauses describe, bottoming out in a block holding
// one `yield head` statement.
func (c *Compiler) buildComprehensionBody(head *ast.Node, clauses []*ast.Node) *ast.Node {
	var wrap func(i int) *ast.Node
	wrap = func(i int) *ast.Node {
		if i >= len(clauses) {
			block := ast.New(head.Line, head.Col, token.KindSynthetic, token.Block)
			stmt := ast.New(head.Line, head.Col, token.KindKeyword, token.Yield, head)
			block.Append(stmt)
			return block
		}
		clause := clauses[i]
		inner := wrap(i + 1)
		if len(clause.Children) == 3 {
			guarded := ast.New(clause.Line, clause.Col, token.KindKeyword, token.If, clause.Child(2), inner)
			block := ast.New(clause.Line, clause.Col, token.KindSynthetic, token.Block, guarded)
			forNode := ast.New(clause.Line, clause.Col, token.KindKeyword, token.For,
				wrapTarget(clause.Child(0)), clause.Child(1), block)
			outer := ast.New(clause.Line, clause.Col, token.KindSynthetic, token.Block)
			outer.Append(forNode)
			return outer
		}
		forNode := ast.New(clause.Line, clause.Col, token.KindKeyword, token.For,
			wrapTarget(clause.Child(0)), clause.Child(1), inner)
		outer := ast.New(clause.Line, clause.Col, token.KindSynthetic, token.Block)
		outer.Append(forNode)
		return outer
	}
	return wrap(0)
}

func wrapTarget(id *ast.Node) *ast.Node {
	return ast.New(id.Line, id.Col, token.KindSynthetic, token.TupleSym, id)
}

// compileFunctionLiteral compiles a nested function body into its own
// funcUnit, then emits the enclosing FN-construction sequence: push the
// captured context list (or Null), push an id/linecol constant, FN.
func (c *Compiler) compileFunctionLiteral(n *ast.Node) {
	params := n.Child(0)
	body := n.Child(1)

	unit := &funcUnit{
		vtab:      newVTab(c.cur.vtab),
		labels:    make(map[string]int),
		name:      n.Str,
		line:      n.Line,
		col:       n.Col,
		coroutine: n.HasFlag(ast.FlagCoroutine),
	}
	if n.Str != "" {
		unit.vtab.SelfName = n.Str
	}

	variadic := false
	unit.vtab.CountArgument = 1 // Args slot 0 holds the call's self value
	for _, p := range params.Children {
		name := p
		hasDefault := false
		if p.Symbol == token.Assignment {
			name = p.Child(0)
			hasDefault = true
		}
		unit.vtab.declareArgument(name.Str)
		if name.HasFlag(ast.FlagVariadic) {
			variadic = true
		} else if !hasDefault {
			unit.argcMin++
		}
	}
	unit.variadic = variadic

	unitIndex := len(c.functions)
	c.functions = append(c.functions, unit)

	outer := c.cur
	c.cur = unit

	argIdx := 1
	for _, p := range params.Children {
		if p.Symbol == token.Assignment {
			name := p.Child(0)
			def := p.Child(1)
			c.emit(LOAD_ARG, name.Line, name.Col, argIdx)
			c.emit(NULL, name.Line, name.Col)
			c.emit(EQ, name.Line, name.Col)
			jz := c.emit(JZ, name.Line, name.Col, 0)
			c.compileExpr(def)
			c.emit(STORE_ARG, name.Line, name.Col, argIdx)
			c.patchJumpHere(jz)
		}
		argIdx++
	}

	for _, s := range body.Children {
		c.compileStmt(s, false)
	}
	c.resolveGotos(unit)
	c.emit(NULL, n.Line, n.Col)
	c.emit(RET, n.Line, n.Col)

	unit.argcMax = len(params.Children)
	if variadic {
		unit.argcMax = -1 // object.Variadic; the VM reads the operand word back as int32 -1
	}

	c.cur = outer

	if len(unit.vtab.ContextSources) == 0 {
		c.emit(NULL, n.Line, n.Col)
	} else {
		for _, src := range unit.vtab.ContextSources {
			c.loadSlot(VarInfo{Type: src.ParentType, Index: src.ParentIndex}, n.Line, n.Col)
		}
		c.emit(LIST, n.Line, n.Col, len(unit.vtab.ContextSources))
	}

	if n.Str != "" {
		c.emit(STR, n.Line, n.Col, c.intern(n.Str))
	} else {
		c.emit(INT, n.Line, n.Col, (n.Line<<8)|(n.Col&0xFF))
	}

	fnAddr := c.emit(FN, n.Line, n.Col, 0, unit.argcMin, unit.argcMax, unit.vtab.CountLocal)
	fromUnit := -1
	for i, f := range c.functions {
		if f == outer {
			fromUnit = i
			break
		}
	}
	c.fnPatches = append(c.fnPatches, fnPatch{unitIndex: fromUnit, instrAddr: fnAddr, targetUnit: unitIndex})
}
