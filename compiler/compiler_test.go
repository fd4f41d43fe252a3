package compiler

import (
	"testing"

	"moss/lexer"
	"moss/parser"
)

func compileSrc(t *testing.T, src string, debug bool) *Module {
	t.Helper()
	toks, err := lexer.New(src, "test", 1).Scan()
	if err != nil {
		t.Fatalf("lex(%q) error = %v", src, err)
	}
	stmts, err := parser.New(toks, "test").Parse()
	if err != nil {
		t.Fatalf("parse(%q) error = %v", src, err)
	}
	mod, err := Compile(stmts, "test", debug)
	if err != nil {
		t.Fatalf("compile(%q) error = %v", src, err)
	}
	return mod
}

// decodeOps walks a word stream the way a disassembler would, skipping each
// opcode's operand words via the same table the compiler used to emit them.
func decodeOps(t *testing.T, ins Instructions) []Opcode {
	t.Helper()
	var ops []Opcode
	i := 0
	for i < len(ins) {
		op, _, _ := UnpackWord(ins[i])
		ops = append(ops, op)
		def, err := Get(op)
		if err != nil {
			t.Fatalf("undefined opcode %d at word %d", op, i)
		}
		i += 1 + def.OperandWords
	}
	return ops
}

func wantOps(t *testing.T, got []Opcode, want ...Opcode) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("opcodes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("opcodes = %v, want %v", got, want)
		}
	}
}

func TestCompileArithmeticKeepsFinalValue(t *testing.T) {
	mod := compileSrc(t, "1 + 2 * 3", false)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, INT, INT, INT, MUL, ADD, HALT)
}

func TestCompileExpressionStatementDiscardsExceptLast(t *testing.T) {
	mod := compileSrc(t, "1\n2", false)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, INT, POP, INT, HALT)
}

func TestCompileGlobalAssignmentAndLoad(t *testing.T) {
	mod := compileSrc(t, "x = 1\nx", false)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, INT, STORE, LOAD, HALT)
	if len(mod.Constants) != 1 || mod.Constants[0] != "x" {
		t.Fatalf("constants = %v, want [\"x\"]", mod.Constants)
	}
}

func TestCompileCompoundAssignment(t *testing.T) {
	mod := compileSrc(t, "x = 1\nx += 2", false)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, INT, STORE, LOAD, INT, ADD, STORE, HALT)
}

func TestCompileIfElse(t *testing.T) {
	mod := compileSrc(t, "if true then\n  1\nelse\n  2\nend", false)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, TRUE, JZ, INT, POP, JMP, INT, POP, HALT)
}

func TestCompileWhileBreak(t *testing.T) {
	mod := compileSrc(t, "while true do\n  break\nend", false)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, TRUE, JZ, JMP, JMP, HALT)
}

func TestCompileForLoop(t *testing.T) {
	// At top level, for-loop targets are module globals just like any
	// other bare assignment target (see declareAssignTarget).
	mod := compileSrc(t, "for x in a do\n  x\nend", false)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, LOAD, NULL, LOAD, CALL, NEXT, STORE, LOAD, POP, JMP, HALT)
}

func TestCompileForLoopInFunctionUsesLocalSlot(t *testing.T) {
	mod := compileSrc(t, "fn f(a)\n  for x in a do\n    x\n  end\nend", false)
	if mod == nil {
		t.Fatal("expected a compiled module")
	}
	ops := decodeOps(t, mod.Program)
	if !opsContain(ops, HALT, NEXT, STORE_LOCAL, LOAD_LOCAL) {
		t.Fatalf("opcodes = %v, want the loop target stored to and loaded from a local slot", ops)
	}
}

// opsContain reports whether want appears, in order, as a (not necessarily
// contiguous) subsequence of got — used for programs that compile nested
// function units, whose bytecode is appended after the main unit's.
func opsContain(got []Opcode, want ...Opcode) bool {
	i := 0
	for _, op := range got {
		if i < len(want) && op == want[i] {
			i++
		}
	}
	return i == len(want)
}

func TestCompileFunctionLiteralAndCall(t *testing.T) {
	mod := compileSrc(t, "f = fn(n) return n end\nf(1)", false)
	ops := decodeOps(t, mod.Program)
	// main unit: build the closure (no context captures -> NULL, then an
	// id/linecol constant, FN), STORE into f, then LOAD f, NULL (plain
	// call, no dot-call self), INT 1, CALL. The function's own body
	// (LOAD_ARG, RET) is appended after main's HALT.
	if !opsContain(ops, NULL, FN, STORE, LOAD, NULL, INT, CALL, HALT, LOAD_ARG, RET) {
		t.Fatalf("opcodes = %v, missing expected subsequence", ops)
	}
}

func TestCompileRecursiveFunctionUsesFnself(t *testing.T) {
	mod := compileSrc(t, "fn fib(n)\n  return fib(n)\nend", false)
	if len(mod.Constants) == 0 {
		t.Fatalf("expected at least the function name constant")
	}
	ops := decodeOps(t, mod.Program)
	if !opsContain(ops, HALT, FNSELF) {
		t.Fatalf("opcodes = %v, want FNSELF in the function body", ops)
	}
}

func TestCompileDotCallUsesDupDotSwap(t *testing.T) {
	// DUP_DOT_SWAP itself carries the field-name constant index as its
	// operand; there is no separate STR push for the field name.
	mod := compileSrc(t, "obj.method(1)", false)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, LOAD, DUP_DOT_SWAP, INT, CALL, HALT)
}

func TestCompileSplatCall(t *testing.T) {
	mod := compileSrc(t, "f(*args)", false)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, LOAD, NULL, LIST, LOAD, ADD, CALL, HALT)
}

func TestCompileIndexAssignmentUsesSetIndex(t *testing.T) {
	mod := compileSrc(t, "a[0] = 1", false)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, LOAD, INT, INT, SET_INDEX, HALT)
}

func TestCompileIndexCompoundAssignmentUsesAop(t *testing.T) {
	mod := compileSrc(t, "a[0] += 1", false)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, LOAD, INT, INT, AOP, HALT)
}

func TestCompileDotAssignment(t *testing.T) {
	mod := compileSrc(t, "obj.field = 1", false)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, LOAD, STR, INT, DOT_SET, HALT)
}

func TestCompileTryCatch(t *testing.T) {
	mod := compileSrc(t, "try\n  raise 1\ncatch e\n  e\nend", false)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, TRY, INT, RAISE, TRYEND, JMP, GETEXC, STORE, TRYEND, LOAD, POP, HALT)
}

func TestCompileTryCatchWithGuard(t *testing.T) {
	mod := compileSrc(t, "try\n  raise 1\ncatch e if e == 1\n  e\nend", false)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, TRY, INT, RAISE, TRYEND, JMP,
		GETEXC, STORE, LOAD, INT, EQ, JNZ, CRAISE, TRYEND, LOAD, POP, HALT)
}

func TestCompileAssertNoopWithoutDebug(t *testing.T) {
	mod := compileSrc(t, "assert true", false)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, HALT)
}

func TestCompileAssertEmitsRaiseInDebugMode(t *testing.T) {
	mod := compileSrc(t, "assert true", true)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, TRUE, JNZ, STR, RAISE, HALT)
}

func TestCompileGlobalDeclarationSkipsLocalAllocation(t *testing.T) {
	mod := compileSrc(t, "fn f()\n  global x\n  x = 1\nend", false)
	if mod == nil {
		t.Fatal("expected a compiled module")
	}
	ops := decodeOps(t, mod.Program)
	for _, op := range ops {
		if op == STORE_LOCAL {
			t.Fatalf("opcodes = %v, want no STORE_LOCAL for a global", ops)
		}
	}
	if !opsContain(ops, HALT, INT, STORE) {
		t.Fatalf("opcodes = %v, want x stored by name with STORE", ops)
	}
}

func TestCompileListComprehension(t *testing.T) {
	mod := compileSrc(t, "[x for x in a]", false)
	ops := decodeOps(t, mod.Program)
	// main unit: build the anonymous coroutine, call it, stash the
	// resulting coroutine value in a temp, then call `list` on it. The
	// coroutine's own body (its internal for/NEXT/YIELD loop) is appended
	// after main's HALT.
	if !opsContain(ops, FN, NULL, CALL, STORE_LOCAL, LOAD, NULL, LOAD_LOCAL, CALL, HALT, NEXT, YIELD) {
		t.Fatalf("opcodes = %v, missing expected subsequence", ops)
	}
}

func TestCompileRangeLiteral(t *testing.T) {
	// The sole statement is also the program's last, so its value is kept
	// rather than discarded with POP.
	mod := compileSrc(t, "1..10", false)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, INT, INT, NULL, RANGE, HALT)
}

func TestCompileMultiTargetAssignment(t *testing.T) {
	mod := compileSrc(t, "a, b = pair", false)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, LOAD, STORE_LOCAL, LOAD_LOCAL, GET, STORE, LOAD_LOCAL, GET, STORE, HALT)
}

func TestCompileUseStatementWithItems(t *testing.T) {
	mod := compileSrc(t, "use math : sqrt", false)
	ops := decodeOps(t, mod.Program)
	wantOps(t, ops, LOAD, NULL, STR, CALL, DUP, STR, DOT, STORE, POP, HALT)
}
