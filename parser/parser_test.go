package parser

import (
	"testing"

	"moss/ast"
	"moss/lexer"
	"moss/token"
)

func parse(t *testing.T, src string) []*ast.Node {
	t.Helper()
	toks, err := lexer.New(src, "test", 1).Scan()
	if err != nil {
		t.Fatalf("lex(%q) error = %v", src, err)
	}
	stmts, err := New(toks, "test").Parse()
	if err != nil {
		t.Fatalf("parse(%q) error = %v", src, err)
	}
	return stmts
}

func TestParseArithmeticPrecedence(t *testing.T) {
	stmts := parse(t, "1 + 2 * 3")
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(stmts))
	}
	expr := stmts[0].Child(0)
	if expr.Symbol != token.Plus {
		t.Fatalf("top operator = %v, want Plus", expr.Symbol)
	}
	rhs := expr.Child(1)
	if rhs.Symbol != token.Ast {
		t.Fatalf("rhs operator = %v, want Ast (multiplication binds tighter)", rhs.Symbol)
	}
}

func TestParsePowerRightAssociative(t *testing.T) {
	stmts := parse(t, "2 ^ 3 ^ 2")
	expr := stmts[0].Child(0)
	if expr.Symbol != token.Pow {
		t.Fatalf("top operator = %v, want Pow", expr.Symbol)
	}
	if expr.Child(0).Symbol != token.LiteralInt {
		t.Fatalf("left of outer ^ should be the literal 2, got %v", expr.Child(0).Symbol)
	}
	if expr.Child(1).Symbol != token.Pow {
		t.Fatalf("right of outer ^ should itself be a ^ (right-assoc), got %v", expr.Child(1).Symbol)
	}
}

func TestParseAssignment(t *testing.T) {
	stmts := parse(t, "x = 1")
	if stmts[0].Kind != token.KindAssignment || stmts[0].Symbol != token.Assignment {
		t.Fatalf("got %v/%v, want assignment", stmts[0].Kind, stmts[0].Symbol)
	}
}

func TestParseCompoundAssignment(t *testing.T) {
	stmts := parse(t, "x += 1")
	if stmts[0].Symbol != token.APlus {
		t.Fatalf("got %v, want APlus", stmts[0].Symbol)
	}
}

func TestParseMultiTargetAssignment(t *testing.T) {
	stmts := parse(t, "a, b = 1, 2")
	n := stmts[0]
	if n.Symbol != token.Assignment {
		t.Fatalf("got %v, want Assignment", n.Symbol)
	}
	if n.Child(0).Symbol != token.TupleSym || len(n.Child(0).Children) != 2 {
		t.Fatalf("target should be a 2-element tuple, got %v", n.Child(0))
	}
}

func TestParseIfElif(t *testing.T) {
	stmts := parse(t, "if a then b elif c then d else e end")
	n := stmts[0]
	if n.Symbol != token.If {
		t.Fatalf("got %v, want If", n.Symbol)
	}
	if len(n.Children) < 3 {
		t.Fatalf("if node should carry cond/body/elif chain, got %d children", len(n.Children))
	}
	elif := n.Child(2)
	if elif.Symbol != token.Elif {
		t.Fatalf("third child = %v, want Elif", elif.Symbol)
	}
}

func TestParseWhileLoop(t *testing.T) {
	stmts := parse(t, "while x < 10 do x += 1 end")
	n := stmts[0]
	if n.Symbol != token.While {
		t.Fatalf("got %v, want While", n.Symbol)
	}
}

func TestParseForLoop(t *testing.T) {
	stmts := parse(t, "for x in a do yield x end")
	n := stmts[0]
	if n.Symbol != token.For {
		t.Fatalf("got %v, want For", n.Symbol)
	}
	if n.Child(0).Symbol != token.TupleSym {
		t.Fatalf("target list should be a tuple node")
	}
}

func TestParseTryCatch(t *testing.T) {
	stmts := parse(t, "try raise 1 catch e if e is TypeError 2 end")
	n := stmts[0]
	if n.Symbol != token.Try {
		t.Fatalf("got %v, want Try", n.Symbol)
	}
	found := false
	for _, c := range n.Children {
		if c.Symbol == token.Catch {
			found = true
		}
	}
	if !found {
		t.Fatalf("try node missing catch clause: %v", n)
	}
}

func TestParseFunctionLiteral(t *testing.T) {
	stmts := parse(t, "f = fn(x, y=1) return x + y end")
	fnNode := stmts[0].Child(1)
	if fnNode.Symbol != token.Fn {
		t.Fatalf("got %v, want Fn", fnNode.Symbol)
	}
	params := fnNode.Child(0)
	if len(params.Children) != 2 {
		t.Fatalf("got %d params, want 2", len(params.Children))
	}
	if params.Child(1).Symbol != token.Assignment {
		t.Fatalf("second param should carry a default, got %v", params.Child(1))
	}
}

func TestParseCoroutineFunctionLiteral(t *testing.T) {
	stmts := parse(t, "g = fn*(n) yield n end")
	fnNode := stmts[0].Child(1)
	if !fnNode.HasFlag(ast.FlagCoroutine) {
		t.Fatalf("expected FlagCoroutine set on fn* literal")
	}
}

func TestParseConciseFunctionLiteral(t *testing.T) {
	stmts := parse(t, "sq = |x| x * x")
	fnNode := stmts[0].Child(1)
	if fnNode.Symbol != token.Fn {
		t.Fatalf("got %v, want Fn", fnNode.Symbol)
	}
}

func TestParseFunctionDeclStatement(t *testing.T) {
	stmts := parse(t, "function add(a, b) return a + b end")
	n := stmts[0]
	if n.Symbol != token.Assignment {
		t.Fatalf("function decl should desugar to assignment, got %v", n.Symbol)
	}
	if n.Child(0).Str != "add" {
		t.Fatalf("assignment target should be named 'add', got %q", n.Child(0).Str)
	}
}

func TestParseListLiteral(t *testing.T) {
	stmts := parse(t, "[1, 2, 3]")
	n := stmts[0].Child(0)
	if n.Symbol != token.ListSym || len(n.Children) != 3 {
		t.Fatalf("got %v with %d children, want ListSym/3", n.Symbol, len(n.Children))
	}
}

func TestParseListComprehension(t *testing.T) {
	stmts := parse(t, "[x * 2 for x in a if x > 0]")
	n := stmts[0].Child(0)
	if n.Symbol != token.Yield {
		t.Fatalf("comprehension should lower to a Yield-headed node, got %v", n.Symbol)
	}
	forClause := n.Child(1)
	if forClause.Symbol != token.For {
		t.Fatalf("second child should be the for-clause, got %v", forClause.Symbol)
	}
	if len(forClause.Children) != 3 {
		t.Fatalf("for-clause should carry target/iterable/guard, got %d children", len(forClause.Children))
	}
}

func TestParseMapLiteral(t *testing.T) {
	stmts := parse(t, `{a: 1, "b": 2}`)
	n := stmts[0].Child(0)
	if n.Symbol != token.MapSym || len(n.Children) != 2 {
		t.Fatalf("got %v with %d children, want MapSym/2", n.Symbol, len(n.Children))
	}
}

func TestParseTableLiteral(t *testing.T) {
	stmts := parse(t, "table Point {x: 1, y: 2}")
	n := stmts[0].Child(0)
	if n.Symbol != token.Table {
		t.Fatalf("got %v, want Table", n.Symbol)
	}
	if n.Child(0).Str != "Point" {
		t.Fatalf("prototype expr should resolve to identifier 'Point', got %v", n.Child(0))
	}
}

func TestParseCallAndIndexAndDot(t *testing.T) {
	stmts := parse(t, "a.b(1)[2]")
	n := stmts[0].Child(0)
	if n.Symbol != token.Index {
		t.Fatalf("outermost node = %v, want Index", n.Symbol)
	}
	call := n.Child(0)
	if call.Symbol != token.Application {
		t.Fatalf("got %v, want Application", call.Symbol)
	}
	if !call.HasFlag(ast.FlagSelfArg) {
		t.Fatalf("dot-call should set FlagSelfArg")
	}
}

func TestParseSplatArgument(t *testing.T) {
	stmts := parse(t, "f(*args)")
	call := stmts[0].Child(0)
	if call.Child(1).Symbol != token.Splat {
		t.Fatalf("got %v, want Splat", call.Child(1).Symbol)
	}
}

func TestParseUseStatement(t *testing.T) {
	stmts := parse(t, "use math.stats : mean, stddev")
	n := stmts[0]
	if n.Symbol != token.Use {
		t.Fatalf("got %v, want Use", n.Symbol)
	}
	if n.Child(0).Str != "math.stats" {
		t.Fatalf("got path %q, want math.stats", n.Child(0).Str)
	}
	items := n.Child(1)
	if len(items.Children) != 2 {
		t.Fatalf("got %d use-items, want 2", len(items.Children))
	}
}

func TestParseGlobalAndAssertAndRaise(t *testing.T) {
	stmts := parse(t, "global x, y\nassert x > 0, \"must be positive\"\nraise 1")
	if stmts[0].Symbol != token.Global || len(stmts[0].Children) != 2 {
		t.Fatalf("bad global statement: %v", stmts[0])
	}
	if stmts[1].Symbol != token.Assert || len(stmts[1].Children) != 2 {
		t.Fatalf("bad assert statement: %v", stmts[1])
	}
	if stmts[2].Symbol != token.Raise {
		t.Fatalf("bad raise statement: %v", stmts[2])
	}
}

func TestParseConditionalExpression(t *testing.T) {
	stmts := parse(t, "x = 1 if cond else 2")
	ternary := stmts[0].Child(1)
	if ternary.Symbol != token.If {
		t.Fatalf("got %v, want If (ternary)", ternary.Symbol)
	}
	if len(ternary.Children) != 3 {
		t.Fatalf("ternary should carry cond/then/else, got %d children", len(ternary.Children))
	}
}

func TestParseRangeWithStep(t *testing.T) {
	stmts := parse(t, "1..10:2")
	n := stmts[0].Child(0)
	if n.Symbol != token.Range || len(n.Children) != 3 {
		t.Fatalf("got %v with %d children, want Range/3", n.Symbol, len(n.Children))
	}
}

func TestParseOpenEndedBracketRange(t *testing.T) {
	stmts := parse(t, "a[..5]")
	idx := stmts[0].Child(0)
	rng := idx.Child(1)
	if rng.Symbol != token.Range {
		t.Fatalf("index expr = %v, want Range", rng.Symbol)
	}
	if rng.Child(0).Symbol != token.Null {
		t.Fatalf("open start of range should be Null, got %v", rng.Child(0).Symbol)
	}
}

func TestParseSyntaxErrorReported(t *testing.T) {
	toks, err := lexer.New("if true then", "test", 1).Scan()
	if err != nil {
		t.Fatalf("lex error = %v", err)
	}
	_, perr := New(toks, "test").Parse()
	if perr == nil {
		t.Fatalf("expected a syntax error for unterminated if-block")
	}
	if _, ok := perr.(SyntaxError); !ok {
		t.Fatalf("error type = %T, want SyntaxError", perr)
	}
}

func TestInteractiveHistoryContinuation(t *testing.T) {
	lines := []string{"x = (1 +", "2)"}
	idx := 1 // lines[0] is lexed up front; history supplies the rest
	hist := fakeHistory{next: func() (string, bool) {
		if idx >= len(lines) {
			return "", false
		}
		line := lines[idx]
		idx++
		return line, true
	}}
	toks, err := lexer.New(lines[0], "test", 1).Scan()
	if err != nil {
		t.Fatalf("lex error = %v", err)
	}
	p := NewInteractive(toks, "test", 2, hist)
	stmt, err := p.ParseOne()
	if err != nil {
		t.Fatalf("ParseOne() error = %v", err)
	}
	if stmt.Symbol != token.Assignment {
		t.Fatalf("got %v, want Assignment", stmt.Symbol)
	}
}

type fakeHistory struct {
	next func() (string, bool)
}

func (f fakeHistory) NextLine(continuation bool) (string, bool) { return f.next() }
