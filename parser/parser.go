// Package parser implements a recursive-descent, Pratt-precedence parser
// producing an ast.Node tree. Cursor idiom
// (peek/previous/advance/isFinished) follows this codebase's existing
// parser, generalized from a four-level precedence table to the full
// fifteen-level table the grammar needs.
package parser

import (
	"fmt"

	"moss/ast"
	"moss/token"
)

// precedence levels, loosest to tightest.
const (
	precNone = iota
	precConditional
	precOr
	precAnd
	precNot
	precEqMember
	precComparison
	precRange
	precUnion
	precIntersect
	precShift
	precAdditive
	precMultiplicative
	precUnary
	precPower
	precApplication
)

// Parser turns a token stream into an AST. Position tracking and the
// peek/previous/advance triad follow this codebase's established parser
// idiom.
type Parser struct {
	ts   *tokenSource
	file string
}

// New creates a Parser over a fixed token slice (non-interactive use: file
// execution, `use` module loading).
func New(tokens []token.Token, file string) *Parser {
	return &Parser{ts: newTokenSource(tokens, file, 0, nil), file: file}
}

// NewInteractive creates a Parser that can ask history for more lines when
// it runs out of tokens inside open nesting.
func NewInteractive(tokens []token.Token, file string, nextLine int, history History) *Parser {
	return &Parser{ts: newTokenSource(tokens, file, nextLine, history), file: file}
}

func (p *Parser) peek() token.Token        { return p.ts.peek() }
func (p *Parser) peekAt(n int) token.Token { return p.ts.peekAt(n) }
func (p *Parser) advance() token.Token     { return p.ts.advance() }
func (p *Parser) atEnd() bool              { return p.peek().Symbol == token.Terminal }

func (p *Parser) check(sym token.Symbol) bool { return p.peek().Symbol == sym }

func (p *Parser) match(syms ...token.Symbol) bool {
	for _, s := range syms {
		if p.check(s) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) expect(sym token.Symbol, msg string) token.Token {
	if p.check(sym) {
		return p.advance()
	}
	tok := p.peek()
	panic(SyntaxError{Line: tok.Line, Col: tok.Col, File: p.file, Message: msg})
}

// Parse parses the whole token stream into a sequence of top-level
// statements. A single SyntaxError aborts parsing and is returned as err;
// any other panic raised while parsing is re-panicked.
func (p *Parser) Parse() (stmts []*ast.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			if se, ok := r.(SyntaxError); ok {
				err = se
				return
			}
			panic(r)
		}
	}()
	for !p.atEnd() {
		stmts = append(stmts, p.statement())
	}
	return stmts, nil
}

// ParseOne parses exactly one statement, for interactive input that is
// evaluated line-by-line without buffering the whole session.
func (p *Parser) ParseOne() (stmt *ast.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			if se, ok := r.(SyntaxError); ok {
				err = se
				return
			}
			panic(r)
		}
	}()
	if p.atEnd() {
		return nil, nil
	}
	return p.statement(), nil
}

// ---- statements ----

func blockEnders(end token.Symbol) map[token.Symbol]bool {
	return map[token.Symbol]bool{end: true, token.Terminal: true}
}

func (p *Parser) block(enders map[token.Symbol]bool) *ast.Node {
	tok := p.peek()
	n := ast.New(tok.Line, tok.Col, token.KindSynthetic, token.Block)
	for !enders[p.peek().Symbol] {
		n.Append(p.statement())
	}
	return n
}

func (p *Parser) statement() *ast.Node {
	tok := p.peek()
	switch tok.Symbol {
	case token.If:
		return p.ifStatement()
	case token.While:
		return p.whileStatement()
	case token.For:
		return p.forStatement()
	case token.Return:
		p.advance()
		n := ast.New(tok.Line, tok.Col, token.KindKeyword, token.Return)
		if !p.atStatementEnd() {
			n.Append(p.expression())
		}
		return n
	case token.Yield:
		p.advance()
		n := ast.New(tok.Line, tok.Col, token.KindKeyword, token.Yield)
		if !p.atStatementEnd() {
			n.Append(p.expression())
		}
		return n
	case token.Break:
		p.advance()
		return ast.New(tok.Line, tok.Col, token.KindKeyword, token.Break)
	case token.Continue:
		p.advance()
		return ast.New(tok.Line, tok.Col, token.KindKeyword, token.Continue)
	case token.Goto:
		p.advance()
		name := p.expect(token.LiteralIdent, "expected label name after 'goto'")
		n := ast.New(tok.Line, tok.Col, token.KindKeyword, token.Goto)
		n.Str = name.Lexeme
		return n
	case token.Label:
		p.advance()
		name := p.expect(token.LiteralIdent, "expected label name")
		n := ast.New(tok.Line, tok.Col, token.KindKeyword, token.Label)
		n.Str = name.Lexeme
		return n
	case token.Raise:
		p.advance()
		n := ast.New(tok.Line, tok.Col, token.KindKeyword, token.Raise)
		n.Append(p.expression())
		return n
	case token.Try:
		return p.tryStatement()
	case token.Global:
		p.advance()
		n := ast.New(tok.Line, tok.Col, token.KindKeyword, token.Global)
		n.Append(p.identifier())
		for p.match(token.Comma) {
			n.Append(p.identifier())
		}
		return n
	case token.Use:
		return p.useStatement()
	case token.Assert:
		p.advance()
		n := ast.New(tok.Line, tok.Col, token.KindKeyword, token.Assert)
		n.Append(p.expression())
		if p.match(token.Comma) {
			n.Append(p.expression())
		}
		return n
	case token.Function:
		return p.functionDeclStatement()
	case token.Semicolon:
		p.advance()
		return ast.New(tok.Line, tok.Col, token.KindSynthetic, token.Statement)
	default:
		return p.expressionOrAssignStatement()
	}
}

func (p *Parser) atStatementEnd() bool {
	switch p.peek().Symbol {
	case token.Semicolon, token.Terminal, token.End, token.Else, token.Elif, token.Catch:
		return true
	}
	return false
}

func (p *Parser) identifier() *ast.Node {
	tok := p.expect(token.LiteralIdent, "expected identifier")
	return ast.FromToken(tok)
}

func (p *Parser) ifStatement() *ast.Node {
	tok := p.advance() // 'if'
	n := ast.New(tok.Line, tok.Col, token.KindKeyword, token.If)
	n.Append(p.expression())
	p.match(token.Then)
	branchEnders := map[token.Symbol]bool{token.Elif: true, token.Else: true, token.End: true, token.Terminal: true}
	n.Append(p.block(branchEnders))
	cur := n
	for p.check(token.Elif) {
		etok := p.advance()
		elifNode := ast.New(etok.Line, etok.Col, token.KindKeyword, token.Elif)
		elifNode.Append(p.expression())
		p.match(token.Then)
		elifNode.Append(p.block(branchEnders))
		cur.Append(elifNode)
		cur = elifNode
	}
	if p.match(token.Else) {
		cur.Append(p.block(blockEnders(token.End)))
	}
	p.expect(token.End, "expected 'end' to close 'if'")
	return n
}

func (p *Parser) whileStatement() *ast.Node {
	tok := p.advance()
	n := ast.New(tok.Line, tok.Col, token.KindKeyword, token.While)
	n.Append(p.expression())
	p.match(token.Do)
	n.Append(p.block(blockEnders(token.End)))
	p.expect(token.End, "expected 'end' to close 'while'")
	return n
}

func (p *Parser) forStatement() *ast.Node {
	tok := p.advance()
	n := ast.New(tok.Line, tok.Col, token.KindKeyword, token.For)
	targets := ast.New(tok.Line, tok.Col, token.KindSynthetic, token.TupleSym)
	targets.Append(p.identifier())
	for p.match(token.Comma) {
		targets.Append(p.identifier())
	}
	n.Append(targets)
	p.expect(token.In, "expected 'in' in for-statement")
	n.Append(p.expression())
	p.match(token.Do)
	n.Append(p.block(blockEnders(token.End)))
	p.expect(token.End, "expected 'end' to close 'for'")
	return n
}

func (p *Parser) tryStatement() *ast.Node {
	tok := p.advance()
	n := ast.New(tok.Line, tok.Col, token.KindKeyword, token.Try)
	n.Append(p.block(map[token.Symbol]bool{token.Catch: true, token.End: true, token.Terminal: true}))
	for p.check(token.Catch) {
		ctok := p.advance()
		catchNode := ast.New(ctok.Line, ctok.Col, token.KindKeyword, token.Catch)
		catchNode.Append(p.identifier())
		if p.match(token.If) {
			catchNode.Append(p.expression())
		}
		catchNode.Append(p.block(map[token.Symbol]bool{token.Catch: true, token.End: true, token.Terminal: true}))
		n.Append(catchNode)
	}
	p.expect(token.End, "expected 'end' to close 'try'")
	return n
}

func (p *Parser) useStatement() *ast.Node {
	tok := p.advance()
	n := ast.New(tok.Line, tok.Col, token.KindKeyword, token.Use)
	path := p.identifier()
	for p.match(token.Dot) {
		path.Str += "." + p.identifier().Str
	}
	n.Append(path)
	if p.match(token.Colon) {
		items := ast.New(tok.Line, tok.Col, token.KindSynthetic, token.ListSym)
		items.Append(p.identifier())
		for p.match(token.Comma) {
			items.Append(p.identifier())
		}
		n.Append(items)
	} else if p.match(token.CLeft) {
		items := ast.New(tok.Line, tok.Col, token.KindSynthetic, token.MapSym)
		for !p.check(token.CRight) {
			items.Append(p.identifier())
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.CRight, "expected '}' to close use-items list")
		n.Append(items)
	}
	return n
}

// functionDeclStatement parses `function name(params) ... end`, desugared
// to `name = fn name(params) ... end`.
func (p *Parser) functionDeclStatement() *ast.Node {
	tok := p.advance()
	name := p.identifier()
	fnNode := p.functionLiteralAfterName(tok, name.Str)
	assign := ast.New(tok.Line, tok.Col, token.KindAssignment, token.Assignment, name, fnNode)
	return assign
}

func (p *Parser) expressionOrAssignStatement() *ast.Node {
	first := p.expression()
	targets := []*ast.Node{first}
	for p.check(token.Comma) && p.isAssignTargetList(targets) {
		p.advance()
		targets = append(targets, p.expression())
	}

	tok := p.peek()
	if isAssignOp(tok.Symbol) {
		p.advance()
		value := p.expression()
		if len(targets) > 1 && p.check(token.Comma) {
			values := ast.New(value.Line, value.Col, token.KindSynthetic, token.TupleSym, value)
			for p.match(token.Comma) {
				values.Append(p.expression())
			}
			value = values
		}
		if len(targets) == 1 {
			return ast.New(tok.Line, tok.Col, token.KindAssignment, tok.Symbol, targets[0], value)
		}
		n := ast.New(tok.Line, tok.Col, token.KindAssignment, token.Assignment)
		tuple := ast.New(tok.Line, tok.Col, token.KindSynthetic, token.TupleSym, targets...)
		n.Append(tuple, value)
		return n
	}
	if len(targets) > 1 {
		tok := p.peek()
		panic(SyntaxError{Line: tok.Line, Col: tok.Col, File: p.file, Message: "expected '=' after target list"})
	}
	return &ast.Node{Line: first.Line, Col: first.Col, Kind: token.KindSynthetic, Symbol: token.Statement, Children: []*ast.Node{first}}
}

func (p *Parser) isAssignTargetList(targets []*ast.Node) bool {
	for _, t := range targets {
		if !isAssignable(t) {
			return false
		}
	}
	return true
}

func isAssignable(n *ast.Node) bool {
	switch n.Symbol {
	case token.LiteralIdent, token.Dot, token.Index:
		return true
	}
	return false
}

func isAssignOp(s token.Symbol) bool {
	switch s {
	case token.Assignment, token.APlus, token.AMinus, token.AAst, token.ADiv,
		token.AIdiv, token.AMod, token.AAmp, token.AVline, token.ASvert:
		return true
	}
	return false
}

// ---- expressions ----

func (p *Parser) expression() *ast.Node { return p.conditional() }

// conditional handles trailing `if cond else alt` ternary form.
func (p *Parser) conditional() *ast.Node {
	left := p.or()
	if p.check(token.If) {
		tok := p.advance()
		cond := p.or()
		p.expect(token.Else, "expected 'else' in conditional expression")
		alt := p.conditional()
		return ast.New(tok.Line, tok.Col, token.KindKeyword, token.If, cond, left, alt)
	}
	return left
}

func (p *Parser) or() *ast.Node {
	left := p.and()
	for p.check(token.Or) {
		tok := p.advance()
		right := p.and()
		left = ast.New(tok.Line, tok.Col, token.KindOperator, token.Or, left, right)
	}
	return left
}

func (p *Parser) and() *ast.Node {
	left := p.notExpr()
	for p.check(token.And) {
		tok := p.advance()
		right := p.notExpr()
		left = ast.New(tok.Line, tok.Col, token.KindOperator, token.And, left, right)
	}
	return left
}

func (p *Parser) notExpr() *ast.Node {
	if p.check(token.Not) {
		tok := p.advance()
		operand := p.notExpr()
		return ast.New(tok.Line, tok.Col, token.KindOperator, token.Not, operand)
	}
	return p.eqMember()
}

var eqMemberOps = []token.Symbol{token.Eq, token.Ne, token.Is, token.Isnot, token.In, token.Notin, token.Isin, token.Of}

func (p *Parser) eqMember() *ast.Node {
	left := p.comparison()
	for contains(eqMemberOps, p.peek().Symbol) {
		tok := p.advance()
		right := p.comparison()
		left = ast.New(tok.Line, tok.Col, token.KindOperator, tok.Symbol, left, right)
	}
	return left
}

var comparisonOps = []token.Symbol{token.Lt, token.Gt, token.Le, token.Ge}

func (p *Parser) comparison() *ast.Node {
	left := p.rangeExpr()
	for contains(comparisonOps, p.peek().Symbol) {
		tok := p.advance()
		right := p.rangeExpr()
		left = ast.New(tok.Line, tok.Col, token.KindOperator, tok.Symbol, left, right)
	}
	return left
}

func (p *Parser) rangeExpr() *ast.Node {
	left := p.unionExpr()
	if p.check(token.Range) {
		tok := p.advance()
		var right *ast.Node
		if !p.startsExpression() {
			right = ast.New(tok.Line, tok.Col, token.KindKeyword, token.Null)
		} else {
			right = p.unionExpr()
		}
		n := ast.New(tok.Line, tok.Col, token.KindOperator, token.Range, left, right)
		if p.match(token.Colon) {
			n.Append(p.unionExpr())
		}
		return n
	}
	return left
}

func (p *Parser) startsExpression() bool {
	switch p.peek().Symbol {
	case token.Comma, token.BRight, token.PRight, token.CRight, token.Terminal,
		token.Semicolon, token.Do, token.Then, token.End, token.Colon:
		return false
	}
	return true
}

func (p *Parser) unionExpr() *ast.Node {
	left := p.intersectExpr()
	for p.check(token.Vline) || p.check(token.Svert) {
		tok := p.advance()
		right := p.intersectExpr()
		left = ast.New(tok.Line, tok.Col, token.KindOperator, tok.Symbol, left, right)
	}
	return left
}

func (p *Parser) intersectExpr() *ast.Node {
	left := p.shiftExpr()
	for p.check(token.Amp) {
		tok := p.advance()
		right := p.shiftExpr()
		left = ast.New(tok.Line, tok.Col, token.KindOperator, token.Amp, left, right)
	}
	return left
}

func (p *Parser) shiftExpr() *ast.Node {
	left := p.additive()
	for p.check(token.Lshift) || p.check(token.Rshift) {
		tok := p.advance()
		right := p.additive()
		left = ast.New(tok.Line, tok.Col, token.KindOperator, tok.Symbol, left, right)
	}
	return left
}

func (p *Parser) additive() *ast.Node {
	left := p.multiplicative()
	for p.check(token.Plus) || p.check(token.Minus) {
		tok := p.advance()
		right := p.multiplicative()
		left = ast.New(tok.Line, tok.Col, token.KindOperator, tok.Symbol, left, right)
	}
	return left
}

var multiplicativeOps = []token.Symbol{token.Ast, token.Div, token.Mod, token.Idiv}

func (p *Parser) multiplicative() *ast.Node {
	left := p.unarySign()
	for contains(multiplicativeOps, p.peek().Symbol) {
		tok := p.advance()
		right := p.unarySign()
		left = ast.New(tok.Line, tok.Col, token.KindOperator, tok.Symbol, left, right)
	}
	return left
}

func (p *Parser) unarySign() *ast.Node {
	if p.check(token.Minus) || p.check(token.Tilde) {
		tok := p.advance()
		operand := p.unarySign()
		sym := token.Neg
		if tok.Symbol == token.Tilde {
			sym = token.Tilde
		}
		return ast.New(tok.Line, tok.Col, token.KindOperator, sym, operand)
	}
	return p.power()
}

func (p *Parser) power() *ast.Node {
	left := p.application()
	if p.check(token.Pow) {
		tok := p.advance()
		right := p.unarySign()
		return ast.New(tok.Line, tok.Col, token.KindOperator, token.Pow, left, right)
	}
	return left
}

// application parses postfix call/index/dot/trailing-map chains.
func (p *Parser) application() *ast.Node {
	left := p.atom()
	for {
		switch p.peek().Symbol {
		case token.PLeft:
			left = p.callArgs(left, false)
		case token.BLeft:
			tok := p.advance()
			idx := ast.New(tok.Line, tok.Col, token.KindSynthetic, token.Index, left)
			idx.Append(p.expression())
			p.expect(token.BRight, "expected ']' to close index expression")
			left = idx
		case token.Dot:
			tok := p.advance()
			name := p.expect(token.LiteralIdent, "expected identifier after '.'")
			dot := ast.New(tok.Line, tok.Col, token.KindOperator, token.Dot, left, ast.FromToken(name))
			if p.check(token.PLeft) {
				dot.Info |= ast.FlagSelfArg
				left = p.callArgs(dot, true)
			} else {
				left = dot
			}
		case token.CLeft:
			if !p.trailingMapAllowed(left) {
				return left
			}
			left = p.callArgs(left, false)
		default:
			return left
		}
	}
}

// trailingMapAllowed restricts `f{...}` trailing-map-literal call sugar to
// call-like positions (identifiers/applications), avoiding swallowing a
// following block's `{` in ambiguous contexts.
func (p *Parser) trailingMapAllowed(left *ast.Node) bool {
	switch left.Symbol {
	case token.LiteralIdent, token.Dot, token.Index, token.Application:
		return true
	}
	return false
}

// callArgs parses `(args)` or a trailing `{map}` literal argument and
// returns an Application node. selfArg marks the dot-call form
// (`obj.method(args)`), which the compiler lowers to DUP_DOT_SWAP so both
// the receiver and bound method land on the stack.
func (p *Parser) callArgs(callee *ast.Node, selfArg bool) *ast.Node {
	tok := p.peek()
	app := ast.New(tok.Line, tok.Col, token.KindSynthetic, token.Application, callee)
	if selfArg {
		app.Info |= ast.FlagSelfArg
	}
	if p.check(token.PLeft) {
		p.advance()
		for !p.check(token.PRight) {
			if p.check(token.Ast) {
				star := p.advance()
				splat := ast.New(star.Line, star.Col, token.KindSynthetic, token.Splat, p.expression())
				app.Append(splat)
			} else {
				app.Append(p.expression())
			}
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.PRight, "expected ')' to close argument list")
	}
	if p.check(token.CLeft) {
		app.Append(p.mapLiteral())
	}
	return app
}

func contains(list []token.Symbol, s token.Symbol) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (p *Parser) atom() *ast.Node {
	tok := p.peek()
	switch tok.Kind {
	case token.KindInt, token.KindFloat, token.KindImag, token.KindString, token.KindBool:
		p.advance()
		return ast.FromToken(tok)
	case token.KindIdentifier:
		p.advance()
		return ast.FromToken(tok)
	}
	switch tok.Symbol {
	case token.Null:
		p.advance()
		return ast.FromToken(tok)
	case token.PLeft:
		return p.groupingOrTuple()
	case token.BLeft:
		return p.listLiteral()
	case token.CLeft:
		return p.mapLiteral()
	case token.Table:
		return p.tableLiteral()
	case token.Fn:
		return p.functionLiteral()
	case token.Vline:
		return p.conciseFunctionLiteral()
	}
	panic(SyntaxError{Line: tok.Line, Col: tok.Col, File: p.file, Message: fmt.Sprintf("expected expression, found %q", tok.Lexeme)})
}

func (p *Parser) groupingOrTuple() *ast.Node {
	tok := p.advance() // '('
	if p.check(token.PRight) {
		p.advance()
		return ast.New(tok.Line, tok.Col, token.KindSynthetic, token.TupleSym)
	}
	first := p.expression()
	if p.check(token.Comma) {
		n := ast.New(tok.Line, tok.Col, token.KindSynthetic, token.TupleSym, first)
		for p.match(token.Comma) {
			if p.check(token.PRight) {
				break
			}
			n.Append(p.expression())
		}
		p.expect(token.PRight, "expected ')' to close tuple")
		return n
	}
	p.expect(token.PRight, "expected ')' to close grouping")
	return first
}

// listLiteral parses `[items]`, including the trailing `for ... in ...`
// for-comprehension form, which the compiler lowers to
// a coroutine body.
func (p *Parser) listLiteral() *ast.Node {
	tok := p.advance() // '['
	n := ast.New(tok.Line, tok.Col, token.KindSynthetic, token.ListSym)
	if p.check(token.BRight) {
		p.advance()
		return n
	}
	first := p.expression()
	if p.check(token.For) {
		return p.forComprehensionTail(tok, first)
	}
	n.Append(first)
	for p.match(token.Comma) {
		if p.check(token.BRight) {
			break
		}
		n.Append(p.expression())
	}
	p.expect(token.BRight, "expected ']' to close list literal")
	return n
}

// forComprehensionTail parses one or more trailing `for x in a [if cond]`
// clauses after a list-comprehension head expression, producing a Yield
// node (head, then one For clause per `for`) that the compiler lowers
// into a generator.
func (p *Parser) forComprehensionTail(start token.Token, head *ast.Node) *ast.Node {
	n := ast.New(start.Line, start.Col, token.KindSynthetic, token.Yield, head)
	for p.check(token.For) {
		ftok := p.advance()
		clause := ast.New(ftok.Line, ftok.Col, token.KindKeyword, token.For)
		clause.Append(p.identifier())
		p.expect(token.In, "expected 'in' in comprehension clause")
		clause.Append(p.unionExpr())
		if p.match(token.If) {
			clause.Append(p.expression())
		}
		n.Append(clause)
	}
	p.expect(token.BRight, "expected ']' to close comprehension")
	return n
}

func (p *Parser) mapOrSetEntry() *ast.Node {
	tok := p.peek()
	if p.check(token.LiteralIdent) && (p.peekAt(1).Symbol == token.Assignment) {
		name := p.advance()
		p.advance() // '='
		value := p.expression()
		entry := ast.New(name.Line, name.Col, token.KindSynthetic, token.MapSym, ast.FromToken(name), value)
		return entry
	}
	if p.check(token.LiteralIdent) && p.peekAt(1).Symbol != token.Colon {
		name := p.advance()
		null := ast.New(name.Line, name.Col, token.KindKeyword, token.Null)
		return ast.New(name.Line, name.Col, token.KindSynthetic, token.MapSym, ast.FromToken(name), null)
	}
	key := p.expression()
	p.expect(token.Colon, "expected ':' in map entry")
	value := p.expression()
	return ast.New(tok.Line, tok.Col, token.KindSynthetic, token.MapSym, key, value)
}

func (p *Parser) mapLiteral() *ast.Node {
	tok := p.advance() // '{'
	n := ast.New(tok.Line, tok.Col, token.KindSynthetic, token.MapSym)
	for !p.check(token.CRight) {
		n.Append(p.mapOrSetEntry())
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.CRight, "expected '}' to close map/table literal")
	return n
}

func (p *Parser) tableLiteral() *ast.Node {
	tok := p.advance() // 'table'
	n := ast.New(tok.Line, tok.Col, token.KindKeyword, token.Table)
	if p.check(token.CLeft) {
		n.Append(ast.New(tok.Line, tok.Col, token.KindKeyword, token.Null))
	} else {
		proto := p.atom()
		for p.check(token.Dot) {
			dtok := p.advance()
			name := p.expect(token.LiteralIdent, "expected identifier after '.'")
			proto = ast.New(dtok.Line, dtok.Col, token.KindOperator, token.Dot, proto, ast.FromToken(name))
		}
		n.Append(proto)
	}
	n.Append(p.mapLiteral())
	return n
}

// functionLiteral parses `fn [*] [name] (params) block end`.
func (p *Parser) functionLiteral() *ast.Node {
	tok := p.advance() // 'fn'
	coroutine := p.match(token.Ast)
	var name string
	if p.check(token.LiteralIdent) {
		name = p.advance().Lexeme
	}
	n := p.functionLiteralAfterName(tok, name)
	if coroutine {
		n.Info |= ast.FlagCoroutine
	}
	return n
}

func (p *Parser) functionLiteralAfterName(tok token.Token, name string) *ast.Node {
	n := ast.New(tok.Line, tok.Col, token.KindKeyword, token.Fn)
	n.Str = name
	params := ast.New(tok.Line, tok.Col, token.KindSynthetic, token.ListSym)
	p.expect(token.PLeft, "expected '(' to start parameter list")
	for !p.check(token.PRight) {
		param := p.parameter()
		params.Append(param)
		if p.match(token.Semicolon) {
			// `;` separates a leading explicit self parameter in method
			// syntax: only the just-parsed parameter gets
			// the self flag, and the remaining params use ',' as usual.
			param.Info |= ast.FlagSelfArg
			continue
		}
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.PRight, "expected ')' to close parameter list")
	n.Append(params)
	n.Append(p.block(blockEnders(token.End)))
	p.expect(token.End, "expected 'end' to close function body")
	return n
}

func (p *Parser) parameter() *ast.Node {
	if p.check(token.Ast) {
		star := p.advance()
		name := p.identifier()
		name.Info |= ast.FlagVariadic
		_ = star
		return name
	}
	name := p.identifier()
	if p.match(token.Assignment) {
		def := p.expression()
		return ast.New(name.Line, name.Col, token.KindSynthetic, token.Assignment, name, def)
	}
	return name
}

// conciseFunctionLiteral parses the `|params| expr` shorthand form.
func (p *Parser) conciseFunctionLiteral() *ast.Node {
	tok := p.advance() // '|'
	params := ast.New(tok.Line, tok.Col, token.KindSynthetic, token.ListSym)
	for !p.check(token.Vline) {
		params.Append(p.parameter())
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.Vline, "expected '|' to close concise-function parameter list")
	n := ast.New(tok.Line, tok.Col, token.KindKeyword, token.Fn)
	n.Append(params)
	body := ast.New(tok.Line, tok.Col, token.KindSynthetic, token.Block)
	ret := ast.New(tok.Line, tok.Col, token.KindKeyword, token.Return, p.expression())
	body.Append(ret)
	n.Append(body)
	return n
}
