package parser

import (
	"moss/lexer"
	"moss/token"
)

// History is the callback a multi-line interactive parse needs: when the
// token cursor reaches the end of input inside an open ( [ { nesting, it
// calls back into the input source to read another line and splices it
// into the token stream. An unterminated string or an open block keyword
// (if, while, fn, ...) does not trigger a continuation. This module
// contains no implementation of History outside its tests.
type History interface {
	// NextLine prompts for and returns one more line of source, or ok=false
	// if no more input is available (e.g. EOF on a non-interactive stream).
	NextLine(continuation bool) (line string, ok bool)
}

// tokenSource is a splicable token cursor. It owns the growing token slice
// produced by the lexer and, when a History is attached, will ask for and
// lex additional lines whenever the cursor runs into the Terminal token
// while depth > 0 (open bracket nesting).
type tokenSource struct {
	file    string
	line    int
	tokens  []token.Token
	pos     int
	history History
	depth   int // open ( [ { nesting, maintained by the parser as it consumes brackets
}

func newTokenSource(tokens []token.Token, file string, nextLine int, history History) *tokenSource {
	return &tokenSource{file: file, line: nextLine, tokens: tokens, history: history}
}

func (ts *tokenSource) peek() token.Token { return ts.peekAt(0) }

func (ts *tokenSource) peekAt(offset int) token.Token {
	idx := ts.pos + offset
	for idx >= len(ts.tokens)-1 && ts.atTerminal(idx) && ts.tryContinue() {
	}
	if idx >= len(ts.tokens) {
		return ts.tokens[len(ts.tokens)-1]
	}
	return ts.tokens[idx]
}

func (ts *tokenSource) atTerminal(idx int) bool {
	return idx < len(ts.tokens) && ts.tokens[idx].Symbol == token.Terminal
}

// tryContinue asks the attached History for one more line when the cursor
// sits on Terminal but the parser is inside open nesting. Returns true if
// more tokens were spliced in.
func (ts *tokenSource) tryContinue() bool {
	if ts.history == nil || ts.depth <= 0 {
		return false
	}
	line, ok := ts.history.NextLine(true)
	if !ok {
		return false
	}
	lx := lexer.New(line, ts.file, ts.line)
	toks, err := lx.Scan()
	if err != nil {
		return false
	}
	ts.line++
	// Drop the old Terminal, splice the new tokens (including their own
	// trailing Terminal) in its place.
	ts.tokens = append(ts.tokens[:len(ts.tokens)-1], toks...)
	return true
}

func (ts *tokenSource) advance() token.Token {
	tok := ts.peek()
	if tok.Symbol != token.Terminal {
		ts.pos++
	}
	switch tok.Symbol {
	case token.PLeft, token.BLeft, token.CLeft:
		ts.depth++
	case token.PRight, token.BRight, token.CRight:
		ts.depth--
	}
	return tok
}
