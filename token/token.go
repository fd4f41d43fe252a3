// Package token defines the lexical vocabulary of the moss language: the
// classification of every token the lexer can produce, the keyword table,
// and the compound operator/keyword fusion rules the lexer applies before
// handing tokens to the parser.
package token

import "fmt"

// Kind classifies a Token: Operator, Separator, Bracket, Bool, Int,
// Float, Imag, String, Identifier, Keyword, Assignment, plus the
// synthetic marker kind used for end-of-stream and compiler-internal
// tokens.
type Kind int

const (
	KindNone Kind = iota
	KindOperator
	KindSeparator
	KindBracket
	KindBool
	KindInt
	KindFloat
	KindImag
	KindString
	KindIdentifier
	KindKeyword
	KindAssignment
	KindSynthetic
)

func (k Kind) String() string {
	switch k {
	case KindOperator:
		return "Operator"
	case KindSeparator:
		return "Separator"
	case KindBracket:
		return "Bracket"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindImag:
		return "Imag"
	case KindString:
		return "String"
	case KindIdentifier:
		return "Identifier"
	case KindKeyword:
		return "Keyword"
	case KindAssignment:
		return "Assignment"
	case KindSynthetic:
		return "Synthetic"
	default:
		return "None"
	}
}

// Symbol enumerates every concrete operator, punctuation mark, keyword, and
// synthetic marker value a Token can carry. Mirrors the original's Symbol
// enum (src/compiler.rs) one-to-one so the parser's precedence tables read
// the same way in both languages.
type Symbol int

const (
	None Symbol = iota

	// arithmetic / comparison operators
	Plus
	Minus
	Ast // '*'
	Div
	Idiv // '//'
	Mod
	Pow // '^'
	Lt
	Gt
	Le
	Ge
	Eq
	Ne
	In
	Is
	Isin  // "is in"
	Notin // "not in"
	Isnot // "is not"
	Range // ".."
	Colon // ':' (range step separator, map entries, catch guard)
	And
	Or
	Amp    // '&' intersection
	Vline  // '|' union
	Svert  // '$' union variant
	Neg    // unary '-'
	Not    // unary 'not'
	Tilde  // '~' bitwise complement
	Lshift // '<<'
	Rshift // '>>'
	Dot    // '.'
	Of     // type test
	Ellipsis

	// assignment / compound assignment
	Assignment
	APlus
	AMinus
	AAst
	ADiv
	AIdiv
	AMod
	AAmp
	AVline
	ASvert

	// brackets / separators
	PLeft
	PRight
	BLeft
	BRight
	CLeft
	CRight
	Comma
	Semicolon
	Newline

	// keywords
	Assert
	Begin
	Break
	Catch
	Continue
	Elif
	Else
	End
	For
	Global
	Goto
	Label
	If
	While
	Do
	Raise
	Return
	Fn
	Function
	Table
	Then
	Try
	Use
	Yield
	True
	False
	Null

	// synthetic / compiler markers
	Terminal
	SynNewline
	Empty
	TupleSym
	Application
	Index
	ListSym
	MapSym
	Block
	Statement
	Splat

	// literal kinds carried alongside Kind Int/Float/Imag/String/Identifier
	LiteralInt
	LiteralLong
	LiteralFloat
	LiteralImag
	LiteralString
	LiteralIdent
)

// keywordEntry pairs a keyword spelling with the Kind/Symbol pair it
// lexes to. "public" is kept as a synonym for "global".
type keywordEntry struct {
	Kind   Kind
	Symbol Symbol
}

// Keywords maps reserved words to their token classification: a plain map
// literal consulted by the lexer's identifier handler.
var Keywords = map[string]keywordEntry{
	"assert":   {KindKeyword, Assert},
	"and":      {KindOperator, And},
	"begin":    {KindKeyword, Begin},
	"break":    {KindKeyword, Break},
	"catch":    {KindKeyword, Catch},
	"continue": {KindKeyword, Continue},
	"do":       {KindKeyword, Do},
	"elif":     {KindKeyword, Elif},
	"else":     {KindKeyword, Else},
	"end":      {KindKeyword, End},
	"false":    {KindBool, False},
	"for":      {KindKeyword, For},
	"fn":       {KindKeyword, Fn},
	"function": {KindKeyword, Function},
	"global":   {KindKeyword, Global},
	"public":   {KindKeyword, Global},
	"goto":     {KindKeyword, Goto},
	"label":    {KindKeyword, Label},
	"if":       {KindKeyword, If},
	"in":       {KindOperator, In},
	"is":       {KindOperator, Is},
	"not":      {KindOperator, Not},
	"null":     {KindKeyword, Null},
	"of":       {KindOperator, Of},
	"or":       {KindOperator, Or},
	"raise":    {KindKeyword, Raise},
	"return":   {KindKeyword, Return},
	"table":    {KindKeyword, Table},
	"then":     {KindKeyword, Then},
	"true":     {KindBool, True},
	"try":      {KindKeyword, Try},
	"use":      {KindKeyword, Use},
	"while":    {KindKeyword, While},
	"yield":    {KindKeyword, Yield},
}

// Token is a single lexical unit produced by the lexer. Literal carries the
// interpreted payload for Int/Float/Imag/String tokens (an int32, float64,
// float64, or string respectively); for a "long" integer literal (one that
// does not fit in an int32) Literal carries the original digit string, left
// for the compiler to promote to the arbitrary-precision tower.
type Token struct {
	Kind    Kind
	Symbol  Symbol
	Lexeme  string
	Literal any
	Line    int
	Col     int
}

// New constructs a Token carrying no literal payload; the caller supplies
// the lexeme.
func New(kind Kind, symbol Symbol, lexeme string, line, col int) Token {
	return Token{Kind: kind, Symbol: symbol, Lexeme: lexeme, Line: line, Col: col}
}

// NewLiteral constructs a Token carrying an interpreted literal value.
func NewLiteral(kind Kind, symbol Symbol, lexeme string, literal any, line, col int) Token {
	return Token{Kind: kind, Symbol: symbol, Lexeme: lexeme, Literal: literal, Line: line, Col: col}
}

func (t Token) String() string {
	return fmt.Sprintf("Token{%s %q %d:%d}", t.Kind, t.Lexeme, t.Line, t.Col)
}

// Is reports whether the token has the given symbol, regardless of kind.
func (t Token) Is(s Symbol) bool { return t.Symbol == s }
