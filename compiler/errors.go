package compiler

import "fmt"

// SemanticError is the compile-time member of the Syntax error family
//: carries
// line/col/file/message like parser.SyntaxError and lexer.SyntaxError.
type SemanticError struct {
	Line    int
	Col     int
	File    string
	Message string
}

func (e SemanticError) Error() string {
	return fmt.Sprintf("Line %d, col %d (%s): Syntax error: %s", e.Line, e.Col, e.File, e.Message)
}
