package parser

import "fmt"

// SyntaxError is the parse-time member of the Syntax error family: it
// carries line/col/file/message and is not catchable from user code.
type SyntaxError struct {
	Line    int
	Col     int
	File    string
	Message string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("Line %d, col %d (%s): Syntax error: %s", e.Line, e.Col, e.File, e.Message)
}
