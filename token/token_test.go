package token

import "testing"

func TestNewLiteral(t *testing.T) {
	tok := NewLiteral(KindInt, LiteralInt, "42", int32(42), 3, 10)
	if tok.Lexeme != "42" || tok.Literal.(int32) != 42 {
		t.Errorf("NewLiteral() = %+v, want lexeme 42 literal 42", tok)
	}
	if tok.Line != 3 || tok.Col != 10 {
		t.Errorf("NewLiteral() position = %d:%d, want 3:10", tok.Line, tok.Col)
	}
}

func TestKeywordsFusionSynonyms(t *testing.T) {
	entry, ok := Keywords["public"]
	if !ok || entry.Symbol != Global {
		t.Errorf("public should be a synonym for global, got %+v ok=%v", entry, ok)
	}
	if _, ok := Keywords["goto"]; !ok {
		t.Errorf("goto should be a recognised keyword")
	}
}

func TestTokenIs(t *testing.T) {
	tok := New(KindOperator, Plus, "+", 1, 1)
	if !tok.Is(Plus) {
		t.Errorf("Is(Plus) = false, want true")
	}
	if tok.Is(Minus) {
		t.Errorf("Is(Minus) = true, want false")
	}
}
