package lexer

import (
	"testing"

	"moss/token"
)

func symbols(toks []token.Token) []token.Symbol {
	out := make([]token.Symbol, len(toks))
	for i, t := range toks {
		out[i] = t.Symbol
	}
	return out
}

func TestScanArithmetic(t *testing.T) {
	toks, err := New("1 + 2 * 3", "test", 1).Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	want := []token.Symbol{token.LiteralInt, token.Plus, token.LiteralInt, token.Ast, token.LiteralInt, token.Terminal}
	got := symbols(toks)
	if len(got) != len(want) {
		t.Fatalf("Scan() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestScanCompoundKeywords(t *testing.T) {
	cases := map[string]token.Symbol{
		"a is not b":  token.Isnot,
		"a is in b":   token.Isin,
		"a not in b":  token.Notin,
	}
	for src, want := range cases {
		toks, err := New(src, "test", 1).Scan()
		if err != nil {
			t.Fatalf("%q: Scan() error = %v", src, err)
		}
		found := false
		for _, tok := range toks {
			if tok.Symbol == want {
				found = true
			}
		}
		if !found {
			t.Errorf("%q: expected fused symbol %v in %v", src, want, symbols(toks))
		}
	}
}

func TestScanStringEscapes(t *testing.T) {
	toks, err := New(`"a\nb\x{41}"`, "test", 1).Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if toks[0].Literal.(string) != "a\nbA" {
		t.Errorf("string literal = %q, want %q", toks[0].Literal, "a\nbA")
	}
}

func TestScanRawString(t *testing.T) {
	toks, err := New(`'a\nb'`, "test", 1).Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if toks[0].Literal.(string) != `a\nb` {
		t.Errorf("raw string literal = %q, want %q", toks[0].Literal, `a\nb`)
	}
}

func TestScanBangWithoutEqualsIsError(t *testing.T) {
	_, err := New("!a", "test", 1).Scan()
	if err == nil {
		t.Fatalf("expected syntax error for bare '!'")
	}
}

func TestScanBracketRangeRewrite(t *testing.T) {
	toks, err := New("[..n]", "test", 1).Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	want := []token.Symbol{token.BLeft, token.Null, token.Range, token.LiteralIdent, token.BRight, token.Terminal}
	got := symbols(toks)
	if len(got) != len(want) {
		t.Fatalf("Scan() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestScanLineComments(t *testing.T) {
	toks, err := New("1 # comment\n+ 2", "test", 1).Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(toks) != 4 {
		t.Fatalf("Scan() = %v, want 4 tokens", toks)
	}
	if toks[2].Line != 2 {
		t.Errorf("token after comment line = %d, want 2", toks[2].Line)
	}
}
