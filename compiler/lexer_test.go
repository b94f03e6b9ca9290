package compiler

import (
	"testing"
)

func TestLexerBasicTokens(t *testing.T) {
	input := `( ) [ ] { } ^ . :=`
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenCaret, "^"},
		{TokenPeriod, "."},
		{TokenAssign, ":="},
		{TokenEOF, ""},
	}

	l := NewLexer("test.slate", input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.lit {
			t.Errorf("token[%d] literal = %q, want %q", i, tok.Literal, exp.lit)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		want  string
	}{
		{"42", TokenInteger, "42"},
		{"0", TokenInteger, "0"},
		{"-123", TokenInteger, "-123"},
		{"16rFF", TokenInteger, "16rFF"},
		{"2r1010", TokenInteger, "2r1010"},
		{"3.14", TokenDecimal, "3.14"},
		{"1.5e10", TokenDecimal, "1.5e10"},
		{"2e-3", TokenDecimal, "2e-3"},
	}

	for _, tc := range tests {
		l := NewLexer("test.slate", tc.input)
		tok := l.NextToken()
		if tok.Type != tc.typ {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.typ)
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%q): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerMinusAfterOperand(t *testing.T) {
	tokens := Tokenize("test.slate", "x -1")
	want := []TokenType{TokenIdentifier, TokenBinarySelector, TokenInteger, TokenEOF}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i, typ := range want {
		if tokens[i].Type != typ {
			t.Errorf("token[%d] = %v, want %v", i, tokens[i].Type, typ)
		}
	}
	if tokens[2].Literal != "1" {
		t.Errorf("literal = %q, want 1", tokens[2].Literal)
	}
}

func TestLexerKeywordsAndAssign(t *testing.T) {
	tests := []struct {
		input string
		want  []TokenType
	}{
		{"at: 1 put: 2", []TokenType{TokenKeyword, TokenInteger, TokenKeyword, TokenInteger, TokenEOF}},
		{"count := 0", []TokenType{TokenIdentifier, TokenAssign, TokenInteger, TokenEOF}},
		{"a:=b", []TokenType{TokenIdentifier, TokenAssign, TokenIdentifier, TokenEOF}},
		{"limit = 10", []TokenType{TokenIdentifier, TokenBinarySelector, TokenInteger, TokenEOF}},
		{"a , b", []TokenType{TokenIdentifier, TokenBinarySelector, TokenIdentifier, TokenEOF}},
		{"self nil true false system", []TokenType{TokenSelf, TokenNil, TokenTrue, TokenFalse, TokenSystem, TokenEOF}},
	}

	for _, tc := range tests {
		tokens := Tokenize("test.slate", tc.input)
		if len(tokens) != len(tc.want) {
			t.Errorf("Tokenize(%q) = %v, want %d tokens", tc.input, tokens, len(tc.want))
			continue
		}
		for i, typ := range tc.want {
			if tokens[i].Type != typ {
				t.Errorf("Tokenize(%q)[%d] = %v, want %v", tc.input, i, tokens[i].Type, typ)
			}
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tok := NewLexer("test.slate", `'it''s'`).NextToken()
	if tok.Type != TokenString || tok.Literal != "it's" {
		t.Errorf("got %v, want STRING(\"it's\")", tok)
	}

	tok = NewLexer("test.slate", `'open`).NextToken()
	if tok.Type != TokenError {
		t.Errorf("unterminated string: got %v, want ERROR", tok)
	}
}

func TestLexerComments(t *testing.T) {
	tokens := Tokenize("test.slate", "\"a comment\" 42 # trailing\n7")
	if len(tokens) != 3 {
		t.Fatalf("got %v, want two integers and EOF", tokens)
	}
	if tokens[0].Literal != "42" || tokens[1].Literal != "7" {
		t.Errorf("got %v", tokens)
	}
}

func TestLexerPositions(t *testing.T) {
	tokens := Tokenize("pos.slate", "foo\n  bar")
	if len(tokens) != 3 {
		t.Fatalf("got %v", tokens)
	}
	if p := tokens[0].Pos; p.Line != 1 || p.Column != 1 || p.File != "pos.slate" {
		t.Errorf("foo at %+v, want pos.slate:1:1", p)
	}
	if p := tokens[1].Pos; p.Line != 2 || p.Column != 3 || p.Offset != 6 {
		t.Errorf("bar at %+v, want 2:3 offset 6", p)
	}
}

func TestLexerUnexpectedCharacter(t *testing.T) {
	tok := NewLexer("test.slate", "$").NextToken()
	if tok.Type != TokenError {
		t.Errorf("got %v, want ERROR", tok)
	}
}
