package compiler

import (
	"testing"

	"github.com/joomcode/errorx"
)

// seeds cover every token kind and declaration form, plus broken input.
var seeds = []string{
	// Tokens
	`[ ] { } ( ) . , := = :`,
	`42`, `0`, `-123`, `3.14`, `0.5`, `1e10`, `1.5e-3`, `99999999999999`,
	`'hello'`, `''`, `'it''s'`,
	`foo`, `foo123`, `self`, `true`, `false`, `nil`,
	`at:`, `put:`, `ifTrue:ifFalse:`,
	`+`, `-`, `*`, `/`, `<`, `<=`, `=`, `~=`,
	`"a comment"`, `foo "comment" bar`,
	// Declarations
	`main [ 1 ]`,
	`x := 1. main [ x: x + 1 ]`,
	`k = 2. main [ k ]`,
	`counter = [ n := 0. bump [ n: n + 1 ] ]. main [ counter bump. counter n ]`,
	`main [ a = 1. b = [ get [ a ] ]. b get ]`,
	`at: i put: v [ v ]. main [ self at: 1 put: 2 ]`,
	`+ other [ other ]. main [ self + 1 ]`,
	`main [ { 1. 'two'. 3 } ]`,
	`main [ 'a' , 'b' , 'c' ]`,
	`main [ 1 < 2 ifTrue: [ v [ 1 ] ] ifFalse: [ v [ 2 ] ] ]`,
	`main [ print: 3 printString ]`,
	// Broken input
	`main [`, `main ]`, `[ [ [`, `x := .`, `main [ 'unterminated ]`,
	`main [ nope ]`, `main [ k: 1 ]`, `k = 1. main [ k: 2 ]`,
	`'こんにちは'`, `café`, "\t\n\r", `+-*/\~<>=@%|&?!,`,
}

func FuzzLexer(f *testing.F) {
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, data string) {
		l := NewLexer("fuzz.slate", data)
		for i := 0; i < len(data)+100; i++ {
			tok := l.NextToken()
			if tok.Type == TokenEOF || tok.Type == TokenError {
				return
			}
		}
		t.Fatalf("lexer did not reach EOF on %q", data)
	})
}

// FuzzResolve checks that parsing, resolution and analysis either succeed
// or fail with a diagnostic of the front-end error types.
func FuzzResolve(f *testing.F) {
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, data string) {
		tree := NewTree()
		err := Parse(tree, "fuzz.slate", data)
		if err == nil {
			err = Resolve(tree, testBuiltins{})
		}
		if err != nil {
			if !errorx.IsOfType(err, SyntaxError) && !errorx.IsOfType(err, ResolutionError) && !errorx.IsOfType(err, ProgramShapeError) {
				t.Fatalf("unexpected error type for %q: %v", data, err)
			}
			_ = Describe(err, tree)
			return
		}
		_ = Analyze(tree)
	})
}
