package program

import (
	"testing"

	"github.com/joomcode/errorx"

	"github.com/chazu/slate/compiler"
	"github.com/chazu/slate/opt"
)

// FuzzCompile checks that whole-program compilation never hits an internal
// error: every input either compiles on the smallest machine or is rejected
// with a user-facing diagnostic.
func FuzzCompile(f *testing.F) {
	seeds := []string{
		`main [ 1 ]`,
		counter,
		`main [ a = 1. b = 2. c = 3. d = 4. e = { a. b. c. d }. print: e printString. a + b + c + d ]`,
		`main [ x = [ v := 1. get [ v ] ]. y = [ get [ 2 ] ]. x get + y get ]`,
		`f: a g: b h: c i: d [ a , b , c , d ]. main [ self f: 'a' g: 'b' h: 'c' i: 'd' ]`,
		`main [ 1 < 2 ifTrue: [ v [ 1 ] ] ifFalse: [ v [ 2 ] ] ]`,
		`main [ 99999999999999 ]`,
		`main [ nope ]`,
		`start [ 1 ]`,
		`main [`,
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, data string) {
		opts := Options{Machine: opt.Machine{Registers: opt.MinRegisters, ArgRegisters: 1}}
		table, err := Compile([]Source{{File: "fuzz.slate", Text: data}}, opts)
		if err != nil {
			if errorx.IsOfType(err, compiler.InternalError) {
				t.Fatalf("internal error on %q: %v", data, err)
			}
			return
		}
		if _, err := NewObject(table); err != nil {
			t.Fatalf("encoding %q: %v", data, err)
		}
	})
}
