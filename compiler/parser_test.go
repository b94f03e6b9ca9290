package compiler

import (
	"strings"
	"testing"

	"github.com/joomcode/errorx"

	"github.com/chazu/slate/value"
)

func parseSource(t *testing.T, src string) *Tree {
	t.Helper()
	tree := NewTree()
	if err := Parse(tree, "test.slate", src); err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return tree
}

// mainBody returns the statements of the top-level main method.
func mainBody(t *testing.T, tree *Tree) []Expr {
	t.Helper()
	m, ok := tree.FindMethod(tree.Root, MainSelector)
	if !ok {
		t.Fatal("no main method")
	}
	seq, ok := m.Body.(*Sequence)
	if !ok {
		t.Fatalf("main body is %T, want *Sequence", m.Body)
	}
	return seq.Exprs
}

func TestParserEntryProcedure(t *testing.T) {
	tree := parseSource(t, "main [ 1 ]")

	entry := tree.Method(tree.Entry)
	if !entry.Synthetic || entry.Block != NoBlock {
		t.Errorf("entry = %+v, want synthetic with no block", entry)
	}
	if tree.Block(tree.Root).Parent != tree.Entry {
		t.Errorf("root parent = %d, want entry %d", tree.Block(tree.Root).Parent, tree.Entry)
	}
	send := entry.Body.(*Sequence).Exprs[0].(*Send)
	if send.Selector != MainSelector {
		t.Errorf("entry sends %v, want main", send.Selector)
	}
	if lit, ok := send.Receiver.(*BlockLit); !ok || lit.Block != tree.Root {
		t.Errorf("entry receiver = %#v, want root block literal", send.Receiver)
	}
}

func TestParserNumbers(t *testing.T) {
	tests := []struct {
		input string
		sig   int64
		exp   int
		dec   bool
	}{
		{"42", 42, 0, false},
		{"-7", -7, 0, false},
		{"16rFF", 255, 0, false},
		{"1.5", 15, -1, true},
		{"2e3", 2, 3, true},
		{"-3.14e-2", -314, -4, true},
	}

	for _, tc := range tests {
		tree := parseSource(t, "main [ "+tc.input+" ]")
		n, ok := mainBody(t, tree)[0].(*Number)
		if !ok {
			t.Errorf("%s: not a number", tc.input)
			continue
		}
		if n.Significand != tc.sig || n.Exponent != tc.exp || n.Decimal != tc.dec {
			t.Errorf("%s: got (%d, %d, %v), want (%d, %d, %v)", tc.input, n.Significand, n.Exponent, n.Decimal, tc.sig, tc.exp, tc.dec)
		}
	}
}

func TestParserIntegerOverflow(t *testing.T) {
	tree := NewTree()
	err := Parse(tree, "test.slate", "main [ 99999999999999999999 ]")
	if !errorx.IsOfType(err, ResolutionError) {
		t.Fatalf("got %v, want resolution error", err)
	}
}

func TestParserMessagePrecedence(t *testing.T) {
	tree := parseSource(t, "main [ a at: 1 + 2 put: b size ]")
	send, ok := mainBody(t, tree)[0].(*Send)
	if !ok {
		t.Fatal("expected a send")
	}
	if send.Selector.Name != "at:put:" || send.Selector.Arity != 2 {
		t.Fatalf("selector = %v/%d, want at:put:/2", send.Selector, send.Selector.Arity)
	}
	if recv, ok := send.Receiver.(*Send); !ok || recv.Receiver != nil || recv.Selector.Name != "a" {
		t.Errorf("receiver = %#v, want implicit a", send.Receiver)
	}
	if arg, ok := send.Args[0].(*Send); !ok || arg.Selector.Name != "+" {
		t.Errorf("first argument = %#v, want + send", send.Args[0])
	}
	if arg, ok := send.Args[1].(*Send); !ok || arg.Selector.Name != "size" {
		t.Errorf("second argument = %#v, want size send", send.Args[1])
	}
}

func TestParserBinaryLeftAssociative(t *testing.T) {
	tree := parseSource(t, "main [ 3 + 4 * 2 ]")
	mul := mainBody(t, tree)[0].(*Send)
	if mul.Selector.Name != "*" {
		t.Fatalf("outer selector = %v, want *", mul.Selector)
	}
	if add, ok := mul.Receiver.(*Send); !ok || add.Selector.Name != "+" {
		t.Errorf("receiver = %#v, want + send", mul.Receiver)
	}
}

func TestParserImplicitKeywordSend(t *testing.T) {
	tree := parseSource(t, "main [ print: 'hi' ]")
	send := mainBody(t, tree)[0].(*Send)
	if send.Receiver != nil {
		t.Errorf("receiver = %#v, want implicit", send.Receiver)
	}
	if send.Selector.Name != "print:" || send.Selector.Arity != 1 {
		t.Errorf("selector = %v", send.Selector)
	}
}

func TestParserConcatFolds(t *testing.T) {
	tree := parseSource(t, "main [ 'a' , 'b' , 'c' ]")
	c, ok := mainBody(t, tree)[0].(*Concat)
	if !ok {
		t.Fatalf("got %T, want *Concat", mainBody(t, tree)[0])
	}
	if len(c.Parts) != 3 {
		t.Errorf("parts = %d, want 3", len(c.Parts))
	}
}

func TestParserArrayLiteral(t *testing.T) {
	tree := parseSource(t, "main [ {1. 2. 3} ]")
	arr, ok := mainBody(t, tree)[0].(*ArrayLit)
	if !ok || len(arr.Elements) != 3 {
		t.Fatalf("got %#v, want 3-element array", mainBody(t, tree)[0])
	}
}

func TestParserSlotsAndLets(t *testing.T) {
	tree := parseSource(t, "count := 0. limit = 10. main [ x = 3. ^x + limit ]")
	root := tree.Block(tree.Root)
	if len(root.Slots) != 2 {
		t.Fatalf("slots = %d, want 2", len(root.Slots))
	}
	if !root.Slots[0].Mutable || root.Slots[0].Name != "count" {
		t.Errorf("slot 0 = %+v, want mutable count", root.Slots[0])
	}
	if root.Slots[1].Mutable || root.Slots[1].Name != "limit" {
		t.Errorf("slot 1 = %+v, want immutable limit", root.Slots[1])
	}

	body := mainBody(t, tree)
	if len(body) != 2 {
		t.Fatalf("statements = %d, want 2", len(body))
	}
	if let, ok := body[0].(*Let); !ok || let.Name != "x" {
		t.Errorf("statement 0 = %#v, want let x", body[0])
	}
}

func TestParserSignatures(t *testing.T) {
	tree := parseSource(t, "at: i put: v [ v ]. + other [ other ]. main [ 0 ]")
	m, ok := tree.FindMethod(tree.Root, value.ParseSelector("at:put:"))
	if !ok {
		t.Fatal("at:put: not declared")
	}
	if len(m.Args) != 2 || m.Args[0] != "i" || m.Args[1] != "v" {
		t.Errorf("args = %v", m.Args)
	}
	if _, ok := tree.FindMethod(tree.Root, value.ParseSelector("+")); !ok {
		t.Error("+ not declared")
	}
}

func TestParserNestedBlock(t *testing.T) {
	tree := parseSource(t, "main [ [ value [ 1 ] ] value ]")
	if len(tree.Blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(tree.Blocks))
	}
	main, _ := tree.FindMethod(tree.Root, MainSelector)
	inner := tree.Block(1)
	if inner.Parent != main.ID {
		t.Errorf("inner parent = %d, want main %d", inner.Parent, main.ID)
	}
	if len(inner.Methods) != 1 {
		t.Errorf("inner methods = %d, want 1", len(inner.Methods))
	}
	send := mainBody(t, tree)[0].(*Send)
	if lit, ok := send.Receiver.(*BlockLit); !ok || lit.Block != 1 {
		t.Errorf("receiver = %#v, want block literal 1", send.Receiver)
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		input string
		line  int
		col   int
	}{
		{"main [ ) ]", 1, 8},
		{"main [ ^1. 2 ]", 1, 12},
		{"x := 1 main [ x ]", 1, 13},
		{"main [ 'open ]", 1, 8},
	}

	for _, tc := range tests {
		tree := NewTree()
		err := Parse(tree, "test.slate", tc.input)
		if err == nil {
			t.Errorf("Parse(%q): expected error", tc.input)
			continue
		}
		if !errorx.IsOfType(err, SyntaxError) {
			t.Errorf("Parse(%q): %v is not a syntax error", tc.input, err)
		}
		pos, ok := ErrorPosition(err)
		if !ok || pos.Line != tc.line || pos.Column != tc.col {
			t.Errorf("Parse(%q): position %+v, want %d:%d", tc.input, pos, tc.line, tc.col)
		}
	}
}

func TestDescribeShowsCaret(t *testing.T) {
	tree := NewTree()
	err := Parse(tree, "test.slate", "main [ ) ]")
	got := Describe(err, tree)
	want := "test.slate:1:8: unexpected \")\"\n    main [ ) ]\n" + strings.Repeat(" ", 11) + "^"
	if got != want {
		t.Errorf("Describe =\n%s\nwant\n%s", got, want)
	}
}
