package codegen

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/joomcode/errorx"

	"github.com/chazu/slate/compiler"
	"github.com/chazu/slate/dispatch"
	"github.com/chazu/slate/ir"
	"github.com/chazu/slate/program"
	"github.com/chazu/slate/value"
)

const counter = `
step = 2.
main [
	c = [ n := 10. bump [ n: n + step ] ].
	c bump.
	print: 'n is ' , c n printString
]
`

func compile(t *testing.T, src string) *program.CodeTable {
	t.Helper()
	table, err := program.Compile([]program.Source{{File: "test.slate", Text: src}}, program.Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return table
}

// recorder logs every backend call.
type recorder struct {
	calls []string
}

func (r *recorder) log(format string, args ...any) error {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	return nil
}

func (r *recorder) Begin(*program.CodeTable) error { return r.log("begin") }
func (r *recorder) End() error                     { return r.log("end") }
func (r *recorder) BeginProc(p *ir.Proc) error     { return r.log("proc %s", p.Label) }
func (r *recorder) EndProc(p *ir.Proc) error       { return r.log("endproc %s", p.Label) }
func (r *recorder) Alloc(in *ir.Instr) error       { return r.log("ALLOC") }
func (r *recorder) Call(in *ir.Instr) error        { return r.log("CALL") }
func (r *recorder) LoadValue(in *ir.Instr) error   { return r.log("LOAD_VALUE") }
func (r *recorder) LoadString(in *ir.Instr) error  { return r.log("LOAD_STRING") }
func (r *recorder) GetSlot(in *ir.Instr) error     { return r.log("GET_SLOT") }
func (r *recorder) SetSlot(in *ir.Instr) error     { return r.log("SET_SLOT") }
func (r *recorder) Return(in *ir.Instr) error      { return r.log("RETURN") }
func (r *recorder) Concat(in *ir.Instr) error      { return r.log("CONCAT") }
func (r *recorder) Array(in *ir.Instr) error       { return r.log("ARRAY") }
func (r *recorder) SetElem(in *ir.Instr) error     { return r.log("SET_ELEM") }
func (r *recorder) Spill(in *ir.Instr) error       { return r.log("SPILL") }
func (r *recorder) Reload(in *ir.Instr) error      { return r.log("RELOAD") }
func (r *recorder) Clear(in *ir.Instr) error       { return r.log("CLEAR") }
func (r *recorder) Move(in *ir.Instr) error        { return r.log("MOVE") }
func (r *recorder) Push(in *ir.Instr) error        { return r.log("PUSH") }
func (r *recorder) BeginDispatcher(d *dispatch.Dispatcher) error {
	return r.log("dispatcher %s", d.Label)
}
func (r *recorder) DispatchNode(n *dispatch.Node, depth int) error {
	return r.log("%d:%s %d", depth, n.Kind, n.Tag)
}
func (r *recorder) EndDispatcher(d *dispatch.Dispatcher) error {
	return r.log("enddispatcher %s", d.Label)
}

func TestEmitVisitsEveryInstruction(t *testing.T) {
	table := compile(t, counter)
	r := &recorder{}
	if err := Emit(table, r); err != nil {
		t.Fatal(err)
	}

	var want []string
	want = append(want, "begin")
	for _, p := range table.Procs() {
		want = append(want, "proc "+p.Label)
		for _, in := range p.Instrs {
			want = append(want, in.Op.String())
		}
		want = append(want, "endproc "+p.Label)
	}
	if got := r.calls[:len(want)]; strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("procedure calls:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
	if r.calls[1] != "proc slate_entry" {
		t.Errorf("entry emitted first, got %s", r.calls[1])
	}
	if r.calls[len(r.calls)-1] != "end" {
		t.Errorf("last call = %s", r.calls[len(r.calls)-1])
	}

	dispatchers := 0
	for _, c := range r.calls {
		if strings.HasPrefix(c, "dispatcher ") {
			dispatchers++
		}
	}
	if dispatchers != len(table.Dispatchers) {
		t.Errorf("emitted %d dispatchers, table has %d", dispatchers, len(table.Dispatchers))
	}
}

func TestEmitDispatchNodesInPreorder(t *testing.T) {
	d, err := dispatch.Generate(value.ParseSelector("size"), []value.Tag{40, 10, 30, 20})
	if err != nil {
		t.Fatal(err)
	}
	table := &program.CodeTable{
		Entry:       &ir.Proc{Label: "slate_entry"},
		Dispatchers: []*dispatch.Dispatcher{d},
	}
	r := &recorder{}
	if err := Emit(table, r); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"begin",
		"proc slate_entry",
		"endproc slate_entry",
		"dispatcher message_0_size",
		"0:branch 20",
		"1:branch 10",
		"2:guard 10",
		"2:guard 20",
		"1:branch 30",
		"2:guard 30",
		"2:guard 40",
		"enddispatcher message_0_size",
		"end",
	}
	if strings.Join(r.calls, "\n") != strings.Join(want, "\n") {
		t.Errorf("got:\n%s\nwant:\n%s", strings.Join(r.calls, "\n"), strings.Join(want, "\n"))
	}
}

func TestEmitRejectsUnloweredInstructions(t *testing.T) {
	tests := []struct {
		name  string
		table *program.CodeTable
	}{
		{"no entry", &program.CodeTable{}},
		{"alias", &program.CodeTable{Entry: &ir.Proc{
			Label:  "slate_entry",
			Instrs: []ir.Instr{{Op: ir.OpAlias, Dest: 1, Args: []int{0}}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Emit(tt.table, &recorder{})
			if !errorx.IsOfType(err, compiler.InternalError) {
				t.Errorf("got %v, want internal error", err)
			}
		})
	}
}

func TestListing(t *testing.T) {
	table := compile(t, counter)
	var buf bytes.Buffer
	if err := Emit(table, NewListing(&buf)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"; machine: 8 registers, 4 argument registers",
		"section strings\n    #0 \"n is \"\n",
		"section tracebacks",
		"\nslate_entry: ; slate_entry args=0",
		"\nmessage_0_bump: ; bump implementers=[259]",
		"    tag = dispatch_tag r0\n",
		"if tag == 259 jump method_259_0_bump else not understood",
		"block1 tag=259 slots=1 heap",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing lacks %q:\n%s", want, out)
		}
	}

	// Each traceback is followed by its source line and an underline.
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "    @") {
			if !strings.HasPrefix(lines[i+1], "        | ") || !strings.Contains(lines[i+2], "^") {
				t.Errorf("traceback %q lacks source and caret", line)
			}
		}
	}
}

func TestGoBackend(t *testing.T) {
	table := compile(t, counter)
	var buf bytes.Buffer
	if err := Emit(table, NewGo(&buf, GoOptions{Package: "counter"})); err != nil {
		t.Fatal(err)
	}
	src := buf.String()

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "counter.go", src, 0)
	if err != nil {
		t.Fatalf("generated code does not parse: %v\n%s", err, src)
	}
	if file.Name.Name != "counter" {
		t.Errorf("package = %s", file.Name.Name)
	}

	funcs := make(map[string]bool)
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok {
			funcs[fn.Name.Name] = true
		}
	}
	for _, p := range table.Procs() {
		if !funcs[p.Label] {
			t.Errorf("no function for %s", p.Label)
		}
	}
	for _, d := range table.Dispatchers {
		if !funcs[d.Label] {
			t.Errorf("no function for %s", d.Label)
		}
	}

	imported := false
	for _, imp := range file.Imports {
		if imp.Path.Value == `"`+DefaultRuntime+`"` {
			imported = true
		}
	}
	if !imported {
		t.Errorf("runtime not imported:\n%s", src)
	}

	for _, want := range []string{
		"Code generated by slatec. DO NOT EDIT.",
		"t := m.R[0].DispatchTag()",
		"method_259_0_bump(m)",
		".Unwind(",
		`"n is "`,
	} {
		if !strings.Contains(src, want) {
			t.Errorf("generated code lacks %q:\n%s", want, src)
		}
	}
}

func TestGoBackendNestsBranches(t *testing.T) {
	d, err := dispatch.Generate(value.ParseSelector("size"), []value.Tag{10, 20, 30})
	if err != nil {
		t.Fatal(err)
	}
	g := NewGo(&bytes.Buffer{}, GoOptions{})
	if err := g.Begin(&program.CodeTable{Entry: &ir.Proc{Label: "slate_entry"}}); err != nil {
		t.Fatal(err)
	}
	if err := emitDispatcher(d, g); err != nil {
		t.Fatal(err)
	}
	if len(g.pending) != 0 || g.tree == nil {
		t.Fatalf("pending %d, tree %v", len(g.pending), g.tree)
	}

	// An unfinished tree is reported.
	if err := g.BeginDispatcher(d); err != nil {
		t.Fatal(err)
	}
	if err := g.DispatchNode(d.Tree, 0); err != nil {
		t.Fatal(err)
	}
	if err := g.EndDispatcher(d); !errorx.IsOfType(err, compiler.InternalError) {
		t.Errorf("got %v, want internal error", err)
	}
}
