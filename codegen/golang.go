package codegen

import (
	"io"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/slate/compiler"
	"github.com/chazu/slate/dispatch"
	"github.com/chazu/slate/ir"
	"github.com/chazu/slate/program"
)

// DefaultRuntime is the import path generated Go code links against. The
// runtime provides Machine, Value, Traceback and the Builtins map from
// method label to built-in method.
const DefaultRuntime = "github.com/chazu/slate/runtime"

// GoOptions configure the Go backend.
type GoOptions struct {
	Package string // defaults to "main"
	Runtime string // defaults to DefaultRuntime
}

// Go writes the program as a Go source file. Every procedure and dispatcher
// becomes a function taking the runtime's *Machine; registers, frame slots
// and incoming stack arguments are the machine's R, Frame and In arrays.
type Go struct {
	w    io.Writer
	opts GoOptions
	f    *jen.File

	// labels defined in this file; everything else is looked up in Builtins.
	local map[string]bool

	body []jen.Code

	// dispatch tree under construction
	pending []*goBranch
	tree    jen.Code
}

type goBranch struct {
	tag  int
	low  jen.Code
	have bool
}

// NewGo creates a Go backend writing to w.
func NewGo(w io.Writer, opts GoOptions) *Go {
	if opts.Package == "" {
		opts.Package = "main"
	}
	if opts.Runtime == "" {
		opts.Runtime = DefaultRuntime
	}
	return &Go{w: w, opts: opts}
}

func (g *Go) rt(name string) *jen.Statement {
	return jen.Qual(g.opts.Runtime, name)
}

func (g *Go) loc(l ir.Loc) (*jen.Statement, error) {
	m := jen.Id("m")
	switch l.Kind {
	case ir.LocReg:
		return m.Dot("R").Index(jen.Lit(l.Index)), nil
	case ir.LocStack:
		return m.Dot("Frame").Index(jen.Lit(l.Index)), nil
	case ir.LocArg:
		return m.Dot("In").Index(jen.Lit(l.Index)), nil
	}
	return nil, compiler.Internalf("unallocated operand")
}

func (g *Go) arg(in *ir.Instr, i int) (*jen.Statement, error) {
	if i >= len(in.ArgLocs) {
		return nil, compiler.Internalf("%s: operand %d has no location", in, i)
	}
	return g.loc(in.ArgLocs[i])
}

// assign emits DestLoc = rhs.
func (g *Go) assign(in *ir.Instr, rhs jen.Code) error {
	dst, err := g.loc(in.DestLoc)
	if err != nil {
		return compiler.Internalf("%s: %v", in, err)
	}
	g.body = append(g.body, dst.Op("=").Add(rhs))
	return nil
}

func (g *Go) callee(label string) *jen.Statement {
	if g.local[label] {
		return jen.Id(label)
	}
	return g.rt("Builtins").Index(jen.Lit(label))
}

func (g *Go) machine() jen.Code {
	return jen.Id("m").Op("*").Add(g.rt("Machine"))
}

func (g *Go) Begin(t *program.CodeTable) error {
	g.f = jen.NewFile(g.opts.Package)
	g.f.HeaderComment("Code generated by slatec. DO NOT EDIT.")

	g.local = make(map[string]bool)
	for _, p := range t.Procs() {
		g.local[p.Label] = true
	}
	for _, d := range t.Dispatchers {
		g.local[d.Label] = true
	}

	strs := make([]jen.Code, len(t.Strings))
	for i, s := range t.Strings {
		strs[i] = jen.Lit(s)
	}
	g.f.Comment("Strings is the string table indexed by LOAD_STRING.")
	g.f.Var().Id("Strings").Op("=").Index().String().Values(strs...)

	traces := make([]jen.Code, len(t.Tracebacks))
	for i, tb := range t.Tracebacks {
		traces[i] = jen.Values(jen.Dict{
			jen.Id("Method"): jen.Lit(tb.Method),
			jen.Id("File"):   jen.Lit(tb.File),
			jen.Id("Line"):   jen.Lit(tb.Line),
			jen.Id("Column"): jen.Lit(tb.Column),
			jen.Id("Text"):   jen.Lit(tb.Text),
			jen.Id("Length"): jen.Lit(tb.Length),
		})
	}
	g.f.Comment("Tracebacks describes the call sites named by checked calls.")
	g.f.Var().Id("Tracebacks").Op("=").Index().Add(g.rt("Traceback")).Values(traces...)
	return nil
}

func (g *Go) End() error {
	return g.f.Render(g.w)
}

func (g *Go) BeginProc(p *ir.Proc) error {
	g.body = nil
	if p.FrameSize > 0 {
		g.body = append(g.body, jen.Id("m").Dot("Enter").Call(jen.Lit(p.FrameSize)))
	}
	return nil
}

func (g *Go) EndProc(p *ir.Proc) error {
	g.f.Comment(p.Label + " is " + p.Name + ".")
	g.f.Func().Id(p.Label).Params(g.machine()).Block(g.body...)
	return nil
}

func (g *Go) Alloc(in *ir.Instr) error {
	return g.assign(in, jen.Id("m").Dot("Alloc").Call(jen.Lit(int(in.Tag)), jen.Lit(in.N)))
}

// Call jumps to the callee with arguments already in place. A checked call
// returns early when the result is an error value, recording the call site.
func (g *Go) Call(in *ir.Instr) error {
	g.body = append(g.body, jen.Id("m").Dot("Call").Call(g.callee(in.Label), jen.Lit(in.StackArgs)))
	if in.Unchecked {
		return nil
	}
	r0 := jen.Id("m").Dot("R").Index(jen.Lit(0))
	g.body = append(g.body, jen.If(r0.Dot("IsError").Call()).Block(
		jen.Id("m").Dot("Unwind").Call(jen.Lit(in.Trace)),
		jen.Return(),
	))
	return nil
}

func (g *Go) LoadValue(in *ir.Instr) error {
	return g.assign(in, g.rt("Value").Call(jen.Lit(uint64(in.Value))))
}

func (g *Go) LoadString(in *ir.Instr) error {
	return g.assign(in, jen.Id("m").Dot("String").Call(jen.Id("Strings").Index(jen.Lit(in.N))))
}

func (g *Go) GetSlot(in *ir.Instr) error {
	obj, err := g.arg(in, 0)
	if err != nil {
		return err
	}
	return g.assign(in, jen.Id("m").Dot("Slot").Call(obj, jen.Lit(in.N)))
}

func (g *Go) SetSlot(in *ir.Instr) error {
	return g.store("SetSlot", in)
}

func (g *Go) SetElem(in *ir.Instr) error {
	return g.store("SetElem", in)
}

func (g *Go) store(method string, in *ir.Instr) error {
	obj, err := g.arg(in, 0)
	if err != nil {
		return err
	}
	val, err := g.arg(in, 1)
	if err != nil {
		return err
	}
	g.body = append(g.body, jen.Id("m").Dot(method).Call(obj, jen.Lit(in.N), val))
	return nil
}

func (g *Go) Return(in *ir.Instr) error {
	g.body = append(g.body, jen.Id("m").Dot("Leave").Call(), jen.Return())
	return nil
}

func (g *Go) Concat(in *ir.Instr) error {
	return g.assign(in, jen.Id("m").Dot("Concat").Call(jen.Lit(in.StackArgs)))
}

func (g *Go) Array(in *ir.Instr) error {
	return g.assign(in, jen.Id("m").Dot("Array").Call(jen.Lit(in.N)))
}

func (g *Go) Spill(in *ir.Instr) error {
	src, err := g.arg(in, 0)
	if err != nil {
		return err
	}
	g.body = append(g.body, jen.Id("m").Dot("Frame").Index(jen.Lit(in.N)).Op("=").Add(src))
	return nil
}

func (g *Go) Reload(in *ir.Instr) error {
	src, err := g.arg(in, 0)
	if err != nil {
		return err
	}
	return g.assign(in, src)
}

func (g *Go) Clear(in *ir.Instr) error {
	g.body = append(g.body, jen.Id("m").Dot("Clear").Call(jen.Lit(in.N)))
	return nil
}

func (g *Go) Move(in *ir.Instr) error {
	return g.Reload(in)
}

func (g *Go) Push(in *ir.Instr) error {
	src, err := g.arg(in, 0)
	if err != nil {
		return err
	}
	g.body = append(g.body, jen.Id("m").Dot("Push").Call(src))
	return nil
}

func (g *Go) BeginDispatcher(d *dispatch.Dispatcher) error {
	g.pending = nil
	g.tree = nil
	return nil
}

// DispatchNode folds the preorder node stream back into nested if
// statements: a branch waits on the stack until both subtrees are built.
func (g *Go) DispatchNode(n *dispatch.Node, depth int) error {
	var code jen.Code
	switch n.Kind {
	case dispatch.Branch:
		g.pending = append(g.pending, &goBranch{tag: int(n.Tag)})
		return nil
	case dispatch.Fail:
		code = jen.Id("m").Dot("NotUnderstood").Call()
	case dispatch.Call:
		code = g.callee(n.Label).Call(jen.Id("m"))
	case dispatch.Guard:
		code = jen.If(jen.Id("t").Op("==").Lit(int(n.Tag))).Block(
			g.callee(n.Label).Call(jen.Id("m")),
		).Else().Block(
			jen.Id("m").Dot("NotUnderstood").Call(),
		)
	default:
		return compiler.Internalf("unknown dispatch node %s", n.Kind)
	}

	for len(g.pending) > 0 {
		top := g.pending[len(g.pending)-1]
		if !top.have {
			top.low, top.have = code, true
			return nil
		}
		g.pending = g.pending[:len(g.pending)-1]
		code = jen.If(jen.Id("t").Op("<=").Lit(top.tag)).Block(top.low).Else().Block(code)
	}
	g.tree = code
	return nil
}

func (g *Go) EndDispatcher(d *dispatch.Dispatcher) error {
	if g.tree == nil || len(g.pending) > 0 {
		return compiler.Internalf("%s: incomplete dispatch tree", d.Label)
	}
	var body []jen.Code
	if !d.Empty() {
		body = append(body, jen.Id("t").Op(":=").Id("m").Dot("R").Index(jen.Lit(0)).Dot("DispatchTag").Call())
	}
	body = append(body, g.tree)

	g.f.Commentf("%s dispatches %s over %d implementers.", d.Label, d.Selector, len(d.Tags))
	g.f.Func().Id(d.Label).Params(g.machine()).Block(body...)
	return nil
}
