package ir

import (
	"github.com/chazu/slate/compiler"
	"github.com/chazu/slate/value"
)

// ---------------------------------------------------------------------------
// IR Builder: lowers resolved method bodies to instructions
// ---------------------------------------------------------------------------

// Env supplies the whole-program tables the builder writes into.
type Env interface {
	// Infallible reports whether calls to the built-in (tag, sel) can skip
	// the error check.
	Infallible(tag value.Tag, sel value.Selector) bool

	// Traceback returns the traceback index for a call site in m.
	Traceback(m *compiler.Method, span compiler.Span) int

	// InternString returns the string table index of s.
	InternString(s string) int
}

// builder holds the state for lowering one method.
type builder struct {
	tree   *compiler.Tree
	method *compiler.Method
	env    Env
	instrs []Instr
	next   int // next free temporary
}

// Generate lowers method m of tree. Block tags and constant ids must have been
// assigned. Numeric literals outside their small encoding are reported as
// resolution errors.
func Generate(tree *compiler.Tree, m *compiler.Method, env Env) (*Proc, error) {
	b := &builder{
		tree:   tree,
		method: m,
		env:    env,
		next:   1 + m.NumArgs() + len(m.Locals),
	}

	result, err := b.expr(m.Body)
	if err != nil {
		return nil, err
	}
	b.emit(Instr{Op: OpReturn, Dest: NoLocal, Args: []int{result}})

	return &Proc{
		Label:     Label(tree, m),
		Name:      tree.Name(m),
		NumArgs:   m.NumArgs(),
		NumLocals: b.next,
		Instrs:    b.instrs,
	}, nil
}

// Label returns the procedure label of a method.
func Label(tree *compiler.Tree, m *compiler.Method) string {
	if m.Block == compiler.NoBlock {
		return m.Selector.Name
	}
	return m.Selector.MethodLabel(tree.Block(m.Block).DispatchTag())
}

func (b *builder) emit(in Instr) {
	b.instrs = append(b.instrs, in)
}

func (b *builder) temp() int {
	t := b.next
	b.next++
	return t
}

// load emits a LOAD_VALUE into a fresh temporary.
func (b *builder) load(v value.Value) int {
	dest := b.temp()
	b.emit(Instr{Op: OpLoadValue, Dest: dest, Value: v})
	return dest
}

// expr lowers e and returns the local holding its value.
func (b *builder) expr(e compiler.Expr) (int, error) {
	switch n := e.(type) {
	case *compiler.Self:
		return 0, nil

	case *compiler.LocalRef:
		return n.Index, nil

	case *compiler.Literal:
		return b.load(n.Value), nil

	case *compiler.ConstRef:
		return b.load(b.tree.Block(n.Block).ConstantValue()), nil

	case *compiler.Number:
		v, err := value.EncodeNumber(n.Significand, n.Exponent, n.Decimal)
		if err != nil {
			return 0, compiler.ErrorAt(compiler.ResolutionError, n.SpanVal.Start, "numeric literal out of representable range")
		}
		return b.load(v), nil

	case *compiler.String:
		dest := b.temp()
		b.emit(Instr{Op: OpLoadString, Dest: dest, N: b.env.InternString(n.Value), Str: n.Value})
		return dest, nil

	case *compiler.Sequence:
		if len(n.Exprs) == 0 {
			return b.load(value.Nil), nil
		}
		var last int
		for _, x := range n.Exprs {
			r, err := b.expr(x)
			if err != nil {
				return 0, err
			}
			last = r
		}
		return last, nil

	case *compiler.Let:
		v, err := b.expr(n.Value)
		if err != nil {
			return 0, err
		}
		b.emit(Instr{Op: OpAlias, Dest: n.Local, Args: []int{v}})
		return n.Local, nil

	case *compiler.BlockLit:
		return b.construct(n.Block)

	case *compiler.SlotRead:
		obj, err := b.expr(n.Object)
		if err != nil {
			return 0, err
		}
		dest := b.temp()
		b.emit(Instr{Op: OpGetSlot, Dest: dest, Args: []int{obj}, N: n.Slot})
		return dest, nil

	case *compiler.SlotWrite:
		obj, err := b.expr(n.Object)
		if err != nil {
			return 0, err
		}
		v, err := b.expr(n.Value)
		if err != nil {
			return 0, err
		}
		b.emit(Instr{Op: OpSetSlot, Dest: NoLocal, Args: []int{obj, v}, N: n.Slot})
		return v, nil

	case *compiler.ArrayLit:
		elems, err := b.exprs(n.Elements)
		if err != nil {
			return 0, err
		}
		dest := b.temp()
		b.emit(Instr{Op: OpArray, Dest: dest, N: len(elems)})
		for i, el := range elems {
			b.emit(Instr{Op: OpSetElem, Dest: NoLocal, Args: []int{dest, el}, N: i})
		}
		return dest, nil

	case *compiler.Concat:
		parts, err := b.exprs(n.Parts)
		if err != nil {
			return 0, err
		}
		dest := b.temp()
		b.emit(Instr{Op: OpConcat, Dest: dest, Args: parts, N: len(parts)})
		return dest, nil

	case *compiler.Send:
		return b.send(n)

	default:
		return 0, compiler.Internalf("unexpected %T in resolved body of %s", e, b.tree.Name(b.method))
	}
}

func (b *builder) exprs(es []compiler.Expr) ([]int, error) {
	out := make([]int, len(es))
	for i, x := range es {
		r, err := b.expr(x)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// construct builds an instance of block id. Slot initializers are evaluated
// before the allocation so no half-initialized object is live across a call.
func (b *builder) construct(id compiler.BlockID) (int, error) {
	block := b.tree.Block(id)
	if block.Constant {
		return b.load(block.ConstantValue()), nil
	}

	inits := make([]int, len(block.Slots))
	for i, s := range block.Slots {
		r, err := b.expr(s.Init)
		if err != nil {
			return 0, err
		}
		inits[i] = r
	}

	dest := b.temp()
	b.emit(Instr{Op: OpAlloc, Dest: dest, Tag: block.Tag, N: len(block.Slots)})
	for i, r := range inits {
		b.emit(Instr{Op: OpSetSlot, Dest: NoLocal, Args: []int{dest, r}, N: i})
	}
	return dest, nil
}

// send lowers a message send to a CALL of a method or dispatcher label.
func (b *builder) send(n *compiler.Send) (int, error) {
	if n.Receiver == nil {
		return 0, compiler.Internalf("unresolved send of %s in %s", n.Selector, b.tree.Name(b.method))
	}
	recv, err := b.expr(n.Receiver)
	if err != nil {
		return 0, err
	}
	args, err := b.exprs(n.Args)
	if err != nil {
		return 0, err
	}

	call := Instr{
		Op:    OpCall,
		Dest:  b.temp(),
		Args:  append([]int{recv}, args...),
		Trace: NoTrace,
	}

	switch n.Bind {
	case compiler.Static:
		call.Label = n.Selector.MethodLabel(b.tree.Block(n.Target).DispatchTag())
	case compiler.Builtin:
		call.Label = n.Selector.MethodLabel(n.Tag)
		call.Unchecked = b.env.Infallible(n.Tag, n.Selector)
	case compiler.Dynamic:
		call.Label = n.Selector.DispatcherLabel()
	default:
		return 0, compiler.Internalf("unbound send of %s in %s", n.Selector, b.tree.Name(b.method))
	}

	if n.SpanVal.Start.File != "" {
		call.Trace = b.env.Traceback(b.method, n.SpanVal)
	}

	b.emit(call)
	return call.Dest, nil
}
