package compiler

import (
	"strconv"

	"github.com/chazu/slate/value"
)

// ---------------------------------------------------------------------------
// Scope Resolver: name binding and closure conversion
// ---------------------------------------------------------------------------

// MaxArity is the largest number of arguments a selector may take.
const MaxArity = 16

// Builtins is the view of the built-in environment the resolver needs.
type Builtins interface {
	// Implements reports whether built-in type tag implements sel.
	Implements(tag value.Tag, sel value.Selector) bool

	// ImplicitReceiver returns the built-in object that answers sel when
	// no enclosing block defines it.
	ImplicitReceiver(sel value.Selector) (value.Value, bool)
}

// noBuiltins is used when Resolve is given a nil environment.
type noBuiltins struct{}

func (noBuiltins) Implements(value.Tag, value.Selector) bool { return false }
func (noBuiltins) ImplicitReceiver(value.Selector) (value.Value, bool) {
	return 0, false
}

// scope is the resolution context of one method. parent is the scope of the
// method that constructs method.Block.
type scope struct {
	method *Method
	names  map[string]int
	parent *scope
}

// resolver carries the state of one Resolve call.
type resolver struct {
	tree     *Tree
	builtins Builtins
}

// Resolve binds every name in tree, converts closures to explicit slots,
// decides block constness and materializes block references. The tree is
// mutated in place. Resolution stops at the first error.
func Resolve(tree *Tree, builtins Builtins) error {
	if builtins == nil {
		builtins = noBuiltins{}
	}
	r := &resolver{tree: tree, builtins: builtins}

	if _, ok := tree.FindMethod(tree.Root, MainSelector); !ok {
		return ProgramShapeError.New("no main method defined on the top-level block")
	}

	for _, b := range tree.Blocks {
		if err := r.declare(b); err != nil {
			return err
		}
	}

	// Free-variable pass, depth first from the entry procedure.
	if err := r.method(&scope{method: tree.Method(tree.Entry)}); err != nil {
		return err
	}

	r.computeConstness()

	// Block-reference pass.
	for _, m := range tree.Methods {
		body, err := r.refs(m.ID, m.Body)
		if err != nil {
			return err
		}
		m.Body = body
	}
	for _, b := range tree.Blocks {
		for i := 0; i < len(b.Slots); i++ {
			s := b.Slots[i]
			if s.Kind == SlotBlockRef {
				continue
			}
			init, err := r.refs(b.Parent, s.Init)
			if err != nil {
				return err
			}
			s.Init = init
		}
	}
	return nil
}

// declare checks a block's declarations for duplicates and adds the
// synthetic accessors.
func (r *resolver) declare(b *Block) error {
	b.captures = make(map[string]int)
	b.refs = make(map[BlockID]int)
	b.needs = make(map[BlockID]bool)

	seen := make(map[string]bool)
	for _, s := range b.Slots {
		if seen[s.Name] {
			return ErrorAt(ResolutionError, s.SpanVal.Start, "duplicate slot %s", s.Name)
		}
		seen[s.Name] = true
	}

	sels := make(map[value.Selector]bool)
	for _, id := range b.Methods {
		m := r.tree.Method(id)
		if sels[m.Selector] {
			return ErrorAt(ResolutionError, m.SpanVal.Start, "duplicate method %s", m.Selector)
		}
		sels[m.Selector] = true
		if m.Selector.Arity == 0 && seen[m.Selector.Name] {
			return ErrorAt(ResolutionError, m.SpanVal.Start, "method %s duplicates a slot name", m.Selector)
		}
		if m.Selector.Arity > MaxArity {
			return ErrorAt(ResolutionError, m.SpanVal.Start, "method %s takes %d arguments, more than %d", m.Selector, m.Selector.Arity, MaxArity)
		}
	}

	for i, s := range b.Slots {
		r.tree.NewMethod(b.ID, value.Getter(s.Name), nil, &Sequence{
			Exprs: []Expr{&SlotRead{Object: &Self{}, Slot: i}},
		}, s.SpanVal)
		r.markSynthetic()
		if !s.Mutable || sels[value.Setter(s.Name)] {
			continue
		}
		r.tree.NewMethod(b.ID, value.Setter(s.Name), []string{"value"}, &Sequence{
			Exprs: []Expr{&SlotWrite{Object: &Self{}, Slot: i, Value: &LocalRef{Index: 1}}},
		}, s.SpanVal)
		r.markSynthetic()
	}
	return nil
}

func (r *resolver) markSynthetic() {
	r.tree.Methods[len(r.tree.Methods)-1].Synthetic = true
}

// ---------------------------------------------------------------------------
// Free-variable pass
// ---------------------------------------------------------------------------

// method resolves the body of the method in scope s.
func (r *resolver) method(s *scope) error {
	m := s.method
	s.names = make(map[string]int)
	for i, arg := range m.Args {
		if _, dup := s.names[arg]; dup {
			return ErrorAt(ResolutionError, m.SpanVal.Start, "duplicate argument %s in %s", arg, m.Selector)
		}
		s.names[arg] = 1 + i
	}

	body, err := r.expr(s, m.Body)
	if err != nil {
		return err
	}
	m.Body = body
	return nil
}

// block resolves a block literal found in scope s: the declared slot
// initializers run in s, each method gets its own child scope.
func (r *resolver) block(s *scope, id BlockID) error {
	b := r.tree.Block(id)

	declared := len(b.Slots)
	for i := 0; i < declared; i++ {
		init, err := r.expr(s, b.Slots[i].Init)
		if err != nil {
			return err
		}
		b.Slots[i].Init = init
	}

	for _, mid := range b.Methods {
		m := r.tree.Method(mid)
		if m.Synthetic {
			continue
		}
		if err := r.method(&scope{method: m, parent: s}); err != nil {
			return err
		}
	}
	return nil
}

// expr resolves e in scope s and returns its replacement.
func (r *resolver) expr(s *scope, e Expr) (Expr, error) {
	switch n := e.(type) {
	case nil:
		return nil, nil

	case *Sequence:
		for i, x := range n.Exprs {
			y, err := r.expr(s, x)
			if err != nil {
				return nil, err
			}
			n.Exprs[i] = y
		}
		return n, nil

	case *Let:
		val, err := r.expr(s, n.Value)
		if err != nil {
			return nil, err
		}
		if _, dup := s.names[n.Name]; dup {
			return nil, ErrorAt(ResolutionError, n.SpanVal.Start, "duplicate variable %s", n.Name)
		}
		m := s.method
		n.Value = val
		n.Local = 1 + len(m.Args) + len(m.Locals)
		m.Locals = append(m.Locals, n.Name)
		s.names[n.Name] = n.Local
		return n, nil

	case *BlockLit:
		if err := r.block(s, n.Block); err != nil {
			return nil, err
		}
		return n, nil

	case *ArrayLit:
		if err := r.exprs(s, n.Elements); err != nil {
			return nil, err
		}
		return n, nil

	case *Concat:
		if err := r.exprs(s, n.Parts); err != nil {
			return nil, err
		}
		return n, nil

	case *SlotWrite:
		val, err := r.expr(s, n.Value)
		if err != nil {
			return nil, err
		}
		n.Value = val
		return n, nil

	case *Send:
		return r.send(s, n)

	default:
		// Self, Literal, Number, String and already resolved leaves.
		return e, nil
	}
}

func (r *resolver) exprs(s *scope, es []Expr) error {
	for i, x := range es {
		y, err := r.expr(s, x)
		if err != nil {
			return err
		}
		es[i] = y
	}
	return nil
}

// send resolves a message send.
func (r *resolver) send(s *scope, n *Send) (Expr, error) {
	if n.Selector.Arity > MaxArity {
		return nil, ErrorAt(ResolutionError, n.SpanVal.Start, "send of %s has %d arguments, more than %d", n.Selector, n.Selector.Arity, MaxArity)
	}
	if n.Receiver == nil {
		if err := r.exprs(s, n.Args); err != nil {
			return nil, err
		}
		return r.implicit(s, n)
	}

	recv, err := r.expr(s, n.Receiver)
	if err != nil {
		return nil, err
	}
	n.Receiver = recv
	if err := r.exprs(s, n.Args); err != nil {
		return nil, err
	}

	switch rv := recv.(type) {
	case *Self:
		if s.method.Block != NoBlock {
			return r.bindBlock(n, s.method.Block, rv)
		}
	case *BlockLit:
		return r.bindBlock(n, rv.Block, rv)
	case *Number:
		tag := value.TagInteger
		if rv.Decimal {
			tag = value.TagDecimal
		}
		r.bindBuiltin(n, tag)
	case *String:
		r.bindBuiltin(n, value.TagString)
	case *Concat:
		r.bindBuiltin(n, value.TagString)
	case *ArrayLit:
		r.bindBuiltin(n, value.TagArray)
	case *Literal:
		r.bindBuiltin(n, rv.Value.DispatchTag())
	}

	if n.Bind == Unbound {
		n.Bind = Dynamic
	}
	return n, nil
}

// bindBuiltin binds n statically when the built-in type tag implements it.
func (r *resolver) bindBuiltin(n *Send, tag value.Tag) {
	if r.builtins.Implements(tag, n.Selector) {
		n.Bind = Builtin
		n.Tag = tag
	}
}

// bindBlock binds a send whose receiver is known to be an instance of block
// b. Accessors of declared slots are inlined to slot operations.
func (r *resolver) bindBlock(n *Send, b BlockID, obj Expr) (Expr, error) {
	block := r.tree.Block(b)
	if e, ok, err := r.slotAccess(n, block, obj); ok || err != nil {
		return e, err
	}
	if _, ok := r.tree.FindMethod(b, n.Selector); ok {
		n.Bind = Static
		n.Target = b
		return n, nil
	}
	n.Bind = Dynamic
	return n, nil
}

// slotAccess rewrites a getter or setter send on block into a direct slot
// operation. Writing an immutable slot is an error.
func (r *resolver) slotAccess(n *Send, block *Block, obj Expr) (Expr, bool, error) {
	switch n.Selector.Arity {
	case 0:
		if i := block.SlotIndex(n.Selector.Name); i >= 0 {
			return &SlotRead{SpanVal: n.SpanVal, Object: obj, Slot: i}, true, nil
		}
	case 1:
		name, ok := value.SetterSlot(n.Selector)
		if !ok {
			return nil, false, nil
		}
		i := block.SlotIndex(name)
		if i < 0 {
			return nil, false, nil
		}
		if m, ok := r.tree.FindMethod(block.ID, n.Selector); ok && !m.Synthetic {
			return nil, false, nil
		}
		if !block.Slots[i].Mutable {
			return nil, false, ErrorAt(ResolutionError, n.SpanVal.Start, "cannot assign to immutable slot %s", name)
		}
		return &SlotWrite{SpanVal: n.SpanVal, Object: obj, Slot: i, Value: n.Args[0]}, true, nil
	}
	return nil, false, nil
}

// implicit resolves a send without receiver: first as a variable, then as a
// message to the nearest enclosing block defining the selector, then as a
// message to a built-in object.
func (r *resolver) implicit(s *scope, n *Send) (Expr, error) {
	if n.Selector.Arity == 0 {
		if e, ok := r.lookupVar(s, n.Selector.Name, n.SpanVal); ok {
			return e, nil
		}
	}

	var path []BlockID
	for c := s; c != nil; c = c.parent {
		b := c.method.Block
		if b == NoBlock {
			break
		}
		block := r.tree.Block(b)
		ref := &BlockRef{SpanVal: n.SpanVal, Target: b}

		e, ok, err := r.slotAccess(n, block, ref)
		if err != nil {
			return nil, err
		}
		if !ok {
			if _, found := r.tree.FindMethod(b, n.Selector); found {
				n.Receiver = ref
				n.Bind = Static
				n.Target = b
				e, ok = n, true
			}
		}
		if ok {
			for _, p := range path {
				r.tree.Block(p).needs[b] = true
			}
			return e, nil
		}
		path = append(path, b)
	}

	if v, ok := r.builtins.ImplicitReceiver(n.Selector); ok {
		n.Receiver = &Literal{SpanVal: n.SpanVal, Value: v}
		n.Bind = Builtin
		n.Tag = v.DispatchTag()
		return n, nil
	}

	if n.Selector.Arity == 0 {
		return nil, ErrorAt(ResolutionError, n.SpanVal.Start, "undefined: %s", n.Selector.Name)
	}
	return nil, ErrorAt(ResolutionError, n.SpanVal.Start, "no enclosing scope understands %s", n.Selector)
}

// lookupVar resolves name as a local or slot visible from s. The result is
// expressed in the frame of s.method: outer locals are captured into a slot
// of every block between, declared slots of enclosing blocks are reached
// through a pending BlockRef.
func (r *resolver) lookupVar(s *scope, name string, span Span) (Expr, bool) {
	if idx, ok := s.names[name]; ok {
		return &LocalRef{SpanVal: span, Index: idx}, true
	}

	b := s.method.Block
	if b == NoBlock {
		return nil, false
	}
	block := r.tree.Block(b)
	if i := block.SlotIndex(name); i >= 0 {
		return &SlotRead{SpanVal: span, Object: &BlockRef{SpanVal: span, Target: b}, Slot: i}, true
	}
	if s.parent == nil {
		return nil, false
	}

	outer, ok := r.lookupVar(s.parent, name, span)
	if !ok {
		return nil, false
	}

	if sr, ok := outer.(*SlotRead); ok {
		if ref, ok := sr.Object.(*BlockRef); ok {
			block.needs[ref.Target] = true
			return outer, true
		}
	}

	idx, ok := block.captures[name]
	if !ok {
		idx = len(block.Slots)
		block.Slots = append(block.Slots, &Slot{
			SpanVal: span,
			Name:    name,
			Kind:    SlotCaptured,
			Init:    outer,
			Target:  NoBlock,
		})
		block.captures[name] = idx
	}
	return &SlotRead{SpanVal: span, Object: &Self{SpanVal: span}, Slot: idx}, true
}

// ---------------------------------------------------------------------------
// Constness
// ---------------------------------------------------------------------------

// computeConstness marks blocks with no slots whose referenced enclosing
// blocks are all constant. Enclosing blocks have lower ids, so one ascending
// sweep suffices.
func (r *resolver) computeConstness() {
	for _, b := range r.tree.Blocks {
		b.Constant = len(b.Slots) == 0
		for t := range b.needs {
			if !r.tree.Block(t).Constant {
				b.Constant = false
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Block-reference pass
// ---------------------------------------------------------------------------

// refs replaces every pending BlockRef in e, which runs in method m.
func (r *resolver) refs(m MethodID, e Expr) (Expr, error) {
	var err error
	walk := func(x Expr) Expr {
		if err != nil {
			return x
		}
		var y Expr
		y, err = r.refs(m, x)
		return y
	}

	switch n := e.(type) {
	case *BlockRef:
		return r.refFrom(m, n.Target, n.SpanVal)
	case *Send:
		if n.Receiver != nil {
			n.Receiver = walk(n.Receiver)
		}
		for i := range n.Args {
			n.Args[i] = walk(n.Args[i])
		}
	case *Sequence:
		for i := range n.Exprs {
			n.Exprs[i] = walk(n.Exprs[i])
		}
	case *Let:
		n.Value = walk(n.Value)
	case *ArrayLit:
		for i := range n.Elements {
			n.Elements[i] = walk(n.Elements[i])
		}
	case *Concat:
		for i := range n.Parts {
			n.Parts[i] = walk(n.Parts[i])
		}
	case *SlotRead:
		n.Object = walk(n.Object)
	case *SlotWrite:
		n.Object = walk(n.Object)
		n.Value = walk(n.Value)
	}
	return e, err
}

// refFrom returns an expression, valid in method m, evaluating to the
// instance of enclosing block target. Reference slots are threaded through
// every intermediate block that lacks one.
func (r *resolver) refFrom(m MethodID, target BlockID, span Span) (Expr, error) {
	if m == NoMethod {
		return nil, Internalf("block %d is not enclosing", target)
	}
	b := r.tree.Method(m).Block
	if b == NoBlock {
		return nil, Internalf("block %d is not enclosing", target)
	}
	if b == target {
		return &Self{SpanVal: span}, nil
	}
	if r.tree.Block(target).Constant {
		return &ConstRef{SpanVal: span, Block: target}, nil
	}

	block := r.tree.Block(b)
	idx, ok := block.refs[target]
	if !ok {
		init, err := r.refFrom(block.Parent, target, span)
		if err != nil {
			return nil, err
		}
		idx = len(block.Slots)
		block.Slots = append(block.Slots, &Slot{
			SpanVal: span,
			Name:    "block" + strconv.Itoa(int(target)),
			Kind:    SlotBlockRef,
			Init:    init,
			Target:  target,
		})
		block.refs[target] = idx
	}
	return &SlotRead{SpanVal: span, Object: &Self{SpanVal: span}, Slot: idx}, nil
}
