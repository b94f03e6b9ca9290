package compiler

import (
	"strconv"
	"strings"

	"github.com/chazu/slate/value"
)

// ---------------------------------------------------------------------------
// AST: blocks, methods and message sends
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	File   string
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// MakeSpan creates a span from start and end positions.
func MakeSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}

// BlockID addresses a block in a Tree.
type BlockID int

// MethodID addresses a method in a Tree.
type MethodID int

// Sentinel ids.
const (
	NoBlock  BlockID  = -1
	NoMethod MethodID = -1
)

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes. The set of implementations is
// closed; every pipeline stage switches over it.
type Expr interface {
	Span() Span
	expr() // marker method
}

// Binding classifies a resolved Send.
type Binding int

const (
	Unbound Binding = iota
	Dynamic         // through the selector's dispatcher
	Static          // direct call to a user block method
	Builtin         // direct call to a built-in method
)

// Send is a message send. A nil Receiver means the receiver is implicit and
// found by scope lookup.
type Send struct {
	SpanVal  Span
	Receiver Expr
	Selector value.Selector
	Args     []Expr

	// Set by the resolver.
	Bind   Binding
	Target BlockID   // Static
	Tag    value.Tag // Builtin
}

func (n *Send) Span() Span { return n.SpanVal }
func (n *Send) expr()      {}

// BlockLit constructs an instance of a block.
type BlockLit struct {
	SpanVal Span
	Block   BlockID
}

func (n *BlockLit) Span() Span { return n.SpanVal }
func (n *BlockLit) expr()      {}

// Sequence evaluates its expressions in order; its value is the last one.
type Sequence struct {
	SpanVal Span
	Exprs   []Expr
}

func (n *Sequence) Span() Span { return n.SpanVal }
func (n *Sequence) expr()      {}

// Let binds Name for the rest of the enclosing sequence.
type Let struct {
	SpanVal Span
	Name    string
	Value   Expr

	Local int // set by the resolver
}

func (n *Let) Span() Span { return n.SpanVal }
func (n *Let) expr()      {}

// ArrayLit builds an array from its elements.
type ArrayLit struct {
	SpanVal  Span
	Elements []Expr
}

func (n *ArrayLit) Span() Span { return n.SpanVal }
func (n *ArrayLit) expr()      {}

// Number is a numeric literal significand * 10^Exponent.
type Number struct {
	SpanVal     Span
	Significand int64
	Exponent    int
	Decimal     bool
}

func (n *Number) Span() Span { return n.SpanVal }
func (n *Number) expr()      {}

// String is a string literal.
type String struct {
	SpanVal Span
	Value   string
}

func (n *String) Span() Span { return n.SpanVal }
func (n *String) expr()      {}

// Concat is the string concatenation sugar a , b , c.
type Concat struct {
	SpanVal Span
	Parts   []Expr
}

func (n *Concat) Span() Span { return n.SpanVal }
func (n *Concat) expr()      {}

// Self is the receiver of the current method.
type Self struct {
	SpanVal Span
}

func (n *Self) Span() Span { return n.SpanVal }
func (n *Self) expr()      {}

// Literal is a pre-encoded constant word (true, false, nil, system).
type Literal struct {
	SpanVal Span
	Value   value.Value
}

func (n *Literal) Span() Span { return n.SpanVal }
func (n *Literal) expr()      {}

// ---------------------------------------------------------------------------
// Resolved-only nodes
// ---------------------------------------------------------------------------

// LocalRef reads a method local. Index 0 is the receiver, 1..n the
// arguments.
type LocalRef struct {
	SpanVal Span
	Index   int
}

func (n *LocalRef) Span() Span { return n.SpanVal }
func (n *LocalRef) expr()      {}

// SlotRead reads slot Slot of the block instance Object evaluates to.
type SlotRead struct {
	SpanVal Span
	Object  Expr
	Slot    int
}

func (n *SlotRead) Span() Span { return n.SpanVal }
func (n *SlotRead) expr()      {}

// SlotWrite stores Value into a mutable slot; its value is Value.
type SlotWrite struct {
	SpanVal Span
	Object  Expr
	Slot    int
	Value   Expr
}

func (n *SlotWrite) Span() Span { return n.SpanVal }
func (n *SlotWrite) expr()      {}

// ConstRef is the singleton value of a constant block.
type ConstRef struct {
	SpanVal Span
	Block   BlockID
}

func (n *ConstRef) Span() Span { return n.SpanVal }
func (n *ConstRef) expr()      {}

// BlockRef is a pending reference to an enclosing block instance. It only
// exists between the two resolver passes.
type BlockRef struct {
	SpanVal Span
	Target  BlockID
}

func (n *BlockRef) Span() Span { return n.SpanVal }
func (n *BlockRef) expr()      {}

// ---------------------------------------------------------------------------
// Blocks and methods
// ---------------------------------------------------------------------------

// SlotKind says where a slot came from.
type SlotKind int

const (
	SlotDeclared SlotKind = iota // instance variable written in source
	SlotCaptured                 // snapshot of an outer local
	SlotBlockRef                 // reference to an enclosing block instance
)

func (k SlotKind) String() string {
	switch k {
	case SlotDeclared:
		return "declared"
	case SlotCaptured:
		return "captured"
	case SlotBlockRef:
		return "blockref"
	}
	return "unknown"
}

// Slot is a fixed-index storage location of a block instance. Init is
// evaluated in the method that constructs the block.
type Slot struct {
	SpanVal Span
	Name    string
	Kind    SlotKind
	Mutable bool
	Init    Expr
	Target  BlockID // SlotBlockRef only
}

// Block is a lexical object definition.
type Block struct {
	ID      BlockID
	SpanVal Span
	Parent  MethodID // method whose body constructs this block
	Slots   []*Slot
	Methods []MethodID

	// Constant is decided by the resolver; Tag or ConstID are assigned once
	// the whole program is known.
	Constant bool
	Tag      value.Tag
	ConstID  int

	captures map[string]int
	refs     map[BlockID]int
	needs    map[BlockID]bool
}

// SlotIndex returns the index of the declared slot name, or -1.
func (b *Block) SlotIndex(name string) int {
	for i, s := range b.Slots {
		if s.Kind == SlotDeclared && s.Name == name {
			return i
		}
	}
	return -1
}

// DispatchTag is the tag dispatchers see for instances of b.
func (b *Block) DispatchTag() value.Tag {
	if b.Constant {
		return value.ConstantTag(b.ConstID)
	}
	return b.Tag
}

// ConstantValue is the singleton of a constant block.
func (b *Block) ConstantValue() value.Value {
	return value.FromConstant(b.ConstID)
}

// Method is a (selector, block) code body.
type Method struct {
	ID        MethodID
	SpanVal   Span
	Block     BlockID
	Selector  value.Selector
	Args      []string
	Body      Expr
	Synthetic bool

	// Locals holds let-bound names in binding order; local i lives at index
	// 1 + len(Args) + i.
	Locals []string
}

// NumArgs returns the argument count, excluding the receiver.
func (m *Method) NumArgs() int {
	return len(m.Args)
}

// Tree is the arena holding every block and method of a compilation unit.
type Tree struct {
	Blocks  []*Block
	Methods []*Method
	Root    BlockID
	Entry   MethodID

	sources map[string][]string
}

// EntrySelector names the synthetic program entry procedure.
var EntrySelector = value.Selector{Name: "slate_entry", Arity: 0}

// MainSelector is sent to the top-level block by the entry procedure.
var MainSelector = value.Selector{Name: "main", Arity: 0}

// NewTree creates a tree with an empty top-level block and the entry
// procedure that constructs it and sends it main.
func NewTree() *Tree {
	t := &Tree{sources: make(map[string][]string)}
	t.Entry = t.NewMethod(NoBlock, EntrySelector, nil, nil, Span{})
	t.Root = t.NewBlock(t.Entry, Span{})

	entry := t.Method(t.Entry)
	entry.Synthetic = true
	entry.Body = &Sequence{Exprs: []Expr{
		&Send{
			Receiver: &BlockLit{Block: t.Root},
			Selector: MainSelector,
			Target:   NoBlock,
		},
	}}
	return t
}

// NewBlock appends a block to the arena.
func (t *Tree) NewBlock(parent MethodID, span Span) BlockID {
	id := BlockID(len(t.Blocks))
	t.Blocks = append(t.Blocks, &Block{ID: id, SpanVal: span, Parent: parent, ConstID: -1})
	return id
}

// NewMethod appends a method to the arena and registers it with its block.
func (t *Tree) NewMethod(block BlockID, sel value.Selector, args []string, body Expr, span Span) MethodID {
	id := MethodID(len(t.Methods))
	t.Methods = append(t.Methods, &Method{
		ID:       id,
		SpanVal:  span,
		Block:    block,
		Selector: sel,
		Args:     args,
		Body:     body,
	})
	if block != NoBlock {
		b := t.Blocks[block]
		b.Methods = append(b.Methods, id)
	}
	return id
}

// Block returns the block with the given id.
func (t *Tree) Block(id BlockID) *Block {
	return t.Blocks[id]
}

// Method returns the method with the given id.
func (t *Tree) Method(id MethodID) *Method {
	return t.Methods[id]
}

// FindMethod returns the method of block b implementing sel.
func (t *Tree) FindMethod(b BlockID, sel value.Selector) (*Method, bool) {
	for _, id := range t.Blocks[b].Methods {
		if m := t.Methods[id]; m.Selector == sel {
			return m, true
		}
	}
	return nil, false
}

// AddSource records the text of a source file for diagnostics.
func (t *Tree) AddSource(file, text string) {
	t.sources[file] = strings.Split(text, "\n")
}

// SourceLine returns line (1-based) of file, or "".
func (t *Tree) SourceLine(file string, line int) string {
	lines := t.sources[file]
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[line-1], "\r")
}

// Name renders a method as block-qualified selector for tracebacks.
func (t *Tree) Name(m *Method) string {
	if m.Block == NoBlock {
		return m.Selector.Name
	}
	return "block" + strconv.Itoa(int(m.Block)) + ">>" + m.Selector.Name
}

// Inspect calls f for e and, while f returns true, for every expression
// nested in e. It does not enter the slot initializers or methods of
// constructed blocks.
func Inspect(e Expr, f func(Expr) bool) {
	if e == nil || !f(e) {
		return
	}
	switch n := e.(type) {
	case *Send:
		Inspect(n.Receiver, f)
		for _, a := range n.Args {
			Inspect(a, f)
		}
	case *Sequence:
		for _, x := range n.Exprs {
			Inspect(x, f)
		}
	case *Let:
		Inspect(n.Value, f)
	case *ArrayLit:
		for _, x := range n.Elements {
			Inspect(x, f)
		}
	case *Concat:
		for _, x := range n.Parts {
			Inspect(x, f)
		}
	case *SlotRead:
		Inspect(n.Object, f)
	case *SlotWrite:
		Inspect(n.Object, f)
		Inspect(n.Value, f)
	}
}
