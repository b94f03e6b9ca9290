// Package codegen drives a target backend over a compiled code table.
//
// The compiler proper stops at allocated, call-lowered procedures and
// dispatch trees. A Backend turns those into target text or bytes; Emit
// calls it once per procedure, instruction, dispatcher and decision node,
// in code table order.
package codegen

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/slate/compiler"
	"github.com/chazu/slate/dispatch"
	"github.com/chazu/slate/ir"
	"github.com/chazu/slate/program"
)

var log = commonlog.GetLogger("slate.codegen")

// Backend realizes machine code for one target. Instructions passed in have
// been through register allocation: operands are read from DestLoc and
// ArgLocs.
type Backend interface {
	Begin(t *program.CodeTable) error
	End() error

	BeginProc(p *ir.Proc) error
	EndProc(p *ir.Proc) error

	Alloc(in *ir.Instr) error
	Call(in *ir.Instr) error
	LoadValue(in *ir.Instr) error
	LoadString(in *ir.Instr) error
	GetSlot(in *ir.Instr) error
	SetSlot(in *ir.Instr) error
	Return(in *ir.Instr) error
	Concat(in *ir.Instr) error
	Array(in *ir.Instr) error
	SetElem(in *ir.Instr) error
	Spill(in *ir.Instr) error
	Reload(in *ir.Instr) error
	Clear(in *ir.Instr) error
	Move(in *ir.Instr) error
	Push(in *ir.Instr) error

	BeginDispatcher(d *dispatch.Dispatcher) error
	// DispatchNode is called for every decision node in preorder: a branch
	// is followed by its low subtree, then its high subtree.
	DispatchNode(n *dispatch.Node, depth int) error
	EndDispatcher(d *dispatch.Dispatcher) error
}

// Emit feeds every procedure and dispatcher of t to b.
func Emit(t *program.CodeTable, b Backend) error {
	if t.Entry == nil {
		return compiler.Internalf("code table has no entry procedure")
	}
	if err := b.Begin(t); err != nil {
		return err
	}

	procs := t.Procs()
	for _, p := range procs {
		if err := emitProc(p, b); err != nil {
			return err
		}
	}
	for _, d := range t.Dispatchers {
		if err := emitDispatcher(d, b); err != nil {
			return err
		}
	}

	log.Debugf("emitted %d procedures, %d dispatchers", len(procs), len(t.Dispatchers))
	return b.End()
}

func emitProc(p *ir.Proc, b Backend) error {
	if err := b.BeginProc(p); err != nil {
		return err
	}
	for i := range p.Instrs {
		if err := emitInstr(&p.Instrs[i], b); err != nil {
			return err
		}
	}
	return b.EndProc(p)
}

func emitInstr(in *ir.Instr, b Backend) error {
	switch in.Op {
	case ir.OpAlloc:
		return b.Alloc(in)
	case ir.OpCall:
		return b.Call(in)
	case ir.OpLoadValue:
		return b.LoadValue(in)
	case ir.OpLoadString:
		return b.LoadString(in)
	case ir.OpGetSlot:
		return b.GetSlot(in)
	case ir.OpSetSlot:
		return b.SetSlot(in)
	case ir.OpReturn:
		return b.Return(in)
	case ir.OpConcat:
		return b.Concat(in)
	case ir.OpArray:
		return b.Array(in)
	case ir.OpSetElem:
		return b.SetElem(in)
	case ir.OpSpill:
		return b.Spill(in)
	case ir.OpReload:
		return b.Reload(in)
	case ir.OpClear:
		return b.Clear(in)
	case ir.OpMove:
		return b.Move(in)
	case ir.OpPush:
		return b.Push(in)
	}
	return compiler.Internalf("no code for %s", in)
}

func emitDispatcher(d *dispatch.Dispatcher, b Backend) error {
	if err := b.BeginDispatcher(d); err != nil {
		return err
	}
	if err := walk(d.Tree, 0, b); err != nil {
		return err
	}
	return b.EndDispatcher(d)
}

func walk(n *dispatch.Node, depth int, b Backend) error {
	if err := b.DispatchNode(n, depth); err != nil {
		return err
	}
	if n.Kind != dispatch.Branch {
		return nil
	}
	if err := walk(n.Low, depth+1, b); err != nil {
		return err
	}
	return walk(n.High, depth+1, b)
}
