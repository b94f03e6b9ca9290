package opt

import (
	"math"
	"slices"
	"sort"

	"github.com/chazu/slate/compiler"
	"github.com/chazu/slate/ir"
)

// ---------------------------------------------------------------------------
// Spill/stack allocation
// ---------------------------------------------------------------------------

// allocator tracks, for every local, the register holding it and its home
// on the stack while walking a procedure forward.
type allocator struct {
	m    Machine
	p    *ir.Proc
	live *Live

	uses  [][]int  // ascending indices of the instructions reading each local
	reg   []int    // local held by each allocatable register
	regOf []int    // register of each local, or -1
	home  []ir.Loc // stack or incoming-argument slot of each local

	free    []int // released frame slots, ascending
	pending []int // released frame slots not reused since the last CLEAR
	frame   int

	out []ir.Instr
}

// Allocate assigns physical locations to every operand of p. Locals live in
// registers while only leaf instructions run; before a non-leaf instruction
// every local that is live afterwards and not yet on the stack is spilled,
// and the register file is empty once it returns, with the result in R0.
// Reloads are inserted where a leaf instruction reads a spilled local. When
// no register is free the local whose next use is farthest away is evicted.
// Frame slots of dead locals are reused first-fit; slots released and not
// reused are marked with CLEAR before the next non-leaf instruction.
func Allocate(p *ir.Proc, live *Live, m Machine) (*ir.Proc, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if len(live.Before) != len(p.Instrs) || len(live.After) != len(p.Instrs) {
		return nil, compiler.Internalf("%s: liveness does not match %d instructions", p.Label, len(p.Instrs))
	}

	n := p.NumLocals
	if n < p.NumArgs+1 {
		n = p.NumArgs + 1
	}
	a := &allocator{
		m:     m,
		p:     p,
		live:  live,
		uses:  make([][]int, n),
		reg:   make([]int, m.Allocatable()),
		regOf: make([]int, n),
		home:  make([]ir.Loc, n),
	}
	for r := range a.reg {
		a.reg[r] = ir.NoLocal
	}
	for l := range a.regOf {
		a.regOf[l] = -1
	}
	for i, in := range p.Instrs {
		if in.Op >= ir.OpSpill {
			return nil, compiler.Internalf("%s: %s before allocation", p.Label, in.Op)
		}
		for _, l := range in.Args {
			if l < 0 || l >= n {
				return nil, compiler.Internalf("%s: %%%d out of range at %d", p.Label, l, i)
			}
			if u := a.uses[l]; len(u) == 0 || u[len(u)-1] != i {
				a.uses[l] = append(u, i)
			}
		}
		if in.Dest >= n {
			return nil, compiler.Internalf("%s: %%%d out of range at %d", p.Label, in.Dest, i)
		}
	}

	a.enter()
	for i, in := range p.Instrs {
		var err error
		if in.Op.IsLeaf() {
			err = a.leaf(i, in)
		} else {
			err = a.nonLeaf(i, in)
		}
		if err != nil {
			return nil, err
		}
	}

	q := clone(p, a.out)
	q.NumLocals = n
	q.FrameSize = a.frame
	return q, nil
}

// enter places the receiver and arguments where the calling convention
// delivers them and drops the ones never read.
func (a *allocator) enter() {
	for l := 0; l <= a.p.NumArgs; l++ {
		if l < a.m.ArgRegisters {
			a.assign(l, l)
		} else {
			a.home[l] = ir.Arg(l - a.m.ArgRegisters)
		}
	}
	var entry Set
	if len(a.live.Before) > 0 {
		entry = a.live.Before[0]
	}
	for l := 0; l <= a.p.NumArgs; l++ {
		if !entry.Has(l) {
			a.release(l)
		}
	}
}

func (a *allocator) leaf(i int, in ir.Instr) error {
	locked := make([]bool, len(a.reg))
	for _, l := range in.Args {
		if r := a.regOf[l]; r >= 0 {
			locked[r] = true
		}
	}
	for _, l := range in.Args {
		if a.regOf[l] >= 0 {
			continue
		}
		from := a.home[l]
		if from.Kind == ir.LocNone {
			return compiler.Internalf("%s: %%%d has no location at %d", a.p.Label, l, i)
		}
		r, err := a.register(i, locked)
		if err != nil {
			return err
		}
		a.emit(ir.Instr{Op: ir.OpReload, Dest: l, DestLoc: ir.Reg(r), ArgLocs: []ir.Loc{from}, N: from.Index, Trace: ir.NoTrace})
		a.assign(l, r)
		locked[r] = true
	}

	in.ArgLocs = make([]ir.Loc, len(in.Args))
	for j, l := range in.Args {
		in.ArgLocs[j] = ir.Reg(a.regOf[l])
	}

	after := a.live.After[i]
	for _, l := range in.Args {
		if !after.Has(l) {
			a.release(l)
		}
	}

	if in.Dest != ir.NoLocal {
		locked := make([]bool, len(a.reg))
		for _, l := range in.Args {
			if r := a.regOf[l]; r >= 0 {
				locked[r] = true
			}
		}
		r, err := a.register(i+1, locked)
		if err != nil {
			return err
		}
		in.DestLoc = ir.Reg(r)
		a.assign(in.Dest, r)
		if !after.Has(in.Dest) {
			a.release(in.Dest)
		}
	}
	a.emit(in)
	return nil
}

func (a *allocator) nonLeaf(i int, in ir.Instr) error {
	after := a.live.After[i]
	for _, l := range after.Locals() {
		if l == in.Dest || a.home[l].Kind != ir.LocNone {
			continue
		}
		if a.regOf[l] < 0 {
			return compiler.Internalf("%s: %%%d live across %s but has no location", a.p.Label, l, in.Op)
		}
		a.spill(l)
	}
	a.clear()

	in.ArgLocs = make([]ir.Loc, len(in.Args))
	for j, l := range in.Args {
		switch {
		case a.regOf[l] >= 0:
			in.ArgLocs[j] = ir.Reg(a.regOf[l])
		case a.home[l].Kind != ir.LocNone:
			in.ArgLocs[j] = a.home[l]
		default:
			return compiler.Internalf("%s: %%%d has no location at %d", a.p.Label, l, i)
		}
	}

	for r, l := range a.reg {
		if l != ir.NoLocal {
			a.regOf[l] = -1
			a.reg[r] = ir.NoLocal
		}
	}
	for _, l := range in.Args {
		if !after.Has(l) {
			a.release(l)
		}
	}

	if in.Dest != ir.NoLocal {
		in.DestLoc = ir.Reg(0)
		a.assign(in.Dest, 0)
		if !after.Has(in.Dest) {
			a.release(in.Dest)
		}
	}
	a.emit(in)
	return nil
}

func (a *allocator) emit(in ir.Instr) {
	a.out = append(a.out, in)
}

func (a *allocator) assign(l, r int) {
	a.reg[r] = l
	a.regOf[l] = r
}

// register returns a free unlocked register, evicting if necessary.
func (a *allocator) register(at int, locked []bool) (int, error) {
	for r, l := range a.reg {
		if l == ir.NoLocal && !locked[r] {
			return r, nil
		}
	}

	victim, farthest := -1, -1
	for r, l := range a.reg {
		if locked[r] {
			continue
		}
		if d := a.nextUse(l, at); d > farthest {
			victim, farthest = r, d
		}
	}
	if victim < 0 {
		return 0, compiler.Internalf("%s: no register to evict at %d", a.p.Label, at)
	}
	l := a.reg[victim]
	a.spill(l)
	a.regOf[l] = -1
	a.reg[victim] = ir.NoLocal
	return victim, nil
}

func (a *allocator) nextUse(l, at int) int {
	u := a.uses[l]
	if k := sort.SearchInts(u, at); k < len(u) {
		return u[k]
	}
	return math.MaxInt
}

// spill gives l a frame slot if it has no home yet.
func (a *allocator) spill(l int) {
	if a.home[l].Kind != ir.LocNone {
		return
	}
	s := a.takeSlot()
	a.emit(ir.Instr{Op: ir.OpSpill, Dest: ir.NoLocal, Args: []int{l}, ArgLocs: []ir.Loc{ir.Reg(a.regOf[l])}, N: s, Trace: ir.NoTrace})
	a.home[l] = ir.Stack(s)
}

// release forgets a dead local.
func (a *allocator) release(l int) {
	if r := a.regOf[l]; r >= 0 {
		a.reg[r] = ir.NoLocal
		a.regOf[l] = -1
	}
	if h := a.home[l]; h.Kind == ir.LocStack {
		k, _ := slices.BinarySearch(a.free, h.Index)
		a.free = slices.Insert(a.free, k, h.Index)
		a.pending = append(a.pending, h.Index)
	}
	a.home[l] = ir.Loc{}
}

func (a *allocator) takeSlot() int {
	if len(a.free) > 0 {
		s := a.free[0]
		a.free = a.free[1:]
		if k := slices.Index(a.pending, s); k >= 0 {
			a.pending = slices.Delete(a.pending, k, k+1)
		}
		return s
	}
	s := a.frame
	a.frame++
	return s
}

// clear marks released, unreused slots as no longer holding roots.
func (a *allocator) clear() {
	slices.Sort(a.pending)
	for _, s := range a.pending {
		a.emit(ir.Instr{Op: ir.OpClear, Dest: ir.NoLocal, N: s, Trace: ir.NoTrace})
	}
	a.pending = a.pending[:0]
}
