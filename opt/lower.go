package opt

import (
	"github.com/chazu/slate/compiler"
	"github.com/chazu/slate/ir"
)

// ---------------------------------------------------------------------------
// Call-boundary shuffling
// ---------------------------------------------------------------------------

type move struct {
	dst, src ir.Loc
}

// LowerCalls realizes the calling convention on an allocated procedure.
// Before a CALL, arguments past the register count are pushed in order and
// the rest are moved into R0..R(ArgRegisters-1) as one parallel move, with
// cycles broken through the scratch register. CONCAT receives all of its
// operands on the stack. RETURN moves its value into R0.
func LowerCalls(p *ir.Proc, m Machine) (*ir.Proc, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	out := make([]ir.Instr, 0, len(p.Instrs))
	for i, in := range p.Instrs {
		lowered := in.Op == ir.OpCall || in.Op == ir.OpConcat || in.Op == ir.OpReturn
		if lowered && len(in.ArgLocs) != len(in.Args) {
			return nil, compiler.Internalf("%s: %s at %d has no operand locations", p.Label, in.Op, i)
		}
		switch in.Op {
		case ir.OpCall:
			for j := m.ArgRegisters; j < len(in.ArgLocs); j++ {
				out = append(out, push(in.ArgLocs[j]))
			}
			var moves []move
			locs := append([]ir.Loc(nil), in.ArgLocs...)
			for j := 0; j < len(locs) && j < m.ArgRegisters; j++ {
				if locs[j] != ir.Reg(j) {
					moves = append(moves, move{dst: ir.Reg(j), src: locs[j]})
				}
				locs[j] = ir.Reg(j)
			}
			out = append(out, sequentialize(moves, ir.Reg(m.Scratch()))...)
			in.ArgLocs = locs
			in.StackArgs = max(0, len(locs)-m.ArgRegisters)

		case ir.OpConcat:
			for _, loc := range in.ArgLocs {
				out = append(out, push(loc))
			}
			in.StackArgs = len(in.ArgLocs)

		case ir.OpReturn:
			if in.ArgLocs[0] != ir.Reg(0) {
				out = append(out, moveInstr(ir.Reg(0), in.ArgLocs[0]))
				in.ArgLocs = []ir.Loc{ir.Reg(0)}
			}
		}
		out = append(out, in)
	}
	return clone(p, out), nil
}

// sequentialize orders a parallel move so no source is overwritten before it
// is read.
func sequentialize(moves []move, scratch ir.Loc) []ir.Instr {
	var out []ir.Instr
	for len(moves) > 0 {
		ready := -1
		for k := range moves {
			if !readBy(moves, moves[k].dst, k) {
				ready = k
				break
			}
		}
		if ready >= 0 {
			out = append(out, moveInstr(moves[ready].dst, moves[ready].src))
			moves = append(moves[:ready], moves[ready+1:]...)
			continue
		}

		// Every destination still feeds another move: park one in scratch.
		d := moves[0].dst
		out = append(out, moveInstr(scratch, d))
		for k := range moves {
			if moves[k].src == d {
				moves[k].src = scratch
			}
		}
	}
	return out
}

func readBy(moves []move, loc ir.Loc, skip int) bool {
	for k, mv := range moves {
		if k != skip && mv.src == loc {
			return true
		}
	}
	return false
}

func moveInstr(dst, src ir.Loc) ir.Instr {
	return ir.Instr{Op: ir.OpMove, Dest: ir.NoLocal, DestLoc: dst, ArgLocs: []ir.Loc{src}, Trace: ir.NoTrace}
}

func push(src ir.Loc) ir.Instr {
	return ir.Instr{Op: ir.OpPush, Dest: ir.NoLocal, ArgLocs: []ir.Loc{src}, Trace: ir.NoTrace}
}
