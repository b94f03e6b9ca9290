package opt

import (
	"github.com/chazu/slate/compiler"
	"github.com/chazu/slate/ir"
)

// Renumber reassigns locals densely in order of first definition. The
// receiver and arguments keep indices 0..NumArgs. A local read before its
// definition or defined twice is an internal error.
func Renumber(p *ir.Proc) (*ir.Proc, error) {
	mapping := make(map[int]int)
	for i := 0; i <= p.NumArgs; i++ {
		mapping[i] = i
	}
	next := p.NumArgs + 1

	out := make([]ir.Instr, len(p.Instrs))
	for i, in := range p.Instrs {
		if len(in.Args) > 0 {
			args := make([]int, len(in.Args))
			for j, a := range in.Args {
				n, ok := mapping[a]
				if !ok {
					return nil, compiler.Internalf("%s: %%%d read before definition at %d", p.Label, a, i)
				}
				args[j] = n
			}
			in.Args = args
		}
		if in.Dest != ir.NoLocal {
			if _, ok := mapping[in.Dest]; ok {
				return nil, compiler.Internalf("%s: %%%d defined twice at %d", p.Label, in.Dest, i)
			}
			mapping[in.Dest] = next
			in.Dest = next
			next++
		}
		out[i] = in
	}

	q := clone(p, out)
	q.NumLocals = next
	return q, nil
}
