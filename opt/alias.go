package opt

import "github.com/chazu/slate/ir"

// EliminateAliases removes ALIAS instructions, rewriting every later use of
// an alias to its transitively resolved source.
func EliminateAliases(p *ir.Proc) *ir.Proc {
	subst := make(map[int]int)
	resolve := func(l int) int {
		for {
			s, ok := subst[l]
			if !ok {
				return l
			}
			l = s
		}
	}

	out := make([]ir.Instr, 0, len(p.Instrs))
	for _, in := range p.Instrs {
		if in.Op == ir.OpAlias {
			subst[in.Dest] = resolve(in.Args[0])
			continue
		}
		if len(in.Args) > 0 {
			args := make([]int, len(in.Args))
			for i, a := range in.Args {
				args[i] = resolve(a)
			}
			in.Args = args
		}
		out = append(out, in)
	}
	return clone(p, out)
}
