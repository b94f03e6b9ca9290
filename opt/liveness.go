package opt

import (
	"math/bits"
	"strconv"
	"strings"

	"github.com/chazu/slate/compiler"
	"github.com/chazu/slate/ir"
)

// ---------------------------------------------------------------------------
// Local sets
// ---------------------------------------------------------------------------

// Set is a set of local indices.
type Set struct {
	words []uint64
}

// Add inserts l.
func (s *Set) Add(l int) {
	w := l / 64
	for len(s.words) <= w {
		s.words = append(s.words, 0)
	}
	s.words[w] |= 1 << (uint(l) % 64)
}

// Remove deletes l.
func (s *Set) Remove(l int) {
	if w := l / 64; w < len(s.words) {
		s.words[w] &^= 1 << (uint(l) % 64)
	}
}

// Has reports whether l is in the set.
func (s Set) Has(l int) bool {
	w := l / 64
	return l >= 0 && w < len(s.words) && s.words[w]&(1<<(uint(l)%64)) != 0
}

// Len returns the number of members.
func (s Set) Len() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Locals returns the members in ascending order.
func (s Set) Locals() []int {
	var out []int
	for i, w := range s.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			out = append(out, i*64+b)
			w &^= 1 << uint(b)
		}
	}
	return out
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	return Set{words: append([]uint64(nil), s.words...)}
}

// Equal reports whether both sets hold the same locals.
func (s Set) Equal(o Set) bool {
	n := len(s.words)
	if len(o.words) > n {
		n = len(o.words)
	}
	for i := 0; i < n; i++ {
		var a, b uint64
		if i < len(s.words) {
			a = s.words[i]
		}
		if i < len(o.words) {
			b = o.words[i]
		}
		if a != b {
			return false
		}
	}
	return true
}

func (s Set) String() string {
	parts := make([]string, 0, s.Len())
	for _, l := range s.Locals() {
		parts = append(parts, "%"+strconv.Itoa(l))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// ---------------------------------------------------------------------------
// Liveness
// ---------------------------------------------------------------------------

// Live holds the live sets around every instruction of a procedure.
type Live struct {
	Before []Set
	After  []Set
}

// Liveness computes live sets with one backward pass. An instruction's
// destination is never in its Before set and is in its After set only if a
// later instruction reads it. Methods are straight-line code, so one pass is
// exact. Reading a local that is neither an argument nor defined earlier is
// an internal error.
func Liveness(p *ir.Proc) (*Live, error) {
	n := len(p.Instrs)
	live := &Live{Before: make([]Set, n), After: make([]Set, n)}

	var cur Set
	for i := n - 1; i >= 0; i-- {
		in := &p.Instrs[i]
		live.After[i] = cur.Clone()
		if d := in.Defines(); d != ir.NoLocal {
			cur.Remove(d)
		}
		for _, a := range in.Uses() {
			cur.Add(a)
		}
		live.Before[i] = cur.Clone()
	}

	for _, l := range cur.Locals() {
		if l > p.NumArgs {
			return nil, compiler.Internalf("%s: %%%d live on entry but not an argument", p.Label, l)
		}
	}
	return live, nil
}
