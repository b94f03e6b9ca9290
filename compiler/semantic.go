package compiler

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Semantic Analyzer: post-resolution checks that only warn
// ---------------------------------------------------------------------------

// Warning is a non-fatal diagnostic.
type Warning struct {
	Pos     Position
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s:%d:%d: %s", w.Pos.File, w.Pos.Line, w.Pos.Column, w.Message)
}

// SemanticAnalyzer looks for code that resolves but is probably wrong: let
// bindings nobody reads and values computed only to be dropped.
type SemanticAnalyzer struct {
	tree     *Tree
	warnings []Warning

	// per method
	lets map[int]*Let
	used map[int]bool
}

// NewSemanticAnalyzer creates an analyzer over a resolved tree.
func NewSemanticAnalyzer(tree *Tree) *SemanticAnalyzer {
	return &SemanticAnalyzer{tree: tree}
}

// Warnings returns the accumulated warnings in source order.
func (s *SemanticAnalyzer) Warnings() []Warning {
	sort.SliceStable(s.warnings, func(i, j int) bool {
		a, b := s.warnings[i].Pos, s.warnings[j].Pos
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Offset < b.Offset
	})
	return s.warnings
}

func (s *SemanticAnalyzer) warnAt(node Expr, format string, args ...any) {
	s.warnings = append(s.warnings, Warning{
		Pos:     node.Span().Start,
		Message: fmt.Sprintf(format, args...),
	})
}

// AnalyzeMethod checks one method body.
func (s *SemanticAnalyzer) AnalyzeMethod(m *Method) {
	if m.Synthetic {
		return
	}
	s.lets = make(map[int]*Let)
	s.used = make(map[int]bool)

	s.analyzeExpr(m.Body)

	for local, let := range s.lets {
		if !s.used[local] {
			s.warnAt(let, "%s declared and not used", let.Name)
		}
	}
}

func (s *SemanticAnalyzer) analyzeExpr(e Expr) {
	Inspect(e, func(x Expr) bool {
		switch n := x.(type) {
		case *Let:
			s.lets[n.Local] = n
		case *LocalRef:
			s.used[n.Index] = true
		case *Sequence:
			s.checkDiscarded(n)
		case *BlockLit:
			// Captured locals are read when the block is built.
			for _, slot := range s.tree.Block(n.Block).Slots {
				if slot.Kind == SlotCaptured {
					s.analyzeExpr(slot.Init)
				}
			}
		}
		return true
	})
}

// checkDiscarded warns about statements whose value is thrown away and
// which cannot have an effect.
func (s *SemanticAnalyzer) checkDiscarded(seq *Sequence) {
	for i, x := range seq.Exprs {
		if i == len(seq.Exprs)-1 {
			break
		}
		switch x.(type) {
		case *Number, *String, *Literal, *Self, *LocalRef, *ConstRef, *SlotRead:
			s.warnAt(x, "expression has no effect")
		}
	}
}

// Analyze runs the semantic checks over every method of a resolved tree.
func Analyze(tree *Tree) []Warning {
	s := NewSemanticAnalyzer(tree)
	for _, m := range tree.Methods {
		s.AnalyzeMethod(m)
	}
	return s.Warnings()
}
