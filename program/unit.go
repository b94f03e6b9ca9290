// Package program compiles a whole program: it owns the per-unit tables
// (tag and constant allocation, tracebacks, strings, selectors), decides
// which methods are reachable and assembles the code table.
package program

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/slate/builtin"
	"github.com/chazu/slate/compiler"
	"github.com/chazu/slate/opt"
	"github.com/chazu/slate/value"
)

var log = commonlog.GetLogger("slate.program")

// Source is one input file.
type Source struct {
	File string
	Text string
}

// Options configure a compilation.
type Options struct {
	Machine  opt.Machine
	Builtins *builtin.Registry
}

// Traceback describes one call site for runtime backtraces.
type Traceback struct {
	Index  int    `cbor:"1,keyasint"`
	Method string `cbor:"2,keyasint"`
	File   string `cbor:"3,keyasint"`
	Line   int    `cbor:"4,keyasint"`
	Column int    `cbor:"5,keyasint"`
	Text   string `cbor:"6,keyasint"`
	Length int    `cbor:"7,keyasint"` // underline length
}

type traceKey struct {
	file         string
	line, column int
}

// Unit is the state of one compilation. It is not safe for concurrent use.
type Unit struct {
	Tree     *compiler.Tree
	Builtins *builtin.Registry
	Machine  opt.Machine

	nextTag   value.Tag
	nextConst int

	traces     []Traceback
	traceIndex map[traceKey]int

	strs     []string
	strIndex map[string]int

	selectors *value.SelectorTable
}

// NewUnit creates an empty compilation unit.
func NewUnit(opts Options) *Unit {
	if opts.Builtins == nil {
		opts.Builtins = builtin.Default()
	}
	if opts.Machine == (opt.Machine{}) {
		opts.Machine = opt.DefaultMachine
	}
	return &Unit{
		Tree:       compiler.NewTree(),
		Builtins:   opts.Builtins,
		Machine:    opts.Machine,
		nextTag:    value.FirstBlockTag,
		nextConst:  value.FirstUserConstant,
		traceIndex: make(map[traceKey]int),
		strIndex:   make(map[string]int),
		selectors:  value.NewSelectorTable(),
	}
}

// ---------------------------------------------------------------------------
// Tag and constant allocation
// ---------------------------------------------------------------------------

// assignTags numbers every block: constant blocks get constant ids, the
// rest get heap tags. Block tags must stay below the constant range and
// constant ids must map below the reserved tag.
func (u *Unit) assignTags() error {
	for _, b := range u.Tree.Blocks {
		if b.Constant {
			if u.nextConst > value.MaxConstantID {
				return compiler.ProgramShapeError.New("too many constant blocks: constant ids exhausted at %d", u.nextConst)
			}
			b.ConstID = u.nextConst
			u.nextConst++
			continue
		}
		if u.nextTag > value.MaxBlockTag {
			return compiler.ProgramShapeError.New("too many block shapes: tags exhausted at %d", u.nextTag)
		}
		b.Tag = u.nextTag
		u.nextTag++
	}
	return nil
}

// ---------------------------------------------------------------------------
// ir.Env
// ---------------------------------------------------------------------------

// Infallible reports whether a built-in method never fails.
func (u *Unit) Infallible(tag value.Tag, sel value.Selector) bool {
	return u.Builtins.Infallible(tag, sel)
}

// Traceback returns the traceback index for a call site, deduplicated by
// source position.
func (u *Unit) Traceback(m *compiler.Method, span compiler.Span) int {
	start := span.Start
	key := traceKey{start.File, start.Line, start.Column}
	if i, ok := u.traceIndex[key]; ok {
		return i
	}

	text := u.Tree.SourceLine(start.File, start.Line)
	length := 1
	switch {
	case span.End.Line == start.Line && span.End.Column > start.Column:
		length = span.End.Column - start.Column
	case span.End.Line > start.Line && len(text) >= start.Column:
		length = len(text) - start.Column + 1
	}

	i := len(u.traces)
	u.traces = append(u.traces, Traceback{
		Index:  i,
		Method: u.Tree.Name(m),
		File:   start.File,
		Line:   start.Line,
		Column: start.Column,
		Text:   text,
		Length: length,
	})
	u.traceIndex[key] = i
	return i
}

// InternString returns the string table index of s.
func (u *Unit) InternString(s string) int {
	if i, ok := u.strIndex[s]; ok {
		return i
	}
	i := len(u.strs)
	u.strs = append(u.strs, s)
	u.strIndex[s] = i
	return i
}
