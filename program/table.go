package program

import (
	"sort"

	"github.com/chazu/slate/dispatch"
	"github.com/chazu/slate/ir"
	"github.com/chazu/slate/opt"
	"github.com/chazu/slate/value"
)

// Implementation is the method a tag runs for a selector. Built-in methods
// are provided by the runtime and carry no procedure.
type Implementation struct {
	Tag     value.Tag `cbor:"1,keyasint"`
	Label   string    `cbor:"2,keyasint"`
	Builtin bool      `cbor:"3,keyasint"`
	Proc    *ir.Proc  `cbor:"4,keyasint,omitempty"`
}

// MethodSet lists the implementations of one selector in ascending tag
// order.
type MethodSet struct {
	Selector value.Selector   `cbor:"1,keyasint"`
	Methods  []Implementation `cbor:"2,keyasint"`
}

// BlockInfo records the numbering of one block.
type BlockInfo struct {
	Block    int       `cbor:"1,keyasint"`
	Constant bool      `cbor:"2,keyasint"`
	Tag      value.Tag `cbor:"3,keyasint"` // dispatch tag
	ConstID  int       `cbor:"4,keyasint"`
	Slots    int       `cbor:"5,keyasint"`
}

// CodeTable is the output of a compilation. It is read-only once Compile
// returns.
type CodeTable struct {
	Entry       *ir.Proc               `cbor:"1,keyasint"`
	Methods     []MethodSet            `cbor:"2,keyasint"`
	Dispatchers []*dispatch.Dispatcher `cbor:"3,keyasint"`
	Blocks      []BlockInfo            `cbor:"4,keyasint"`
	Tracebacks  []Traceback            `cbor:"5,keyasint"`
	Strings     []string               `cbor:"6,keyasint"`
	Selectors   []value.Selector       `cbor:"7,keyasint"`
	Machine     opt.Machine            `cbor:"8,keyasint"`
	Warnings    []string               `cbor:"9,keyasint"`
}

// MethodSet returns the implementations of sel.
func (t *CodeTable) MethodSet(sel value.Selector) (*MethodSet, bool) {
	label := sel.Label()
	i := sort.Search(len(t.Methods), func(i int) bool {
		return t.Methods[i].Selector.Label() >= label
	})
	if i < len(t.Methods) && t.Methods[i].Selector == sel {
		return &t.Methods[i], true
	}
	return nil, false
}

// Lookup returns the implementation of sel for tag.
func (t *CodeTable) Lookup(sel value.Selector, tag value.Tag) (*Implementation, bool) {
	set, ok := t.MethodSet(sel)
	if !ok {
		return nil, false
	}
	i := sort.Search(len(set.Methods), func(i int) bool {
		return set.Methods[i].Tag >= tag
	})
	if i < len(set.Methods) && set.Methods[i].Tag == tag {
		return &set.Methods[i], true
	}
	return nil, false
}

// Dispatcher returns the dispatcher of sel, if the program sends it
// dynamically.
func (t *CodeTable) Dispatcher(sel value.Selector) (*dispatch.Dispatcher, bool) {
	label := sel.DispatcherLabel()
	i := sort.Search(len(t.Dispatchers), func(i int) bool {
		return t.Dispatchers[i].Label >= label
	})
	if i < len(t.Dispatchers) && t.Dispatchers[i].Label == label {
		return t.Dispatchers[i], true
	}
	return nil, false
}

// Procs returns every compiled procedure, the entry first.
func (t *CodeTable) Procs() []*ir.Proc {
	procs := []*ir.Proc{t.Entry}
	for _, set := range t.Methods {
		for _, impl := range set.Methods {
			if impl.Proc != nil {
				procs = append(procs, impl.Proc)
			}
		}
	}
	return procs
}
