// Package builtin describes the built-in environment: the methods the runtime
// provides for primitive and heap types, keyed by (type name, selector).
package builtin

import (
	"sort"

	"github.com/chazu/slate/compiler"
	"github.com/chazu/slate/value"
)

// Flags modify a built-in method declaration.
type Flags uint8

const (
	// Infallible methods never return an error value, so calls to them are
	// emitted unchecked.
	Infallible Flags = 1 << iota

	// Implicit makes the type's singleton answer the selector when it is
	// sent without receiver and no enclosing block defines it. Only
	// constant types (System, Nil) have a singleton.
	Implicit
)

// Method is one built-in method.
type Method struct {
	TypeName   string
	Tag        value.Tag
	Selector   value.Selector
	Infallible bool

	// Sends lists the selectors the method may itself send. Their
	// dispatchers must exist whenever the method is reachable.
	Sends []value.Selector
}

// Label returns the procedure label the runtime provides for m.
func (m *Method) Label() string {
	return m.Selector.MethodLabel(m.Tag)
}

type key struct {
	tag value.Tag
	sel value.Selector
}

// Registry is the set of built-in methods of one compilation.
type Registry struct {
	tags     map[string]value.Tag
	methods  map[key]*Method
	implicit map[value.Selector]value.Value
}

// NewRegistry creates an empty registry that knows the primitive type names.
func NewRegistry() *Registry {
	tags := make(map[string]value.Tag, len(value.PrimitiveTags))
	for name, tag := range value.PrimitiveTags {
		tags[name] = tag
	}
	return &Registry{
		tags:     tags,
		methods:  make(map[key]*Method),
		implicit: make(map[value.Selector]value.Value),
	}
}

// Define declares selector on the named type. Referencing a type the value
// model does not know is a program-shape error.
func (r *Registry) Define(typeName, selector string, flags Flags, sends ...string) error {
	tag, ok := r.tags[typeName]
	if !ok {
		return compiler.ProgramShapeError.New("built-in method %s>>%s refers to unknown type", typeName, selector)
	}
	sel := value.ParseSelector(selector)
	if _, dup := r.methods[key{tag, sel}]; dup {
		return compiler.ProgramShapeError.New("built-in method %s>>%s defined twice", typeName, selector)
	}

	m := &Method{
		TypeName:   typeName,
		Tag:        tag,
		Selector:   sel,
		Infallible: flags&Infallible != 0,
	}
	for _, s := range sends {
		m.Sends = append(m.Sends, value.ParseSelector(s))
	}
	r.methods[key{tag, sel}] = m

	if flags&Implicit != 0 {
		if !value.IsConstantTag(tag) {
			return compiler.ProgramShapeError.New("built-in type %s has no singleton to answer %s", typeName, selector)
		}
		r.implicit[sel] = value.FromConstant(int(tag - value.ConstantBase))
	}
	return nil
}

// Lookup returns the built-in method for (tag, sel).
func (r *Registry) Lookup(tag value.Tag, sel value.Selector) (*Method, bool) {
	m, ok := r.methods[key{tag, sel}]
	return m, ok
}

// Implements reports whether built-in type tag implements sel.
func (r *Registry) Implements(tag value.Tag, sel value.Selector) bool {
	_, ok := r.methods[key{tag, sel}]
	return ok
}

// ImplicitReceiver returns the singleton answering an implicit send of sel.
func (r *Registry) ImplicitReceiver(sel value.Selector) (value.Value, bool) {
	v, ok := r.implicit[sel]
	return v, ok
}

// Infallible reports whether the built-in (tag, sel) never fails.
func (r *Registry) Infallible(tag value.Tag, sel value.Selector) bool {
	m, ok := r.methods[key{tag, sel}]
	return ok && m.Infallible
}

// Implementers returns the sorted tags of built-in types implementing sel.
func (r *Registry) Implementers(sel value.Selector) []value.Tag {
	var tags []value.Tag
	for k := range r.methods {
		if k.sel == sel {
			tags = append(tags, k.tag)
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Methods returns every built-in method ordered by tag, then selector label.
func (r *Registry) Methods() []*Method {
	out := make([]*Method, 0, len(r.methods))
	for _, m := range r.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tag != out[j].Tag {
			return out[i].Tag < out[j].Tag
		}
		return out[i].Selector.Label() < out[j].Selector.Label()
	})
	return out
}

// Len returns the number of built-in methods.
func (r *Registry) Len() int {
	return len(r.methods)
}

var _ compiler.Builtins = (*Registry)(nil)
