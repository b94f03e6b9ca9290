package program

import (
	"fmt"
	"sort"

	"github.com/chazu/slate/builtin"
	"github.com/chazu/slate/compiler"
	"github.com/chazu/slate/dispatch"
	"github.com/chazu/slate/ir"
	"github.com/chazu/slate/opt"
	"github.com/chazu/slate/value"
)

// Compile parses, resolves and compiles sources as one program.
func Compile(sources []Source, opts Options) (*CodeTable, error) {
	u := NewUnit(opts)
	for _, src := range sources {
		if err := u.Parse(src); err != nil {
			return nil, err
		}
	}
	return u.Compile()
}

// Parse adds a source file to the unit.
func (u *Unit) Parse(src Source) error {
	return compiler.Parse(u.Tree, src.File, src.Text)
}

// Compile resolves the parsed program and builds its code table. The first
// error aborts the whole unit.
func (u *Unit) Compile() (*CodeTable, error) {
	if err := u.Machine.Validate(); err != nil {
		return nil, err
	}
	if err := compiler.Resolve(u.Tree, u.Builtins); err != nil {
		return nil, err
	}
	if err := u.assignTags(); err != nil {
		return nil, err
	}

	var warnings []string
	for _, w := range compiler.Analyze(u.Tree) {
		log.Warning(w.String())
		warnings = append(warnings, w.String())
	}

	r, err := u.reach()
	if err != nil {
		return nil, err
	}

	table := &CodeTable{Machine: u.Machine, Warnings: warnings}

	sets := make(map[value.Selector][]Implementation)
	for _, id := range r.methodOrder() {
		m := u.Tree.Method(id)
		p, err := u.compileMethod(m)
		if err != nil {
			return nil, err
		}
		if id == u.Tree.Entry {
			table.Entry = p
			continue
		}
		tag := u.Tree.Block(m.Block).DispatchTag()
		sets[m.Selector] = append(sets[m.Selector], Implementation{Tag: tag, Label: p.Label, Proc: p})
	}
	for _, bm := range r.builtinOrder() {
		sets[bm.Selector] = append(sets[bm.Selector], Implementation{Tag: bm.Tag, Label: bm.Label(), Builtin: true})
	}

	for _, sel := range sortedSelectors(sets) {
		impls := sets[sel]
		sort.Slice(impls, func(i, j int) bool { return impls[i].Tag < impls[j].Tag })
		table.Methods = append(table.Methods, MethodSet{Selector: sel, Methods: impls})
		u.selectors.Intern(sel)
	}

	for _, sel := range sortedSelectors(r.dispatched) {
		d, err := dispatch.Generate(sel, u.implementers(sel))
		if err != nil {
			return nil, err
		}
		if d.Empty() {
			msg := fmt.Sprintf("selector %s has no implementers; sending it always fails with NotUnderstood", sel)
			log.Warning(msg)
			table.Warnings = append(table.Warnings, msg)
		}
		log.Debugf("%s: %d implementers, depth %d", d.Label, len(d.Tags), d.Tree.Depth())
		table.Dispatchers = append(table.Dispatchers, d)
		u.selectors.Intern(sel)
	}

	for _, b := range u.Tree.Blocks {
		table.Blocks = append(table.Blocks, BlockInfo{
			Block:    int(b.ID),
			Constant: b.Constant,
			Tag:      b.DispatchTag(),
			ConstID:  b.ConstID,
			Slots:    len(b.Slots),
		})
	}
	table.Tracebacks = u.traces
	table.Strings = u.strs
	table.Selectors = u.selectors.All()

	log.Infof("compiled %d methods, %d dispatchers, %d blocks", len(r.methods), len(table.Dispatchers), len(table.Blocks))
	return table, nil
}

func (u *Unit) compileMethod(m *compiler.Method) (*ir.Proc, error) {
	p, err := ir.Generate(u.Tree, m, u)
	if err != nil {
		return nil, err
	}
	p, err = opt.Pipeline(p, u.Machine)
	if err != nil {
		return nil, err
	}
	log.Debugf("%s (%s): %d instructions, frame %d", p.Label, p.Name, len(p.Instrs), p.FrameSize)
	return p, nil
}

// implementers returns the dispatch tags of every user block and built-in
// type implementing sel.
func (u *Unit) implementers(sel value.Selector) []value.Tag {
	tags := u.Builtins.Implementers(sel)
	for _, b := range u.Tree.Blocks {
		if _, ok := u.Tree.FindMethod(b.ID, sel); ok {
			tags = append(tags, b.DispatchTag())
		}
	}
	return tags
}

func sortedSelectors[V any](m map[value.Selector]V) []value.Selector {
	sels := make([]value.Selector, 0, len(m))
	for sel := range m {
		sels = append(sels, sel)
	}
	sort.Slice(sels, func(i, j int) bool { return sels[i].Label() < sels[j].Label() })
	return sels
}

// ---------------------------------------------------------------------------
// Reachability
// ---------------------------------------------------------------------------

type builtinKey struct {
	tag value.Tag
	sel value.Selector
}

// reachability is the set of code a program can run, starting from the
// entry procedure: methods called directly, every implementer of a selector
// sent dynamically and whatever built-in methods send in turn.
type reachability struct {
	u          *Unit
	bySelector map[value.Selector][]compiler.MethodID

	methods    map[compiler.MethodID]bool
	builtins   map[builtinKey]*builtin.Method
	dispatched map[value.Selector]bool
	work       []compiler.MethodID
}

func (u *Unit) reach() (*reachability, error) {
	r := &reachability{
		u:          u,
		bySelector: make(map[value.Selector][]compiler.MethodID),
		methods:    make(map[compiler.MethodID]bool),
		builtins:   make(map[builtinKey]*builtin.Method),
		dispatched: make(map[value.Selector]bool),
	}
	for _, m := range u.Tree.Methods {
		if m.Block != compiler.NoBlock {
			r.bySelector[m.Selector] = append(r.bySelector[m.Selector], m.ID)
		}
	}

	r.addMethod(u.Tree.Entry)
	for len(r.work) > 0 {
		id := r.work[len(r.work)-1]
		r.work = r.work[:len(r.work)-1]
		if err := r.scan(u.Tree.Method(id).Body); err != nil {
			return nil, err
		}
	}

	for _, m := range u.Tree.Methods {
		if !r.methods[m.ID] && !m.Synthetic {
			log.Debugf("%s is unreachable", u.Tree.Name(m))
		}
	}
	return r, nil
}

// scan visits the sends in e and in the slot initializers of every block
// it constructs.
func (r *reachability) scan(e compiler.Expr) error {
	var err error
	var visit func(compiler.Expr) bool
	visit = func(x compiler.Expr) bool {
		if err != nil {
			return false
		}
		switch n := x.(type) {
		case *compiler.Send:
			err = r.send(n)
		case *compiler.BlockLit:
			for _, s := range r.u.Tree.Block(n.Block).Slots {
				compiler.Inspect(s.Init, visit)
			}
		}
		return err == nil
	}
	compiler.Inspect(e, visit)
	return err
}

func (r *reachability) send(n *compiler.Send) error {
	switch n.Bind {
	case compiler.Static:
		m, ok := r.u.Tree.FindMethod(n.Target, n.Selector)
		if !ok {
			return compiler.Internalf("static send of %s to block %d without method", n.Selector, n.Target)
		}
		r.addMethod(m.ID)
	case compiler.Builtin:
		return r.addBuiltin(n.Tag, n.Selector)
	case compiler.Dynamic:
		return r.addSelector(n.Selector)
	default:
		return compiler.Internalf("unbound send of %s", n.Selector)
	}
	return nil
}

func (r *reachability) addMethod(id compiler.MethodID) {
	if r.methods[id] {
		return
	}
	r.methods[id] = true
	r.work = append(r.work, id)
}

func (r *reachability) addBuiltin(tag value.Tag, sel value.Selector) error {
	k := builtinKey{tag, sel}
	if _, ok := r.builtins[k]; ok {
		return nil
	}
	bm, ok := r.u.Builtins.Lookup(tag, sel)
	if !ok {
		return compiler.Internalf("send bound to missing built-in %d>>%s", tag, sel)
	}
	r.builtins[k] = bm
	for _, s := range bm.Sends {
		if err := r.addSelector(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *reachability) addSelector(sel value.Selector) error {
	if r.dispatched[sel] {
		return nil
	}
	r.dispatched[sel] = true
	for _, id := range r.bySelector[sel] {
		r.addMethod(id)
	}
	for _, tag := range r.u.Builtins.Implementers(sel) {
		if err := r.addBuiltin(tag, sel); err != nil {
			return err
		}
	}
	return nil
}

func (r *reachability) methodOrder() []compiler.MethodID {
	ids := make([]compiler.MethodID, 0, len(r.methods))
	for id := range r.methods {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *reachability) builtinOrder() []*builtin.Method {
	out := make([]*builtin.Method, 0, len(r.builtins))
	for _, bm := range r.builtins {
		out = append(out, bm)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tag != out[j].Tag {
			return out[i].Tag < out[j].Tag
		}
		return out[i].Selector.Label() < out[j].Selector.Label()
	})
	return out
}
