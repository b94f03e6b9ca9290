// Package dispatch builds the per-selector dispatchers that pick a method by
// the receiver's tag.
//
// The implementer set of every selector is known when the program is
// compiled, so a dispatcher is a binary search over the sorted implementer
// tags instead of a table lookup. Each decision node compares the receiver's
// tag with the median implementer of its range; leaves call the remaining
// implementer, guarded by an equality test unless the range of tags that can
// reach the leaf has collapsed to that single tag.
package dispatch

import (
	"fmt"
	"slices"
	"strings"

	"github.com/chazu/slate/compiler"
	"github.com/chazu/slate/value"
)

// Kind is the kind of a decision node.
type Kind uint8

const (
	Fail   Kind = iota // signal NotUnderstood
	Call               // call Label unconditionally
	Guard              // call Label if the tag equals Tag, else fail
	Branch             // tag <= Tag ? Low : High
)

func (k Kind) String() string {
	switch k {
	case Fail:
		return "fail"
	case Call:
		return "call"
	case Guard:
		return "guard"
	case Branch:
		return "branch"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Node is a decision tree node.
type Node struct {
	Kind      Kind
	Tag       value.Tag
	Label     string
	Low, High *Node
}

// Resolve walks the tree for a receiver tag and returns the method label it
// ends at, or false if the receiver does not understand the selector.
func (n *Node) Resolve(tag value.Tag) (string, bool) {
	for {
		switch n.Kind {
		case Call:
			return n.Label, true
		case Guard:
			if tag == n.Tag {
				return n.Label, true
			}
			return "", false
		case Branch:
			if tag <= n.Tag {
				n = n.Low
			} else {
				n = n.High
			}
		default:
			return "", false
		}
	}
}

// Depth is the number of comparisons on the longest path.
func (n *Node) Depth() int {
	switch n.Kind {
	case Branch:
		return 1 + max(n.Low.Depth(), n.High.Depth())
	case Guard:
		return 1
	}
	return 0
}

// String renders the tree one node per line, children indented.
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb, 0)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	switch n.Kind {
	case Fail:
		sb.WriteString("not understood\n")
	case Call:
		fmt.Fprintf(sb, "call %s\n", n.Label)
	case Guard:
		fmt.Fprintf(sb, "if tag == %d call %s\n", n.Tag, n.Label)
	case Branch:
		fmt.Fprintf(sb, "if tag <= %d\n", n.Tag)
		n.Low.write(sb, depth+1)
		n.High.write(sb, depth+1)
	}
}

// ---------------------------------------------------------------------------
// Dispatchers
// ---------------------------------------------------------------------------

// Dispatcher is the dispatch code of one selector.
type Dispatcher struct {
	Selector value.Selector
	Label    string
	Tags     []value.Tag

	// Tree calls implementers directly where the tag range allows it.
	Tree *Node

	// Lookup answers which method a tag would run, always guarded, for
	// method-not-found diagnostics.
	Lookup *Node
}

// Generate builds the dispatcher for sel over its implementer tags. Tags
// need not be sorted but must be distinct and dispatchable. Receivers with
// the constant tag are remapped into the constant range before the search,
// so constant implementers are listed by their ConstantTag.
func Generate(sel value.Selector, tags []value.Tag) (*Dispatcher, error) {
	sorted := slices.Clone(tags)
	slices.Sort(sorted)
	for i, t := range sorted {
		if t > value.MaxTag || t == value.TagConstant {
			return nil, compiler.Internalf("%s: tag %d cannot be dispatched on", sel, t)
		}
		if i > 0 && sorted[i-1] == t {
			return nil, compiler.Internalf("%s: tag %d implemented twice", sel, t)
		}
	}

	return &Dispatcher{
		Selector: sel,
		Label:    sel.DispatcherLabel(),
		Tags:     sorted,
		Tree:     build(sel, sorted, 0, value.MaxTag, false),
		Lookup:   build(sel, sorted, 0, value.MaxTag, true),
	}, nil
}

// build returns the decision tree for tags, all of which lie in [lo, hi],
// the range of receiver tags that can reach this node.
func build(sel value.Selector, tags []value.Tag, lo, hi value.Tag, guarded bool) *Node {
	switch len(tags) {
	case 0:
		return &Node{Kind: Fail}
	case 1:
		t := tags[0]
		if !guarded && lo == t && hi == t {
			return &Node{Kind: Call, Tag: t, Label: sel.MethodLabel(t)}
		}
		return &Node{Kind: Guard, Tag: t, Label: sel.MethodLabel(t)}
	}

	mid := (len(tags) - 1) / 2
	pivot := tags[mid]
	return &Node{
		Kind: Branch,
		Tag:  pivot,
		Low:  build(sel, tags[:mid+1], lo, pivot, guarded),
		High: build(sel, tags[mid+1:], pivot+1, hi, guarded),
	}
}

// Dispatch returns the method a receiver value would run.
func (d *Dispatcher) Dispatch(v value.Value) (string, bool) {
	return d.Tree.Resolve(v.DispatchTag())
}

// Understands reports whether sel has an implementer for tag.
func (d *Dispatcher) Understands(tag value.Tag) bool {
	_, ok := slices.BinarySearch(d.Tags, tag)
	return ok
}

// Empty reports whether every receiver fails with NotUnderstood.
func (d *Dispatcher) Empty() bool {
	return len(d.Tags) == 0
}
