package codegen

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/chazu/slate/dispatch"
	"github.com/chazu/slate/ir"
	"github.com/chazu/slate/program"
)

// Listing writes a human-readable assembly listing.
type Listing struct {
	w   *bufio.Writer
	err error
}

// NewListing creates a listing backend writing to w.
func NewListing(w io.Writer) *Listing {
	return &Listing{w: bufio.NewWriter(w)}
}

func (l *Listing) printf(format string, args ...any) {
	if l.err == nil {
		_, l.err = fmt.Fprintf(l.w, format, args...)
	}
}

func (l *Listing) instr(in *ir.Instr) error {
	l.printf("    %s\n", in)
	return l.err
}

func (l *Listing) Begin(t *program.CodeTable) error {
	l.printf("; slate listing\n")
	l.printf("; machine: %d registers, %d argument registers\n", t.Machine.Registers, t.Machine.ArgRegisters)
	for _, w := range t.Warnings {
		l.printf("; warning: %s\n", w)
	}

	if len(t.Strings) > 0 {
		l.printf("\nsection strings\n")
		for i, s := range t.Strings {
			l.printf("    #%d %q\n", i, s)
		}
	}
	if len(t.Tracebacks) > 0 {
		l.printf("\nsection tracebacks\n")
		for _, tb := range t.Tracebacks {
			l.printf("    @%d %s %s:%d:%d\n", tb.Index, tb.Method, tb.File, tb.Line, tb.Column)
			l.printf("        | %s\n", tb.Text)
			l.printf("        | %s%s\n", strings.Repeat(" ", max(tb.Column-1, 0)), strings.Repeat("^", tb.Length))
		}
	}

	l.printf("\nsection blocks\n")
	for _, b := range t.Blocks {
		kind := "heap"
		if b.Constant {
			kind = fmt.Sprintf("constant #%d", b.ConstID)
		}
		l.printf("    block%d tag=%d slots=%d %s\n", b.Block, b.Tag, b.Slots, kind)
	}

	l.printf("\nsection code\n")
	return l.err
}

func (l *Listing) End() error {
	if l.err != nil {
		return l.err
	}
	return l.w.Flush()
}

func (l *Listing) BeginProc(p *ir.Proc) error {
	l.printf("\n%s: ; %s args=%d frame=%d\n", p.Label, p.Name, p.NumArgs, p.FrameSize)
	return l.err
}

func (l *Listing) EndProc(p *ir.Proc) error { return l.err }

func (l *Listing) Alloc(in *ir.Instr) error      { return l.instr(in) }
func (l *Listing) Call(in *ir.Instr) error       { return l.instr(in) }
func (l *Listing) LoadValue(in *ir.Instr) error  { return l.instr(in) }
func (l *Listing) LoadString(in *ir.Instr) error { return l.instr(in) }
func (l *Listing) GetSlot(in *ir.Instr) error    { return l.instr(in) }
func (l *Listing) SetSlot(in *ir.Instr) error    { return l.instr(in) }
func (l *Listing) Return(in *ir.Instr) error     { return l.instr(in) }
func (l *Listing) Concat(in *ir.Instr) error     { return l.instr(in) }
func (l *Listing) Array(in *ir.Instr) error      { return l.instr(in) }
func (l *Listing) SetElem(in *ir.Instr) error    { return l.instr(in) }
func (l *Listing) Spill(in *ir.Instr) error      { return l.instr(in) }
func (l *Listing) Reload(in *ir.Instr) error     { return l.instr(in) }
func (l *Listing) Clear(in *ir.Instr) error      { return l.instr(in) }
func (l *Listing) Move(in *ir.Instr) error       { return l.instr(in) }
func (l *Listing) Push(in *ir.Instr) error       { return l.instr(in) }

func (l *Listing) BeginDispatcher(d *dispatch.Dispatcher) error {
	l.printf("\n%s: ; %s implementers=%v\n", d.Label, d.Selector, d.Tags)
	l.printf("    tag = dispatch_tag r0\n")
	return l.err
}

func (l *Listing) DispatchNode(n *dispatch.Node, depth int) error {
	indent := strings.Repeat("  ", depth+2)
	switch n.Kind {
	case dispatch.Fail:
		l.printf("%snot understood\n", indent)
	case dispatch.Call:
		l.printf("%sjump %s\n", indent, n.Label)
	case dispatch.Guard:
		l.printf("%sif tag == %d jump %s else not understood\n", indent, n.Tag, n.Label)
	case dispatch.Branch:
		l.printf("%sif tag <= %d\n", indent, n.Tag)
	}
	return l.err
}

func (l *Listing) EndDispatcher(d *dispatch.Dispatcher) error { return l.err }
