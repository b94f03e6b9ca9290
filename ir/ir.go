// Package ir defines the three-address instruction set methods are lowered
// to, and the builder that lowers resolved method bodies.
package ir

import (
	"fmt"
	"strings"

	"github.com/chazu/slate/value"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Op is an instruction kind.
type Op uint8

// Builder output
const (
	OpAlloc      Op = iota // Dest = new instance of Tag with N slots
	OpCall                 // Dest = Label(Args...)
	OpLoadValue            // Dest = Value
	OpLoadString           // Dest = string literal N (Str)
	OpGetSlot              // Dest = Args[0].slot[N]
	OpSetSlot              // Args[0].slot[N] = Args[1]
	OpReturn               // return Args[0]
	OpConcat               // Dest = Args[0] , Args[1] , ...
	OpArray                // Dest = new array of N elements
	OpSetElem              // Args[0][N] = Args[1]
	OpAlias                // Dest names the same value as Args[0]
)

// Inserted by the optimizer
const (
	OpSpill  Op = iota + 0x20 // stack slot N = Args[0]
	OpReload                  // Dest = stack slot N
	OpClear                   // stack slot N no longer holds a root
	OpMove                    // DestLoc = ArgLocs[0]
	OpPush                    // push ArgLocs[0] as an outgoing stack argument
)

// OpInfo describes an opcode.
type OpInfo struct {
	Name string
	Leaf bool // never calls out, so registers survive it
}

var opTable = map[Op]OpInfo{
	OpAlloc:      {"ALLOC", false},
	OpCall:       {"CALL", false},
	OpLoadValue:  {"LOAD_VALUE", true},
	OpLoadString: {"LOAD_STRING", true},
	OpGetSlot:    {"GET_SLOT", true},
	OpSetSlot:    {"SET_SLOT", true},
	OpReturn:     {"RETURN", true},
	OpConcat:     {"CONCAT", false},
	OpArray:      {"ARRAY", false},
	OpSetElem:    {"SET_ELEM", true},
	OpAlias:      {"ALIAS", true},

	OpSpill:  {"SPILL", true},
	OpReload: {"RELOAD", true},
	OpClear:  {"CLEAR", true},
	OpMove:   {"MOVE", true},
	OpPush:   {"PUSH", true},
}

// Info returns the metadata for an opcode.
func (op Op) Info() OpInfo {
	if info, ok := opTable[op]; ok {
		return info
	}
	return OpInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// String implements the Stringer interface.
func (op Op) String() string {
	return op.Info().Name
}

// IsLeaf reports whether op keeps the register file intact.
func (op Op) IsLeaf() bool {
	return op.Info().Leaf
}

// ---------------------------------------------------------------------------
// Locations
// ---------------------------------------------------------------------------

// LocKind says where a value lives after allocation.
type LocKind uint8

const (
	LocNone  LocKind = iota
	LocReg           // physical register
	LocStack         // slot in the method's own frame
	LocArg           // incoming stack argument in the caller's frame
)

// Loc is a physical location.
type Loc struct {
	Kind  LocKind
	Index int
}

// Reg returns the location of register r.
func Reg(r int) Loc { return Loc{Kind: LocReg, Index: r} }

// Stack returns the location of frame slot s.
func Stack(s int) Loc { return Loc{Kind: LocStack, Index: s} }

// Arg returns the location of incoming stack argument a.
func Arg(a int) Loc { return Loc{Kind: LocArg, Index: a} }

func (l Loc) String() string {
	switch l.Kind {
	case LocReg:
		return fmt.Sprintf("r%d", l.Index)
	case LocStack:
		return fmt.Sprintf("[sp+%d]", l.Index)
	case LocArg:
		return fmt.Sprintf("[arg+%d]", l.Index)
	}
	return "-"
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// NoLocal marks an instruction without destination.
const NoLocal = -1

// NoTrace marks a call without traceback entry.
const NoTrace = -1

// Instr is one instruction. Dest and Args name virtual locals; DestLoc and
// ArgLocs are filled in by register allocation.
type Instr struct {
	Op    Op
	Dest  int
	Args  []int
	Label string
	Value value.Value
	Tag   value.Tag
	N     int
	Str   string

	// Calls only.
	Trace     int
	Unchecked bool
	StackArgs int

	DestLoc Loc
	ArgLocs []Loc
}

// Uses returns the locals read by the instruction.
func (in *Instr) Uses() []int {
	return in.Args
}

// Defines returns the local written, or NoLocal.
func (in *Instr) Defines() int {
	return in.Dest
}

func (in Instr) String() string {
	var sb strings.Builder
	if in.Dest != NoLocal || in.DestLoc.Kind != LocNone {
		sb.WriteString(operand(in.Dest, in.DestLoc))
		sb.WriteString(" = ")
	}
	sb.WriteString(in.Op.String())

	switch in.Op {
	case OpCall:
		fmt.Fprintf(&sb, " %s", in.Label)
	case OpLoadValue:
		fmt.Fprintf(&sb, " %s", in.Value)
	case OpLoadString:
		fmt.Fprintf(&sb, " #%d %q", in.N, in.Str)
	case OpAlloc:
		fmt.Fprintf(&sb, " tag=%d slots=%d", in.Tag, in.N)
	case OpArray:
		fmt.Fprintf(&sb, " len=%d", in.N)
	case OpGetSlot, OpSetSlot, OpSetElem:
		fmt.Fprintf(&sb, " [%d]", in.N)
	case OpSpill, OpReload, OpClear:
		fmt.Fprintf(&sb, " [sp+%d]", in.N)
	}

	for i, a := range in.Args {
		loc := Loc{}
		if i < len(in.ArgLocs) {
			loc = in.ArgLocs[i]
		}
		sb.WriteByte(' ')
		sb.WriteString(operand(a, loc))
	}
	if len(in.Args) == 0 {
		for _, loc := range in.ArgLocs {
			sb.WriteByte(' ')
			sb.WriteString(loc.String())
		}
	}

	if in.Op == OpCall {
		if in.StackArgs > 0 {
			fmt.Fprintf(&sb, " stack=%d", in.StackArgs)
		}
		if in.Trace != NoTrace {
			fmt.Fprintf(&sb, " @%d", in.Trace)
		}
		if in.Unchecked {
			sb.WriteString(" unchecked")
		}
	}
	return sb.String()
}

func operand(local int, loc Loc) string {
	switch {
	case local == NoLocal:
		return loc.String()
	case loc.Kind == LocNone:
		return fmt.Sprintf("%%%d", local)
	default:
		return fmt.Sprintf("%%%d(%s)", local, loc)
	}
}

// ---------------------------------------------------------------------------
// Procedures
// ---------------------------------------------------------------------------

// Proc is the instruction list of one method. Local 0 is the receiver and
// locals 1..NumArgs are the arguments.
type Proc struct {
	Label     string
	Name      string
	NumArgs   int
	NumLocals int
	Instrs    []Instr

	// FrameSize is the number of stack slots, set by allocation.
	FrameSize int
}

// String renders the procedure as a listing.
func (p *Proc) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: ; %s args=%d locals=%d frame=%d\n", p.Label, p.Name, p.NumArgs, p.NumLocals, p.FrameSize)
	for _, in := range p.Instrs {
		sb.WriteString("    ")
		sb.WriteString(in.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
