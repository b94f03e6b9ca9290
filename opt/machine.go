// Package opt holds the per-method passes run between IR generation and code
// emission: alias elimination, renumbering, liveness, spill/stack allocation
// and call-boundary register shuffling.
package opt

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/slate/compiler"
	"github.com/chazu/slate/ir"
)

var log = commonlog.GetLogger("slate.opt")

// MinRegisters is the smallest register file the allocator handles: two
// allocatable registers plus the scratch register.
const MinRegisters = 3

// Machine describes the register file of the target. R0 carries return
// values, the last register is reserved as scratch for call shuffling, and
// the first ArgRegisters registers carry the receiver and leading arguments.
type Machine struct {
	Registers    int
	ArgRegisters int
}

// DefaultMachine is the register model used when no target is configured.
var DefaultMachine = Machine{Registers: 8, ArgRegisters: 4}

// Validate checks that the register model is usable.
func (m Machine) Validate() error {
	if m.Registers < MinRegisters {
		return compiler.ConfigError.New("target needs at least %d registers, got %d", MinRegisters, m.Registers)
	}
	if m.ArgRegisters < 1 || m.ArgRegisters > m.Allocatable() {
		return compiler.ConfigError.New("argument registers must be between 1 and %d, got %d", m.Allocatable(), m.ArgRegisters)
	}
	return nil
}

// Allocatable is the number of registers the allocator may hand out.
func (m Machine) Allocatable() int {
	return m.Registers - 1
}

// Scratch is the register reserved for breaking move cycles.
func (m Machine) Scratch() int {
	return m.Registers - 1
}

// Pipeline runs every pass over p in order and returns the allocated,
// call-lowered procedure.
func Pipeline(p *ir.Proc, m Machine) (*ir.Proc, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	p = EliminateAliases(p)
	p, err := Renumber(p)
	if err != nil {
		return nil, err
	}
	live, err := Liveness(p)
	if err != nil {
		return nil, err
	}
	p, err = Allocate(p, live, m)
	if err != nil {
		return nil, err
	}
	p, err = LowerCalls(p, m)
	if err != nil {
		return nil, err
	}
	log.Debugf("%s: %d instructions, frame %d", p.Label, len(p.Instrs), p.FrameSize)
	return p, nil
}

// clone copies p's header with a fresh instruction slice.
func clone(p *ir.Proc, instrs []ir.Instr) *ir.Proc {
	q := *p
	q.Instrs = instrs
	return &q
}
