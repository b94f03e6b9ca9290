package opt

import (
	"reflect"
	"testing"

	"github.com/joomcode/errorx"

	"github.com/chazu/slate/compiler"
	"github.com/chazu/slate/ir"
	"github.com/chazu/slate/value"
)

func load(dest int, n int64) ir.Instr {
	return ir.Instr{Op: ir.OpLoadValue, Dest: dest, Value: value.FromInt(n), Trace: ir.NoTrace}
}

func call(dest int, label string, args ...int) ir.Instr {
	return ir.Instr{Op: ir.OpCall, Dest: dest, Label: label, Args: args, Trace: ir.NoTrace}
}

func ret(l int) ir.Instr {
	return ir.Instr{Op: ir.OpReturn, Dest: ir.NoLocal, Args: []int{l}}
}

func proc(numArgs int, instrs ...ir.Instr) *ir.Proc {
	n := numArgs + 1
	for _, in := range instrs {
		if in.Dest >= n {
			n = in.Dest + 1
		}
	}
	return &ir.Proc{Label: "test", NumArgs: numArgs, NumLocals: n, Instrs: instrs}
}

func opsOf(p *ir.Proc) []ir.Op {
	out := make([]ir.Op, len(p.Instrs))
	for i, in := range p.Instrs {
		out[i] = in.Op
	}
	return out
}

func TestEliminateAliases(t *testing.T) {
	p := proc(0,
		load(1, 7),
		ir.Instr{Op: ir.OpAlias, Dest: 2, Args: []int{1}},
		ir.Instr{Op: ir.OpAlias, Dest: 3, Args: []int{2}},
		call(4, "f", 3, 2),
		ret(4),
	)

	once := EliminateAliases(p)
	if got := opsOf(once); !reflect.DeepEqual(got, []ir.Op{ir.OpLoadValue, ir.OpCall, ir.OpReturn}) {
		t.Fatalf("ops = %v", got)
	}
	if got := once.Instrs[1].Args; !reflect.DeepEqual(got, []int{1, 1}) {
		t.Errorf("call args = %v, want [1 1]", got)
	}
	if len(p.Instrs) != 5 {
		t.Error("input procedure was modified")
	}

	twice := EliminateAliases(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("not idempotent:\n%s\n%s", once, twice)
	}
}

func TestRenumber(t *testing.T) {
	p := proc(1,
		load(5, 1),
		load(9, 2),
		call(7, "f", 9, 5, 1),
		ret(7),
	)
	q, err := Renumber(p)
	if err != nil {
		t.Fatal(err)
	}
	if q.Instrs[0].Dest != 2 || q.Instrs[1].Dest != 3 || q.Instrs[2].Dest != 4 {
		t.Errorf("dests = %d %d %d", q.Instrs[0].Dest, q.Instrs[1].Dest, q.Instrs[2].Dest)
	}
	if got := q.Instrs[2].Args; !reflect.DeepEqual(got, []int{3, 2, 1}) {
		t.Errorf("call args = %v", got)
	}
	if q.NumLocals != 5 {
		t.Errorf("locals = %d, want 5", q.NumLocals)
	}

	again, err := Renumber(q)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(q, again) {
		t.Error("renumbering a dense procedure changed it")
	}
}

func TestRenumberErrors(t *testing.T) {
	tests := []struct {
		name string
		p    *ir.Proc
	}{
		{"read before definition", proc(0, call(2, "f", 3), ret(2))},
		{"defined twice", proc(0, load(1, 1), load(1, 2), ret(1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Renumber(tt.p)
			if !errorx.IsOfType(err, compiler.InternalError) {
				t.Errorf("got %v, want internal error", err)
			}
		})
	}
}

func TestLiveness(t *testing.T) {
	p := proc(1,
		load(2, 1),      // 0
		call(3, "f", 2), // 1
		call(4, "g", 1, 3),
		ret(4),
	)
	live, err := Liveness(p)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct{ before, after []int }{
		{[]int{1}, []int{1, 2}},
		{[]int{1, 2}, []int{1, 3}},
		{[]int{1, 3}, []int{4}},
		{[]int{4}, nil},
	}
	for i, w := range want {
		if got := live.Before[i].Locals(); !reflect.DeepEqual(got, w.before) {
			t.Errorf("before[%d] = %v, want %v", i, got, w.before)
		}
		if got := live.After[i].Locals(); !reflect.DeepEqual(got, w.after) {
			t.Errorf("after[%d] = %v, want %v", i, got, w.after)
		}
	}

	if _, err := Liveness(proc(0, ret(5))); !errorx.IsOfType(err, compiler.InternalError) {
		t.Errorf("undefined read: got %v, want internal error", err)
	}
}

func TestSet(t *testing.T) {
	var s Set
	s.Add(3)
	s.Add(130)
	s.Add(3)
	if s.Len() != 2 || !s.Has(130) || s.Has(2) || s.Has(-1) {
		t.Fatalf("set = %v", s)
	}
	c := s.Clone()
	s.Remove(130)
	if !c.Has(130) {
		t.Error("clone shares storage")
	}
	var small Set
	small.Add(3)
	if !s.Equal(small) || s.String() != "{%3}" {
		t.Errorf("set = %v, want {%%3}", s)
	}
}

func TestAllocateSpillsAcrossCalls(t *testing.T) {
	m := Machine{Registers: 4, ArgRegisters: 2}
	p := proc(0,
		load(1, 1),
		load(2, 2),
		call(3, "f", 2),
		call(4, "g", 1, 3),
		call(5, "h", 4),
		ret(5),
	)
	live, err := Liveness(p)
	if err != nil {
		t.Fatal(err)
	}
	q, err := Allocate(p, live, m)
	if err != nil {
		t.Fatal(err)
	}

	want := []ir.Op{
		ir.OpLoadValue, ir.OpLoadValue,
		ir.OpSpill, ir.OpCall,
		ir.OpCall,
		ir.OpClear, ir.OpCall,
		ir.OpReturn,
	}
	if got := opsOf(q); !reflect.DeepEqual(got, want) {
		t.Fatalf("ops = %v, want %v\n%s", got, want, q)
	}

	spill := q.Instrs[2]
	if spill.Args[0] != 1 || spill.ArgLocs[0] != ir.Reg(0) || spill.N != 0 {
		t.Errorf("spill = %v", spill)
	}
	if got := q.Instrs[3].ArgLocs; !reflect.DeepEqual(got, []ir.Loc{ir.Reg(1)}) {
		t.Errorf("f args at %v", got)
	}
	if got := q.Instrs[4].ArgLocs; !reflect.DeepEqual(got, []ir.Loc{ir.Stack(0), ir.Reg(0)}) {
		t.Errorf("g args at %v", got)
	}
	if q.Instrs[5].N != 0 {
		t.Errorf("clear = %v", q.Instrs[5])
	}
	if q.FrameSize != 1 {
		t.Errorf("frame = %d, want 1", q.FrameSize)
	}

	lowered, err := LowerCalls(q, m)
	if err != nil {
		t.Fatal(err)
	}
	want = []ir.Op{
		ir.OpLoadValue, ir.OpLoadValue,
		ir.OpSpill, ir.OpMove, ir.OpCall,
		ir.OpMove, ir.OpMove, ir.OpCall,
		ir.OpClear, ir.OpCall,
		ir.OpReturn,
	}
	if got := opsOf(lowered); !reflect.DeepEqual(got, want) {
		t.Fatalf("lowered ops = %v, want %v\n%s", got, want, lowered)
	}
	// r0 still holds f's result, which g takes as its second argument, so it
	// moves out of r0 before the spilled receiver is reloaded into it.
	first, second := lowered.Instrs[5], lowered.Instrs[6]
	if first.DestLoc != ir.Reg(1) || first.ArgLocs[0] != ir.Reg(0) {
		t.Errorf("first move = %v", first)
	}
	if second.DestLoc != ir.Reg(0) || second.ArgLocs[0] != ir.Stack(0) {
		t.Errorf("second move = %v", second)
	}
}

func TestAllocateEvictsFarthestUse(t *testing.T) {
	m := Machine{Registers: 3, ArgRegisters: 1}
	p := proc(0,
		load(1, 1),
		load(2, 2),
		load(3, 3),
		ir.Instr{Op: ir.OpSetSlot, Dest: ir.NoLocal, Args: []int{2, 3}},
		ret(1),
	)
	live, err := Liveness(p)
	if err != nil {
		t.Fatal(err)
	}
	q, err := Allocate(p, live, m)
	if err != nil {
		t.Fatal(err)
	}

	want := []ir.Op{
		ir.OpLoadValue, ir.OpLoadValue,
		ir.OpSpill, ir.OpLoadValue,
		ir.OpSetSlot,
		ir.OpReload, ir.OpReturn,
	}
	if got := opsOf(q); !reflect.DeepEqual(got, want) {
		t.Fatalf("ops = %v, want %v\n%s", got, want, q)
	}
	if spill := q.Instrs[2]; spill.Args[0] != 1 {
		t.Errorf("evicted %%%d, want %%1 (used last)", spill.Args[0])
	}
	if q.Instrs[3].DestLoc != ir.Reg(0) {
		t.Errorf("%%3 in %v, want r0", q.Instrs[3].DestLoc)
	}
	reload := q.Instrs[5]
	if reload.Dest != 1 || reload.ArgLocs[0] != ir.Stack(0) || reload.DestLoc != ir.Reg(0) {
		t.Errorf("reload = %v", reload)
	}
}

func TestAllocateIncomingStackArgs(t *testing.T) {
	m := Machine{Registers: 4, ArgRegisters: 2}
	p := proc(3, ret(3))
	live, err := Liveness(p)
	if err != nil {
		t.Fatal(err)
	}
	q, err := Allocate(p, live, m)
	if err != nil {
		t.Fatal(err)
	}
	if got := opsOf(q); !reflect.DeepEqual(got, []ir.Op{ir.OpReload, ir.OpReturn}) {
		t.Fatalf("ops = %v\n%s", got, q)
	}
	if r := q.Instrs[0]; r.ArgLocs[0] != ir.Arg(1) || r.DestLoc != ir.Reg(0) {
		t.Errorf("reload = %v", r)
	}
	if q.FrameSize != 0 {
		t.Errorf("frame = %d; incoming arguments need no frame slot", q.FrameSize)
	}
}

func TestLowerCallsCycleAndStackArgs(t *testing.T) {
	m := Machine{Registers: 4, ArgRegisters: 2}
	in := call(5, "f", 1, 2, 3, 4)
	in.ArgLocs = []ir.Loc{ir.Reg(1), ir.Reg(0), ir.Stack(0), ir.Reg(2)}
	in.DestLoc = ir.Reg(0)
	r := ret(5)
	r.ArgLocs = []ir.Loc{ir.Reg(0)}

	q, err := LowerCalls(proc(0, in, r), m)
	if err != nil {
		t.Fatal(err)
	}

	type step struct {
		op       ir.Op
		dst, src ir.Loc
	}
	want := []step{
		{ir.OpPush, ir.Loc{}, ir.Stack(0)},
		{ir.OpPush, ir.Loc{}, ir.Reg(2)},
		{ir.OpMove, ir.Reg(3), ir.Reg(0)},
		{ir.OpMove, ir.Reg(0), ir.Reg(1)},
		{ir.OpMove, ir.Reg(1), ir.Reg(3)},
	}
	if len(q.Instrs) != len(want)+2 {
		t.Fatalf("got\n%s", q)
	}
	for i, w := range want {
		got := q.Instrs[i]
		if got.Op != w.op || got.DestLoc != w.dst || got.ArgLocs[0] != w.src {
			t.Errorf("step %d = %v, want %s %v <- %v", i, got, w.op, w.dst, w.src)
		}
	}

	c := q.Instrs[len(want)]
	if c.StackArgs != 2 {
		t.Errorf("stack args = %d, want 2", c.StackArgs)
	}
	if c.ArgLocs[0] != ir.Reg(0) || c.ArgLocs[1] != ir.Reg(1) {
		t.Errorf("register args at %v", c.ArgLocs)
	}
}

func TestLowerCallsReturnAndConcat(t *testing.T) {
	m := Machine{Registers: 4, ArgRegisters: 2}
	cat := ir.Instr{Op: ir.OpConcat, Dest: 3, Args: []int{1, 2}, ArgLocs: []ir.Loc{ir.Reg(1), ir.Stack(0)}, DestLoc: ir.Reg(0)}
	r := ret(3)
	r.ArgLocs = []ir.Loc{ir.Reg(1)}

	q, err := LowerCalls(proc(0, cat, r), m)
	if err != nil {
		t.Fatal(err)
	}
	want := []ir.Op{ir.OpPush, ir.OpPush, ir.OpConcat, ir.OpMove, ir.OpReturn}
	if got := opsOf(q); !reflect.DeepEqual(got, want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	if q.Instrs[2].StackArgs != 2 {
		t.Errorf("concat stack args = %d", q.Instrs[2].StackArgs)
	}
	if mv := q.Instrs[3]; mv.DestLoc != ir.Reg(0) || mv.ArgLocs[0] != ir.Reg(1) {
		t.Errorf("return move = %v", mv)
	}
	if q.Instrs[4].ArgLocs[0] != ir.Reg(0) {
		t.Error("return value not in r0")
	}
}

func TestMachineValidate(t *testing.T) {
	tests := []struct {
		m  Machine
		ok bool
	}{
		{DefaultMachine, true},
		{Machine{Registers: 3, ArgRegisters: 2}, true},
		{Machine{Registers: 2, ArgRegisters: 1}, false},
		{Machine{Registers: 4, ArgRegisters: 4}, false},
		{Machine{Registers: 4, ArgRegisters: 0}, false},
	}
	for _, tt := range tests {
		err := tt.m.Validate()
		if (err == nil) != tt.ok {
			t.Errorf("%+v: err = %v", tt.m, err)
		}
		if err != nil && !errorx.IsOfType(err, compiler.ConfigError) {
			t.Errorf("%+v: got %v, want config error", tt.m, err)
		}
	}
}
