package engine

import (
	"testing"

	"github.com/wippyai/il-weaver/il"
)

func TestEffectFixedOpcodes(t *testing.T) {
	tests := []struct {
		name   string
		in     *il.Instruction
		pops   int
		pushes int
	}{
		{"nop", &il.Instruction{Opcode: il.OpNop}, 0, 0},
		{"ldc.i4.5", &il.Instruction{Opcode: il.OpLdcI45}, 0, 1},
		{"ldstr", &il.Instruction{Opcode: il.OpLdstr, Operand: il.StringOperand{Value: "s"}}, 0, 1},
		{"ldloc.1", &il.Instruction{Opcode: il.OpLdloc1}, 0, 1},
		{"ldloca.s", &il.Instruction{Opcode: il.OpLdlocaS, Operand: il.LocalOperand{Local: &il.Local{Index: 4}}}, 0, 1},
		{"stloc.0", &il.Instruction{Opcode: il.OpStloc0}, 1, 0},
		{"dup", &il.Instruction{Opcode: il.OpDup}, 1, 2},
		{"add", &il.Instruction{Opcode: il.OpAdd}, 2, 1},
		{"ceq", &il.Instruction{Opcode: il.OpCeq}, 2, 1},
		{"stfld", &il.Instruction{Opcode: il.OpStfld}, 2, 0},
		{"br", &il.Instruction{Opcode: il.OpBr}, 0, 0},
		{"brtrue", &il.Instruction{Opcode: il.OpBrtrue}, 1, 0},
		{"switch", &il.Instruction{Opcode: il.OpSwitch}, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eff := Effect(tt.in)
			if eff.Pops != tt.pops || eff.Pushes != tt.pushes {
				t.Errorf("effect = %d/%d, want %d/%d", eff.Pops, eff.Pushes, tt.pops, tt.pushes)
			}
		})
	}
}

func TestEffectSentinels(t *testing.T) {
	if eff := Effect(&il.Instruction{Opcode: il.OpRet}); eff.Pops != VarPop {
		t.Errorf("ret pops = %d, want VarPop", eff.Pops)
	}
	for _, op := range []il.Opcode{il.OpLeave, il.OpLeaveS, il.OpEndfinally} {
		if eff := Effect(&il.Instruction{Opcode: op}); eff.Pops != PopAll {
			t.Errorf("%s pops = %d, want PopAll", op, eff.Pops)
		}
	}
	// call with an unresolved reference cannot know its arity
	call := &il.Instruction{Opcode: il.OpCall, Operand: il.RefOperand{Ref: il.NewRef(il.RefMethod, "T::M")}}
	if eff := Effect(call); eff.Pops != VarPop || eff.Pushes != VarPush {
		t.Errorf("unresolved call effect = %+v", eff)
	}
}

func TestEffectResolvedCall(t *testing.T) {
	mod := il.NewModule("m")
	typ := mod.AddType(&il.Type{Name: "T"})
	static := typ.AddMethod(&il.Method{
		Name:   "F",
		Return: il.Int32,
		Params: []il.TypeSig{il.Int32, il.Int32},
		Static: true,
	})
	instance := typ.AddMethod(&il.Method{Name: "G", Return: il.Void, Params: []il.TypeSig{il.Int32}})

	call := &il.Instruction{Opcode: il.OpCall, Operand: il.RefOperand{Ref: mod.Import(static)}}
	if eff := Effect(call); eff.Pops != 2 || eff.Pushes != 1 {
		t.Errorf("static call effect = %+v, want 2/1", eff)
	}

	virt := &il.Instruction{Opcode: il.OpCallvirt, Operand: il.RefOperand{Ref: mod.Import(instance)}}
	if eff := Effect(virt); eff.Pops != 2 || eff.Pushes != 0 {
		t.Errorf("callvirt effect = %+v, want 2/0 (receiver + arg)", eff)
	}

	ctor := &il.Instruction{Opcode: il.OpNewobj, Operand: il.RefOperand{Ref: mod.Import(instance)}}
	if eff := Effect(ctor); eff.Pops != 1 || eff.Pushes != 1 {
		t.Errorf("newobj effect = %+v, want 1/1", eff)
	}
}

func TestSimulateStackBalanced(t *testing.T) {
	instrs := []*il.Instruction{
		{Opcode: il.OpLdcI41},
		{Opcode: il.OpLdcI42},
		{Opcode: il.OpAdd},
		{Opcode: il.OpStloc0},
		{Opcode: il.OpRet},
	}
	max, err := SimulateStack(instrs, il.Void)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if max != 2 {
		t.Errorf("max depth = %d, want 2", max)
	}
}

func TestSimulateStackUnderflow(t *testing.T) {
	instrs := []*il.Instruction{{Opcode: il.OpAdd}}
	if _, err := SimulateStack(instrs, il.Void); err == nil {
		t.Error("expected underflow error")
	}
}

func TestSimulateStackReturnDepth(t *testing.T) {
	// int return with empty stack
	instrs := []*il.Instruction{{Opcode: il.OpRet}}
	if _, err := SimulateStack(instrs, il.Int32); err == nil {
		t.Error("expected depth error for value return with empty stack")
	}

	// void return with leftover value
	instrs = []*il.Instruction{
		{Opcode: il.OpLdcI41},
		{Opcode: il.OpRet},
	}
	if _, err := SimulateStack(instrs, il.Void); err == nil {
		t.Error("expected depth error for void return with leftover value")
	}
}

func TestEstimateMaxStackHandlerFloor(t *testing.T) {
	ret := &il.Instruction{Opcode: il.OpRet}
	b := &il.Body{
		Instructions: []*il.Instruction{ret},
		Handlers: []*il.Handler{{
			TryStart: ret, TryEnd: ret, HandlerStart: ret, HandlerEnd: ret,
			Kind: il.HandlerCatch,
		}},
	}
	if got := EstimateMaxStack(b, il.Void); got != 1 {
		t.Errorf("max stack = %d, want handler floor 1", got)
	}
}

func TestEstimateMaxStackValueReturn(t *testing.T) {
	// the deepest point is past the first return; a void simulation would
	// stop there and under-report
	b := &il.Body{Instructions: []*il.Instruction{
		{Opcode: il.OpLdcI41},
		{Opcode: il.OpRet},
		{Opcode: il.OpLdcI41},
		{Opcode: il.OpLdcI42},
		{Opcode: il.OpAdd},
		{Opcode: il.OpRet},
	}}
	if got := EstimateMaxStack(b, il.Int32); got != 2 {
		t.Errorf("max stack = %d, want 2", got)
	}
}
