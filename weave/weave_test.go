package weave_test

import (
	"testing"

	"go.uber.org/zap"

	ilerrors "github.com/wippyai/il-weaver/errors"
	"github.com/wippyai/il-weaver/il"
	"github.com/wippyai/il-weaver/weave"
)

func buildTarget() *il.Module {
	mod := il.NewModule("app")
	typ := mod.AddType(&il.Type{Name: "App"})
	main := typ.AddMethod(&il.Method{Name: "Main", Return: il.Void})
	main.Body = &il.Body{
		Locals: []*il.Local{{Name: "x", Type: il.Int32, Index: 0}},
		Instructions: []*il.Instruction{
			{Opcode: il.OpLdcI41},
			{Opcode: il.OpStloc0},
			{Opcode: il.OpRet},
		},
		InitLocals: true,
	}
	main.Body.RecomputeOffsets()
	return mod
}

func buildSource() *il.Module {
	mod := il.NewModule("hooks")
	typ := mod.AddType(&il.Type{Name: "Hooks"})
	enter := typ.AddMethod(&il.Method{Name: "Enter", Return: il.Int32})
	enter.Body = &il.Body{
		Instructions: []*il.Instruction{
			{Opcode: il.OpLdcI47},
			{Opcode: il.OpRet},
		},
	}
	enter.Body.RecomputeOffsets()
	return mod
}

func TestInjectBefore(t *testing.T) {
	target := buildTarget()
	source := buildSource()

	meth, err := weave.InjectBefore(target, "App::Main", source, "Hooks::Enter", nil)
	if err != nil {
		t.Fatalf("inject: %v", err)
	}
	if meth != target.FindMethod("App::Main") {
		t.Error("returned method is not the target method")
	}

	// source return is trimmed, leaving the target's own instructions
	want := []il.Opcode{il.OpLdcI41, il.OpStloc0, il.OpRet}
	got := meth.Body.Instructions
	if len(got) != len(want) {
		t.Fatalf("instructions = %d, want %d", len(got), len(want))
	}
	for i, in := range got {
		if in.Opcode != want[i] {
			t.Errorf("instruction %d = %s, want %s", i, in.Opcode, want[i])
		}
	}
	if err := il.ValidateBody(meth.Body); err != nil {
		t.Errorf("merged body invalid: %v", err)
	}
}

func TestInjectAfterTrimsTargetReturn(t *testing.T) {
	// target returns a value, source does not: the target's trailing
	// return is trimmed so control reaches the injected tail
	target := il.NewModule("app")
	typ := target.AddType(&il.Type{Name: "App"})
	calc := typ.AddMethod(&il.Method{Name: "Calc", Return: il.Int32})
	calc.Body = &il.Body{
		Instructions: []*il.Instruction{
			{Opcode: il.OpLdcI45},
			{Opcode: il.OpRet},
		},
	}
	calc.Body.RecomputeOffsets()

	source := il.NewModule("hooks")
	styp := source.AddType(&il.Type{Name: "Hooks"})
	exit := styp.AddMethod(&il.Method{Name: "Exit", Return: il.Void})
	exit.Body = &il.Body{
		Locals: []*il.Local{{Name: "mark", Type: il.Int32, Index: 0}},
		Instructions: []*il.Instruction{
			{Opcode: il.OpLdcI43},
			{Opcode: il.OpStloc0},
			{Opcode: il.OpRet},
		},
		InitLocals: true,
	}
	exit.Body.RecomputeOffsets()

	meth, err := weave.InjectAfter(target, "App::Calc", source, "Hooks::Exit", &weave.Config{
		Trace: zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("inject: %v", err)
	}

	want := []il.Opcode{il.OpLdcI43, il.OpStloc0, il.OpRet}
	got := meth.Body.Instructions
	if len(got) != len(want) {
		t.Fatalf("instructions = %d, want %d", len(got), len(want))
	}
	for i, in := range got {
		if in.Opcode != want[i] {
			t.Errorf("instruction %d = %s, want %s", i, in.Opcode, want[i])
		}
	}
}

func TestInjectMethodNotFound(t *testing.T) {
	target := buildTarget()
	source := buildSource()

	snapshot := target.FindMethod("App::Main").Body.Instructions

	_, err := weave.InjectBefore(target, "App::Missing", source, "Hooks::Enter", nil)
	if !ilerrors.IsKind(err, ilerrors.KindNotFound) {
		t.Errorf("missing target: %v, want not_found", err)
	}

	_, err = weave.InjectBefore(target, "App::Main", source, "Hooks::Missing", nil)
	if !ilerrors.IsKind(err, ilerrors.KindNotFound) {
		t.Errorf("missing source: %v, want not_found", err)
	}

	// lookups precede any mutation
	body := target.FindMethod("App::Main").Body
	if len(body.Instructions) != len(snapshot) {
		t.Fatal("target mutated by failed lookup")
	}
	for i, in := range body.Instructions {
		if in != snapshot[i] {
			t.Error("target instructions replaced by failed lookup")
			break
		}
	}
}

func TestInjectWithCustomProvider(t *testing.T) {
	target := buildTarget()
	source := buildSource()

	lib := il.NewModule("lib")
	styp := lib.AddType(&il.Type{Name: "Log"})
	write := styp.AddMethod(&il.Method{
		Name: "Write", Return: il.Void, Params: []il.TypeSig{il.String}, Static: true,
	})
	write.Body = &il.Body{Instructions: []*il.Instruction{
		{Opcode: il.OpPop},
		{Opcode: il.OpRet},
	}}
	write.Body.RecomputeOffsets()

	// source method calls into a third module the default scope can't see
	src := source.FindMethod("Hooks::Enter")
	src.Body.Instructions = []*il.Instruction{
		{Opcode: il.OpLdstr, Operand: il.StringOperand{Value: "enter"}},
		{Opcode: il.OpCall, Operand: il.RefOperand{Ref: il.NewRef(il.RefMethod, "Log::Write")}},
		{Opcode: il.OpLdcI47},
		{Opcode: il.OpRet},
	}
	src.Body.RecomputeOffsets()

	_, err := weave.InjectBefore(target, "App::Main", source, "Hooks::Enter", nil)
	if !ilerrors.IsKind(err, ilerrors.KindUnresolved) {
		t.Fatalf("default scope: %v, want unresolved_reference", err)
	}

	meth, err := weave.InjectBefore(target, "App::Main", source, "Hooks::Enter", &weave.Config{
		Provider: il.NewModuleSet(target, source, lib),
	})
	if err != nil {
		t.Fatalf("inject with provider: %v", err)
	}

	// the call survives and its reference now lives in the target's table
	foundCall := false
	for _, in := range meth.Body.Instructions {
		op, ok := in.Operand.(il.RefOperand)
		if !ok {
			continue
		}
		foundCall = true
		if op.Ref.Owner != target {
			t.Error("call reference not owned by the target module")
		}
		if op.Ref.Def() == nil {
			t.Error("call reference left unresolved")
		}
	}
	if !foundCall {
		t.Error("injected call not present in merged body")
	}
}
