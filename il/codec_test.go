package il_test

import (
	"testing"

	"github.com/wippyai/il-weaver/il"
)

// buildModule assembles a module exercising every operand shape: literals,
// strings, branches, a switch table, explicit and implied local forms, field
// and method references, and a catch handler.
func buildModule(t *testing.T) *il.Module {
	t.Helper()

	mod := il.NewModule("app")

	exc := mod.AddType(&il.Type{Name: "Exception"})

	app := mod.AddType(&il.Type{Name: "App"})
	app.AddField(&il.Field{Name: "counter", Type: il.Int32})

	helper := app.AddMethod(&il.Method{
		Name:   "Helper",
		Return: il.Int32,
		Params: []il.TypeSig{il.Int32},
		Static: true,
	})
	helper.Body = &il.Body{
		Instructions: []*il.Instruction{
			{Opcode: il.OpLdarg0},
			{Opcode: il.OpLdcI42},
			{Opcode: il.OpMul},
			{Opcode: il.OpRet},
		},
		MaxStack: 2,
	}

	main := app.AddMethod(&il.Method{Name: "Main", Return: il.Void})
	locals := []*il.Local{
		{Name: "x", Type: il.Int32, Index: 0},
		{Name: "msg", Type: il.String, Index: 1},
	}

	ret := &il.Instruction{Opcode: il.OpRet}
	store := &il.Instruction{Opcode: il.OpStloc0}
	load := &il.Instruction{Opcode: il.OpLdlocS, Operand: il.LocalOperand{Local: locals[1]}}
	leave := &il.Instruction{Opcode: il.OpLeaveS, Operand: il.TargetOperand{Target: ret}}
	handlerBody := &il.Instruction{Opcode: il.OpPop}
	handlerLeave := &il.Instruction{Opcode: il.OpLeaveS, Operand: il.TargetOperand{Target: ret}}

	main.Body = &il.Body{
		Locals: locals,
		Instructions: []*il.Instruction{
			{Opcode: il.OpLdstr, Operand: il.StringOperand{Value: "hello"}},
			{Opcode: il.OpStlocS, Operand: il.LocalOperand{Local: locals[1]}},
			{Opcode: il.OpLdcI45},
			{Opcode: il.OpCall, Operand: il.RefOperand{Ref: mod.Import(helper)}},
			store,
			{Opcode: il.OpLdloc0},
			{Opcode: il.OpSwitch, Operand: il.SwitchOperand{Targets: []*il.Instruction{store, load}}},
			load,
			{Opcode: il.OpPop},
			{Opcode: il.OpLdsfld, Operand: il.RefOperand{Ref: mod.Import(app.Fields[0])}},
			{Opcode: il.OpBrfalseS, Operand: il.TargetOperand{Target: ret}},
			leave,
			handlerBody,
			handlerLeave,
			ret,
		},
		Handlers: []*il.Handler{
			{
				TryStart:     store,
				TryEnd:       handlerBody,
				HandlerStart: handlerBody,
				HandlerEnd:   ret,
				CatchType:    mod.Import(exc),
				Kind:         il.HandlerCatch,
			},
		},
		MaxStack:   2,
		InitLocals: true,
	}
	main.Body.RecomputeOffsets()
	helper.Body.RecomputeOffsets()

	if err := il.ValidateBody(main.Body); err != nil {
		t.Fatalf("fixture body invalid: %v", err)
	}
	return mod
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	mod := buildModule(t)

	data, err := il.Encode(mod)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := il.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Name != mod.Name {
		t.Errorf("module name = %q, want %q", got.Name, mod.Name)
	}
	if len(got.Types) != len(mod.Types) {
		t.Fatalf("types = %d, want %d", len(got.Types), len(mod.Types))
	}
	if len(got.Refs) != len(mod.Refs) {
		t.Fatalf("refs = %d, want %d", len(got.Refs), len(mod.Refs))
	}
	for i, ref := range got.Refs {
		if ref.Name != mod.Refs[i].Name || ref.RKind != mod.Refs[i].RKind {
			t.Errorf("ref %d = %s %q, want %s %q", i, ref.RKind, ref.Name, mod.Refs[i].RKind, mod.Refs[i].Name)
		}
	}

	want := mod.FindMethod("App::Main")
	decoded := got.FindMethod("App::Main")
	if decoded == nil || decoded.Body == nil {
		t.Fatal("decoded App::Main missing")
	}
	compareBodies(t, decoded.Body, want.Body)

	if h := got.FindMethod("App::Helper"); h == nil || !h.Static || h.Return != il.Int32 {
		t.Error("decoded App::Helper signature wrong")
	}
}

func compareBodies(t *testing.T, got, want *il.Body) {
	t.Helper()

	if len(got.Instructions) != len(want.Instructions) {
		t.Fatalf("instructions = %d, want %d", len(got.Instructions), len(want.Instructions))
	}
	if got.MaxStack != want.MaxStack || got.InitLocals != want.InitLocals {
		t.Errorf("max stack/init locals = %d/%v, want %d/%v",
			got.MaxStack, got.InitLocals, want.MaxStack, want.InitLocals)
	}
	if len(got.Locals) != len(want.Locals) {
		t.Fatalf("locals = %d, want %d", len(got.Locals), len(want.Locals))
	}
	for i, l := range got.Locals {
		if l.Name != want.Locals[i].Name || l.Type != want.Locals[i].Type || l.Index != i {
			t.Errorf("local %d = %+v, want %+v", i, l, want.Locals[i])
		}
	}

	for i, in := range got.Instructions {
		w := want.Instructions[i]
		if in.Opcode != w.Opcode {
			t.Errorf("instruction %d opcode = %s, want %s", i, in.Opcode, w.Opcode)
			continue
		}
		if in.Offset != w.Offset {
			t.Errorf("instruction %d offset = %d, want %d", i, in.Offset, w.Offset)
		}
		compareOperands(t, i, in, w)
	}

	if len(got.Handlers) != len(want.Handlers) {
		t.Fatalf("handlers = %d, want %d", len(got.Handlers), len(want.Handlers))
	}
	for i, h := range got.Handlers {
		w := want.Handlers[i]
		if h.Kind != w.Kind {
			t.Errorf("handler %d kind = %s, want %s", i, h.Kind, w.Kind)
		}
		if (h.CatchType == nil) != (w.CatchType == nil) {
			t.Errorf("handler %d catch presence mismatch", i)
		} else if h.CatchType != nil && h.CatchType.Name != w.CatchType.Name {
			t.Errorf("handler %d catch = %q, want %q", i, h.CatchType.Name, w.CatchType.Name)
		}
		gb, wb := h.Boundaries(), w.Boundaries()
		for j := range gb {
			if (*gb[j]).Offset != (*wb[j]).Offset {
				t.Errorf("handler %d boundary %d offset = %d, want %d", i, j, (*gb[j]).Offset, (*wb[j]).Offset)
			}
		}
	}
}

func compareOperands(t *testing.T, i int, got, want *il.Instruction) {
	t.Helper()

	switch w := want.Operand.(type) {
	case nil:
		if got.Operand != nil {
			t.Errorf("instruction %d operand = %T, want none", i, got.Operand)
		}
	case il.StringOperand:
		g, ok := got.Operand.(il.StringOperand)
		if !ok || g.Value != w.Value {
			t.Errorf("instruction %d string operand = %v", i, got.Operand)
		}
	case il.TargetOperand:
		g, ok := got.Operand.(il.TargetOperand)
		if !ok || g.Target.Offset != w.Target.Offset {
			t.Errorf("instruction %d branch operand = %v", i, got.Operand)
		}
	case il.SwitchOperand:
		g, ok := got.Operand.(il.SwitchOperand)
		if !ok || len(g.Targets) != len(w.Targets) {
			t.Fatalf("instruction %d switch operand = %v", i, got.Operand)
		}
		for j := range g.Targets {
			if g.Targets[j].Offset != w.Targets[j].Offset {
				t.Errorf("instruction %d switch target %d offset = %d, want %d",
					i, j, g.Targets[j].Offset, w.Targets[j].Offset)
			}
		}
	case il.LocalOperand:
		g, ok := got.Operand.(il.LocalOperand)
		if !ok || g.Local.Index != w.Local.Index {
			t.Errorf("instruction %d local operand = %v", i, got.Operand)
		}
	case il.RefOperand:
		g, ok := got.Operand.(il.RefOperand)
		if !ok || g.Ref.Name != w.Ref.Name || g.Ref.Kind() != w.Ref.Kind() {
			t.Errorf("instruction %d ref operand = %v", i, got.Operand)
		}
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", []byte{'X', 'X', 'X', 'X', 1}},
		{"bad version", []byte{0x00, 'I', 'L', 'W', 9}},
		{"truncated after header", []byte{0x00, 'I', 'L', 'W', 1, 0x05}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := il.Decode(tt.data); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}

func TestDecodeResolvesBranchIdentity(t *testing.T) {
	mod := buildModule(t)
	data, err := il.Encode(mod)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := il.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	body := got.FindMethod("App::Main").Body
	present := make(map[*il.Instruction]bool)
	for _, in := range body.Instructions {
		present[in] = true
	}
	for _, in := range body.Instructions {
		for _, target := range in.BranchTargets() {
			if !present[target] {
				t.Fatalf("IL_%04x: target is not an instruction of the decoded body", in.Offset)
			}
		}
	}
	for _, h := range body.Handlers {
		for _, bound := range h.Boundaries() {
			if !present[*bound] {
				t.Fatal("handler boundary is not an instruction of the decoded body")
			}
		}
	}
}
