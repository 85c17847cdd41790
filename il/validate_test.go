package il_test

import (
	"testing"

	"github.com/wippyai/il-weaver/il"
)

func TestValidateBodyAcceptsConsistentBody(t *testing.T) {
	ret := &il.Instruction{Opcode: il.OpRet}
	body := &il.Body{
		Instructions: []*il.Instruction{
			{Opcode: il.OpLdcI41},
			{Opcode: il.OpBrtrueS, Operand: il.TargetOperand{Target: ret}},
			ret,
		},
	}
	body.RecomputeOffsets()
	if err := il.ValidateBody(body); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestValidateBodyRejectsStaleOffsets(t *testing.T) {
	body := &il.Body{
		Instructions: []*il.Instruction{
			{Opcode: il.OpNop, Offset: 0},
			{Opcode: il.OpRet, Offset: 5},
		},
	}
	if err := il.ValidateBody(body); err == nil {
		t.Error("expected offset error")
	}
}

func TestValidateBodyRejectsForeignBranchTarget(t *testing.T) {
	foreign := &il.Instruction{Opcode: il.OpNop}
	body := &il.Body{
		Instructions: []*il.Instruction{
			{Opcode: il.OpBrS, Operand: il.TargetOperand{Target: foreign}},
			{Opcode: il.OpRet},
		},
	}
	body.RecomputeOffsets()
	if err := il.ValidateBody(body); err == nil {
		t.Error("expected branch target error")
	}
}

func TestValidateBodyRejectsSparseLocals(t *testing.T) {
	body := &il.Body{
		Instructions: []*il.Instruction{{Opcode: il.OpRet}},
		Locals:       []*il.Local{{Name: "x", Index: 1}},
	}
	body.RecomputeOffsets()
	if err := il.ValidateBody(body); err == nil {
		t.Error("expected dense index error")
	}
}

func TestValidateBodyRejectsForeignSlot(t *testing.T) {
	mine := &il.Local{Name: "x", Type: il.Int32, Index: 0}
	other := &il.Local{Name: "y", Type: il.Int32, Index: 0}
	body := &il.Body{
		Instructions: []*il.Instruction{
			{Opcode: il.OpLdlocS, Operand: il.LocalOperand{Local: other}},
			{Opcode: il.OpRet},
		},
		Locals: []*il.Local{mine},
	}
	body.RecomputeOffsets()
	if err := il.ValidateBody(body); err == nil {
		t.Error("expected foreign slot error")
	}
}

func TestValidateBodyRejectsDanglingHandlerBoundary(t *testing.T) {
	ret := &il.Instruction{Opcode: il.OpRet}
	outside := &il.Instruction{Opcode: il.OpNop}
	body := &il.Body{
		Instructions: []*il.Instruction{ret},
		Handlers: []*il.Handler{{
			TryStart:     ret,
			TryEnd:       ret,
			HandlerStart: outside,
			HandlerEnd:   ret,
			Kind:         il.HandlerFinally,
		}},
	}
	body.RecomputeOffsets()
	if err := il.ValidateBody(body); err == nil {
		t.Error("expected handler boundary error")
	}
}
