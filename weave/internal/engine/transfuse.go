package engine

import (
	"fmt"

	"github.com/wippyai/il-weaver/errors"
	"github.com/wippyai/il-weaver/il"
)

// transfuser clones instructions from a captured source body into the target
// module's context. Each source instruction maps to exactly one clone for
// the lifetime of a merge; branch operands and handler boundaries are
// rewritten through that map, so aliasing between regions survives the copy.
type transfuser struct {
	provider Provider
	target   *il.Module
	// clones maps source instructions to their clones by identity.
	clones map[*il.Instruction]*il.Instruction
	// noop marks source instructions overlaid as nop during trimming.
	// The source bodies themselves are never mutated.
	noop map[*il.Instruction]bool
}

func newTransfuser(provider Provider, target *il.Module) *transfuser {
	return &transfuser{
		provider: provider,
		target:   target,
		clones:   make(map[*il.Instruction]*il.Instruction),
		noop:     make(map[*il.Instruction]bool),
	}
}

// markNoop overlays in as a no-op for transfusion without touching the
// source body.
func (t *transfuser) markNoop(in *il.Instruction) {
	t.noop[in] = true
}

// clone returns the transfused copy of in, creating it on first use. The
// clone is registered before operands are processed so that branch cycles
// and self-references terminate.
func (t *transfuser) clone(in *il.Instruction, rm *Remapper) (*il.Instruction, error) {
	if out, ok := t.clones[in]; ok {
		return out, nil
	}

	out := &il.Instruction{Opcode: in.Opcode, Operand: in.Operand}
	t.clones[in] = out

	if t.noop[in] {
		out.Opcode = il.OpNop
		out.Operand = nil
		return out, nil
	}

	switch op := in.Operand.(type) {
	case nil,
		il.Int8Operand, il.Int32Operand, il.Int64Operand,
		il.Float32Operand, il.Float64Operand,
		il.StringOperand, il.ArgOperand:
		// value operands copy verbatim

	case il.TargetOperand:
		if op.Target == nil {
			return nil, errors.InvalidBody("%s: branch without target", in.Opcode)
		}
		target, err := t.clone(op.Target, rm)
		if err != nil {
			return nil, err
		}
		out.Operand = il.TargetOperand{Target: target}

	case il.SwitchOperand:
		targets := make([]*il.Instruction, len(op.Targets))
		for i, st := range op.Targets {
			ct, err := t.clone(st, rm)
			if err != nil {
				return nil, err
			}
			targets[i] = ct
		}
		out.Operand = il.SwitchOperand{Targets: targets}

	case il.RefOperand:
		ref, err := t.importRef(op.Ref)
		if err != nil {
			return nil, err
		}
		out.Operand = il.RefOperand{Ref: ref}

	case il.LocalOperand:
		// rebound below by the remapper

	default:
		return nil, errors.New(errors.PhaseTransfuse, errors.KindUnsupported).
			Detail("operand %T on %s", in.Operand, in.Opcode).
			Build()
	}

	if rm != nil {
		if err := rm.Shift(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// importRef resolves ref against the provider and imports the resolved
// declaration into the target module, yielding the target-owned reference.
func (t *transfuser) importRef(ref *il.MemberRef) (*il.MemberRef, error) {
	decl, err := t.provider.Resolve(ref)
	if err != nil {
		return nil, err
	}
	imported, err := t.provider.Import(t.target, decl)
	if err != nil {
		return nil, errors.New(errors.PhaseTransfuse, errors.KindUnresolved).
			Path(t.target.Name).
			Detail("import %s", decl.FullName()).
			Cause(err).
			Build()
	}
	return imported, nil
}

// importCatch resolves and imports a handler's catch type into the target
// module. Nil catch types (finally, fault) pass through.
func (t *transfuser) importCatch(ref *il.MemberRef) (*il.MemberRef, error) {
	if ref == nil {
		return nil, nil
	}
	return t.importRef(ref)
}

// cloneOf returns the registered clone for a source instruction. Handler
// boundary resolution uses it after the instruction stream is transfused.
func (t *transfuser) cloneOf(in *il.Instruction) (*il.Instruction, error) {
	out, ok := t.clones[in]
	if !ok {
		return nil, errors.New(errors.PhaseTransfuse, errors.KindInvalidBody).
			Detail("no clone for instruction at %s", fmtOffset(in)).
			Build()
	}
	return out, nil
}

func fmtOffset(in *il.Instruction) string {
	return fmt.Sprintf("IL_%04x", in.Offset)
}
