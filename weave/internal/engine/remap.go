package engine

import (
	"github.com/wippyai/il-weaver/errors"
	"github.com/wippyai/il-weaver/il"
)

// Remapper shifts local slot references by a fixed delta, rebinding each
// shifted instruction to the merged body's slot via Lookup and re-encoding
// it in the shortest form that fits the new index.
type Remapper struct {
	// Lookup maps a shifted slot index to the slot object of the merged
	// body. A nil result fails the shift.
	Lookup func(idx int) *il.Local
	// Delta is added to every referenced slot index.
	Delta int
}

// Shift rewrites in's local reference in place. Instructions that do not
// touch a local slot pass through unchanged.
func (r *Remapper) Shift(in *il.Instruction) error {
	idx, ok := in.LocalIndex()
	if !ok {
		return nil
	}
	idx += r.Delta

	local := r.Lookup(idx)
	if local == nil {
		return errors.New(errors.PhaseTransfuse, errors.KindInvalidBody).
			Detail("no slot at remapped index %d", idx).
			Build()
	}
	if local.Index != idx {
		return errors.New(errors.PhaseTransfuse, errors.KindInvalidBody).
			Detail("slot index mismatch: slot %d at remapped index %d", local.Index, idx).
			Build()
	}

	op, operand, err := encodeLocal(in.Opcode.LocalAccess(), local)
	if err != nil {
		return err
	}
	in.Opcode = op
	in.Operand = operand
	return nil
}

// encodeLocal picks the shortest instruction form for a slot access. The
// dedicated zero-operand forms cover indices 0-3 for loads and stores;
// address-of has no dedicated forms and starts at the .s encoding.
func encodeLocal(access il.LocalAccess, local *il.Local) (il.Opcode, any, error) {
	idx := local.Index
	switch access {
	case il.LocalAccessLoad:
		switch {
		case idx <= 3:
			return il.OpLdloc0 + il.Opcode(idx), nil, nil
		case idx <= 255:
			return il.OpLdlocS, il.LocalOperand{Local: local}, nil
		default:
			return il.OpLdloc, il.LocalOperand{Local: local}, nil
		}
	case il.LocalAccessStore:
		switch {
		case idx <= 3:
			return il.OpStloc0 + il.Opcode(idx), nil, nil
		case idx <= 255:
			return il.OpStlocS, il.LocalOperand{Local: local}, nil
		default:
			return il.OpStloc, il.LocalOperand{Local: local}, nil
		}
	case il.LocalAccessAddress:
		if idx <= 255 {
			return il.OpLdlocaS, il.LocalOperand{Local: local}, nil
		}
		return il.OpLdloca, il.LocalOperand{Local: local}, nil
	}
	return il.OpNop, nil, errors.New(errors.PhaseTransfuse, errors.KindUnsupported).
		Detail("not a local access").
		Build()
}
