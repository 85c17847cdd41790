package il

import (
	"github.com/wippyai/il-weaver/errors"
)

// RecomputeOffsets rewrites every instruction offset as the prefix sum of
// instruction sizes, restoring the offset invariant after edits.
func (b *Body) RecomputeOffsets() {
	var off int32
	for _, in := range b.Instructions {
		in.Offset = off
		off += in.Size()
	}
}

// CodeSize returns the total encoded size of the instruction stream.
func (b *Body) CodeSize() int32 {
	var size int32
	for _, in := range b.Instructions {
		size += in.Size()
	}
	return size
}

// ValidateBody checks the structural invariants of a method body:
//
//   - instruction offsets strictly increase and equal the prefix sum of
//     instruction sizes
//   - local slot indices are dense from 0 and match list positions
//   - every instruction-reference operand resolves, by identity, to an
//     instruction in the body
//   - every handler region boundary resolves, by identity, to an
//     instruction in the body
func ValidateBody(b *Body) error {
	present := make(map[*Instruction]bool, len(b.Instructions))
	var off int32
	for i, in := range b.Instructions {
		if in.Offset != off {
			return errors.InvalidBody("instruction %d: offset %d, want %d", i, in.Offset, off)
		}
		off += in.Size()
		present[in] = true
	}

	for i, l := range b.Locals {
		if l.Index != i {
			return errors.InvalidBody("local %q: index %d at position %d", l.Name, l.Index, i)
		}
	}

	for _, in := range b.Instructions {
		for _, t := range in.BranchTargets() {
			if !present[t] {
				return errors.InvalidBody("IL_%04x: branch target not in body", in.Offset)
			}
		}
		if idx, ok := in.LocalIndex(); ok {
			if idx >= len(b.Locals) {
				return errors.InvalidBody("IL_%04x: local index %d out of range", in.Offset, idx)
			}
			if op, isExplicit := in.Operand.(LocalOperand); isExplicit && op.Local != b.Locals[idx] {
				return errors.InvalidBody("IL_%04x: local operand is not the body's slot %d", in.Offset, idx)
			}
		}
	}

	for i, h := range b.Handlers {
		for _, bound := range h.Boundaries() {
			if *bound == nil || !present[*bound] {
				return errors.InvalidBody("handler %d: boundary not in body", i)
			}
		}
	}
	return nil
}
