package engine

import (
	"github.com/wippyai/il-weaver/il"
)

// Patch rewrites every handler boundary that points at old (by identity) to
// point at new instead. It returns the number of boundaries rewritten.
//
// Boundary rewriting runs whenever the pipeline replaces an instruction
// reference: once during transfusion for each cloned instruction, and again
// during the relink pass as a defensive sweep.
func Patch(handlers []*il.Handler, old, new *il.Instruction) int {
	if old == nil || old == new {
		return 0
	}
	patched := 0
	for _, h := range handlers {
		for _, slot := range h.Boundaries() {
			if *slot == old {
				*slot = new
				patched++
			}
		}
	}
	return patched
}

// PatchBranches rewrites branch operands in instrs pointing at old to point
// at new. Switch tables are rewritten entry by entry.
func PatchBranches(instrs []*il.Instruction, old, new *il.Instruction) int {
	if old == nil || old == new {
		return 0
	}
	patched := 0
	for _, in := range instrs {
		switch op := in.Operand.(type) {
		case il.TargetOperand:
			if op.Target == old {
				in.Operand = il.TargetOperand{Target: new}
				patched++
			}
		case il.SwitchOperand:
			for i, t := range op.Targets {
				if t == old {
					op.Targets[i] = new
					patched++
				}
			}
		}
	}
	return patched
}
