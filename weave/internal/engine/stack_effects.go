package engine

import (
	"github.com/wippyai/il-weaver/errors"
	"github.com/wippyai/il-weaver/il"
)

// Stack effect sentinels.
const (
	// VarPop marks a pop count determined by the operand (calls pop one
	// value per parameter). VarPush is its push-side counterpart.
	VarPop  = -1
	VarPush = -1
	// PopAll marks instructions that empty the evaluation stack
	// (leave, endfinally).
	PopAll = -2
)

// StackEffect describes how an instruction changes evaluation stack depth.
type StackEffect struct {
	Pops   int
	Pushes int
}

// Effect returns the stack effect of an instruction. Call-like opcodes
// resolve concrete counts from their method reference when it has been
// resolved; otherwise the variable sentinels are returned.
func Effect(in *il.Instruction) StackEffect {
	op := in.Opcode

	switch {
	case op.IsLoadLocal():
		return StackEffect{Pops: 0, Pushes: 1}
	case op.IsStoreLocal():
		return StackEffect{Pops: 1, Pushes: 0}
	}

	switch op {
	case il.OpNop, il.OpBreak:
		return StackEffect{}

	case il.OpLdarg0, il.OpLdarg1, il.OpLdarg2, il.OpLdarg3, il.OpLdargS:
		return StackEffect{Pops: 0, Pushes: 1}
	case il.OpStargS:
		return StackEffect{Pops: 1, Pushes: 0}

	case il.OpLdnull, il.OpLdcI4M1,
		il.OpLdcI40, il.OpLdcI41, il.OpLdcI42, il.OpLdcI43, il.OpLdcI44,
		il.OpLdcI45, il.OpLdcI46, il.OpLdcI47, il.OpLdcI48,
		il.OpLdcI4S, il.OpLdcI4, il.OpLdcI8, il.OpLdcR4, il.OpLdcR8,
		il.OpLdstr, il.OpLdsfld:
		return StackEffect{Pops: 0, Pushes: 1}

	case il.OpDup:
		return StackEffect{Pops: 1, Pushes: 2}
	case il.OpPop, il.OpThrow, il.OpStsfld:
		return StackEffect{Pops: 1, Pushes: 0}

	case il.OpAdd, il.OpSub, il.OpMul, il.OpDiv, il.OpRem, il.OpCeq:
		return StackEffect{Pops: 2, Pushes: 1}

	case il.OpLdfld, il.OpCastclass, il.OpIsinst:
		return StackEffect{Pops: 1, Pushes: 1}
	case il.OpStfld:
		return StackEffect{Pops: 2, Pushes: 0}

	case il.OpBr, il.OpBrS:
		return StackEffect{}
	case il.OpBrtrue, il.OpBrfalse, il.OpBrtrueS, il.OpBrfalseS, il.OpSwitch:
		return StackEffect{Pops: 1, Pushes: 0}

	case il.OpRet:
		// Pops the return value in non-void methods; the method context
		// is not visible here.
		return StackEffect{Pops: VarPop, Pushes: 0}

	case il.OpLeave, il.OpLeaveS, il.OpEndfinally:
		return StackEffect{Pops: PopAll, Pushes: 0}

	case il.OpCall, il.OpCallvirt, il.OpNewobj:
		return callEffect(in)
	}

	return StackEffect{}
}

func callEffect(in *il.Instruction) StackEffect {
	op, ok := in.Operand.(il.RefOperand)
	if !ok || op.Ref == nil {
		return StackEffect{Pops: VarPop, Pushes: VarPush}
	}
	meth, ok := op.Ref.Def().(*il.Method)
	if !ok {
		return StackEffect{Pops: VarPop, Pushes: VarPush}
	}

	pops := len(meth.Params)
	pushes := 0
	switch in.Opcode {
	case il.OpNewobj:
		pushes = 1
	case il.OpCall, il.OpCallvirt:
		if !meth.Static || in.Opcode == il.OpCallvirt {
			pops++ // receiver
		}
		if meth.Return != il.Void {
			pushes = 1
		}
	}
	return StackEffect{Pops: pops, Pushes: pushes}
}

// SimulateStack walks the instruction list linearly, tracking evaluation
// stack depth with the classifier. It returns the maximum depth reached, or
// an error if depth goes negative or a return sees the wrong depth for the
// declared return type. Variable effects from unresolved calls are treated
// as depth-neutral; the simulation is a heuristic, not a verifier.
func SimulateStack(instrs []*il.Instruction, ret il.TypeSig) (int, error) {
	depth, max := 0, 0
	for _, in := range instrs {
		if in.Opcode == il.OpRet {
			want := 0
			if ret != il.Void {
				want = 1
			}
			if depth != want {
				return max, errors.InvalidBody("IL_%04x: depth %d at return, want %d", in.Offset, depth, want)
			}
			depth = 0
			continue
		}
		if in.Opcode == il.OpThrow {
			depth = 0
			continue
		}

		eff := Effect(in)
		switch {
		case eff.Pops == PopAll:
			depth = 0
		case eff.Pops == VarPop || eff.Pushes == VarPush:
			// unresolved call: leave depth unchanged
			continue
		default:
			depth -= eff.Pops
			if depth < 0 {
				return max, errors.InvalidBody("IL_%04x: stack underflow", in.Offset)
			}
			depth += eff.Pushes
			if depth > max {
				max = depth
			}
		}
	}
	return max, nil
}

// EstimateMaxStack computes a conservative max-stack value for a body with
// the given return type. Handler bodies receive the caught exception on the
// stack, so bodies with handlers report at least depth 1.
func EstimateMaxStack(b *il.Body, ret il.TypeSig) int {
	max, _ := SimulateStack(b.Instructions, ret)
	if len(b.Handlers) > 0 && max < 1 {
		max = 1
	}
	return max
}
