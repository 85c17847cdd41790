package il

import (
	"fmt"
	"strings"
)

var mnemonics = map[Opcode]string{
	OpNop:   "nop",
	OpBreak: "break",

	OpLdarg0: "ldarg.0",
	OpLdarg1: "ldarg.1",
	OpLdarg2: "ldarg.2",
	OpLdarg3: "ldarg.3",

	OpLdloc0: "ldloc.0",
	OpLdloc1: "ldloc.1",
	OpLdloc2: "ldloc.2",
	OpLdloc3: "ldloc.3",
	OpStloc0: "stloc.0",
	OpStloc1: "stloc.1",
	OpStloc2: "stloc.2",
	OpStloc3: "stloc.3",

	OpLdargS:  "ldarg.s",
	OpStargS:  "starg.s",
	OpLdlocS:  "ldloc.s",
	OpLdlocaS: "ldloca.s",
	OpStlocS:  "stloc.s",

	OpLdnull:  "ldnull",
	OpLdcI4M1: "ldc.i4.m1",
	OpLdcI40:  "ldc.i4.0",
	OpLdcI41:  "ldc.i4.1",
	OpLdcI42:  "ldc.i4.2",
	OpLdcI43:  "ldc.i4.3",
	OpLdcI44:  "ldc.i4.4",
	OpLdcI45:  "ldc.i4.5",
	OpLdcI46:  "ldc.i4.6",
	OpLdcI47:  "ldc.i4.7",
	OpLdcI48:  "ldc.i4.8",
	OpLdcI4S:  "ldc.i4.s",
	OpLdcI4:   "ldc.i4",
	OpLdcI8:   "ldc.i8",
	OpLdcR4:   "ldc.r4",
	OpLdcR8:   "ldc.r8",

	OpDup: "dup",
	OpPop: "pop",

	OpCall: "call",
	OpRet:  "ret",

	OpBrS:      "br.s",
	OpBrfalseS: "brfalse.s",
	OpBrtrueS:  "brtrue.s",
	OpBr:       "br",
	OpBrfalse:  "brfalse",
	OpBrtrue:   "brtrue",

	OpSwitch: "switch",

	OpAdd: "add",
	OpSub: "sub",
	OpMul: "mul",
	OpDiv: "div",
	OpRem: "rem",

	OpCallvirt:  "callvirt",
	OpLdstr:     "ldstr",
	OpNewobj:    "newobj",
	OpCastclass: "castclass",
	OpIsinst:    "isinst",
	OpThrow:     "throw",
	OpLdfld:     "ldfld",
	OpStfld:     "stfld",
	OpLdsfld:    "ldsfld",
	OpStsfld:    "stsfld",

	OpEndfinally: "endfinally",
	OpLeave:      "leave",
	OpLeaveS:     "leave.s",

	OpCeq:    "ceq",
	OpLdloc:  "ldloc",
	OpLdloca: "ldloca",
	OpStloc:  "stloc",
}

// String returns the IL mnemonic for the opcode.
func (op Opcode) String() string {
	if s, ok := mnemonics[op]; ok {
		return s
	}
	return fmt.Sprintf("op.0x%04x", uint16(op))
}

// String formats the instruction as a single disassembly line without the
// offset label.
func (i *Instruction) String() string {
	mn := i.Opcode.String()
	switch op := i.Operand.(type) {
	case nil:
		return mn
	case Int8Operand:
		return fmt.Sprintf("%s %d", mn, op.Value)
	case Int32Operand:
		return fmt.Sprintf("%s %d", mn, op.Value)
	case Int64Operand:
		return fmt.Sprintf("%s %d", mn, op.Value)
	case Float32Operand:
		return fmt.Sprintf("%s %g", mn, op.Value)
	case Float64Operand:
		return fmt.Sprintf("%s %g", mn, op.Value)
	case StringOperand:
		return fmt.Sprintf("%s %q", mn, op.Value)
	case ArgOperand:
		return fmt.Sprintf("%s %d", mn, op.Index)
	case TargetOperand:
		if op.Target == nil {
			return mn + " <nil>"
		}
		return fmt.Sprintf("%s IL_%04x", mn, op.Target.Offset)
	case SwitchOperand:
		labels := make([]string, len(op.Targets))
		for j, t := range op.Targets {
			if t == nil {
				labels[j] = "<nil>"
				continue
			}
			labels[j] = fmt.Sprintf("IL_%04x", t.Offset)
		}
		return fmt.Sprintf("%s (%s)", mn, strings.Join(labels, ", "))
	case LocalOperand:
		if op.Local == nil {
			return mn + " <nil>"
		}
		return fmt.Sprintf("%s %d", mn, op.Local.Index)
	case RefOperand:
		if op.Ref == nil {
			return mn + " <nil>"
		}
		return fmt.Sprintf("%s %s", mn, op.Ref.Name)
	default:
		return fmt.Sprintf("%s %v", mn, op)
	}
}

// Disassemble renders the body as one line per instruction, prefixed with
// offset labels, followed by the handler table.
func Disassemble(b *Body) []string {
	var lines []string
	for _, in := range b.Instructions {
		lines = append(lines, fmt.Sprintf("IL_%04x: %s", in.Offset, in.String()))
	}
	for _, h := range b.Handlers {
		catch := ""
		if h.CatchType != nil {
			catch = " " + h.CatchType.Name
		}
		lines = append(lines, fmt.Sprintf(".%s%s try IL_%04x..IL_%04x handler IL_%04x..IL_%04x",
			h.Kind, catch,
			h.TryStart.Offset, h.TryEnd.Offset,
			h.HandlerStart.Offset, h.HandlerEnd.Offset))
	}
	return lines
}
