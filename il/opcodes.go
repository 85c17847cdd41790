package il

// Opcode identifies a single IL operation. Plain opcodes occupy one byte;
// wide forms carry the 0xFE prefix in the high byte and encode as two bytes.
type Opcode uint16

// PrefixWide is the escape byte introducing two-byte opcodes.
const PrefixWide byte = 0xFE

// Single-byte opcodes. Values follow the ECMA-335 encoding.
const (
	OpNop   Opcode = 0x00
	OpBreak Opcode = 0x01

	OpLdarg0 Opcode = 0x02
	OpLdarg1 Opcode = 0x03
	OpLdarg2 Opcode = 0x04
	OpLdarg3 Opcode = 0x05

	OpLdloc0 Opcode = 0x06
	OpLdloc1 Opcode = 0x07
	OpLdloc2 Opcode = 0x08
	OpLdloc3 Opcode = 0x09
	OpStloc0 Opcode = 0x0A
	OpStloc1 Opcode = 0x0B
	OpStloc2 Opcode = 0x0C
	OpStloc3 Opcode = 0x0D

	OpLdargS  Opcode = 0x0E
	OpStargS  Opcode = 0x10
	OpLdlocS  Opcode = 0x11
	OpLdlocaS Opcode = 0x12
	OpStlocS  Opcode = 0x13

	OpLdnull  Opcode = 0x14
	OpLdcI4M1 Opcode = 0x15
	OpLdcI40  Opcode = 0x16
	OpLdcI41  Opcode = 0x17
	OpLdcI42  Opcode = 0x18
	OpLdcI43  Opcode = 0x19
	OpLdcI44  Opcode = 0x1A
	OpLdcI45  Opcode = 0x1B
	OpLdcI46  Opcode = 0x1C
	OpLdcI47  Opcode = 0x1D
	OpLdcI48  Opcode = 0x1E
	OpLdcI4S  Opcode = 0x1F
	OpLdcI4   Opcode = 0x20
	OpLdcI8   Opcode = 0x21
	OpLdcR4   Opcode = 0x22
	OpLdcR8   Opcode = 0x23

	OpDup Opcode = 0x25
	OpPop Opcode = 0x26

	OpCall Opcode = 0x28
	OpRet  Opcode = 0x2A

	OpBrS      Opcode = 0x2B
	OpBrfalseS Opcode = 0x2C
	OpBrtrueS  Opcode = 0x2D
	OpBr       Opcode = 0x38
	OpBrfalse  Opcode = 0x39
	OpBrtrue   Opcode = 0x3A

	OpSwitch Opcode = 0x45

	OpAdd Opcode = 0x58
	OpSub Opcode = 0x59
	OpMul Opcode = 0x5A
	OpDiv Opcode = 0x5B
	OpRem Opcode = 0x5D

	OpCallvirt  Opcode = 0x6F
	OpLdstr     Opcode = 0x72
	OpNewobj    Opcode = 0x73
	OpCastclass Opcode = 0x74
	OpIsinst    Opcode = 0x75
	OpThrow     Opcode = 0x7A
	OpLdfld     Opcode = 0x7B
	OpStfld     Opcode = 0x7D
	OpLdsfld    Opcode = 0x7E
	OpStsfld    Opcode = 0x80

	OpEndfinally Opcode = 0xDC
	OpLeave      Opcode = 0xDD
	OpLeaveS     Opcode = 0xDE
)

// Wide (0xFE-prefixed) opcodes.
const (
	OpCeq    Opcode = 0xFE01
	OpLdloc  Opcode = 0xFE0C
	OpLdloca Opcode = 0xFE0D
	OpStloc  Opcode = 0xFE0E
)

// OperandKind describes the encoded operand shape of an opcode.
type OperandKind uint8

const (
	OperandNone    OperandKind = iota
	OperandI8                  // 1-byte signed literal
	OperandI32                 // 4-byte signed literal
	OperandI64                 // 8-byte signed literal
	OperandF32                 // 4-byte float literal
	OperandF64                 // 8-byte float literal
	OperandString              // 4-byte string table token
	OperandArg8                // 1-byte argument index
	OperandLocal8              // 1-byte local slot index
	OperandLocal16             // 2-byte local slot index (wide forms)
	OperandTarget8             // 1-byte relative branch target
	OperandTarget32            // 4-byte relative branch target
	OperandSwitch              // 4-byte count followed by 4-byte targets
	OperandType                // 4-byte type reference token
	OperandField               // 4-byte field reference token
	OperandMethod              // 4-byte method reference token
)

// OperandKind returns the operand shape for the opcode.
func (op Opcode) OperandKind() OperandKind {
	switch op {
	case OpLdcI4S:
		return OperandI8
	case OpLdcI4:
		return OperandI32
	case OpLdcI8:
		return OperandI64
	case OpLdcR4:
		return OperandF32
	case OpLdcR8:
		return OperandF64
	case OpLdstr:
		return OperandString
	case OpLdargS, OpStargS:
		return OperandArg8
	case OpLdlocS, OpLdlocaS, OpStlocS:
		return OperandLocal8
	case OpLdloc, OpLdloca, OpStloc:
		return OperandLocal16
	case OpBrS, OpBrfalseS, OpBrtrueS, OpLeaveS:
		return OperandTarget8
	case OpBr, OpBrfalse, OpBrtrue, OpLeave:
		return OperandTarget32
	case OpSwitch:
		return OperandSwitch
	case OpCastclass, OpIsinst:
		return OperandType
	case OpLdfld, OpStfld, OpLdsfld, OpStsfld:
		return OperandField
	case OpCall, OpCallvirt, OpNewobj:
		return OperandMethod
	default:
		return OperandNone
	}
}

// IsWide reports whether the opcode encodes with the 0xFE prefix.
func (op Opcode) IsWide() bool { return op&0xFF00 == 0xFE00 }

// IsBranch reports whether the opcode carries a single branch target.
func (op Opcode) IsBranch() bool {
	k := op.OperandKind()
	return k == OperandTarget8 || k == OperandTarget32
}

// IsRef reports whether the opcode carries a type, field, or method reference.
func (op Opcode) IsRef() bool {
	k := op.OperandKind()
	return k == OperandType || k == OperandField || k == OperandMethod
}

// LocalAccess classifies how an opcode touches a local slot.
type LocalAccess uint8

const (
	LocalAccessNone LocalAccess = iota
	LocalAccessLoad
	LocalAccessStore
	LocalAccessAddress
)

// LocalAccess returns the slot access kind of the opcode.
func (op Opcode) LocalAccess() LocalAccess {
	k, _ := op.localRef()
	return k
}

// localRef returns the slot access kind and, for the dedicated short forms,
// the opcode-implied index. For explicit forms the index lives in the operand
// and impliedIdx is -1.
func (op Opcode) localRef() (kind LocalAccess, impliedIdx int) {
	switch op {
	case OpLdloc0, OpLdloc1, OpLdloc2, OpLdloc3:
		return LocalAccessLoad, int(op - OpLdloc0)
	case OpStloc0, OpStloc1, OpStloc2, OpStloc3:
		return LocalAccessStore, int(op - OpStloc0)
	case OpLdlocS, OpLdloc:
		return LocalAccessLoad, -1
	case OpStlocS, OpStloc:
		return LocalAccessStore, -1
	case OpLdlocaS, OpLdloca:
		return LocalAccessAddress, -1
	default:
		return LocalAccessNone, -1
	}
}

// IsStoreLocal reports whether the opcode stores to a local slot.
func (op Opcode) IsStoreLocal() bool {
	return op.LocalAccess() == LocalAccessStore
}

// IsLoadLocal reports whether the opcode loads a local slot (value or address).
func (op Opcode) IsLoadLocal() bool {
	k := op.LocalAccess()
	return k == LocalAccessLoad || k == LocalAccessAddress
}
