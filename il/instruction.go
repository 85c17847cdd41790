package il

// Instruction is a single decoded IL operation. Offset is the byte offset of
// the instruction within its body; bodies maintain offsets as the prefix sum
// of instruction sizes.
type Instruction struct {
	Operand any
	Offset  int32
	Opcode  Opcode
}

// Int8Operand holds the literal for ldc.i4.s.
type Int8Operand struct {
	Value int8
}

// Int32Operand holds the literal for ldc.i4.
type Int32Operand struct {
	Value int32
}

// Int64Operand holds the literal for ldc.i8.
type Int64Operand struct {
	Value int64
}

// Float32Operand holds the literal for ldc.r4.
type Float32Operand struct {
	Value float32
}

// Float64Operand holds the literal for ldc.r8.
type Float64Operand struct {
	Value float64
}

// StringOperand holds the literal for ldstr.
type StringOperand struct {
	Value string
}

// ArgOperand holds the argument index for ldarg.s and starg.s.
type ArgOperand struct {
	Index uint8
}

// TargetOperand references another instruction in the same body (branch).
type TargetOperand struct {
	Target *Instruction
}

// SwitchOperand references the jump table of a switch instruction.
type SwitchOperand struct {
	Targets []*Instruction
}

// LocalOperand references a local slot for the explicit ldloc/stloc forms.
// The dedicated zero-operand forms (ldloc.0-3, stloc.0-3) carry no operand;
// their slot index is implied by the opcode.
type LocalOperand struct {
	Local *Local
}

// RefOperand references an imported type, field, or method declaration.
type RefOperand struct {
	Ref *MemberRef
}

// Size returns the encoded byte size of the instruction: opcode bytes plus
// operand bytes.
func (i *Instruction) Size() int32 {
	size := int32(1)
	if i.Opcode.IsWide() {
		size = 2
	}
	switch i.Opcode.OperandKind() {
	case OperandNone:
	case OperandI8, OperandArg8, OperandLocal8, OperandTarget8:
		size++
	case OperandLocal16:
		size += 2
	case OperandI32, OperandF32, OperandString, OperandTarget32,
		OperandType, OperandField, OperandMethod:
		size += 4
	case OperandI64, OperandF64:
		size += 8
	case OperandSwitch:
		n := int32(0)
		if sw, ok := i.Operand.(SwitchOperand); ok {
			n = int32(len(sw.Targets))
		}
		size += 4 + 4*n
	}
	return size
}

// LocalIndex returns the slot index referenced by the instruction, whether
// loading, storing, or taking the address of a local. The second result is
// false for instructions that do not touch a local slot.
func (i *Instruction) LocalIndex() (int, bool) {
	kind, implied := i.Opcode.localRef()
	if kind == LocalAccessNone {
		return 0, false
	}
	if implied >= 0 {
		return implied, true
	}
	if op, ok := i.Operand.(LocalOperand); ok && op.Local != nil {
		return op.Local.Index, true
	}
	return 0, false
}

// StoreLocalIndex returns the slot index for store instructions only.
func (i *Instruction) StoreLocalIndex() (int, bool) {
	if !i.Opcode.IsStoreLocal() {
		return 0, false
	}
	return i.LocalIndex()
}

// BranchTargets returns all instruction references held by the operand:
// the single target for branches, the full table for switch.
func (i *Instruction) BranchTargets() []*Instruction {
	switch op := i.Operand.(type) {
	case TargetOperand:
		if op.Target != nil {
			return []*Instruction{op.Target}
		}
	case SwitchOperand:
		return op.Targets
	}
	return nil
}

// IsReturn reports whether the instruction is a method return.
func (i *Instruction) IsReturn() bool { return i.Opcode == OpRet }
