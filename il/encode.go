package il

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/wippyai/il-weaver/errors"
)

// Container format identification.
var magic = []byte{0x00, 'I', 'L', 'W'}

const containerVersion byte = 1

// Method record flags.
const (
	methodFlagStatic  byte = 1 << 0
	methodFlagHasBody byte = 1 << 1
)

// Encode serializes a module to the binary container format.
//
// Instruction operands that reference declarations must already live in the
// module's reference table; operands carrying unregistered references are
// registered as a side effect. Body offsets are recomputed before encoding
// so relative branch distances are consistent.
func Encode(m *Module) ([]byte, error) {
	enc := &encoder{module: m, refIdx: make(map[*MemberRef]uint32), strIdx: make(map[string]uint32)}
	return enc.encode()
}

type encoder struct {
	module  *Module
	buf     bytes.Buffer
	refIdx  map[*MemberRef]uint32
	strIdx  map[string]uint32
	strings []string
}

func (e *encoder) encode() ([]byte, error) {
	m := e.module

	// Register operand refs and collect string literals before writing
	// the tables they index into.
	for _, t := range m.Types {
		for _, meth := range t.Methods {
			if meth.Body == nil {
				continue
			}
			meth.Body.RecomputeOffsets()
			for _, in := range meth.Body.Instructions {
				switch op := in.Operand.(type) {
				case RefOperand:
					if op.Ref != nil {
						m.RegisterRef(op.Ref)
					}
				case StringOperand:
					e.internString(op.Value)
				}
			}
			for _, h := range meth.Body.Handlers {
				if h.CatchType != nil {
					m.RegisterRef(h.CatchType)
				}
			}
		}
	}
	for i, ref := range m.Refs {
		e.refIdx[ref] = uint32(i)
	}

	e.buf.Write(magic)
	e.buf.WriteByte(containerVersion)
	e.writeString(m.Name)

	WriteLEB128u(&e.buf, uint32(len(m.Refs)))
	for _, ref := range m.Refs {
		e.buf.WriteByte(byte(ref.RKind))
		e.writeString(ref.Name)
	}

	WriteLEB128u(&e.buf, uint32(len(e.strings)))
	for _, s := range e.strings {
		e.writeString(s)
	}

	WriteLEB128u(&e.buf, uint32(len(m.Types)))
	for _, t := range m.Types {
		if err := e.writeType(t); err != nil {
			return nil, err
		}
	}
	return e.buf.Bytes(), nil
}

func (e *encoder) writeType(t *Type) error {
	e.writeString(t.Name)

	WriteLEB128u(&e.buf, uint32(len(t.Fields)))
	for _, f := range t.Fields {
		e.writeString(f.Name)
		e.writeString(string(f.Type))
	}

	WriteLEB128u(&e.buf, uint32(len(t.Methods)))
	for _, meth := range t.Methods {
		e.writeString(meth.Name)
		e.writeString(string(meth.Return))
		WriteLEB128u(&e.buf, uint32(len(meth.Params)))
		for _, p := range meth.Params {
			e.writeString(string(p))
		}
		var flags byte
		if meth.Static {
			flags |= methodFlagStatic
		}
		if meth.Body != nil {
			flags |= methodFlagHasBody
		}
		e.buf.WriteByte(flags)
		if meth.Body != nil {
			if err := e.writeBody(meth); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *encoder) writeBody(meth *Method) error {
	b := meth.Body
	if b.InitLocals {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
	WriteLEB128u(&e.buf, uint32(b.MaxStack))

	WriteLEB128u(&e.buf, uint32(len(b.Locals)))
	for _, l := range b.Locals {
		e.writeString(l.Name)
		e.writeString(string(l.Type))
	}

	code, err := e.encodeCode(meth)
	if err != nil {
		return err
	}
	WriteLEB128u(&e.buf, uint32(len(code)))
	e.buf.Write(code)

	WriteLEB128u(&e.buf, uint32(len(b.Handlers)))
	for _, h := range b.Handlers {
		e.buf.WriteByte(byte(h.Kind))
		if h.CatchType != nil {
			e.buf.WriteByte(1)
			WriteLEB128u(&e.buf, e.refIdx[h.CatchType])
		} else {
			e.buf.WriteByte(0)
		}
		for _, bound := range h.Boundaries() {
			in := *bound
			if in == nil {
				return errors.New(errors.PhaseEncode, errors.KindInvalidBody).
					Path(meth.FullName()).
					Detail("handler boundary is nil").
					Build()
			}
			WriteLEB128u(&e.buf, uint32(in.Offset))
		}
	}
	return nil
}

func (e *encoder) encodeCode(meth *Method) ([]byte, error) {
	var out bytes.Buffer
	for _, in := range meth.Body.Instructions {
		if err := e.encodeInstruction(&out, meth, in); err != nil {
			return nil, err
		}
	}
	return out.Bytes(), nil
}

func (e *encoder) encodeInstruction(out *bytes.Buffer, meth *Method, in *Instruction) error {
	if in.Opcode.IsWide() {
		out.WriteByte(PrefixWide)
	}
	out.WriteByte(byte(in.Opcode))

	next := in.Offset + in.Size()
	switch in.Opcode.OperandKind() {
	case OperandNone:
		return nil
	case OperandI8:
		op, ok := in.Operand.(Int8Operand)
		if !ok {
			return e.operandErr(meth, in)
		}
		out.WriteByte(byte(op.Value))
	case OperandI32:
		op, ok := in.Operand.(Int32Operand)
		if !ok {
			return e.operandErr(meth, in)
		}
		writeU32(out, uint32(op.Value))
	case OperandI64:
		op, ok := in.Operand.(Int64Operand)
		if !ok {
			return e.operandErr(meth, in)
		}
		writeU64(out, uint64(op.Value))
	case OperandF32:
		op, ok := in.Operand.(Float32Operand)
		if !ok {
			return e.operandErr(meth, in)
		}
		writeU32(out, math.Float32bits(op.Value))
	case OperandF64:
		op, ok := in.Operand.(Float64Operand)
		if !ok {
			return e.operandErr(meth, in)
		}
		writeU64(out, math.Float64bits(op.Value))
	case OperandString:
		op, ok := in.Operand.(StringOperand)
		if !ok {
			return e.operandErr(meth, in)
		}
		writeU32(out, e.internString(op.Value))
	case OperandArg8:
		op, ok := in.Operand.(ArgOperand)
		if !ok {
			return e.operandErr(meth, in)
		}
		out.WriteByte(op.Index)
	case OperandLocal8:
		idx, ok := in.LocalIndex()
		if !ok || idx > 0xFF {
			return e.operandErr(meth, in)
		}
		out.WriteByte(byte(idx))
	case OperandLocal16:
		idx, ok := in.LocalIndex()
		if !ok || idx > 0xFFFF {
			return e.operandErr(meth, in)
		}
		writeU16(out, uint16(idx))
	case OperandTarget8:
		op, ok := in.Operand.(TargetOperand)
		if !ok || op.Target == nil {
			return e.operandErr(meth, in)
		}
		delta := op.Target.Offset - next
		if delta < math.MinInt8 || delta > math.MaxInt8 {
			return errors.New(errors.PhaseEncode, errors.KindInvalidData).
				Path(meth.FullName()).
				Detail("short branch distance %d out of range", delta).
				Build()
		}
		out.WriteByte(byte(int8(delta)))
	case OperandTarget32:
		op, ok := in.Operand.(TargetOperand)
		if !ok || op.Target == nil {
			return e.operandErr(meth, in)
		}
		writeU32(out, uint32(op.Target.Offset-next))
	case OperandSwitch:
		op, ok := in.Operand.(SwitchOperand)
		if !ok {
			return e.operandErr(meth, in)
		}
		writeU32(out, uint32(len(op.Targets)))
		for _, t := range op.Targets {
			if t == nil {
				return e.operandErr(meth, in)
			}
			writeU32(out, uint32(t.Offset-next))
		}
	case OperandType, OperandField, OperandMethod:
		op, ok := in.Operand.(RefOperand)
		if !ok || op.Ref == nil {
			return e.operandErr(meth, in)
		}
		idx, ok := e.refIdx[op.Ref]
		if !ok {
			// RegisterRef dedupes by name, so an operand can hold a ref
			// that is not the table's canonical instance.
			canonical := e.module.RegisterRef(op.Ref)
			idx, ok = e.refIdx[canonical]
			if !ok {
				return errors.New(errors.PhaseEncode, errors.KindInvalidData).
					Path(meth.FullName()).
					Detail("reference %s not in module table", op.Ref.Name).
					Build()
			}
		}
		writeU32(out, idx)
	}
	return nil
}

func (e *encoder) operandErr(meth *Method, in *Instruction) error {
	return errors.New(errors.PhaseEncode, errors.KindUnsupported).
		Path(meth.FullName()).
		Detail("opcode %s with operand %T", in.Opcode, in.Operand).
		Build()
}

func (e *encoder) internString(s string) uint32 {
	if idx, ok := e.strIdx[s]; ok {
		return idx
	}
	idx := uint32(len(e.strings))
	e.strIdx[s] = idx
	e.strings = append(e.strings, s)
	return idx
}

func (e *encoder) writeString(s string) {
	WriteLEB128u(&e.buf, uint32(len(s)))
	e.buf.WriteString(s)
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
