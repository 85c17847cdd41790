package il

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/wippyai/il-weaver/errors"
)

// Decode parses a binary container into a module. Branch targets and handler
// boundaries are reconstructed to instruction identity; every decoded body is
// validated before the module is returned.
func Decode(data []byte) (*Module, error) {
	d := &decoder{r: bytes.NewReader(data)}
	return d.decode()
}

type decoder struct {
	r       *bytes.Reader
	module  *Module
	strings []string
}

func (d *decoder) decode() (*Module, error) {
	header := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(d.r, header); err != nil {
		return nil, errors.InvalidData(errors.PhaseDecode, "truncated header")
	}
	if !bytes.Equal(header[:len(magic)], magic) {
		return nil, errors.InvalidData(errors.PhaseDecode, "bad magic")
	}
	if header[len(magic)] != containerVersion {
		return nil, errors.InvalidData(errors.PhaseDecode, "unsupported version %d", header[len(magic)])
	}

	name, err := d.readString()
	if err != nil {
		return nil, err
	}
	d.module = NewModule(name)

	refCount, err := ReadLEB128u(d.r)
	if err != nil {
		return nil, errors.InvalidData(errors.PhaseDecode, "reference table: %v", err)
	}
	for i := uint32(0); i < refCount; i++ {
		kind, err := d.r.ReadByte()
		if err != nil {
			return nil, errors.InvalidData(errors.PhaseDecode, "reference table: %v", err)
		}
		refName, err := d.readString()
		if err != nil {
			return nil, err
		}
		d.module.RegisterRef(NewRef(RefKind(kind), refName))
	}

	strCount, err := ReadLEB128u(d.r)
	if err != nil {
		return nil, errors.InvalidData(errors.PhaseDecode, "string table: %v", err)
	}
	for i := uint32(0); i < strCount; i++ {
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		d.strings = append(d.strings, s)
	}

	typeCount, err := ReadLEB128u(d.r)
	if err != nil {
		return nil, errors.InvalidData(errors.PhaseDecode, "type table: %v", err)
	}
	for i := uint32(0); i < typeCount; i++ {
		if err := d.readType(); err != nil {
			return nil, err
		}
	}
	return d.module, nil
}

func (d *decoder) readType() error {
	name, err := d.readString()
	if err != nil {
		return err
	}
	t := d.module.AddType(&Type{Name: name})

	fieldCount, err := ReadLEB128u(d.r)
	if err != nil {
		return errors.InvalidData(errors.PhaseDecode, "%s fields: %v", name, err)
	}
	for i := uint32(0); i < fieldCount; i++ {
		fname, err := d.readString()
		if err != nil {
			return err
		}
		ftype, err := d.readString()
		if err != nil {
			return err
		}
		t.AddField(&Field{Name: fname, Type: TypeSig(ftype)})
	}

	methodCount, err := ReadLEB128u(d.r)
	if err != nil {
		return errors.InvalidData(errors.PhaseDecode, "%s methods: %v", name, err)
	}
	for i := uint32(0); i < methodCount; i++ {
		if err := d.readMethod(t); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) readMethod(t *Type) error {
	name, err := d.readString()
	if err != nil {
		return err
	}
	ret, err := d.readString()
	if err != nil {
		return err
	}
	meth := t.AddMethod(&Method{Name: name, Return: TypeSig(ret)})

	paramCount, err := ReadLEB128u(d.r)
	if err != nil {
		return errors.InvalidData(errors.PhaseDecode, "%s params: %v", meth.FullName(), err)
	}
	for i := uint32(0); i < paramCount; i++ {
		p, err := d.readString()
		if err != nil {
			return err
		}
		meth.Params = append(meth.Params, TypeSig(p))
	}

	flags, err := d.r.ReadByte()
	if err != nil {
		return errors.InvalidData(errors.PhaseDecode, "%s flags: %v", meth.FullName(), err)
	}
	meth.Static = flags&methodFlagStatic != 0
	if flags&methodFlagHasBody == 0 {
		return nil
	}
	return d.readBody(meth)
}

func (d *decoder) readBody(meth *Method) error {
	body := &Body{}
	meth.Body = body

	initLocals, err := d.r.ReadByte()
	if err != nil {
		return errors.InvalidData(errors.PhaseDecode, "%s body: %v", meth.FullName(), err)
	}
	body.InitLocals = initLocals != 0

	maxStack, err := ReadLEB128u(d.r)
	if err != nil {
		return errors.InvalidData(errors.PhaseDecode, "%s body: %v", meth.FullName(), err)
	}
	body.MaxStack = int(maxStack)

	localCount, err := ReadLEB128u(d.r)
	if err != nil {
		return errors.InvalidData(errors.PhaseDecode, "%s locals: %v", meth.FullName(), err)
	}
	for i := uint32(0); i < localCount; i++ {
		lname, err := d.readString()
		if err != nil {
			return err
		}
		ltype, err := d.readString()
		if err != nil {
			return err
		}
		body.Locals = append(body.Locals, &Local{Name: lname, Type: TypeSig(ltype), Index: int(i)})
	}

	codeLen, err := ReadLEB128u(d.r)
	if err != nil {
		return errors.InvalidData(errors.PhaseDecode, "%s code: %v", meth.FullName(), err)
	}
	code := make([]byte, codeLen)
	if _, err := io.ReadFull(d.r, code); err != nil {
		return errors.InvalidData(errors.PhaseDecode, "%s code: truncated", meth.FullName())
	}
	byOffset, err := d.decodeCode(meth, code)
	if err != nil {
		return err
	}

	handlerCount, err := ReadLEB128u(d.r)
	if err != nil {
		return errors.InvalidData(errors.PhaseDecode, "%s handlers: %v", meth.FullName(), err)
	}
	for i := uint32(0); i < handlerCount; i++ {
		h := &Handler{}
		kind, err := d.r.ReadByte()
		if err != nil {
			return errors.InvalidData(errors.PhaseDecode, "%s handlers: %v", meth.FullName(), err)
		}
		h.Kind = HandlerKind(kind)
		hasCatch, err := d.r.ReadByte()
		if err != nil {
			return errors.InvalidData(errors.PhaseDecode, "%s handlers: %v", meth.FullName(), err)
		}
		if hasCatch != 0 {
			token, err := ReadLEB128u(d.r)
			if err != nil {
				return errors.InvalidData(errors.PhaseDecode, "%s handlers: %v", meth.FullName(), err)
			}
			if int(token) >= len(d.module.Refs) {
				return errors.InvalidData(errors.PhaseDecode, "%s handlers: catch token %d out of range", meth.FullName(), token)
			}
			h.CatchType = d.module.Refs[token]
		}
		for _, bound := range h.Boundaries() {
			off, err := ReadLEB128u(d.r)
			if err != nil {
				return errors.InvalidData(errors.PhaseDecode, "%s handlers: %v", meth.FullName(), err)
			}
			in, ok := byOffset[int32(off)]
			if !ok {
				return errors.InvalidData(errors.PhaseDecode, "%s handlers: boundary offset %d has no instruction", meth.FullName(), off)
			}
			*bound = in
		}
		body.Handlers = append(body.Handlers, h)
	}

	if err := ValidateBody(body); err != nil {
		return errors.New(errors.PhaseDecode, errors.KindInvalidBody).
			Path(meth.FullName()).
			Cause(err).
			Build()
	}
	return nil
}

// branchFixup records a relative branch to patch once all offsets are known.
type branchFixup struct {
	instr    *Instruction
	targets  []int32 // absolute target offsets
	isSwitch bool
}

func (d *decoder) decodeCode(meth *Method, code []byte) (map[int32]*Instruction, error) {
	body := meth.Body
	r := bytes.NewReader(code)
	byOffset := make(map[int32]*Instruction)
	var fixups []branchFixup

	for r.Len() > 0 {
		offset := int32(len(code) - r.Len())
		opByte, _ := r.ReadByte()
		op := Opcode(opByte)
		if opByte == PrefixWide {
			low, err := r.ReadByte()
			if err != nil {
				return nil, d.codeErr(meth, offset, "truncated wide opcode")
			}
			op = Opcode(0xFE00 | uint16(low))
		}

		in := &Instruction{Opcode: op, Offset: offset}
		if err := d.decodeOperand(meth, r, in, &fixups); err != nil {
			return nil, err
		}
		body.Instructions = append(body.Instructions, in)
		byOffset[offset] = in
	}

	for _, fx := range fixups {
		resolved := make([]*Instruction, len(fx.targets))
		for i, off := range fx.targets {
			in, ok := byOffset[off]
			if !ok {
				return nil, d.codeErr(meth, fx.instr.Offset, "branch target offset %d has no instruction", off)
			}
			resolved[i] = in
		}
		if fx.isSwitch {
			fx.instr.Operand = SwitchOperand{Targets: resolved}
		} else {
			fx.instr.Operand = TargetOperand{Target: resolved[0]}
		}
	}
	return byOffset, nil
}

func (d *decoder) decodeOperand(meth *Method, r *bytes.Reader, in *Instruction, fixups *[]branchFixup) error {
	switch in.Opcode.OperandKind() {
	case OperandNone:
		return nil
	case OperandI8:
		b, err := r.ReadByte()
		if err != nil {
			return d.codeErr(meth, in.Offset, "truncated operand")
		}
		in.Operand = Int8Operand{Value: int8(b)}
	case OperandI32:
		v, err := d.readU32(r)
		if err != nil {
			return d.codeErr(meth, in.Offset, "truncated operand")
		}
		in.Operand = Int32Operand{Value: int32(v)}
	case OperandI64:
		v, err := d.readU64(r)
		if err != nil {
			return d.codeErr(meth, in.Offset, "truncated operand")
		}
		in.Operand = Int64Operand{Value: int64(v)}
	case OperandF32:
		v, err := d.readU32(r)
		if err != nil {
			return d.codeErr(meth, in.Offset, "truncated operand")
		}
		in.Operand = Float32Operand{Value: math.Float32frombits(v)}
	case OperandF64:
		v, err := d.readU64(r)
		if err != nil {
			return d.codeErr(meth, in.Offset, "truncated operand")
		}
		in.Operand = Float64Operand{Value: math.Float64frombits(v)}
	case OperandString:
		v, err := d.readU32(r)
		if err != nil {
			return d.codeErr(meth, in.Offset, "truncated operand")
		}
		if int(v) >= len(d.strings) {
			return d.codeErr(meth, in.Offset, "string token %d out of range", v)
		}
		in.Operand = StringOperand{Value: d.strings[v]}
	case OperandArg8:
		b, err := r.ReadByte()
		if err != nil {
			return d.codeErr(meth, in.Offset, "truncated operand")
		}
		in.Operand = ArgOperand{Index: b}
	case OperandLocal8:
		b, err := r.ReadByte()
		if err != nil {
			return d.codeErr(meth, in.Offset, "truncated operand")
		}
		return d.setLocalOperand(meth, in, int(b))
	case OperandLocal16:
		v, err := d.readU16(r)
		if err != nil {
			return d.codeErr(meth, in.Offset, "truncated operand")
		}
		return d.setLocalOperand(meth, in, int(v))
	case OperandTarget8:
		b, err := r.ReadByte()
		if err != nil {
			return d.codeErr(meth, in.Offset, "truncated operand")
		}
		next := in.Offset + in.Size()
		*fixups = append(*fixups, branchFixup{instr: in, targets: []int32{next + int32(int8(b))}})
	case OperandTarget32:
		v, err := d.readU32(r)
		if err != nil {
			return d.codeErr(meth, in.Offset, "truncated operand")
		}
		next := in.Offset + in.Size()
		*fixups = append(*fixups, branchFixup{instr: in, targets: []int32{next + int32(v)}})
	case OperandSwitch:
		count, err := d.readU32(r)
		if err != nil {
			return d.codeErr(meth, in.Offset, "truncated operand")
		}
		deltas := make([]int32, count)
		for i := range deltas {
			v, err := d.readU32(r)
			if err != nil {
				return d.codeErr(meth, in.Offset, "truncated switch table")
			}
			deltas[i] = int32(v)
		}
		// Size depends on the table length, so materialize the operand
		// before computing the fall-through offset.
		in.Operand = SwitchOperand{Targets: make([]*Instruction, count)}
		next := in.Offset + in.Size()
		targets := make([]int32, count)
		for i, delta := range deltas {
			targets[i] = next + delta
		}
		*fixups = append(*fixups, branchFixup{instr: in, targets: targets, isSwitch: true})
	case OperandType, OperandField, OperandMethod:
		v, err := d.readU32(r)
		if err != nil {
			return d.codeErr(meth, in.Offset, "truncated operand")
		}
		if int(v) >= len(d.module.Refs) {
			return d.codeErr(meth, in.Offset, "reference token %d out of range", v)
		}
		in.Operand = RefOperand{Ref: d.module.Refs[v]}
	}
	return nil
}

func (d *decoder) setLocalOperand(meth *Method, in *Instruction, idx int) error {
	if idx >= len(meth.Body.Locals) {
		return d.codeErr(meth, in.Offset, "local index %d out of range", idx)
	}
	in.Operand = LocalOperand{Local: meth.Body.Locals[idx]}
	return nil
}

func (d *decoder) codeErr(meth *Method, offset int32, format string, args ...any) error {
	return errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Path(meth.FullName()).
		Detail("IL_%04x: "+format, append([]any{offset}, args...)...).
		Build()
}

func (d *decoder) readString() (string, error) {
	n, err := ReadLEB128u(d.r)
	if err != nil {
		return "", errors.InvalidData(errors.PhaseDecode, "string length: %v", err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return "", errors.InvalidData(errors.PhaseDecode, "truncated string")
	}
	return string(buf), nil
}

func (d *decoder) readU16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func (d *decoder) readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (d *decoder) readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
