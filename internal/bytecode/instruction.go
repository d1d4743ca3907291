package bytecode

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Instruction is a single decoded Viua instruction: an opcode plus its
// operands, stored in whatever fields its Shape uses. This is the common
// currency between the assembler's emitter, the loader, the interpreter's
// dispatch loop and the disassembler.
type Instruction struct {
	Op Op

	Regs   []IntOp // ShapeReg/RegReg/RegRegReg/RegInt32Int32(first)/RegFloat32/RegByte/Var*: leading register operands
	Int32s []int32 // ShapeInt32, trailing int32s of ShapeRegInt32Int32
	Float  float32 // ShapeRegFloat32
	Byte   byte    // ShapeRegByte, ShapeByte
	Names  []string // trailing NUL-terminated strings for variable-length opcodes; for STRSTORE this holds the literal
}

// EncodedSize returns the number of bytes Encode will produce for ins.
func EncodedSize(ins Instruction) int {
	shape, ok := ShapeOf(ins.Op)
	if !ok {
		return 0
	}
	if !shape.VariableLength() {
		n, _ := FixedSize(ins.Op)
		return n
	}
	size := 1
	switch shape {
	case ShapeVarRegString, ShapeVarRegName:
		size += 5
	case ShapeVarRegNameName:
		size += 5
	}
	for _, n := range ins.Names {
		size += len(n) + 1
	}
	return size
}

// Encode appends the byte encoding of ins to buf and returns the result.
func Encode(buf []byte, ins Instruction) ([]byte, error) {
	shape, ok := ShapeOf(ins.Op)
	if !ok {
		return nil, errors.Errorf("bytecode: unknown opcode %d", ins.Op)
	}
	buf = append(buf, byte(ins.Op))

	writeIntOp := func(o IntOp) {
		if o.ByReference {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(o.Index))
	}
	writeInt32 := func(v int32) {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
	}
	writeCString := func(s string) {
		buf = append(buf, []byte(s)...)
		buf = append(buf, 0)
	}

	switch shape {
	case ShapeNone:
	case ShapeReg:
		writeIntOp(regAt(ins, 0))
	case ShapeRegReg:
		writeIntOp(regAt(ins, 0))
		writeIntOp(regAt(ins, 1))
	case ShapeRegRegReg:
		writeIntOp(regAt(ins, 0))
		writeIntOp(regAt(ins, 1))
		writeIntOp(regAt(ins, 2))
	case ShapeInt32:
		writeInt32(int32At(ins, 0))
	case ShapeRegInt32Int32:
		writeIntOp(regAt(ins, 0))
		writeInt32(int32At(ins, 0))
		writeInt32(int32At(ins, 1))
	case ShapeRegFloat32:
		writeIntOp(regAt(ins, 0))
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(ins.Float))
	case ShapeRegByte:
		writeIntOp(regAt(ins, 0))
		buf = append(buf, ins.Byte)
	case ShapeByte:
		buf = append(buf, ins.Byte)
	case ShapeVarRegString:
		writeIntOp(regAt(ins, 0))
		writeCString(nameAt(ins, 0))
	case ShapeVarRegName:
		writeIntOp(regAt(ins, 0))
		writeCString(nameAt(ins, 0))
	case ShapeVarName:
		writeCString(nameAt(ins, 0))
	case ShapeVarNameName:
		writeCString(nameAt(ins, 0))
		writeCString(nameAt(ins, 1))
	case ShapeVarRegNameName:
		writeIntOp(regAt(ins, 0))
		writeCString(nameAt(ins, 0))
		writeCString(nameAt(ins, 1))
	default:
		return nil, errors.Errorf("bytecode: unhandled shape for opcode %q", ins.Op.Name())
	}
	return buf, nil
}

func regAt(ins Instruction, i int) IntOp {
	if i < len(ins.Regs) {
		return ins.Regs[i]
	}
	return IntOp{}
}

func int32At(ins Instruction, i int) int32 {
	if i < len(ins.Int32s) {
		return ins.Int32s[i]
	}
	return 0
}

func nameAt(ins Instruction, i int) string {
	if i < len(ins.Names) {
		return ins.Names[i]
	}
	return ""
}

// Decode reads a single instruction starting at buf[0], returning the
// instruction and the number of bytes consumed.
func Decode(buf []byte) (Instruction, int, error) {
	if len(buf) == 0 {
		return Instruction{}, 0, errors.New("bytecode: decode past end of stream")
	}
	op := Op(buf[0])
	shape, ok := ShapeOf(op)
	if !ok {
		return Instruction{}, 0, errors.Errorf("bytecode: unknown opcode byte 0x%02x", buf[0])
	}
	pos := 1

	readIntOp := func() (IntOp, error) {
		if pos+5 > len(buf) {
			return IntOp{}, errors.New("bytecode: truncated register operand")
		}
		ref := buf[pos] != 0
		idx := int32(binary.LittleEndian.Uint32(buf[pos+1 : pos+5]))
		pos += 5
		return IntOp{ByReference: ref, Index: idx}, nil
	}
	readInt32 := func() (int32, error) {
		if pos+4 > len(buf) {
			return 0, errors.New("bytecode: truncated int32 operand")
		}
		v := int32(binary.LittleEndian.Uint32(buf[pos : pos+4]))
		pos += 4
		return v, nil
	}
	readCString := func() (string, error) {
		start := pos
		for pos < len(buf) && buf[pos] != 0 {
			pos++
		}
		if pos >= len(buf) {
			return "", errors.New("bytecode: unterminated string operand")
		}
		s := string(buf[start:pos])
		pos++ // skip NUL
		return s, nil
	}

	ins := Instruction{Op: op}
	var err error
	switch shape {
	case ShapeNone:
	case ShapeReg:
		r, e := readIntOp()
		ins.Regs = []IntOp{r}
		err = e
	case ShapeRegReg:
		r0, e0 := readIntOp()
		r1, e1 := readIntOp()
		ins.Regs = []IntOp{r0, r1}
		err = firstErr(e0, e1)
	case ShapeRegRegReg:
		r0, e0 := readIntOp()
		r1, e1 := readIntOp()
		r2, e2 := readIntOp()
		ins.Regs = []IntOp{r0, r1, r2}
		err = firstErr(e0, e1, e2)
	case ShapeInt32:
		v, e := readInt32()
		ins.Int32s = []int32{v}
		err = e
	case ShapeRegInt32Int32:
		r0, e0 := readIntOp()
		v0, e1 := readInt32()
		v1, e2 := readInt32()
		ins.Regs = []IntOp{r0}
		ins.Int32s = []int32{v0, v1}
		err = firstErr(e0, e1, e2)
	case ShapeRegFloat32:
		r0, e0 := readIntOp()
		if e0 == nil {
			if pos+4 > len(buf) {
				err = errors.New("bytecode: truncated float32 operand")
			} else {
				ins.Float = math.Float32frombits(binary.LittleEndian.Uint32(buf[pos : pos+4]))
				pos += 4
			}
		} else {
			err = e0
		}
		ins.Regs = []IntOp{r0}
	case ShapeRegByte:
		r0, e0 := readIntOp()
		if e0 == nil {
			if pos >= len(buf) {
				err = errors.New("bytecode: truncated byte operand")
			} else {
				ins.Byte = buf[pos]
				pos++
			}
		} else {
			err = e0
		}
		ins.Regs = []IntOp{r0}
	case ShapeByte:
		if pos >= len(buf) {
			err = errors.New("bytecode: truncated byte operand")
		} else {
			ins.Byte = buf[pos]
			pos++
		}
	case ShapeVarRegString, ShapeVarRegName:
		r0, e0 := readIntOp()
		if e0 != nil {
			err = e0
			break
		}
		s, e1 := readCString()
		ins.Regs = []IntOp{r0}
		ins.Names = []string{s}
		err = e1
	case ShapeVarName:
		s, e := readCString()
		ins.Names = []string{s}
		err = e
	case ShapeVarNameName:
		s0, e0 := readCString()
		s1, e1 := readCString()
		ins.Names = []string{s0, s1}
		err = firstErr(e0, e1)
	case ShapeVarRegNameName:
		r0, e0 := readIntOp()
		if e0 != nil {
			err = e0
			break
		}
		s0, e1 := readCString()
		s1, e2 := readCString()
		ins.Regs = []IntOp{r0}
		ins.Names = []string{s0, s1}
		err = firstErr(e1, e2)
	default:
		err = errors.Errorf("bytecode: unhandled shape for opcode %q", op.Name())
	}
	if err != nil {
		return Instruction{}, 0, err
	}
	return ins, pos, nil
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
