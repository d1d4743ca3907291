package vm

import (
	"strconv"
	"strings"

	"viua/internal/bytecode"
	"viua/internal/value"
	"viua/internal/vmerr"
)

// execArith covers the integer, float and byte arithmetic/compare families
// plus the numeric conversion opcodes (ITOF/FTOI/STOI/STOF).
func (c *CPU) execArith(ins bytecode.Instruction) *vmerr.Exception {
	switch ins.Op {
	case bytecode.IZERO:
		return c.storeAt(ins.Regs[0], value.Integer{V: 0})
	case bytecode.ISTORE:
		dest, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return raised
		}
		return setErr(c.current.Set(dest, value.Integer{V: int64(ins.Regs[1].Index)}))

	case bytecode.IADD, bytecode.ISUB, bytecode.IMUL, bytecode.IDIV,
		bytecode.ILT, bytecode.ILTE, bytecode.IGT, bytecode.IGTE, bytecode.IEQ:
		return c.intBinOp(ins)
	case bytecode.IINC, bytecode.IDEC:
		return c.intStep(ins)

	case bytecode.FSTORE:
		dest, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return raised
		}
		return setErr(c.current.Set(dest, value.Float{V: float64(ins.Float)}))
	case bytecode.FADD, bytecode.FSUB, bytecode.FMUL, bytecode.FDIV,
		bytecode.FLT, bytecode.FLTE, bytecode.FGT, bytecode.FGTE, bytecode.FEQ:
		return c.floatBinOp(ins)

	case bytecode.BSTORE:
		dest, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return raised
		}
		return setErr(c.current.Set(dest, value.Byte{V: ins.Byte}))
	case bytecode.BADD, bytecode.BSUB, bytecode.BLT, bytecode.BLTE,
		bytecode.BGT, bytecode.BGTE, bytecode.BEQ:
		return c.byteBinOp(ins)
	case bytecode.BINC, bytecode.BDEC:
		return c.byteStep(ins)

	case bytecode.ITOF:
		return c.convert(ins, func(v value.Value) (value.Value, bool) {
			iv, ok := asInteger(v)
			if !ok {
				return nil, false
			}
			return value.Float{V: float64(iv)}, true
		})
	case bytecode.FTOI:
		return c.convert(ins, func(v value.Value) (value.Value, bool) {
			fv, ok := asFloat(v)
			if !ok {
				return nil, false
			}
			return value.Integer{V: int64(fv)}, true
		})
	case bytecode.STOI:
		return c.convert(ins, func(v value.Value) (value.Value, bool) {
			sv, ok := asString(v)
			if !ok {
				return nil, false
			}
			n, err := strconv.ParseInt(strings.TrimSpace(sv), 10, 64)
			if err != nil {
				return nil, false
			}
			return value.Integer{V: n}, true
		})
	case bytecode.STOF:
		return c.convert(ins, func(v value.Value) (value.Value, bool) {
			sv, ok := asString(v)
			if !ok {
				return nil, false
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(sv), 64)
			if err != nil {
				return nil, false
			}
			return value.Float{V: f}, true
		})
	}
	return vmerr.New(vmerr.BadFrame, "arith: unhandled opcode %q", ins.Op.Name())
}

func (c *CPU) storeAt(op bytecode.IntOp, v value.Value) *vmerr.Exception {
	dest, raised := c.resolveOperand(c.current, op)
	if raised != nil {
		return raised
	}
	return setErr(c.current.Set(dest, v))
}

func (c *CPU) convert(ins bytecode.Instruction, fn func(value.Value) (value.Value, bool)) *vmerr.Exception {
	dest, raised := c.resolveOperand(c.current, ins.Regs[0])
	if raised != nil {
		return raised
	}
	v, _, raised := c.regVal(ins.Regs[1])
	if raised != nil {
		return raised
	}
	out, ok := fn(v)
	if !ok {
		return vmerr.New(vmerr.TypeError, "%s: invalid conversion operand", ins.Op.Name())
	}
	return setErr(c.current.Set(dest, out))
}

func (c *CPU) intBinOp(ins bytecode.Instruction) *vmerr.Exception {
	dest, raised := c.resolveOperand(c.current, ins.Regs[0])
	if raised != nil {
		return raised
	}
	lv, _, raised := c.regVal(ins.Regs[1])
	if raised != nil {
		return raised
	}
	rv, _, raised := c.regVal(ins.Regs[2])
	if raised != nil {
		return raised
	}
	l, ok1 := asInteger(lv)
	r, ok2 := asInteger(rv)
	if !ok1 || !ok2 {
		return vmerr.New(vmerr.TypeError, "%s: operands must be Integer", ins.Op.Name())
	}
	var result value.Value
	switch ins.Op {
	case bytecode.IADD:
		result = value.Integer{V: l + r}
	case bytecode.ISUB:
		result = value.Integer{V: l - r}
	case bytecode.IMUL:
		result = value.Integer{V: l * r}
	case bytecode.IDIV:
		if r == 0 {
			return vmerr.New(vmerr.TypeError, "idiv: division by zero")
		}
		result = value.Integer{V: l / r}
	case bytecode.ILT:
		result = value.Boolean{V: l < r}
	case bytecode.ILTE:
		result = value.Boolean{V: l <= r}
	case bytecode.IGT:
		result = value.Boolean{V: l > r}
	case bytecode.IGTE:
		result = value.Boolean{V: l >= r}
	case bytecode.IEQ:
		result = value.Boolean{V: l == r}
	}
	return setErr(c.current.Set(dest, result))
}

func (c *CPU) intStep(ins bytecode.Instruction) *vmerr.Exception {
	dest, raised := c.resolveOperand(c.current, ins.Regs[0])
	if raised != nil {
		return raised
	}
	v, err := c.current.At(dest)
	if err != nil {
		return vmerr.New(vmerr.OutOfRange, "%v", err)
	}
	iv, ok := asInteger(v)
	if !ok {
		return vmerr.New(vmerr.TypeError, "%s: register does not hold an Integer", ins.Op.Name())
	}
	if ins.Op == bytecode.IINC {
		iv++
	} else {
		iv--
	}
	return setErr(c.current.Set(dest, value.Integer{V: iv}))
}

func (c *CPU) floatBinOp(ins bytecode.Instruction) *vmerr.Exception {
	dest, raised := c.resolveOperand(c.current, ins.Regs[0])
	if raised != nil {
		return raised
	}
	lv, _, raised := c.regVal(ins.Regs[1])
	if raised != nil {
		return raised
	}
	rv, _, raised := c.regVal(ins.Regs[2])
	if raised != nil {
		return raised
	}
	l, ok1 := asFloat(lv)
	r, ok2 := asFloat(rv)
	if !ok1 || !ok2 {
		return vmerr.New(vmerr.TypeError, "%s: operands must be Float", ins.Op.Name())
	}
	var result value.Value
	switch ins.Op {
	case bytecode.FADD:
		result = value.Float{V: l + r}
	case bytecode.FSUB:
		result = value.Float{V: l - r}
	case bytecode.FMUL:
		result = value.Float{V: l * r}
	case bytecode.FDIV:
		if r == 0 {
			return vmerr.New(vmerr.TypeError, "fdiv: division by zero")
		}
		result = value.Float{V: l / r}
	case bytecode.FLT:
		result = value.Boolean{V: l < r}
	case bytecode.FLTE:
		result = value.Boolean{V: l <= r}
	case bytecode.FGT:
		result = value.Boolean{V: l > r}
	case bytecode.FGTE:
		result = value.Boolean{V: l >= r}
	case bytecode.FEQ:
		result = value.Boolean{V: l == r}
	}
	return setErr(c.current.Set(dest, result))
}

func (c *CPU) byteBinOp(ins bytecode.Instruction) *vmerr.Exception {
	dest, raised := c.resolveOperand(c.current, ins.Regs[0])
	if raised != nil {
		return raised
	}
	lv, _, raised := c.regVal(ins.Regs[1])
	if raised != nil {
		return raised
	}
	rv, _, raised := c.regVal(ins.Regs[2])
	if raised != nil {
		return raised
	}
	l, ok1 := asByte(lv)
	r, ok2 := asByte(rv)
	if !ok1 || !ok2 {
		return vmerr.New(vmerr.TypeError, "%s: operands must be Byte", ins.Op.Name())
	}
	var result value.Value
	switch ins.Op {
	case bytecode.BADD:
		result = value.Byte{V: l + r}
	case bytecode.BSUB:
		result = value.Byte{V: l - r}
	case bytecode.BLT:
		result = value.Boolean{V: l < r}
	case bytecode.BLTE:
		result = value.Boolean{V: l <= r}
	case bytecode.BGT:
		result = value.Boolean{V: l > r}
	case bytecode.BGTE:
		result = value.Boolean{V: l >= r}
	case bytecode.BEQ:
		result = value.Boolean{V: l == r}
	}
	return setErr(c.current.Set(dest, result))
}

func (c *CPU) byteStep(ins bytecode.Instruction) *vmerr.Exception {
	dest, raised := c.resolveOperand(c.current, ins.Regs[0])
	if raised != nil {
		return raised
	}
	v, err := c.current.At(dest)
	if err != nil {
		return vmerr.New(vmerr.OutOfRange, "%v", err)
	}
	bv, ok := asByte(v)
	if !ok {
		return vmerr.New(vmerr.TypeError, "%s: register does not hold a Byte", ins.Op.Name())
	}
	if ins.Op == bytecode.BINC {
		bv++
	} else {
		bv--
	}
	return setErr(c.current.Set(dest, value.Byte{V: bv}))
}
