package vm

import (
	"viua/internal/bytecode"
	"viua/internal/value"
	"viua/internal/vmerr"
)

func (c *CPU) execLogic(ins bytecode.Instruction) *vmerr.Exception {
	switch ins.Op {
	case bytecode.BOOL:
		idx, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return raised
		}
		v, err := c.current.At(idx)
		if err != nil {
			return vmerr.New(vmerr.OutOfRange, "%v", err)
		}
		return setErr(c.current.Set(idx, value.Boolean{V: truthy(v)}))

	case bytecode.NOT:
		idx, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return raised
		}
		v, err := c.current.At(idx)
		if err != nil {
			return vmerr.New(vmerr.OutOfRange, "%v", err)
		}
		return setErr(c.current.Set(idx, value.Boolean{V: !truthy(v)}))

	case bytecode.AND, bytecode.OR:
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
		var result bool
		if ins.Op == bytecode.AND {
			result = truthy(lv) && truthy(rv)
		} else {
			result = truthy(lv) || truthy(rv)
		}
		return setErr(c.current.Set(dest, value.Boolean{V: result}))
	}
	return vmerr.New(vmerr.BadFrame, "logic: unhandled opcode %q", ins.Op.Name())
}
