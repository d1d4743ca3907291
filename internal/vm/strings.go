package vm

import (
	"viua/internal/bytecode"
	"viua/internal/value"
	"viua/internal/vmerr"
)

func (c *CPU) execStrings(ins bytecode.Instruction) *vmerr.Exception {
	switch ins.Op {
	case bytecode.STRSTORE:
		dest, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return raised
		}
		return setErr(c.current.Set(dest, value.String{V: ins.Names[0]}))

	case bytecode.STREQ:
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
		ls, ok1 := asString(lv)
		rs, ok2 := asString(rv)
		if !ok1 || !ok2 {
			return vmerr.New(vmerr.TypeError, "streq: operands must be String")
		}
		return setErr(c.current.Set(dest, value.Boolean{V: ls == rs}))
	}
	return vmerr.New(vmerr.BadFrame, "strings: unhandled opcode %q", ins.Op.Name())
}
