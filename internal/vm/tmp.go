package vm

import (
	"viua/internal/bytecode"
	"viua/internal/vmerr"
)

// execTmpri moves register A into the single-slot tmp exchange register.
// Overwriting an occupied tmp is a warning condition in the assembler's
// static checks, not a runtime failure: the engine itself just overwrites.
func (c *CPU) execTmpri(ins bytecode.Instruction) *vmerr.Exception {
	idx, raised := c.resolveOperand(c.current, ins.Regs[0])
	if raised != nil {
		return raised
	}
	v, err := c.current.At(idx)
	if err != nil {
		return vmerr.New(vmerr.OutOfRange, "%v", err)
	}
	c.tmp = v
	return setErr(c.current.Drop(idx))
}

// execTmpro moves tmp into register A, leaving tmp empty.
func (c *CPU) execTmpro(ins bytecode.Instruction) *vmerr.Exception {
	idx, raised := c.resolveOperand(c.current, ins.Regs[0])
	if raised != nil {
		return raised
	}
	v := c.tmp
	c.tmp = nil
	return setErr(c.current.Set(idx, v))
}
