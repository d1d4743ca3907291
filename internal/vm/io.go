package vm

import (
	"fmt"

	"viua/internal/bytecode"
	"viua/internal/vmerr"
)

// execIO covers PRINT (newline-terminated) and ECHO (no trailing newline).
func (c *CPU) execIO(ins bytecode.Instruction) *vmerr.Exception {
	v, _, raised := c.regVal(ins.Regs[0])
	if raised != nil {
		return raised
	}
	text := ""
	if v != nil {
		text = v.Str()
	}
	if ins.Op == bytecode.PRINT {
		fmt.Fprintln(c.opts.Out, text)
	} else {
		fmt.Fprint(c.opts.Out, text)
	}
	return nil
}
