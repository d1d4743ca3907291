package vm

import (
	"viua/internal/bytecode"
	"viua/internal/vmerr"
)

// execControl covers JUMP (unconditional, absolute byte offset) and BRANCH
// (boolean-coerced conditional jump to one of two absolute byte offsets).
func (c *CPU) execControl(ins bytecode.Instruction, nextIP int) (int, bool, *vmerr.Exception) {
	switch ins.Op {
	case bytecode.JUMP:
		target := int(ins.Int32s[0])
		if target == c.ip {
			return nextIP, false, vmerr.New(vmerr.BadFrame, "jump: self-jump is a fatal error")
		}
		if target < 0 || target > len(c.code) {
			return nextIP, false, vmerr.New(vmerr.OutOfRange, "jump: target %d out of bounds", target)
		}
		return target, false, nil

	case bytecode.BRANCH:
		v, _, raised := c.regVal(ins.Regs[0])
		if raised != nil {
			return nextIP, false, raised
		}
		target := int(ins.Int32s[0])
		if !truthy(v) {
			target = int(ins.Int32s[1])
		}
		if target < 0 || target > len(c.code) {
			return nextIP, false, vmerr.New(vmerr.OutOfRange, "branch: target %d out of bounds", target)
		}
		return target, false, nil
	}
	return nextIP, false, vmerr.New(vmerr.BadFrame, "control: unhandled opcode %q", ins.Op.Name())
}
