package vm

import (
	"viua/internal/bytecode"
	"viua/internal/vmerr"
)

// execRess switches the regset RESS's raw byte operand selects as current.
// Selector 3 (temporary) is not directly selectable through RESS — TMPRI/
// TMPRO reach the single-slot tmp exchange register without going through
// RESS at all — so RESS 3 always fails.
func (c *CPU) execRess(ins bytecode.Instruction) *vmerr.Exception {
	switch ins.Byte {
	case 0:
		c.current = c.global
		c.currentKind = RegsetGlobal
	case 1:
		if len(c.frames) == 0 {
			return vmerr.New(vmerr.BadRess, "ress: no local register set outside a call")
		}
		c.current = c.frames[len(c.frames)-1].Regset
		c.currentKind = RegsetLocal
	case 2:
		c.current = c.staticSetFor(c.currentFunctionName)
		c.currentKind = RegsetStatic
	case 3:
		return vmerr.New(vmerr.BadRess, "ress: the temporary register is not a selectable regset")
	default:
		return vmerr.New(vmerr.BadRess, "ress: unknown register set selector %d", ins.Byte)
	}
	return nil
}
