package vm

import (
	"viua/internal/bytecode"
	"viua/internal/value"
	"viua/internal/vmerr"
)

// execCallables covers CLBIND/CLOSURE/FUNCTION/FCALL. All four return
// through execute's (next, stop, raised) shape rather than a plain
// *vmerr.Exception, since FCALL commits a call and so picks the next
// instruction, matching how the family is grouped in execute's switch
// alongside the call-protocol family.
func (c *CPU) execCallables(ins bytecode.Instruction, nextIP int) (int, bool, *vmerr.Exception) {
	switch ins.Op {
	case bytecode.CLBIND:
		v, _, raised := c.regVal(ins.Regs[0])
		if raised != nil {
			return nextIP, false, raised
		}
		c.closureBind = append(c.closureBind, v)
		return nextIP, false, nil

	case bytecode.CLOSURE:
		dest, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return nextIP, false, raised
		}
		bound := c.closureBind
		c.closureBind = nil
		clo := &value.Closure{Name: ins.Names[0], Bound: bound}
		return nextIP, false, setErr(c.current.Set(dest, clo))

	case bytecode.FUNCTION:
		dest, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return nextIP, false, raised
		}
		return nextIP, false, setErr(c.current.Set(dest, value.Function{Name: ins.Names[0]}))

	case bytecode.FCALL:
		dest, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return nextIP, false, raised
		}
		callee, _, raised := c.regVal(ins.Regs[1])
		if raised != nil {
			return nextIP, false, raised
		}
		name, ok := asCallableName(callee)
		if !ok {
			return nextIP, false, vmerr.New(vmerr.TypeError, "fcall: register does not hold a callable")
		}
		if clo, ok := callee.(*value.Closure); ok {
			if c.frameNew == nil {
				return nextIP, false, vmerr.New(vmerr.BadFrame, "fcall: no frame allocated (missing FRAME)")
			}
			base := c.frameNew.Args.Size() - len(clo.Bound)
			for i, b := range clo.Bound {
				if base+i < 0 {
					break
				}
				_ = c.frameNew.Args.Set(base+i, b)
			}
		}
		return c.callNamed(name, dest, false, nextIP)
	}
	return nextIP, false, vmerr.New(vmerr.BadFrame, "callables: unhandled opcode %q", ins.Op.Name())
}
