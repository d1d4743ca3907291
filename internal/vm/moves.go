package vm

import (
	"viua/internal/bytecode"
	"viua/internal/register"
	"viua/internal/value"
	"viua/internal/vmerr"
)

// execMoves covers the register-move family: MOVE/COPY/REF/PTR/DEPTR/SWAP/
// FREE/EMPTY/ISNULL/ISPTR. REF and PTR are synonyms here — both produce a
// Reference aliasing B's storage cell — distinguished only for symmetry
// with the original instruction set; DEPTR is the one operation that reads
// through either.
func (c *CPU) execMoves(ins bytecode.Instruction) *vmerr.Exception {
	switch ins.Op {
	case bytecode.MOVE:
		a, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return raised
		}
		b, raised := c.resolveOperand(c.current, ins.Regs[1])
		if raised != nil {
			return raised
		}
		return setErr(c.current.Move(b, a))

	case bytecode.COPY:
		a, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return raised
		}
		b, raised := c.resolveOperand(c.current, ins.Regs[1])
		if raised != nil {
			return raised
		}
		return setErr(c.current.Copy(b, a))

	case bytecode.REF, bytecode.PTR:
		a, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return raised
		}
		b, raised := c.resolveOperand(c.current, ins.Regs[1])
		if raised != nil {
			return raised
		}
		cell, err := c.current.Cell(b)
		if err != nil {
			return vmerr.New(vmerr.OutOfRange, "%v", err)
		}
		if err := c.current.Set(a, value.Reference{Target: cell}); err != nil {
			return vmerr.New(vmerr.OutOfRange, "%v", err)
		}
		return setErr(c.current.Flag(a, register.Reference))

	case bytecode.DEPTR:
		a, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return raised
		}
		bv, _, raised := c.regVal(ins.Regs[1])
		if raised != nil {
			return raised
		}
		ref, ok := asReference(bv)
		if !ok {
			return vmerr.New(vmerr.TypeError, "deptr: register does not hold a pointer/reference")
		}
		target := ref.Deref()
		if target == nil {
			return vmerr.New(vmerr.NullDeref, "deptr: dereferenced a null reference")
		}
		return setErr(c.current.Set(a, target.Copy()))

	case bytecode.SWAP:
		a, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return raised
		}
		b, raised := c.resolveOperand(c.current, ins.Regs[1])
		if raised != nil {
			return raised
		}
		return setErr(c.current.Swap(a, b))

	case bytecode.FREE:
		a, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return raised
		}
		return setErr(c.current.Free(a))

	case bytecode.EMPTY:
		a, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return raised
		}
		return setErr(c.current.Empty(a))

	case bytecode.ISNULL:
		dest, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return raised
		}
		b, raised := c.resolveOperand(c.current, ins.Regs[1])
		if raised != nil {
			return raised
		}
		v, err := c.current.At(b)
		if err != nil {
			return vmerr.New(vmerr.OutOfRange, "%v", err)
		}
		return setErr(c.current.Set(dest, value.Boolean{V: v == nil}))

	case bytecode.ISPTR:
		dest, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return raised
		}
		b, raised := c.resolveOperand(c.current, ins.Regs[1])
		if raised != nil {
			return raised
		}
		v, err := c.current.At(b)
		if err != nil {
			return vmerr.New(vmerr.OutOfRange, "%v", err)
		}
		_, isRef := asReference(v)
		return setErr(c.current.Set(dest, value.Boolean{V: isRef}))
	}
	return vmerr.New(vmerr.BadFrame, "moves: unhandled opcode %q", ins.Op.Name())
}
