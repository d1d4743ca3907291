package vm

import (
	"viua/internal/bytecode"
	"viua/internal/value"
	"viua/internal/vmerr"
)

// execVectors covers VEC/VINSERT/VPUSH/VPOP/VAT/VLEN. Every register
// operand in this family, including the position operands C in
// VINSERT/VPOP/VAT, names an actual register holding an Integer, not a
// literal — vector positions are ordinary dynamic values, not assembled
// constants.
func (c *CPU) execVectors(ins bytecode.Instruction) *vmerr.Exception {
	switch ins.Op {
	case bytecode.VEC:
		return c.storeAt(ins.Regs[0], value.NewVector())

	case bytecode.VINSERT:
		vec, raised := c.vectorAt(ins.Regs[0])
		if raised != nil {
			return raised
		}
		bv, _, raised := c.regVal(ins.Regs[1])
		if raised != nil {
			return raised
		}
		pos, raised := c.intAt(ins.Regs[2])
		if raised != nil {
			return raised
		}
		if pos < 0 || pos > int64(len(vec.Items)) {
			return vmerr.New(vmerr.OutOfRange, "vinsert: index %d out of range", pos)
		}
		vec.Items = append(vec.Items[:pos:pos], append([]value.Value{bv}, vec.Items[pos:]...)...)
		return nil

	case bytecode.VPUSH:
		vec, raised := c.vectorAt(ins.Regs[0])
		if raised != nil {
			return raised
		}
		bv, _, raised := c.regVal(ins.Regs[1])
		if raised != nil {
			return raised
		}
		vec.Items = append(vec.Items, bv)
		return nil

	case bytecode.VPOP:
		dest, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return raised
		}
		vec, raised := c.vectorAt(ins.Regs[1])
		if raised != nil {
			return raised
		}
		pos, raised := c.intAt(ins.Regs[2])
		if raised != nil {
			return raised
		}
		if pos < 0 || pos >= int64(len(vec.Items)) {
			return vmerr.New(vmerr.OutOfRange, "vpop: index %d out of range", pos)
		}
		popped := vec.Items[pos]
		vec.Items = append(vec.Items[:pos], vec.Items[pos+1:]...)
		return setErr(c.current.Set(dest, popped))

	case bytecode.VAT:
		dest, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return raised
		}
		vec, raised := c.vectorAt(ins.Regs[1])
		if raised != nil {
			return raised
		}
		pos, raised := c.intAt(ins.Regs[2])
		if raised != nil {
			return raised
		}
		if pos < 0 || pos >= int64(len(vec.Items)) {
			return vmerr.New(vmerr.OutOfRange, "vat: index %d out of range", pos)
		}
		// Points directly at the backing array slot. A subsequent VPUSH
		// or VINSERT on the same vector may reallocate that array, which
		// silently detaches this reference from the live element: callers
		// should read a VAT reference promptly, not hold it across a
		// mutation of the vector it came from.
		target := &vec.Items[pos]
		return setErr(c.current.Set(dest, value.Reference{Target: target}))

	case bytecode.VLEN:
		dest, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return raised
		}
		vec, raised := c.vectorAt(ins.Regs[1])
		if raised != nil {
			return raised
		}
		return setErr(c.current.Set(dest, value.Integer{V: int64(len(vec.Items))}))
	}
	return vmerr.New(vmerr.BadFrame, "vectors: unhandled opcode %q", ins.Op.Name())
}
