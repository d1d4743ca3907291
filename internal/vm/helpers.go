package vm

import (
	"viua/internal/bytecode"
	"viua/internal/register"
	"viua/internal/value"
	"viua/internal/vmerr"
)

// setErr adapts a register.Set error (always an out-of-range index) into
// the *vmerr.Exception shape the dispatch loop's handlers return.
func setErr(err error) *vmerr.Exception {
	if err == nil {
		return nil
	}
	return vmerr.New(vmerr.OutOfRange, "%v", err)
}

// regVal resolves op against the current regset and reads its value.
func (c *CPU) regVal(op bytecode.IntOp) (value.Value, int, *vmerr.Exception) {
	idx, raised := c.resolveOperand(c.current, op)
	if raised != nil {
		return nil, 0, raised
	}
	v, err := c.current.At(idx)
	if err != nil {
		return nil, idx, vmerr.New(vmerr.OutOfRange, "%v", err)
	}
	return v, idx, nil
}

func (c *CPU) vectorAt(op bytecode.IntOp) (*value.Vector, *vmerr.Exception) {
	v, _, raised := c.regVal(op)
	if raised != nil {
		return nil, raised
	}
	vec, ok := asVector(v)
	if !ok {
		return nil, vmerr.New(vmerr.TypeError, "register does not hold a Vector")
	}
	return vec, nil
}

func (c *CPU) intAt(op bytecode.IntOp) (int64, *vmerr.Exception) {
	v, _, raised := c.regVal(op)
	if raised != nil {
		return 0, raised
	}
	iv, ok := asInteger(v)
	if !ok {
		return 0, vmerr.New(vmerr.TypeError, "register does not hold an Integer")
	}
	return iv, nil
}

func (c *CPU) staticSetFor(functionName string) *register.Set {
	set, ok := c.staticRegs[functionName]
	if !ok {
		set = register.NewSet(GlobalRegisterCapacity)
		c.staticRegs[functionName] = set
	}
	return set
}
