package bytecode

// IntOp is the register-operand pair described by the spec as `int_op`:
// a by-reference flag plus a register index. If ByReference is set, the
// engine resolves Index one further level of indirection before use: the
// register at Index must hold an Integer whose value is the true index.
type IntOp struct {
	ByReference bool
	Index       int32
}

func Reg(index int32) IntOp      { return IntOp{Index: index} }
func RegRef(index int32) IntOp   { return IntOp{ByReference: true, Index: index} }
