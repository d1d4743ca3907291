package register

// Frame is a call-stack activation record: the argument set FRAME
// allocates, the local register set the callee executes against,
// where execution resumes on END, and how the return value should be
// deposited into the caller.
//
// Frame is move-only: the spec leaves the original's copy constructor
// unspecified (it was an incomplete FIXME), so this repo forbids copying a
// Frame by convention — always hold and pass *Frame, never Frame by value.
type Frame struct {
	ReturnAddress int
	Args          *Set
	Regset        *Set
	FunctionName  string

	PlaceReturnValueIn         int
	ResolveReturnValueRegister bool
}

func NewFrame(argCount, localCount int) *Frame {
	return &Frame{
		Args:   NewFixedSet(argCount),
		Regset: NewSet(localCount),
	}
}

// Teardown drops the args set (by-reference arguments are owned by the
// caller; freeing them here would double-free) before the frame itself is
// discarded by the caller popping the call stack.
func (f *Frame) Teardown() {
	f.Args.DropAll()
}
