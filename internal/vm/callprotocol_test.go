package vm

import (
	"testing"

	"viua/internal/bytecode"
	"viua/internal/register"
	"viua/internal/value"
	"viua/internal/vmerr"
)

func TestFrameParamCallForeignFunctionDepositsReturn(t *testing.T) {
	c := newTestCPU()
	c.RegisterForeignFunction("double", func(frame *register.Frame, static, global *register.Set) {
		v, _ := frame.Args.At(0)
		n, _ := asInteger(v)
		frame.Regset.Set(0, value.Integer{V: n * 2})
	})

	if _, _, raised := c.execCallProtocol(bytecode.Instruction{
		Op: bytecode.FRAME, Regs: []bytecode.IntOp{bytecode.Reg(1), bytecode.Reg(0)},
	}, 1); raised != nil {
		t.Fatalf("frame raised: %v", raised)
	}

	c.current.Set(1, value.Integer{V: 21})
	if _, _, raised := c.execCallProtocol(bytecode.Instruction{
		Op: bytecode.PARAM, Regs: []bytecode.IntOp{bytecode.Reg(0), bytecode.Reg(1)},
	}, 1); raised != nil {
		t.Fatalf("param raised: %v", raised)
	}

	_, _, raised := c.execCallProtocol(bytecode.Instruction{
		Op: bytecode.CALL, Regs: []bytecode.IntOp{bytecode.Reg(5)}, Names: []string{"double"},
	}, 1)
	if raised != nil {
		t.Fatalf("call raised: %v", raised)
	}

	got, _ := c.current.At(5)
	want := value.Integer{V: 42}
	if got != want {
		t.Errorf("call result = %v, want %v", got, want)
	}
}

func TestCallWithoutFrameRaises(t *testing.T) {
	c := newTestCPU()
	_, _, raised := c.execCallProtocol(bytecode.Instruction{
		Op: bytecode.CALL, Regs: []bytecode.IntOp{bytecode.Reg(0)}, Names: []string{"anything"},
	}, 1)
	if raised == nil {
		t.Fatal("expected call without a preceding frame to raise")
	}
}

func TestArgcCountsArgumentsOfActiveFrame(t *testing.T) {
	c := newTestCPU()
	frame := register.NewFrame(3, 4)
	c.frames = append(c.frames, frame)
	c.current = frame.Regset

	if _, _, raised := c.execCallProtocol(bytecode.Instruction{
		Op: bytecode.ARGC, Regs: []bytecode.IntOp{bytecode.Reg(0)},
	}, 1); raised != nil {
		t.Fatalf("argc raised: %v", raised)
	}
	got, _ := c.current.At(0)
	want := value.Integer{V: 3}
	if got != want {
		t.Errorf("argc = %v, want %v", got, want)
	}
}

func TestArgReadsFromActiveFrameArgs(t *testing.T) {
	c := newTestCPU()
	frame := register.NewFrame(2, 4)
	frame.Args.Set(0, value.Integer{V: 99})
	c.frames = append(c.frames, frame)
	c.current = frame.Regset

	if _, _, raised := c.execCallProtocol(bytecode.Instruction{
		Op: bytecode.ARG, Regs: []bytecode.IntOp{bytecode.Reg(0), bytecode.Reg(1)},
	}, 1); raised != nil {
		t.Fatalf("arg raised: %v", raised)
	}
	got, _ := c.current.At(1)
	want := value.Integer{V: 99}
	if got != want {
		t.Errorf("arg = %v, want %v", got, want)
	}
}

func TestParamOutOfRangeArgIndexRaises(t *testing.T) {
	c := newTestCPU()
	if _, _, raised := c.execCallProtocol(bytecode.Instruction{
		Op: bytecode.FRAME, Regs: []bytecode.IntOp{bytecode.Reg(2), bytecode.Reg(0)},
	}, 1); raised != nil {
		t.Fatalf("frame raised: %v", raised)
	}

	c.current.Set(0, value.Integer{V: 1})
	if _, _, raised := c.execCallProtocol(bytecode.Instruction{
		Op: bytecode.PARAM, Regs: []bytecode.IntOp{bytecode.Reg(1), bytecode.Reg(0)},
	}, 1); raised != nil {
		t.Fatalf("param(1) within arg count 2 raised: %v", raised)
	}

	_, _, raised := c.execCallProtocol(bytecode.Instruction{
		Op: bytecode.PARAM, Regs: []bytecode.IntOp{bytecode.Reg(2), bytecode.Reg(0)},
	}, 1)
	if raised == nil {
		t.Fatal("param(2) with arg count 2 (i >= a): expected OutOfRange, got nil")
	}
	if raised.TypeName != string(vmerr.OutOfRange) {
		t.Errorf("param(2) raised %s, want %s", raised.TypeName, vmerr.OutOfRange)
	}
}

func TestParefOutOfRangeArgIndexRaises(t *testing.T) {
	c := newTestCPU()
	c.current.Set(3, value.Integer{V: 7})

	if _, _, raised := c.execCallProtocol(bytecode.Instruction{
		Op: bytecode.FRAME, Regs: []bytecode.IntOp{bytecode.Reg(1), bytecode.Reg(0)},
	}, 1); raised != nil {
		t.Fatalf("frame raised: %v", raised)
	}

	_, _, raised := c.execCallProtocol(bytecode.Instruction{
		Op: bytecode.PAREF, Regs: []bytecode.IntOp{bytecode.Reg(1), bytecode.Reg(3)},
	}, 1)
	if raised == nil {
		t.Fatal("paref(1) with arg count 1 (i >= a): expected OutOfRange, got nil")
	}
	if raised.TypeName != string(vmerr.OutOfRange) {
		t.Errorf("paref(1) raised %s, want %s", raised.TypeName, vmerr.OutOfRange)
	}
}

func TestEndRaisesWhenRequestedReturnRegisterNeverSet(t *testing.T) {
	c := newTestCPU()
	frame := register.NewFrame(0, 1)
	frame.FunctionName = "silent"
	frame.ReturnAddress = 7
	frame.PlaceReturnValueIn = 3
	c.frames = append(c.frames, frame)
	c.current = frame.Regset

	_, _, raised := c.execEnd()
	if raised == nil {
		t.Fatal("expected end to raise when register 0 is empty but a non-zero return register was requested")
	}
}

func TestEndSucceedsWhenNoReturnRegisterRequested(t *testing.T) {
	c := newTestCPU()
	frame := register.NewFrame(0, 1)
	frame.FunctionName = "silent"
	frame.ReturnAddress = 7
	frame.PlaceReturnValueIn = 0
	c.frames = append(c.frames, frame)
	c.current = frame.Regset

	if _, _, raised := c.execEnd(); raised != nil {
		t.Fatalf("end raised: %v", raised)
	}
}

func TestParefBuildsReferenceToCallerSlot(t *testing.T) {
	c := newTestCPU()
	c.current.Set(3, value.Integer{V: 7})

	if _, _, raised := c.execCallProtocol(bytecode.Instruction{
		Op: bytecode.FRAME, Regs: []bytecode.IntOp{bytecode.Reg(1), bytecode.Reg(0)},
	}, 1); raised != nil {
		t.Fatalf("frame raised: %v", raised)
	}
	if _, _, raised := c.execCallProtocol(bytecode.Instruction{
		Op: bytecode.PAREF, Regs: []bytecode.IntOp{bytecode.Reg(0), bytecode.Reg(3)},
	}, 1); raised != nil {
		t.Fatalf("paref raised: %v", raised)
	}

	argVal, _ := c.frameNew.Args.At(0)
	ref, ok := argVal.(value.Reference)
	if !ok {
		t.Fatalf("paref result = %T, want value.Reference", argVal)
	}
	if ref.Deref() != (value.Integer{V: 7}) {
		t.Errorf("paref dereferenced = %v, want Integer{7}", ref.Deref())
	}

	*ref.Target = value.Integer{V: 8}
	got, _ := c.current.At(3)
	want := value.Integer{V: 8}
	if got != want {
		t.Errorf("mutating through paref's reference should alias the caller's register: got %v, want %v", got, want)
	}
}
