package vm

import (
	"testing"

	"viua/internal/bytecode"
	"viua/internal/value"
)

func TestJumpReturnsTarget(t *testing.T) {
	c := newTestCPU()
	c.code = make([]byte, 100)

	target, jumped, raised := c.execControl(bytecode.Instruction{Op: bytecode.JUMP, Int32s: []int32{42}}, 5)
	if raised != nil {
		t.Fatalf("jump raised: %v", raised)
	}
	if jumped {
		t.Error("jump should not report the stop flag")
	}
	if target != 42 {
		t.Errorf("jump target = %d, want 42", target)
	}
}

func TestJumpOutOfBounds(t *testing.T) {
	c := newTestCPU()
	c.code = make([]byte, 10)

	_, _, raised := c.execControl(bytecode.Instruction{Op: bytecode.JUMP, Int32s: []int32{999}}, 0)
	if raised == nil {
		t.Fatal("expected a jump past the end of the bytecode to raise")
	}
}

func TestJumpToOwnAddressRaises(t *testing.T) {
	c := newTestCPU()
	c.code = make([]byte, 100)
	c.ip = 42

	_, _, raised := c.execControl(bytecode.Instruction{Op: bytecode.JUMP, Int32s: []int32{42}}, 48)
	if raised == nil {
		t.Fatal("expected a jump targeting its own address to raise")
	}
}

func TestBranchTakesTrueOrFalseTarget(t *testing.T) {
	c := newTestCPU()
	c.code = make([]byte, 100)
	c.current.Set(0, value.Boolean{V: true})

	target, _, raised := c.execControl(bytecode.Instruction{
		Op: bytecode.BRANCH, Regs: []bytecode.IntOp{bytecode.Reg(0)}, Int32s: []int32{10, 20},
	}, 0)
	if raised != nil {
		t.Fatalf("branch raised: %v", raised)
	}
	if target != 10 {
		t.Errorf("branch on true = %d, want 10", target)
	}

	c.current.Set(0, value.Boolean{V: false})
	target, _, raised = c.execControl(bytecode.Instruction{
		Op: bytecode.BRANCH, Regs: []bytecode.IntOp{bytecode.Reg(0)}, Int32s: []int32{10, 20},
	}, 0)
	if raised != nil {
		t.Fatalf("branch raised: %v", raised)
	}
	if target != 20 {
		t.Errorf("branch on false = %d, want 20", target)
	}
}
