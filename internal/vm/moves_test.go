package vm

import (
	"testing"

	"viua/internal/bytecode"
	"viua/internal/value"
)

func TestMoveTransfersAndClearsSource(t *testing.T) {
	c := newTestCPU()
	c.current.Set(1, value.Integer{V: 5})

	if raised := c.execMoves(bytecode.Instruction{Op: bytecode.MOVE, Regs: []bytecode.IntOp{
		bytecode.Reg(0), bytecode.Reg(1),
	}}); raised != nil {
		t.Fatalf("move raised: %v", raised)
	}
	got, _ := c.current.At(0)
	want := value.Integer{V: 5}
	if got != want {
		t.Errorf("move target = %v, want %v", got, want)
	}
	src, _ := c.current.At(1)
	if src != nil {
		t.Errorf("move source = %v, want nil after move", src)
	}
}

func TestCopyLeavesSourceIntact(t *testing.T) {
	c := newTestCPU()
	c.current.Set(1, value.Integer{V: 5})

	if raised := c.execMoves(bytecode.Instruction{Op: bytecode.COPY, Regs: []bytecode.IntOp{
		bytecode.Reg(0), bytecode.Reg(1),
	}}); raised != nil {
		t.Fatalf("copy raised: %v", raised)
	}
	got, _ := c.current.At(0)
	want := value.Integer{V: 5}
	if got != want {
		t.Errorf("copy target = %v, want %v", got, want)
	}
	src, _ := c.current.At(1)
	if src != want {
		t.Errorf("copy source = %v, want unchanged %v", src, want)
	}
}

func TestRefDeptrRoundTrip(t *testing.T) {
	c := newTestCPU()
	c.current.Set(1, value.Integer{V: 9})

	if raised := c.execMoves(bytecode.Instruction{Op: bytecode.REF, Regs: []bytecode.IntOp{
		bytecode.Reg(0), bytecode.Reg(1),
	}}); raised != nil {
		t.Fatalf("ref raised: %v", raised)
	}

	if raised := c.execMoves(bytecode.Instruction{Op: bytecode.DEPTR, Regs: []bytecode.IntOp{
		bytecode.Reg(2), bytecode.Reg(0),
	}}); raised != nil {
		t.Fatalf("deptr raised: %v", raised)
	}
	got, _ := c.current.At(2)
	want := value.Integer{V: 9}
	if got != want {
		t.Errorf("deptr result = %v, want %v", got, want)
	}
}

func TestSwapExchangesValues(t *testing.T) {
	c := newTestCPU()
	c.current.Set(0, value.Integer{V: 1})
	c.current.Set(1, value.Integer{V: 2})

	if raised := c.execMoves(bytecode.Instruction{Op: bytecode.SWAP, Regs: []bytecode.IntOp{
		bytecode.Reg(0), bytecode.Reg(1),
	}}); raised != nil {
		t.Fatalf("swap raised: %v", raised)
	}
	a, _ := c.current.At(0)
	b, _ := c.current.At(1)
	wantA := value.Integer{V: 2}
	wantB := value.Integer{V: 1}
	if a != wantA || b != wantB {
		t.Errorf("swap = (%v, %v), want (%v, %v)", a, b, wantA, wantB)
	}
}

func TestIsnullAndIsptr(t *testing.T) {
	c := newTestCPU()
	c.current.Set(1, value.Integer{V: 3})

	if raised := c.execMoves(bytecode.Instruction{Op: bytecode.ISNULL, Regs: []bytecode.IntOp{
		bytecode.Reg(0), bytecode.Reg(1),
	}}); raised != nil {
		t.Fatalf("isnull raised: %v", raised)
	}
	got, _ := c.current.At(0)
	want := value.Boolean{V: false}
	if got != want {
		t.Errorf("isnull on a non-null register = %v, want %v", got, want)
	}

	if raised := c.execMoves(bytecode.Instruction{Op: bytecode.REF, Regs: []bytecode.IntOp{
		bytecode.Reg(2), bytecode.Reg(1),
	}}); raised != nil {
		t.Fatalf("ref raised: %v", raised)
	}
	if raised := c.execMoves(bytecode.Instruction{Op: bytecode.ISPTR, Regs: []bytecode.IntOp{
		bytecode.Reg(0), bytecode.Reg(2),
	}}); raised != nil {
		t.Fatalf("isptr raised: %v", raised)
	}
	got, _ = c.current.At(0)
	want = value.Boolean{V: true}
	if got != want {
		t.Errorf("isptr on a reference register = %v, want %v", got, want)
	}
}

func TestFreeAndEmpty(t *testing.T) {
	c := newTestCPU()
	c.current.Set(0, value.Integer{V: 1})

	if raised := c.execMoves(bytecode.Instruction{Op: bytecode.FREE, Regs: []bytecode.IntOp{
		bytecode.Reg(0),
	}}); raised != nil {
		t.Fatalf("free raised: %v", raised)
	}
	got, _ := c.current.At(0)
	if got != nil {
		t.Errorf("free should leave register 0 empty, got %v", got)
	}

	if raised := c.execMoves(bytecode.Instruction{Op: bytecode.EMPTY, Regs: []bytecode.IntOp{
		bytecode.Reg(0),
	}}); raised != nil {
		t.Fatalf("empty raised: %v", raised)
	}
}
