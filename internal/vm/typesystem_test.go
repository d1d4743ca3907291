package vm

import (
	"testing"

	"viua/internal/bytecode"
	"viua/internal/register"
	"viua/internal/value"
)

func TestClassDeriveAttachRegisterNew(t *testing.T) {
	c := newTestCPU()

	if _, _, raised := c.execTypesystem(bytecode.Instruction{
		Op: bytecode.CLASS, Regs: []bytecode.IntOp{bytecode.Reg(0)}, Names: []string{"Animal"},
	}, 1); raised != nil {
		t.Fatalf("class raised: %v", raised)
	}
	if _, _, raised := c.execTypesystem(bytecode.Instruction{
		Op: bytecode.CLASS, Regs: []bytecode.IntOp{bytecode.Reg(1)}, Names: []string{"Dog"},
	}, 1); raised != nil {
		t.Fatalf("class raised: %v", raised)
	}

	if _, _, raised := c.execTypesystem(bytecode.Instruction{
		Op: bytecode.DERIVE, Regs: []bytecode.IntOp{bytecode.Reg(1)}, Names: []string{"Animal"},
	}, 1); raised != nil {
		t.Fatalf("derive raised: %v", raised)
	}
	if _, _, raised := c.execTypesystem(bytecode.Instruction{
		Op: bytecode.ATTACH, Regs: []bytecode.IntOp{bytecode.Reg(0)}, Names: []string{"animal_speak", "speak"},
	}, 1); raised != nil {
		t.Fatalf("attach raised: %v", raised)
	}

	if _, _, raised := c.execTypesystem(bytecode.Instruction{
		Op: bytecode.REGISTER, Regs: []bytecode.IntOp{bytecode.Reg(0)},
	}, 1); raised != nil {
		t.Fatalf("register(Animal) raised: %v", raised)
	}
	if _, _, raised := c.execTypesystem(bytecode.Instruction{
		Op: bytecode.REGISTER, Regs: []bytecode.IntOp{bytecode.Reg(1)},
	}, 1); raised != nil {
		t.Fatalf("register(Dog) raised: %v", raised)
	}

	if _, _, raised := c.execTypesystem(bytecode.Instruction{
		Op: bytecode.NEW, Regs: []bytecode.IntOp{bytecode.Reg(2)}, Names: []string{"Dog"},
	}, 1); raised != nil {
		t.Fatalf("new raised: %v", raised)
	}
	got, _ := c.current.At(2)
	obj, ok := got.(*value.Object)
	if !ok {
		t.Fatalf("new result = %T, want *value.Object", got)
	}
	if obj.TypeName() != "Dog" {
		t.Errorf("new object type = %q, want %q", obj.TypeName(), "Dog")
	}

	fn, raised := c.resolveMethod(obj, "speak")
	if raised != nil {
		t.Fatalf("resolveMethod raised: %v", raised)
	}
	if fn != "animal_speak" {
		t.Errorf("resolveMethod = %q, want %q (inherited from Animal)", fn, "animal_speak")
	}
}

func TestNewUnregisteredClassRaises(t *testing.T) {
	c := newTestCPU()
	_, _, raised := c.execTypesystem(bytecode.Instruction{
		Op: bytecode.NEW, Regs: []bytecode.IntOp{bytecode.Reg(0)}, Names: []string{"Ghost"},
	}, 1)
	if raised == nil {
		t.Fatal("expected new against an unregistered class name to raise")
	}
}

func TestResolveMethodMissingRaises(t *testing.T) {
	c := newTestCPU()
	proto := value.NewPrototype("Rock")
	c.typesystem["Rock"] = proto
	obj := value.NewObject(proto)

	if _, raised := c.resolveMethod(obj, "speak"); raised == nil {
		t.Fatal("expected resolveMethod to raise when no prototype in the chain attaches the method")
	}
}

func TestResolveMethodFallsBackToForeignMethods(t *testing.T) {
	c := newTestCPU()
	proto := value.NewPrototype("Rock")
	c.typesystem["Rock"] = proto
	obj := value.NewObject(proto)

	c.RegisterForeignMethod("crumble", func(frame *register.Frame, static, global *register.Set) {
		frame.Regset.Set(0, value.Integer{V: 1})
	})

	fn, raised := c.resolveMethod(obj, "crumble")
	if raised != nil {
		t.Fatalf("resolveMethod raised: %v", raised)
	}
	if fn != "crumble" {
		t.Errorf("resolveMethod = %q, want %q (name handed straight to callNamed)", fn, "crumble")
	}
}

func TestMsgDispatchesToForeignMethodFallback(t *testing.T) {
	c := newTestCPU()
	proto := value.NewPrototype("Rock")
	c.typesystem["Rock"] = proto

	c.RegisterForeignMethod("crumble", func(frame *register.Frame, static, global *register.Set) {
		frame.Regset.Set(0, value.Integer{V: 5})
	})

	if _, _, raised := c.execCallProtocol(bytecode.Instruction{
		Op: bytecode.FRAME, Regs: []bytecode.IntOp{bytecode.Reg(1), bytecode.Reg(0)},
	}, 1); raised != nil {
		t.Fatalf("frame raised: %v", raised)
	}
	c.current.Set(0, value.NewObject(proto))
	if _, _, raised := c.execCallProtocol(bytecode.Instruction{
		Op: bytecode.PARAM, Regs: []bytecode.IntOp{bytecode.Reg(0), bytecode.Reg(0)},
	}, 1); raised != nil {
		t.Fatalf("param raised: %v", raised)
	}

	if _, _, raised := c.execTypesystem(bytecode.Instruction{
		Op: bytecode.MSG, Regs: []bytecode.IntOp{bytecode.Reg(9)}, Names: []string{"crumble"},
	}, 1); raised != nil {
		t.Fatalf("msg raised: %v", raised)
	}

	got, _ := c.current.At(9)
	want := value.Integer{V: 5}
	if got != want {
		t.Errorf("msg result = %v, want %v", got, want)
	}
}
