package asm

import (
	"strings"
	"testing"

	"viua/internal/vm"
)

// TestAddTwoIntegers is the add-two-integers scenario: a main function that
// stores two integers, adds them, and returns the sum as the process exit
// code via __entry's synthesized halt.
func TestAddTwoIntegers(t *testing.T) {
	src := `
.function: main
    istore 1 4
    istore 2 5
    iadd 0 1 2
    end
.end
`
	img, diags, err := Assemble(src, CompileOptions{})
	if err != nil {
		t.Fatalf("assemble: %v (diags: %v)", err, diags)
	}

	cpu := vm.New(img.Code, toIntMap(img.Functions), toIntMap(img.Blocks), vm.Options{})
	code, exceptionType, message, err := cpu.Run("__entry")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if exceptionType != "" {
		t.Fatalf("uncaught %s: %s", exceptionType, message)
	}
	if code != 9 {
		t.Fatalf("exit code = %d, want 9", code)
	}
}

// TestCatchException is the catch-an-exception scenario: a thrown plain
// String value is caught by a handler registered for the universal
// "Exception" root rather than its own concrete type.
func TestCatchException(t *testing.T) {
	src := `
.function: main
    tryframe
    catch "Exception" handler
    try guarded
    end
.end
.block: guarded
    strstore 9 "boom"
    throw 9
.end
.block: handler
    pull 1
    istore 0 0
    leave
.end
`
	img, diags, err := Assemble(src, CompileOptions{})
	if err != nil {
		t.Fatalf("assemble: %v (diags: %v)", err, diags)
	}

	cpu := vm.New(img.Code, toIntMap(img.Functions), toIntMap(img.Blocks), vm.Options{})
	code, exceptionType, message, err := cpu.Run("__entry")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if exceptionType != "" {
		t.Fatalf("uncaught %s: %s", exceptionType, message)
	}
	if code != 0 {
		t.Fatalf("exit code = %d, want 0 (handler ran)", code)
	}
}

func TestFrameImbalance(t *testing.T) {
	src := `
.function: main
    call 1 main
    end
.end
`
	_, diags, err := Assemble(src, CompileOptions{})
	if err == nil {
		t.Fatal("expected a fatal diagnostic for a call without a frame")
	}
	if !anyContains(diags, "call with 'call' without a frame") {
		t.Errorf("diagnostics %v do not mention the expected message", diags)
	}
}

func TestUndefinedCallTarget(t *testing.T) {
	src := `
.function: main
    frame 0 0
    call 1 nowhere
    end
.end
`
	_, diags, err := Assemble(src, CompileOptions{})
	if err == nil {
		t.Fatal("expected a fatal diagnostic for an undefined call target")
	}
	if !anyContains(diags, "call to undefined function 'nowhere'") {
		t.Errorf("diagnostics %v do not mention the expected message", diags)
	}
}

func TestNativeModuleCallTargetSkipsLinkTimeCheck(t *testing.T) {
	src := `
.function: main
    frame 1 1
    istore 1 2
    param 0 1
    call 1 mathlib.add
    end
.end
`
	_, diags, err := Assemble(src, CompileOptions{})
	if err != nil {
		if fatal, ok := FirstFatal(diags); ok {
			t.Fatalf("unexpected fatal diagnostic for a dotted native call target: %s", fatal.String())
		}
		t.Fatalf("assemble: %v", err)
	}
}

func anyContains(diags []Diagnostic, substr string) bool {
	for _, d := range diags {
		if strings.Contains(d.String(), substr) {
			return true
		}
	}
	return false
}

func toIntMap(t map[string]uint16) map[string]int {
	out := make(map[string]int, len(t))
	for k, v := range t {
		out[k] = int(v)
	}
	return out
}
