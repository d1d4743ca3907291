package disasm

import (
	"strings"
	"testing"

	"viua/internal/asm"
	"viua/internal/loader"
)

func TestDisassembleRendersExpectedMnemonics(t *testing.T) {
	src := `
.function: main
    istore 1 4
    istore 2 5
    iadd 0 1 2
    end
.end
`
	img, diags, err := asm.Assemble(src, asm.CompileOptions{})
	if err != nil {
		t.Fatalf("assemble: %v (diags: %v)", err, diags)
	}

	out, err := Disassemble(img, Options{})
	if err != nil {
		t.Fatalf("disassemble: %v", err)
	}

	for _, want := range []string{".function: main", "istore 1 4", "istore 2 5", "iadd 0 1 2", "end", ".end"} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q; got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "__entry") {
		t.Errorf("__entry should be suppressed unless WithEntry is set; got:\n%s", out)
	}
}

func TestDisassembleWithEntry(t *testing.T) {
	src := `
.function: main
    istore 0 1
    end
.end
`
	img, _, err := asm.Assemble(src, asm.CompileOptions{})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	out, err := Disassemble(img, Options{WithEntry: true})
	if err != nil {
		t.Fatalf("disassemble: %v", err)
	}
	if !strings.Contains(out, ".function: __entry") {
		t.Errorf("expected __entry to be rendered when WithEntry is set; got:\n%s", out)
	}
}

// TestRoundTripAssembleDisassemble is the round-trip scenario: assembling
// a program, disassembling it, and reassembling the disassembled text
// must produce byte-identical code (excluding the synthesized __entry,
// which the second assembly regenerates fresh rather than inheriting).
func TestRoundTripAssembleDisassemble(t *testing.T) {
	src := `
.function: main
    istore 1 4
    istore 2 5
    iadd 0 1 2
    end
.end
`
	first, _, err := asm.Assemble(src, asm.CompileOptions{})
	if err != nil {
		t.Fatalf("first assemble: %v", err)
	}

	rendered, err := Disassemble(first, Options{})
	if err != nil {
		t.Fatalf("disassemble: %v", err)
	}

	second, diags, err := asm.Assemble(rendered, asm.CompileOptions{})
	if err != nil {
		t.Fatalf("reassemble: %v (diags: %v)", err, diags)
	}

	if first.Functions["main"] != second.Functions["main"] {
		t.Errorf("main's address moved across the round trip: %d vs %d", first.Functions["main"], second.Functions["main"])
	}
	firstMain := sliceFunction(first, "main")
	secondMain := sliceFunction(second, "main")
	if string(firstMain) != string(secondMain) {
		t.Errorf("main's bytecode changed across the round trip:\nfirst:  %v\nsecond: %v", firstMain, secondMain)
	}
}

// sliceFunction extracts name's byte range out of img.Code, bounded by
// whichever other function/block starts next (or the end of Code).
func sliceFunction(img *loader.Image, name string) []byte {
	start := int(img.Functions[name])
	end := len(img.Code)
	for n, off := range img.Functions {
		if n == name {
			continue
		}
		if int(off) > start && int(off) < end {
			end = int(off)
		}
	}
	for _, off := range img.Blocks {
		if int(off) > start && int(off) < end {
			end = int(off)
		}
	}
	return img.Code[start:end]
}

func TestDisassembleInfoTable(t *testing.T) {
	src := `
.function: main
    istore 0 1
    end
.end
`
	img, _, err := asm.Assemble(src, asm.CompileOptions{})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	out, err := Disassemble(img, Options{Info: true})
	if err != nil {
		t.Fatalf("disassemble: %v", err)
	}
	if !strings.Contains(out, "; bytecode size:") {
		t.Errorf("expected an --info size header; got:\n%s", out)
	}
}
