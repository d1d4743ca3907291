package asm

import (
	"fmt"
	"strings"

	"viua/internal/bytecode"
)

// Diagnostic is one verification failure or warning, carrying enough
// context to point back at the offending source line.
type Diagnostic struct {
	Fatal      bool
	Message    string
	SourceLine int
}

func (d Diagnostic) String() string {
	level := "warning"
	if d.Fatal {
		level = "fatal"
	}
	if d.SourceLine > 0 {
		return fmt.Sprintf("%s: %s (line %d)", level, d.Message, d.SourceLine)
	}
	return fmt.Sprintf("%s: %s", level, d.Message)
}

// Warnings selects the non-fatal diagnostics, as asm.cpp's report strings
// were printed regardless of whether they ultimately aborted assembly.
func Warnings(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if !d.Fatal {
			out = append(out, d)
		}
	}
	return out
}

// FirstFatal reports whether diags contains a fatal diagnostic, and if
// so, which one — verification aborts on the first fatal finding, per
// the pipeline's "first failure aborts" rule.
func FirstFatal(diags []Diagnostic) (Diagnostic, bool) {
	for _, d := range diags {
		if d.Fatal {
			return d, true
		}
	}
	return Diagnostic{}, false
}

// VerifyOptions mirrors the assembler CLI's warning/error-promotion flags.
type VerifyOptions struct {
	AsLib bool

	WarnAll          bool
	WarnMissingEnd   bool
	ErrorAll         bool
	ErrorMissingEnd  bool
	ErrorHaltIsLast  bool
}

// Verify runs every independent verification pass over the gathered
// program, per the pipeline's step 3. It does not stop at the first
// fatal diagnostic — all are collected so callers can report everything
// wrong with one invocation — but FirstFatal still selects the first one
// that must abort compilation, matching asm.cpp's first-failure-aborts
// behavior.
func Verify(prog *Program, opts VerifyOptions) []Diagnostic {
	var diags []Diagnostic
	diags = append(diags, verifyInstructions(prog)...)
	diags = append(diags, verifyRess(prog, opts.AsLib)...)
	diags = append(diags, verifyNonemptyBodies(prog)...)
	diags = append(diags, verifyBlockBodies(prog)...)
	diags = append(diags, verifyBlockTries(prog)...)
	diags = append(diags, verifyFrameBalance(prog)...)
	diags = append(diags, verifyCallTargets(prog)...)
	diags = append(diags, verifyMissingEnd(prog, opts)...)
	if !opts.AsLib && (opts.ErrorHaltIsLast || opts.ErrorAll) {
		diags = append(diags, verifyMainDoesNotEndWithHalt(prog)...)
	}
	return diags
}

func verifyInstructions(prog *Program) []Diagnostic {
	var diags []Diagnostic
	check := func(u *Unit) {
		for _, line := range u.Lines {
			if _, ok := bytecode.ByName[line.Mnemonic]; !ok {
				diags = append(diags, Diagnostic{Fatal: true, SourceLine: line.SourceLine,
					Message: fmt.Sprintf("unknown instruction mnemonic %q", line.Mnemonic)})
			}
		}
	}
	for _, u := range prog.Functions {
		check(u)
	}
	for _, u := range prog.Blocks {
		check(u)
	}
	return diags
}

func verifyRess(prog *Program, asLib bool) []Diagnostic {
	var diags []Diagnostic
	check := func(u *Unit) {
		for _, line := range u.Lines {
			if line.Mnemonic != "ress" || len(line.Operands) == 0 {
				continue
			}
			sel := line.Operands[0]
			if _, ok := ressNames[sel]; !ok {
				if _, err := parseByteLiteral(sel); err != nil {
					diags = append(diags, Diagnostic{Fatal: true, SourceLine: line.SourceLine,
						Message: fmt.Sprintf("ress: unrecognized register set %q", sel)})
					continue
				}
			}
			if asLib && sel == "global" && u.Name != "main" {
				diags = append(diags, Diagnostic{Fatal: true, SourceLine: line.SourceLine,
					Message: "ress global is forbidden in a library outside main"})
			}
		}
	}
	for _, u := range prog.Functions {
		check(u)
	}
	for _, u := range prog.Blocks {
		check(u)
	}
	return diags
}

func verifyNonemptyBodies(prog *Program) []Diagnostic {
	var diags []Diagnostic
	for name, u := range prog.Functions {
		if len(u.Lines) == 0 {
			diags = append(diags, Diagnostic{Fatal: true, Message: fmt.Sprintf("function %q has empty body", name)})
		}
	}
	return diags
}

func verifyBlockBodies(prog *Program) []Diagnostic {
	var diags []Diagnostic
	for name, u := range prog.Blocks {
		if len(u.Lines) == 0 {
			diags = append(diags, Diagnostic{Fatal: true, Message: fmt.Sprintf("block %q has empty body", name)})
			continue
		}
		last := u.Lines[len(u.Lines)-1].Mnemonic
		if last != "leave" && last != "end" && last != "halt" && last != "throw" {
			diags = append(diags, Diagnostic{Fatal: true,
				Message: fmt.Sprintf("block %q does not end with 'leave', 'end', 'halt' or 'throw'", name)})
		}
	}
	return diags
}

// verifyBlockTries checks that every CATCH/TRY target names a block that
// is either defined in this translation unit or declared via .bsignature:
// for resolution at link time.
func verifyBlockTries(prog *Program) []Diagnostic {
	var diags []Diagnostic
	known := func(name string) bool {
		if _, ok := prog.Blocks[name]; ok {
			return true
		}
		return prog.BlockSignatures[name]
	}
	check := func(u *Unit) {
		for _, line := range u.Lines {
			switch line.Mnemonic {
			case "catch":
				if len(line.Operands) >= 2 && !known(line.Operands[1]) {
					diags = append(diags, Diagnostic{Fatal: true, SourceLine: line.SourceLine,
						Message: fmt.Sprintf("catch: no such block %q", line.Operands[1])})
				}
			case "try":
				if len(line.Operands) >= 1 && !known(line.Operands[0]) {
					diags = append(diags, Diagnostic{Fatal: true, SourceLine: line.SourceLine,
						Message: fmt.Sprintf("try: no such block %q", line.Operands[0])})
				}
			}
		}
	}
	for _, u := range prog.Functions {
		check(u)
	}
	for _, u := range prog.Blocks {
		check(u)
	}
	return diags
}

// verifyFrameBalance enforces the calling convention's bookkeeping
// invariant: each FRAME is consumed by exactly one CALL/FCALL/MSG, END
// never fires with a frame still pending, and no CALL/FCALL/MSG fires
// without one.
func verifyFrameBalance(prog *Program) []Diagnostic {
	var diags []Diagnostic
	check := func(u *Unit) {
		pending := false
		for _, line := range u.Lines {
			switch line.Mnemonic {
			case "frame":
				if pending {
					diags = append(diags, Diagnostic{Fatal: true, SourceLine: line.SourceLine,
						Message: "frame: a frame is already pending (double frame)"})
				}
				pending = true
			case "call", "fcall", "msg":
				if !pending {
					diags = append(diags, Diagnostic{Fatal: true, SourceLine: line.SourceLine,
						Message: fmt.Sprintf("call with '%s' without a frame", line.Mnemonic)})
				}
				pending = false
			case "end":
				if pending {
					diags = append(diags, Diagnostic{Fatal: true, SourceLine: line.SourceLine,
						Message: "end: a frame is still pending"})
				}
			}
		}
	}
	for _, u := range prog.Functions {
		check(u)
	}
	for _, u := range prog.Blocks {
		check(u)
	}
	return diags
}

// verifyCallTargets checks that CALL/CLOSURE/FUNCTION names refer to a
// function defined locally or declared via .signature: for link-time
// resolution.
func verifyCallTargets(prog *Program) []Diagnostic {
	var diags []Diagnostic
	known := func(name string) bool {
		if _, ok := prog.Functions[name]; ok {
			return true
		}
		return prog.FunctionSignatures[name]
	}
	check := func(u *Unit) {
		for _, line := range u.Lines {
			switch line.Mnemonic {
			case "call", "closure", "function":
				if len(line.Operands) < 2 {
					continue
				}
				target := line.Operands[1]
				if strings.Contains(target, ".") {
					// A dotted name names a native module export (e.g.
					// "mathlib.add"), resolved at runtime by IMPORT rather
					// than at link time.
					continue
				}
				if !known(target) {
					diags = append(diags, Diagnostic{Fatal: true, SourceLine: line.SourceLine,
						Message: fmt.Sprintf("call to undefined function '%s'", target)})
				}
			}
		}
	}
	for _, u := range prog.Functions {
		check(u)
	}
	for _, u := range prog.Blocks {
		check(u)
	}
	return diags
}

func verifyMissingEnd(prog *Program, opts VerifyOptions) []Diagnostic {
	var diags []Diagnostic
	for name, u := range prog.Functions {
		if len(u.Lines) == 0 {
			continue
		}
		last := u.Lines[len(u.Lines)-1].Mnemonic
		if last == "end" || (name != "main" && last == "halt") {
			continue
		}
		fatal := opts.ErrorMissingEnd || opts.ErrorAll
		warn := opts.WarnMissingEnd || opts.WarnAll
		if fatal {
			diags = append(diags, Diagnostic{Fatal: true, Message: fmt.Sprintf("missing 'end' at the end of function %q", name)})
		} else if warn {
			diags = append(diags, Diagnostic{Fatal: false, Message: fmt.Sprintf("missing 'end' at the end of function %q", name)})
		}
	}
	return diags
}

func verifyMainDoesNotEndWithHalt(prog *Program) []Diagnostic {
	u, ok := prog.Functions["main"]
	if !ok || len(u.Lines) == 0 {
		return nil
	}
	if strings.TrimSpace(u.Lines[len(u.Lines)-1].Mnemonic) == "halt" {
		return []Diagnostic{{Fatal: true, Message: "main ends with 'halt': process exit code would bypass __entry"}}
	}
	return nil
}
