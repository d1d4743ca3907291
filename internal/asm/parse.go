package asm

import (
	"strings"

	"github.com/pkg/errors"
)

// Line is one gathered instruction line, already stripped of comments and
// split into its mnemonic and operand tokens.
type Line struct {
	Mnemonic   string
	Operands   []string
	SourceLine int
}

// Unit is a single function or block body, plus whatever .name: aliases
// and .mark: jump marks were declared inside it.
type Unit struct {
	Name    string
	Lines   []Line
	Aliases map[string]int64 // .name: alias -> register index
	Marks   map[string]int   // jump mark -> index into Lines of the marked instruction
}

func newUnit(name string) *Unit {
	return &Unit{Name: name, Aliases: make(map[string]int64), Marks: make(map[string]int)}
}

// Program is the result of gathering: every function and block body,
// keyed by name, plus the external signatures declared for link targets.
type Program struct {
	Functions map[string]*Unit
	Blocks    map[string]*Unit

	FunctionSignatures map[string]bool
	BlockSignatures    map[string]bool

	MainName string

	Links []string // .link-requested or command-line-given link targets
}

func newProgram() *Program {
	return &Program{
		Functions:          make(map[string]*Unit),
		Blocks:             make(map[string]*Unit),
		FunctionSignatures: make(map[string]bool),
		BlockSignatures:    make(map[string]bool),
		MainName:           "main",
	}
}

// Gather scans expanded source lines for the top-level directives and
// collects function/block bodies into a Program. It is step 2 of the
// assembler's pipeline, following Expand.
func Gather(lines []ExpandedLine) (*Program, error) {
	prog := newProgram()

	var current *Unit
	var currentKind string // "function" or "block"

	for _, el := range lines {
		text := strings.TrimSpace(el.Text)
		if text == "" {
			continue
		}
		directive, rest := splitDirective(text)

		switch directive {
		case ".function:":
			name := strings.TrimSpace(rest)
			if current != nil {
				return nil, errors.Errorf("line %d: nested .function: inside %s %q", el.SourceLine, currentKind, current.Name)
			}
			current = newUnit(name)
			currentKind = "function"
			continue

		case ".block:":
			name := strings.TrimSpace(rest)
			if current != nil {
				return nil, errors.Errorf("line %d: nested .block: inside %s %q", el.SourceLine, currentKind, current.Name)
			}
			current = newUnit(name)
			currentKind = "block"
			continue

		case ".end":
			if current == nil {
				return nil, errors.Errorf("line %d: .end without an opening .function:/.block:", el.SourceLine)
			}
			if currentKind == "function" {
				prog.Functions[current.Name] = current
			} else {
				prog.Blocks[current.Name] = current
			}
			current = nil
			currentKind = ""
			continue

		case ".signature:":
			prog.FunctionSignatures[strings.TrimSpace(rest)] = true
			continue

		case ".bsignature:":
			prog.BlockSignatures[strings.TrimSpace(rest)] = true
			continue

		case ".main:":
			prog.MainName = strings.TrimSpace(rest)
			continue

		case ".link:":
			prog.Links = append(prog.Links, strings.TrimSpace(rest))
			continue

		case ".name:":
			if current == nil {
				return nil, errors.Errorf("line %d: .name: outside a function/block body", el.SourceLine)
			}
			fields := strings.Fields(rest)
			if len(fields) != 2 {
				return nil, errors.Errorf("line %d: .name: expects 'index alias', got %q", el.SourceLine, rest)
			}
			idx, err := parseRegisterLiteral(fields[0])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: .name:", el.SourceLine)
			}
			current.Aliases[fields[1]] = idx
			continue

		case ".mark:":
			if current == nil {
				return nil, errors.Errorf("line %d: .mark: outside a function/block body", el.SourceLine)
			}
			current.Marks[strings.TrimSpace(rest)] = len(current.Lines)
			continue

		case ".type:", ".class:":
			// Accepted for source compatibility; these declare typesystem
			// intent at the textual level only. The CLASS/PROTOTYPE/DERIVE
			// instructions themselves carry the actual runtime effect.
			continue
		}

		if strings.HasPrefix(text, ".") {
			return nil, errors.Errorf("line %d: unknown directive %q", el.SourceLine, strings.Fields(text)[0])
		}

		if current == nil {
			return nil, errors.Errorf("line %d: instruction %q outside any .function:/.block: body", el.SourceLine, text)
		}

		fields := strings.Fields(text)
		current.Lines = append(current.Lines, Line{
			Mnemonic:   fields[0],
			Operands:   fields[1:],
			SourceLine: el.SourceLine,
		})
	}

	if current != nil {
		return nil, errors.Errorf("unclosed %s %q at end of file", currentKind, current.Name)
	}

	return prog, nil
}

// splitDirective recognizes a leading directive token, returning it and
// the remainder of the line. Non-directive lines return ("", text).
func splitDirective(text string) (directive, rest string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ""
	}
	head := fields[0]
	switch head {
	case ".function:", ".block:", ".signature:", ".bsignature:", ".main:", ".mark:", ".name:", ".type:", ".class:", ".link:":
		return head, strings.TrimSpace(strings.TrimPrefix(text, head))
	case ".end":
		return ".end", ""
	default:
		return "", text
	}
}
