package asm

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ExpandedLine is one flattened, comment-stripped source line, together
// with the source line it was expanded from (for diagnostics).
type ExpandedLine struct {
	Text       string
	SourceLine int
}

// expandState carries the synthesized-register counter across the whole
// file: nested instruction calls each need their own scratch register,
// and scratch registers must never collide with ones the programmer wrote
// by hand, so they are drawn from a reserved high range.
type expandState struct {
	nextScratch int64
}

const scratchRegisterBase = 1 << 16

func newExpandState() *expandState { return &expandState{nextScratch: scratchRegisterBase} }

func (s *expandState) scratch() int64 {
	r := s.nextScratch
	s.nextScratch++
	return r
}

// Expand is step 1 of the assembler's pipeline: strip comments and blank
// lines, then flatten any parenthesized sub-expression (an instruction
// used as another instruction's operand) into its own preceding line that
// writes its result to a synthesized register, which replaces the
// parenthesized expression in the outer line.
func Expand(source string) ([]ExpandedLine, error) {
	var out []ExpandedLine
	st := newExpandState()

	for i, raw := range splitSourceLines(source) {
		sourceLine := i + 1
		line := stripComment(raw)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		flattened, err := expandLine(line, st)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", sourceLine)
		}
		for _, f := range flattened {
			out = append(out, ExpandedLine{Text: f, SourceLine: sourceLine})
		}
	}
	return out, nil
}

func splitSourceLines(source string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(source); i++ {
		if source[i] == '\n' {
			lines = append(lines, source[start:i])
			start = i + 1
		}
	}
	if start < len(source) {
		lines = append(lines, source[start:])
	}
	return lines
}

// stripComment removes a trailing "; ..." comment, respecting quoted
// strings so a semicolon inside a string literal is not mistaken for one.
func stripComment(line string) string {
	inString := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inString = !inString
		case ';':
			if !inString {
				return line[:i]
			}
		}
	}
	return line
}

// expandLine recursively flattens one line's parenthesized sub-expressions,
// returning the preceding lines (one per sub-expression, innermost first)
// followed by the now-flat original line with each sub-expression replaced
// by the register that now holds its result.
func expandLine(line string, st *expandState) ([]string, error) {
	open := strings.IndexByte(line, '(')
	if open < 0 {
		return []string{line}, nil
	}
	close, err := matchParen(line, open)
	if err != nil {
		return nil, err
	}

	inner := strings.TrimSpace(line[open+1 : close])
	innerFlattened, err := expandLine(inner, st)
	if err != nil {
		return nil, err
	}
	// innerFlattened's last element is the fully-flat inner instruction;
	// everything before it are its own hoisted sub-expressions.
	innerInstr := innerFlattened[len(innerFlattened)-1]
	fields := strings.Fields(innerInstr)
	if len(fields) == 0 {
		return nil, errors.New("empty parenthesized expression")
	}

	dest := st.scratch()
	hoisted := append([]string{}, innerFlattened[:len(innerFlattened)-1]...)
	hoisted = append(hoisted, fmt.Sprintf("%s %d %s", fields[0], dest, strings.Join(fields[1:], " ")))

	rewritten := line[:open] + fmt.Sprintf("%d", dest) + line[close+1:]
	rest, err := expandLine(rewritten, st)
	if err != nil {
		return nil, err
	}
	return append(hoisted, rest...), nil
}

func matchParen(line string, open int) (int, error) {
	depth := 0
	for i := open; i < len(line); i++ {
		switch line[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, errors.Errorf("unbalanced parentheses starting at column %d", open)
}
