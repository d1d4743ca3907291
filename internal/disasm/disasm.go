// Package disasm renders a loaded bytecode image back into canonical
// Viua assembly text: one line per decoded instruction, grouped under
// the .function:/.block: ranges recorded in the image's address tables.
package disasm

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"viua/internal/bytecode"
	"viua/internal/loader"
)

// Options configures a disassembly run.
type Options struct {
	WithEntry bool // include __entry, normally suppressed as synthetic
	Info      bool // prepend a function/block size table as comments
	Verbose   bool

	// Color forces (or suppresses) mnemonic/operand colorizing regardless
	// of whether the destination is a terminal. Nil means auto-detect via
	// IsTerminal against Out (or os.Stdout if Out is nil).
	Color *bool
	Out   io.Writer
}

func (o Options) colorize() bool {
	if o.Color != nil {
		return *o.Color
	}
	out := o.Out
	if out == nil {
		out = os.Stdout
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Disassemble renders img as canonical assembly text.
func Disassemble(img *loader.Image, opts Options) (string, error) {
	var sb strings.Builder

	ranges, err := unitRanges(img, opts)
	if err != nil {
		return "", errors.Wrap(err, "disasm")
	}

	if opts.Info {
		writeInfo(&sb, img, ranges)
	}

	color := opts.colorize()
	for _, u := range ranges {
		kind := ".function:"
		if u.isBlock {
			kind = ".block:"
		}
		fmt.Fprintf(&sb, "%s %s\n", kind, u.name)

		pos := u.start
		for pos < u.end {
			ins, n, err := bytecode.Decode(img.Code[pos:u.end])
			if err != nil {
				return "", errors.Wrapf(err, "disasm: decoding %s at offset %d", u.name, pos)
			}
			sb.WriteString("    ")
			sb.WriteString(renderInstruction(ins, color))
			sb.WriteByte('\n')
			pos += n
		}
		sb.WriteString(".end\n\n")
	}

	return sb.String(), nil
}

type unitRange struct {
	name    string
	start   int
	end     int
	isBlock bool
}

func unitRanges(img *loader.Image, opts Options) ([]unitRange, error) {
	var ranges []unitRange
	for name, off := range img.Blocks {
		ranges = append(ranges, unitRange{name: name, start: int(off), isBlock: true})
	}
	for name, off := range img.Functions {
		if name == "__entry" && !opts.WithEntry {
			continue
		}
		ranges = append(ranges, unitRange{name: name, start: int(off)})
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })
	for i := range ranges {
		if i+1 < len(ranges) {
			ranges[i].end = ranges[i+1].start
		} else {
			ranges[i].end = len(img.Code)
		}
	}
	// Sorting by name afterwards for deterministic output order, now that
	// byte ranges have been computed against address order.
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].isBlock != ranges[j].isBlock {
			return ranges[i].isBlock
		}
		return ranges[i].name < ranges[j].name
	})
	return ranges, nil
}

func writeInfo(sb *strings.Builder, img *loader.Image, ranges []unitRange) {
	fmt.Fprintf(sb, "; bytecode size: %s (%d instructions decoded across %d units)\n",
		humanize.Bytes(uint64(len(img.Code))), countInstructions(img, ranges), len(ranges))
	names := make([]string, 0, len(ranges))
	for _, u := range ranges {
		names = append(names, u.name)
	}
	slices.Sort(names)
	for _, name := range names {
		for _, u := range ranges {
			if u.name == name {
				fmt.Fprintf(sb, "; %s %s: %d bytes\n", unitWord(u), u.name, u.end-u.start)
			}
		}
	}
	sb.WriteByte('\n')
}

func unitWord(u unitRange) string {
	if u.isBlock {
		return "block"
	}
	return "function"
}

func countInstructions(img *loader.Image, ranges []unitRange) int {
	count := 0
	for _, u := range ranges {
		pos := u.start
		for pos < u.end {
			_, n, err := bytecode.Decode(img.Code[pos:u.end])
			if err != nil {
				break
			}
			pos += n
			count++
		}
	}
	return count
}

var ressSymbolic = map[byte]string{0: "global", 1: "local", 2: "static", 3: "temp"}

// renderInstruction formats one decoded instruction in canonical assembly
// syntax: by-reference register operands get an "@" prefix, RESS's byte
// selector is rendered back to its symbolic name, jump offsets are
// rendered in hex.
func renderInstruction(ins bytecode.Instruction, color bool) string {
	mnemonic := ins.Op.Name()
	if color {
		mnemonic = "\x1b[36m" + mnemonic + "\x1b[0m"
	}
	var parts []string
	for _, r := range ins.Regs {
		parts = append(parts, renderReg(r))
	}

	switch ins.Op {
	case bytecode.JUMP:
		parts = append(parts, fmt.Sprintf("0x%x", ins.Int32s[0]))
	case bytecode.BRANCH:
		parts = append(parts, fmt.Sprintf("0x%x", ins.Int32s[0]), fmt.Sprintf("0x%x", ins.Int32s[1]))
	case bytecode.FSTORE:
		parts = append(parts, fmt.Sprintf("%g", ins.Float))
	case bytecode.BSTORE:
		parts = append(parts, fmt.Sprintf("0x%02x", ins.Byte))
	case bytecode.RESS:
		if sym, ok := ressSymbolic[ins.Byte]; ok {
			parts = append(parts, sym)
		} else {
			parts = append(parts, fmt.Sprintf("0x%02x", ins.Byte))
		}
	case bytecode.STRSTORE:
		parts = append(parts, quote(ins.Names[0]))
	case bytecode.CATCH:
		parts = append(parts, quote(ins.Names[0]), ins.Names[1])
	case bytecode.IMPORT:
		parts = append(parts, quote(ins.Names[0]))
	default:
		for _, n := range ins.Names {
			parts = append(parts, n)
		}
	}

	if len(parts) == 0 {
		return mnemonic
	}
	return mnemonic + " " + strings.Join(parts, " ")
}

func renderReg(r bytecode.IntOp) string {
	if r.ByReference {
		return fmt.Sprintf("@%d", r.Index)
	}
	return fmt.Sprintf("%d", r.Index)
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
