package asm

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"viua/internal/bytecode"
	"viua/internal/loader"
)

// pendingJump records one jump-target operand that could not be resolved
// to a final absolute byte address until every unit's base address is
// known.
type pendingJump struct {
	unit      string
	insnIndex int
	slot      int // 0 for ShapeInt32 and the single target; 0/1 for BRANCH's true/false targets
	raw       string
}

// builtUnit is a unit whose instructions have been decoded from text into
// bytecode.Instruction values, with jump operands left pending.
type builtUnit struct {
	name  string
	insns []bytecode.Instruction
	size  int
}

// emitState threads the two address-mapping/emission passes (step 5 and
// step 7 of the pipeline) across block and function units.
type emitState struct {
	prog    *Program
	blocks  []*builtUnit
	funcs   []*builtUnit
	jumps   []pendingJump
	base    map[string]int // unit name -> starting byte offset within the final Code
	lineOf  map[string][]int // unit name -> absolute byte offset of each instruction's start in the final Code, then the unit's end offset
}

// Emit runs steps 5 (address mapping) and 7 (emission) of the pipeline,
// producing a loader.Image ready to be written out or further linked.
func Emit(prog *Program, asLib bool) (*loader.Image, error) {
	st := &emitState{prog: prog, base: make(map[string]int), lineOf: make(map[string][]int)}

	blockNames := sortedKeys(prog.Blocks)
	funcNames := sortedKeys(prog.Functions)

	for _, name := range blockNames {
		bu, err := buildUnit(prog.Blocks[name], st)
		if err != nil {
			return nil, errors.Wrapf(err, "block %q", name)
		}
		st.blocks = append(st.blocks, bu)
	}
	for _, name := range funcNames {
		bu, err := buildUnit(prog.Functions[name], st)
		if err != nil {
			return nil, errors.Wrapf(err, "function %q", name)
		}
		st.funcs = append(st.funcs, bu)
	}

	offset := 0
	img := loader.NewImage()
	img.Library = asLib
	for _, bu := range st.blocks {
		st.base[bu.name] = offset
		img.Blocks[bu.name] = uint16(offset)
		offset += bu.size
	}
	for _, bu := range st.funcs {
		st.base[bu.name] = offset
		img.Functions[bu.name] = uint16(offset)
		offset += bu.size
	}

	allUnits := append(append([]*builtUnit{}, st.blocks...), st.funcs...)
	for _, bu := range allUnits {
		unitOffset := st.base[bu.name]
		positions := make([]int, len(bu.insns)+1)
		pos := unitOffset
		for i, ins := range bu.insns {
			positions[i] = pos
			pos += bytecode.EncodedSize(ins)
		}
		positions[len(bu.insns)] = pos
		st.lineOf[bu.name] = positions
	}

	for _, pj := range st.jumps {
		target, err := resolveJumpTarget(pj.raw, pj.unit, pj.insnIndex, st)
		if err != nil {
			return nil, errors.Wrapf(err, "unit %q instruction %d", pj.unit, pj.insnIndex)
		}
		unit := unitByName(st, pj.unit)
		ins := &unit.insns[pj.insnIndex]
		if len(ins.Int32s) <= pj.slot {
			ins.Int32s = append(ins.Int32s, make([]int32, pj.slot-len(ins.Int32s)+1)...)
		}
		ins.Int32s[pj.slot] = int32(target)
		if asLib {
			jumpBytePos := st.lineOf[pj.unit][pj.insnIndex] + jumpFieldByteOffset(ins.Op, pj.slot)
			img.Jumps = append(img.Jumps, uint32(jumpBytePos))
		}
	}

	var code []byte
	for _, bu := range allUnits {
		for _, ins := range bu.insns {
			var err error
			code, err = bytecode.Encode(code, ins)
			if err != nil {
				return nil, errors.Wrapf(err, "encoding instruction in %q", bu.name)
			}
		}
	}
	img.Code = code
	if asLib {
		slices.Sort(img.Jumps)
	}
	return img, nil
}

func unitByName(st *emitState, name string) *builtUnit {
	for _, bu := range st.blocks {
		if bu.name == name {
			return bu
		}
	}
	for _, bu := range st.funcs {
		if bu.name == name {
			return bu
		}
	}
	return nil
}

// jumpFieldByteOffset returns where, within an already-encoded
// instruction, the int32 jump field named by slot begins — needed to
// populate the library jump-relocation table (the register-operand
// encoding is 5 bytes: 1 flag byte + 4 index bytes).
func jumpFieldByteOffset(op bytecode.Op, slot int) int {
	const regOp = 5
	switch op {
	case bytecode.JUMP:
		return 1
	case bytecode.BRANCH:
		if slot == 0 {
			return 1 + regOp
		}
		return 1 + regOp + 4
	}
	return 1
}

func buildUnit(u *Unit, st *emitState) (*builtUnit, error) {
	bu := &builtUnit{name: u.Name}
	for i, line := range u.Lines {
		ins, err := buildInstruction(line, u)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line.SourceLine)
		}
		if ins.Op == bytecode.JUMP {
			st.jumps = append(st.jumps, pendingJump{unit: u.Name, insnIndex: i, slot: 0, raw: line.Operands[0]})
		}
		if ins.Op == bytecode.BRANCH {
			st.jumps = append(st.jumps, pendingJump{unit: u.Name, insnIndex: i, slot: 0, raw: line.Operands[1]})
			st.jumps = append(st.jumps, pendingJump{unit: u.Name, insnIndex: i, slot: 1, raw: line.Operands[2]})
		}
		bu.insns = append(bu.insns, ins)
		bu.size += bytecode.EncodedSize(ins)
	}
	return bu, nil
}

// resolveJumpTarget turns one of the jump-mark forms (":label", "+N",
// "-N", ".N", "0xHEX", or a bare decimal instruction index) into a final
// absolute byte offset within the linked image.
func resolveJumpTarget(raw, unitName string, insnIndex int, st *emitState) (int, error) {
	positions := st.lineOf[unitName]

	switch {
	case strings.HasPrefix(raw, ":"):
		label := raw[1:]
		unit := findTextUnit(st.prog, unitName)
		markIdx, ok := unit.Marks[label]
		if !ok {
			return 0, errors.Errorf("no such jump mark %q", label)
		}
		return markPosition(positions, markIdx, st.base[unitName]), nil

	case strings.HasPrefix(raw, "+"):
		n, err := strconv.Atoi(raw[1:])
		if err != nil {
			return 0, errors.Errorf("bad relative jump %q", raw)
		}
		return markPosition(positions, insnIndex+n, st.base[unitName]), nil

	case strings.HasPrefix(raw, "-"):
		n, err := strconv.Atoi(raw[1:])
		if err != nil {
			return 0, errors.Errorf("bad relative jump %q", raw)
		}
		return markPosition(positions, insnIndex-n, st.base[unitName]), nil

	case strings.HasPrefix(raw, "."):
		n, err := strconv.Atoi(raw[1:])
		if err != nil {
			return 0, errors.Errorf("bad absolute-index jump %q", raw)
		}
		return markPosition(positions, n, st.base[unitName]), nil

	case strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X"):
		n, err := strconv.ParseInt(raw[2:], 16, 64)
		if err != nil {
			return 0, errors.Errorf("bad hex jump address %q", raw)
		}
		return int(n), nil

	default:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, errors.Errorf("not a jump target: %q", raw)
		}
		return markPosition(positions, n, st.base[unitName]), nil
	}
}

func markPosition(positions []int, idx, fallbackBase int) int {
	// positions ends with the unit's end offset, so one past the last
	// instruction (e.g. a mark at the unit's .end) lands just past it.
	if idx < 0 || idx >= len(positions) {
		return fallbackBase
	}
	return positions[idx]
}

func findTextUnit(prog *Program, name string) *Unit {
	if u, ok := prog.Functions[name]; ok {
		return u
	}
	return prog.Blocks[name]
}

func sortedKeys(m map[string]*Unit) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// buildInstruction decodes one gathered line into a bytecode.Instruction,
// per that opcode's Shape. Jump targets (ShapeInt32, ShapeRegInt32Int32)
// are left as zero and patched later by resolveJumpTarget, once every
// unit's base address is known.
func buildInstruction(line Line, unit *Unit) (bytecode.Instruction, error) {
	op, ok := bytecode.ByName[line.Mnemonic]
	if !ok {
		return bytecode.Instruction{}, errors.Errorf("unknown mnemonic %q", line.Mnemonic)
	}
	shape, _ := bytecode.ShapeOf(op)
	ins := bytecode.Instruction{Op: op}

	reg := func(i int) (bytecode.IntOp, error) {
		if i >= len(line.Operands) {
			return bytecode.IntOp{}, errors.Errorf("%s: missing register operand %d", line.Mnemonic, i)
		}
		byRef, idx, err := resolveRegisterOperand(line.Operands[i], unit.Aliases)
		if err != nil {
			return bytecode.IntOp{}, err
		}
		return bytecode.IntOp{ByReference: byRef, Index: idx}, nil
	}
	literalReg := func(i int) (bytecode.IntOp, error) {
		if i >= len(line.Operands) {
			return bytecode.IntOp{}, errors.Errorf("%s: missing operand %d", line.Mnemonic, i)
		}
		n, err := parseIntegerLiteral(line.Operands[i])
		if err != nil {
			return bytecode.IntOp{}, err
		}
		return bytecode.IntOp{Index: n}, nil
	}
	name := func(i int) (string, error) {
		if i >= len(line.Operands) {
			return "", errors.Errorf("%s: missing name operand %d", line.Mnemonic, i)
		}
		tok := line.Operands[i]
		if strings.HasPrefix(tok, `"`) {
			return parseStringLiteral(tok)
		}
		return tok, nil
	}

	switch shape {
	case bytecode.ShapeNone:

	case bytecode.ShapeReg:
		r, err := reg(0)
		if err != nil {
			return ins, err
		}
		ins.Regs = []bytecode.IntOp{r}

	case bytecode.ShapeRegReg:
		regFns := []func(int) (bytecode.IntOp, error){reg, reg}
		// FRAME's two operands and PARAM/ARG/PAREF/PAPTR's first operand are
		// literal slot counts/indices rather than by-reference-resolvable
		// registers, and ISTORE's second operand is its literal integer;
		// every other pair (ITOF/FTOI/STOI/STOF included) is two registers.
		switch op {
		case bytecode.FRAME:
			regFns = []func(int) (bytecode.IntOp, error){literalReg, literalReg}
		case bytecode.PARAM, bytecode.PAREF, bytecode.PAPTR, bytecode.ARG:
			regFns = []func(int) (bytecode.IntOp, error){literalReg, reg}
		case bytecode.ISTORE:
			regFns = []func(int) (bytecode.IntOp, error){reg, literalReg}
		}
		r0, err := regFns[0](0)
		if err != nil {
			return ins, err
		}
		r1, err := regFns[1](1)
		if err != nil {
			return ins, err
		}
		ins.Regs = []bytecode.IntOp{r0, r1}

	case bytecode.ShapeRegRegReg:
		r0, err := reg(0)
		if err != nil {
			return ins, err
		}
		r1, err := reg(1)
		if err != nil {
			return ins, err
		}
		r2, err := reg(2)
		if err != nil {
			return ins, err
		}
		ins.Regs = []bytecode.IntOp{r0, r1, r2}

	case bytecode.ShapeInt32:
		ins.Int32s = []int32{0}

	case bytecode.ShapeRegInt32Int32:
		r0, err := reg(0)
		if err != nil {
			return ins, err
		}
		ins.Regs = []bytecode.IntOp{r0}
		ins.Int32s = []int32{0, 0}

	case bytecode.ShapeRegFloat32:
		r0, err := reg(0)
		if err != nil {
			return ins, err
		}
		if len(line.Operands) < 2 {
			return ins, errors.Errorf("%s: missing float operand", line.Mnemonic)
		}
		f, err := parseFloatLiteral(line.Operands[1])
		if err != nil {
			return ins, err
		}
		ins.Regs = []bytecode.IntOp{r0}
		ins.Float = f

	case bytecode.ShapeRegByte:
		r0, err := reg(0)
		if err != nil {
			return ins, err
		}
		if len(line.Operands) < 2 {
			return ins, errors.Errorf("%s: missing byte operand", line.Mnemonic)
		}
		b, err := parseByteLiteral(line.Operands[1])
		if err != nil {
			return ins, err
		}
		ins.Regs = []bytecode.IntOp{r0}
		ins.Byte = b

	case bytecode.ShapeByte:
		if len(line.Operands) < 1 {
			return ins, errors.Errorf("%s: missing operand", line.Mnemonic)
		}
		b, err := parseRessSelector(line.Operands[0])
		if err != nil {
			return ins, err
		}
		ins.Byte = b

	case bytecode.ShapeVarRegString:
		r0, err := reg(0)
		if err != nil {
			return ins, err
		}
		if len(line.Operands) < 2 {
			return ins, errors.Errorf("%s: missing string operand", line.Mnemonic)
		}
		s, err := parseStringLiteral(line.Operands[1])
		if err != nil {
			return ins, err
		}
		ins.Regs = []bytecode.IntOp{r0}
		ins.Names = []string{s}

	case bytecode.ShapeVarRegName:
		r0, err := reg(0)
		if err != nil {
			return ins, err
		}
		n, err := name(1)
		if err != nil {
			return ins, err
		}
		ins.Regs = []bytecode.IntOp{r0}
		ins.Names = []string{n}

	case bytecode.ShapeVarName:
		n, err := name(0)
		if err != nil {
			return ins, err
		}
		ins.Names = []string{n}

	case bytecode.ShapeVarNameName:
		n0, err := name(0)
		if err != nil {
			return ins, err
		}
		n1, err := name(1)
		if err != nil {
			return ins, err
		}
		ins.Names = []string{n0, n1}

	case bytecode.ShapeVarRegNameName:
		r0, err := reg(0)
		if err != nil {
			return ins, err
		}
		n0, err := name(1)
		if err != nil {
			return ins, err
		}
		n1, err := name(2)
		if err != nil {
			return ins, err
		}
		ins.Regs = []bytecode.IntOp{r0}
		ins.Names = []string{n0, n1}

	default:
		return ins, errors.Errorf("%s: unhandled shape", line.Mnemonic)
	}

	return ins, nil
}
