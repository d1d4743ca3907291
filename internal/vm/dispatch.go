package vm

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	"viua/internal/bytecode"
	"viua/internal/register"
	"viua/internal/vmerr"
)

// entryLocalCapacity sizes the implicit call frame Run pushes for the
// entry function, large enough for __entry's own handful of bookkeeping
// registers (it stages a one-argument call to main and holds its return
// value) without needing its own explicit FRAME instruction.
const entryLocalCapacity = 16

// Run executes the program starting at the byte offset of entryFunction
// until HALT, an empty call stack after END, or an unhandled exception.
// It returns the same (code, exceptionType, message) tuple recorded in
// ExitState. entryFunction runs inside an implicit call frame — the same
// way every other function runs inside the frame its caller's CALL built
// for it — so its own "ress local" selects a real local register set
// instead of failing for want of one.
func (c *CPU) Run(entryFunction string) (int, string, string, error) {
	start, ok := c.functions[entryFunction]
	if !ok {
		return 1, "", "", errors.Errorf("vm: no such function %q", entryFunction)
	}
	frame := register.NewFrame(0, entryLocalCapacity)
	frame.FunctionName = entryFunction
	c.frames = append(c.frames, frame)

	c.ip = start
	c.current = frame.Regset
	c.currentKind = RegsetLocal
	c.currentFunctionName = entryFunction

	for {
		halted, err := c.tick()
		if err != nil {
			return 1, "", "", err
		}
		if halted {
			break
		}
	}
	return c.exitCode, c.exitException, c.exitMessage, nil
}

// halted is returned true by tick once execution should stop: HALT was
// reached, or END popped the last frame off the call stack.
func (c *CPU) tick() (halted bool, err error) {
	if c.ip < 0 || c.ip >= len(c.code) {
		return true, errors.Errorf("vm: instruction pointer %d out of bounds (code size %d)", c.ip, len(c.code))
	}

	ins, consumed, err := bytecode.Decode(c.code[c.ip:])
	if err != nil {
		return true, errors.Wrapf(err, "vm: decoding instruction at ip=%d", c.ip)
	}
	nextIP := c.ip + consumed

	c.instructionCounter++

	if c.opts.Scream {
		// Extra dispatch tracing, deliberately noisy.
		fmt.Fprintf(os.Stderr, "scream: ip=%d %s\n", c.ip, ins.Op.Name())
	}

	newIP, stop, raised := c.execute(ins, nextIP)
	if raised != nil {
		if handled, unwound := c.unwind(raised); handled {
			c.ip = unwound
			return false, nil
		}
		c.exitCode = 1
		c.exitException = raised.TypeName
		c.exitMessage = raised.Message
		return true, nil
	}
	if stop {
		return true, nil
	}
	if newIP >= len(c.code) {
		// Falling off the end of the bytecode: take the return code from
		// register 0 of the current regset and stop, per the dispatch
		// loop's step 5. Explicit HALT never reaches here, since its case
		// in execute returns stop=true directly.
		c.setExitFromRegisterZero()
		return true, nil
	}
	c.ip = newIP
	return false, nil
}

// execute dispatches ins and returns the next instruction pointer (ignored
// if stop is true), whether the engine should stop, and any exception the
// handler raised.
func (c *CPU) execute(ins bytecode.Instruction, nextIP int) (next int, stop bool, raised *vmerr.Exception) {
	switch ins.Op {
	case bytecode.NOP:
		return nextIP, false, nil
	case bytecode.HALT:
		// Stops immediately regardless of frame state, taking the process
		// exit code from register 0 of the current regset exactly like
		// falling off the end of the bytecode does — __entry's synthesized
		// body moves main's return value there before halting.
		c.setExitFromRegisterZero()
		return 0, true, nil
	case bytecode.END:
		return c.execEnd()

	case bytecode.IZERO, bytecode.ISTORE, bytecode.IADD, bytecode.ISUB, bytecode.IMUL, bytecode.IDIV,
		bytecode.ILT, bytecode.ILTE, bytecode.IGT, bytecode.IGTE, bytecode.IEQ, bytecode.IINC, bytecode.IDEC,
		bytecode.FSTORE, bytecode.FADD, bytecode.FSUB, bytecode.FMUL, bytecode.FDIV,
		bytecode.FLT, bytecode.FLTE, bytecode.FGT, bytecode.FGTE, bytecode.FEQ,
		bytecode.BSTORE, bytecode.BADD, bytecode.BSUB, bytecode.BLT, bytecode.BLTE,
		bytecode.BGT, bytecode.BGTE, bytecode.BEQ, bytecode.BINC, bytecode.BDEC,
		bytecode.ITOF, bytecode.FTOI, bytecode.STOI, bytecode.STOF:
		raised = c.execArith(ins)
		return nextIP, false, raised

	case bytecode.STRSTORE, bytecode.STREQ:
		raised = c.execStrings(ins)
		return nextIP, false, raised

	case bytecode.VEC, bytecode.VINSERT, bytecode.VPUSH, bytecode.VPOP, bytecode.VAT, bytecode.VLEN:
		raised = c.execVectors(ins)
		return nextIP, false, raised

	case bytecode.BOOL, bytecode.NOT, bytecode.AND, bytecode.OR:
		raised = c.execLogic(ins)
		return nextIP, false, raised

	case bytecode.MOVE, bytecode.COPY, bytecode.REF, bytecode.PTR, bytecode.DEPTR,
		bytecode.SWAP, bytecode.FREE, bytecode.EMPTY, bytecode.ISNULL, bytecode.ISPTR:
		raised = c.execMoves(ins)
		return nextIP, false, raised

	case bytecode.RESS:
		raised = c.execRess(ins)
		return nextIP, false, raised
	case bytecode.TMPRI:
		raised = c.execTmpri(ins)
		return nextIP, false, raised
	case bytecode.TMPRO:
		raised = c.execTmpro(ins)
		return nextIP, false, raised

	case bytecode.PRINT, bytecode.ECHO:
		raised = c.execIO(ins)
		return nextIP, false, raised

	case bytecode.CLBIND, bytecode.CLOSURE, bytecode.FUNCTION, bytecode.FCALL:
		return c.execCallables(ins, nextIP)

	case bytecode.FRAME, bytecode.PARAM, bytecode.PAREF, bytecode.PAPTR, bytecode.CALL, bytecode.ARG, bytecode.ARGC:
		return c.execCallProtocol(ins, nextIP)

	case bytecode.JUMP, bytecode.BRANCH:
		return c.execControl(ins, nextIP)

	case bytecode.THROW:
		raised = c.execThrow(ins)
		return nextIP, false, raised
	case bytecode.CATCH:
		raised = c.execCatch(ins)
		return nextIP, false, raised
	case bytecode.PULL:
		raised = c.execPull(ins)
		return nextIP, false, raised
	case bytecode.TRYFRAME:
		raised = c.execTryframe()
		return nextIP, false, raised
	case bytecode.TRY:
		return c.execTry(ins, nextIP)
	case bytecode.LEAVE:
		return c.execLeave()

	case bytecode.IMPORT:
		raised = c.execImport(ins)
		return nextIP, false, raised
	case bytecode.LINK:
		// Static linking is handled entirely by the assembler/loader;
		// by the time the engine sees bytecode LINK has nothing left to
		// do and is treated as a no-op if it ever reaches dispatch.
		return nextIP, false, nil

	case bytecode.CLASS, bytecode.PROTOTYPE, bytecode.DERIVE, bytecode.ATTACH, bytecode.REGISTER, bytecode.NEW, bytecode.MSG:
		return c.execTypesystem(ins, nextIP)

	default:
		raised = vmerr.New(vmerr.BadFrame, "unimplemented opcode %q", ins.Op.Name())
		return nextIP, false, raised
	}
}

// setExitFromRegisterZero sets the engine's exit code from register 0 of
// the current regset, if it holds an Integer; otherwise the exit code
// defaults to 0. HALT uses it, END uses it once it has popped the last
// frame, and the dispatch loop's step 5 uses it when the instruction
// pointer runs off the end of the bytecode.
func (c *CPU) setExitFromRegisterZero() {
	c.exitCode = 0
	v, err := c.current.At(0)
	if err != nil || v == nil {
		return
	}
	if iv, ok := asInteger(v); ok {
		c.exitCode = int(iv)
	}
}

// resolveOperand turns an IntOp into a concrete register index, performing
// the one level of indirection a by-reference operand requires: the
// register at Index must hold an Integer whose value is the true index.
func (c *CPU) resolveOperand(set *register.Set, op bytecode.IntOp) (int, *vmerr.Exception) {
	if !op.ByReference {
		return int(op.Index), nil
	}
	v, err := set.At(int(op.Index))
	if err != nil {
		return 0, vmerr.New(vmerr.OutOfRange, "%v", err)
	}
	iv, ok := asInteger(v)
	if !ok {
		return 0, vmerr.New(vmerr.TypeError, "by-reference operand at %d does not hold an Integer", op.Index)
	}
	return int(iv), nil
}
