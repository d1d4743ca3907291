package vm

import (
	"viua/internal/bytecode"
	"viua/internal/register"
	"viua/internal/value"
	"viua/internal/vmerr"
)

// execCallProtocol covers FRAME/PARAM/PAREF/PAPTR/CALL/ARG/ARGC: staging a
// pending frame, filling its argument set, committing the call, and the
// callee-side opcodes that read back out of it.
//
// Across this family, both int_ops of FRAME (the arg count and local count)
// and the first int_op of PARAM/PAREF/PAPTR/ARG (the argument-slot index)
// are literals carried directly in the operand's Index field, not registers
// to dereference — only the second operand of PARAM/PAREF/PAPTR/ARG (the
// register actually holding or receiving a value) goes through the uniform
// by-reference resolution step.
func (c *CPU) execCallProtocol(ins bytecode.Instruction, nextIP int) (int, bool, *vmerr.Exception) {
	switch ins.Op {
	case bytecode.FRAME:
		argc := int(ins.Regs[0].Index)
		localc := int(ins.Regs[1].Index)
		c.frameNew = register.NewFrame(argc, localc)
		return nextIP, false, nil

	case bytecode.PARAM:
		if c.frameNew == nil {
			return nextIP, false, vmerr.New(vmerr.BadFrame, "param: no frame allocated (missing FRAME)")
		}
		idx := int(ins.Regs[0].Index)
		v, _, raised := c.regVal(ins.Regs[1])
		if raised != nil {
			return nextIP, false, raised
		}
		var stored value.Value
		if v != nil {
			stored = v.Copy()
		}
		return nextIP, false, setErr(c.frameNew.Args.Set(idx, stored))

	case bytecode.PAREF:
		if c.frameNew == nil {
			return nextIP, false, vmerr.New(vmerr.BadFrame, "paref: no frame allocated (missing FRAME)")
		}
		idx := int(ins.Regs[0].Index)
		src, raised := c.resolveOperand(c.current, ins.Regs[1])
		if raised != nil {
			return nextIP, false, raised
		}
		cell, err := c.current.Cell(src)
		if err != nil {
			return nextIP, false, vmerr.New(vmerr.OutOfRange, "%v", err)
		}
		if err := c.frameNew.Args.Set(idx, value.Reference{Target: cell}); err != nil {
			return nextIP, false, vmerr.New(vmerr.OutOfRange, "%v", err)
		}
		return nextIP, false, setErr(c.frameNew.Args.Flag(idx, register.Reference))

	case bytecode.PAPTR:
		if c.frameNew == nil {
			return nextIP, false, vmerr.New(vmerr.BadFrame, "paptr: no frame allocated (missing FRAME)")
		}
		idx := int(ins.Regs[0].Index)
		src, raised := c.resolveOperand(c.current, ins.Regs[1])
		if raised != nil {
			return nextIP, false, raised
		}
		v, err := c.current.At(src)
		if err != nil {
			return nextIP, false, vmerr.New(vmerr.OutOfRange, "%v", err)
		}
		if ref, ok := asReference(v); ok {
			return nextIP, false, setErr(c.frameNew.Args.Set(idx, ref))
		}
		cell, err := c.current.Cell(src)
		if err != nil {
			return nextIP, false, vmerr.New(vmerr.OutOfRange, "%v", err)
		}
		if err := c.frameNew.Args.Set(idx, value.Reference{Target: cell}); err != nil {
			return nextIP, false, vmerr.New(vmerr.OutOfRange, "%v", err)
		}
		return nextIP, false, setErr(c.frameNew.Args.Flag(idx, register.Reference))

	case bytecode.CALL:
		ret := ins.Regs[0]
		name := ins.Names[0]
		if ret.ByReference {
			idx, raised := c.resolveOperand(c.current, bytecode.Reg(ret.Index))
			if raised != nil {
				return nextIP, false, raised
			}
			return c.callNamed(name, idx, true, nextIP)
		}
		return c.callNamed(name, int(ret.Index), false, nextIP)

	case bytecode.ARG:
		if len(c.frames) == 0 {
			return nextIP, false, vmerr.New(vmerr.BadFrame, "arg: no active frame")
		}
		frame := c.frames[len(c.frames)-1]
		idx := int(ins.Regs[0].Index)
		dest, raised := c.resolveOperand(c.current, ins.Regs[1])
		if raised != nil {
			return nextIP, false, raised
		}
		v, err := frame.Args.At(idx)
		if err != nil {
			return nextIP, false, vmerr.New(vmerr.OutOfRange, "%v", err)
		}
		return nextIP, false, setErr(c.current.Set(dest, v))

	case bytecode.ARGC:
		dest, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return nextIP, false, raised
		}
		count := 0
		if len(c.frames) > 0 {
			count = c.frames[len(c.frames)-1].Args.Size()
		}
		return nextIP, false, setErr(c.current.Set(dest, value.Integer{V: int64(count)}))
	}
	return nextIP, false, vmerr.New(vmerr.BadFrame, "call protocol: unhandled opcode %q", ins.Op.Name())
}

// callNamed commits c.frameNew as a call to name, depositing its return
// value (once the callee reaches END) into placeReg — resolved indirectly
// first if resolveReturn is set, exactly like any other by-reference output
// operand.
func (c *CPU) callNamed(name string, placeReg int, resolveReturn bool, nextIP int) (int, bool, *vmerr.Exception) {
	frame := c.frameNew
	if frame == nil {
		return nextIP, false, vmerr.New(vmerr.BadFrame, "call: no frame allocated (missing FRAME)")
	}
	c.frameNew = nil
	frame.FunctionName = name
	frame.ReturnAddress = nextIP
	frame.PlaceReturnValueIn = placeReg
	frame.ResolveReturnValueRegister = resolveReturn

	if fn, ok := c.foreignFunctions[name]; ok {
		fn(frame, c.staticSetFor(name), c.global)
		retVal, _ := frame.Regset.At(0)
		frame.Teardown()
		if retVal != nil {
			if err := c.depositReturn(frame, retVal); err != nil {
				return nextIP, false, err
			}
		}
		return nextIP, false, nil
	}

	// A name resolveMethod handed back straight from c.foreignMethods (the
	// pure-native fallback MSG takes when no registered prototype attaches
	// the method) dispatches the same way a foreign function call does.
	if fn, ok := c.foreignMethods[name]; ok {
		fn(frame, c.staticSetFor(name), c.global)
		retVal, _ := frame.Regset.At(0)
		frame.Teardown()
		if retVal != nil {
			if err := c.depositReturn(frame, retVal); err != nil {
				return nextIP, false, err
			}
		}
		return nextIP, false, nil
	}

	addr, ok := c.functions[name]
	if !ok {
		return nextIP, false, vmerr.New(vmerr.BadFrame, "call: no such function %q", name)
	}
	if len(c.frames) >= MaxStackSize {
		return nextIP, false, vmerr.New(vmerr.StackOverflow, "call: stack depth exceeded %d", MaxStackSize)
	}

	c.frames = append(c.frames, frame)
	c.current = frame.Regset
	c.currentKind = RegsetLocal
	c.currentFunctionName = name

	return addr, false, nil
}

func (c *CPU) depositReturn(frame *register.Frame, retVal value.Value) *vmerr.Exception {
	target := frame.PlaceReturnValueIn
	if frame.ResolveReturnValueRegister {
		if cellVal, err := c.current.At(target); err == nil {
			if iv, ok := asInteger(cellVal); ok {
				target = int(iv)
			}
		}
	}
	return setErr(c.current.Set(target, retVal))
}

// execEnd pops the active frame, resumes at its return address, and
// deposits its local register 0 into the caller's regset at the place the
// matching CALL requested.
func (c *CPU) execEnd() (int, bool, *vmerr.Exception) {
	if len(c.frames) == 0 {
		return 0, false, vmerr.New(vmerr.BadFrame, "end: no frame to pop")
	}
	frame := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]

	retVal, _ := frame.Regset.At(0)
	returnAddress := frame.ReturnAddress
	frame.Teardown()

	if len(c.frames) == 0 {
		c.current = c.global
		c.currentKind = RegsetGlobal
		c.currentFunctionName = ""
	} else {
		parent := c.frames[len(c.frames)-1]
		c.current = parent.Regset
		c.currentKind = RegsetLocal
		c.currentFunctionName = parent.FunctionName
	}

	if retVal == nil {
		if frame.PlaceReturnValueIn != 0 {
			return returnAddress, false, vmerr.New(vmerr.BadFrame, "end: return value requested by frame but function did not set return register")
		}
	} else if raised := c.depositReturn(frame, retVal); raised != nil {
		return returnAddress, false, raised
	}
	if len(c.frames) == 0 {
		// The call stack is empty: the engine stops, taking its exit code
		// from register 0 of the now-current global regset.
		c.setExitFromRegisterZero()
		return returnAddress, true, nil
	}
	return returnAddress, false, nil
}
