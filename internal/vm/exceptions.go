package vm

import (
	"viua/internal/bytecode"
	"viua/internal/register"
	"viua/internal/vmerr"
)

// execThrow moves regset[A] into the engine's thrown slot and returns the
// *vmerr.Exception that drives unwind. The slot is flagged Keep, mirroring
// the original's "don't free through frame teardown" contract, and then
// dropped, which resets the slot and its flags; c.thrown holds its own
// reference to the value independent of the register it came from.
func (c *CPU) execThrow(ins bytecode.Instruction) *vmerr.Exception {
	idx, raised := c.resolveOperand(c.current, ins.Regs[0])
	if raised != nil {
		return raised
	}
	v, err := c.current.At(idx)
	if err != nil {
		return vmerr.New(vmerr.OutOfRange, "%v", err)
	}
	if v == nil {
		return vmerr.New(vmerr.NullDeref, "throw: register holds no value")
	}
	_ = c.current.Flag(idx, register.Keep)
	c.thrown = v
	_ = c.current.Drop(idx)
	return vmerr.Named(v.TypeName(), v.Str())
}

// execCatch registers a catcher in the pending try-frame: a thrown value
// whose type name (or inheritance chain) matches typeName resumes
// execution at blockName.
func (c *CPU) execCatch(ins bytecode.Instruction) *vmerr.Exception {
	if c.tryFrameNew == nil {
		return vmerr.New(vmerr.BadFrame, "catch: no pending try-frame (missing TRYFRAME)")
	}
	typeName, blockName := ins.Names[0], ins.Names[1]
	addr, ok := c.blocks[blockName]
	if !ok {
		return vmerr.New(vmerr.BadFrame, "catch: no such block %q", blockName)
	}
	c.tryFrameNew.Catchers[typeName] = register.Catcher{TypeName: typeName, BlockName: blockName, CodePtr: addr}
	return nil
}

// execPull moves the engine's caught slot into register A.
func (c *CPU) execPull(ins bytecode.Instruction) *vmerr.Exception {
	idx, raised := c.resolveOperand(c.current, ins.Regs[0])
	if raised != nil {
		return raised
	}
	v := c.caught
	c.caught = nil
	if v == nil {
		return vmerr.New(vmerr.NullDeref, "pull: no caught value")
	}
	return setErr(c.current.Set(idx, v))
}

// execTryframe allocates a pending try-frame scoped to the current call
// depth, ready for CATCH to populate and TRY to commit.
func (c *CPU) execTryframe() *vmerr.Exception {
	c.tryFrameNew = register.NewTryFrame(len(c.frames))
	return nil
}

// execTry commits the pending try-frame, recording where LEAVE should
// resume, and jumps into its named block.
func (c *CPU) execTry(ins bytecode.Instruction, nextIP int) (int, bool, *vmerr.Exception) {
	if c.tryFrameNew == nil {
		return nextIP, false, vmerr.New(vmerr.BadFrame, "try: no pending try-frame (missing TRYFRAME)")
	}
	tf := c.tryFrameNew
	c.tryFrameNew = nil
	tf.BlockName = ins.Names[0]
	tf.ReturnAddress = nextIP
	c.tryframes = append(c.tryframes, tf)

	addr, ok := c.blocks[tf.BlockName]
	if !ok {
		return nextIP, false, vmerr.New(vmerr.BadFrame, "try: no such block %q", tf.BlockName)
	}
	return addr, false, nil
}

// execLeave pops the innermost try-frame and resumes execution right after
// the TRY that committed it.
func (c *CPU) execLeave() (int, bool, *vmerr.Exception) {
	if len(c.tryframes) == 0 {
		return 0, false, vmerr.New(vmerr.BadFrame, "leave: no active try-frame")
	}
	tf := c.tryframes[len(c.tryframes)-1]
	c.tryframes = c.tryframes[:len(c.tryframes)-1]
	return tf.ReturnAddress, false, nil
}

// unwind walks the try-frame stack from the innermost outward looking for
// a catcher matching exc's type name or inheritance chain, popping each
// try-frame that has none. On a match, it trims the call stack back down to
// the depth the matching try-frame was scoped to, deposits the thrown value
// into the caught slot, and reports the block address execution should
// resume at. The matching try-frame stays on the stack with its catchers
// cleared, so the catcher block's LEAVE pops it and resumes after the TRY,
// while a throw from inside the catcher block passes it by.
func (c *CPU) unwind(exc *vmerr.Exception) (handled bool, resumeAt int) {
	// "Exception" is the universal catchable root: every thrown value,
	// however it was constructed, is matched by a catcher registered for
	// it even when its own TypeName and declared bases don't mention it.
	chain := []string{"Exception"}
	if c.thrown != nil {
		chain = append(c.thrown.InheritanceChain(), "Exception")
	}
	for len(c.tryframes) > 0 {
		tf := c.tryframes[len(c.tryframes)-1]

		catcher, ok := tf.Match(exc.TypeName, chain)
		if !ok {
			c.tryframes = c.tryframes[:len(c.tryframes)-1]
			continue
		}
		tf.Catchers = nil

		for len(c.frames) > tf.AssociatedFrame {
			f := c.frames[len(c.frames)-1]
			c.frames = c.frames[:len(c.frames)-1]
			f.Teardown()
		}
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

		c.caught = c.thrown
		c.thrown = nil

		return true, catcher.CodePtr
	}
	return false, 0
}
