package vm

import (
	"viua/internal/bytecode"
	"viua/internal/value"
	"viua/internal/vmerr"
)

// execTypesystem covers CLASS/PROTOTYPE/DERIVE/ATTACH/REGISTER/NEW/MSG.
// CLASS and PROTOTYPE are treated identically: the spec draws no runtime
// distinction between them beyond PROTOTYPE being CLASS's lower-level
// form, and both just construct and store a fresh Prototype.
func (c *CPU) execTypesystem(ins bytecode.Instruction, nextIP int) (int, bool, *vmerr.Exception) {
	switch ins.Op {
	case bytecode.CLASS, bytecode.PROTOTYPE:
		dest, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return nextIP, false, raised
		}
		return nextIP, false, setErr(c.current.Set(dest, value.NewPrototype(ins.Names[0])))

	case bytecode.DERIVE:
		v, _, raised := c.regVal(ins.Regs[0])
		if raised != nil {
			return nextIP, false, raised
		}
		proto, ok := asPrototype(v)
		if !ok {
			return nextIP, false, vmerr.New(vmerr.TypeError, "derive: register does not hold a Prototype")
		}
		proto.Derive(ins.Names[0])
		return nextIP, false, nil

	case bytecode.ATTACH:
		v, _, raised := c.regVal(ins.Regs[0])
		if raised != nil {
			return nextIP, false, raised
		}
		proto, ok := asPrototype(v)
		if !ok {
			return nextIP, false, vmerr.New(vmerr.TypeError, "attach: register does not hold a Prototype")
		}
		fn, method := ins.Names[0], ins.Names[1]
		proto.Attach(method, fn)
		return nextIP, false, nil

	case bytecode.REGISTER:
		v, _, raised := c.regVal(ins.Regs[0])
		if raised != nil {
			return nextIP, false, raised
		}
		proto, ok := asPrototype(v)
		if !ok {
			return nextIP, false, vmerr.New(vmerr.TypeError, "register: register does not hold a Prototype")
		}
		c.typesystem[proto.Name] = proto
		return nextIP, false, nil

	case bytecode.NEW:
		dest, raised := c.resolveOperand(c.current, ins.Regs[0])
		if raised != nil {
			return nextIP, false, raised
		}
		proto, ok := c.typesystem[ins.Names[0]]
		if !ok {
			return nextIP, false, vmerr.New(vmerr.BadFrame, "new: no such registered class %q", ins.Names[0])
		}
		return nextIP, false, setErr(c.current.Set(dest, value.NewObject(proto)))

	case bytecode.MSG:
		return c.execMsg(ins, nextIP)
	}
	return nextIP, false, vmerr.New(vmerr.BadFrame, "typesystem: unhandled opcode %q", ins.Op.Name())
}

// execMsg dispatches method by walking the receiver's prototype chain
// depth-first, left to right, then commits the pending frame as a call to
// whatever function that method resolved to — the receiver is expected to
// have been staged as argument 0 (via PARAM/PAREF) before MSG runs.
func (c *CPU) execMsg(ins bytecode.Instruction, nextIP int) (int, bool, *vmerr.Exception) {
	ret := ins.Regs[0]
	method := ins.Names[0]

	if c.frameNew == nil {
		return nextIP, false, vmerr.New(vmerr.BadFrame, "msg: no frame allocated (missing FRAME)")
	}
	receiver, err := c.frameNew.Args.At(0)
	if err != nil || receiver == nil {
		return nextIP, false, vmerr.New(vmerr.NullDeref, "msg: no receiver in argument 0")
	}

	fnName, raised := c.resolveMethod(receiver, method)
	if raised != nil {
		return nextIP, false, raised
	}

	if ret.ByReference {
		idx, raised := c.resolveOperand(c.current, bytecode.Reg(ret.Index))
		if raised != nil {
			return nextIP, false, raised
		}
		return c.callNamed(fnName, idx, true, nextIP)
	}
	return c.callNamed(fnName, int(ret.Index), false, nextIP)
}

func (c *CPU) resolveMethod(receiver value.Value, method string) (string, *vmerr.Exception) {
	visited := make(map[string]bool)
	var walk func(typeName string) (string, bool)
	walk = func(typeName string) (string, bool) {
		if visited[typeName] {
			return "", false
		}
		visited[typeName] = true
		proto, ok := c.typesystem[typeName]
		if !ok {
			return "", false
		}
		if fn, ok := proto.Methods[method]; ok {
			return fn, true
		}
		for _, base := range proto.Bases() {
			if fn, ok := walk(base); ok {
				return fn, true
			}
		}
		return "", false
	}

	if fn, ok := walk(receiver.TypeName()); ok {
		return fn, nil
	}
	if _, ok := c.foreignMethods[method]; ok {
		return method, nil
	}
	return "", vmerr.New(vmerr.BadFrame, "msg: no method %q found on %s", method, receiver.TypeName())
}
