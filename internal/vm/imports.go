package vm

import (
	"viua/internal/bytecode"
	"viua/internal/nativemod"
	"viua/internal/vmerr"
)

// execImport loads a native module by name and registers its exports as
// foreign functions/methods qualified as "module.name" (the form CALL's
// own call-target names use, e.g. "mathlib.add"), so CALL/MSG reach them
// the same way they reach bytecode-defined callables.
func (c *CPU) execImport(ins bytecode.Instruction) *vmerr.Exception {
	name := ins.Names[0]
	if c.importedModules[name] {
		return nil
	}

	mod, err := c.modules.Load(name)
	if err != nil {
		return vmerr.New(vmerr.BadFrame, "import: %v", err)
	}

	for fnName, fn := range mod.Functions {
		c.foreignFunctions[name+"."+fnName] = adaptExport(fn)
	}
	for methodName, fn := range mod.Methods {
		c.foreignMethods[name+"."+methodName] = adaptExport(fn)
	}
	c.importedModules[name] = true
	return nil
}

func adaptExport(fn nativemod.Export) ForeignFunc {
	return ForeignFunc(fn)
}
