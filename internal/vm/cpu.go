// Package vm implements Viua's execution engine: the dispatch loop and the
// per-opcode handlers that fetch, decode and execute bytecode until HALT,
// an empty call stack, or an unrecoverable exception.
package vm

import (
	"io"
	"os"

	"github.com/google/uuid"

	"viua/internal/nativemod"
	"viua/internal/register"
	"viua/internal/value"
)

const (
	// GlobalRegisterCapacity is the default size of the global register
	// set.
	GlobalRegisterCapacity = 256
	// MaxStackSize is the hard limit on call-frame depth; exceeding it
	// raises StackOverflow.
	MaxStackSize = 8192
)

// RegsetKind names which of the four register sets RESS has selected as
// current for the executing frame.
type RegsetKind int

const (
	RegsetGlobal RegsetKind = iota
	RegsetLocal
	RegsetStatic
	RegsetTemp
)

// ForeignFunc is the Go-side shape of a native-module export: it receives
// the active call frame (for its arguments) plus the static and global
// register sets, and is expected to deposit its return value into
// frame.Regset register 0.
type ForeignFunc func(frame *register.Frame, static, global *register.Set)

// Options configures a CPU instance. Constructed explicitly and threaded
// through at construction time rather than read from process-global state,
// per the engine's own anti-singleton design note.
type Options struct {
	ModuleSearchPath []string
	Verbose          bool
	Debug            bool
	Scream           bool

	// Out is where PRINT/ECHO write. Defaults to os.Stdout if nil, so
	// tests can redirect output without touching the real terminal.
	Out io.Writer
}

// CPU is Viua's execution engine state, per the spec's CPU state model.
type CPU struct {
	opts Options

	code      []byte
	functions map[string]int
	blocks    map[string]int

	ip int

	global  *register.Set
	current *register.Set
	currentKind RegsetKind

	staticRegs          map[string]*register.Set
	currentFunctionName string

	tmp value.Value

	typesystem map[string]*value.Prototype

	frames    []*register.Frame
	tryframes []*register.TryFrame

	frameNew    *register.Frame
	tryFrameNew *register.TryFrame

	// closureBind accumulates the registers CLBIND has staged, consumed
	// by the next CLOSURE instruction.
	closureBind []value.Value

	thrown value.Value
	caught value.Value

	foreignFunctions map[string]ForeignFunc
	foreignMethods   map[string]ForeignFunc
	modules          *nativemod.Loader
	importedModules  map[string]bool

	instructionCounter uint64

	runID uuid.UUID

	exitCode      int
	exitException string
	exitMessage   string
}

// New constructs a CPU ready to execute code, with functions/blocks giving
// the byte offset (within code) of every named function/block.
func New(code []byte, functions, blocks map[string]int, opts Options) *CPU {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	searchPath := opts.ModuleSearchPath
	if len(searchPath) == 0 {
		searchPath = nativemod.DefaultSearchPath()
	}
	return &CPU{
		opts:             opts,
		code:             code,
		functions:        functions,
		blocks:           blocks,
		global:           register.NewSet(GlobalRegisterCapacity),
		staticRegs:       make(map[string]*register.Set),
		typesystem:       make(map[string]*value.Prototype),
		foreignFunctions: make(map[string]ForeignFunc),
		foreignMethods:   make(map[string]ForeignFunc),
		modules:          nativemod.NewLoader(searchPath),
		importedModules:  make(map[string]bool),
		runID:            uuid.New(),
	}
}

// RunID is the random identifier New generates for this CPU. The engine
// itself does not write it to any output.
func (c *CPU) RunID() uuid.UUID { return c.runID }

// RegisterForeignFunction installs a native-module export under name,
// reachable from bytecode via CALL/IMPORT-qualified names.
func (c *CPU) RegisterForeignFunction(name string, fn ForeignFunc) {
	c.foreignFunctions[name] = fn
}

func (c *CPU) RegisterForeignMethod(name string, fn ForeignFunc) {
	c.foreignMethods[name] = fn
}

// ExitState reports the engine's termination tuple: (code, exception type
// name, message). A zero code with an empty type name means normal exit.
func (c *CPU) ExitState() (code int, exceptionType, message string) {
	return c.exitCode, c.exitException, c.exitMessage
}

// InstructionCount returns how many instructions tick has executed.
func (c *CPU) InstructionCount() uint64 { return c.instructionCounter }
