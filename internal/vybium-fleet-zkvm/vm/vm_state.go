package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// Default execution limits
const (
	DefaultMaxCycles     = 1 << 20
	DefaultCheckInterval = 1024

	// MaxStackDepth bounds the operational stack
	MaxStackDepth = 1 << 12
	// MaxJumpStackDepth bounds call nesting
	MaxJumpStackDepth = 1 << 10
	// MaxBufferBytes bounds the total size of syscall buffers
	MaxBufferBytes = 1 << 22
)

// ModuleRef names a linked domain logic module
type ModuleRef struct {
	Name    string
	Version uint32
}

// String renders the reference as name@version
func (r ModuleRef) String() string {
	return fmt.Sprintf("%s@%d", r.Name, r.Version)
}

// Module is a pure, deterministic function linked into a guest image.
// An error from Apply aborts the guest.
type Module interface {
	Ref() ModuleRef
	Apply(input []byte) ([]byte, error)
}

// Environment is everything a run may observe. It is fixed by the host
// before execution starts and never changes during the run.
type Environment struct {
	Public  [][]byte // Public input frames
	Private [][]byte // Private input frames
	Modules []Module // Linked modules in image slot order

	MaxCycles     uint64
	CheckInterval uint64

	// TraceKey blinds the trace leaves. It does not affect execution.
	TraceKey [32]byte
}

// VMState represents the complete state of the guest VM
type VMState struct {
	// Program memory (read-only)
	Program *Program

	// Input streams
	PublicInput   [][]byte
	InputPointer  int
	SecretInput   [][]byte
	SecretPointer int

	// Journal (append-only)
	Journal []byte

	// Random Access Memory
	RAM map[uint64]field.Element

	// Operational Stack (last element is st0)
	Stack []field.Element

	// Jump Stack (for call/return)
	JumpStack []VMJumpStackEntry

	// Syscall byte buffers, addressed by handle
	Buffers     [][]byte
	bufferBytes int

	// Linked modules
	Modules []Module

	// Execution state
	CycleCount         uint64
	InstructionPointer int
	Halting            bool
	ExitCode           uint64

	maxCycles     uint64
	checkInterval uint64
	recorder      *TraceRecorder
}

// VMJumpStackEntry represents an entry on the VM's jump stack
type VMJumpStackEntry struct {
	Origin      int // Return address
	Destination int // Function entry point
}

// Session is the outcome of a completed run
type Session struct {
	Journal       []byte
	ExitCode      uint64
	Cycles        uint64
	PaddedHeight  int
	ProgramDigest field.Element
	Trace         *TraceCommitment
}

// AbortError is the Aborted terminal state. No journal survives it.
type AbortError struct {
	Reason string
	Code   uint64
	Cycle  uint64
	IP     int
	Cause  error
}

func (e *AbortError) Error() string {
	msg := fmt.Sprintf("guest aborted at cycle %d, IP %d: %s", e.Cycle, e.IP, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *AbortError) Unwrap() error {
	return e.Cause
}

// ErrCycleLimit is the cause of an abort on an exhausted cycle budget
var ErrCycleLimit = errors.New("cycle limit exceeded")

// guestFault marks an explicit abort syscall
type guestFault struct {
	code uint64
}

func (f *guestFault) Error() string {
	return fmt.Sprintf("guest requested abort with code %d", f.code)
}

// NewVMState creates a VM ready to run program in env
func NewVMState(program *Program, env Environment) *VMState {
	maxCycles := env.MaxCycles
	if maxCycles == 0 {
		maxCycles = DefaultMaxCycles
	}
	checkInterval := env.CheckInterval
	if checkInterval == 0 {
		checkInterval = DefaultCheckInterval
	}

	return &VMState{
		Program:       program,
		PublicInput:   env.Public,
		SecretInput:   env.Private,
		Journal:       make([]byte, 0, 64),
		RAM:           make(map[uint64]field.Element),
		Stack:         make([]field.Element, 0, 16),
		JumpStack:     make([]VMJumpStackEntry, 0),
		Modules:       env.Modules,
		maxCycles:     maxCycles,
		checkInterval: checkInterval,
		recorder:      NewTraceRecorder(env.TraceKey, program),
	}
}

// Run executes the program until halt, abort or cancellation. Guest
// failures are returned as *AbortError; cancellation returns ctx.Err().
func (vm *VMState) Run(ctx context.Context) (*Session, error) {
	if err := ValidateProgram(vm.Program); err != nil {
		return nil, vm.abort("invalid program", err)
	}

	for !vm.Halting {
		if vm.CycleCount%vm.checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if vm.CycleCount >= vm.maxCycles {
			return nil, vm.abort(fmt.Sprintf("exceeded %d cycles", vm.maxCycles), ErrCycleLimit)
		}
		if err := vm.Step(); err != nil {
			var fault *guestFault
			if errors.As(err, &fault) {
				ab := vm.abort("abort syscall", err)
				ab.Code = fault.code
				return nil, ab
			}
			return nil, vm.abort("execution failed", err)
		}
	}

	trace, err := vm.recorder.Commit()
	if err != nil {
		return nil, fmt.Errorf("commit trace: %w", err)
	}

	return &Session{
		Journal:       append([]byte(nil), vm.Journal...),
		ExitCode:      vm.ExitCode,
		Cycles:        vm.CycleCount,
		PaddedHeight:  trace.PaddedHeight,
		ProgramDigest: vm.recorder.programDigest,
		Trace:         trace,
	}, nil
}

func (vm *VMState) abort(reason string, cause error) *AbortError {
	vm.Journal = nil
	return &AbortError{
		Reason: reason,
		Cycle:  vm.CycleCount,
		IP:     vm.InstructionPointer,
		Cause:  cause,
	}
}

// Step executes one instruction
func (vm *VMState) Step() error {
	if vm.Halting {
		return fmt.Errorf("machine already halted")
	}

	inst, err := vm.CurrentInstruction()
	if err != nil {
		return fmt.Errorf("failed to fetch instruction: %w", err)
	}

	vm.recorder.Record(vm, inst)

	if err := vm.ExecuteInstruction(inst); err != nil {
		return fmt.Errorf("failed to execute %s: %w", inst.Instruction.String(), err)
	}

	vm.CycleCount++
	return nil
}

// CurrentInstruction fetches the current instruction
func (vm *VMState) CurrentInstruction() (*EncodedInstruction, error) {
	if vm.InstructionPointer < 0 || vm.InstructionPointer >= vm.Program.Length {
		return nil, fmt.Errorf("instruction pointer out of bounds: %d", vm.InstructionPointer)
	}
	return vm.Program.At(vm.InstructionPointer)
}

// ExecuteInstruction dispatches to the appropriate instruction handler
func (vm *VMState) ExecuteInstruction(inst *EncodedInstruction) error {
	switch inst.Instruction {
	// Stack Manipulation
	case Pop:
		return vm.execPop(inst)
	case Push:
		return vm.execPush(inst)
	case Divine:
		return vm.execDivine(inst)
	case Pick:
		return vm.execPick(inst)
	case Dup:
		return vm.execDup(inst)
	case Swap:
		return vm.execSwap(inst)

	// Control Flow
	case Halt:
		return vm.execHalt()
	case Nop:
		return vm.execNop(inst)
	case Skiz:
		return vm.execSkiz(inst)
	case Call:
		return vm.execCall(inst)
	case Return:
		return vm.execReturn()
	case Recurse:
		return vm.execRecurse()
	case Assert:
		return vm.execAssert(inst)

	// Memory Access
	case ReadMem:
		return vm.execReadMem(inst)
	case WriteMem:
		return vm.execWriteMem(inst)

	// Base Field Arithmetic
	case Add:
		return vm.execAdd(inst)
	case AddI:
		return vm.execAddI(inst)
	case Mul:
		return vm.execMul(inst)
	case Invert:
		return vm.execInvert(inst)
	case Eq:
		return vm.execEq(inst)

	// Integer Arithmetic
	case Split:
		return vm.execSplit(inst)
	case Lt:
		return vm.execLt(inst)
	case And:
		return vm.execAnd(inst)
	case Xor:
		return vm.execXor(inst)
	case DivMod:
		return vm.execDivMod(inst)

	// I/O
	case ReadIo:
		return vm.execReadIo(inst)
	case WriteIo:
		return vm.execWriteIo(inst)

	// Host Interface
	case Ecall:
		return vm.execEcall(inst)

	default:
		return fmt.Errorf("unknown instruction: %d", inst.Instruction)
	}
}

// Stack access helpers

// StackPush pushes value onto the stack
func (vm *VMState) StackPush(value field.Element) error {
	if len(vm.Stack) >= MaxStackDepth {
		return fmt.Errorf("stack overflow: depth %d", len(vm.Stack))
	}
	vm.Stack = append(vm.Stack, value)
	return nil
}

// StackPop pops the top of the stack
func (vm *VMState) StackPop() (field.Element, error) {
	if len(vm.Stack) == 0 {
		return field.Zero, fmt.Errorf("stack underflow")
	}
	value := vm.Stack[len(vm.Stack)-1]
	vm.Stack = vm.Stack[:len(vm.Stack)-1]
	return value, nil
}

// StackPeek returns the element at depth (0 = top)
func (vm *VMState) StackPeek(depth int) (field.Element, error) {
	if depth < 0 || depth >= len(vm.Stack) {
		return field.Zero, fmt.Errorf("stack peek out of bounds: depth %d, size %d", depth, len(vm.Stack))
	}
	return vm.Stack[len(vm.Stack)-1-depth], nil
}

// popInt pops the top of the stack as an integer no larger than limit
func (vm *VMState) popInt(what string, limit uint64) (uint64, error) {
	v, err := vm.StackPop()
	if err != nil {
		return 0, err
	}
	if v.Value() > limit {
		return 0, fmt.Errorf("%s %d exceeds %d", what, v.Value(), limit)
	}
	return v.Value(), nil
}

// IncrementIP advances the instruction pointer past inst
func (vm *VMState) IncrementIP(inst *EncodedInstruction) error {
	vm.InstructionPointer += inst.Instruction.Size()
	return nil
}
