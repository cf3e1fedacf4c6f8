// Package vm provides the deterministic guest VM instruction set architecture
package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// Instruction represents a guest VM instruction
type Instruction uint32

// Guest VM Instruction Set Architecture (ISA)
// Opcodes follow the Vybium numbering; Ecall is the host syscall gate.
const (
	// ========== Stack Manipulation ==========

	// Pop removes n elements from the stack
	Pop Instruction = 3

	// Push pushes a value onto the stack
	Push Instruction = 1

	// Divine pushes n words from the private input stream
	Divine Instruction = 9

	// Pick moves stack[i] to the top
	Pick Instruction = 17

	// Dup duplicates the element at stack[i] to the top
	Dup Instruction = 33

	// Swap swaps the top element with stack[i]
	Swap Instruction = 41

	// ========== Control Flow ==========

	// Halt terminates program execution
	Halt Instruction = 0

	// Nop does nothing (no operation)
	Nop Instruction = 8

	// Skiz skips next instruction if top of stack is zero
	Skiz Instruction = 2

	// Call calls a function at the given address
	Call Instruction = 49

	// Return returns from a function call
	Return Instruction = 16

	// Recurse jumps back to the start of the current function
	Recurse Instruction = 24

	// Assert asserts that the top of stack is 1, aborts if not
	Assert Instruction = 10

	// ========== Memory Access ==========

	// ReadMem reads n words from RAM at address on top of stack
	ReadMem Instruction = 57

	// WriteMem writes n words to RAM at address below them
	WriteMem Instruction = 11

	// ========== Base Field Arithmetic ==========

	// Add adds top two stack elements
	Add Instruction = 42

	// AddI adds immediate value to top of stack
	AddI Instruction = 65

	// Mul multiplies top two stack elements
	Mul Instruction = 50

	// Invert inverts top of stack (multiplicative inverse)
	Invert Instruction = 64

	// Eq checks equality of top two stack elements (1 if equal, 0 otherwise)
	Eq Instruction = 58

	// ========== Integer Arithmetic ==========

	// Split splits top element into high and low 32-bit parts
	Split Instruction = 4

	// Lt pushes 1 if second element < top element as integers
	Lt Instruction = 6

	// And performs bitwise AND on top two stack elements
	And Instruction = 14

	// Xor performs bitwise XOR on top two stack elements
	Xor Instruction = 22

	// DivMod computes quotient and remainder of division
	DivMod Instruction = 20

	// ========== I/O Operations ==========

	// ReadIo reads n words from the public input stream
	ReadIo Instruction = 73

	// WriteIo appends n words to the journal
	WriteIo Instruction = 19

	// ========== Host Interface ==========

	// Ecall invokes the syscall named by its argument
	Ecall Instruction = 96
)

// InstructionInfo provides metadata about an instruction
type InstructionInfo struct {
	Opcode      Instruction
	Name        string
	Description string
	Size        int  // Number of words (1 or 2)
	StackEffect int  // Net effect on stack depth (positive = push, negative = pop)
	HasArg      bool // Whether instruction takes an argument
}

// AllInstructions returns information about all guest VM instructions
var AllInstructions = map[Instruction]InstructionInfo{
	// Stack Manipulation
	Pop:    {Pop, "pop", "Remove n elements from stack", 2, -1, true},
	Push:   {Push, "push", "Push value onto stack", 2, 1, true},
	Divine: {Divine, "divine", "Push n private input words", 2, 1, true},
	Pick:   {Pick, "pick", "Move stack[i] to top", 2, 0, true},
	Dup:    {Dup, "dup", "Duplicate stack[i] to top", 2, 1, true},
	Swap:   {Swap, "swap", "Swap top with stack[i]", 2, 0, true},

	// Control Flow
	Halt:    {Halt, "halt", "Terminate execution", 1, 0, false},
	Nop:     {Nop, "nop", "No operation", 1, 0, false},
	Skiz:    {Skiz, "skiz", "Skip if zero", 1, -1, false},
	Call:    {Call, "call", "Call function", 2, 0, true},
	Return:  {Return, "return", "Return from function", 1, 0, false},
	Recurse: {Recurse, "recurse", "Recurse into current function", 1, 0, false},
	Assert:  {Assert, "assert", "Assert top is 1", 1, -1, false},

	// Memory Access
	ReadMem:  {ReadMem, "read_mem", "Read n words from RAM", 2, 0, true},
	WriteMem: {WriteMem, "write_mem", "Write n words to RAM", 2, -2, true},

	// Base Field Arithmetic
	Add:    {Add, "add", "Add top two elements", 1, -1, false},
	AddI:   {AddI, "addi", "Add immediate", 2, 0, true},
	Mul:    {Mul, "mul", "Multiply top two elements", 1, -1, false},
	Invert: {Invert, "invert", "Multiplicative inverse", 1, 0, false},
	Eq:     {Eq, "eq", "Check equality", 1, -1, false},

	// Integer Arithmetic
	Split:  {Split, "split", "Split into high/low 32-bit", 1, 1, false},
	Lt:     {Lt, "lt", "Less than (unsigned)", 1, -1, false},
	And:    {And, "and", "Bitwise AND", 1, -1, false},
	Xor:    {Xor, "xor", "Bitwise XOR", 1, -1, false},
	DivMod: {DivMod, "div_mod", "Division with remainder", 1, 0, false},

	// I/O
	ReadIo:  {ReadIo, "read_io", "Read public input words", 2, 1, true},
	WriteIo: {WriteIo, "write_io", "Append words to the journal", 2, -1, true},

	// Host Interface
	Ecall: {Ecall, "ecall", "Invoke a host syscall", 2, 0, true},
}

// instructionsByName indexes AllInstructions for the assembler
var instructionsByName = func() map[string]Instruction {
	m := make(map[string]Instruction, len(AllInstructions))
	for op, info := range AllInstructions {
		m[info.Name] = op
	}
	return m
}()

// LookupInstruction returns the instruction with the given mnemonic
func LookupInstruction(name string) (Instruction, bool) {
	op, ok := instructionsByName[name]
	return op, ok
}

// String returns the name of the instruction
func (i Instruction) String() string {
	if info, ok := AllInstructions[i]; ok {
		return info.Name
	}
	return fmt.Sprintf("unknown(%d)", i)
}

// Info returns metadata about the instruction
func (i Instruction) Info() (InstructionInfo, error) {
	info, ok := AllInstructions[i]
	if !ok {
		return InstructionInfo{}, fmt.Errorf("unknown instruction: %d", i)
	}
	return info, nil
}

// Size returns the number of words the instruction occupies
func (i Instruction) Size() int {
	info, err := i.Info()
	if err != nil {
		return 1
	}
	return info.Size
}

// StackEffect returns the net effect on stack depth
func (i Instruction) StackEffect() int {
	info, err := i.Info()
	if err != nil {
		return 0
	}
	return info.StackEffect
}

// HasArgument returns whether the instruction takes an argument
func (i Instruction) HasArgument() bool {
	info, err := i.Info()
	if err != nil {
		return false
	}
	return info.HasArg
}

// EncodedInstruction represents a fully-encoded instruction with its argument
type EncodedInstruction struct {
	Instruction Instruction
	Argument    *field.Element // nil if no argument
}

// NewEncodedInstruction creates a new encoded instruction
func NewEncodedInstruction(inst Instruction, arg *field.Element) (*EncodedInstruction, error) {
	info, err := inst.Info()
	if err != nil {
		return nil, err
	}

	if info.HasArg && arg == nil {
		return nil, fmt.Errorf("instruction %s requires an argument", inst.String())
	}

	if !info.HasArg && arg != nil {
		return nil, fmt.Errorf("instruction %s does not take an argument", inst.String())
	}

	return &EncodedInstruction{
		Instruction: inst,
		Argument:    arg,
	}, nil
}

// MustInstruction is NewEncodedInstruction for statically known programs.
func MustInstruction(inst Instruction, arg ...uint64) *EncodedInstruction {
	var a *field.Element
	if len(arg) > 0 {
		v := field.New(arg[0])
		a = &v
	}
	ei, err := NewEncodedInstruction(inst, a)
	if err != nil {
		panic(err)
	}
	return ei
}

// Words returns the instruction as field elements for program memory
func (ei *EncodedInstruction) Words() []field.Element {
	if ei.Instruction.Size() == 1 {
		return []field.Element{field.New(uint64(ei.Instruction))}
	}
	if ei.Argument == nil {
		return []field.Element{field.New(uint64(ei.Instruction)), field.Zero}
	}
	return []field.Element{field.New(uint64(ei.Instruction)), *ei.Argument}
}

// Arg returns the argument as an integer, zero when absent
func (ei *EncodedInstruction) Arg() uint64 {
	if ei.Argument == nil {
		return 0
	}
	return ei.Argument.Value()
}

// String renders the instruction in assembler syntax
func (ei *EncodedInstruction) String() string {
	if ei.Argument == nil {
		return ei.Instruction.String()
	}
	return fmt.Sprintf("%s %d", ei.Instruction, ei.Argument.Value())
}

// DecodeInstruction decodes an instruction from field elements
func DecodeInstruction(words []field.Element, offset int) (*EncodedInstruction, error) {
	if offset < 0 || offset >= len(words) {
		return nil, fmt.Errorf("offset %d out of bounds", offset)
	}

	raw := words[offset].Value()
	opcode := Instruction(raw)

	info, err := opcode.Info()
	if err != nil || raw > uint64(^uint32(0)) {
		return nil, fmt.Errorf("unknown opcode: %d", words[offset].Value())
	}

	var arg *field.Element
	if info.HasArg {
		if offset+1 >= len(words) {
			return nil, fmt.Errorf("instruction %s requires argument but none found", opcode.String())
		}
		v := words[offset+1]
		arg = &v
	}

	return NewEncodedInstruction(opcode, arg)
}
