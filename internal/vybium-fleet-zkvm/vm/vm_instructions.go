package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
)

// maxBatch bounds the word count of pop, divine, memory and I/O instructions
const maxBatch = 16

const u32Max = uint64(^uint32(0))

func batchCount(what string, inst *EncodedInstruction) (int, error) {
	n := inst.Arg()
	if n < 1 || n > maxBatch {
		return 0, fmt.Errorf("invalid %s count: %d (must be 1-%d)", what, n, maxBatch)
	}
	return int(n), nil
}

func stackIndex(what string, inst *EncodedInstruction, depth int) (int, error) {
	i := inst.Arg()
	if i >= uint64(depth) {
		return 0, fmt.Errorf("invalid %s index: %d (stack size %d)", what, i, depth)
	}
	return int(i), nil
}

// ============================================================================
// Stack Manipulation Instructions
// ============================================================================

// execPop removes n elements from the stack
func (vm *VMState) execPop(inst *EncodedInstruction) error {
	n, err := batchCount("pop", inst)
	if err != nil {
		return err
	}
	if len(vm.Stack) < n {
		return fmt.Errorf("stack underflow: cannot pop %d elements from stack of size %d", n, len(vm.Stack))
	}
	vm.Stack = vm.Stack[:len(vm.Stack)-n]
	return vm.IncrementIP(inst)
}

// execPush pushes a value onto the stack
func (vm *VMState) execPush(inst *EncodedInstruction) error {
	if err := vm.StackPush(*inst.Argument); err != nil {
		return err
	}
	return vm.IncrementIP(inst)
}

// execDivine pushes n words from the private input stream
func (vm *VMState) execDivine(inst *EncodedInstruction) error {
	n, err := batchCount("divine", inst)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		value, err := nextWord(vm.SecretInput, &vm.SecretPointer, "private")
		if err != nil {
			return err
		}
		if err := vm.StackPush(value); err != nil {
			return err
		}
	}
	return vm.IncrementIP(inst)
}

// execPick moves stack[i] to the top
func (vm *VMState) execPick(inst *EncodedInstruction) error {
	i, err := stackIndex("pick", inst, len(vm.Stack))
	if err != nil {
		return err
	}
	pos := len(vm.Stack) - 1 - i
	value := vm.Stack[pos]
	copy(vm.Stack[pos:], vm.Stack[pos+1:])
	vm.Stack[len(vm.Stack)-1] = value
	return vm.IncrementIP(inst)
}

// execDup duplicates stack[i] to top
func (vm *VMState) execDup(inst *EncodedInstruction) error {
	i, err := stackIndex("dup", inst, len(vm.Stack))
	if err != nil {
		return err
	}
	value, err := vm.StackPeek(i)
	if err != nil {
		return err
	}
	if err := vm.StackPush(value); err != nil {
		return err
	}
	return vm.IncrementIP(inst)
}

// execSwap swaps top with stack[i]
func (vm *VMState) execSwap(inst *EncodedInstruction) error {
	i, err := stackIndex("swap", inst, len(vm.Stack))
	if err != nil {
		return err
	}
	if i == 0 {
		return fmt.Errorf("swap 0 is not allowed")
	}
	top := len(vm.Stack) - 1
	vm.Stack[top], vm.Stack[top-i] = vm.Stack[top-i], vm.Stack[top]
	return vm.IncrementIP(inst)
}

// ============================================================================
// Control Flow Instructions
// ============================================================================

// execHalt terminates execution
func (vm *VMState) execHalt() error {
	vm.Halting = true
	// Don't increment IP - we're done
	return nil
}

// execNop does nothing
func (vm *VMState) execNop(inst *EncodedInstruction) error {
	return vm.IncrementIP(inst)
}

// execSkiz skips next instruction if top of stack is zero
func (vm *VMState) execSkiz(inst *EncodedInstruction) error {
	st0, err := vm.StackPop()
	if err != nil {
		return err
	}
	if err := vm.IncrementIP(inst); err != nil {
		return err
	}
	if st0.IsZero() {
		next, err := vm.CurrentInstruction()
		if err != nil {
			return err
		}
		vm.InstructionPointer += next.Instruction.Size()
	}
	return nil
}

// execCall calls a function
func (vm *VMState) execCall(inst *EncodedInstruction) error {
	if len(vm.JumpStack) >= MaxJumpStackDepth {
		return fmt.Errorf("jump stack overflow: depth %d", len(vm.JumpStack))
	}
	target := inst.Arg()
	if target >= uint64(vm.Program.Length) {
		return fmt.Errorf("call target %d out of bounds", target)
	}
	vm.JumpStack = append(vm.JumpStack, VMJumpStackEntry{
		Origin:      vm.InstructionPointer + inst.Instruction.Size(),
		Destination: int(target),
	})
	vm.InstructionPointer = int(target)
	return nil
}

// execReturn returns from a function call
func (vm *VMState) execReturn() error {
	if len(vm.JumpStack) == 0 {
		return fmt.Errorf("return with empty jump stack")
	}
	entry := vm.JumpStack[len(vm.JumpStack)-1]
	vm.JumpStack = vm.JumpStack[:len(vm.JumpStack)-1]
	vm.InstructionPointer = entry.Origin
	return nil
}

// execRecurse jumps to the start of the current function
func (vm *VMState) execRecurse() error {
	if len(vm.JumpStack) == 0 {
		return fmt.Errorf("recurse with empty jump stack")
	}
	vm.InstructionPointer = vm.JumpStack[len(vm.JumpStack)-1].Destination
	return nil
}

// execAssert aborts unless the top of stack is 1
func (vm *VMState) execAssert(inst *EncodedInstruction) error {
	st0, err := vm.StackPop()
	if err != nil {
		return err
	}
	if !st0.Equal(field.One) {
		return fmt.Errorf("assertion failed: st0 = %d", st0.Value())
	}
	return vm.IncrementIP(inst)
}

// ============================================================================
// Memory Access Instructions
// ============================================================================

// execReadMem pops an address and pushes n words starting there.
// Unwritten cells read as zero.
func (vm *VMState) execReadMem(inst *EncodedInstruction) error {
	n, err := batchCount("read_mem", inst)
	if err != nil {
		return err
	}
	addr, err := vm.StackPop()
	if err != nil {
		return err
	}
	base := addr.Value()
	for i := 0; i < n; i++ {
		if err := vm.StackPush(vm.RAM[base+uint64(i)]); err != nil {
			return err
		}
	}
	return vm.IncrementIP(inst)
}

// execWriteMem stores the top n words at the address below them
func (vm *VMState) execWriteMem(inst *EncodedInstruction) error {
	n, err := batchCount("write_mem", inst)
	if err != nil {
		return err
	}
	values, err := vm.popN(n)
	if err != nil {
		return err
	}
	addr, err := vm.StackPop()
	if err != nil {
		return err
	}
	base := addr.Value()
	for i, v := range values {
		vm.RAM[base+uint64(i)] = v
	}
	return vm.IncrementIP(inst)
}

// ============================================================================
// Base Field Arithmetic Instructions
// ============================================================================

// execAdd adds top two stack elements
func (vm *VMState) execAdd(inst *EncodedInstruction) error {
	b, a, err := vm.pop2()
	if err != nil {
		return err
	}
	if err := vm.StackPush(a.Add(b)); err != nil {
		return err
	}
	return vm.IncrementIP(inst)
}

// execAddI adds an immediate to the top of stack
func (vm *VMState) execAddI(inst *EncodedInstruction) error {
	st0, err := vm.StackPop()
	if err != nil {
		return err
	}
	if err := vm.StackPush(st0.Add(*inst.Argument)); err != nil {
		return err
	}
	return vm.IncrementIP(inst)
}

// execMul multiplies top two stack elements
func (vm *VMState) execMul(inst *EncodedInstruction) error {
	b, a, err := vm.pop2()
	if err != nil {
		return err
	}
	if err := vm.StackPush(a.Mul(b)); err != nil {
		return err
	}
	return vm.IncrementIP(inst)
}

// execInvert replaces the top of stack with its multiplicative inverse
func (vm *VMState) execInvert(inst *EncodedInstruction) error {
	st0, err := vm.StackPop()
	if err != nil {
		return err
	}
	if st0.IsZero() {
		return fmt.Errorf("cannot invert zero")
	}
	if err := vm.StackPush(st0.Inverse()); err != nil {
		return err
	}
	return vm.IncrementIP(inst)
}

// execEq pushes 1 if the top two elements are equal, 0 otherwise
func (vm *VMState) execEq(inst *EncodedInstruction) error {
	b, a, err := vm.pop2()
	if err != nil {
		return err
	}
	if err := vm.StackPush(boolElement(a.Equal(b))); err != nil {
		return err
	}
	return vm.IncrementIP(inst)
}

// ============================================================================
// Integer Arithmetic Instructions
// ============================================================================

// execSplit replaces the top element with its high and low 32-bit halves,
// low half on top
func (vm *VMState) execSplit(inst *EncodedInstruction) error {
	st0, err := vm.StackPop()
	if err != nil {
		return err
	}
	v := st0.Value()
	if err := vm.StackPush(field.New(v >> 32)); err != nil {
		return err
	}
	if err := vm.StackPush(field.New(v & u32Max)); err != nil {
		return err
	}
	return vm.IncrementIP(inst)
}

// execLt pushes 1 if st1 < st0 as integers
func (vm *VMState) execLt(inst *EncodedInstruction) error {
	b, a, err := vm.pop2()
	if err != nil {
		return err
	}
	if err := vm.StackPush(boolElement(a.Value() < b.Value())); err != nil {
		return err
	}
	return vm.IncrementIP(inst)
}

// execAnd performs bitwise AND on two u32 operands
func (vm *VMState) execAnd(inst *EncodedInstruction) error {
	b, a, err := vm.pop2U32("and")
	if err != nil {
		return err
	}
	if err := vm.StackPush(field.New(a & b)); err != nil {
		return err
	}
	return vm.IncrementIP(inst)
}

// execXor performs bitwise XOR on two u32 operands
func (vm *VMState) execXor(inst *EncodedInstruction) error {
	b, a, err := vm.pop2U32("xor")
	if err != nil {
		return err
	}
	if err := vm.StackPush(field.New(a ^ b)); err != nil {
		return err
	}
	return vm.IncrementIP(inst)
}

// execDivMod pops divisor st0 and numerator st1, pushes quotient then
// remainder
func (vm *VMState) execDivMod(inst *EncodedInstruction) error {
	d, n, err := vm.pop2()
	if err != nil {
		return err
	}
	if d.IsZero() {
		return fmt.Errorf("division by zero")
	}
	q, r := n.Value()/d.Value(), n.Value()%d.Value()
	if err := vm.StackPush(field.New(q)); err != nil {
		return err
	}
	if err := vm.StackPush(field.New(r)); err != nil {
		return err
	}
	return vm.IncrementIP(inst)
}

// ============================================================================
// I/O Instructions
// ============================================================================

// execReadIo pushes n words from the public input stream
func (vm *VMState) execReadIo(inst *EncodedInstruction) error {
	n, err := batchCount("read_io", inst)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		value, err := nextWord(vm.PublicInput, &vm.InputPointer, "public")
		if err != nil {
			return err
		}
		if err := vm.StackPush(value); err != nil {
			return err
		}
	}
	return vm.IncrementIP(inst)
}

// execWriteIo appends the top n words to the journal, deepest first
func (vm *VMState) execWriteIo(inst *EncodedInstruction) error {
	n, err := batchCount("write_io", inst)
	if err != nil {
		return err
	}
	values, err := vm.popN(n)
	if err != nil {
		return err
	}
	for _, v := range values {
		vm.Journal = append(vm.Journal, utils.EncodeWord(v.Value())...)
	}
	return vm.IncrementIP(inst)
}

// ============================================================================
// Helpers
// ============================================================================

// nextWord consumes one frame from stream as a little-endian word
func nextWord(stream [][]byte, pointer *int, name string) (field.Element, error) {
	if *pointer >= len(stream) {
		return field.Zero, fmt.Errorf("%s input exhausted", name)
	}
	frame := stream[*pointer]
	*pointer++
	v, err := utils.DecodeWord(frame)
	if err != nil {
		return field.Zero, fmt.Errorf("%s input frame %d: %w", name, *pointer-1, err)
	}
	if v >= field.P {
		return field.Zero, fmt.Errorf("%s input frame %d: %d is not a field element", name, *pointer-1, v)
	}
	return field.New(v), nil
}

// popN pops n elements and returns them deepest first
func (vm *VMState) popN(n int) ([]field.Element, error) {
	if len(vm.Stack) < n {
		return nil, fmt.Errorf("stack underflow: need %d elements, have %d", n, len(vm.Stack))
	}
	values := make([]field.Element, n)
	copy(values, vm.Stack[len(vm.Stack)-n:])
	vm.Stack = vm.Stack[:len(vm.Stack)-n]
	return values, nil
}

// pop2 returns st0 then st1
func (vm *VMState) pop2() (field.Element, field.Element, error) {
	if len(vm.Stack) < 2 {
		return field.Zero, field.Zero, fmt.Errorf("stack underflow: need 2 elements, have %d", len(vm.Stack))
	}
	st0, _ := vm.StackPop()
	st1, _ := vm.StackPop()
	return st0, st1, nil
}

func (vm *VMState) pop2U32(what string) (uint64, uint64, error) {
	b, a, err := vm.pop2()
	if err != nil {
		return 0, 0, err
	}
	if a.Value() > u32Max || b.Value() > u32Max {
		return 0, 0, fmt.Errorf("%s operands must be u32", what)
	}
	return b.Value(), a.Value(), nil
}

func boolElement(b bool) field.Element {
	if b {
		return field.One
	}
	return field.Zero
}
