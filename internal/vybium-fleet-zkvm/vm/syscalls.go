package vm

import (
	"bytes"
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
	"github.com/vybium/vybium-fleet-zkvm/pkg/sha2"
)

// Syscall numbers carried by the ecall argument
const (
	SysRead   uint64 = 0 // stream -> handle of the next input frame
	SysCommit uint64 = 1 // handle -> appends the buffer to the journal
	SysSHA256 uint64 = 2 // handle -> handle of the digest
	SysApply  uint64 = 3 // handle slot -> handle of the module output
	SysLen    uint64 = 4 // handle -> byte length
	SysConcat uint64 = 5 // a b -> handle of a||b
	SysAbort  uint64 = 6 // code -> aborts the guest
	SysEqBuf  uint64 = 7 // a b -> 1 if the buffers are equal
	SysWord   uint64 = 8 // value -> handle of its 8-byte encoding
)

// Stream selectors for SysRead
const (
	StreamPublic  uint64 = 0
	StreamPrivate uint64 = 1
)

// SyscallNames maps assembler names to syscall numbers
var SyscallNames = map[string]uint64{
	"read":   SysRead,
	"commit": SysCommit,
	"sha256": SysSHA256,
	"apply":  SysApply,
	"len":    SysLen,
	"concat": SysConcat,
	"abort":  SysAbort,
	"eq_buf": SysEqBuf,
	"word":   SysWord,
}

// execEcall dispatches a host syscall
func (vm *VMState) execEcall(inst *EncodedInstruction) error {
	var err error
	switch n := inst.Arg(); n {
	case SysRead:
		err = vm.sysRead()
	case SysCommit:
		err = vm.sysCommit()
	case SysSHA256:
		err = vm.sysSHA256()
	case SysApply:
		err = vm.sysApply()
	case SysLen:
		err = vm.sysLen()
	case SysConcat:
		err = vm.sysConcat()
	case SysAbort:
		code, perr := vm.StackPop()
		if perr != nil {
			return perr
		}
		return &guestFault{code: code.Value()}
	case SysEqBuf:
		err = vm.sysEqBuf()
	case SysWord:
		err = vm.sysWord()
	default:
		err = fmt.Errorf("unknown syscall %d", n)
	}
	if err != nil {
		return err
	}
	return vm.IncrementIP(inst)
}

func (vm *VMState) sysRead() error {
	stream, err := vm.popInt("stream selector", StreamPrivate)
	if err != nil {
		return err
	}
	var frame []byte
	if stream == StreamPublic {
		if vm.InputPointer >= len(vm.PublicInput) {
			return fmt.Errorf("public input exhausted")
		}
		frame = vm.PublicInput[vm.InputPointer]
		vm.InputPointer++
	} else {
		if vm.SecretPointer >= len(vm.SecretInput) {
			return fmt.Errorf("private input exhausted")
		}
		frame = vm.SecretInput[vm.SecretPointer]
		vm.SecretPointer++
	}
	return vm.pushBuffer(append([]byte(nil), frame...))
}

func (vm *VMState) sysCommit() error {
	buf, err := vm.popBuffer()
	if err != nil {
		return err
	}
	vm.Journal = append(vm.Journal, buf...)
	return nil
}

func (vm *VMState) sysSHA256() error {
	buf, err := vm.popBuffer()
	if err != nil {
		return err
	}
	// The compression count is charged as extra cycles.
	vm.CycleCount += uint64(sha2.BlockCount(len(buf)))
	sum := sha2.Sum256(buf)
	return vm.pushBuffer(sum[:])
}

func (vm *VMState) sysApply() error {
	slot, err := vm.popInt("module slot", uint64(len(vm.Modules)))
	if err != nil {
		return err
	}
	if slot >= uint64(len(vm.Modules)) {
		return fmt.Errorf("module slot %d not linked", slot)
	}
	input, err := vm.popBuffer()
	if err != nil {
		return err
	}
	module := vm.Modules[slot]
	out, err := module.Apply(input)
	if err != nil {
		return fmt.Errorf("module %s: %w", module.Ref(), err)
	}
	return vm.pushBuffer(out)
}

func (vm *VMState) sysLen() error {
	buf, err := vm.popBuffer()
	if err != nil {
		return err
	}
	return vm.StackPush(field.New(uint64(len(buf))))
}

func (vm *VMState) sysConcat() error {
	b, err := vm.popBuffer()
	if err != nil {
		return err
	}
	a, err := vm.popBuffer()
	if err != nil {
		return err
	}
	joined := make([]byte, 0, len(a)+len(b))
	joined = append(joined, a...)
	joined = append(joined, b...)
	return vm.pushBuffer(joined)
}

func (vm *VMState) sysEqBuf() error {
	b, err := vm.popBuffer()
	if err != nil {
		return err
	}
	a, err := vm.popBuffer()
	if err != nil {
		return err
	}
	return vm.StackPush(boolElement(bytes.Equal(a, b)))
}

func (vm *VMState) sysWord() error {
	v, err := vm.StackPop()
	if err != nil {
		return err
	}
	return vm.pushBuffer(utils.EncodeWord(v.Value()))
}

// pushBuffer stores buf and pushes its handle
func (vm *VMState) pushBuffer(buf []byte) error {
	if vm.bufferBytes+len(buf) > MaxBufferBytes {
		return fmt.Errorf("buffer space exhausted: %d bytes in use", vm.bufferBytes)
	}
	vm.bufferBytes += len(buf)
	vm.Buffers = append(vm.Buffers, buf)
	return vm.StackPush(field.New(uint64(len(vm.Buffers) - 1)))
}

// popBuffer pops a handle and returns the buffer it names
func (vm *VMState) popBuffer() ([]byte, error) {
	h, err := vm.StackPop()
	if err != nil {
		return nil, err
	}
	if h.Value() >= uint64(len(vm.Buffers)) {
		return nil, fmt.Errorf("invalid buffer handle %d", h.Value())
	}
	return vm.Buffers[h.Value()], nil
}
