package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/core"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
	"github.com/vybium/vybium-fleet-zkvm/pkg/sha2"
)

// rowSize is the encoded width of one processor row
const rowSize = 7 * utils.WordSize

// TraceRecorder records one processor row per executed instruction and
// commits to the blinded rows with a Merkle tree.
type TraceRecorder struct {
	key           [32]byte
	programDigest field.Element
	leaves        [][]byte
}

// TraceCommitment is the committed execution trace
type TraceCommitment struct {
	Root         []byte
	Height       int // Leaves including the program leaf
	PaddedHeight int
}

// NewTraceRecorder creates a recorder whose first leaf commits to the
// program digest. Every leaf is blinded with key, so the root can only be
// recomputed by re-executing with the same key.
func NewTraceRecorder(key [32]byte, program *Program) *TraceRecorder {
	tr := &TraceRecorder{key: key}
	if program != nil && len(program.Instructions) > 0 {
		tr.programDigest = program.Digest()
	}
	tr.leaves = append(tr.leaves, BlindRow(key, 0, utils.EncodeWord(tr.programDigest.Value())))
	return tr
}

// Record captures the processor state before inst executes
func (tr *TraceRecorder) Record(vm *VMState, inst *EncodedInstruction) {
	var st0 uint64
	if len(vm.Stack) > 0 {
		st0 = vm.Stack[len(vm.Stack)-1].Value()
	}

	row := make([]byte, 0, rowSize)
	row = binary.LittleEndian.AppendUint64(row, vm.CycleCount)
	row = binary.LittleEndian.AppendUint64(row, uint64(vm.InstructionPointer))
	row = binary.LittleEndian.AppendUint64(row, uint64(inst.Instruction))
	row = binary.LittleEndian.AppendUint64(row, inst.Arg())
	row = binary.LittleEndian.AppendUint64(row, uint64(len(vm.Stack)))
	row = binary.LittleEndian.AppendUint64(row, st0)
	row = binary.LittleEndian.AppendUint64(row, uint64(len(vm.Journal)))

	tr.leaves = append(tr.leaves, BlindRow(tr.key, uint64(len(tr.leaves)), row))
}

// Commit builds the Merkle commitment over all recorded leaves
func (tr *TraceRecorder) Commit() (*TraceCommitment, error) {
	tree, err := core.NewMerkleTree(tr.leaves)
	if err != nil {
		return nil, fmt.Errorf("build trace tree: %w", err)
	}
	return &TraceCommitment{
		Root:         tree.Root(),
		Height:       len(tr.leaves),
		PaddedHeight: utils.NextPowerOfTwo(len(tr.leaves)),
	}, nil
}

// BlindRow hashes a trace row under the trace key and its position
func BlindRow(key [32]byte, index uint64, row []byte) []byte {
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], index)
	sum := sha2.SumConcat(key[:], idx[:], row)
	return sum[:]
}
