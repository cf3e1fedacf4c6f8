package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"
)

// Program represents a guest VM program. A program is read-only once built
// and may be executed by many VMs concurrently.
type Program struct {
	Instructions []*EncodedInstruction
	Length       int // Total words

	byAddr map[int]int // word address -> instruction index
}

// NewProgram creates a new program
func NewProgram() *Program {
	return &Program{
		Instructions: make([]*EncodedInstruction, 0),
		Length:       0,
		byAddr:       make(map[int]int),
	}
}

// AddInstruction adds an instruction to the program
func (p *Program) AddInstruction(inst *EncodedInstruction) {
	if p.byAddr == nil {
		p.byAddr = make(map[int]int)
	}
	p.byAddr[p.Length] = len(p.Instructions)
	p.Instructions = append(p.Instructions, inst)
	p.Length += inst.Instruction.Size()
}

// ToWords converts the program to field elements for execution
func (p *Program) ToWords() []field.Element {
	words := make([]field.Element, 0, p.Length)
	for _, inst := range p.Instructions {
		words = append(words, inst.Words()...)
	}
	return words
}

// ProgramFromWords decodes a word image back into instructions
func ProgramFromWords(words []field.Element) (*Program, error) {
	p := NewProgram()
	for offset := 0; offset < len(words); {
		inst, err := DecodeInstruction(words, offset)
		if err != nil {
			return nil, fmt.Errorf("decode word %d: %w", offset, err)
		}
		p.AddInstruction(inst)
		offset += inst.Instruction.Size()
	}
	return p, nil
}

// At returns the instruction starting at word address ip
func (p *Program) At(ip int) (*EncodedInstruction, error) {
	i, ok := p.byAddr[ip]
	if !ok {
		return nil, fmt.Errorf("no instruction starts at address %d", ip)
	}
	return p.Instructions[i], nil
}

// Digest returns the Poseidon digest of the program words
func (p *Program) Digest() field.Element {
	return hash.PoseidonHash(p.ToWords())
}

// ValidateProgram validates a program for correctness
func ValidateProgram(program *Program) error {
	if program == nil || len(program.Instructions) == 0 {
		return fmt.Errorf("empty program")
	}

	if program.Instructions[len(program.Instructions)-1].Instruction != Halt {
		return fmt.Errorf("program must end with Halt instruction")
	}

	for i, inst := range program.Instructions {
		if inst.Instruction != Call {
			continue
		}
		if _, ok := program.byAddr[int(inst.Arg())]; !ok {
			return fmt.Errorf("instruction %d: call target %d is not an instruction boundary", i, inst.Arg())
		}
	}

	return nil
}
