package vm

import (
	"errors"
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

func TestAssemble(t *testing.T) {
	src := `
; entry
.name ignored
start:  push 1      // one
        call sub
        halt
sub:    ecall commit
        return
        halt
`
	program, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(program.Instructions) != 6 {
		t.Fatalf("got %d instructions, want 6", len(program.Instructions))
	}
	call := program.Instructions[1]
	if call.Instruction != Call || call.Arg() != 5 {
		t.Errorf("call = %s, want call 5", call)
	}
	ecall := program.Instructions[3]
	if ecall.Arg() != SysCommit {
		t.Errorf("ecall commit assembled to %d", ecall.Arg())
	}
}

func TestAssembleImmediates(t *testing.T) {
	tests := []struct {
		src  string
		want uint64
	}{
		{"push 42", 42},
		{"push 0x2a", 42},
		{"push -1", field.P - 1},
		{"push -0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			program, err := Assemble(tt.src + "\nhalt")
			if err != nil {
				t.Fatalf("Assemble() error = %v", err)
			}
			if got := program.Instructions[0].Arg(); got != tt.want {
				t.Errorf("argument = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown mnemonic", "jump 3"},
		{"missing argument", "push"},
		{"extra argument", "add 1"},
		{"undefined label", "call nowhere"},
		{"duplicate label", "a: nop\na: halt"},
		{"bad label", "9x: halt"},
		{"bad syscall", "ecall teleport"},
		{"too large", "push 0xffffffffffffffff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.src)
			var asmErr *AssemblyError
			if !errors.As(err, &asmErr) {
				t.Fatalf("Assemble() error = %v, want *AssemblyError", err)
			}
			if asmErr.Line != 1 && tt.name != "duplicate label" {
				t.Errorf("Line = %d, want 1", asmErr.Line)
			}
		})
	}
}
